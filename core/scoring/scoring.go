// Package scoring grades multiple-choice test attempts.
// Everything here is pure: no persistence, no clock.
package scoring

import (
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core/catalog"
)

var (
	// errors
	ErrEmptyTest          = errors.New("test has no questions")
	ErrAnswerNotInOptions = errors.New("question's correct answer is not one of its options")
)

// Answer records what the student picked for one question. SelectedAnswer is nil when unanswered.
type Answer struct {
	QuestionID     string  `json:"question_id"`
	SelectedAnswer *string `json:"selected_answer"`
}

type Result struct {
	Score          float64  `json:"score"` // percentage, 0..100
	Answers        []Answer `json:"answers"`
	TotalQuestions int      `json:"total_questions"`
	CorrectCount   int      `json:"correct_count"`
}

// Score grades answers, keyed by 0-based question position, against the questions in order.
// A question counts as correct only on exact string equality with its correct answer.
// A test without questions scores 0.
func Score(questions []catalog.Question, answers map[int]string) Result {
	res := Result{
		Answers:        make([]Answer, 0, len(questions)),
		TotalQuestions: len(questions),
	}
	for i, q := range questions {
		ans := Answer{QuestionID: q.ID}
		if selected, ok := answers[i]; ok {
			sel := selected
			ans.SelectedAnswer = &sel
			if sel == q.CorrectAnswer {
				res.CorrectCount++
			}
		}
		res.Answers = append(res.Answers, ans)
	}
	if res.TotalQuestions > 0 {
		res.Score = 100 * float64(res.CorrectCount) / float64(res.TotalQuestions)
	}
	return res
}

// Check reports whether the questions can be meaningfully scored.
func Check(questions []catalog.Question) error {
	if len(questions) == 0 {
		return ErrEmptyTest
	}
	for _, q := range questions {
		found := false
		for _, opt := range q.Options {
			if opt == q.CorrectAnswer {
				found = true
				break
			}
		}
		if !found {
			return errors.Wrapf(ErrAnswerNotInOptions, "question %d", q.Position)
		}
	}
	return nil
}
