package scoring

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core/catalog"
)

func questions(n int) []catalog.Question {
	qs := make([]catalog.Question, 0, n)
	for i := 0; i < n; i++ {
		qs = append(qs, catalog.Question{
			ID:            string(rune('a' + i)),
			Position:      i,
			Prompt:        "What is the answer?",
			Options:       []string{"yes", "no", "maybe"},
			CorrectAnswer: "yes",
		})
	}
	return qs
}

func strPtr(s string) *string { return &s }

func TestScore(t *testing.T) {
	tests := []struct {
		name        string
		questions   []catalog.Question
		answers     map[int]string
		wantScore   float64
		wantCorrect int
	}{
		{name: "empty test", questions: nil, answers: map[int]string{0: "yes"}, wantScore: 0},
		{name: "no answers", questions: questions(2), answers: nil, wantScore: 0},
		{name: "3 of 4", questions: questions(4), answers: map[int]string{0: "yes", 1: "yes", 2: "no", 3: "yes"}, wantScore: 75, wantCorrect: 3},
		{name: "all correct", questions: questions(3), answers: map[int]string{0: "yes", 1: "yes", 2: "yes"}, wantScore: 100, wantCorrect: 3},
		{name: "exact match only", questions: questions(2), answers: map[int]string{0: "Yes", 1: " yes"}, wantScore: 0},
		{name: "out of range answers ignored", questions: questions(1), answers: map[int]string{5: "yes", -1: "yes"}, wantScore: 0},
		{name: "one of three", questions: questions(3), answers: map[int]string{1: "yes"}, wantScore: 100.0 / 3, wantCorrect: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Score(tt.questions, tt.answers)
			assert.InDelta(t, tt.wantScore, res.Score, 1e-9)
			assert.Equal(t, tt.wantCorrect, res.CorrectCount)
			assert.Equal(t, len(tt.questions), res.TotalQuestions)
			assert.Len(t, res.Answers, len(tt.questions))
		})
	}
}

func TestScore_answerRecord(t *testing.T) {
	qs := questions(3)
	res := Score(qs, map[int]string{0: "no", 2: "yes"})

	want := []Answer{
		{QuestionID: qs[0].ID, SelectedAnswer: strPtr("no")},
		{QuestionID: qs[1].ID},
		{QuestionID: qs[2].ID, SelectedAnswer: strPtr("yes")},
	}
	assert.Equal(t, want, res.Answers)
}

func TestScore_deterministic(t *testing.T) {
	qs := questions(5)
	answers := map[int]string{0: "yes", 1: "no", 3: "yes", 4: "maybe"}

	first := Score(qs, answers)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, Score(qs, answers))
	}
}

func TestCheck(t *testing.T) {
	bad := questions(2)
	bad[1].CorrectAnswer = "never"

	tests := []struct {
		name      string
		questions []catalog.Question
		wantErr   error
	}{
		{name: "empty", questions: nil, wantErr: ErrEmptyTest},
		{name: "answer not in options", questions: bad, wantErr: ErrAnswerNotInOptions},
		{name: "ok", questions: questions(2)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.questions)
			assert.Equal(t, tt.wantErr, errors.Cause(err))
		})
	}
}
