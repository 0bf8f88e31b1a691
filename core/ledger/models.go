package ledger

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/elimu/core/scoring"
)

type Enrollment struct {
	UserID     string    `json:"user_id"`
	CourseID   string    `json:"course_id"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

// AssignmentSubmission is ungraded until an instructor overrides its score.
type AssignmentSubmission struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	AssignmentID string       `json:"assignment_id"`
	Payload      string       `json:"payload"` // text or file reference, never interpreted
	Score        null.Float64 `json:"score"`
	GradedAt     null.Time    `json:"graded_at"`
	SubmittedAt  time.Time    `json:"submitted_at"`
}

func (s AssignmentSubmission) IsGraded() bool { return s.GradedAt.Valid }

// TestAttempt is scored at submission time. An override only changes Score and GradedAt.
type TestAttempt struct {
	ID             string           `json:"id"`
	UserID         string           `json:"user_id"`
	TestID         string           `json:"test_id"`
	Answers        []scoring.Answer `json:"answers"`
	TotalQuestions int              `json:"total_questions"`
	CorrectCount   int              `json:"correct_count"`
	Score          null.Float64     `json:"score"`
	GradedAt       null.Time        `json:"graded_at"`
	SubmittedAt    time.Time        `json:"submitted_at"`
}

// Record is the ledger of a single student.
type Record struct {
	Enrollments []Enrollment           `json:"enrollments"`
	Submissions []AssignmentSubmission `json:"submissions"`
	Attempts    []TestAttempt          `json:"attempts"`
}
