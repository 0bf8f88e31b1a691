package grading

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/ledger"
	"github.com/trezcool/elimu/core/user"
)

// GradeInput is the body of an instructor grading action.
type GradeInput struct {
	Score *float64 `json:"score" validate:"required,gte=0,lte=100"`
}

func (in *GradeInput) Validate(validate *validator.Validate) error {
	return validate.Struct(in)
}

// SubmitTestInput maps 0-based question positions to the selected option.
type SubmitTestInput struct {
	Answers map[int]string `json:"answers"`
}

type (
	AssignmentRosterEntry struct {
		Student    user.User                   `json:"student"`
		Submission ledger.AssignmentSubmission `json:"submission"`
	}

	TestRosterEntry struct {
		Student user.User          `json:"student"`
		Attempt ledger.TestAttempt `json:"attempt"`
	}
)

type (
	DashboardCourse struct {
		Course     catalog.Course `json:"course"`
		EnrolledAt time.Time      `json:"enrolled_at"`
	}

	DashboardSubmission struct {
		Assignment catalog.Assignment          `json:"assignment"`
		Course     catalog.Course              `json:"course"`
		Submission ledger.AssignmentSubmission `json:"submission"`
	}

	DashboardAttempt struct {
		Test    catalog.Test       `json:"test"` // answers stripped
		Course  catalog.Course     `json:"course"`
		Attempt ledger.TestAttempt `json:"attempt"`
	}

	// Dashboard is a student's ledger with the referenced catalog entities resolved.
	// Entries whose catalog entity no longer exists are left out.
	Dashboard struct {
		Student     user.User             `json:"student"`
		Courses     []DashboardCourse     `json:"courses"`
		Submissions []DashboardSubmission `json:"submissions"`
		Attempts    []DashboardAttempt    `json:"attempts"`
	}
)

type gradedEmailData struct {
	Kind  string
	Title string
	Score float64
}
