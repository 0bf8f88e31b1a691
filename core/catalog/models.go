package catalog

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/elimu/core"
)

// Course is a Listing published by an instructor.
type Course struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Instructor  string    `json:"instructor"` // display name
	Description string    `json:"description"`
	Price       float64   `json:"price"`
	Image       string    `json:"image"`
	CreatedBy   string    `json:"created_by"` // immutable
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Assignment struct {
	ID          string    `json:"id"`
	CourseID    string    `json:"course_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	CreatedBy   string    `json:"created_by"` // immutable
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Question of a multiple-choice Test. ID and Position are fixed at creation.
type Question struct {
	ID            string   `json:"id"`
	Position      int      `json:"position"` // 0-based
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer,omitempty"`
}

type Test struct {
	ID        string     `json:"id"`
	CourseID  string     `json:"course_id"`
	Title     string     `json:"title"`
	CreatedBy string     `json:"created_by"` // immutable
	Questions []Question `json:"questions"`  // ordered by Position
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ForStudent returns a copy of the test with every correct answer stripped.
func (t Test) ForStudent() Test {
	qs := make([]Question, len(t.Questions))
	for i, q := range t.Questions {
		opts := make([]string, len(q.Options))
		copy(opts, q.Options)
		qs[i] = Question{ID: q.ID, Position: q.Position, Prompt: q.Prompt, Options: opts}
	}
	t.Questions = qs
	return t
}

// CourseContent bundles a course with its assignments and tests.
type CourseContent struct {
	Course      Course       `json:"course"`
	Assignments []Assignment `json:"assignments"`
	Tests       []Test       `json:"tests"`
}

// Inputs

type NewCourse struct {
	Title       string  `json:"title" validate:"required,min=3,max=100"`
	Instructor  string  `json:"instructor" validate:"required,min=2,max=50"`
	Description string  `json:"description" validate:"required,min=10,max=1000"`
	Price       float64 `json:"price" validate:"gte=0"`
	Image       string  `json:"image" validate:"omitempty,max=500"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Instructor = core.CleanString(nc.Instructor)
	nc.Description = core.CleanString(nc.Description)
	nc.Image = core.CleanString(nc.Image)
	return validate.Struct(nc)
}

// UpdateCourse holds the course fields to change. Nil fields are left untouched.
type UpdateCourse struct {
	Title       *string  `json:"title" validate:"omitempty,min=3,max=100"`
	Instructor  *string  `json:"instructor" validate:"omitempty,min=2,max=50"`
	Description *string  `json:"description" validate:"omitempty,min=10,max=1000"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Image       *string  `json:"image" validate:"omitempty,max=500"`
}

func (uc *UpdateCourse) Validate(validate *validator.Validate) error {
	cleanPtr(uc.Title, uc.Instructor, uc.Description, uc.Image)
	return validate.Struct(uc)
}

type NewAssignment struct {
	Title       string `json:"title" validate:"required,min=3,max=100"`
	Description string `json:"description" validate:"required,min=10,max=2000"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	return validate.Struct(na)
}

type UpdateAssignment struct {
	Title       *string `json:"title" validate:"omitempty,min=3,max=100"`
	Description *string `json:"description" validate:"omitempty,min=10,max=2000"`
}

func (ua *UpdateAssignment) Validate(validate *validator.Validate) error {
	cleanPtr(ua.Title, ua.Description)
	return validate.Struct(ua)
}

type NewQuestion struct {
	Prompt        string   `json:"prompt" validate:"required,min=5,max=500"`
	Options       []string `json:"options" validate:"required,min=2,max=6,dive,notblank"`
	CorrectAnswer string   `json:"correct_answer" validate:"required"`
}

type NewTest struct {
	Title     string        `json:"title" validate:"required,min=3,max=100"`
	Questions []NewQuestion `json:"questions" validate:"required,min=1,dive"`
}

func (nt *NewTest) Validate(validate *validator.Validate) error {
	nt.Title = core.CleanString(nt.Title)
	for i := range nt.Questions {
		q := &nt.Questions[i]
		q.Prompt = core.CleanString(q.Prompt)
		q.CorrectAnswer = core.CleanString(q.CorrectAnswer)
		for j := range q.Options {
			q.Options[j] = core.CleanString(q.Options[j])
		}
	}
	return validate.Struct(nt)
}

// UpdateTest only allows renaming: question identity is stable once created.
type UpdateTest struct {
	Title string `json:"title" validate:"required,min=3,max=100"`
}

func (ut *UpdateTest) Validate(validate *validator.Validate) error {
	ut.Title = core.CleanString(ut.Title)
	return validate.Struct(ut)
}

func cleanPtr(ss ...*string) {
	for _, s := range ss {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
}
