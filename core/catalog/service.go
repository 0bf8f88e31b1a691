package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
)

var (
	// errors
	ErrCourseNotFound     = errors.New("course not found")
	ErrAssignmentNotFound = errors.New("assignment not found")
	ErrTestNotFound       = errors.New("test not found")
	ErrForbidden          = errors.New("permission denied")
)

type (
	// CourseFilter narrows QueryCourses. Empty fields are ignored.
	CourseFilter struct {
		CreatedBy string
	}

	Repository interface {
		CreateCourse(ctx context.Context, course Course) (Course, error)
		// QueryCourses returns the newest courses first.
		QueryCourses(ctx context.Context, filter CourseFilter) ([]Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		UpdateCourse(ctx context.Context, course Course) (Course, error)
		// DeleteCourse deletes the course with all its assignments and tests as one atomic unit.
		DeleteCourse(ctx context.Context, id string) error

		// CreateAssignment fails with ErrCourseNotFound if the course does not exist at insert time.
		CreateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		QueryAssignments(ctx context.Context, courseID string) ([]Assignment, error)
		UpdateAssignment(ctx context.Context, a Assignment) (Assignment, error)
		DeleteAssignment(ctx context.Context, id string) error

		// CreateTest fails with ErrCourseNotFound if the course does not exist at insert time.
		CreateTest(ctx context.Context, t Test) (Test, error)
		GetTest(ctx context.Context, id string) (Test, error)
		QueryTests(ctx context.Context, courseID string) ([]Test, error)
		UpdateTest(ctx context.Context, t Test) (Test, error)
		DeleteTest(ctx context.Context, id string) error

		// DeleteOrphans removes assignments and tests whose course no longer exists.
		DeleteOrphans(ctx context.Context) (int, error)
	}

	Service interface {
		CreateCourse(ctx context.Context, ownerID string, nc NewCourse) (Course, error)
		QueryCourses(ctx context.Context) ([]Course, error)
		CoursesByOwner(ctx context.Context, ownerID string) ([]Course, error)
		GetCourse(ctx context.Context, id string) (Course, error)
		GetCourseWithContent(ctx context.Context, actorID, id string) (CourseContent, error)
		UpdateCourse(ctx context.Context, actorID, id string, uc UpdateCourse) (Course, error)
		DeleteCourse(ctx context.Context, actorID, id string) error

		CreateAssignment(ctx context.Context, actorID, courseID string, na NewAssignment) (Assignment, error)
		GetAssignment(ctx context.Context, id string) (Assignment, error)
		AssignmentsByCourse(ctx context.Context, courseID string) ([]Assignment, error)
		UpdateAssignment(ctx context.Context, actorID, id string, ua UpdateAssignment) (Assignment, error)
		DeleteAssignment(ctx context.Context, actorID, id string) error

		CreateTest(ctx context.Context, actorID, courseID string, nt NewTest) (Test, error)
		GetTest(ctx context.Context, id string) (Test, error)
		GetStudentTest(ctx context.Context, id string) (Test, error)
		TestsByCourse(ctx context.Context, courseID string) ([]Test, error)
		UpdateTest(ctx context.Context, actorID, id string, ut UpdateTest) (Test, error)
		DeleteTest(ctx context.Context, actorID, id string) error

		ReconcileOrphans(ctx context.Context) (int, error)
	}

	service struct {
		repo   Repository
		logger core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, logger core.Logger) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &service{repo: repo, logger: logger}
}

// Courses

func (svc *service) CreateCourse(ctx context.Context, ownerID string, nc NewCourse) (Course, error) {
	now := core.NowFunc()
	return svc.repo.CreateCourse(ctx, Course{
		ID:          uuid.NewString(),
		Title:       nc.Title,
		Instructor:  nc.Instructor,
		Description: nc.Description,
		Price:       nc.Price,
		Image:       nc.Image,
		CreatedBy:   ownerID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *service) QueryCourses(ctx context.Context) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, CourseFilter{})
}

func (svc *service) CoursesByOwner(ctx context.Context, ownerID string) ([]Course, error) {
	return svc.repo.QueryCourses(ctx, CourseFilter{CreatedBy: ownerID})
}

func (svc *service) GetCourse(ctx context.Context, id string) (Course, error) {
	return svc.repo.GetCourse(ctx, id)
}

// GetCourseWithContent returns the course bundle.
// Correct answers are only included when actorID owns the course.
func (svc *service) GetCourseWithContent(ctx context.Context, actorID, id string) (CourseContent, error) {
	course, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return CourseContent{}, err
	}
	assignments, err := svc.repo.QueryAssignments(ctx, id)
	if err != nil {
		return CourseContent{}, errors.Wrap(err, "querying assignments")
	}
	tests, err := svc.repo.QueryTests(ctx, id)
	if err != nil {
		return CourseContent{}, errors.Wrap(err, "querying tests")
	}
	if course.CreatedBy != actorID {
		for i := range tests {
			tests[i] = tests[i].ForStudent()
		}
	}
	return CourseContent{Course: course, Assignments: assignments, Tests: tests}, nil
}

func (svc *service) ownedCourse(ctx context.Context, actorID, id string) (Course, error) {
	course, err := svc.repo.GetCourse(ctx, id)
	if err != nil {
		return Course{}, err
	}
	if course.CreatedBy != actorID {
		return Course{}, ErrForbidden
	}
	return course, nil
}

func (svc *service) UpdateCourse(ctx context.Context, actorID, id string, uc UpdateCourse) (Course, error) {
	course, err := svc.ownedCourse(ctx, actorID, id)
	if err != nil {
		return Course{}, err
	}
	if uc.Title != nil {
		course.Title = *uc.Title
	}
	if uc.Instructor != nil {
		course.Instructor = *uc.Instructor
	}
	if uc.Description != nil {
		course.Description = *uc.Description
	}
	if uc.Price != nil {
		course.Price = *uc.Price
	}
	if uc.Image != nil {
		course.Image = *uc.Image
	}
	course.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateCourse(ctx, course)
}

func (svc *service) DeleteCourse(ctx context.Context, actorID, id string) error {
	if _, err := svc.ownedCourse(ctx, actorID, id); err != nil {
		return err
	}
	return svc.repo.DeleteCourse(ctx, id)
}

// Assignments

func (svc *service) CreateAssignment(ctx context.Context, actorID, courseID string, na NewAssignment) (Assignment, error) {
	if _, err := svc.ownedCourse(ctx, actorID, courseID); err != nil {
		return Assignment{}, err
	}
	now := core.NowFunc()
	return svc.repo.CreateAssignment(ctx, Assignment{
		ID:          uuid.NewString(),
		CourseID:    courseID,
		Title:       na.Title,
		Description: na.Description,
		CreatedBy:   actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func (svc *service) GetAssignment(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignment(ctx, id)
}

func (svc *service) AssignmentsByCourse(ctx context.Context, courseID string) ([]Assignment, error) {
	return svc.repo.QueryAssignments(ctx, courseID)
}

func (svc *service) ownedAssignment(ctx context.Context, actorID, id string) (Assignment, error) {
	a, err := svc.repo.GetAssignment(ctx, id)
	if err != nil {
		return Assignment{}, err
	}
	if a.CreatedBy != actorID {
		return Assignment{}, ErrForbidden
	}
	return a, nil
}

func (svc *service) UpdateAssignment(ctx context.Context, actorID, id string, ua UpdateAssignment) (Assignment, error) {
	a, err := svc.ownedAssignment(ctx, actorID, id)
	if err != nil {
		return Assignment{}, err
	}
	if ua.Title != nil {
		a.Title = *ua.Title
	}
	if ua.Description != nil {
		a.Description = *ua.Description
	}
	a.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateAssignment(ctx, a)
}

func (svc *service) DeleteAssignment(ctx context.Context, actorID, id string) error {
	if _, err := svc.ownedAssignment(ctx, actorID, id); err != nil {
		return err
	}
	return svc.repo.DeleteAssignment(ctx, id)
}

// Tests

func (svc *service) CreateTest(ctx context.Context, actorID, courseID string, nt NewTest) (Test, error) {
	if _, err := svc.ownedCourse(ctx, actorID, courseID); err != nil {
		return Test{}, err
	}

	questions := make([]Question, 0, len(nt.Questions))
	for i, nq := range nt.Questions {
		opts := make([]string, len(nq.Options))
		copy(opts, nq.Options)
		questions = append(questions, Question{
			ID:            uuid.NewString(),
			Position:      i,
			Prompt:        nq.Prompt,
			Options:       opts,
			CorrectAnswer: nq.CorrectAnswer,
		})
	}

	now := core.NowFunc()
	return svc.repo.CreateTest(ctx, Test{
		ID:        uuid.NewString(),
		CourseID:  courseID,
		Title:     nt.Title,
		CreatedBy: actorID,
		Questions: questions,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (svc *service) GetTest(ctx context.Context, id string) (Test, error) {
	return svc.repo.GetTest(ctx, id)
}

func (svc *service) GetStudentTest(ctx context.Context, id string) (Test, error) {
	t, err := svc.repo.GetTest(ctx, id)
	if err != nil {
		return Test{}, err
	}
	return t.ForStudent(), nil
}

func (svc *service) TestsByCourse(ctx context.Context, courseID string) ([]Test, error) {
	return svc.repo.QueryTests(ctx, courseID)
}

func (svc *service) ownedTest(ctx context.Context, actorID, id string) (Test, error) {
	t, err := svc.repo.GetTest(ctx, id)
	if err != nil {
		return Test{}, err
	}
	if t.CreatedBy != actorID {
		return Test{}, ErrForbidden
	}
	return t, nil
}

func (svc *service) UpdateTest(ctx context.Context, actorID, id string, ut UpdateTest) (Test, error) {
	t, err := svc.ownedTest(ctx, actorID, id)
	if err != nil {
		return Test{}, err
	}
	t.Title = ut.Title
	t.UpdatedAt = core.NowFunc()
	return svc.repo.UpdateTest(ctx, t)
}

func (svc *service) DeleteTest(ctx context.Context, actorID, id string) error {
	if _, err := svc.ownedTest(ctx, actorID, id); err != nil {
		return err
	}
	return svc.repo.DeleteTest(ctx, id)
}

// ReconcileOrphans is the cleanup pass for children left behind by a course deletion
// that predates the atomic cascade.
func (svc *service) ReconcileOrphans(ctx context.Context) (int, error) {
	n, err := svc.repo.DeleteOrphans(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "deleting orphans")
	}
	if n > 0 {
		svc.logger.Warn("catalog.ReconcileOrphans: orphans deleted", map[string]interface{}{"count": n})
	}
	return n, nil
}
