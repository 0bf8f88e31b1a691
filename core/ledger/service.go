package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/scoring"
)

var (
	// errors
	ErrAlreadyEnrolled     = errors.New("already enrolled in this course")
	ErrDuplicateSubmission = errors.New("already submitted")
	ErrRecordNotFound      = errors.New("submission not found")
)

type (
	// Repository persists ledger entries.
	// Uniqueness per (user, course), (user, assignment) and (user, test) must be enforced atomically
	// by the implementation: a concurrent duplicate insert fails, it never overwrites.
	Repository interface {
		// CreateEnrollment fails with ErrAlreadyEnrolled.
		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		DeleteEnrollments(ctx context.Context, userID, courseID string) error
		GetEnrollment(ctx context.Context, userID, courseID string) (Enrollment, error)
		QueryEnrollments(ctx context.Context, userID string) ([]Enrollment, error)
		CountEnrollments(ctx context.Context, courseID string) (int, error)

		// CreateAssignmentSubmission fails with ErrDuplicateSubmission.
		CreateAssignmentSubmission(ctx context.Context, s AssignmentSubmission) (AssignmentSubmission, error)
		GetAssignmentSubmission(ctx context.Context, userID, assignmentID string) (AssignmentSubmission, error)
		QueryAssignmentSubmissions(ctx context.Context, filter Filter) ([]AssignmentSubmission, error)
		// UpdateAssignmentScore fails with ErrRecordNotFound when nothing matches.
		UpdateAssignmentScore(ctx context.Context, userID, assignmentID string, score float64, gradedAt time.Time) (AssignmentSubmission, error)

		// CreateTestAttempt fails with ErrDuplicateSubmission.
		CreateTestAttempt(ctx context.Context, a TestAttempt) (TestAttempt, error)
		GetTestAttempt(ctx context.Context, userID, testID string) (TestAttempt, error)
		QueryTestAttempts(ctx context.Context, filter Filter) ([]TestAttempt, error)
		// UpdateTestScore fails with ErrRecordNotFound when nothing matches.
		UpdateTestScore(ctx context.Context, userID, testID string, score float64, gradedAt time.Time) (TestAttempt, error)
	}

	// Filter narrows ledger queries. Set fields are AND-ed; EntityID is the assignment or test id.
	// Results are ordered by submission time, oldest first.
	Filter struct {
		UserID   string
		EntityID string
	}

	Service interface {
		Enroll(ctx context.Context, userID, courseID string) (Enrollment, error)
		Unenroll(ctx context.Context, userID, courseID string) error
		IsEnrolled(ctx context.Context, userID, courseID string) (bool, error)
		Enrollments(ctx context.Context, userID string) ([]Enrollment, error)
		CountEnrollments(ctx context.Context, courseID string) (int, error)

		RecordAssignmentSubmission(ctx context.Context, userID, assignmentID, payload string) (AssignmentSubmission, error)
		RecordTestAttempt(ctx context.Context, userID, testID string, res scoring.Result) (TestAttempt, error)
		OverrideAssignmentScore(ctx context.Context, userID, assignmentID string, score float64) (AssignmentSubmission, error)
		OverrideTestScore(ctx context.Context, userID, testID string, score float64) (TestAttempt, error)

		FindAssignmentSubmission(ctx context.Context, userID, assignmentID string) (AssignmentSubmission, error)
		FindTestAttempt(ctx context.Context, userID, testID string) (TestAttempt, error)
		SubmissionsByAssignment(ctx context.Context, assignmentID string) ([]AssignmentSubmission, error)
		AttemptsByTest(ctx context.Context, testID string) ([]TestAttempt, error)
		Record(ctx context.Context, userID string) (Record, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Enroll appends an enrollment. It does not touch the course: counts are computed on demand.
func (svc *service) Enroll(ctx context.Context, userID, courseID string) (Enrollment, error) {
	return svc.repo.CreateEnrollment(ctx, Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		EnrolledAt: core.NowFunc(),
	})
}

// Unenroll is idempotent.
func (svc *service) Unenroll(ctx context.Context, userID, courseID string) error {
	return svc.repo.DeleteEnrollments(ctx, userID, courseID)
}

func (svc *service) IsEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	if _, err := svc.repo.GetEnrollment(ctx, userID, courseID); err != nil {
		if errors.Cause(err) == ErrRecordNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (svc *service) Enrollments(ctx context.Context, userID string) ([]Enrollment, error) {
	return svc.repo.QueryEnrollments(ctx, userID)
}

func (svc *service) CountEnrollments(ctx context.Context, courseID string) (int, error) {
	return svc.repo.CountEnrollments(ctx, courseID)
}

func (svc *service) RecordAssignmentSubmission(ctx context.Context, userID, assignmentID, payload string) (AssignmentSubmission, error) {
	return svc.repo.CreateAssignmentSubmission(ctx, AssignmentSubmission{
		ID:           uuid.NewString(),
		UserID:       userID,
		AssignmentID: assignmentID,
		Payload:      payload,
		SubmittedAt:  core.NowFunc(),
	})
}

// RecordTestAttempt stores a scored attempt.
// Callers check for an existing attempt first; the repository still rejects a racing duplicate.
func (svc *service) RecordTestAttempt(ctx context.Context, userID, testID string, res scoring.Result) (TestAttempt, error) {
	now := core.NowFunc()
	answers := make([]scoring.Answer, len(res.Answers))
	copy(answers, res.Answers)
	return svc.repo.CreateTestAttempt(ctx, TestAttempt{
		ID:             uuid.NewString(),
		UserID:         userID,
		TestID:         testID,
		Answers:        answers,
		TotalQuestions: res.TotalQuestions,
		CorrectCount:   res.CorrectCount,
		Score:          null.Float64From(res.Score),
		GradedAt:       null.TimeFrom(now),
		SubmittedAt:    now,
	})
}

func (svc *service) OverrideAssignmentScore(ctx context.Context, userID, assignmentID string, score float64) (AssignmentSubmission, error) {
	return svc.repo.UpdateAssignmentScore(ctx, userID, assignmentID, score, core.NowFunc())
}

func (svc *service) OverrideTestScore(ctx context.Context, userID, testID string, score float64) (TestAttempt, error) {
	return svc.repo.UpdateTestScore(ctx, userID, testID, score, core.NowFunc())
}

func (svc *service) FindAssignmentSubmission(ctx context.Context, userID, assignmentID string) (AssignmentSubmission, error) {
	return svc.repo.GetAssignmentSubmission(ctx, userID, assignmentID)
}

func (svc *service) FindTestAttempt(ctx context.Context, userID, testID string) (TestAttempt, error) {
	return svc.repo.GetTestAttempt(ctx, userID, testID)
}

func (svc *service) SubmissionsByAssignment(ctx context.Context, assignmentID string) ([]AssignmentSubmission, error) {
	return svc.repo.QueryAssignmentSubmissions(ctx, Filter{EntityID: assignmentID})
}

func (svc *service) AttemptsByTest(ctx context.Context, testID string) ([]TestAttempt, error) {
	return svc.repo.QueryTestAttempts(ctx, Filter{EntityID: testID})
}

func (svc *service) Record(ctx context.Context, userID string) (Record, error) {
	var rec Record
	var err error
	if rec.Enrollments, err = svc.repo.QueryEnrollments(ctx, userID); err != nil {
		return Record{}, errors.Wrap(err, "querying enrollments")
	}
	if rec.Submissions, err = svc.repo.QueryAssignmentSubmissions(ctx, Filter{UserID: userID}); err != nil {
		return Record{}, errors.Wrap(err, "querying submissions")
	}
	if rec.Attempts, err = svc.repo.QueryTestAttempts(ctx, Filter{UserID: userID}); err != nil {
		return Record{}, errors.Wrap(err, "querying attempts")
	}
	return rec, nil
}
