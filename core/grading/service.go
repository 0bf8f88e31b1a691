package grading

import (
	"context"
	"math"
	"net/mail"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/ledger"
	"github.com/trezcool/elimu/core/scoring"
	"github.com/trezcool/elimu/core/user"
)

var (
	// errors
	ErrInvalidScore = errors.New("score must be between 0 and 100")
	ErrEmptyPayload = errors.New("a submission (text or file) is required")
)

type (
	Service interface {
		// student flows
		Enroll(ctx context.Context, studentID, courseID string) (ledger.Enrollment, error)
		Unenroll(ctx context.Context, studentID, courseID string) error
		SubmitAssignment(ctx context.Context, studentID, assignmentID, payload string) (ledger.AssignmentSubmission, error)
		SubmitTest(ctx context.Context, studentID, testID string, answers map[int]string) (ledger.TestAttempt, error)
		AssignmentResult(ctx context.Context, studentID, assignmentID string) (ledger.AssignmentSubmission, error)
		TestResult(ctx context.Context, studentID, testID string) (ledger.TestAttempt, error)
		Dashboard(ctx context.Context, studentID string) (Dashboard, error)

		// instructor flows
		GradeAssignment(ctx context.Context, instructorID, assignmentID, studentID string, score float64) (ledger.AssignmentSubmission, error)
		GradeTest(ctx context.Context, instructorID, testID, studentID string, score float64) (ledger.TestAttempt, error)
		AssignmentRoster(ctx context.Context, instructorID, assignmentID string) ([]AssignmentRosterEntry, error)
		TestRoster(ctx context.Context, instructorID, testID string) ([]TestRosterEntry, error)
	}

	service struct {
		catalog catalog.Service
		ledger  ledger.Service
		users   user.Service
		mailSvc core.EmailService
		logger  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	catalogSvc catalog.Service,
	ledgerSvc ledger.Service,
	usrSvc user.Service,
	mailSvc core.EmailService,
	logger core.Logger,
) Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(catalogSvc, "catalogSvc"),
		vala.IsNotNil(ledgerSvc, "ledgerSvc"),
		vala.IsNotNil(usrSvc, "usrSvc"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &service{
		catalog: catalogSvc,
		ledger:  ledgerSvc,
		users:   usrSvc,
		mailSvc: mailSvc,
		logger:  logger,
	}
}

func validScore(score float64) bool {
	return !math.IsNaN(score) && score >= 0 && score <= 100
}

// Student flows

func (svc *service) Enroll(ctx context.Context, studentID, courseID string) (ledger.Enrollment, error) {
	if _, err := svc.catalog.GetCourse(ctx, courseID); err != nil {
		return ledger.Enrollment{}, err
	}
	return svc.ledger.Enroll(ctx, studentID, courseID)
}

func (svc *service) Unenroll(ctx context.Context, studentID, courseID string) error {
	return svc.ledger.Unenroll(ctx, studentID, courseID)
}

func (svc *service) SubmitAssignment(ctx context.Context, studentID, assignmentID, payload string) (ledger.AssignmentSubmission, error) {
	if _, err := svc.catalog.GetAssignment(ctx, assignmentID); err != nil {
		return ledger.AssignmentSubmission{}, err
	}
	payload = core.CleanString(payload)
	if payload == "" {
		return ledger.AssignmentSubmission{}, core.NewValidationError(
			ErrEmptyPayload, core.FieldError{Field: "submission", Error: ErrEmptyPayload.Error()},
		)
	}
	return svc.ledger.RecordAssignmentSubmission(ctx, studentID, assignmentID, payload)
}

// SubmitTest scores the answers and records the attempt. Only one attempt per test is allowed.
func (svc *service) SubmitTest(ctx context.Context, studentID, testID string, answers map[int]string) (ledger.TestAttempt, error) {
	t, err := svc.catalog.GetTest(ctx, testID)
	if err != nil {
		return ledger.TestAttempt{}, err
	}

	_, err = svc.ledger.FindTestAttempt(ctx, studentID, testID)
	switch errors.Cause(err) {
	case nil:
		return ledger.TestAttempt{}, ledger.ErrDuplicateSubmission
	case ledger.ErrRecordNotFound: // pass
	default:
		return ledger.TestAttempt{}, errors.Wrap(err, "finding test attempt")
	}

	if err := scoring.Check(t.Questions); err != nil {
		svc.logger.Warn("grading.SubmitTest: scoring an invalid test", err, map[string]interface{}{"testID": testID})
	}
	res := scoring.Score(t.Questions, answers)
	return svc.ledger.RecordTestAttempt(ctx, studentID, testID, res)
}

func (svc *service) AssignmentResult(ctx context.Context, studentID, assignmentID string) (ledger.AssignmentSubmission, error) {
	return svc.ledger.FindAssignmentSubmission(ctx, studentID, assignmentID)
}

func (svc *service) TestResult(ctx context.Context, studentID, testID string) (ledger.TestAttempt, error) {
	return svc.ledger.FindTestAttempt(ctx, studentID, testID)
}

func (svc *service) Dashboard(ctx context.Context, studentID string) (Dashboard, error) {
	usr, err := svc.users.GetByID(ctx, studentID)
	if err != nil {
		return Dashboard{}, err
	}
	rec, err := svc.ledger.Record(ctx, studentID)
	if err != nil {
		return Dashboard{}, errors.Wrap(err, "getting ledger record")
	}

	courses := make(map[string]catalog.Course)
	getCourse := func(id string) (catalog.Course, bool, error) {
		if c, ok := courses[id]; ok {
			return c, true, nil
		}
		c, err := svc.catalog.GetCourse(ctx, id)
		if err != nil {
			if errors.Cause(err) == catalog.ErrCourseNotFound {
				return catalog.Course{}, false, nil
			}
			return catalog.Course{}, false, err
		}
		courses[id] = c
		return c, true, nil
	}

	dash := Dashboard{
		Student:     usr,
		Courses:     make([]DashboardCourse, 0, len(rec.Enrollments)),
		Submissions: make([]DashboardSubmission, 0, len(rec.Submissions)),
		Attempts:    make([]DashboardAttempt, 0, len(rec.Attempts)),
	}
	for _, e := range rec.Enrollments {
		c, ok, err := getCourse(e.CourseID)
		if err != nil {
			return Dashboard{}, errors.Wrap(err, "getting course")
		}
		if ok {
			dash.Courses = append(dash.Courses, DashboardCourse{Course: c, EnrolledAt: e.EnrolledAt})
		}
	}
	for _, s := range rec.Submissions {
		a, err := svc.catalog.GetAssignment(ctx, s.AssignmentID)
		if err != nil {
			if errors.Cause(err) == catalog.ErrAssignmentNotFound {
				continue
			}
			return Dashboard{}, errors.Wrap(err, "getting assignment")
		}
		c, _, err := getCourse(a.CourseID)
		if err != nil {
			return Dashboard{}, errors.Wrap(err, "getting course")
		}
		dash.Submissions = append(dash.Submissions, DashboardSubmission{Assignment: a, Course: c, Submission: s})
	}
	for _, at := range rec.Attempts {
		t, err := svc.catalog.GetStudentTest(ctx, at.TestID)
		if err != nil {
			if errors.Cause(err) == catalog.ErrTestNotFound {
				continue
			}
			return Dashboard{}, errors.Wrap(err, "getting test")
		}
		c, _, err := getCourse(t.CourseID)
		if err != nil {
			return Dashboard{}, errors.Wrap(err, "getting course")
		}
		dash.Attempts = append(dash.Attempts, DashboardAttempt{Test: t, Course: c, Attempt: at})
	}
	return dash, nil
}

// Instructor flows

func (svc *service) ownedAssignment(ctx context.Context, instructorID, assignmentID string) (catalog.Assignment, error) {
	a, err := svc.catalog.GetAssignment(ctx, assignmentID)
	if err != nil {
		return catalog.Assignment{}, err
	}
	if a.CreatedBy != instructorID {
		return catalog.Assignment{}, catalog.ErrForbidden
	}
	return a, nil
}

func (svc *service) ownedTest(ctx context.Context, instructorID, testID string) (catalog.Test, error) {
	t, err := svc.catalog.GetTest(ctx, testID)
	if err != nil {
		return catalog.Test{}, err
	}
	if t.CreatedBy != instructorID {
		return catalog.Test{}, catalog.ErrForbidden
	}
	return t, nil
}

// GradeAssignment overrides the score of a student's submission.
// The check order is: assignment exists, instructor owns it, score is in range, submission exists.
func (svc *service) GradeAssignment(ctx context.Context, instructorID, assignmentID, studentID string, score float64) (ledger.AssignmentSubmission, error) {
	a, err := svc.ownedAssignment(ctx, instructorID, assignmentID)
	if err != nil {
		return ledger.AssignmentSubmission{}, err
	}
	if !validScore(score) {
		return ledger.AssignmentSubmission{}, ErrInvalidScore
	}
	sub, err := svc.ledger.OverrideAssignmentScore(ctx, studentID, assignmentID, score)
	if err != nil {
		return ledger.AssignmentSubmission{}, err
	}
	svc.notifyGraded(ctx, studentID, gradedEmailData{Kind: "assignment", Title: a.Title, Score: score})
	return sub, nil
}

// GradeTest overrides the score of a student's test attempt. The recorded answers are kept.
func (svc *service) GradeTest(ctx context.Context, instructorID, testID, studentID string, score float64) (ledger.TestAttempt, error) {
	t, err := svc.ownedTest(ctx, instructorID, testID)
	if err != nil {
		return ledger.TestAttempt{}, err
	}
	if !validScore(score) {
		return ledger.TestAttempt{}, ErrInvalidScore
	}
	attempt, err := svc.ledger.OverrideTestScore(ctx, studentID, testID, score)
	if err != nil {
		return ledger.TestAttempt{}, err
	}
	svc.notifyGraded(ctx, studentID, gradedEmailData{Kind: "test", Title: t.Title, Score: score})
	return attempt, nil
}

func (svc *service) notifyGraded(ctx context.Context, studentID string, data gradedEmailData) {
	usr, err := svc.users.GetByID(ctx, studentID)
	if err != nil {
		svc.logger.Error("grading.notifyGraded: finding student", err, map[string]interface{}{"studentID": studentID})
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Username, Address: usr.Email}},
		Subject:      "Your " + data.Kind + " has been graded",
		TemplateName: "graded",
		TemplateData: data,
	})
}

func (svc *service) studentsByID(ctx context.Context, ids []string) (map[string]user.User, error) {
	users, err := svc.users.GetManyByID(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "getting students")
	}
	byID := make(map[string]user.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return byID, nil
}

func (svc *service) AssignmentRoster(ctx context.Context, instructorID, assignmentID string) ([]AssignmentRosterEntry, error) {
	if _, err := svc.ownedAssignment(ctx, instructorID, assignmentID); err != nil {
		return nil, err
	}
	subs, err := svc.ledger.SubmissionsByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, errors.Wrap(err, "querying submissions")
	}

	ids := make([]string, 0, len(subs))
	for _, s := range subs {
		ids = append(ids, s.UserID)
	}
	students, err := svc.studentsByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	roster := make([]AssignmentRosterEntry, 0, len(subs))
	for _, s := range subs {
		if usr, ok := students[s.UserID]; ok {
			roster = append(roster, AssignmentRosterEntry{Student: usr, Submission: s})
		}
	}
	return roster, nil
}

func (svc *service) TestRoster(ctx context.Context, instructorID, testID string) ([]TestRosterEntry, error) {
	if _, err := svc.ownedTest(ctx, instructorID, testID); err != nil {
		return nil, err
	}
	attempts, err := svc.ledger.AttemptsByTest(ctx, testID)
	if err != nil {
		return nil, errors.Wrap(err, "querying attempts")
	}

	ids := make([]string, 0, len(attempts))
	for _, a := range attempts {
		ids = append(ids, a.UserID)
	}
	students, err := svc.studentsByID(ctx, ids)
	if err != nil {
		return nil, err
	}

	roster := make([]TestRosterEntry, 0, len(attempts))
	for _, a := range attempts {
		if usr, ok := students[a.UserID]; ok {
			roster = append(roster, TestRosterEntry{Student: usr, Attempt: a})
		}
	}
	return roster, nil
}
