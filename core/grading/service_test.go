package grading_test

import (
	"context"
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/grading"
	"github.com/trezcool/elimu/core/ledger"
	"github.com/trezcool/elimu/core/user"
	"github.com/trezcool/elimu/services/email"
	"github.com/trezcool/elimu/storage/database/inmem"
	"github.com/trezcool/elimu/testutil"
)

type fixture struct {
	svc        grading.Service
	ledger     ledger.Service
	catalog    catalog.Service
	mail       *emailsvc.ConsoleServiceMock
	instructor user.User
	other      user.User
	student    user.User
	course     catalog.Course
	assignment catalog.Assignment
	test       catalog.Test
}

func setup(t *testing.T) *fixture {
	conf := testutil.NewConfig()
	logger := testutil.NewLogger()
	core.ParseEmailTemplates(conf, logger)

	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	catRepo := inmemdb.NewCatalogRepository(db)

	f := &fixture{
		ledger:     ledger.NewService(inmemdb.NewLedgerRepository(db)),
		catalog:    catalog.NewService(catRepo, logger),
		mail:       emailsvc.NewConsoleServiceMock(conf, logger),
		instructor: testutil.CreateUser(t, usrRepo, "ada", "ada@test.cd", "", user.RoleInstructor),
		other:      testutil.CreateUser(t, usrRepo, "bob", "bob@test.cd", "", user.RoleInstructor),
		student:    testutil.CreateUser(t, usrRepo, "jon", "jon@test.cd", "", user.RoleStudent),
	}
	f.svc = grading.NewService(f.catalog, f.ledger, user.NewService(usrRepo), f.mail, logger)
	f.course = testutil.CreateCourse(t, catRepo, f.instructor.ID, "Algebra")
	f.assignment = testutil.CreateAssignment(t, catRepo, f.course, "Essay")
	f.test = testutil.CreateTest(t, catRepo, f.course, "Quiz", "A", "B", "C", "D")
	return f
}

func TestService_Enroll(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.Enroll(ctx, f.student.ID, "nope")
	assert.Equal(t, catalog.ErrCourseNotFound, errors.Cause(err))

	_, err = f.svc.Enroll(ctx, f.student.ID, f.course.ID)
	require.NoError(t, err)
	_, err = f.svc.Enroll(ctx, f.student.ID, f.course.ID)
	assert.Equal(t, ledger.ErrAlreadyEnrolled, errors.Cause(err))

	require.NoError(t, f.svc.Unenroll(ctx, f.student.ID, f.course.ID))
	require.NoError(t, f.svc.Unenroll(ctx, f.student.ID, f.course.ID))
}

func TestService_SubmitAssignment(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	tests := []struct {
		name         string
		assignmentID string
		payload      string
		wantErr      error
	}{
		{name: "unknown assignment", assignmentID: "nope", payload: "essay", wantErr: catalog.ErrAssignmentNotFound},
		{name: "blank payload", assignmentID: f.assignment.ID, payload: "  "},
		{name: "ok", assignmentID: f.assignment.ID, payload: " my essay "},
		{name: "twice", assignmentID: f.assignment.ID, payload: "again", wantErr: ledger.ErrDuplicateSubmission},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := f.svc.SubmitAssignment(ctx, f.student.ID, tt.assignmentID, tt.payload)
			switch {
			case tt.name == "blank payload":
				var verr *core.ValidationError
				require.True(t, errors.As(err, &verr), "err = %v", err)
				assert.Equal(t, "submission", verr.Fields[0].Field)
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, errors.Cause(err))
			default:
				require.NoError(t, err)
				assert.Equal(t, "my essay", sub.Payload)
				assert.False(t, sub.IsGraded())
			}
		})
	}
}

func TestService_SubmitTest(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.SubmitTest(ctx, f.student.ID, "nope", nil)
	assert.Equal(t, catalog.ErrTestNotFound, errors.Cause(err))

	attempt, err := f.svc.SubmitTest(ctx, f.student.ID, f.test.ID, map[int]string{0: "A", 1: "B", 2: "C", 3: "A"})
	require.NoError(t, err)
	assert.Equal(t, float64(75), attempt.Score.Float64)
	assert.Equal(t, 3, attempt.CorrectCount)
	assert.Equal(t, 4, attempt.TotalQuestions)
	assert.True(t, attempt.GradedAt.Valid)
	require.Len(t, attempt.Answers, 4)
	assert.Equal(t, f.test.Questions[3].ID, attempt.Answers[3].QuestionID)

	_, err = f.svc.SubmitTest(ctx, f.student.ID, f.test.ID, map[int]string{0: "A", 1: "B", 2: "C", 3: "D"})
	assert.Equal(t, ledger.ErrDuplicateSubmission, errors.Cause(err))

	got, err := f.svc.TestResult(ctx, f.student.ID, f.test.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(75), got.Score.Float64) // first attempt kept
}

func TestService_GradeTest(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	submitted, err := f.svc.SubmitTest(ctx, f.student.ID, f.test.ID, map[int]string{0: "A"})
	require.NoError(t, err)

	tests := []struct {
		name       string
		instructor string
		testID     string
		studentID  string
		score      float64
		wantErr    error
	}{
		{name: "unknown test", instructor: f.instructor.ID, testID: "nope", studentID: f.student.ID, score: 90, wantErr: catalog.ErrTestNotFound},
		{name: "not owner", instructor: f.other.ID, testID: f.test.ID, studentID: f.student.ID, score: 90, wantErr: catalog.ErrForbidden},
		{name: "score too high", instructor: f.instructor.ID, testID: f.test.ID, studentID: f.student.ID, score: 100.5, wantErr: grading.ErrInvalidScore},
		{name: "negative score", instructor: f.instructor.ID, testID: f.test.ID, studentID: f.student.ID, score: -1, wantErr: grading.ErrInvalidScore},
		{name: "NaN score", instructor: f.instructor.ID, testID: f.test.ID, studentID: f.student.ID, score: math.NaN(), wantErr: grading.ErrInvalidScore},
		{name: "no attempt", instructor: f.instructor.ID, testID: f.test.ID, studentID: f.other.ID, score: 90, wantErr: ledger.ErrRecordNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.GradeTest(ctx, tt.instructor, tt.testID, tt.studentID, tt.score)
			assert.Equal(t, tt.wantErr, errors.Cause(err))

			// nothing changed
			got, err := f.svc.TestResult(ctx, f.student.ID, f.test.ID)
			require.NoError(t, err)
			assert.Equal(t, submitted.Score, got.Score)
			assert.Equal(t, submitted.GradedAt, got.GradedAt)
		})
	}
	assert.Empty(t, f.mail.SentMessages())

	t.Run("ok", func(t *testing.T) {
		got, err := f.svc.GradeTest(ctx, f.instructor.ID, f.test.ID, f.student.ID, 100)
		require.NoError(t, err)
		assert.Equal(t, float64(100), got.Score.Float64)
		assert.Equal(t, submitted.Answers, got.Answers)
		assert.Equal(t, submitted.CorrectCount, got.CorrectCount)
		assert.Equal(t, submitted.SubmittedAt, got.SubmittedAt)

		sent := f.mail.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, f.student.Email, sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, `Your test "Quiz" has been graded.`)
		assert.Contains(t, sent[0].TextContent, "100.0 / 100")
		assert.Contains(t, sent[0].HTMLContent, "Quiz")
	})
}

func TestService_GradeAssignment(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.GradeAssignment(ctx, f.instructor.ID, f.assignment.ID, f.student.ID, 80)
	assert.Equal(t, ledger.ErrRecordNotFound, errors.Cause(err))

	sub, err := f.svc.SubmitAssignment(ctx, f.student.ID, f.assignment.ID, "my essay")
	require.NoError(t, err)

	_, err = f.svc.GradeAssignment(ctx, f.other.ID, f.assignment.ID, f.student.ID, 80)
	assert.Equal(t, catalog.ErrForbidden, errors.Cause(err))
	got, err := f.svc.AssignmentResult(ctx, f.student.ID, f.assignment.ID)
	require.NoError(t, err)
	assert.False(t, got.IsGraded())

	graded, err := f.svc.GradeAssignment(ctx, f.instructor.ID, f.assignment.ID, f.student.ID, 0)
	require.NoError(t, err)
	assert.True(t, graded.IsGraded())
	assert.Equal(t, float64(0), graded.Score.Float64)
	assert.Equal(t, sub.Payload, graded.Payload)
	assert.Equal(t, sub.SubmittedAt, graded.SubmittedAt)
	assert.Len(t, f.mail.SentMessages(), 1)

	// regrading is allowed
	graded, err = f.svc.GradeAssignment(ctx, f.instructor.ID, f.assignment.ID, f.student.ID, 95)
	require.NoError(t, err)
	assert.Equal(t, float64(95), graded.Score.Float64)
}

func TestService_rosters(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.SubmitAssignment(ctx, f.student.ID, f.assignment.ID, "my essay")
	require.NoError(t, err)
	_, err = f.svc.SubmitTest(ctx, f.student.ID, f.test.ID, map[int]string{0: "A", 1: "B"})
	require.NoError(t, err)

	aRoster, err := f.svc.AssignmentRoster(ctx, f.instructor.ID, f.assignment.ID)
	require.NoError(t, err)
	require.Len(t, aRoster, 1)
	assert.Equal(t, f.student.ID, aRoster[0].Student.ID)
	assert.Equal(t, "my essay", aRoster[0].Submission.Payload)

	tRoster, err := f.svc.TestRoster(ctx, f.instructor.ID, f.test.ID)
	require.NoError(t, err)
	require.Len(t, tRoster, 1)
	assert.Equal(t, float64(50), tRoster[0].Attempt.Score.Float64)

	_, err = f.svc.AssignmentRoster(ctx, f.other.ID, f.assignment.ID)
	assert.Equal(t, catalog.ErrForbidden, errors.Cause(err))
	_, err = f.svc.TestRoster(ctx, f.other.ID, f.test.ID)
	assert.Equal(t, catalog.ErrForbidden, errors.Cause(err))
}

func TestService_Dashboard(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.Enroll(ctx, f.student.ID, f.course.ID)
	require.NoError(t, err)
	_, err = f.svc.SubmitAssignment(ctx, f.student.ID, f.assignment.ID, "my essay")
	require.NoError(t, err)
	_, err = f.svc.SubmitTest(ctx, f.student.ID, f.test.ID, map[int]string{0: "A"})
	require.NoError(t, err)

	dash, err := f.svc.Dashboard(ctx, f.student.ID)
	require.NoError(t, err)
	assert.Equal(t, f.student.ID, dash.Student.ID)
	require.Len(t, dash.Courses, 1)
	assert.Equal(t, f.course.ID, dash.Courses[0].Course.ID)
	require.Len(t, dash.Submissions, 1)
	assert.Equal(t, f.course.ID, dash.Submissions[0].Course.ID)
	require.Len(t, dash.Attempts, 1)
	for _, q := range dash.Attempts[0].Test.Questions {
		assert.Empty(t, q.CorrectAnswer)
	}

	// records outlive the course; the dashboard leaves them out
	require.NoError(t, f.catalog.DeleteCourse(ctx, f.instructor.ID, f.course.ID))
	dash, err = f.svc.Dashboard(ctx, f.student.ID)
	require.NoError(t, err)
	assert.Empty(t, dash.Courses)
	assert.Empty(t, dash.Submissions)
	assert.Empty(t, dash.Attempts)

	rec, err := f.ledger.Record(ctx, f.student.ID)
	require.NoError(t, err)
	assert.Len(t, rec.Enrollments, 1)
	assert.Len(t, rec.Submissions, 1)
	assert.Len(t, rec.Attempts, 1)

	_, err = f.svc.Dashboard(ctx, "ghost")
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))
}
