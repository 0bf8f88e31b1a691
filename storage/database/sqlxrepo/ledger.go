package sqlxrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/ledger"
	"github.com/trezcool/elimu/core/scoring"
	"github.com/trezcool/elimu/core/user"
)

const (
	enrollmentColumns = "user_id, course_id, enrolled_at"
	submissionColumns = "id, user_id, assignment_id, payload, score, graded_at, submitted_at"
	attemptColumns    = "id, user_id, test_id, answers, total_questions, correct_count, score, graded_at, submitted_at"
)

type (
	enrollmentRow struct {
		UserID     string    `db:"user_id"`
		CourseID   string    `db:"course_id"`
		EnrolledAt time.Time `db:"enrolled_at"`
	}

	submissionRow struct {
		ID           string       `db:"id"`
		UserID       string       `db:"user_id"`
		AssignmentID string       `db:"assignment_id"`
		Payload      string       `db:"payload"`
		Score        null.Float64 `db:"score"`
		GradedAt     null.Time    `db:"graded_at"`
		SubmittedAt  time.Time    `db:"submitted_at"`
	}

	attemptRow struct {
		ID             string       `db:"id"`
		UserID         string       `db:"user_id"`
		TestID         string       `db:"test_id"`
		Answers        string       `db:"answers"` // JSON array
		TotalQuestions int          `db:"total_questions"`
		CorrectCount   int          `db:"correct_count"`
		Score          null.Float64 `db:"score"`
		GradedAt       null.Time    `db:"graded_at"`
		SubmittedAt    time.Time    `db:"submitted_at"`
	}
)

func (r enrollmentRow) toEnrollment() ledger.Enrollment {
	return ledger.Enrollment{UserID: r.UserID, CourseID: r.CourseID, EnrolledAt: utc(r.EnrolledAt)}
}

func (r submissionRow) toSubmission() ledger.AssignmentSubmission {
	return ledger.AssignmentSubmission{
		ID:           r.ID,
		UserID:       r.UserID,
		AssignmentID: r.AssignmentID,
		Payload:      r.Payload,
		Score:        r.Score,
		GradedAt:     utcNull(r.GradedAt),
		SubmittedAt:  utc(r.SubmittedAt),
	}
}

func (r attemptRow) toAttempt() (ledger.TestAttempt, error) {
	answers := []scoring.Answer{}
	if err := json.Unmarshal([]byte(r.Answers), &answers); err != nil {
		return ledger.TestAttempt{}, errors.Wrapf(err, "decoding answers of attempt %s", r.ID)
	}
	return ledger.TestAttempt{
		ID:             r.ID,
		UserID:         r.UserID,
		TestID:         r.TestID,
		Answers:        answers,
		TotalQuestions: r.TotalQuestions,
		CorrectCount:   r.CorrectCount,
		Score:          r.Score,
		GradedAt:       utcNull(r.GradedAt),
		SubmittedAt:    utc(r.SubmittedAt),
	}, nil
}

type ledgerRepository struct {
	db core.DB
}

var _ ledger.Repository = (*ledgerRepository)(nil)

func NewLedgerRepository(db core.DB) ledger.Repository {
	return &ledgerRepository{db: db}
}

// insertErr maps constraint violations of a ledger insert.
func insertErr(err error, duplicate error, msg string) error {
	switch {
	case isUniqueViolation(err):
		return duplicate
	case isForeignKeyViolation(err):
		return user.ErrNotFound
	default:
		return errors.Wrap(err, msg)
	}
}

// filterClause builds the WHERE clause of a ledger query; entityCol is the assignment or test column.
func filterClause(filter ledger.Filter, entityCol string) (string, []interface{}) {
	where := " WHERE 1 = 1"
	var args []interface{}
	if filter.UserID != "" {
		where += " AND user_id = ?"
		args = append(args, filter.UserID)
	}
	if filter.EntityID != "" {
		where += " AND " + entityCol + " = ?"
		args = append(args, filter.EntityID)
	}
	return where + " ORDER BY submitted_at, id", args
}

// Enrollments

func (repo *ledgerRepository) CreateEnrollment(ctx context.Context, e ledger.Enrollment) (ledger.Enrollment, error) {
	_, err := exec(ctx, repo.db,
		"INSERT INTO enrollments ("+enrollmentColumns+") VALUES (?, ?, ?)",
		e.UserID, e.CourseID, e.EnrolledAt,
	)
	if err != nil {
		return ledger.Enrollment{}, insertErr(err, ledger.ErrAlreadyEnrolled, "inserting enrollment")
	}
	return e, nil
}

func (repo *ledgerRepository) DeleteEnrollments(ctx context.Context, userID, courseID string) error {
	_, err := exec(ctx, repo.db, "DELETE FROM enrollments WHERE user_id = ? AND course_id = ?", userID, courseID)
	return errors.Wrap(err, "deleting enrollments")
}

func (repo *ledgerRepository) GetEnrollment(ctx context.Context, userID, courseID string) (ledger.Enrollment, error) {
	var row enrollmentRow
	q := "SELECT " + enrollmentColumns + " FROM enrollments WHERE user_id = ? AND course_id = ?"
	if err := get(ctx, repo.db, &row, q, userID, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Enrollment{}, ledger.ErrRecordNotFound
		}
		return ledger.Enrollment{}, errors.Wrap(err, "selecting enrollment")
	}
	return row.toEnrollment(), nil
}

func (repo *ledgerRepository) QueryEnrollments(ctx context.Context, userID string) ([]ledger.Enrollment, error) {
	var rows []enrollmentRow
	q := "SELECT " + enrollmentColumns + " FROM enrollments WHERE user_id = ? ORDER BY enrolled_at, course_id"
	if err := sel(ctx, repo.db, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "selecting enrollments")
	}
	enrollments := make([]ledger.Enrollment, 0, len(rows))
	for _, r := range rows {
		enrollments = append(enrollments, r.toEnrollment())
	}
	return enrollments, nil
}

func (repo *ledgerRepository) CountEnrollments(ctx context.Context, courseID string) (int, error) {
	var n int
	if err := get(ctx, repo.db, &n, "SELECT COUNT(*) FROM enrollments WHERE course_id = ?", courseID); err != nil {
		return 0, errors.Wrap(err, "counting enrollments")
	}
	return n, nil
}

// Assignment submissions

func (repo *ledgerRepository) CreateAssignmentSubmission(ctx context.Context, s ledger.AssignmentSubmission) (ledger.AssignmentSubmission, error) {
	_, err := exec(ctx, repo.db,
		"INSERT INTO assignment_submissions ("+submissionColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		s.ID, s.UserID, s.AssignmentID, s.Payload, s.Score, s.GradedAt, s.SubmittedAt,
	)
	if err != nil {
		return ledger.AssignmentSubmission{}, insertErr(err, ledger.ErrDuplicateSubmission, "inserting submission")
	}
	return s, nil
}

func (repo *ledgerRepository) GetAssignmentSubmission(ctx context.Context, userID, assignmentID string) (ledger.AssignmentSubmission, error) {
	var row submissionRow
	q := "SELECT " + submissionColumns + " FROM assignment_submissions WHERE user_id = ? AND assignment_id = ?"
	if err := get(ctx, repo.db, &row, q, userID, assignmentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.AssignmentSubmission{}, ledger.ErrRecordNotFound
		}
		return ledger.AssignmentSubmission{}, errors.Wrap(err, "selecting submission")
	}
	return row.toSubmission(), nil
}

func (repo *ledgerRepository) QueryAssignmentSubmissions(ctx context.Context, filter ledger.Filter) ([]ledger.AssignmentSubmission, error) {
	where, args := filterClause(filter, "assignment_id")
	var rows []submissionRow
	if err := sel(ctx, repo.db, &rows, "SELECT "+submissionColumns+" FROM assignment_submissions"+where, args...); err != nil {
		return nil, errors.Wrap(err, "selecting submissions")
	}
	subs := make([]ledger.AssignmentSubmission, 0, len(rows))
	for _, r := range rows {
		subs = append(subs, r.toSubmission())
	}
	return subs, nil
}

// UpdateAssignmentScore is a single conditional update: it never creates a submission.
func (repo *ledgerRepository) UpdateAssignmentScore(ctx context.Context, userID, assignmentID string, score float64, gradedAt time.Time) (ledger.AssignmentSubmission, error) {
	n, err := exec(ctx, repo.db,
		"UPDATE assignment_submissions SET score = ?, graded_at = ? WHERE user_id = ? AND assignment_id = ?",
		score, gradedAt, userID, assignmentID,
	)
	if err != nil {
		return ledger.AssignmentSubmission{}, errors.Wrap(err, "updating submission score")
	}
	if n == 0 {
		return ledger.AssignmentSubmission{}, ledger.ErrRecordNotFound
	}
	return repo.GetAssignmentSubmission(ctx, userID, assignmentID)
}

// Test attempts

func (repo *ledgerRepository) CreateTestAttempt(ctx context.Context, a ledger.TestAttempt) (ledger.TestAttempt, error) {
	answers := a.Answers
	if answers == nil {
		answers = []scoring.Answer{}
	}
	raw, err := json.Marshal(answers)
	if err != nil {
		return ledger.TestAttempt{}, errors.Wrap(err, "encoding answers")
	}

	_, err = exec(ctx, repo.db,
		"INSERT INTO test_attempts ("+attemptColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		a.ID, a.UserID, a.TestID, string(raw), a.TotalQuestions, a.CorrectCount, a.Score, a.GradedAt, a.SubmittedAt,
	)
	if err != nil {
		return ledger.TestAttempt{}, insertErr(err, ledger.ErrDuplicateSubmission, "inserting attempt")
	}
	return a, nil
}

func (repo *ledgerRepository) GetTestAttempt(ctx context.Context, userID, testID string) (ledger.TestAttempt, error) {
	var row attemptRow
	q := "SELECT " + attemptColumns + " FROM test_attempts WHERE user_id = ? AND test_id = ?"
	if err := get(ctx, repo.db, &row, q, userID, testID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.TestAttempt{}, ledger.ErrRecordNotFound
		}
		return ledger.TestAttempt{}, errors.Wrap(err, "selecting attempt")
	}
	return row.toAttempt()
}

func (repo *ledgerRepository) QueryTestAttempts(ctx context.Context, filter ledger.Filter) ([]ledger.TestAttempt, error) {
	where, args := filterClause(filter, "test_id")
	var rows []attemptRow
	if err := sel(ctx, repo.db, &rows, "SELECT "+attemptColumns+" FROM test_attempts"+where, args...); err != nil {
		return nil, errors.Wrap(err, "selecting attempts")
	}
	attempts := make([]ledger.TestAttempt, 0, len(rows))
	for _, r := range rows {
		a, err := r.toAttempt()
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, nil
}

func (repo *ledgerRepository) UpdateTestScore(ctx context.Context, userID, testID string, score float64, gradedAt time.Time) (ledger.TestAttempt, error) {
	n, err := exec(ctx, repo.db,
		"UPDATE test_attempts SET score = ?, graded_at = ? WHERE user_id = ? AND test_id = ?",
		score, gradedAt, userID, testID,
	)
	if err != nil {
		return ledger.TestAttempt{}, errors.Wrap(err, "updating attempt score")
	}
	if n == 0 {
		return ledger.TestAttempt{}, ledger.ErrRecordNotFound
	}
	return repo.GetTestAttempt(ctx, userID, testID)
}
