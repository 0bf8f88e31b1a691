package inmemdb

import (
	"context"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/elimu/core/ledger"
	"github.com/trezcool/elimu/core/scoring"
	"github.com/trezcool/elimu/core/user"
)

type ledgerRepository struct {
	db *DB
}

var _ ledger.Repository = (*ledgerRepository)(nil)

func NewLedgerRepository(db *DB) ledger.Repository {
	return &ledgerRepository{db: db}
}

func copyAttempt(a ledger.TestAttempt) ledger.TestAttempt {
	answers := make([]scoring.Answer, len(a.Answers))
	for i, ans := range a.Answers {
		if ans.SelectedAnswer != nil {
			sel := *ans.SelectedAnswer
			ans.SelectedAnswer = &sel
		}
		answers[i] = ans
	}
	a.Answers = answers
	return a
}

// userExists must be called with the lock held.
func (repo *ledgerRepository) userExists(id string) bool {
	_, ok := repo.db.users[id]
	return ok
}

// Enrollments

func (repo *ledgerRepository) CreateEnrollment(_ context.Context, e ledger.Enrollment) (ledger.Enrollment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if !repo.userExists(e.UserID) {
		return ledger.Enrollment{}, user.ErrNotFound
	}
	for _, existing := range repo.db.enrollments {
		if existing.UserID == e.UserID && existing.CourseID == e.CourseID {
			return ledger.Enrollment{}, ledger.ErrAlreadyEnrolled
		}
	}
	repo.db.enrollments = append(repo.db.enrollments, e)
	return e, nil
}

func (repo *ledgerRepository) DeleteEnrollments(_ context.Context, userID, courseID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	repo.db.enrollments = filterOut(repo.db.enrollments, func(i int) bool {
		e := repo.db.enrollments[i]
		return e.UserID == userID && e.CourseID == courseID
	})
	return nil
}

func (repo *ledgerRepository) GetEnrollment(_ context.Context, userID, courseID string) (ledger.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, e := range repo.db.enrollments {
		if e.UserID == userID && e.CourseID == courseID {
			return e, nil
		}
	}
	return ledger.Enrollment{}, ledger.ErrRecordNotFound
}

func (repo *ledgerRepository) QueryEnrollments(_ context.Context, userID string) ([]ledger.Enrollment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	enrollments := make([]ledger.Enrollment, 0)
	for _, e := range repo.db.enrollments {
		if e.UserID == userID {
			enrollments = append(enrollments, e)
		}
	}
	return enrollments, nil
}

func (repo *ledgerRepository) CountEnrollments(_ context.Context, courseID string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var n int
	for _, e := range repo.db.enrollments {
		if e.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

// Assignment submissions

func (repo *ledgerRepository) CreateAssignmentSubmission(_ context.Context, s ledger.AssignmentSubmission) (ledger.AssignmentSubmission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if !repo.userExists(s.UserID) {
		return ledger.AssignmentSubmission{}, user.ErrNotFound
	}
	for _, existing := range repo.db.submissions {
		if existing.UserID == s.UserID && existing.AssignmentID == s.AssignmentID {
			return ledger.AssignmentSubmission{}, ledger.ErrDuplicateSubmission
		}
	}
	repo.db.submissions = append(repo.db.submissions, s)
	return s, nil
}

func (repo *ledgerRepository) GetAssignmentSubmission(_ context.Context, userID, assignmentID string) (ledger.AssignmentSubmission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, s := range repo.db.submissions {
		if s.UserID == userID && s.AssignmentID == assignmentID {
			return s, nil
		}
	}
	return ledger.AssignmentSubmission{}, ledger.ErrRecordNotFound
}

func (repo *ledgerRepository) QueryAssignmentSubmissions(_ context.Context, filter ledger.Filter) ([]ledger.AssignmentSubmission, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	subs := make([]ledger.AssignmentSubmission, 0)
	for _, s := range repo.db.submissions {
		if filter.UserID != "" && s.UserID != filter.UserID {
			continue
		}
		if filter.EntityID != "" && s.AssignmentID != filter.EntityID {
			continue
		}
		subs = append(subs, s)
	}
	return subs, nil
}

func (repo *ledgerRepository) UpdateAssignmentScore(_ context.Context, userID, assignmentID string, score float64, gradedAt time.Time) (ledger.AssignmentSubmission, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for i := range repo.db.submissions {
		s := &repo.db.submissions[i]
		if s.UserID == userID && s.AssignmentID == assignmentID {
			s.Score = null.Float64From(score)
			s.GradedAt = null.TimeFrom(gradedAt)
			return *s, nil
		}
	}
	return ledger.AssignmentSubmission{}, ledger.ErrRecordNotFound
}

// Test attempts

func (repo *ledgerRepository) CreateTestAttempt(_ context.Context, a ledger.TestAttempt) (ledger.TestAttempt, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if !repo.userExists(a.UserID) {
		return ledger.TestAttempt{}, user.ErrNotFound
	}
	for _, existing := range repo.db.attempts {
		if existing.UserID == a.UserID && existing.TestID == a.TestID {
			return ledger.TestAttempt{}, ledger.ErrDuplicateSubmission
		}
	}
	repo.db.attempts = append(repo.db.attempts, copyAttempt(a))
	return a, nil
}

func (repo *ledgerRepository) GetTestAttempt(_ context.Context, userID, testID string) (ledger.TestAttempt, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, a := range repo.db.attempts {
		if a.UserID == userID && a.TestID == testID {
			return copyAttempt(a), nil
		}
	}
	return ledger.TestAttempt{}, ledger.ErrRecordNotFound
}

func (repo *ledgerRepository) QueryTestAttempts(_ context.Context, filter ledger.Filter) ([]ledger.TestAttempt, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	attempts := make([]ledger.TestAttempt, 0)
	for _, a := range repo.db.attempts {
		if filter.UserID != "" && a.UserID != filter.UserID {
			continue
		}
		if filter.EntityID != "" && a.TestID != filter.EntityID {
			continue
		}
		attempts = append(attempts, copyAttempt(a))
	}
	return attempts, nil
}

func (repo *ledgerRepository) UpdateTestScore(_ context.Context, userID, testID string, score float64, gradedAt time.Time) (ledger.TestAttempt, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for i := range repo.db.attempts {
		a := &repo.db.attempts[i]
		if a.UserID == userID && a.TestID == testID {
			a.Score = null.Float64From(score)
			a.GradedAt = null.TimeFrom(gradedAt)
			return copyAttempt(*a), nil
		}
	}
	return ledger.TestAttempt{}, ledger.ErrRecordNotFound
}
