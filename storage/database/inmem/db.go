// Package inmemdb implements every repository in memory.
// All tables share one lock, so a cascade or a check-then-insert is atomic.
package inmemdb

import (
	"sync"

	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/ledger"
	"github.com/trezcool/elimu/core/user"
)

type (
	userRow struct {
		seq int
		usr user.User
	}
	courseRow struct {
		seq    int
		course catalog.Course
	}
	assignmentRow struct {
		seq int
		a   catalog.Assignment
	}
	testRow struct {
		seq int
		t   catalog.Test
	}
	pairKey struct {
		userID   string
		entityID string
	}
)

type DB struct {
	mu  sync.RWMutex
	seq int

	users       map[string]*userRow
	courses     map[string]*courseRow
	assignments map[string]*assignmentRow
	tests       map[string]*testRow

	// ledger tables keep insertion order
	enrollments []ledger.Enrollment
	submissions []ledger.AssignmentSubmission
	attempts    []ledger.TestAttempt
}

func NewDB() *DB {
	return &DB{
		users:       make(map[string]*userRow),
		courses:     make(map[string]*courseRow),
		assignments: make(map[string]*assignmentRow),
		tests:       make(map[string]*testRow),
	}
}

// nextSeq must be called with the write lock held.
func (db *DB) nextSeq() int {
	db.seq++
	return db.seq
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.users = make(map[string]*userRow)
	db.courses = make(map[string]*courseRow)
	db.assignments = make(map[string]*assignmentRow)
	db.tests = make(map[string]*testRow)
	db.enrollments = nil
	db.submissions = nil
	db.attempts = nil
}
