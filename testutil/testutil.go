// Package testutil holds helpers shared by the test suites.
package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/user"
	"github.com/trezcool/elimu/services/logger"
	"github.com/trezcool/elimu/storage/database"
)

// NewConfig returns a test configuration backed by a private in-memory SQLite database.
func NewConfig() *core.Config {
	return &core.Config{
		AppName:          "Elimu",
		Build:            "test",
		Env:              "TEST",
		Debug:            false,
		TestMode:         true,
		SecretKey:        "test-secret-key",
		DefaultFromEmail: "Elimu <noreply@elimu.test>",
		FrontendBaseURL:  "http://elimu.test",
		Server: core.ServerConfig{
			Address:                   ":0",
			ShutdownTimeout:           time.Second,
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: time.Hour,
			DisableReqLogs:            true,
		},
		Database: core.DatabaseConfig{
			Engine: database.EngineSQLite,
			Name:   ":memory:",
		},
		Jobs: core.JobsConfig{
			ReconcileSchedule: "@every 1h",
		},
	}
}

// NewLogger returns a logger that reports nowhere.
func NewLogger() core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), NewConfig())
}

// NewValidate returns a validator with every app validator registered.
func NewValidate() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	catalog.InitValidators(validate, translator)
	return validate
}

// PrepareDB opens a fresh migrated in-memory database, closed at the end of the test.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := database.Open(NewConfig())
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(context.Background(), db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateUser(t *testing.T, repo user.Repository, uname, email, pwd, role string, createdAt ...time.Time) user.User {
	t.Helper()

	tstamp := core.NowFunc()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC().Truncate(time.Microsecond)
	}
	usr := user.User{
		ID:        uuid.NewString(),
		Username:  uname,
		Email:     email,
		Role:      role,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateCourse(t *testing.T, repo catalog.Repository, ownerID, title string, createdAt ...time.Time) catalog.Course {
	t.Helper()

	tstamp := core.NowFunc()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC().Truncate(time.Microsecond)
	}
	c, err := repo.CreateCourse(context.Background(), catalog.Course{
		ID:          uuid.NewString(),
		Title:       title,
		Instructor:  "Prof. " + title,
		Description: "All about " + title,
		Price:       10,
		CreatedBy:   ownerID,
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	})
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return c
}

func CreateAssignment(t *testing.T, repo catalog.Repository, course catalog.Course, title string) catalog.Assignment {
	t.Helper()

	now := core.NowFunc()
	a, err := repo.CreateAssignment(context.Background(), catalog.Assignment{
		ID:          uuid.NewString(),
		CourseID:    course.ID,
		Title:       title,
		Description: "Write about " + title,
		CreatedBy:   course.CreatedBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		t.Fatalf("CreateAssignment() failed: %v", err)
	}
	return a
}

// CreateTest creates a test whose questions have options A to D; correct holds each question's answer.
func CreateTest(t *testing.T, repo catalog.Repository, course catalog.Course, title string, correct ...string) catalog.Test {
	t.Helper()

	now := core.NowFunc()
	questions := make([]catalog.Question, 0, len(correct))
	for i, ans := range correct {
		questions = append(questions, catalog.Question{
			ID:            uuid.NewString(),
			Position:      i,
			Prompt:        "Pick the right one",
			Options:       []string{"A", "B", "C", "D"},
			CorrectAnswer: ans,
		})
	}
	tst, err := repo.CreateTest(context.Background(), catalog.Test{
		ID:        uuid.NewString(),
		CourseID:  course.ID,
		Title:     title,
		CreatedBy: course.CreatedBy,
		Questions: questions,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("CreateTest() failed: %v", err)
	}
	return tst
}
