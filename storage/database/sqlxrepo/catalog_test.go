package sqlxrepo_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/elimu/core/catalog"
	"github.com/trezcool/elimu/core/user"
	"github.com/trezcool/elimu/storage/database/sqlxrepo"
	"github.com/trezcool/elimu/testutil"
)

func TestCatalogRepository_courses(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepo.NewUserRepository(db)
	repo := sqlxrepo.NewCatalogRepository(db)

	ada := testutil.CreateUser(t, usrRepo, "ada", "ada@test.cd", "", user.RoleInstructor)
	bob := testutil.CreateUser(t, usrRepo, "bob", "bob@test.cd", "", user.RoleInstructor)

	now := time.Now()
	old := testutil.CreateCourse(t, repo, ada.ID, "Algebra", now.Add(-2*time.Hour))
	mid := testutil.CreateCourse(t, repo, bob.ID, "Biology", now.Add(-time.Hour))
	recent := testutil.CreateCourse(t, repo, ada.ID, "Chemistry", now)

	tests := []struct {
		name    string
		filter  catalog.CourseFilter
		wantIDs []string
	}{
		{name: "all, newest first", wantIDs: []string{recent.ID, mid.ID, old.ID}},
		{name: "by owner", filter: catalog.CourseFilter{CreatedBy: ada.ID}, wantIDs: []string{recent.ID, old.ID}},
		{name: "unknown owner", filter: catalog.CourseFilter{CreatedBy: "nobody"}, wantIDs: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			courses, err := repo.QueryCourses(ctx, tt.filter)
			require.NoError(t, err)
			ids := make([]string, 0, len(courses))
			for _, c := range courses {
				ids = append(ids, c.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}

	t.Run("update", func(t *testing.T) {
		upd := mid
		upd.Title = "Biology II"
		upd.Price = 0
		got, err := repo.UpdateCourse(ctx, upd)
		require.NoError(t, err)
		assert.Equal(t, "Biology II", got.Title)
		assert.Equal(t, float64(0), got.Price)
		assert.Equal(t, bob.ID, got.CreatedBy)

		upd.ID = "nope"
		_, err = repo.UpdateCourse(ctx, upd)
		assert.Equal(t, catalog.ErrCourseNotFound, errors.Cause(err))
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := repo.GetCourse(ctx, "nope")
		assert.Equal(t, catalog.ErrCourseNotFound, errors.Cause(err))
	})
}

func TestCatalogRepository_children(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepo.NewUserRepository(db)
	repo := sqlxrepo.NewCatalogRepository(db)

	ada := testutil.CreateUser(t, usrRepo, "ada", "ada@test.cd", "", user.RoleInstructor)
	course := testutil.CreateCourse(t, repo, ada.ID, "Algebra")
	other := testutil.CreateCourse(t, repo, ada.ID, "Geometry")

	t.Run("assignment crud", func(t *testing.T) {
		a := testutil.CreateAssignment(t, repo, course, "Essay")

		got, err := repo.GetAssignment(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, course.ID, got.CourseID)
		assert.Equal(t, ada.ID, got.CreatedBy)

		got.Title = "Long essay"
		got, err = repo.UpdateAssignment(ctx, got)
		require.NoError(t, err)
		assert.Equal(t, "Long essay", got.Title)

		list, err := repo.QueryAssignments(ctx, course.ID)
		require.NoError(t, err)
		assert.Len(t, list, 1)

		require.NoError(t, repo.DeleteAssignment(ctx, a.ID))
		_, err = repo.GetAssignment(ctx, a.ID)
		assert.Equal(t, catalog.ErrAssignmentNotFound, errors.Cause(err))
		assert.Equal(t, catalog.ErrAssignmentNotFound, errors.Cause(repo.DeleteAssignment(ctx, a.ID)))
	})

	t.Run("assignment of missing course", func(t *testing.T) {
		_, err := repo.CreateAssignment(ctx, catalog.Assignment{
			ID: "a-1", CourseID: "nope", Title: "Essay", Description: "Write an essay", CreatedBy: ada.ID,
		})
		assert.Equal(t, catalog.ErrCourseNotFound, errors.Cause(err))
	})

	t.Run("test with questions", func(t *testing.T) {
		tst := testutil.CreateTest(t, repo, course, "Quiz", "A", "C", "D")

		got, err := repo.GetTest(ctx, tst.ID)
		require.NoError(t, err)
		require.Len(t, got.Questions, 3)
		for i, q := range got.Questions {
			assert.Equal(t, i, q.Position)
			assert.Equal(t, tst.Questions[i].ID, q.ID)
			assert.Equal(t, []string{"A", "B", "C", "D"}, q.Options)
		}
		assert.Equal(t, "C", got.Questions[1].CorrectAnswer)

		got.Title = "Pop quiz"
		got, err = repo.UpdateTest(ctx, got)
		require.NoError(t, err)
		assert.Equal(t, "Pop quiz", got.Title)
		assert.Len(t, got.Questions, 3)

		_ = testutil.CreateTest(t, repo, course, "Final", "B")
		_ = testutil.CreateTest(t, repo, other, "Elsewhere", "B")
		list, err := repo.QueryTests(ctx, course.ID)
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.ElementsMatch(t, []int{3, 1}, []int{len(list[0].Questions), len(list[1].Questions)})

		require.NoError(t, repo.DeleteTest(ctx, tst.ID))
		_, err = repo.GetTest(ctx, tst.ID)
		assert.Equal(t, catalog.ErrTestNotFound, errors.Cause(err))
	})

	t.Run("test of missing course", func(t *testing.T) {
		_, err := repo.CreateTest(ctx, catalog.Test{
			ID: "t-1", CourseID: "nope", Title: "Quiz", CreatedBy: ada.ID,
			Questions: []catalog.Question{{ID: "q-1", Prompt: "Pick one", Options: []string{"A", "B"}, CorrectAnswer: "A"}},
		})
		assert.Equal(t, catalog.ErrCourseNotFound, errors.Cause(err))

		// nothing was written
		var n int
		require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM questions WHERE id = 'q-1'"))
		assert.Equal(t, 0, n)
	})
}

func TestCatalogRepository_DeleteCourse(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepo.NewUserRepository(db)
	repo := sqlxrepo.NewCatalogRepository(db)

	ada := testutil.CreateUser(t, usrRepo, "ada", "ada@test.cd", "", user.RoleInstructor)
	course := testutil.CreateCourse(t, repo, ada.ID, "Algebra")
	kept := testutil.CreateCourse(t, repo, ada.ID, "Geometry")
	testutil.CreateAssignment(t, repo, course, "Essay 1")
	testutil.CreateAssignment(t, repo, course, "Essay 2")
	testutil.CreateTest(t, repo, course, "Quiz", "A", "B")
	keptTest := testutil.CreateTest(t, repo, kept, "Quiz", "A")

	require.NoError(t, repo.DeleteCourse(ctx, course.ID))

	_, err := repo.GetCourse(ctx, course.ID)
	assert.Equal(t, catalog.ErrCourseNotFound, errors.Cause(err))

	assignments, err := repo.QueryAssignments(ctx, course.ID)
	require.NoError(t, err)
	assert.Empty(t, assignments)
	tests, err := repo.QueryTests(ctx, course.ID)
	require.NoError(t, err)
	assert.Empty(t, tests)

	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM questions"))
	assert.Equal(t, 1, n)
	_, err = repo.GetTest(ctx, keptTest.ID)
	assert.NoError(t, err)

	assert.Equal(t, catalog.ErrCourseNotFound, errors.Cause(repo.DeleteCourse(ctx, course.ID)))
}

func TestCatalogRepository_DeleteOrphans(t *testing.T) {
	ctx := context.Background()
	db := testutil.PrepareDB(t)
	usrRepo := sqlxrepo.NewUserRepository(db)
	repo := sqlxrepo.NewCatalogRepository(db)

	ada := testutil.CreateUser(t, usrRepo, "ada", "ada@test.cd", "", user.RoleInstructor)
	course := testutil.CreateCourse(t, repo, ada.ID, "Algebra")
	testutil.CreateAssignment(t, repo, course, "Essay")

	// orphans can only exist with foreign keys off, eg. rows written before the constraints
	db.MustExec("PRAGMA foreign_keys = OFF")
	db.MustExec(`INSERT INTO assignments (id, course_id, title, description, created_by, created_at, updated_at)
		VALUES ('orphan-a', 'gone', 'Lost', 'Lost assignment', ?, ?, ?)`, ada.ID, course.CreatedAt, course.CreatedAt)
	db.MustExec(`INSERT INTO tests (id, course_id, title, created_by, created_at, updated_at)
		VALUES ('orphan-t', 'gone', 'Lost', ?, ?, ?)`, ada.ID, course.CreatedAt, course.CreatedAt)
	db.MustExec(`INSERT INTO questions (id, test_id, position, prompt, options, correct_answer)
		VALUES ('orphan-q', 'orphan-t', 0, 'Lost prompt', '["A","B"]', 'A')`)
	db.MustExec("PRAGMA foreign_keys = ON")

	n, err := repo.DeleteOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var questions int
	require.NoError(t, db.Get(&questions, "SELECT COUNT(*) FROM questions"))
	assert.Equal(t, 0, questions)

	assignments, err := repo.QueryAssignments(ctx, course.ID)
	require.NoError(t, err)
	assert.Len(t, assignments, 1)

	n, err = repo.DeleteOrphans(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
