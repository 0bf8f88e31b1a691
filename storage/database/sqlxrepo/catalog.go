package sqlxrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
	"github.com/trezcool/elimu/core/catalog"
)

const (
	courseColumns     = "id, title, instructor, description, price, image, created_by, created_at, updated_at"
	assignmentColumns = "id, course_id, title, description, created_by, created_at, updated_at"
	testColumns       = "id, course_id, title, created_by, created_at, updated_at"
	questionColumns   = "id, test_id, position, prompt, options, correct_answer"
)

// newest first
var courseOrdering = core.DBOrdering{Field: "created_at"}

type (
	courseRow struct {
		ID          string    `db:"id"`
		Title       string    `db:"title"`
		Instructor  string    `db:"instructor"`
		Description string    `db:"description"`
		Price       float64   `db:"price"`
		Image       string    `db:"image"`
		CreatedBy   string    `db:"created_by"`
		CreatedAt   time.Time `db:"created_at"`
		UpdatedAt   time.Time `db:"updated_at"`
	}

	assignmentRow struct {
		ID          string    `db:"id"`
		CourseID    string    `db:"course_id"`
		Title       string    `db:"title"`
		Description string    `db:"description"`
		CreatedBy   string    `db:"created_by"`
		CreatedAt   time.Time `db:"created_at"`
		UpdatedAt   time.Time `db:"updated_at"`
	}

	testRow struct {
		ID        string    `db:"id"`
		CourseID  string    `db:"course_id"`
		Title     string    `db:"title"`
		CreatedBy string    `db:"created_by"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	questionRow struct {
		ID            string `db:"id"`
		TestID        string `db:"test_id"`
		Position      int    `db:"position"`
		Prompt        string `db:"prompt"`
		Options       string `db:"options"` // JSON array
		CorrectAnswer string `db:"correct_answer"`
	}
)

func (r courseRow) toCourse() catalog.Course {
	return catalog.Course{
		ID:          r.ID,
		Title:       r.Title,
		Instructor:  r.Instructor,
		Description: r.Description,
		Price:       r.Price,
		Image:       r.Image,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   utc(r.CreatedAt),
		UpdatedAt:   utc(r.UpdatedAt),
	}
}

func (r assignmentRow) toAssignment() catalog.Assignment {
	return catalog.Assignment{
		ID:          r.ID,
		CourseID:    r.CourseID,
		Title:       r.Title,
		Description: r.Description,
		CreatedBy:   r.CreatedBy,
		CreatedAt:   utc(r.CreatedAt),
		UpdatedAt:   utc(r.UpdatedAt),
	}
}

func (r testRow) toTest(questions []catalog.Question) catalog.Test {
	if questions == nil {
		questions = []catalog.Question{}
	}
	return catalog.Test{
		ID:        r.ID,
		CourseID:  r.CourseID,
		Title:     r.Title,
		CreatedBy: r.CreatedBy,
		Questions: questions,
		CreatedAt: utc(r.CreatedAt),
		UpdatedAt: utc(r.UpdatedAt),
	}
}

func (r questionRow) toQuestion() (catalog.Question, error) {
	var opts []string
	if err := json.Unmarshal([]byte(r.Options), &opts); err != nil {
		return catalog.Question{}, errors.Wrapf(err, "decoding options of question %s", r.ID)
	}
	return catalog.Question{
		ID:            r.ID,
		Position:      r.Position,
		Prompt:        r.Prompt,
		Options:       opts,
		CorrectAnswer: r.CorrectAnswer,
	}, nil
}

type catalogRepository struct {
	db core.DB
}

var _ catalog.Repository = (*catalogRepository)(nil)

func NewCatalogRepository(db core.DB) catalog.Repository {
	return &catalogRepository{db: db}
}

// Courses

func (repo *catalogRepository) CreateCourse(ctx context.Context, c catalog.Course) (catalog.Course, error) {
	_, err := exec(ctx, repo.db,
		"INSERT INTO courses ("+courseColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		c.ID, c.Title, c.Instructor, c.Description, c.Price, c.Image, c.CreatedBy, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return catalog.Course{}, errors.Wrap(err, "inserting course")
	}
	return c, nil
}

func (repo *catalogRepository) QueryCourses(ctx context.Context, filter catalog.CourseFilter) ([]catalog.Course, error) {
	q := "SELECT " + courseColumns + " FROM courses"
	var args []interface{}
	if filter.CreatedBy != "" {
		q += " WHERE created_by = ?"
		args = append(args, filter.CreatedBy)
	}
	q += " ORDER BY " + courseOrdering.String() + ", id"

	var rows []courseRow
	if err := sel(ctx, repo.db, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	courses := make([]catalog.Course, 0, len(rows))
	for _, r := range rows {
		courses = append(courses, r.toCourse())
	}
	return courses, nil
}

func (repo *catalogRepository) GetCourse(ctx context.Context, id string) (catalog.Course, error) {
	var row courseRow
	if err := get(ctx, repo.db, &row, "SELECT "+courseColumns+" FROM courses WHERE id = ?", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Course{}, catalog.ErrCourseNotFound
		}
		return catalog.Course{}, errors.Wrap(err, "selecting course")
	}
	return row.toCourse(), nil
}

func (repo *catalogRepository) UpdateCourse(ctx context.Context, c catalog.Course) (catalog.Course, error) {
	n, err := exec(ctx, repo.db,
		"UPDATE courses SET title = ?, instructor = ?, description = ?, price = ?, image = ?, updated_at = ? WHERE id = ?",
		c.Title, c.Instructor, c.Description, c.Price, c.Image, c.UpdatedAt, c.ID,
	)
	if err != nil {
		return catalog.Course{}, errors.Wrap(err, "updating course")
	}
	if n == 0 {
		return catalog.Course{}, catalog.ErrCourseNotFound
	}
	return repo.GetCourse(ctx, c.ID)
}

// DeleteCourse deletes the children first, then the course, in one transaction.
func (repo *catalogRepository) DeleteCourse(ctx context.Context, id string) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if _, err := exec(ctx, tx, "DELETE FROM assignments WHERE course_id = ?", id); err != nil {
			return errors.Wrap(err, "deleting assignments")
		}
		if _, err := exec(ctx, tx, "DELETE FROM questions WHERE test_id IN (SELECT id FROM tests WHERE course_id = ?)", id); err != nil {
			return errors.Wrap(err, "deleting questions")
		}
		if _, err := exec(ctx, tx, "DELETE FROM tests WHERE course_id = ?", id); err != nil {
			return errors.Wrap(err, "deleting tests")
		}
		n, err := exec(ctx, tx, "DELETE FROM courses WHERE id = ?", id)
		if err != nil {
			return errors.Wrap(err, "deleting course")
		}
		if n == 0 {
			return catalog.ErrCourseNotFound
		}
		return nil
	})
}

// Assignments

func (repo *catalogRepository) CreateAssignment(ctx context.Context, a catalog.Assignment) (catalog.Assignment, error) {
	_, err := exec(ctx, repo.db,
		"INSERT INTO assignments ("+assignmentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)",
		a.ID, a.CourseID, a.Title, a.Description, a.CreatedBy, a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return catalog.Assignment{}, catalog.ErrCourseNotFound
		}
		return catalog.Assignment{}, errors.Wrap(err, "inserting assignment")
	}
	return a, nil
}

func (repo *catalogRepository) GetAssignment(ctx context.Context, id string) (catalog.Assignment, error) {
	var row assignmentRow
	if err := get(ctx, repo.db, &row, "SELECT "+assignmentColumns+" FROM assignments WHERE id = ?", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Assignment{}, catalog.ErrAssignmentNotFound
		}
		return catalog.Assignment{}, errors.Wrap(err, "selecting assignment")
	}
	return row.toAssignment(), nil
}

func (repo *catalogRepository) QueryAssignments(ctx context.Context, courseID string) ([]catalog.Assignment, error) {
	var rows []assignmentRow
	q := "SELECT " + assignmentColumns + " FROM assignments WHERE course_id = ? ORDER BY created_at, id"
	if err := sel(ctx, repo.db, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "selecting assignments")
	}
	assignments := make([]catalog.Assignment, 0, len(rows))
	for _, r := range rows {
		assignments = append(assignments, r.toAssignment())
	}
	return assignments, nil
}

func (repo *catalogRepository) UpdateAssignment(ctx context.Context, a catalog.Assignment) (catalog.Assignment, error) {
	n, err := exec(ctx, repo.db,
		"UPDATE assignments SET title = ?, description = ?, updated_at = ? WHERE id = ?",
		a.Title, a.Description, a.UpdatedAt, a.ID,
	)
	if err != nil {
		return catalog.Assignment{}, errors.Wrap(err, "updating assignment")
	}
	if n == 0 {
		return catalog.Assignment{}, catalog.ErrAssignmentNotFound
	}
	return repo.GetAssignment(ctx, a.ID)
}

func (repo *catalogRepository) DeleteAssignment(ctx context.Context, id string) error {
	n, err := exec(ctx, repo.db, "DELETE FROM assignments WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	if n == 0 {
		return catalog.ErrAssignmentNotFound
	}
	return nil
}

// Tests

func (repo *catalogRepository) CreateTest(ctx context.Context, t catalog.Test) (catalog.Test, error) {
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		_, err := exec(ctx, tx,
			"INSERT INTO tests ("+testColumns+") VALUES (?, ?, ?, ?, ?, ?)",
			t.ID, t.CourseID, t.Title, t.CreatedBy, t.CreatedAt, t.UpdatedAt,
		)
		if err != nil {
			if isForeignKeyViolation(err) {
				return catalog.ErrCourseNotFound
			}
			return errors.Wrap(err, "inserting test")
		}

		for _, q := range t.Questions {
			opts, err := json.Marshal(q.Options)
			if err != nil {
				return errors.Wrap(err, "encoding options")
			}
			_, err = exec(ctx, tx,
				"INSERT INTO questions ("+questionColumns+") VALUES (?, ?, ?, ?, ?, ?)",
				q.ID, t.ID, q.Position, q.Prompt, string(opts), q.CorrectAnswer,
			)
			if err != nil {
				return errors.Wrap(err, "inserting question")
			}
		}
		return nil
	})
	if err != nil {
		return catalog.Test{}, err
	}
	return t, nil
}

// questionsByTest returns the questions of the given tests, grouped by test and ordered by position.
func (repo *catalogRepository) questionsByTest(ctx context.Context, testIDs ...string) (map[string][]catalog.Question, error) {
	byTest := make(map[string][]catalog.Question, len(testIDs))
	if len(testIDs) == 0 {
		return byTest, nil
	}

	var rows []questionRow
	q := "SELECT " + questionColumns + " FROM questions WHERE test_id IN (?) ORDER BY test_id, position"
	if err := selIn(ctx, repo.db, &rows, q, testIDs); err != nil {
		return nil, errors.Wrap(err, "selecting questions")
	}
	for _, r := range rows {
		question, err := r.toQuestion()
		if err != nil {
			return nil, err
		}
		byTest[r.TestID] = append(byTest[r.TestID], question)
	}
	return byTest, nil
}

func (repo *catalogRepository) GetTest(ctx context.Context, id string) (catalog.Test, error) {
	var row testRow
	if err := get(ctx, repo.db, &row, "SELECT "+testColumns+" FROM tests WHERE id = ?", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Test{}, catalog.ErrTestNotFound
		}
		return catalog.Test{}, errors.Wrap(err, "selecting test")
	}
	questions, err := repo.questionsByTest(ctx, id)
	if err != nil {
		return catalog.Test{}, err
	}
	return row.toTest(questions[id]), nil
}

func (repo *catalogRepository) QueryTests(ctx context.Context, courseID string) ([]catalog.Test, error) {
	var rows []testRow
	q := "SELECT " + testColumns + " FROM tests WHERE course_id = ? ORDER BY created_at, id"
	if err := sel(ctx, repo.db, &rows, q, courseID); err != nil {
		return nil, errors.Wrap(err, "selecting tests")
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	questions, err := repo.questionsByTest(ctx, ids...)
	if err != nil {
		return nil, err
	}

	tests := make([]catalog.Test, 0, len(rows))
	for _, r := range rows {
		tests = append(tests, r.toTest(questions[r.ID]))
	}
	return tests, nil
}

// UpdateTest only renames: questions keep their identity.
func (repo *catalogRepository) UpdateTest(ctx context.Context, t catalog.Test) (catalog.Test, error) {
	n, err := exec(ctx, repo.db, "UPDATE tests SET title = ?, updated_at = ? WHERE id = ?", t.Title, t.UpdatedAt, t.ID)
	if err != nil {
		return catalog.Test{}, errors.Wrap(err, "updating test")
	}
	if n == 0 {
		return catalog.Test{}, catalog.ErrTestNotFound
	}
	return repo.GetTest(ctx, t.ID)
}

func (repo *catalogRepository) DeleteTest(ctx context.Context, id string) error {
	return withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if _, err := exec(ctx, tx, "DELETE FROM questions WHERE test_id = ?", id); err != nil {
			return errors.Wrap(err, "deleting questions")
		}
		n, err := exec(ctx, tx, "DELETE FROM tests WHERE id = ?", id)
		if err != nil {
			return errors.Wrap(err, "deleting test")
		}
		if n == 0 {
			return catalog.ErrTestNotFound
		}
		return nil
	})
}

func (repo *catalogRepository) DeleteOrphans(ctx context.Context) (int, error) {
	var total int64
	err := withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		n, err := exec(ctx, tx, "DELETE FROM assignments WHERE course_id NOT IN (SELECT id FROM courses)")
		if err != nil {
			return errors.Wrap(err, "deleting orphan assignments")
		}
		total += n

		orphanTests := "SELECT id FROM tests WHERE course_id NOT IN (SELECT id FROM courses)"
		if _, err = exec(ctx, tx, "DELETE FROM questions WHERE test_id IN ("+orphanTests+")"); err != nil {
			return errors.Wrap(err, "deleting orphan questions")
		}
		n, err = exec(ctx, tx, "DELETE FROM tests WHERE course_id NOT IN (SELECT id FROM courses)")
		if err != nil {
			return errors.Wrap(err, "deleting orphan tests")
		}
		total += n
		return nil
	})
	if err != nil {
		return 0, err
	}
	return int(total), nil
}
