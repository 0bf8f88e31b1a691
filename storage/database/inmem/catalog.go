package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/elimu/core/catalog"
)

type catalogRepository struct {
	db *DB
}

var _ catalog.Repository = (*catalogRepository)(nil)

func NewCatalogRepository(db *DB) catalog.Repository {
	return &catalogRepository{db: db}
}

func copyTest(t catalog.Test) catalog.Test {
	qs := make([]catalog.Question, len(t.Questions))
	for i, q := range t.Questions {
		opts := make([]string, len(q.Options))
		copy(opts, q.Options)
		q.Options = opts
		qs[i] = q
	}
	t.Questions = qs
	return t
}

// Courses

func (repo *catalogRepository) CreateCourse(_ context.Context, course catalog.Course) (catalog.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	repo.db.courses[course.ID] = &courseRow{seq: repo.db.nextSeq(), course: course}
	return course, nil
}

func (repo *catalogRepository) QueryCourses(_ context.Context, filter catalog.CourseFilter) ([]catalog.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]*courseRow, 0, len(repo.db.courses))
	for _, row := range repo.db.courses {
		if filter.CreatedBy != "" && row.course.CreatedBy != filter.CreatedBy {
			continue
		}
		rows = append(rows, row)
	}
	// newest first
	sort.Slice(rows, func(i, j int) bool {
		ci, cj := rows[i].course.CreatedAt, rows[j].course.CreatedAt
		if !ci.Equal(cj) {
			return ci.After(cj)
		}
		return rows[i].seq > rows[j].seq
	})

	courses := make([]catalog.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.course)
	}
	return courses, nil
}

func (repo *catalogRepository) GetCourse(_ context.Context, id string) (catalog.Course, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if row, ok := repo.db.courses[id]; ok {
		return row.course, nil
	}
	return catalog.Course{}, catalog.ErrCourseNotFound
}

func (repo *catalogRepository) UpdateCourse(_ context.Context, course catalog.Course) (catalog.Course, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	row, ok := repo.db.courses[course.ID]
	if !ok {
		return catalog.Course{}, catalog.ErrCourseNotFound
	}
	course.CreatedBy = row.course.CreatedBy
	course.CreatedAt = row.course.CreatedAt
	row.course = course
	return course, nil
}

func (repo *catalogRepository) DeleteCourse(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return catalog.ErrCourseNotFound
	}
	for aID, row := range repo.db.assignments {
		if row.a.CourseID == id {
			delete(repo.db.assignments, aID)
		}
	}
	for tID, row := range repo.db.tests {
		if row.t.CourseID == id {
			delete(repo.db.tests, tID)
		}
	}
	delete(repo.db.courses, id)
	return nil
}

// Assignments

func (repo *catalogRepository) CreateAssignment(_ context.Context, a catalog.Assignment) (catalog.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[a.CourseID]; !ok {
		return catalog.Assignment{}, catalog.ErrCourseNotFound
	}
	repo.db.assignments[a.ID] = &assignmentRow{seq: repo.db.nextSeq(), a: a}
	return a, nil
}

func (repo *catalogRepository) GetAssignment(_ context.Context, id string) (catalog.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if row, ok := repo.db.assignments[id]; ok {
		return row.a, nil
	}
	return catalog.Assignment{}, catalog.ErrAssignmentNotFound
}

func (repo *catalogRepository) QueryAssignments(_ context.Context, courseID string) ([]catalog.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]*assignmentRow, 0)
	for _, row := range repo.db.assignments {
		if row.a.CourseID == courseID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	assignments := make([]catalog.Assignment, 0, len(rows))
	for _, row := range rows {
		assignments = append(assignments, row.a)
	}
	return assignments, nil
}

func (repo *catalogRepository) UpdateAssignment(_ context.Context, a catalog.Assignment) (catalog.Assignment, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	row, ok := repo.db.assignments[a.ID]
	if !ok {
		return catalog.Assignment{}, catalog.ErrAssignmentNotFound
	}
	a.CourseID = row.a.CourseID
	a.CreatedBy = row.a.CreatedBy
	a.CreatedAt = row.a.CreatedAt
	row.a = a
	return a, nil
}

func (repo *catalogRepository) DeleteAssignment(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.assignments[id]; !ok {
		return catalog.ErrAssignmentNotFound
	}
	delete(repo.db.assignments, id)
	return nil
}

// Tests

func (repo *catalogRepository) CreateTest(_ context.Context, t catalog.Test) (catalog.Test, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.courses[t.CourseID]; !ok {
		return catalog.Test{}, catalog.ErrCourseNotFound
	}
	repo.db.tests[t.ID] = &testRow{seq: repo.db.nextSeq(), t: copyTest(t)}
	return t, nil
}

func (repo *catalogRepository) GetTest(_ context.Context, id string) (catalog.Test, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	if row, ok := repo.db.tests[id]; ok {
		return copyTest(row.t), nil
	}
	return catalog.Test{}, catalog.ErrTestNotFound
}

func (repo *catalogRepository) QueryTests(_ context.Context, courseID string) ([]catalog.Test, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]*testRow, 0)
	for _, row := range repo.db.tests {
		if row.t.CourseID == courseID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	tests := make([]catalog.Test, 0, len(rows))
	for _, row := range rows {
		tests = append(tests, copyTest(row.t))
	}
	return tests, nil
}

func (repo *catalogRepository) UpdateTest(_ context.Context, t catalog.Test) (catalog.Test, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	row, ok := repo.db.tests[t.ID]
	if !ok {
		return catalog.Test{}, catalog.ErrTestNotFound
	}
	// only the title changes: questions keep their identity
	row.t.Title = t.Title
	row.t.UpdatedAt = t.UpdatedAt
	return copyTest(row.t), nil
}

func (repo *catalogRepository) DeleteTest(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.tests[id]; !ok {
		return catalog.ErrTestNotFound
	}
	delete(repo.db.tests, id)
	return nil
}

func (repo *catalogRepository) DeleteOrphans(_ context.Context) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var n int
	for id, row := range repo.db.assignments {
		if _, ok := repo.db.courses[row.a.CourseID]; !ok {
			delete(repo.db.assignments, id)
			n++
		}
	}
	for id, row := range repo.db.tests {
		if _, ok := repo.db.courses[row.t.CourseID]; !ok {
			delete(repo.db.tests, id)
			n++
		}
	}
	return n, nil
}

// InsertOrphanAssignment stores an assignment without checking its course.
// It reproduces data left behind by a non-atomic cascade, for reconciliation tests.
func (db *DB) InsertOrphanAssignment(a catalog.Assignment) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.assignments[a.ID] = &assignmentRow{seq: db.nextSeq(), a: a}
}

// InsertOrphanTest is InsertOrphanAssignment for tests.
func (db *DB) InsertOrphanTest(t catalog.Test) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.tests[t.ID] = &testRow{seq: db.nextSeq(), t: copyTest(t)}
}
