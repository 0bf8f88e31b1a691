package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/elimu/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func copyUser(usr user.User) user.User {
	if usr.PasswordHash != nil {
		hash := make([]byte, len(usr.PasswordHash))
		copy(hash, usr.PasswordHash)
		usr.PasswordHash = hash
	}
	return usr
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	for _, row := range repo.db.users {
		if row.usr.Email == usr.Email {
			return user.User{}, user.ErrUserExists
		}
	}
	repo.db.users[usr.ID] = &userRow{seq: repo.db.nextSeq(), usr: copyUser(usr)}
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID == "" && filter.Email == "" {
		return user.User{}, user.ErrNotFound
	}
	for _, row := range repo.db.users {
		if filter.ID != "" && row.usr.ID != filter.ID {
			continue
		}
		if filter.Email != "" && row.usr.Email != filter.Email {
			continue
		}
		return copyUser(row.usr), nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsersByID(_ context.Context, ids ...string) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]*userRow, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if row, ok := repo.db.users[id]; ok && !seen[id] {
			seen[id] = true
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, copyUser(row.usr))
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	row, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	// email, role & creation time are immutable
	usr.Email = row.usr.Email
	usr.Role = row.usr.Role
	usr.CreatedAt = row.usr.CreatedAt
	row.usr = copyUser(usr)
	return copyUser(row.usr), nil
}

func (repo *userRepository) DeleteUser(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.users[id]; !ok {
		return user.ErrNotFound
	}
	delete(repo.db.users, id)

	// ledger rows go with the user
	repo.db.enrollments = filterOut(repo.db.enrollments, func(i int) bool { return repo.db.enrollments[i].UserID == id })
	repo.db.submissions = filterOut(repo.db.submissions, func(i int) bool { return repo.db.submissions[i].UserID == id })
	repo.db.attempts = filterOut(repo.db.attempts, func(i int) bool { return repo.db.attempts[i].UserID == id })
	return nil
}

// filterOut returns the elements of s for which drop is false, in a new slice.
func filterOut[T any](s []T, drop func(i int) bool) []T {
	kept := make([]T, 0, len(s))
	for i := range s {
		if !drop(i) {
			kept = append(kept, s[i])
		}
	}
	return kept
}
