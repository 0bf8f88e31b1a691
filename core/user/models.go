package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/elimu/core"
)

// Roles
const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
)

var (
	AllRoles = []string{RoleStudent, RoleInstructor}

	Roles = []Role{
		{Name: "Student", Value: RoleStudent},
		{Name: "Instructor", Value: RoleInstructor},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Username     string    `json:"username"`
	Role         string    `json:"role"` // immutable
	Bio          string    `json:"bio"`
	Avatar       string    `json:"avatar"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    null.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsStudent() bool    { return u.Role == RoleStudent }
func (u *User) IsInstructor() bool { return u.Role == RoleInstructor }

// NewUser contains information needed to create a new User.
type NewUser struct {
	Email           string `json:"email" validate:"required,email"`
	Username        string `json:"username" validate:"required,min=2,max=50,alphanum_"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Role            string `json:"role" validate:"required,role"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Username = core.CleanString(nu.Username)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
	return validate.Struct(nu)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Empty fields are left untouched. Role and email cannot be changed.
type UpdateUser struct {
	Username        string `json:"username" validate:"omitempty,min=2,max=50,alphanum_"`
	Bio             string `json:"bio" validate:"omitempty,max=500"`
	Avatar          string `json:"avatar" validate:"omitempty,max=500"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`

	email string // password similarity check
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate) error {
	uu.Username = core.CleanString(uu.Username)
	uu.Bio = core.CleanString(uu.Bio)
	uu.Avatar = core.CleanString(uu.Avatar)
	uu.email = origUsr.Email
	if err := validate.Struct(uu); err != nil {
		return err
	}
	if uu.Username == "" {
		uu.Username = origUsr.Username
	}
	return nil
}

// GetFilter selects a single User. Set fields are AND-ed.
type GetFilter struct {
	ID    string
	Email string
}
