// Package users owns campus accounts: registration, credential checks and the
// live lookup that backs every authenticated request.
package users

import (
	"context"
	"errors"
	"time"

	"github.com/campusevents/server/internal/auth"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("user with this email already exists")
	ErrInvalidCollege     = errors.New("invalid college ID")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// User is a row of users joined with its college name.
type User struct {
	ID           int64     `json:"id"`
	CollegeID    int64     `json:"collegeId"`
	CollegeName  string    `json:"collegeName"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	StudentID    *string   `json:"studentId"`
	Role         auth.Role `json:"role"`
	IsActive     bool      `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

func (u User) FullName() string {
	return u.FirstName + " " + u.LastName
}

func (u User) Identity() auth.Identity {
	return auth.Identity{UserID: u.ID, Email: u.Email, Role: u.Role, CollegeID: u.CollegeID}
}

type CreateParams struct {
	CollegeID    int64
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	StudentID    *string
	Role         auth.Role
}

type Repository interface {
	// Create returns ErrEmailTaken when the email is already in use.
	Create(ctx context.Context, params CreateParams) (*User, error)
	// GetActiveByEmail returns ErrNotFound for missing or inactive users.
	GetActiveByEmail(ctx context.Context, email string) (*User, error)
	// GetActiveByID returns ErrNotFound for missing or inactive users.
	GetActiveByID(ctx context.Context, id int64) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	CollegeExists(ctx context.Context, id int64) (bool, error)
}
