package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campusevents/server/internal/auth"
	"github.com/campusevents/server/internal/domain/users"
	"github.com/campusevents/server/internal/metrics"
	"github.com/jackc/pgx/v5"
)

var _ users.Repository = (*UserRepository)(nil)

type UserRepository struct {
	conn
}

const userColumns = `
SELECT u.id, u.college_id, c.name, u.email, u.password_hash, u.first_name, u.last_name,
       u.student_id, u.role, u.is_active, u.created_at
  FROM users u
  JOIN colleges c ON c.id = u.college_id`

func scanUser(row pgx.Row) (*users.User, error) {
	var u users.User
	var role string
	if err := row.Scan(&u.ID, &u.CollegeID, &u.CollegeName, &u.Email, &u.PasswordHash,
		&u.FirstName, &u.LastName, &u.StudentID, &role, &u.IsActive, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrNotFound
		}
		return nil, err
	}
	u.Role = auth.Role(role)
	return &u, nil
}

func (r *UserRepository) Create(ctx context.Context, params users.CreateParams) (*users.User, error) {
	var id int64
	err := r.queryer().QueryRow(ctx, `
INSERT INTO users (college_id, email, password_hash, first_name, last_name, student_id, role)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id`,
		params.CollegeID, params.Email, params.PasswordHash, params.FirstName, params.LastName,
		params.StudentID, string(params.Role),
	).Scan(&id)
	if err != nil {
		if uniqueViolationOn(err, "users_email_key") {
			return nil, users.ErrEmailTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return scanUser(r.queryer().QueryRow(ctx, userColumns+` WHERE u.id = $1`, id))
}

func (r *UserRepository) GetActiveByEmail(ctx context.Context, email string) (user *users.User, err error) {
	defer func(start time.Time) { metrics.RecordQuery("user_by_email", start, err) }(time.Now())
	return scanUser(r.queryer().QueryRow(ctx, userColumns+` WHERE u.email = $1 AND u.is_active`, email))
}

func (r *UserRepository) GetActiveByID(ctx context.Context, id int64) (user *users.User, err error) {
	defer func(start time.Time) { metrics.RecordQuery("user_by_id", start, err) }(time.Now())
	return scanUser(r.queryer().QueryRow(ctx, userColumns+` WHERE u.id = $1 AND u.is_active`, id))
}

func (r *UserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.queryer().QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) CollegeExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.queryer().QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM colleges WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check college: %w", err)
	}
	return exists, nil
}
