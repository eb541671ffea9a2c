package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/campusevents/server/internal/auth"
	"github.com/campusevents/server/internal/validation"
	"github.com/rs/zerolog"
)

// TokenIssuer mints bearer tokens; *auth.JWTManager satisfies it.
type TokenIssuer interface {
	Generate(id auth.Identity) (string, error)
}

type Service struct {
	repo   Repository
	tokens TokenIssuer
	logger zerolog.Logger
}

func NewService(repo Repository, tokens TokenIssuer, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		tokens: tokens,
		logger: logger.With().Str("component", "users").Logger(),
	}
}

type RegisterInput struct {
	Email     string  `json:"email" validate:"required,email"`
	Password  string  `json:"password" validate:"required,min=6"`
	FirstName string  `json:"firstName" validate:"required,min=2,max=50"`
	LastName  string  `json:"lastName" validate:"required,min=2,max=50"`
	StudentID *string `json:"studentId" validate:"omitempty,max=50"`
	CollegeID int64   `json:"collegeId" validate:"required,gt=0"`
	Role      string  `json:"role" validate:"required,oneof=admin student"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Session is a user together with a freshly issued token.
type Session struct {
	User  *User
	Token string
}

func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	role, _ := auth.ParseRole(in.Role)

	taken, err := s.repo.EmailExists(ctx, in.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if taken {
		return nil, ErrEmailTaken
	}
	exists, err := s.repo.CollegeExists(ctx, in.CollegeID)
	if err != nil {
		return nil, fmt.Errorf("check college: %w", err)
	}
	if !exists {
		return nil, ErrInvalidCollege
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user, err := s.repo.Create(ctx, CreateParams{
		CollegeID:    in.CollegeID,
		Email:        in.Email,
		PasswordHash: hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		StudentID:    in.StudentID,
		Role:         role,
	})
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Generate(user.Identity())
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	s.logger.Info().Int64("user_id", user.ID).Str("role", string(user.Role)).Msg("user registered")
	return &Session{User: user, Token: token}, nil
}

func (s *Service) Login(ctx context.Context, in LoginInput) (*Session, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	user, err := s.repo.GetActiveByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if err := auth.CheckPassword(user.PasswordHash, in.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	token, err := s.tokens.Generate(user.Identity())
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{User: user, Token: token}, nil
}

// ActiveUser is the live lookup behind bearer authentication.
func (s *Service) ActiveUser(ctx context.Context, id int64) (*User, error) {
	return s.repo.GetActiveByID(ctx, id)
}

// Refresh issues a new token for an already authenticated user.
func (s *Service) Refresh(user *User) (string, error) {
	if user == nil {
		return "", ErrNotFound
	}
	return s.tokens.Generate(user.Identity())
}

// BootstrapAdmin creates the configured admin account unless the email is
// already registered. It reports whether an account was created.
func (s *Service) BootstrapAdmin(ctx context.Context, in RegisterInput) (bool, error) {
	in.Role = string(auth.RoleAdmin)
	_, err := s.Register(ctx, in)
	if errors.Is(err, ErrEmailTaken) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
