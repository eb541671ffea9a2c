package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/campusevents/server/internal/api/problem"
	"github.com/campusevents/server/internal/audit"
	"github.com/campusevents/server/internal/auth"
	"github.com/campusevents/server/internal/domain/users"
)

type UserService interface {
	Register(ctx context.Context, in users.RegisterInput) (*users.Session, error)
	Login(ctx context.Context, in users.LoginInput) (*users.Session, error)
	Refresh(user *users.User) (string, error)
}

type AuthHandler struct {
	Users UserService
	Audit *audit.Logger
	Env   string
}

func NewAuthHandler(svc UserService, auditLogger *audit.Logger, env string) *AuthHandler {
	return &AuthHandler{Users: svc, Audit: auditLogger, Env: env}
}

type registeredUser struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      auth.Role `json:"role"`
}

type sessionUser struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	FirstName   string    `json:"firstName"`
	LastName    string    `json:"lastName"`
	StudentID   *string   `json:"studentId"`
	Role        auth.Role `json:"role"`
	CollegeID   int64     `json:"collegeId"`
	CollegeName string    `json:"collegeName"`
}

type profileUser struct {
	sessionUser
	CreatedAt time.Time `json:"createdAt"`
}

func newSessionUser(u *users.User) sessionUser {
	return sessionUser{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		StudentID:   u.StudentID,
		Role:        u.Role,
		CollegeID:   u.CollegeID,
		CollegeName: u.CollegeName,
	}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var in users.RegisterInput
	if !decodeJSON(w, r, &in, h.Env) {
		return
	}

	session, err := h.Users.Register(r.Context(), in)
	if err != nil {
		fail(w, r, err, h.Env, "Failed to register user",
			conflict(users.ErrEmailTaken, "User with this email already exists"),
			badRequest(users.ErrInvalidCollege, "Invalid college ID"),
		)
		return
	}

	u := session.User
	h.Audit.Success(r, actor(u), "user.register", "user", u.ID, map[string]string{"role": string(u.Role)})
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user": registeredUser{
			ID:        u.ID,
			Email:     u.Email,
			FirstName: u.FirstName,
			LastName:  u.LastName,
			Role:      u.Role,
		},
		"token": session.Token,
	})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in users.LoginInput
	if !decodeJSON(w, r, &in, h.Env) {
		return
	}

	session, err := h.Users.Login(r.Context(), in)
	if err != nil {
		fail(w, r, err, h.Env, "Failed to login",
			errorCase{users.ErrInvalidCredentials, http.StatusUnauthorized, problem.TitleUnauthorized, "Invalid email or password"},
		)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Login successful",
		"user":    newSessionUser(session.User),
		"token":   session.Token,
	})
}

func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user": profileUser{sessionUser: newSessionUser(user), CreatedAt: user.CreatedAt},
	})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	token, err := h.Users.Refresh(user)
	if err != nil {
		problem.Internal(w, r, "Failed to refresh token", err, h.Env)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Token refreshed successfully",
		"token":   token,
	})
}

// Logout is stateless: tokens stay valid until they expire.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}
