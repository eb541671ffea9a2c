package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/campusevents/server/internal/api/problem"
	"github.com/campusevents/server/internal/auth"
	"github.com/campusevents/server/internal/domain/users"
	"github.com/rs/zerolog"
)

type contextKey string

const userKey contextKey = "user"

// TokenVerifier checks a bearer token's signature and expiry.
type TokenVerifier interface {
	Validate(token string) (*auth.Claims, error)
}

// UserLookup loads the live account behind a token.
type UserLookup interface {
	ActiveUser(ctx context.Context, id int64) (*users.User, error)
}

// AuthError is a rejected credential with the status it maps to.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

var (
	ErrNoToken      = &AuthError{Status: http.StatusUnauthorized, Message: "No token provided"}
	ErrExpiredToken = &AuthError{Status: http.StatusUnauthorized, Message: "Token expired"}
	ErrBadToken     = &AuthError{Status: http.StatusForbidden, Message: "Invalid token"}
	ErrUnknownUser  = &AuthError{Status: http.StatusUnauthorized, Message: "Invalid token or user not found"}
	ErrNotAuthed    = &AuthError{Status: http.StatusUnauthorized, Message: "Authentication required"}
	ErrInsufficient = &AuthError{Status: http.StatusForbidden, Message: "Insufficient permissions"}
)

// Authenticate resolves an Authorization header to a live user. It returns an
// *AuthError for rejected credentials and a plain error when the lookup
// itself fails.
func Authenticate(ctx context.Context, header string, verifier TokenVerifier, lookup UserLookup) (*users.User, error) {
	token, err := auth.TokenFromHeader(header)
	if err != nil {
		return nil, ErrNoToken
	}

	claims, err := verifier.Validate(token)
	switch {
	case errors.Is(err, auth.ErrTokenExpired):
		return nil, ErrExpiredToken
	case err != nil:
		return nil, ErrBadToken
	}

	user, err := lookup.ActiveUser(ctx, claims.UserID)
	if errors.Is(err, users.ErrNotFound) {
		return nil, ErrUnknownUser
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// Authorize is the role predicate applied after Authenticate.
func Authorize(user *users.User, allowed ...auth.Role) error {
	if user == nil {
		return ErrNotAuthed
	}
	if !auth.HasRole(user.Role, allowed...) {
		return ErrInsufficient
	}
	return nil
}

// RequireAuth authenticates every request and stores the user on the context.
func RequireAuth(verifier TokenVerifier, lookup UserLookup, env string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := Authenticate(r.Context(), r.Header.Get("Authorization"), verifier, lookup)
			if err != nil {
				writeAuthError(w, r, err, env)
				return
			}
			zerolog.Ctx(r.Context()).UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Int64("user_id", user.ID)
			})
			ctx := ContextWithUser(r.Context(), user)
			ctx = WithRateLimitTier(ctx, TierAuthenticated)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects users whose role is not in allowed. It must run after
// RequireAuth.
func RequireRole(env string, allowed ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := Authorize(UserFromContext(r.Context()), allowed...); err != nil {
				writeAuthError(w, r, err, env)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, r *http.Request, err error, env string) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		problem.Write(w, r, authErr.Status, problem.TitleAccessDenied, authErr.Message, nil, env)
		return
	}
	problem.Internal(w, r, "Authentication failed", err, env)
}

func ContextWithUser(ctx context.Context, user *users.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns nil when the request was not authenticated.
func UserFromContext(ctx context.Context) *users.User {
	if ctx == nil {
		return nil
	}
	if user, ok := ctx.Value(userKey).(*users.User); ok {
		return user
	}
	return nil
}
