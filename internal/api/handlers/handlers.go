// Package handlers holds the HTTP handlers for every /api route. Handlers
// decode input, call a domain service and translate its errors into the
// {error, message} body.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/campusevents/server/internal/api/middleware"
	"github.com/campusevents/server/internal/api/pagination"
	"github.com/campusevents/server/internal/api/problem"
	"github.com/campusevents/server/internal/audit"
	"github.com/campusevents/server/internal/domain/users"
	"github.com/campusevents/server/internal/validation"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSON reads a single JSON object into dst. It writes the error
// response itself and reports whether the handler may continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, env string) bool {
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(dst)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		problem.Write(w, r, http.StatusRequestEntityTooLarge, problem.TitleTooLarge, "Request body too large", err, env)
	case errors.Is(err, io.EOF):
		problem.Write(w, r, http.StatusBadRequest, problem.TitleBadRequest, "Request body is required", err, env)
	default:
		problem.Write(w, r, http.StatusBadRequest, problem.TitleBadRequest, "Invalid JSON body", err, env)
	}
	return false
}

// pathID parses the {id} path segment. Non-numeric ids are answered with
// notFound so they look like any other missing row.
func pathID(w http.ResponseWriter, r *http.Request, notFound, env string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(r.PathValue("id")), 10, 64)
	if err != nil || id <= 0 {
		problem.Write(w, r, http.StatusNotFound, problem.TitleNotFound, notFound, nil, env)
		return 0, false
	}
	return id, true
}

// currentUser is the authenticated user. Routes without RequireAuth never
// call it; a missing user is answered like the middleware would.
func currentUser(w http.ResponseWriter, r *http.Request, env string) (*users.User, bool) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		problem.Write(w, r, http.StatusUnauthorized, problem.TitleAccessDenied, "Authentication required", nil, env)
		return nil, false
	}
	return user, true
}

func actor(u *users.User) audit.Actor {
	return audit.Actor{ID: u.ID, Email: u.Email, CollegeID: u.CollegeID}
}

func queryInt64(r *http.Request, key string) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(r.URL.Query().Get(key)), 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

func queryInt(r *http.Request, key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(r.URL.Query().Get(key)))
	if err != nil {
		return fallback
	}
	return v
}

// errorCase maps one sentinel to a response.
type errorCase struct {
	target  error
	status  int
	title   string
	message string
}

func notFound(target error, message string) errorCase {
	return errorCase{target, http.StatusNotFound, problem.TitleNotFound, message}
}

func badRequest(target error, message string) errorCase {
	return errorCase{target, http.StatusBadRequest, problem.TitleBadRequest, message}
}

func conflict(target error, message string) errorCase {
	return errorCase{target, http.StatusConflict, problem.TitleConflict, message}
}

func forbidden(target error, message string) errorCase {
	return errorCase{target, http.StatusForbidden, problem.TitleForbidden, message}
}

// fail writes the response for err. Validation failures become 400s,
// listed sentinels use their case, and anything else is a 500 carrying
// internalMsg.
func fail(w http.ResponseWriter, r *http.Request, err error, env, internalMsg string, cases ...errorCase) {
	if errs, ok := validation.AsErrors(err); ok {
		problem.Validation(w, r, errs, env)
		return
	}
	for _, c := range cases {
		if errors.Is(err, c.target) {
			problem.Write(w, r, c.status, c.title, c.message, err, env)
			return
		}
	}
	problem.Internal(w, r, internalMsg, err, env)
}

type listEnvelope map[string]any

func paged(key string, rows any, page pagination.Params, total int) listEnvelope {
	return listEnvelope{key: rows, "pagination": page.MetaFor(total)}
}

type outcomeLabel struct {
	target error
	label  string
}

// outcomeOf names the result of a counted operation for metrics.
func outcomeOf(err error, labels ...outcomeLabel) string {
	if err == nil {
		return "ok"
	}
	if _, ok := validation.AsErrors(err); ok {
		return "invalid"
	}
	for _, l := range labels {
		if errors.Is(err, l.target) {
			return l.label
		}
	}
	return "error"
}
