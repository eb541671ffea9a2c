package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/campusevents/server/internal/api/handlers"
	"github.com/campusevents/server/internal/api/problem"
	"github.com/campusevents/server/internal/auth"
	"github.com/campusevents/server/internal/config"
	"github.com/campusevents/server/internal/domain/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookupStub map[int64]*users.User

func (l lookupStub) ActiveUser(_ context.Context, id int64) (*users.User, error) {
	if u, ok := l[id]; ok {
		return u, nil
	}
	return nil, users.ErrNotFound
}

var (
	routerAdmin   = &users.User{ID: 1, CollegeID: 10, Email: "admin@campus.edu", FirstName: "Ada", Role: auth.RoleAdmin}
	routerStudent = &users.User{ID: 2, CollegeID: 10, Email: "sam@campus.edu", FirstName: "Sam", Role: auth.RoleStudent}
)

// newTestRoutes mounts handlers without services. Requests that reach a
// service would panic, so these tests only cover what the chain decides.
func newTestRoutes(t *testing.T) (http.Handler, *auth.JWTManager) {
	t.Helper()
	tokens := auth.NewJWTManager("router-test-secret-0123456789abcdef", time.Hour, "campus-events")
	env := "test"
	h := Handlers{
		Auth:       handlers.NewAuthHandler(nil, nil, env),
		Events:     handlers.NewEventsHandler(nil, nil, env),
		Student:    handlers.NewStudentHandler(nil, env),
		Attendance: handlers.NewAttendanceHandler(nil, env),
		Feedback:   handlers.NewFeedbackHandler(nil, env),
		Reports:    handlers.NewReportsHandler(nil, env),
		Health: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		Version: VersionHandler("1.0.0", "abc", "2026-10-01"),
		Tokens:  tokens,
		Users:   lookupStub{routerAdmin.ID: routerAdmin, routerStudent.ID: routerStudent},
	}
	cfg := config.Config{Environment: env, CORS: config.CORSConfig{AllowAllOrigins: true}}
	return Routes(h, cfg, zerolog.Nop()), tokens
}

func bearer(t *testing.T, tokens *auth.JWTManager, u *users.User) string {
	t.Helper()
	token, err := tokens.Generate(u.Identity())
	require.NoError(t, err)
	return "Bearer " + token
}

func serve(routes http.Handler, method, target, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, req)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) problem.Body {
	t.Helper()
	var body problem.Body
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestRoutes_Authentication(t *testing.T) {
	routes, tokens := newTestRoutes(t)
	ghost := &users.User{ID: 404, Email: "ghost@campus.edu", Role: auth.RoleStudent}

	tests := []struct {
		name          string
		authorization string
		status        int
		message       string
	}{
		{"missing token", "", http.StatusUnauthorized, "No token provided"},
		{"malformed token", "Bearer not-a-jwt", http.StatusForbidden, "Invalid token"},
		{"deactivated user", bearer(t, tokens, ghost), http.StatusUnauthorized, "Invalid token or user not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(routes, http.MethodGet, "/api/events", tt.authorization)

			require.Equal(t, tt.status, rec.Code)
			body := errorBody(t, rec)
			assert.Equal(t, problem.TitleAccessDenied, body.Error)
			assert.Equal(t, tt.message, body.Message)
		})
	}
}

func TestRoutes_RoleChecks(t *testing.T) {
	routes, tokens := newTestRoutes(t)
	asAdmin := bearer(t, tokens, routerAdmin)
	asStudent := bearer(t, tokens, routerStudent)

	forbidden := []struct {
		method, target, authorization string
	}{
		{http.MethodPost, "/api/events", asStudent},
		{http.MethodPut, "/api/events/3", asStudent},
		{http.MethodPatch, "/api/events/3/status", asStudent},
		{http.MethodDelete, "/api/events/3", asStudent},
		{http.MethodGet, "/api/events/3/registrations", asStudent},
		{http.MethodGet, "/api/reports/event-popularity", asStudent},
		{http.MethodGet, "/api/reports/flexible", asStudent},
		{http.MethodGet, "/api/reports/overview", asStudent},
		{http.MethodGet, "/api/student/events", asAdmin},
		{http.MethodPost, "/api/student/events/3/register", asAdmin},
		{http.MethodPost, "/api/feedback/events/3", asAdmin},
		{http.MethodDelete, "/api/feedback/events/3", asAdmin},
	}

	for _, tt := range forbidden {
		t.Run(tt.method+" "+tt.target, func(t *testing.T) {
			rec := serve(routes, tt.method, tt.target, tt.authorization)

			require.Equal(t, http.StatusForbidden, rec.Code, rec.Body.String())
			assert.Equal(t, "Insufficient permissions", errorBody(t, rec).Message)
		})
	}
}

func TestRoutes_AttendanceListIsCheckedByHandler(t *testing.T) {
	routes, tokens := newTestRoutes(t)

	rec := serve(routes, http.MethodGet, "/api/attendance/events/3", bearer(t, tokens, routerStudent))

	require.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Only admins can view attendance lists", errorBody(t, rec).Message)
}

func TestRoutes_AuthenticatedProfile(t *testing.T) {
	routes, tokens := newTestRoutes(t)

	rec := serve(routes, http.MethodGet, "/api/auth/profile", bearer(t, tokens, routerStudent))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"email":"sam@campus.edu"`)
}

func TestRoutes_UnknownRoute(t *testing.T) {
	routes, _ := newTestRoutes(t)

	rec := serve(routes, http.MethodGet, "/api/nope", "")

	require.Equal(t, http.StatusNotFound, rec.Code)
	body := errorBody(t, rec)
	assert.Equal(t, problem.TitleNotFound, body.Error)
	assert.Equal(t, "Route not found", body.Message)
}

func TestRoutes_OperationalEndpoints(t *testing.T) {
	routes, _ := newTestRoutes(t)

	rec := serve(routes, http.MethodGet, "/version", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"version":"1.0.0"`)

	rec = serve(routes, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(routes, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `campusevents_http_requests_total{`)
}

func TestRoutes_MiddlewareChain(t *testing.T) {
	routes, _ := newTestRoutes(t)

	req := httptest.NewRequest(http.MethodGet, "/version", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	routes.ServeHTTP(rec, req)

	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}
