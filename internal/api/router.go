package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/campusevents/server/internal/api/handlers"
	"github.com/campusevents/server/internal/api/middleware"
	"github.com/campusevents/server/internal/api/problem"
	"github.com/campusevents/server/internal/audit"
	"github.com/campusevents/server/internal/auth"
	"github.com/campusevents/server/internal/config"
	"github.com/campusevents/server/internal/domain/calendar"
	"github.com/campusevents/server/internal/domain/events"
	"github.com/campusevents/server/internal/domain/feedback"
	"github.com/campusevents/server/internal/domain/registrations"
	"github.com/campusevents/server/internal/domain/reports"
	"github.com/campusevents/server/internal/domain/users"
	"github.com/campusevents/server/internal/email"
	"github.com/campusevents/server/internal/jobs"
	"github.com/campusevents/server/internal/metrics"
	"github.com/campusevents/server/internal/storage/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
)

// Router is the assembled HTTP surface plus the background client serve
// has to start and stop. RiverClient is nil when jobs are disabled.
type Router struct {
	Handler     http.Handler
	RiverClient *river.Client[pgx.Tx]
}

// NewRouter wires storage, domain services, notification jobs and handlers.
func NewRouter(cfg config.Config, logger zerolog.Logger, pool *pgxpool.Pool, version, gitCommit, buildDate string) (*Router, error) {
	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return nil, fmt.Errorf("repository init: %w", err)
	}

	clock := calendar.NewClock(cfg.Location())
	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiry, cfg.Auth.Issuer)
	auditLogger := audit.NewLogger(logger)

	eventOpts := []events.Option{events.WithClock(clock)}
	regOpts := []registrations.Option{registrations.WithClock(clock)}

	var riverClient *river.Client[pgx.Tx]
	if cfg.Jobs.Enabled {
		mailer, err := email.NewService(cfg.Email, logger)
		if err != nil {
			return nil, fmt.Errorf("email service: %w", err)
		}
		policy := jobs.NewRetryPolicy(cfg.Jobs.MaxRetries)
		workers := jobs.NewWorkers(jobs.Dependencies{
			Directory: repo.Notifications(),
			Mailer:    mailer,
			BaseURL:   cfg.Server.BaseURL,
			Policy:    policy,
			Logger:    logger,
		})
		riverClient, err = jobs.NewClient(pool, workers, jobs.ClientOptions{
			MaxWorkers:  cfg.Jobs.MaxWorkers,
			MaxAttempts: cfg.Jobs.MaxRetries,
			Logger:      slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})),
			Alerts:      logger,
			Hooks:       []rivertype.Hook{metrics.NewRiverMetricsHook()},
		})
		if err != nil {
			return nil, fmt.Errorf("river client: %w", err)
		}
		notifier := jobs.NewNotifier(riverClient, policy)
		eventOpts = append(eventOpts, events.WithNotifier(notifier))
		regOpts = append(regOpts, registrations.WithNotifier(notifier))
	} else {
		logger.Warn().Msg("notification jobs disabled; no emails will be sent")
	}

	userService := users.NewService(repo.Users(), tokens, logger)
	eventService := events.NewService(repo.Events(), logger, eventOpts...)
	registrationService := registrations.NewService(repo.Registrations(), logger, regOpts...)
	feedbackService := feedback.NewService(repo.Feedback(), clock, logger)
	reportService := reports.NewService(repo.Reports(), logger)

	h := Handlers{
		Auth:       handlers.NewAuthHandler(userService, auditLogger, cfg.Environment),
		Events:     handlers.NewEventsHandler(eventService, auditLogger, cfg.Environment),
		Student:    handlers.NewStudentHandler(registrationService, cfg.Environment),
		Attendance: handlers.NewAttendanceHandler(registrationService, cfg.Environment),
		Feedback:   handlers.NewFeedbackHandler(feedbackService, cfg.Environment),
		Reports:    handlers.NewReportsHandler(reportService, cfg.Environment),
		Health:     handlers.NewHealthChecker(pool, riverClient != nil, version, gitCommit).Health(),
		Version:    VersionHandler(version, gitCommit, buildDate),
		Tokens:     tokens,
		Users:      userService,
	}

	return &Router{Handler: Routes(h, cfg, logger), RiverClient: riverClient}, nil
}

// Handlers is everything Routes mounts.
type Handlers struct {
	Auth       *handlers.AuthHandler
	Events     *handlers.EventsHandler
	Student    *handlers.StudentHandler
	Attendance *handlers.AttendanceHandler
	Feedback   *handlers.FeedbackHandler
	Reports    *handlers.ReportsHandler
	Health     http.Handler
	Version    http.Handler

	Tokens middleware.TokenVerifier
	Users  middleware.UserLookup
}

// Routes builds the route table and wraps it in the shared middleware chain.
func Routes(h Handlers, cfg config.Config, logger zerolog.Logger) http.Handler {
	env := cfg.Environment
	limiter := middleware.RateLimit(cfg.RateLimit)
	authenticate := middleware.RequireAuth(h.Tokens, h.Users, env)

	public := func(fn http.HandlerFunc) http.Handler {
		return limiter(fn)
	}
	// signedIn authenticates, rate limits per user, then checks roles. No
	// roles means any authenticated user.
	signedIn := func(fn http.HandlerFunc, roles ...auth.Role) http.Handler {
		var next http.Handler = fn
		if len(roles) > 0 {
			next = middleware.RequireRole(env, roles...)(next)
		}
		return authenticate(limiter(next))
	}
	admin, student := auth.RoleAdmin, auth.RoleStudent

	mux := http.NewServeMux()

	mux.Handle("GET /health", h.Health)
	mux.Handle("GET /version", h.Version)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	mux.Handle("POST /api/auth/register", public(h.Auth.Register))
	mux.Handle("POST /api/auth/login", middleware.WithRateLimitTierHandler(middleware.TierLogin)(public(h.Auth.Login)))
	mux.Handle("GET /api/auth/profile", signedIn(h.Auth.Profile))
	mux.Handle("POST /api/auth/refresh", signedIn(h.Auth.Refresh))
	mux.Handle("POST /api/auth/logout", signedIn(h.Auth.Logout))

	mux.Handle("GET /api/events", signedIn(h.Events.List))
	mux.Handle("GET /api/events/{id}", signedIn(h.Events.Get))
	mux.Handle("POST /api/events", signedIn(h.Events.Create, admin))
	mux.Handle("PUT /api/events/{id}", signedIn(h.Events.Update, admin))
	mux.Handle("PATCH /api/events/{id}/status", signedIn(h.Events.SetStatus, admin))
	mux.Handle("DELETE /api/events/{id}", signedIn(h.Events.Delete, admin))
	mux.Handle("GET /api/events/{id}/registrations", signedIn(h.Events.Registrations, admin))

	mux.Handle("GET /api/student/events", signedIn(h.Student.Events, student))
	mux.Handle("GET /api/student/events/{id}", signedIn(h.Student.Event, student))
	mux.Handle("POST /api/student/events/{id}/register", signedIn(h.Student.Register, student))
	mux.Handle("DELETE /api/student/events/{id}/register", signedIn(h.Student.Cancel, student))
	mux.Handle("GET /api/student/registrations", signedIn(h.Student.Registrations, student))
	mux.Handle("GET /api/student/attendance", signedIn(h.Student.Attendance, student))

	mux.Handle("POST /api/attendance/events/{id}/checkin", signedIn(h.Attendance.CheckIn))
	mux.Handle("POST /api/attendance/events/{id}/checkout", signedIn(h.Attendance.CheckOut))
	mux.Handle("GET /api/attendance/events/{id}", signedIn(h.Attendance.List))
	mux.Handle("GET /api/attendance/events/{id}/summary", signedIn(h.Attendance.Summary))

	mux.Handle("POST /api/feedback/events/{id}", signedIn(h.Feedback.Submit, student))
	mux.Handle("GET /api/feedback/events/{id}", signedIn(h.Feedback.List))
	mux.Handle("GET /api/feedback/events/{id}/summary", signedIn(h.Feedback.Summary))
	mux.Handle("PUT /api/feedback/events/{id}", signedIn(h.Feedback.Update, student))
	mux.Handle("DELETE /api/feedback/events/{id}", signedIn(h.Feedback.Delete, student))

	mux.Handle("GET /api/reports/event-popularity", signedIn(h.Reports.EventPopularity, admin))
	mux.Handle("GET /api/reports/student-participation", signedIn(h.Reports.StudentParticipation, admin))
	mux.Handle("GET /api/reports/top-active-students", signedIn(h.Reports.TopStudents, admin))
	mux.Handle("GET /api/reports/attendance-summary", signedIn(h.Reports.AttendanceSummary, admin))
	mux.Handle("GET /api/reports/feedback-summary", signedIn(h.Reports.FeedbackSummary, admin))
	mux.Handle("GET /api/reports/flexible", signedIn(h.Reports.Flexible, admin))
	mux.Handle("GET /api/reports/categories", signedIn(h.Reports.Categories, admin))
	mux.Handle("GET /api/reports/overview", signedIn(h.Reports.Overview, admin))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		problem.Write(w, r, http.StatusNotFound, problem.TitleNotFound, "Route not found", nil, env)
	})

	var handler http.Handler = middleware.SpanRoute(mux)
	handler = metrics.HTTPMiddleware(handler)
	handler = middleware.RequestSize(cfg.Server.MaxBodyBytes)(handler)
	handler = middleware.CORS(cfg.CORS, logger)(handler)
	handler = middleware.SecurityHeaders(cfg.Server.RequireHTTPS)(handler)
	handler = middleware.RequestLogging(logger)(handler)
	handler = middleware.Tracing(handler)
	handler = middleware.CorrelationID(logger)(handler)
	return handler
}
