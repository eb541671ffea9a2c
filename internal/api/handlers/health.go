package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/campusevents/server/internal/metrics"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	checkPass = "pass"
	checkWarn = "warn"
	checkFail = "fail"
)

// HealthCheck is the body of GET /health.
type HealthCheck struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit"`
	Checks    map[string]CheckResult `json:"checks"`
	Timestamp string                 `json:"timestamp"`
}

type CheckResult struct {
	Status    string         `json:"status"`
	Message   string         `json:"message,omitempty"`
	LatencyMs int64          `json:"latency_ms"`
	Details   map[string]any `json:"details,omitempty"`
}

// HealthDB is the query surface the checks need. *pgxpool.Pool satisfies it.
type HealthDB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type HealthChecker struct {
	db          HealthDB
	jobsEnabled bool
	version     string
	gitCommit   string
	now         func() time.Time
}

// NewHealthChecker builds the /health handler. jobsEnabled says whether the
// River notification queue is expected to be running.
func NewHealthChecker(db HealthDB, jobsEnabled bool, version, gitCommit string) *HealthChecker {
	return &HealthChecker{
		db:          db,
		jobsEnabled: jobsEnabled,
		version:     version,
		gitCommit:   gitCommit,
		now:         time.Now,
	}
}

func (h *HealthChecker) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
			return
		default:
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		checks := map[string]CheckResult{
			"database":   h.checkDatabase(ctx),
			"migrations": h.checkMigrations(ctx),
			"job_queue":  h.checkJobQueue(ctx),
		}

		overall, code := "healthy", http.StatusOK
		for name, check := range checks {
			metrics.HealthCheckStatus.WithLabelValues(name).Set(checkGauge(check.Status))
			metrics.HealthCheckLatency.WithLabelValues(name).Set(float64(check.LatencyMs))
			switch {
			case check.Status == checkFail:
				overall, code = "unhealthy", http.StatusServiceUnavailable
			case check.Status == checkWarn && overall == "healthy":
				overall = "degraded"
			}
		}
		metrics.HealthStatus.Set(overallGauge(overall))

		writeJSON(w, code, HealthCheck{
			Status:    overall,
			Version:   h.version,
			GitCommit: h.gitCommit,
			Checks:    checks,
			Timestamp: h.now().UTC().Format(time.RFC3339),
		})
	}
}

func checkGauge(status string) float64 {
	switch status {
	case checkPass:
		return 1
	case checkWarn:
		return 0.5
	default:
		return 0
	}
}

func overallGauge(status string) float64 {
	switch status {
	case "healthy":
		return 1
	case "degraded":
		return 0.5
	default:
		return 0
	}
}

func (h *HealthChecker) checkDatabase(ctx context.Context) CheckResult {
	if h.db == nil {
		return CheckResult{Status: checkFail, Message: "Database pool not initialized"}
	}

	start := time.Now()
	dbCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var one int
	err := h.db.QueryRow(dbCtx, "SELECT 1").Scan(&one)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return CheckResult{
			Status:    checkFail,
			Message:   databaseFailure(err),
			LatencyMs: latency,
			Details:   map[string]any{"error": err.Error()},
		}
	}

	result := CheckResult{Status: checkPass, Message: "PostgreSQL connection successful", LatencyMs: latency}
	if pool, ok := h.db.(*pgxpool.Pool); ok {
		stat := pool.Stat()
		result.Details = map[string]any{
			"max_connections":      stat.MaxConns(),
			"total_connections":    stat.TotalConns(),
			"idle_connections":     stat.IdleConns(),
			"acquired_connections": stat.AcquiredConns(),
		}
	}
	return result
}

func databaseFailure(err error) string {
	msg := err.Error()
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "Database query timed out after 2 seconds"
	case strings.Contains(msg, "connection refused"):
		return "Database connection refused"
	case strings.Contains(msg, "no such host"):
		return "Cannot reach database host"
	case strings.Contains(msg, "authentication failed"):
		return "Database authentication failed"
	default:
		return "Database query failed"
	}
}

// checkMigrations reads golang-migrate's bookkeeping table.
func (h *HealthChecker) checkMigrations(ctx context.Context) CheckResult {
	if h.db == nil {
		return CheckResult{Status: checkFail, Message: "Database pool not initialized"}
	}

	start := time.Now()
	migCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var version int64
	var dirty bool
	err := h.db.QueryRow(migCtx, `SELECT version, dirty FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version, &dirty)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		message := "Failed to query migration version"
		if strings.Contains(err.Error(), "does not exist") || errors.Is(err, pgx.ErrNoRows) {
			message = "Migrations have not been applied"
		}
		return CheckResult{Status: checkFail, Message: message, LatencyMs: latency, Details: map[string]any{"error": err.Error()}}
	}

	if dirty {
		return CheckResult{
			Status:    checkFail,
			Message:   "Database in dirty migration state - manual intervention required",
			LatencyMs: latency,
			Details:   map[string]any{"version": version, "dirty": true},
		}
	}

	return CheckResult{
		Status:    checkPass,
		Message:   fmt.Sprintf("Migrations applied successfully (version %d)", version),
		LatencyMs: latency,
		Details:   map[string]any{"version": version, "dirty": false},
	}
}

// checkJobQueue warns rather than fails: notifications are optional.
func (h *HealthChecker) checkJobQueue(ctx context.Context) CheckResult {
	if !h.jobsEnabled {
		return CheckResult{Status: checkWarn, Message: "Notification jobs disabled"}
	}
	if h.db == nil {
		return CheckResult{Status: checkFail, Message: "Database pool not initialized"}
	}

	start := time.Now()
	jobCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var exists bool
	err := h.db.QueryRow(jobCtx, `
SELECT EXISTS (
  SELECT FROM information_schema.tables
   WHERE table_schema = current_schema() AND table_name = 'river_job'
)`).Scan(&exists)
	if err != nil {
		return CheckResult{
			Status:    checkFail,
			Message:   "Failed to check job queue table existence",
			LatencyMs: time.Since(start).Milliseconds(),
			Details:   map[string]any{"error": err.Error()},
		}
	}
	if !exists {
		return CheckResult{
			Status:    checkWarn,
			Message:   "River job queue table not found",
			LatencyMs: time.Since(start).Milliseconds(),
		}
	}

	var pending, failed int64
	err = h.db.QueryRow(jobCtx, `
SELECT count(*) FILTER (WHERE state IN ('available', 'running', 'retryable')),
       count(*) FILTER (WHERE state = 'discarded')
  FROM river_job`).Scan(&pending, &failed)
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return CheckResult{Status: checkFail, Message: "Failed to query job queue", LatencyMs: latency, Details: map[string]any{"error": err.Error()}}
	}

	return CheckResult{
		Status:    checkPass,
		Message:   "River job queue operational",
		LatencyMs: latency,
		Details:   map[string]any{"pending_jobs": pending, "discarded_jobs": failed},
	}
}
