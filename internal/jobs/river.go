package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
)

const (
	JobKindRegistrationConfirmation = "registration_confirmation"
	JobKindEventCompleted           = "event_completed"
	JobKindFeedbackRequest          = "feedback_request"
)

// QueueNotifications carries every outbound email so delivery concurrency can
// be tuned separately from the default queue.
const QueueNotifications = "notifications"

const (
	NotificationMaxAttempts = 5
	FanOutMaxAttempts       = 3
)

// RetryConfig controls per-kind retry behavior.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryPolicy implements River's ClientRetryPolicy with per-kind exponential backoff.
type RetryPolicy struct {
	Default RetryConfig
	ByKind  map[string]RetryConfig
}

// NewRetryPolicy returns the retry schedule. maxAttempts overrides the
// attempt budget of email jobs when positive.
func NewRetryPolicy(maxAttempts int) *RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = NotificationMaxAttempts
	}
	email := RetryConfig{
		MaxAttempts: maxAttempts,
		BaseDelay:   30 * time.Second,
		MaxDelay:    30 * time.Minute,
	}
	return &RetryPolicy{
		Default: email,
		ByKind: map[string]RetryConfig{
			JobKindRegistrationConfirmation: email,
			JobKindFeedbackRequest:          email,
			JobKindEventCompleted: {
				MaxAttempts: FanOutMaxAttempts,
				BaseDelay:   10 * time.Second,
				MaxDelay:    5 * time.Minute,
			},
		},
	}
}

// NextRetry determines the next retry time for a failed job.
func (p *RetryPolicy) NextRetry(job *rivertype.JobRow) time.Time {
	cfg := p.configFor(job.Kind)
	if cfg.BaseDelay == 0 {
		return time.Now()
	}

	attempt := max(job.Attempt, 1)
	delay := time.Duration(float64(cfg.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if cfg.MaxDelay > 0 && delay > cfg.MaxDelay {
		delay = cfg.MaxDelay
	}

	if job.AttemptedAt != nil {
		return job.AttemptedAt.Add(delay)
	}
	return time.Now().Add(delay)
}

// InsertOpts returns the insert options for a job kind.
func (p *RetryPolicy) InsertOpts(kind string) *river.InsertOpts {
	opts := &river.InsertOpts{
		MaxAttempts: p.configFor(kind).MaxAttempts,
		Queue:       QueueNotifications,
		// A retried request handler or a double status change must not send
		// the same email twice.
		UniqueOpts: river.UniqueOpts{ByArgs: true},
	}
	if kind == JobKindEventCompleted {
		opts.Queue = river.QueueDefault
	}
	return opts
}

func (p *RetryPolicy) configFor(kind string) RetryConfig {
	if p == nil {
		return RetryConfig{MaxAttempts: NotificationMaxAttempts, BaseDelay: time.Minute, MaxDelay: time.Hour}
	}
	if cfg, ok := p.ByKind[kind]; ok {
		return cfg
	}
	return p.Default
}

// ClientOptions configures the River client.
type ClientOptions struct {
	MaxWorkers  int
	MaxAttempts int
	Logger      *slog.Logger
	Alerts      zerolog.Logger
	Hooks       []rivertype.Hook
}

// NewClientConfig builds a River client configuration with retry policy.
func NewClientConfig(workers *river.Workers, opts ClientOptions) *river.Config {
	maxWorkers := opts.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 5
	}
	policy := NewRetryPolicy(opts.MaxAttempts)
	return &river.Config{
		Workers:     workers,
		RetryPolicy: policy,
		MaxAttempts: policy.Default.MaxAttempts,
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 2},
			QueueNotifications: {MaxWorkers: maxWorkers},
		},
		Hooks:        opts.Hooks,
		Logger:       opts.Logger,
		ErrorHandler: NewAlertingErrorHandler(opts.Alerts, nil),
	}
}

// NewClient creates a River client using pgx v5.
func NewClient(pool *pgxpool.Pool, workers *river.Workers, opts ClientOptions) (*river.Client[pgx.Tx], error) {
	return river.NewClient(riverpgxv5.New(pool), NewClientConfig(workers, opts))
}

// Migrate brings River's own tables up to date.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{}); err != nil {
		return fmt.Errorf("migrate river schema: %w", err)
	}
	return nil
}
