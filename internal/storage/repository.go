package storage

import (
	"context"

	"github.com/campusevents/server/internal/domain/events"
	"github.com/campusevents/server/internal/domain/feedback"
	"github.com/campusevents/server/internal/domain/registrations"
	"github.com/campusevents/server/internal/domain/reports"
	"github.com/campusevents/server/internal/domain/users"
)

// Repository groups data access by domain.
type Repository interface {
	Users() users.Repository
	Events() events.Repository
	Registrations() registrations.Repository
	Feedback() feedback.Repository
	Reports() reports.Repository

	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	Ping(ctx context.Context) error
}
