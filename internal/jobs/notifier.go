package jobs

import (
	"context"
	"fmt"

	"github.com/campusevents/server/internal/domain/events"
	"github.com/campusevents/server/internal/domain/registrations"
	"github.com/campusevents/server/internal/metrics"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
)

var (
	_ events.CompletionNotifier = (*Notifier)(nil)
	_ registrations.Notifier    = (*Notifier)(nil)
)

// Inserter is the part of *river.Client[pgx.Tx] the notifier needs.
type Inserter interface {
	Insert(ctx context.Context, args river.JobArgs, opts *river.InsertOpts) (*rivertype.JobInsertResult, error)
}

// Notifier turns domain events into notification jobs.
type Notifier struct {
	client Inserter
	policy *RetryPolicy
}

func NewNotifier(client Inserter, policy *RetryPolicy) *Notifier {
	if policy == nil {
		policy = NewRetryPolicy(0)
	}
	return &Notifier{client: client, policy: policy}
}

func (n *Notifier) Registered(ctx context.Context, registrationID, eventID, userID int64) error {
	return n.enqueue(ctx, RegistrationConfirmationArgs{
		RegistrationID: registrationID,
		EventID:        eventID,
		UserID:         userID,
	})
}

func (n *Notifier) EventCompleted(ctx context.Context, eventID, collegeID int64) error {
	return n.enqueue(ctx, EventCompletedArgs{EventID: eventID, CollegeID: collegeID})
}

func (n *Notifier) enqueue(ctx context.Context, args river.JobArgs) error {
	kind := args.Kind()
	res, err := n.client.Insert(ctx, args, n.policy.InsertOpts(kind))
	switch {
	case err != nil:
		metrics.NotificationsEnqueued.WithLabelValues(kind, "error").Inc()
		return fmt.Errorf("enqueue %s: %w", kind, err)
	case res != nil && res.UniqueSkippedAsDuplicate:
		metrics.NotificationsEnqueued.WithLabelValues(kind, "duplicate").Inc()
	default:
		metrics.NotificationsEnqueued.WithLabelValues(kind, "enqueued").Inc()
	}
	return nil
}
