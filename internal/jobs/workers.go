package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/campusevents/server/internal/email"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/rivertype"
	"github.com/rs/zerolog"
)

// ErrRecipientGone is returned by a Directory when the registration, user or
// event behind a job no longer exists.
var ErrRecipientGone = errors.New("notification recipient no longer exists")

// Notice is the data an email template needs about one student and one event.
type Notice struct {
	Email       string
	FirstName   string
	LastName    string
	CollegeName string
	EventID     int64
	EventTitle  string
	EventDate   string
	StartTime   string
	EndTime     string
	Location    string
}

func (n Notice) studentName() string {
	return strings.TrimSpace(n.FirstName + " " + n.LastName)
}

// Directory resolves job arguments into recipients.
type Directory interface {
	RegistrationNotice(ctx context.Context, registrationID int64) (*Notice, error)
	Attendees(ctx context.Context, eventID int64) ([]int64, error)
	AttendeeNotice(ctx context.Context, eventID, userID int64) (*Notice, error)
}

// Mailer is implemented by email.Service.
type Mailer interface {
	SendRegistrationConfirmation(ctx context.Context, msg email.RegistrationConfirmation) error
	SendFeedbackRequest(ctx context.Context, msg email.FeedbackRequest) error
}

type RegistrationConfirmationArgs struct {
	RegistrationID int64 `json:"registration_id"`
	EventID        int64 `json:"event_id"`
	UserID         int64 `json:"user_id"`
}

func (RegistrationConfirmationArgs) Kind() string { return JobKindRegistrationConfirmation }

// EventCompletedArgs fans out one FeedbackRequestArgs job per attendee.
type EventCompletedArgs struct {
	EventID   int64 `json:"event_id"`
	CollegeID int64 `json:"college_id"`
}

func (EventCompletedArgs) Kind() string { return JobKindEventCompleted }

type FeedbackRequestArgs struct {
	EventID int64 `json:"event_id"`
	UserID  int64 `json:"user_id"`
}

func (FeedbackRequestArgs) Kind() string { return JobKindFeedbackRequest }

type RegistrationConfirmationWorker struct {
	river.WorkerDefaults[RegistrationConfirmationArgs]
	Directory Directory
	Mailer    Mailer
	Logger    zerolog.Logger
}

func (w RegistrationConfirmationWorker) Work(ctx context.Context, job *river.Job[RegistrationConfirmationArgs]) error {
	if job == nil {
		return fmt.Errorf("registration confirmation job missing")
	}
	notice, err := w.Directory.RegistrationNotice(ctx, job.Args.RegistrationID)
	if errors.Is(err, ErrRecipientGone) {
		w.Logger.Info().Int64("registration_id", job.Args.RegistrationID).Msg("registration gone, skipping confirmation")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load registration %d: %w", job.Args.RegistrationID, err)
	}

	return w.Mailer.SendRegistrationConfirmation(ctx, email.RegistrationConfirmation{
		To:          notice.Email,
		StudentName: notice.studentName(),
		CollegeName: notice.CollegeName,
		EventTitle:  notice.EventTitle,
		EventDate:   notice.EventDate,
		StartTime:   notice.StartTime,
		EndTime:     notice.EndTime,
		Location:    notice.Location,
	})
}

// Enqueuer inserts follow-up jobs. *river.Client[pgx.Tx] satisfies it.
type Enqueuer interface {
	InsertMany(ctx context.Context, params []river.InsertManyParams) ([]*rivertype.JobInsertResult, error)
}

type EventCompletedWorker struct {
	river.WorkerDefaults[EventCompletedArgs]
	Directory Directory
	Policy    *RetryPolicy
	// Enqueuer overrides the client taken from the job context.
	Enqueuer Enqueuer
}

func (w EventCompletedWorker) Work(ctx context.Context, job *river.Job[EventCompletedArgs]) error {
	if job == nil {
		return fmt.Errorf("event completed job missing")
	}
	attendees, err := w.Directory.Attendees(ctx, job.Args.EventID)
	if err != nil {
		return fmt.Errorf("list attendees of event %d: %w", job.Args.EventID, err)
	}
	if len(attendees) == 0 {
		return nil
	}

	opts := w.Policy.InsertOpts(JobKindFeedbackRequest)
	params := make([]river.InsertManyParams, 0, len(attendees))
	for _, userID := range attendees {
		params = append(params, river.InsertManyParams{
			Args:       FeedbackRequestArgs{EventID: job.Args.EventID, UserID: userID},
			InsertOpts: opts,
		})
	}

	enqueuer := w.Enqueuer
	if enqueuer == nil {
		client, err := river.ClientFromContextSafely[pgx.Tx](ctx)
		if err != nil {
			return fmt.Errorf("river client unavailable: %w", err)
		}
		enqueuer = client
	}
	if _, err := enqueuer.InsertMany(ctx, params); err != nil {
		return fmt.Errorf("enqueue feedback requests: %w", err)
	}
	return nil
}

type FeedbackRequestWorker struct {
	river.WorkerDefaults[FeedbackRequestArgs]
	Directory Directory
	Mailer    Mailer
	// BaseURL is the public address feedback links point at. Empty omits the link.
	BaseURL string
	Logger  zerolog.Logger
}

func (w FeedbackRequestWorker) Work(ctx context.Context, job *river.Job[FeedbackRequestArgs]) error {
	if job == nil {
		return fmt.Errorf("feedback request job missing")
	}
	notice, err := w.Directory.AttendeeNotice(ctx, job.Args.EventID, job.Args.UserID)
	if errors.Is(err, ErrRecipientGone) {
		w.Logger.Info().
			Int64("event_id", job.Args.EventID).
			Int64("user_id", job.Args.UserID).
			Msg("attendee gone, skipping feedback request")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load attendee %d of event %d: %w", job.Args.UserID, job.Args.EventID, err)
	}

	msg := email.FeedbackRequest{
		To:          notice.Email,
		StudentName: notice.studentName(),
		CollegeName: notice.CollegeName,
		EventTitle:  notice.EventTitle,
		EventDate:   notice.EventDate,
	}
	if w.BaseURL != "" {
		msg.FeedbackURL = fmt.Sprintf("%s/api/feedback/events/%d", strings.TrimRight(w.BaseURL, "/"), notice.EventID)
	}
	return w.Mailer.SendFeedbackRequest(ctx, msg)
}

// Dependencies are what the notification workers need at runtime.
type Dependencies struct {
	Directory Directory
	Mailer    Mailer
	BaseURL   string
	Policy    *RetryPolicy
	Logger    zerolog.Logger
}

// NewWorkers registers every notification worker.
func NewWorkers(deps Dependencies) *river.Workers {
	logger := deps.Logger.With().Str("component", "jobs").Logger()
	workers := river.NewWorkers()
	river.AddWorker(workers, RegistrationConfirmationWorker{
		Directory: deps.Directory,
		Mailer:    deps.Mailer,
		Logger:    logger,
	})
	river.AddWorker(workers, EventCompletedWorker{
		Directory: deps.Directory,
		Policy:    deps.Policy,
	})
	river.AddWorker(workers, FeedbackRequestWorker{
		Directory: deps.Directory,
		Mailer:    deps.Mailer,
		BaseURL:   deps.BaseURL,
		Logger:    logger,
	})
	return workers
}
