// Package feedback captures post-event ratings: one rating per attendee per
// completed event, with per-star summaries.
package feedback

import (
	"context"
	"errors"
	"time"

	"github.com/campusevents/server/internal/api/pagination"
	"github.com/campusevents/server/internal/domain/events"
	"github.com/campusevents/server/internal/domain/stats"
)

var (
	ErrNotFound          = errors.New("feedback not found")
	ErrEventNotFound     = errors.New("event not found")
	ErrEventNotCompleted = errors.New("event not found or not completed")
	ErrNotAttended       = errors.New("you must have attended this event to submit feedback")
	ErrAlreadySubmitted  = errors.New("feedback already submitted for this event")
	ErrSummaryForbidden  = errors.New("you must have attended this event to view feedback summary")
)

type Feedback struct {
	ID          int64     `json:"id"`
	EventID     int64     `json:"event_id"`
	UserID      int64     `json:"user_id"`
	Rating      int       `json:"rating"`
	Comment     *string   `json:"comment"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Entry is a feedback row with the author's identity.
type Entry struct {
	Feedback
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	StudentID *string `json:"student_id"`
}

type EventRef struct {
	ID        int64         `json:"id"`
	Title     string        `json:"title"`
	Status    events.Status `json:"-"`
	EventDate string        `json:"-"`
}

type Aggregate struct {
	Count   int
	Average *float64
	Stars   stats.StarCounts
}

type Summary struct {
	EventID       int64    `json:"event_id"`
	Title         string   `json:"title"`
	EventDate     string   `json:"event_date"`
	TotalFeedback int      `json:"total_feedback"`
	AverageRating *float64 `json:"average_rating"`
	stats.StarCounts
	RatingDistribution stats.Distribution `json:"rating_distribution"`
}

type Input struct {
	Rating  int     `json:"rating" validate:"required,min=1,max=5"`
	Comment *string `json:"comment" validate:"omitempty,max=500"`
}

type Repository interface {
	// InTx runs fn against a repository bound to one transaction.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error
	// Event returns ErrEventNotFound outside the given college.
	Event(ctx context.Context, eventID, collegeID int64) (*EventRef, error)
	HasAttended(ctx context.Context, eventID, userID int64) (bool, error)
	Find(ctx context.Context, eventID, userID int64) (*Feedback, error)
	// Create returns ErrAlreadySubmitted when a row for the pair exists.
	Create(ctx context.Context, eventID, userID int64, in Input, at time.Time) (*Feedback, error)
	Update(ctx context.Context, id int64, in Input, at time.Time) (*Feedback, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, eventID int64, page pagination.Params) ([]Entry, error)
	Aggregate(ctx context.Context, eventID int64) (Aggregate, error)
}
