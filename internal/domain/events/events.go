package events

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/campusevents/server/internal/api/pagination"
)

var (
	ErrNotFound         = errors.New("event not found")
	ErrInvalidCategory  = errors.New("invalid category ID")
	ErrCompleted        = errors.New("cannot update completed events")
	ErrHasRegistrations = errors.New("cannot delete event with existing registrations")
	ErrInvalidStatus    = errors.New("invalid status. Must be one of: draft, published, cancelled, completed")
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

func ParseStatus(value string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(value))) {
	case StatusDraft:
		return StatusDraft, true
	case StatusPublished:
		return StatusPublished, true
	case StatusCancelled:
		return StatusCancelled, true
	case StatusCompleted:
		return StatusCompleted, true
	default:
		return "", false
	}
}

// Event is an events row with its category, creator and live counts.
// EventDate is YYYY-MM-DD and the times are HH:MM.
type Event struct {
	ID                   int64      `json:"id"`
	CollegeID            int64      `json:"college_id"`
	CategoryID           int64      `json:"category_id"`
	CategoryName         string     `json:"category_name"`
	Title                string     `json:"title"`
	Description          *string    `json:"description"`
	EventDate            string     `json:"event_date"`
	StartTime            string     `json:"start_time"`
	EndTime              string     `json:"end_time"`
	Location             *string    `json:"location"`
	Capacity             *int       `json:"capacity"`
	RegistrationDeadline *time.Time `json:"registration_deadline"`
	CreatedBy            int64      `json:"created_by"`
	CreatedByName        string     `json:"created_by_name"`
	Status               Status     `json:"status"`
	RegistrationCount    int        `json:"registration_count"`
	AttendanceCount      int        `json:"attendance_count"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// SortField is an allowlisted ORDER BY column for event listings.
type SortField string

const (
	SortEventDate SortField = "event_date"
	SortTitle     SortField = "title"
	SortCreatedAt SortField = "created_at"
	SortCapacity  SortField = "capacity"
)

// ParseSortField falls back to event_date for unknown values.
func ParseSortField(value string) SortField {
	switch SortField(strings.TrimSpace(value)) {
	case SortTitle:
		return SortTitle
	case SortCreatedAt:
		return SortCreatedAt
	case SortCapacity:
		return SortCapacity
	default:
		return SortEventDate
	}
}

type Filters struct {
	Status     Status
	CategoryID int64
	Search     string
	SortBy     SortField
	SortOrder  pagination.SortOrder
}

type ListResult struct {
	Events []Event
	Total  int
}

// WriteParams carries validated, sanitized event fields to storage.
type WriteParams struct {
	CollegeID            int64
	CategoryID           int64
	CreatedBy            int64
	Title                string
	Description          *string
	EventDate            string
	StartTime            string
	EndTime              string
	Location             *string
	Capacity             *int
	RegistrationDeadline *time.Time
}

// Registrant is one row of an event's registration roster.
type Registrant struct {
	ID               int64     `json:"id"`
	EventID          int64     `json:"event_id"`
	UserID           int64     `json:"user_id"`
	Status           string    `json:"status"`
	RegistrationDate time.Time `json:"registration_date"`
	FirstName        string    `json:"first_name"`
	LastName         string    `json:"last_name"`
	Email            string    `json:"email"`
	StudentID        *string   `json:"student_id"`
}

type RosterResult struct {
	Registrations []Registrant
	Total         int
}

type Repository interface {
	List(ctx context.Context, collegeID int64, filters Filters, page pagination.Params) ([]Event, error)
	Count(ctx context.Context, collegeID int64, filters Filters) (int, error)
	// Get returns ErrNotFound when the event is missing or owned by another college.
	Get(ctx context.Context, id, collegeID int64) (*Event, error)
	CategoryExists(ctx context.Context, id int64) (bool, error)
	Create(ctx context.Context, params WriteParams) (int64, error)
	Update(ctx context.Context, id int64, params WriteParams) error
	SetStatus(ctx context.Context, id, collegeID int64, status Status) error
	Delete(ctx context.Context, id, collegeID int64) error
	HasRegistrations(ctx context.Context, id int64) (bool, error)
	ListRegistrations(ctx context.Context, eventID int64, status string, page pagination.Params) ([]Registrant, int, error)
}

// CompletionNotifier is told when an event moves to completed so attendees
// can be asked for feedback.
type CompletionNotifier interface {
	EventCompleted(ctx context.Context, eventID, collegeID int64) error
}
