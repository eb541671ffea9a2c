// Package registrations covers the student side of an event: registering,
// cancelling, checking in and out, plus the attendance views admins use.
package registrations

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/campusevents/server/internal/api/pagination"
	"github.com/campusevents/server/internal/domain/events"
)

var (
	ErrEventNotFound        = errors.New("event not found")
	ErrEventUnavailable     = errors.New("event not found or not available for registration")
	ErrDeadlinePassed       = errors.New("registration deadline has passed")
	ErrCapacityReached      = errors.New("event is at full capacity")
	ErrAlreadyRegistered    = errors.New("already registered for this event")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrCheckInUnavailable   = errors.New("event not found or not available for check-in")
	ErrNotRegistered        = errors.New("you must be registered for this event to check in")
	ErrNotEventDay          = errors.New("check-in is only available on the event date")
	ErrAlreadyCheckedIn     = errors.New("already checked in for this event")
	ErrAttendanceNotFound   = errors.New("no active attendance record found for this event")
)

const (
	StatusRegistered  = "registered"
	StatusCancelled   = "cancelled"
	AttendancePresent = "present"
)

// EventSnapshot is the subset of an event the registration rules read.
type EventSnapshot struct {
	ID                   int64
	CollegeID            int64
	Title                string
	Status               events.Status
	EventDate            string
	Capacity             *int
	RegistrationDeadline *time.Time
	ActiveRegistrations  int
}

type Registration struct {
	ID               int64     `json:"id"`
	EventID          int64     `json:"event_id"`
	UserID           int64     `json:"user_id"`
	Status           string    `json:"status"`
	RegistrationDate time.Time `json:"registration_date"`
}

func (r Registration) Active() bool {
	return r.Status == StatusRegistered
}

type Attendance struct {
	ID           int64      `json:"id"`
	EventID      int64      `json:"event_id"`
	UserID       int64      `json:"user_id"`
	CheckInTime  time.Time  `json:"check_in_time"`
	CheckOutTime *time.Time `json:"check_out_time"`
	Status       string     `json:"status"`
}

// Attendee is an attendance row with the attendee's identity.
type Attendee struct {
	Attendance
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Email     string  `json:"email"`
	StudentID *string `json:"student_id"`
}

type Summary struct {
	EventID              int64   `json:"event_id"`
	Title                string  `json:"title"`
	EventDate            string  `json:"event_date"`
	Capacity             *int    `json:"capacity"`
	TotalRegistrations   int     `json:"total_registrations"`
	TotalAttendance      int     `json:"total_attendance"`
	CheckedOut           int     `json:"checked_out"`
	AttendancePercentage float64 `json:"attendance_percentage"`
}

// EventDetails are the event columns joined onto a student's history rows.
type EventDetails struct {
	Title        string        `json:"title"`
	Description  *string       `json:"description"`
	EventDate    string        `json:"event_date"`
	StartTime    string        `json:"start_time"`
	EndTime      string        `json:"end_time"`
	Location     *string       `json:"location"`
	EventStatus  events.Status `json:"event_status"`
	CategoryName string        `json:"category_name"`
}

type StudentRegistration struct {
	Registration
	EventDetails
	Attended bool `json:"attended"`
}

type StudentAttendance struct {
	Attendance
	EventDetails
}

// BrowseEvent is an event as a student sees it.
type BrowseEvent struct {
	events.Event
	IsRegistered bool `json:"is_registered"`
}

type RegistrationSort string

const (
	SortRegistrationDate RegistrationSort = "registration_date"
	SortRegEventDate     RegistrationSort = "event_date"
	SortRegTitle         RegistrationSort = "title"
)

func ParseRegistrationSort(value string) RegistrationSort {
	switch RegistrationSort(strings.TrimSpace(value)) {
	case SortRegEventDate:
		return SortRegEventDate
	case SortRegTitle:
		return SortRegTitle
	default:
		return SortRegistrationDate
	}
}

type AttendanceSort string

const (
	SortCheckInTime  AttendanceSort = "check_in_time"
	SortCheckOutTime AttendanceSort = "check_out_time"
	SortAttEventDate AttendanceSort = "event_date"
	SortAttTitle     AttendanceSort = "title"
)

func ParseAttendanceSort(value string) AttendanceSort {
	switch AttendanceSort(strings.TrimSpace(value)) {
	case SortCheckOutTime:
		return SortCheckOutTime
	case SortAttEventDate:
		return SortAttEventDate
	case SortAttTitle:
		return SortAttTitle
	default:
		return SortCheckInTime
	}
}

type HistoryFilters struct {
	Status    string
	SortBy    RegistrationSort
	SortOrder pagination.SortOrder
}

type AttendanceFilters struct {
	SortBy    AttendanceSort
	SortOrder pagination.SortOrder
}

type BrowseFilters struct {
	CategoryID int64
	Search     string
	SortBy     events.SortField
	SortOrder  pagination.SortOrder
}

type Repository interface {
	// InTx runs fn against a repository bound to one transaction.
	InTx(ctx context.Context, fn func(ctx context.Context, tx Repository) error) error
	// LockEvent reads the event with a row lock held until the transaction ends.
	LockEvent(ctx context.Context, eventID, collegeID int64) (*EventSnapshot, error)
	Event(ctx context.Context, eventID, collegeID int64) (*EventSnapshot, error)

	FindRegistration(ctx context.Context, eventID, userID int64) (*Registration, error)
	CreateRegistration(ctx context.Context, eventID, userID int64, at time.Time) (*Registration, error)
	UpdateRegistrationStatus(ctx context.Context, id int64, status string, at time.Time) (*Registration, error)

	FindAttendance(ctx context.Context, eventID, userID int64) (*Attendance, error)
	CreateAttendance(ctx context.Context, eventID, userID int64, at time.Time) (*Attendance, error)
	CheckOut(ctx context.Context, id int64, at time.Time) (*Attendance, error)

	ListAttendance(ctx context.Context, eventID int64, page pagination.Params) ([]Attendee, int, error)
	AttendanceCounts(ctx context.Context, eventID int64) (registrations, attended, checkedOut int, err error)

	StudentRegistrations(ctx context.Context, userID int64, filters HistoryFilters, page pagination.Params) ([]StudentRegistration, int, error)
	StudentAttendance(ctx context.Context, userID int64, filters AttendanceFilters, page pagination.Params) ([]StudentAttendance, int, error)
	BrowseEvents(ctx context.Context, userID, collegeID int64, filters BrowseFilters, now time.Time, page pagination.Params) ([]BrowseEvent, int, error)
	BrowseEvent(ctx context.Context, userID, collegeID, eventID int64) (*BrowseEvent, error)
}

// Notifier hears about new registrations so confirmations can be sent.
type Notifier interface {
	Registered(ctx context.Context, registrationID, eventID, userID int64) error
}
