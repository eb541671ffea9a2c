package registrations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campusevents/server/internal/api/pagination"
	"github.com/campusevents/server/internal/domain/calendar"
	"github.com/campusevents/server/internal/domain/events"
	"github.com/campusevents/server/internal/domain/stats"
	"github.com/campusevents/server/internal/validation"
	"github.com/rs/zerolog"
)

type Service struct {
	repo     Repository
	clock    calendar.Clock
	notifier Notifier
	logger   zerolog.Logger
}

type Option func(*Service)

func WithClock(clock calendar.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func NewService(repo Repository, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		clock:  calendar.NewClock(time.Local),
		logger: logger.With().Str("component", "registrations").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register signs a student up for a published event of their college. The
// event row stays locked while capacity is checked and the row is written, so
// concurrent registrations for one event are serialized.
func (s *Service) Register(ctx context.Context, userID, collegeID, eventID int64) (*Registration, error) {
	now := s.clock.Now()
	var reg *Registration
	err := s.repo.InTx(ctx, func(ctx context.Context, tx Repository) error {
		event, err := tx.LockEvent(ctx, eventID, collegeID)
		if errors.Is(err, ErrEventNotFound) {
			return ErrEventUnavailable
		}
		if err != nil {
			return err
		}
		if event.Status != events.StatusPublished {
			return ErrEventUnavailable
		}
		if event.RegistrationDeadline != nil && now.After(*event.RegistrationDeadline) {
			return ErrDeadlinePassed
		}
		if event.Capacity != nil && event.ActiveRegistrations >= *event.Capacity {
			return ErrCapacityReached
		}

		existing, err := tx.FindRegistration(ctx, eventID, userID)
		switch {
		case err == nil && existing.Active():
			return ErrAlreadyRegistered
		case err == nil:
			reg, err = tx.UpdateRegistrationStatus(ctx, existing.ID, StatusRegistered, now)
			return err
		case errors.Is(err, ErrRegistrationNotFound):
			reg, err = tx.CreateRegistration(ctx, eventID, userID, now)
			return err
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int64("event_id", eventID).Int64("user_id", userID).Msg("student registered")
	if s.notifier != nil {
		if err := s.notifier.Registered(ctx, reg.ID, eventID, userID); err != nil {
			s.logger.Warn().Err(err).Int64("registration_id", reg.ID).Msg("registration confirmation not queued")
		}
	}
	return reg, nil
}

// Cancel flips an active registration to cancelled; the row is kept.
func (s *Service) Cancel(ctx context.Context, userID, eventID int64) (*Registration, error) {
	existing, err := s.repo.FindRegistration(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if !existing.Active() {
		return nil, ErrRegistrationNotFound
	}
	return s.repo.UpdateRegistrationStatus(ctx, existing.ID, StatusCancelled, existing.RegistrationDate)
}

// CheckIn records attendance. It is only allowed on the event's calendar
// date for a user holding an active registration. The checks and the insert
// share one transaction.
func (s *Service) CheckIn(ctx context.Context, userID, collegeID, eventID int64) (*Attendance, error) {
	var att *Attendance
	err := s.repo.InTx(ctx, func(ctx context.Context, tx Repository) error {
		event, err := tx.Event(ctx, eventID, collegeID)
		if errors.Is(err, ErrEventNotFound) {
			return ErrCheckInUnavailable
		}
		if err != nil {
			return err
		}
		if event.Status != events.StatusPublished {
			return ErrCheckInUnavailable
		}

		reg, err := tx.FindRegistration(ctx, eventID, userID)
		if errors.Is(err, ErrRegistrationNotFound) || (err == nil && !reg.Active()) {
			return ErrNotRegistered
		}
		if err != nil {
			return err
		}

		if event.EventDate != s.clock.Today() {
			return ErrNotEventDay
		}

		if _, err := tx.FindAttendance(ctx, eventID, userID); err == nil {
			return ErrAlreadyCheckedIn
		} else if !errors.Is(err, ErrAttendanceNotFound) {
			return err
		}

		att, err = tx.CreateAttendance(ctx, eventID, userID, s.clock.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("event_id", eventID).Int64("user_id", userID).Msg("checked in")
	return att, nil
}

func (s *Service) CheckOut(ctx context.Context, userID, eventID int64) (*Attendance, error) {
	att, err := s.repo.FindAttendance(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	if att.CheckOutTime != nil {
		return nil, ErrAttendanceNotFound
	}
	return s.repo.CheckOut(ctx, att.ID, s.clock.Now())
}

type AttendeePage struct {
	Attendance []Attendee
	Total      int
}

func (s *Service) Attendance(ctx context.Context, collegeID, eventID int64, page pagination.Params) (AttendeePage, error) {
	if _, err := s.repo.Event(ctx, eventID, collegeID); err != nil {
		return AttendeePage{}, err
	}
	rows, total, err := s.repo.ListAttendance(ctx, eventID, page)
	if err != nil {
		return AttendeePage{}, fmt.Errorf("list attendance: %w", err)
	}
	if rows == nil {
		rows = []Attendee{}
	}
	return AttendeePage{Attendance: rows, Total: total}, nil
}

// Summary reports attendance as a percentage of active registrations.
func (s *Service) Summary(ctx context.Context, collegeID, eventID int64) (*Summary, error) {
	event, err := s.repo.Event(ctx, eventID, collegeID)
	if err != nil {
		return nil, err
	}
	registered, attended, checkedOut, err := s.repo.AttendanceCounts(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("attendance counts: %w", err)
	}
	return &Summary{
		EventID:              event.ID,
		Title:                event.Title,
		EventDate:            event.EventDate,
		Capacity:             event.Capacity,
		TotalRegistrations:   registered,
		TotalAttendance:      attended,
		CheckedOut:           checkedOut,
		AttendancePercentage: stats.Percentage(attended, registered),
	}, nil
}

type HistoryPage struct {
	Registrations []StudentRegistration
	Total         int
}

func (s *Service) History(ctx context.Context, userID int64, filters HistoryFilters, page pagination.Params) (HistoryPage, error) {
	filters.Status = strings.TrimSpace(filters.Status)
	if filters.Status == "" {
		filters.Status = StatusRegistered
	}
	if filters.Status != StatusRegistered && filters.Status != StatusCancelled {
		return HistoryPage{}, validation.New("status", "status must be one of: registered, cancelled")
	}
	if filters.SortBy == "" {
		filters.SortBy = SortRegistrationDate
	}
	if filters.SortOrder == "" {
		filters.SortOrder = pagination.Desc
	}
	rows, total, err := s.repo.StudentRegistrations(ctx, userID, filters, page)
	if err != nil {
		return HistoryPage{}, fmt.Errorf("student registrations: %w", err)
	}
	if rows == nil {
		rows = []StudentRegistration{}
	}
	return HistoryPage{Registrations: rows, Total: total}, nil
}

type AttendanceHistoryPage struct {
	Attendance []StudentAttendance
	Total      int
}

func (s *Service) AttendanceHistory(ctx context.Context, userID int64, filters AttendanceFilters, page pagination.Params) (AttendanceHistoryPage, error) {
	if filters.SortBy == "" {
		filters.SortBy = SortCheckInTime
	}
	if filters.SortOrder == "" {
		filters.SortOrder = pagination.Desc
	}
	rows, total, err := s.repo.StudentAttendance(ctx, userID, filters, page)
	if err != nil {
		return AttendanceHistoryPage{}, fmt.Errorf("student attendance: %w", err)
	}
	if rows == nil {
		rows = []StudentAttendance{}
	}
	return AttendanceHistoryPage{Attendance: rows, Total: total}, nil
}

type BrowsePage struct {
	Events []BrowseEvent
	Total  int
}

// Browse lists published events of the student's college that are still open
// for registration.
func (s *Service) Browse(ctx context.Context, userID, collegeID int64, filters BrowseFilters, page pagination.Params) (BrowsePage, error) {
	filters.Search = strings.TrimSpace(filters.Search)
	if filters.SortBy == "" {
		filters.SortBy = events.SortEventDate
	}
	if filters.SortOrder == "" {
		filters.SortOrder = pagination.Asc
	}
	rows, total, err := s.repo.BrowseEvents(ctx, userID, collegeID, filters, s.clock.Now(), page)
	if err != nil {
		return BrowsePage{}, fmt.Errorf("browse events: %w", err)
	}
	if rows == nil {
		rows = []BrowseEvent{}
	}
	return BrowsePage{Events: rows, Total: total}, nil
}

func (s *Service) BrowseEvent(ctx context.Context, userID, collegeID, eventID int64) (*BrowseEvent, error) {
	return s.repo.BrowseEvent(ctx, userID, collegeID, eventID)
}
