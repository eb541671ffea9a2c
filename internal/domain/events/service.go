package events

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/campusevents/server/internal/api/pagination"
	"github.com/campusevents/server/internal/domain/calendar"
	"github.com/campusevents/server/internal/sanitize"
	"github.com/campusevents/server/internal/validation"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Service struct {
	repo     Repository
	clock    calendar.Clock
	notifier CompletionNotifier
	logger   zerolog.Logger
}

type Option func(*Service)

func WithClock(clock calendar.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

func WithNotifier(n CompletionNotifier) Option {
	return func(s *Service) { s.notifier = n }
}

func NewService(repo Repository, logger zerolog.Logger, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		clock:  calendar.NewClock(time.Local),
		logger: logger.With().Str("component", "events").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Input is the create/update payload. Updates replace every field.
type Input struct {
	Title                string  `json:"title" validate:"required,min=3,max=255"`
	Description          *string `json:"description" validate:"omitempty,max=1000"`
	EventDate            string  `json:"eventDate" validate:"required,isodate"`
	StartTime            string  `json:"startTime" validate:"required,hhmm"`
	EndTime              string  `json:"endTime" validate:"required,hhmm"`
	Location             *string `json:"location" validate:"omitempty,max=255"`
	Capacity             *int    `json:"capacity" validate:"omitempty,min=1"`
	RegistrationDeadline *string `json:"registrationDeadline" validate:"omitempty,datetime_or_date"`
	CategoryID           int64   `json:"categoryId" validate:"required,gt=0"`
}

func (s *Service) List(ctx context.Context, collegeID int64, filters Filters, page pagination.Params) (ListResult, error) {
	filters.Search = strings.TrimSpace(filters.Search)

	var result ListResult
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.repo.List(gctx, collegeID, filters, page)
		result.Events = rows
		return err
	})
	g.Go(func() error {
		total, err := s.repo.Count(gctx, collegeID, filters)
		result.Total = total
		return err
	})
	if err := g.Wait(); err != nil {
		return ListResult{}, fmt.Errorf("list events: %w", err)
	}
	if result.Events == nil {
		result.Events = []Event{}
	}
	return result, nil
}

func (s *Service) Get(ctx context.Context, id, collegeID int64) (*Event, error) {
	return s.repo.Get(ctx, id, collegeID)
}

// Create stores a new draft event owned by the acting admin's college.
func (s *Service) Create(ctx context.Context, createdBy, collegeID int64, in Input) (*Event, error) {
	params, err := s.prepare(ctx, in)
	if err != nil {
		return nil, err
	}
	params.CollegeID = collegeID
	params.CreatedBy = createdBy

	id, err := s.repo.Create(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	s.logger.Info().Int64("event_id", id).Int64("college_id", collegeID).Msg("event created")
	return s.repo.Get(ctx, id, collegeID)
}

func (s *Service) Update(ctx context.Context, id, collegeID int64, in Input) (*Event, error) {
	params, err := s.prepare(ctx, in)
	if err != nil {
		return nil, err
	}
	current, err := s.repo.Get(ctx, id, collegeID)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusCompleted {
		return nil, ErrCompleted
	}
	params.CollegeID = collegeID
	params.CreatedBy = current.CreatedBy

	if err := s.repo.Update(ctx, id, params); err != nil {
		return nil, fmt.Errorf("update event: %w", err)
	}
	return s.repo.Get(ctx, id, collegeID)
}

// SetStatus moves an event to any status; there is no transition graph.
func (s *Service) SetStatus(ctx context.Context, id, collegeID int64, raw string) (*Event, error) {
	status, ok := ParseStatus(raw)
	if !ok {
		return nil, ErrInvalidStatus
	}
	current, err := s.repo.Get(ctx, id, collegeID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetStatus(ctx, id, collegeID, status); err != nil {
		return nil, fmt.Errorf("set event status: %w", err)
	}

	if status == StatusCompleted && current.Status != StatusCompleted && s.notifier != nil {
		if err := s.notifier.EventCompleted(ctx, id, collegeID); err != nil {
			s.logger.Warn().Err(err).Int64("event_id", id).Msg("feedback request not queued")
		}
	}
	return s.repo.Get(ctx, id, collegeID)
}

// Delete refuses while any registration row exists, cancelled ones included.
func (s *Service) Delete(ctx context.Context, id, collegeID int64) error {
	if _, err := s.repo.Get(ctx, id, collegeID); err != nil {
		return err
	}
	has, err := s.repo.HasRegistrations(ctx, id)
	if err != nil {
		return fmt.Errorf("check registrations: %w", err)
	}
	if has {
		return ErrHasRegistrations
	}
	if err := s.repo.Delete(ctx, id, collegeID); err != nil {
		return err
	}
	s.logger.Info().Int64("event_id", id).Msg("event deleted")
	return nil
}

// Registrations lists an event's roster filtered by registration status,
// which defaults to registered.
func (s *Service) Registrations(ctx context.Context, id, collegeID int64, status string, page pagination.Params) (RosterResult, error) {
	status = strings.TrimSpace(status)
	if status == "" {
		status = "registered"
	}
	if status != "registered" && status != "cancelled" {
		return RosterResult{}, validation.New("status", "status must be one of: registered, cancelled")
	}
	if _, err := s.repo.Get(ctx, id, collegeID); err != nil {
		return RosterResult{}, err
	}
	rows, total, err := s.repo.ListRegistrations(ctx, id, status, page)
	if err != nil {
		return RosterResult{}, fmt.Errorf("list registrations: %w", err)
	}
	if rows == nil {
		rows = []Registrant{}
	}
	return RosterResult{Registrations: rows, Total: total}, nil
}

func (s *Service) prepare(ctx context.Context, in Input) (WriteParams, error) {
	in.Title = sanitize.Text(in.Title)
	in.Description = sanitize.TextPtr(in.Description)
	in.Location = sanitize.TextPtr(in.Location)
	in.StartTime = strings.TrimSpace(in.StartTime)
	in.EndTime = strings.TrimSpace(in.EndTime)
	if err := validation.Struct(in); err != nil {
		return WriteParams{}, err
	}

	eventDate, _ := s.clock.ParseDate(in.EventDate)
	if eventDate.Format(calendar.DateLayout) < s.clock.Today() {
		return WriteParams{}, validation.New("eventDate", "Event date cannot be in the past")
	}
	if minutes(in.StartTime) >= minutes(in.EndTime) {
		return WriteParams{}, validation.New("endTime", "Start time must be before end time")
	}

	var deadline *time.Time
	if in.RegistrationDeadline != nil {
		parsed, _ := validation.ParseDeadline(*in.RegistrationDeadline, s.clock.Location())
		if parsed.Before(s.clock.Now()) {
			return WriteParams{}, validation.New("registrationDeadline", "Registration deadline cannot be in the past")
		}
		deadline = &parsed
	}

	ok, err := s.repo.CategoryExists(ctx, in.CategoryID)
	if err != nil {
		return WriteParams{}, fmt.Errorf("check category: %w", err)
	}
	if !ok {
		return WriteParams{}, ErrInvalidCategory
	}

	return WriteParams{
		CategoryID:           in.CategoryID,
		Title:                in.Title,
		Description:          in.Description,
		EventDate:            eventDate.Format(calendar.DateLayout),
		StartTime:            normalizeClock(in.StartTime),
		EndTime:              normalizeClock(in.EndTime),
		Location:             in.Location,
		Capacity:             in.Capacity,
		RegistrationDeadline: deadline,
	}, nil
}

// minutes converts a validated HH:MM value to minutes past midnight.
func minutes(clock string) int {
	parts := strings.SplitN(clock, ":", 2)
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	return h*60 + m
}

func normalizeClock(clock string) string {
	m := minutes(clock)
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
