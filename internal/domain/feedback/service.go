package feedback

import (
	"context"
	"errors"
	"fmt"

	"github.com/campusevents/server/internal/api/pagination"
	"github.com/campusevents/server/internal/auth"
	"github.com/campusevents/server/internal/domain/calendar"
	"github.com/campusevents/server/internal/domain/events"
	"github.com/campusevents/server/internal/domain/stats"
	"github.com/campusevents/server/internal/sanitize"
	"github.com/campusevents/server/internal/validation"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Service struct {
	repo   Repository
	clock  calendar.Clock
	logger zerolog.Logger
}

func NewService(repo Repository, clock calendar.Clock, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		clock:  clock,
		logger: logger.With().Str("component", "feedback").Logger(),
	}
}

func (s *Service) Submit(ctx context.Context, userID, collegeID, eventID int64, in Input) (*Feedback, error) {
	in, err := clean(in)
	if err != nil {
		return nil, err
	}
	var fb *Feedback
	err = s.repo.InTx(ctx, func(ctx context.Context, tx Repository) error {
		event, err := tx.Event(ctx, eventID, collegeID)
		if errors.Is(err, ErrEventNotFound) {
			return ErrEventNotCompleted
		}
		if err != nil {
			return err
		}
		if event.Status != events.StatusCompleted {
			return ErrEventNotCompleted
		}

		attended, err := tx.HasAttended(ctx, eventID, userID)
		if err != nil {
			return fmt.Errorf("check attendance: %w", err)
		}
		if !attended {
			return ErrNotAttended
		}

		if _, err := tx.Find(ctx, eventID, userID); err == nil {
			return ErrAlreadySubmitted
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		fb, err = tx.Create(ctx, eventID, userID, in, s.clock.Now())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Int64("event_id", eventID).Int64("user_id", userID).Int("rating", fb.Rating).Msg("feedback submitted")
	return fb, nil
}

// Update replaces the caller's rating and comment and refreshes submitted_at.
func (s *Service) Update(ctx context.Context, userID, eventID int64, in Input) (*Feedback, error) {
	in, err := clean(in)
	if err != nil {
		return nil, err
	}
	existing, err := s.repo.Find(ctx, eventID, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, existing.ID, in, s.clock.Now())
}

func (s *Service) Delete(ctx context.Context, userID, eventID int64) error {
	existing, err := s.repo.Find(ctx, eventID, userID)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, existing.ID)
}

type ListResult struct {
	Event     EventRef
	Feedback  []Entry
	Aggregate Aggregate
}

// List returns one page of feedback with the event-wide count and average.
func (s *Service) List(ctx context.Context, collegeID, eventID int64, page pagination.Params) (ListResult, error) {
	event, err := s.repo.Event(ctx, eventID, collegeID)
	if err != nil {
		return ListResult{}, err
	}

	result := ListResult{Event: *event}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := s.repo.List(gctx, eventID, page)
		result.Feedback = rows
		return err
	})
	g.Go(func() error {
		agg, err := s.repo.Aggregate(gctx, eventID)
		result.Aggregate = agg
		return err
	})
	if err := g.Wait(); err != nil {
		return ListResult{}, fmt.Errorf("list feedback: %w", err)
	}
	if result.Feedback == nil {
		result.Feedback = []Entry{}
	}
	result.Aggregate.Average = stats.RoundedAverage(result.Aggregate.Average)
	return result, nil
}

// Summary is open to admins and to students who attended the event.
func (s *Service) Summary(ctx context.Context, userID, collegeID int64, role auth.Role, eventID int64) (*Summary, error) {
	event, err := s.repo.Event(ctx, eventID, collegeID)
	if err != nil {
		return nil, err
	}
	if !auth.IsAdmin(role) {
		attended, err := s.repo.HasAttended(ctx, eventID, userID)
		if err != nil {
			return nil, fmt.Errorf("check attendance: %w", err)
		}
		if !attended {
			return nil, ErrSummaryForbidden
		}
	}

	agg, err := s.repo.Aggregate(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("aggregate feedback: %w", err)
	}
	return &Summary{
		EventID:            event.ID,
		Title:              event.Title,
		EventDate:          event.EventDate,
		TotalFeedback:      agg.Count,
		AverageRating:      stats.RoundedAverage(agg.Average),
		StarCounts:         agg.Stars,
		RatingDistribution: stats.DistributionOf(agg.Stars, agg.Count),
	}, nil
}

func clean(in Input) (Input, error) {
	in.Comment = sanitize.TextPtr(in.Comment)
	if err := validation.Struct(in); err != nil {
		return Input{}, err
	}
	return in, nil
}
