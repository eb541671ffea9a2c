package reports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/campusevents/server/internal/api/pagination"
	"github.com/campusevents/server/internal/domain/stats"
	"github.com/campusevents/server/internal/validation"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultTopStudents = 3
	dateLayout         = "2006-01-02"
)

type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "reports").Logger()}
}

type PopularityPage struct {
	Events []EventPopularity
	Total  int
}

func (s *Service) EventPopularity(ctx context.Context, collegeID int64, filters PopularityFilters, page pagination.Params) (PopularityPage, error) {
	if err := checkRange(filters.StartDate, filters.EndDate); err != nil {
		return PopularityPage{}, err
	}
	if filters.SortOrder == "" {
		filters.SortOrder = pagination.Desc
	}
	rows, total, err := s.repo.EventPopularity(ctx, collegeID, filters, page)
	if err != nil {
		return PopularityPage{}, fmt.Errorf("event popularity: %w", err)
	}
	return PopularityPage{Events: finishEvents(rows), Total: total}, nil
}

type ParticipationPage struct {
	Students []StudentParticipation
	Total    int
}

// StudentParticipation lists students who attended at least minEvents events.
func (s *Service) StudentParticipation(ctx context.Context, collegeID int64, minEvents int, order pagination.SortOrder, page pagination.Params) (ParticipationPage, error) {
	if minEvents < 0 {
		return ParticipationPage{}, validation.New("minEvents", "minEvents must be greater than or equal to 0")
	}
	if order == "" {
		order = pagination.Desc
	}
	rows, total, err := s.repo.StudentParticipation(ctx, collegeID, minEvents, order, page)
	if err != nil {
		return ParticipationPage{}, fmt.Errorf("student participation: %w", err)
	}
	return ParticipationPage{Students: finishStudents(rows), Total: total}, nil
}

// TopStudents orders by attendance, then registrations. limit defaults to 3.
func (s *Service) TopStudents(ctx context.Context, collegeID int64, limit int) ([]StudentParticipation, error) {
	if limit <= 0 {
		limit = DefaultTopStudents
	}
	if limit > pagination.MaxLimit {
		limit = pagination.MaxLimit
	}
	rows, err := s.repo.TopStudents(ctx, collegeID, limit)
	if err != nil {
		return nil, fmt.Errorf("top students: %w", err)
	}
	return finishStudents(rows), nil
}

func (s *Service) AttendanceSummary(ctx context.Context, collegeID int64, filters Filters) (AttendanceSummary, error) {
	if err := checkRange(filters.StartDate, filters.EndDate); err != nil {
		return AttendanceSummary{}, err
	}
	summary, err := s.repo.AttendanceSummary(ctx, collegeID, filters)
	if err != nil {
		return AttendanceSummary{}, fmt.Errorf("attendance summary: %w", err)
	}
	// Students, not rows: someone who registered for three events and attended
	// one counts as an attendee.
	summary.OverallAttendancePercentage = stats.Percentage(summary.UniqueAttendees, summary.UniqueRegistrants)
	summary.AverageFeedbackRating = stats.RoundedAverage(summary.AverageFeedbackRating)
	return summary, nil
}

func (s *Service) FeedbackSummary(ctx context.Context, collegeID int64, filters Filters) (FeedbackSummary, error) {
	if err := checkRange(filters.StartDate, filters.EndDate); err != nil {
		return FeedbackSummary{}, err
	}
	summary, err := s.repo.FeedbackSummary(ctx, collegeID, filters)
	if err != nil {
		return FeedbackSummary{}, fmt.Errorf("feedback summary: %w", err)
	}
	summary.AverageRating = stats.RoundedAverage(summary.AverageRating)
	summary.RatingDistribution = stats.DistributionOf(summary.StarCounts, summary.TotalFeedback)
	return summary, nil
}

// Flexible applies HAVING-style thresholds. Events without feedback pass any
// minRating.
func (s *Service) Flexible(ctx context.Context, collegeID int64, filters FlexibleFilters) (FlexibleFilters, []EventPopularity, error) {
	filters.EventType = strings.TrimSpace(filters.EventType)
	if err := checkRange(filters.StartDate, filters.EndDate); err != nil {
		return filters, nil, err
	}
	if filters.MinRegistrations < 0 || filters.MinAttendance < 0 {
		return filters, nil, validation.New("minRegistrations", "thresholds must be greater than or equal to 0")
	}
	if filters.MinRating != nil && (*filters.MinRating < 1 || *filters.MinRating > 5) {
		return filters, nil, validation.New("minRating", "minRating must be between 1 and 5")
	}
	if filters.SortBy == "" {
		filters.SortBy = FlexRegistrationCount
	}
	if filters.SortOrder == "" {
		filters.SortOrder = pagination.Desc
	}
	rows, err := s.repo.Flexible(ctx, collegeID, filters)
	if err != nil {
		return filters, nil, fmt.Errorf("flexible report: %w", err)
	}
	return filters, finishEvents(rows), nil
}

func (s *Service) Categories(ctx context.Context, collegeID int64) ([]Category, error) {
	rows, err := s.repo.Categories(ctx, collegeID)
	if err != nil {
		return nil, fmt.Errorf("categories: %w", err)
	}
	if rows == nil {
		rows = []Category{}
	}
	return rows, nil
}

type Overview struct {
	Attendance  AttendanceSummary      `json:"attendance"`
	Feedback    FeedbackSummary        `json:"feedback"`
	TopStudents []StudentParticipation `json:"top_students"`
}

// Overview gathers the dashboard figures concurrently.
func (s *Service) Overview(ctx context.Context, collegeID int64, filters Filters) (Overview, error) {
	var out Overview
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		summary, err := s.AttendanceSummary(gctx, collegeID, filters)
		out.Attendance = summary
		return err
	})
	g.Go(func() error {
		summary, err := s.FeedbackSummary(gctx, collegeID, filters)
		out.Feedback = summary
		return err
	})
	g.Go(func() error {
		top, err := s.TopStudents(gctx, collegeID, DefaultTopStudents)
		out.TopStudents = top
		return err
	})
	if err := g.Wait(); err != nil {
		return Overview{}, err
	}
	return out, nil
}

func finishEvents(rows []EventPopularity) []EventPopularity {
	if rows == nil {
		return []EventPopularity{}
	}
	for i := range rows {
		rows[i].AttendancePercentage = stats.Percentage(rows[i].AttendanceCount, rows[i].RegistrationCount)
		rows[i].AverageRating = stats.RoundedAverage(rows[i].AverageRating)
	}
	return rows
}

func finishStudents(rows []StudentParticipation) []StudentParticipation {
	if rows == nil {
		return []StudentParticipation{}
	}
	for i := range rows {
		rows[i].AttendancePercentage = stats.Percentage(rows[i].TotalAttendance, rows[i].TotalRegistrations)
		rows[i].AverageFeedbackRating = stats.RoundedAverage(rows[i].AverageFeedbackRating)
	}
	return rows
}

func checkRange(start, end string) error {
	var startDate, endDate time.Time
	var err error
	if start != "" {
		if startDate, err = time.Parse(dateLayout, start); err != nil {
			return validation.New("startDate", "startDate must be a date in YYYY-MM-DD format")
		}
	}
	if end != "" {
		if endDate, err = time.Parse(dateLayout, end); err != nil {
			return validation.New("endDate", "endDate must be a date in YYYY-MM-DD format")
		}
	}
	if start != "" && end != "" && endDate.Before(startDate) {
		return validation.New("endDate", "endDate must be on or after startDate")
	}
	return nil
}
