package reports

import (
	"context"
	"errors"
	"testing"

	"github.com/campusevents/server/internal/api/pagination"
	"github.com/campusevents/server/internal/domain/stats"
	"github.com/campusevents/server/internal/validation"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	popularity    func(ctx context.Context, collegeID int64, filters PopularityFilters, page pagination.Params) ([]EventPopularity, int, error)
	participation func(ctx context.Context, collegeID int64, minEvents int, order pagination.SortOrder, page pagination.Params) ([]StudentParticipation, int, error)
	top           func(ctx context.Context, collegeID int64, limit int) ([]StudentParticipation, error)
	attendance    func(ctx context.Context, collegeID int64, filters Filters) (AttendanceSummary, error)
	feedback      func(ctx context.Context, collegeID int64, filters Filters) (FeedbackSummary, error)
	flexible      func(ctx context.Context, collegeID int64, filters FlexibleFilters) ([]EventPopularity, error)
	categories    func(ctx context.Context, collegeID int64) ([]Category, error)
}

func (s stubRepo) EventPopularity(ctx context.Context, collegeID int64, filters PopularityFilters, page pagination.Params) ([]EventPopularity, int, error) {
	return s.popularity(ctx, collegeID, filters, page)
}

func (s stubRepo) StudentParticipation(ctx context.Context, collegeID int64, minEvents int, order pagination.SortOrder, page pagination.Params) ([]StudentParticipation, int, error) {
	return s.participation(ctx, collegeID, minEvents, order, page)
}

func (s stubRepo) TopStudents(ctx context.Context, collegeID int64, limit int) ([]StudentParticipation, error) {
	return s.top(ctx, collegeID, limit)
}

func (s stubRepo) AttendanceSummary(ctx context.Context, collegeID int64, filters Filters) (AttendanceSummary, error) {
	return s.attendance(ctx, collegeID, filters)
}

func (s stubRepo) FeedbackSummary(ctx context.Context, collegeID int64, filters Filters) (FeedbackSummary, error) {
	return s.feedback(ctx, collegeID, filters)
}

func (s stubRepo) Flexible(ctx context.Context, collegeID int64, filters FlexibleFilters) ([]EventPopularity, error) {
	return s.flexible(ctx, collegeID, filters)
}

func (s stubRepo) Categories(ctx context.Context, collegeID int64) ([]Category, error) {
	return s.categories(ctx, collegeID)
}

func floatPtr(f float64) *float64 { return &f }

func TestEventPopularityPercentages(t *testing.T) {
	svc := NewService(stubRepo{
		popularity: func(_ context.Context, _ int64, filters PopularityFilters, _ pagination.Params) ([]EventPopularity, int, error) {
			require.Equal(t, pagination.Desc, filters.SortOrder)
			return []EventPopularity{
				{ID: 1, RegistrationCount: 10, AttendanceCount: 4, AverageRating: floatPtr(4.16666)},
				{ID: 2},
			}, 2, nil
		},
	}, zerolog.Nop())

	page, err := svc.EventPopularity(context.Background(), 1, PopularityFilters{}, pagination.Params{Page: 1, Limit: 20})
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Equal(t, 40.0, page.Events[0].AttendancePercentage)
	require.Equal(t, 4.17, *page.Events[0].AverageRating)
	require.Equal(t, 0.0, page.Events[1].AttendancePercentage)
	require.Nil(t, page.Events[1].AverageRating)
}

func TestDateRangeValidation(t *testing.T) {
	svc := NewService(stubRepo{}, zerolog.Nop())

	_, err := svc.AttendanceSummary(context.Background(), 1, Filters{StartDate: "2026-03-10", EndDate: "2026-03-01"})
	errs, ok := validation.AsErrors(err)
	require.True(t, ok)
	require.Equal(t, "endDate", errs[0].Field)

	_, err = svc.FeedbackSummary(context.Background(), 1, Filters{StartDate: "March"})
	_, ok = validation.AsErrors(err)
	require.True(t, ok)
}

func TestStudentParticipation(t *testing.T) {
	svc := NewService(stubRepo{
		participation: func(_ context.Context, _ int64, minEvents int, order pagination.SortOrder, _ pagination.Params) ([]StudentParticipation, int, error) {
			require.Equal(t, 2, minEvents)
			require.Equal(t, pagination.Desc, order)
			return []StudentParticipation{{ID: 1, TotalRegistrations: 3, TotalAttendance: 2}}, 1, nil
		},
	}, zerolog.Nop())

	page, err := svc.StudentParticipation(context.Background(), 1, 2, "", pagination.Params{Page: 1, Limit: 20})
	require.NoError(t, err)
	require.Equal(t, 66.67, page.Students[0].AttendancePercentage)

	_, err = svc.StudentParticipation(context.Background(), 1, -1, "", pagination.Params{Page: 1, Limit: 20})
	_, ok := validation.AsErrors(err)
	require.True(t, ok)
}

func TestTopStudentsLimit(t *testing.T) {
	var got []int
	svc := NewService(stubRepo{
		top: func(_ context.Context, _ int64, limit int) ([]StudentParticipation, error) {
			got = append(got, limit)
			return nil, nil
		},
	}, zerolog.Nop())

	rows, err := svc.TopStudents(context.Background(), 1, 0)
	require.NoError(t, err)
	require.NotNil(t, rows)
	_, err = svc.TopStudents(context.Background(), 1, 1000)
	require.NoError(t, err)
	require.Equal(t, []int{3, 100}, got)
}

func TestSummaries(t *testing.T) {
	svc := NewService(stubRepo{
		attendance: func(context.Context, int64, Filters) (AttendanceSummary, error) {
			return AttendanceSummary{TotalEvents: 2, TotalRegistrations: 10, TotalAttendance: 4, UniqueRegistrants: 5, UniqueAttendees: 2, AverageFeedbackRating: floatPtr(3.333)}, nil
		},
		feedback: func(context.Context, int64, Filters) (FeedbackSummary, error) {
			return FeedbackSummary{TotalFeedback: 5, StarCounts: stats.StarCounts{Five: 2, Four: 2, Three: 1}}, nil
		},
		top: func(context.Context, int64, int) ([]StudentParticipation, error) {
			return []StudentParticipation{{ID: 9}}, nil
		},
	}, zerolog.Nop())

	overview, err := svc.Overview(context.Background(), 1, Filters{})
	require.NoError(t, err)
	require.Equal(t, 40.0, overview.Attendance.OverallAttendancePercentage)
	require.Equal(t, 3.33, *overview.Attendance.AverageFeedbackRating)
	require.Equal(t, 40, overview.Feedback.RatingDistribution.FiveStar)
	require.Equal(t, 20, overview.Feedback.RatingDistribution.ThreeStar)
	require.Len(t, overview.TopStudents, 1)
}

func TestOverviewPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	svc := NewService(stubRepo{
		attendance: func(context.Context, int64, Filters) (AttendanceSummary, error) { return AttendanceSummary{}, boom },
		feedback:   func(context.Context, int64, Filters) (FeedbackSummary, error) { return FeedbackSummary{}, nil },
		top:        func(context.Context, int64, int) ([]StudentParticipation, error) { return nil, nil },
	}, zerolog.Nop())

	_, err := svc.Overview(context.Background(), 1, Filters{})
	require.ErrorIs(t, err, boom)
}

func TestAttendanceSummaryCountsStudentsNotRows(t *testing.T) {
	svc := NewService(stubRepo{
		attendance: func(context.Context, int64, Filters) (AttendanceSummary, error) {
			// One student registered for three events and attended one.
			return AttendanceSummary{TotalEvents: 3, TotalRegistrations: 3, TotalAttendance: 1, UniqueRegistrants: 1, UniqueAttendees: 1}, nil
		},
	}, zerolog.Nop())

	summary, err := svc.AttendanceSummary(context.Background(), 1, Filters{})
	require.NoError(t, err)
	require.Equal(t, 100.0, summary.OverallAttendancePercentage)

	svc = NewService(stubRepo{
		attendance: func(context.Context, int64, Filters) (AttendanceSummary, error) {
			return AttendanceSummary{}, nil
		},
	}, zerolog.Nop())
	summary, err = svc.AttendanceSummary(context.Background(), 1, Filters{})
	require.NoError(t, err)
	require.Zero(t, summary.OverallAttendancePercentage)
}

func TestFlexibleDefaultsAndThresholds(t *testing.T) {
	svc := NewService(stubRepo{
		flexible: func(_ context.Context, _ int64, filters FlexibleFilters) ([]EventPopularity, error) {
			require.Equal(t, FlexRegistrationCount, filters.SortBy)
			require.Equal(t, pagination.Desc, filters.SortOrder)
			require.Equal(t, "Work", filters.EventType)
			return []EventPopularity{{RegistrationCount: 4, AttendanceCount: 1}}, nil
		},
	}, zerolog.Nop())

	applied, rows, err := svc.Flexible(context.Background(), 1, FlexibleFilters{EventType: " Work "})
	require.NoError(t, err)
	require.Equal(t, FlexRegistrationCount, applied.SortBy)
	require.Equal(t, 25.0, rows[0].AttendancePercentage)

	_, _, err = svc.Flexible(context.Background(), 1, FlexibleFilters{MinRating: floatPtr(7)})
	_, ok := validation.AsErrors(err)
	require.True(t, ok)
}

func TestParseFlexSort(t *testing.T) {
	require.Equal(t, FlexAverageRating, ParseFlexSort("average_rating"))
	require.Equal(t, FlexRegistrationCount, ParseFlexSort("password_hash"))
}
