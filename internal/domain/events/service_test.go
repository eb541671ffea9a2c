package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/campusevents/server/internal/api/pagination"
	"github.com/campusevents/server/internal/domain/calendar"
	"github.com/campusevents/server/internal/validation"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubRepo struct {
	list              func(ctx context.Context, collegeID int64, filters Filters, page pagination.Params) ([]Event, error)
	count             func(ctx context.Context, collegeID int64, filters Filters) (int, error)
	get               func(ctx context.Context, id, collegeID int64) (*Event, error)
	categoryExists    func(ctx context.Context, id int64) (bool, error)
	create            func(ctx context.Context, params WriteParams) (int64, error)
	update            func(ctx context.Context, id int64, params WriteParams) error
	setStatus         func(ctx context.Context, id, collegeID int64, status Status) error
	deleteFn          func(ctx context.Context, id, collegeID int64) error
	hasRegistrations  func(ctx context.Context, id int64) (bool, error)
	listRegistrations func(ctx context.Context, eventID int64, status string, page pagination.Params) ([]Registrant, int, error)
}

func (s stubRepo) List(ctx context.Context, collegeID int64, filters Filters, page pagination.Params) ([]Event, error) {
	return s.list(ctx, collegeID, filters, page)
}

func (s stubRepo) Count(ctx context.Context, collegeID int64, filters Filters) (int, error) {
	return s.count(ctx, collegeID, filters)
}

func (s stubRepo) Get(ctx context.Context, id, collegeID int64) (*Event, error) {
	return s.get(ctx, id, collegeID)
}

func (s stubRepo) CategoryExists(ctx context.Context, id int64) (bool, error) {
	if s.categoryExists == nil {
		return true, nil
	}
	return s.categoryExists(ctx, id)
}

func (s stubRepo) Create(ctx context.Context, params WriteParams) (int64, error) {
	return s.create(ctx, params)
}

func (s stubRepo) Update(ctx context.Context, id int64, params WriteParams) error {
	return s.update(ctx, id, params)
}

func (s stubRepo) SetStatus(ctx context.Context, id, collegeID int64, status Status) error {
	return s.setStatus(ctx, id, collegeID, status)
}

func (s stubRepo) Delete(ctx context.Context, id, collegeID int64) error {
	return s.deleteFn(ctx, id, collegeID)
}

func (s stubRepo) HasRegistrations(ctx context.Context, id int64) (bool, error) {
	return s.hasRegistrations(ctx, id)
}

func (s stubRepo) ListRegistrations(ctx context.Context, eventID int64, status string, page pagination.Params) ([]Registrant, int, error) {
	return s.listRegistrations(ctx, eventID, status, page)
}

type notifierFunc func(ctx context.Context, eventID, collegeID int64) error

func (f notifierFunc) EventCompleted(ctx context.Context, eventID, collegeID int64) error {
	return f(ctx, eventID, collegeID)
}

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func newTestService(repo Repository, opts ...Option) *Service {
	opts = append([]Option{WithClock(calendar.Fixed(fixedNow))}, opts...)
	return NewService(repo, zerolog.Nop(), opts...)
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

func validInput() Input {
	return Input{
		Title:       "Web Development Workshop",
		Description: strPtr("Learn <b>modern</b> web development"),
		EventDate:   "2026-03-17",
		StartTime:   "9:00",
		EndTime:     "17:00",
		Location:    strPtr("Computer Lab 1"),
		Capacity:    intPtr(30),
		CategoryID:  1,
	}
}

func TestCreateSanitizesAndNormalizes(t *testing.T) {
	var captured WriteParams
	svc := newTestService(stubRepo{
		create: func(_ context.Context, params WriteParams) (int64, error) {
			captured = params
			return 12, nil
		},
		get: func(_ context.Context, id, collegeID int64) (*Event, error) {
			return &Event{ID: id, CollegeID: collegeID, Status: StatusDraft}, nil
		},
	})

	event, err := svc.Create(context.Background(), 5, 1, validInput())
	require.NoError(t, err)
	require.Equal(t, int64(12), event.ID)
	require.Equal(t, StatusDraft, event.Status)

	require.Equal(t, int64(5), captured.CreatedBy)
	require.Equal(t, int64(1), captured.CollegeID)
	require.Equal(t, "09:00", captured.StartTime)
	require.Equal(t, "Learn modern web development", *captured.Description)
	require.Equal(t, "2026-03-17", captured.EventDate)
}

func TestCreateAllowsToday(t *testing.T) {
	in := validInput()
	in.EventDate = "2026-03-10"
	svc := newTestService(stubRepo{
		create: func(context.Context, WriteParams) (int64, error) { return 1, nil },
		get:    func(context.Context, int64, int64) (*Event, error) { return &Event{ID: 1}, nil },
	})
	_, err := svc.Create(context.Background(), 1, 1, in)
	require.NoError(t, err)
}

func TestCreateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Input)
		message string
	}{
		{"past date", func(in *Input) { in.EventDate = "2026-03-09" }, "Event date cannot be in the past"},
		{"start after end", func(in *Input) { in.StartTime = "18:00" }, "Start time must be before end time"},
		{"start equals end", func(in *Input) { in.EndTime = "09:00" }, "Start time must be before end time"},
		{"bad clock", func(in *Input) { in.StartTime = "25:00" }, "startTime must be in HH:MM format"},
		{"short title", func(in *Input) { in.Title = "<b>A</b>" }, "title must be at least 3 characters long"},
		{"zero capacity", func(in *Input) { in.Capacity = intPtr(0) }, "capacity must be greater than or equal to 1"},
		{"past deadline", func(in *Input) { in.RegistrationDeadline = strPtr("2026-03-01") }, "Registration deadline cannot be in the past"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := newTestService(stubRepo{})
			in := validInput()
			tc.mutate(&in)
			_, err := svc.Create(context.Background(), 1, 1, in)
			errs, ok := validation.AsErrors(err)
			require.True(t, ok, "expected validation error, got %v", err)
			require.Equal(t, tc.message, errs[0].Message)
		})
	}
}

func TestCreateUnknownCategory(t *testing.T) {
	svc := newTestService(stubRepo{
		categoryExists: func(context.Context, int64) (bool, error) { return false, nil },
	})
	_, err := svc.Create(context.Background(), 1, 1, validInput())
	require.ErrorIs(t, err, ErrInvalidCategory)
}

func TestUpdateCompletedEvent(t *testing.T) {
	svc := newTestService(stubRepo{
		get: func(context.Context, int64, int64) (*Event, error) {
			return &Event{ID: 3, Status: StatusCompleted}, nil
		},
	})
	_, err := svc.Update(context.Background(), 3, 1, validInput())
	require.ErrorIs(t, err, ErrCompleted)
}

func TestUpdateOtherCollege(t *testing.T) {
	svc := newTestService(stubRepo{
		get: func(context.Context, int64, int64) (*Event, error) { return nil, ErrNotFound },
	})
	_, err := svc.Update(context.Background(), 3, 2, validInput())
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSetStatus(t *testing.T) {
	status := StatusPublished
	var notified []int64
	svc := newTestService(stubRepo{
		get: func(_ context.Context, id, _ int64) (*Event, error) {
			return &Event{ID: id, Status: status}, nil
		},
		setStatus: func(_ context.Context, _, _ int64, next Status) error {
			status = next
			return nil
		},
	}, WithNotifier(notifierFunc(func(_ context.Context, eventID, _ int64) error {
		notified = append(notified, eventID)
		return nil
	})))

	_, err := svc.SetStatus(context.Background(), 4, 1, "archived")
	require.ErrorIs(t, err, ErrInvalidStatus)

	event, err := svc.SetStatus(context.Background(), 4, 1, "completed")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, event.Status)
	require.Equal(t, []int64{4}, notified)

	// completed -> draft is allowed and does not notify
	event, err = svc.SetStatus(context.Background(), 4, 1, "DRAFT")
	require.NoError(t, err)
	require.Equal(t, StatusDraft, event.Status)
	require.Len(t, notified, 1)
}

func TestSetStatusNotifierFailureIsNotFatal(t *testing.T) {
	svc := newTestService(stubRepo{
		get: func(_ context.Context, id, _ int64) (*Event, error) {
			return &Event{ID: id, Status: StatusPublished}, nil
		},
		setStatus: func(context.Context, int64, int64, Status) error { return nil },
	}, WithNotifier(notifierFunc(func(context.Context, int64, int64) error { return errors.New("queue down") })))

	_, err := svc.SetStatus(context.Background(), 4, 1, "completed")
	require.NoError(t, err)
}

func TestDelete(t *testing.T) {
	deleted := false
	has := true
	svc := newTestService(stubRepo{
		get:              func(_ context.Context, id, _ int64) (*Event, error) { return &Event{ID: id}, nil },
		hasRegistrations: func(context.Context, int64) (bool, error) { return has, nil },
		deleteFn: func(context.Context, int64, int64) error {
			deleted = true
			return nil
		},
	})

	require.ErrorIs(t, svc.Delete(context.Background(), 2, 1), ErrHasRegistrations)
	require.False(t, deleted)

	has = false
	require.NoError(t, svc.Delete(context.Background(), 2, 1))
	require.True(t, deleted)
}

func TestListRunsQueriesTogether(t *testing.T) {
	svc := newTestService(stubRepo{
		list: func(_ context.Context, _ int64, filters Filters, page pagination.Params) ([]Event, error) {
			require.Equal(t, "jazz", filters.Search)
			require.Equal(t, 10, page.Offset())
			return nil, nil
		},
		count: func(context.Context, int64, Filters) (int, error) { return 11, nil },
	})

	result, err := svc.List(context.Background(), 1, Filters{Search: "  jazz "}, pagination.Params{Page: 2, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 11, result.Total)
	require.NotNil(t, result.Events)
	require.Empty(t, result.Events)
}

func TestListPropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	svc := newTestService(stubRepo{
		list:  func(context.Context, int64, Filters, pagination.Params) ([]Event, error) { return nil, nil },
		count: func(context.Context, int64, Filters) (int, error) { return 0, boom },
	})
	_, err := svc.List(context.Background(), 1, Filters{}, pagination.Params{Page: 1, Limit: 10})
	require.ErrorIs(t, err, boom)
}

func TestRegistrationsRoster(t *testing.T) {
	svc := newTestService(stubRepo{
		get: func(_ context.Context, id, _ int64) (*Event, error) { return &Event{ID: id}, nil },
		listRegistrations: func(_ context.Context, _ int64, status string, _ pagination.Params) ([]Registrant, int, error) {
			require.Equal(t, "registered", status)
			return []Registrant{{ID: 1}}, 1, nil
		},
	})

	roster, err := svc.Registrations(context.Background(), 1, 1, "", pagination.Params{Page: 1, Limit: 20})
	require.NoError(t, err)
	require.Equal(t, 1, roster.Total)

	_, err = svc.Registrations(context.Background(), 1, 1, "waitlisted", pagination.Params{Page: 1, Limit: 20})
	_, ok := validation.AsErrors(err)
	require.True(t, ok)
}

func TestParseSortField(t *testing.T) {
	require.Equal(t, SortTitle, ParseSortField("title"))
	require.Equal(t, SortEventDate, ParseSortField("title; DROP TABLE events"))
	require.Equal(t, SortEventDate, ParseSortField(""))
}
