package postgres

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/campusevents/server/internal/api/pagination"
	"github.com/campusevents/server/internal/domain/calendar"
	"github.com/campusevents/server/internal/domain/registrations"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestRegistrationConcurrentCapacity(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t)
	collegeID := insertCollege(t, ctx, pool, "campus.edu")
	adminID := insertUser(t, ctx, pool, collegeID, "admin@campus.edu", "admin")
	eventID := insertEvent(t, ctx, pool, collegeID, categoryID(t, ctx, pool, "Workshop"), adminID, "Small room", "2030-01-01", "published", intPtr(3))

	var students []int64
	for i := 0; i < 10; i++ {
		students = append(students, insertUser(t, ctx, pool, collegeID, fmt.Sprintf("s%d@campus.edu", i), "student"))
	}

	repo, err := NewRepository(pool)
	require.NoError(t, err)
	svc := registrations.NewService(repo.Registrations(), zerolog.Nop(),
		registrations.WithClock(calendar.Fixed(time.Date(2029, 12, 1, 9, 0, 0, 0, time.UTC))))

	var wg sync.WaitGroup
	errs := make([]error, len(students))
	for i, id := range students {
		wg.Add(1)
		go func(i int, userID int64) {
			defer wg.Done()
			_, errs[i] = svc.Register(ctx, userID, collegeID, eventID)
		}(i, id)
	}
	wg.Wait()

	var ok, full int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, registrations.ErrCapacityReached):
			full++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 3, ok)
	require.Equal(t, 7, full)

	var active int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND status = 'registered'`, eventID).Scan(&active))
	require.Equal(t, 3, active)
}

func TestRegistrationRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t)
	collegeID := insertCollege(t, ctx, pool, "campus.edu")
	adminID := insertUser(t, ctx, pool, collegeID, "admin@campus.edu", "admin")
	studentID := insertUser(t, ctx, pool, collegeID, "s@campus.edu", "student")
	eventID := insertEvent(t, ctx, pool, collegeID, categoryID(t, ctx, pool, "Seminar"), adminID, "Talk", "2030-01-01", "published", nil)

	repo, err := NewRepository(pool)
	require.NoError(t, err)
	regRepo := repo.Registrations()
	now := time.Date(2029, 12, 1, 9, 0, 0, 0, time.UTC)

	_, err = regRepo.FindRegistration(ctx, eventID, studentID)
	require.ErrorIs(t, err, registrations.ErrRegistrationNotFound)

	reg, err := regRepo.CreateRegistration(ctx, eventID, studentID, now)
	require.NoError(t, err)
	require.True(t, reg.Active())

	_, err = regRepo.CreateRegistration(ctx, eventID, studentID, now)
	require.ErrorIs(t, err, registrations.ErrAlreadyRegistered)

	cancelled, err := regRepo.UpdateRegistrationStatus(ctx, reg.ID, registrations.StatusCancelled, reg.RegistrationDate)
	require.NoError(t, err)
	require.Equal(t, registrations.StatusCancelled, cancelled.Status)
	require.True(t, reg.RegistrationDate.Equal(cancelled.RegistrationDate))

	snap, err := regRepo.Event(ctx, eventID, collegeID)
	require.NoError(t, err)
	require.Zero(t, snap.ActiveRegistrations)
	require.Equal(t, "2030-01-01", snap.EventDate)

	_, err = regRepo.LockEvent(ctx, eventID, collegeID)
	require.Error(t, err, "locking outside a transaction must fail")

	att, err := regRepo.CreateAttendance(ctx, eventID, studentID, now)
	require.NoError(t, err)
	require.Equal(t, registrations.AttendancePresent, att.Status)
	_, err = regRepo.CreateAttendance(ctx, eventID, studentID, now)
	require.ErrorIs(t, err, registrations.ErrAlreadyCheckedIn)

	out, err := regRepo.CheckOut(ctx, att.ID, now.Add(time.Hour))
	require.NoError(t, err)
	require.NotNil(t, out.CheckOutTime)
	_, err = regRepo.CheckOut(ctx, att.ID, now.Add(2*time.Hour))
	require.ErrorIs(t, err, registrations.ErrAttendanceNotFound)

	registered, attended, checkedOut, err := regRepo.AttendanceCounts(ctx, eventID)
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 1}, []int{registered, attended, checkedOut})

	list, total, err := regRepo.ListAttendance(ctx, eventID, pagination.Params{Page: 1, Limit: 20})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "s@campus.edu", list[0].Email)
}

func TestRegistrationRepositoryStudentViews(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t)
	collegeID := insertCollege(t, ctx, pool, "campus.edu")
	adminID := insertUser(t, ctx, pool, collegeID, "admin@campus.edu", "admin")
	studentID := insertUser(t, ctx, pool, collegeID, "s@campus.edu", "student")
	seminar := categoryID(t, ctx, pool, "Seminar")
	first := insertEvent(t, ctx, pool, collegeID, seminar, adminID, "Alpha", "2030-01-01", "published", nil)
	second := insertEvent(t, ctx, pool, collegeID, seminar, adminID, "Beta", "2030-02-01", "published", nil)
	insertEvent(t, ctx, pool, collegeID, seminar, adminID, "Hidden draft", "2030-03-01", "draft", nil)

	repo, err := NewRepository(pool)
	require.NoError(t, err)
	regRepo := repo.Registrations()
	now := time.Date(2029, 12, 1, 9, 0, 0, 0, time.UTC)

	_, err = regRepo.CreateRegistration(ctx, first, studentID, now)
	require.NoError(t, err)
	_, err = regRepo.CreateRegistration(ctx, second, studentID, now.Add(time.Minute))
	require.NoError(t, err)
	_, err = regRepo.CreateAttendance(ctx, first, studentID, now)
	require.NoError(t, err)

	history, total, err := regRepo.StudentRegistrations(ctx, studentID, registrations.HistoryFilters{
		Status: registrations.StatusRegistered, SortBy: registrations.SortRegTitle, SortOrder: pagination.Asc,
	}, pagination.Params{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, "Alpha", history[0].Title)
	require.True(t, history[0].Attended)
	require.False(t, history[1].Attended)
	require.Equal(t, "Seminar", history[0].CategoryName)

	attendance, total, err := regRepo.StudentAttendance(ctx, studentID, registrations.AttendanceFilters{}, pagination.Params{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "Alpha", attendance[0].Title)

	browse, total, err := regRepo.BrowseEvents(ctx, studentID, collegeID, registrations.BrowseFilters{}, now, pagination.Params{Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.True(t, browse[0].IsRegistered)

	one, err := regRepo.BrowseEvent(ctx, studentID, collegeID, second)
	require.NoError(t, err)
	require.True(t, one.IsRegistered)
	require.Equal(t, 1, one.RegistrationCount)

	_, err = regRepo.BrowseEvent(ctx, studentID, collegeID+1, second)
	require.ErrorIs(t, err, registrations.ErrEventNotFound)
}
