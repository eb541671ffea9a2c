package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/campusevents/server/internal/api/pagination"
	"github.com/campusevents/server/internal/domain/reports"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// seedReportFixture builds one college with two events: "Popular" has three
// registrations, two attendees and ratings 5 and 3; "Quiet" has one
// registration and nothing else.
func seedReportFixture(t *testing.T, ctx context.Context) (collegeID int64, repo *Repository) {
	t.Helper()
	pool, _ := setupPostgres(t)
	collegeID = insertCollege(t, ctx, pool, "campus.edu")
	adminID := insertUser(t, ctx, pool, collegeID, "admin@campus.edu", "admin")
	s1 := insertUser(t, ctx, pool, collegeID, "s1@campus.edu", "student")
	s2 := insertUser(t, ctx, pool, collegeID, "s2@campus.edu", "student")
	s3 := insertUser(t, ctx, pool, collegeID, "s3@campus.edu", "student")

	popular := insertEvent(t, ctx, pool, collegeID, categoryID(t, ctx, pool, "Hackathon"), adminID, "Popular", "2030-01-10", "completed", intPtr(50))
	quiet := insertEvent(t, ctx, pool, collegeID, categoryID(t, ctx, pool, "Sports"), adminID, "Quiet", "2030-02-10", "published", nil)

	other := insertCollege(t, ctx, pool, "other.edu")
	otherAdmin := insertUser(t, ctx, pool, other, "admin@other.edu", "admin")
	insertEvent(t, ctx, pool, other, categoryID(t, ctx, pool, "Hackathon"), otherAdmin, "Elsewhere", "2030-01-10", "published", nil)

	for _, id := range []int64{s1, s2, s3} {
		_, err := pool.Exec(ctx, `INSERT INTO registrations (event_id, user_id) VALUES ($1, $2)`, popular, id)
		require.NoError(t, err)
	}
	_, err := pool.Exec(ctx, `INSERT INTO registrations (event_id, user_id) VALUES ($1, $2)`, quiet, s1)
	require.NoError(t, err)
	for i, id := range []int64{s1, s2} {
		_, err := pool.Exec(ctx, `INSERT INTO attendance (event_id, user_id) VALUES ($1, $2)`, popular, id)
		require.NoError(t, err)
		_, err = pool.Exec(ctx, `INSERT INTO feedback (event_id, user_id, rating) VALUES ($1, $2, $3)`, popular, id, 5-2*i)
		require.NoError(t, err)
	}

	repo, err = NewRepository(pool)
	require.NoError(t, err)
	return collegeID, repo
}

func TestReportRepositoryEventPopularity(t *testing.T) {
	ctx := context.Background()
	collegeID, repo := seedReportFixture(t, ctx)

	rows, total, err := repo.Reports().EventPopularity(ctx, collegeID, reports.PopularityFilters{SortOrder: pagination.Desc}, pagination.Params{Page: 1, Limit: 20})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, "Popular", rows[0].Title)
	require.Equal(t, 3, rows[0].RegistrationCount)
	require.Equal(t, 2, rows[0].AttendanceCount)
	require.Equal(t, 2, rows[0].FeedbackCount)
	require.InDelta(t, 4.0, *rows[0].AverageRating, 0.0001)
	require.Nil(t, rows[1].AverageRating)

	rows, total, err = repo.Reports().EventPopularity(ctx, collegeID, reports.PopularityFilters{
		Filters: reports.Filters{StartDate: "2030-02-01"},
	}, pagination.Params{Page: 1, Limit: 20})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "Quiet", rows[0].Title)
}

func TestReportRepositoryStudents(t *testing.T) {
	ctx := context.Background()
	collegeID, repo := seedReportFixture(t, ctx)

	rows, total, err := repo.Reports().StudentParticipation(ctx, collegeID, 1, pagination.Desc, pagination.Params{Page: 1, Limit: 20})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Equal(t, "s1@campus.edu", rows[0].Email)
	require.Equal(t, 2, rows[0].TotalRegistrations)
	require.Equal(t, 1, rows[0].TotalAttendance)

	top, err := repo.Reports().TopStudents(ctx, collegeID, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	require.Equal(t, "s1@campus.edu", top[0].Email)
	require.Zero(t, top[2].TotalAttendance)
}

func TestReportRepositoryStudentsKeepsDeactivatedHistory(t *testing.T) {
	ctx := context.Background()
	collegeID, repo := seedReportFixture(t, ctx)

	_, err := repo.pool.Exec(ctx, `UPDATE users SET is_active = false WHERE email = 's2@campus.edu'`)
	require.NoError(t, err)

	rows, total, err := repo.Reports().StudentParticipation(ctx, collegeID, 1, pagination.Desc, pagination.Params{Page: 1, Limit: 20})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	emails := []string{rows[0].Email, rows[1].Email}
	require.Contains(t, emails, "s2@campus.edu")

	top, err := repo.Reports().TopStudents(ctx, collegeID, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
}

func TestReportRepositorySummaries(t *testing.T) {
	ctx := context.Background()
	collegeID, repo := seedReportFixture(t, ctx)

	att, err := repo.Reports().AttendanceSummary(ctx, collegeID, reports.Filters{})
	require.NoError(t, err)
	require.Equal(t, 2, att.TotalEvents)
	require.Equal(t, 4, att.TotalRegistrations)
	require.Equal(t, 2, att.TotalAttendance)
	require.Equal(t, 3, att.UniqueRegistrants)
	require.Equal(t, 2, att.UniqueAttendees)
	require.Equal(t, 2, att.TotalFeedback)

	// Two of the three registered students attended; the row ratio would be 2/4.
	summary, err := reports.NewService(repo.Reports(), zerolog.Nop()).AttendanceSummary(ctx, collegeID, reports.Filters{})
	require.NoError(t, err)
	require.InDelta(t, 66.67, summary.OverallAttendancePercentage, 0.0001)

	fb, err := repo.Reports().FeedbackSummary(ctx, collegeID, reports.Filters{})
	require.NoError(t, err)
	require.Equal(t, 1, fb.EventsWithFeedback)
	require.Equal(t, 1, fb.Five)
	require.Equal(t, 1, fb.Three)

	cats, err := repo.Reports().Categories(ctx, collegeID)
	require.NoError(t, err)
	require.Len(t, cats, 8)
	counts := map[string]int{}
	for _, c := range cats {
		counts[c.Name] = c.EventCount
	}
	require.Equal(t, 1, counts["Hackathon"])
	require.Equal(t, 0, counts["Workshop"])
}

func TestReportRepositoryFlexible(t *testing.T) {
	ctx := context.Background()
	collegeID, repo := seedReportFixture(t, ctx)

	minRating := 4.5
	rows, err := repo.Reports().Flexible(ctx, collegeID, reports.FlexibleFilters{
		MinRating: &minRating, SortBy: reports.FlexEventDate, SortOrder: pagination.Asc,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1, "events without feedback pass the rating threshold")
	require.Equal(t, "Quiet", rows[0].Title)

	rows, err = repo.Reports().Flexible(ctx, collegeID, reports.FlexibleFilters{EventType: "hack", MinAttendance: 2})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "Popular", rows[0].Title)
}

func TestSeedIsRepeatable(t *testing.T) {
	ctx := context.Background()
	pool, _ := setupPostgres(t)
	now := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)

	first, err := Seed(ctx, pool, now)
	require.NoError(t, err)
	require.Equal(t, 3, first.Colleges)
	require.Equal(t, 33, first.Users)
	require.Equal(t, 5, first.Events)

	second, err := Seed(ctx, pool, now)
	require.NoError(t, err)
	require.Zero(t, second.Colleges)
	require.Zero(t, second.Users)

	var feedbackRows int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM feedback`).Scan(&feedbackRows))
	require.Equal(t, 10, feedbackRows)
}
