package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/campusevents/server/internal/api/pagination"
	"github.com/campusevents/server/internal/domain/reports"
	"github.com/campusevents/server/internal/metrics"
)

var _ reports.Repository = (*ReportRepository)(nil)

// ReportRepository runs the college-wide aggregates. Every per-event or
// per-student count comes from its own grouped subquery so joins never
// multiply rows.
type ReportRepository struct {
	conn
}

const eventStatsCTE = `
WITH reg AS (
    SELECT event_id, COUNT(*) AS cnt FROM registrations WHERE status = 'registered' GROUP BY event_id
), att AS (
    SELECT event_id, COUNT(*) AS cnt FROM attendance GROUP BY event_id
), fb AS (
    SELECT event_id, COUNT(*) AS cnt, AVG(rating)::float8 AS avg FROM feedback GROUP BY event_id
)
SELECT e.id, e.title, to_char(e.event_date, 'YYYY-MM-DD') AS event_date, e.status, e.capacity,
       ec.name AS category_name,
       COALESCE(reg.cnt, 0) AS registration_count,
       COALESCE(att.cnt, 0) AS attendance_count,
       fb.avg AS average_rating,
       COALESCE(fb.cnt, 0) AS feedback_count
  FROM events e
  JOIN event_categories ec ON ec.id = e.category_id
  LEFT JOIN reg ON reg.event_id = e.id
  LEFT JOIN att ON att.event_id = e.id
  LEFT JOIN fb ON fb.event_id = e.id`

func reportWhere(collegeID int64, f reports.Filters, a *args) []string {
	clauses := []string{"e.college_id = " + a.add(collegeID)}
	if f.CategoryID > 0 {
		clauses = append(clauses, "e.category_id = "+a.add(f.CategoryID))
	}
	if f.StartDate != "" {
		clauses = append(clauses, "e.event_date >= "+a.add(f.StartDate)+"::date")
	}
	if f.EndDate != "" {
		clauses = append(clauses, "e.event_date <= "+a.add(f.EndDate)+"::date")
	}
	return clauses
}

func scanPopularity(rows interface{ Scan(...any) error }) (reports.EventPopularity, error) {
	var p reports.EventPopularity
	err := rows.Scan(&p.ID, &p.Title, &p.EventDate, &p.Status, &p.Capacity, &p.CategoryName,
		&p.RegistrationCount, &p.AttendanceCount, &p.AverageRating, &p.FeedbackCount)
	return p, err
}

func (r *ReportRepository) queryPopularity(ctx context.Context, query string, a args) ([]reports.EventPopularity, error) {
	rows, err := r.queryer().Query(ctx, query, a...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []reports.EventPopularity{}
	for rows.Next() {
		p, err := scanPopularity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ReportRepository) EventPopularity(ctx context.Context, collegeID int64, filters reports.PopularityFilters, page pagination.Params) (list []reports.EventPopularity, total int, err error) {
	defer func(start time.Time) { metrics.RecordQuery("report_event_popularity", start, err) }(time.Now())

	var ca args
	where := " WHERE " + strings.Join(reportWhere(collegeID, filters.Filters, &ca), " AND ")
	if err = r.queryer().QueryRow(ctx, `SELECT COUNT(*) FROM events e`+where, ca...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	var a args
	where = " WHERE " + strings.Join(reportWhere(collegeID, filters.Filters, &a), " AND ")
	query := eventStatsCTE + where + " " + orderClause("registration_count", filters.SortOrder, "e.id") +
		fmt.Sprintf(" LIMIT %s OFFSET %s", a.add(page.Limit), a.add(page.Offset()))
	list, err = r.queryPopularity(ctx, query, a)
	if err != nil {
		return nil, 0, fmt.Errorf("event popularity: %w", err)
	}
	return list, total, nil
}

// participationQuery lists every student of one college with their
// per-student counts, deactivated accounts included. $1 is the college
// and $2 the minimum attendance.
const participationQuery = `
WITH reg AS (
    SELECT r.user_id, COUNT(*) AS cnt
      FROM registrations r JOIN events e ON e.id = r.event_id
     WHERE r.status = 'registered' AND e.college_id = $1
     GROUP BY r.user_id
), att AS (
    SELECT a.user_id, COUNT(*) AS cnt
      FROM attendance a JOIN events e ON e.id = a.event_id
     WHERE e.college_id = $1
     GROUP BY a.user_id
), fb AS (
    SELECT f.user_id, COUNT(*) AS cnt, AVG(f.rating)::float8 AS avg
      FROM feedback f JOIN events e ON e.id = f.event_id
     WHERE e.college_id = $1
     GROUP BY f.user_id
)
SELECT u.id, u.first_name, u.last_name, u.email, u.student_id,
       COALESCE(reg.cnt, 0) AS total_registrations,
       COALESCE(att.cnt, 0) AS total_attendance,
       COALESCE(fb.cnt, 0) AS total_feedback,
       fb.avg AS average_feedback_rating
  FROM users u
  LEFT JOIN reg ON reg.user_id = u.id
  LEFT JOIN att ON att.user_id = u.id
  LEFT JOIN fb ON fb.user_id = u.id
 WHERE u.college_id = $1 AND u.role = 'student'
   AND COALESCE(att.cnt, 0) >= $2`

func (r *ReportRepository) queryStudents(ctx context.Context, query string, params ...any) ([]reports.StudentParticipation, error) {
	rows, err := r.queryer().Query(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []reports.StudentParticipation{}
	for rows.Next() {
		var s reports.StudentParticipation
		if err := rows.Scan(&s.ID, &s.FirstName, &s.LastName, &s.Email, &s.StudentID,
			&s.TotalRegistrations, &s.TotalAttendance, &s.TotalFeedback, &s.AverageFeedbackRating); err != nil {
			return nil, fmt.Errorf("scan student row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *ReportRepository) StudentParticipation(ctx context.Context, collegeID int64, minEvents int, order pagination.SortOrder, page pagination.Params) ([]reports.StudentParticipation, int, error) {
	var total int
	if err := r.queryer().QueryRow(ctx,
		`SELECT COUNT(*) FROM (`+participationQuery+`) s`, collegeID, minEvents,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}

	query := participationQuery + " " +
		orderClause("total_attendance", order, "total_registrations DESC, u.id") + " LIMIT $3 OFFSET $4"
	list, err := r.queryStudents(ctx, query, collegeID, minEvents, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("student participation: %w", err)
	}
	return list, total, nil
}

func (r *ReportRepository) TopStudents(ctx context.Context, collegeID int64, limit int) ([]reports.StudentParticipation, error) {
	query := participationQuery + `
 ORDER BY total_attendance DESC, total_registrations DESC, u.id
 LIMIT $3`
	list, err := r.queryStudents(ctx, query, collegeID, 0, limit)
	if err != nil {
		return nil, fmt.Errorf("top students: %w", err)
	}
	return list, nil
}

func (r *ReportRepository) AttendanceSummary(ctx context.Context, collegeID int64, filters reports.Filters) (reports.AttendanceSummary, error) {
	var a args
	scoped := `SELECT e.id FROM events e WHERE ` + strings.Join(reportWhere(collegeID, filters, &a), " AND ")

	var s reports.AttendanceSummary
	err := r.queryer().QueryRow(ctx, `
WITH scoped AS (`+scoped+`)
SELECT (SELECT COUNT(*) FROM scoped),
       (SELECT COUNT(*) FROM registrations WHERE status = 'registered' AND event_id IN (SELECT id FROM scoped)),
       (SELECT COUNT(*) FROM attendance WHERE event_id IN (SELECT id FROM scoped)),
       (SELECT COUNT(DISTINCT user_id) FROM registrations WHERE status = 'registered' AND event_id IN (SELECT id FROM scoped)),
       (SELECT COUNT(DISTINCT user_id) FROM attendance WHERE event_id IN (SELECT id FROM scoped)),
       (SELECT COUNT(*) FROM feedback WHERE event_id IN (SELECT id FROM scoped)),
       (SELECT AVG(rating)::float8 FROM feedback WHERE event_id IN (SELECT id FROM scoped))`, a...,
	).Scan(&s.TotalEvents, &s.TotalRegistrations, &s.TotalAttendance, &s.UniqueRegistrants,
		&s.UniqueAttendees, &s.TotalFeedback, &s.AverageFeedbackRating)
	if err != nil {
		return reports.AttendanceSummary{}, fmt.Errorf("attendance summary: %w", err)
	}
	return s, nil
}

func (r *ReportRepository) FeedbackSummary(ctx context.Context, collegeID int64, filters reports.Filters) (reports.FeedbackSummary, error) {
	var a args
	scoped := `SELECT e.id FROM events e WHERE ` + strings.Join(reportWhere(collegeID, filters, &a), " AND ")

	var s reports.FeedbackSummary
	err := r.queryer().QueryRow(ctx, `
SELECT COUNT(DISTINCT f.event_id), COUNT(*), AVG(f.rating)::float8,
       COUNT(*) FILTER (WHERE f.rating = 5), COUNT(*) FILTER (WHERE f.rating = 4),
       COUNT(*) FILTER (WHERE f.rating = 3), COUNT(*) FILTER (WHERE f.rating = 2),
       COUNT(*) FILTER (WHERE f.rating = 1)
  FROM feedback f
 WHERE f.event_id IN (`+scoped+`)`, a...,
	).Scan(&s.EventsWithFeedback, &s.TotalFeedback, &s.AverageRating,
		&s.Five, &s.Four, &s.Three, &s.Two, &s.One)
	if err != nil {
		return reports.FeedbackSummary{}, fmt.Errorf("feedback summary: %w", err)
	}
	return s, nil
}

var flexSortColumns = map[reports.FlexSort]string{
	reports.FlexRegistrationCount: "registration_count",
	reports.FlexAttendanceCount:   "attendance_count",
	reports.FlexAverageRating:     "average_rating",
	reports.FlexEventDate:         "event_date",
}

func (r *ReportRepository) Flexible(ctx context.Context, collegeID int64, f reports.FlexibleFilters) ([]reports.EventPopularity, error) {
	var a args
	clauses := reportWhere(collegeID, reports.Filters{StartDate: f.StartDate, EndDate: f.EndDate}, &a)
	if f.EventType != "" {
		clauses = append(clauses, "ec.name ILIKE "+a.add(containsPattern(f.EventType)))
	}
	if f.MinRegistrations > 0 {
		clauses = append(clauses, "COALESCE(reg.cnt, 0) >= "+a.add(f.MinRegistrations))
	}
	if f.MinAttendance > 0 {
		clauses = append(clauses, "COALESCE(att.cnt, 0) >= "+a.add(f.MinAttendance))
	}
	if f.MinRating != nil {
		clauses = append(clauses, "(fb.avg IS NULL OR fb.avg >= "+a.add(*f.MinRating)+")")
	}

	column, ok := flexSortColumns[f.SortBy]
	if !ok {
		column = flexSortColumns[reports.FlexRegistrationCount]
	}
	query := eventStatsCTE + " WHERE " + strings.Join(clauses, " AND ") + " " + orderClause(column, f.SortOrder, "e.id")
	list, err := r.queryPopularity(ctx, query, a)
	if err != nil {
		return nil, fmt.Errorf("flexible report: %w", err)
	}
	return list, nil
}

func (r *ReportRepository) Categories(ctx context.Context, collegeID int64) ([]reports.Category, error) {
	rows, err := r.queryer().Query(ctx, `
SELECT ec.id, ec.name, ec.description, COUNT(e.id)
  FROM event_categories ec
  LEFT JOIN events e ON e.category_id = ec.id AND e.college_id = $1
 GROUP BY ec.id, ec.name, ec.description
 ORDER BY ec.name`, collegeID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	out := []reports.Category{}
	for rows.Next() {
		var c reports.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.EventCount); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
