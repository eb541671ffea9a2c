package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campusevents/server/internal/api/pagination"
	"github.com/campusevents/server/internal/domain/events"
	"github.com/campusevents/server/internal/domain/registrations"
	"github.com/campusevents/server/internal/metrics"
	"github.com/jackc/pgx/v5"
)

var _ registrations.Repository = (*RegistrationRepository)(nil)

type RegistrationRepository struct {
	conn
}

func (r *RegistrationRepository) InTx(ctx context.Context, fn func(context.Context, registrations.Repository) error) error {
	return r.conn.inTx(ctx, func(ctx context.Context, c conn) error {
		return fn(ctx, &RegistrationRepository{conn: c})
	})
}

const snapshotSelect = `
SELECT e.id, e.college_id, e.title, e.status, to_char(e.event_date, 'YYYY-MM-DD'),
       e.capacity, e.registration_deadline
  FROM events e
 WHERE e.id = $1 AND e.college_id = $2`

func (r *RegistrationRepository) snapshot(ctx context.Context, query string, eventID, collegeID int64) (*registrations.EventSnapshot, error) {
	q := r.queryer()
	var s registrations.EventSnapshot
	var status string
	err := q.QueryRow(ctx, query, eventID, collegeID).Scan(
		&s.ID, &s.CollegeID, &s.Title, &status, &s.EventDate, &s.Capacity, &s.RegistrationDeadline)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, registrations.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	s.Status = events.Status(status)
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND status = 'registered'`, eventID,
	).Scan(&s.ActiveRegistrations); err != nil {
		return nil, fmt.Errorf("count registrations: %w", err)
	}
	return &s, nil
}

// LockEvent takes a row lock on the event. It must run inside InTx.
func (r *RegistrationRepository) LockEvent(ctx context.Context, eventID, collegeID int64) (*registrations.EventSnapshot, error) {
	if r.tx == nil {
		return nil, fmt.Errorf("lock event: no transaction")
	}
	return r.snapshot(ctx, snapshotSelect+` FOR UPDATE`, eventID, collegeID)
}

func (r *RegistrationRepository) Event(ctx context.Context, eventID, collegeID int64) (*registrations.EventSnapshot, error) {
	return r.snapshot(ctx, snapshotSelect, eventID, collegeID)
}

const registrationColumns = `id, event_id, user_id, status, registration_date`

func scanRegistration(row pgx.Row) (*registrations.Registration, error) {
	var reg registrations.Registration
	err := row.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.Status, &reg.RegistrationDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, registrations.ErrRegistrationNotFound
	}
	if err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *RegistrationRepository) FindRegistration(ctx context.Context, eventID, userID int64) (*registrations.Registration, error) {
	return scanRegistration(r.queryer().QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE event_id = $1 AND user_id = $2`, eventID, userID))
}

func (r *RegistrationRepository) CreateRegistration(ctx context.Context, eventID, userID int64, at time.Time) (reg *registrations.Registration, err error) {
	defer func(start time.Time) { metrics.RecordQuery("insert_registration", start, err) }(time.Now())
	reg, err = scanRegistration(r.queryer().QueryRow(ctx, `
INSERT INTO registrations (event_id, user_id, status, registration_date)
VALUES ($1, $2, 'registered', $3)
RETURNING `+registrationColumns, eventID, userID, at))
	if uniqueViolationOn(err, "registrations_event_user_key") {
		return nil, registrations.ErrAlreadyRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("insert registration: %w", err)
	}
	return reg, nil
}

func (r *RegistrationRepository) UpdateRegistrationStatus(ctx context.Context, id int64, status string, at time.Time) (*registrations.Registration, error) {
	reg, err := scanRegistration(r.queryer().QueryRow(ctx, `
UPDATE registrations SET status = $2, registration_date = $3
 WHERE id = $1
RETURNING `+registrationColumns, id, status, at))
	if err != nil && !errors.Is(err, registrations.ErrRegistrationNotFound) {
		return nil, fmt.Errorf("update registration: %w", err)
	}
	return reg, err
}

const attendanceColumns = `id, event_id, user_id, check_in_time, check_out_time, status`

func scanAttendance(row pgx.Row) (*registrations.Attendance, error) {
	var att registrations.Attendance
	err := row.Scan(&att.ID, &att.EventID, &att.UserID, &att.CheckInTime, &att.CheckOutTime, &att.Status)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, registrations.ErrAttendanceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &att, nil
}

func (r *RegistrationRepository) FindAttendance(ctx context.Context, eventID, userID int64) (*registrations.Attendance, error) {
	return scanAttendance(r.queryer().QueryRow(ctx,
		`SELECT `+attendanceColumns+` FROM attendance WHERE event_id = $1 AND user_id = $2`, eventID, userID))
}

func (r *RegistrationRepository) CreateAttendance(ctx context.Context, eventID, userID int64, at time.Time) (*registrations.Attendance, error) {
	att, err := scanAttendance(r.queryer().QueryRow(ctx, `
INSERT INTO attendance (event_id, user_id, check_in_time, status)
VALUES ($1, $2, $3, 'present')
RETURNING `+attendanceColumns, eventID, userID, at))
	if uniqueViolationOn(err, "attendance_event_user_key") {
		return nil, registrations.ErrAlreadyCheckedIn
	}
	if err != nil {
		return nil, fmt.Errorf("insert attendance: %w", err)
	}
	return att, nil
}

// CheckOut only touches rows without a check-out time, so a repeated
// check-out reports ErrAttendanceNotFound.
func (r *RegistrationRepository) CheckOut(ctx context.Context, id int64, at time.Time) (*registrations.Attendance, error) {
	att, err := scanAttendance(r.queryer().QueryRow(ctx, `
UPDATE attendance SET check_out_time = $2
 WHERE id = $1 AND check_out_time IS NULL
RETURNING `+attendanceColumns, id, at))
	if err != nil && !errors.Is(err, registrations.ErrAttendanceNotFound) {
		return nil, fmt.Errorf("check out: %w", err)
	}
	return att, err
}

func (r *RegistrationRepository) ListAttendance(ctx context.Context, eventID int64, page pagination.Params) ([]registrations.Attendee, int, error) {
	q := r.queryer()
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM attendance WHERE event_id = $1`, eventID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}

	rows, err := q.Query(ctx, `
SELECT a.id, a.event_id, a.user_id, a.check_in_time, a.check_out_time, a.status,
       u.first_name, u.last_name, u.email, u.student_id
  FROM attendance a
  JOIN users u ON u.id = a.user_id
 WHERE a.event_id = $1
 ORDER BY a.check_in_time DESC, a.id DESC
 LIMIT $2 OFFSET $3`, eventID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list attendance: %w", err)
	}
	defer rows.Close()

	out := []registrations.Attendee{}
	for rows.Next() {
		var a registrations.Attendee
		if err := rows.Scan(&a.ID, &a.EventID, &a.UserID, &a.CheckInTime, &a.CheckOutTime, &a.Status,
			&a.FirstName, &a.LastName, &a.Email, &a.StudentID); err != nil {
			return nil, 0, fmt.Errorf("scan attendance: %w", err)
		}
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (r *RegistrationRepository) AttendanceCounts(ctx context.Context, eventID int64) (registered, attended, checkedOut int, err error) {
	err = r.queryer().QueryRow(ctx, `
SELECT (SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND status = 'registered'),
       (SELECT COUNT(*) FROM attendance WHERE event_id = $1),
       (SELECT COUNT(*) FROM attendance WHERE event_id = $1 AND check_out_time IS NOT NULL)`, eventID,
	).Scan(&registered, &attended, &checkedOut)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("attendance counts: %w", err)
	}
	return registered, attended, checkedOut, nil
}

const eventDetailColumns = `
       e.title, e.description, to_char(e.event_date, 'YYYY-MM-DD'),
       to_char(e.start_time, 'HH24:MI'), to_char(e.end_time, 'HH24:MI'),
       e.location, e.status, ec.name`

func detailDest(d *registrations.EventDetails, status *string) []any {
	return []any{&d.Title, &d.Description, &d.EventDate, &d.StartTime, &d.EndTime, &d.Location, status, &d.CategoryName}
}

var registrationSortColumns = map[registrations.RegistrationSort]string{
	registrations.SortRegistrationDate: "r.registration_date",
	registrations.SortRegEventDate:     "e.event_date",
	registrations.SortRegTitle:         "e.title",
}

func (r *RegistrationRepository) StudentRegistrations(ctx context.Context, userID int64, filters registrations.HistoryFilters, page pagination.Params) ([]registrations.StudentRegistration, int, error) {
	q := r.queryer()
	var total int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE user_id = $1 AND status = $2`, userID, filters.Status,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count registrations: %w", err)
	}

	column, ok := registrationSortColumns[filters.SortBy]
	if !ok {
		column = registrationSortColumns[registrations.SortRegistrationDate]
	}
	rows, err := q.Query(ctx, `
SELECT r.id, r.event_id, r.user_id, r.status, r.registration_date,`+eventDetailColumns+`,
       EXISTS (SELECT 1 FROM attendance a WHERE a.event_id = r.event_id AND a.user_id = r.user_id)
  FROM registrations r
  JOIN events e ON e.id = r.event_id
  JOIN event_categories ec ON ec.id = e.category_id
 WHERE r.user_id = $1 AND r.status = $2
 `+orderClause(column, filters.SortOrder, "r.id")+`
 LIMIT $3 OFFSET $4`, userID, filters.Status, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list student registrations: %w", err)
	}
	defer rows.Close()

	out := []registrations.StudentRegistration{}
	for rows.Next() {
		var sr registrations.StudentRegistration
		var status string
		dest := append([]any{&sr.ID, &sr.EventID, &sr.UserID, &sr.Status, &sr.RegistrationDate},
			detailDest(&sr.EventDetails, &status)...)
		if err := rows.Scan(append(dest, &sr.Attended)...); err != nil {
			return nil, 0, fmt.Errorf("scan student registration: %w", err)
		}
		sr.EventStatus = events.Status(status)
		out = append(out, sr)
	}
	return out, total, rows.Err()
}

var attendanceSortColumns = map[registrations.AttendanceSort]string{
	registrations.SortCheckInTime:  "a.check_in_time",
	registrations.SortCheckOutTime: "a.check_out_time",
	registrations.SortAttEventDate: "e.event_date",
	registrations.SortAttTitle:     "e.title",
}

func (r *RegistrationRepository) StudentAttendance(ctx context.Context, userID int64, filters registrations.AttendanceFilters, page pagination.Params) ([]registrations.StudentAttendance, int, error) {
	q := r.queryer()
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM attendance WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}

	column, ok := attendanceSortColumns[filters.SortBy]
	if !ok {
		column = attendanceSortColumns[registrations.SortCheckInTime]
	}
	rows, err := q.Query(ctx, `
SELECT a.id, a.event_id, a.user_id, a.check_in_time, a.check_out_time, a.status,`+eventDetailColumns+`
  FROM attendance a
  JOIN events e ON e.id = a.event_id
  JOIN event_categories ec ON ec.id = e.category_id
 WHERE a.user_id = $1
 `+orderClause(column, filters.SortOrder, "a.id")+`
 LIMIT $2 OFFSET $3`, userID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list student attendance: %w", err)
	}
	defer rows.Close()

	out := []registrations.StudentAttendance{}
	for rows.Next() {
		var sa registrations.StudentAttendance
		var status string
		dest := append([]any{&sa.ID, &sa.EventID, &sa.UserID, &sa.CheckInTime, &sa.CheckOutTime, &sa.Status},
			detailDest(&sa.EventDetails, &status)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, fmt.Errorf("scan student attendance: %w", err)
		}
		sa.EventStatus = events.Status(status)
		out = append(out, sa)
	}
	return out, total, rows.Err()
}

const isRegisteredColumn = `,
       EXISTS (SELECT 1 FROM registrations mine
                WHERE mine.event_id = e.id AND mine.user_id = %s AND mine.status = 'registered')`

func browseWhere(collegeID int64, filters registrations.BrowseFilters, now time.Time, a *args) string {
	clauses := []string{
		"e.college_id = " + a.add(collegeID),
		"e.status = 'published'",
		"(e.registration_deadline IS NULL OR e.registration_deadline > " + a.add(now) + ")",
	}
	if filters.CategoryID > 0 {
		clauses = append(clauses, "e.category_id = "+a.add(filters.CategoryID))
	}
	if filters.Search != "" {
		p := a.add(containsPattern(filters.Search))
		clauses = append(clauses, fmt.Sprintf("(e.title ILIKE %s OR e.description ILIKE %s)", p, p))
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

func (r *RegistrationRepository) BrowseEvents(ctx context.Context, userID, collegeID int64, filters registrations.BrowseFilters, now time.Time, page pagination.Params) ([]registrations.BrowseEvent, int, error) {
	q := r.queryer()

	var ca args
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM events e`+browseWhere(collegeID, filters, now, &ca), ca...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count open events: %w", err)
	}

	var a args
	mine := fmt.Sprintf(isRegisteredColumn, a.add(userID))
	query := eventSelect + mine + eventFrom + browseWhere(collegeID, filters, now, &a) + " " +
		eventOrder(filters.SortBy, filters.SortOrder) +
		fmt.Sprintf(" LIMIT %s OFFSET %s", a.add(page.Limit), a.add(page.Offset()))
	rows, err := q.Query(ctx, query, a...)
	if err != nil {
		return nil, 0, fmt.Errorf("browse events: %w", err)
	}
	defer rows.Close()

	out := []registrations.BrowseEvent{}
	for rows.Next() {
		var mineFlag bool
		e, err := scanEvent(rows, &mineFlag)
		if err != nil {
			return nil, 0, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, registrations.BrowseEvent{Event: *e, IsRegistered: mineFlag})
	}
	return out, total, rows.Err()
}

func (r *RegistrationRepository) BrowseEvent(ctx context.Context, userID, collegeID, eventID int64) (*registrations.BrowseEvent, error) {
	var mine bool
	query := eventSelect + fmt.Sprintf(isRegisteredColumn, "$3") + eventFrom + ` WHERE e.id = $1 AND e.college_id = $2`
	e, err := scanEvent(r.queryer().QueryRow(ctx, query, eventID, collegeID, userID), &mine)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, registrations.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return &registrations.BrowseEvent{Event: *e, IsRegistered: mine}, nil
}
