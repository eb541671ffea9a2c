package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campusevents/server/internal/api/pagination"
	"github.com/campusevents/server/internal/domain/events"
	"github.com/campusevents/server/internal/metrics"
	"github.com/jackc/pgx/v5"
)

var _ events.Repository = (*EventRepository)(nil)

type EventRepository struct {
	conn
}

// eventSelect returns events with their category, creator and live counts.
// Dates and times are rendered as text so they round-trip unchanged.
const eventSelect = `
SELECT e.id, e.college_id, e.category_id, ec.name, e.title, e.description,
       to_char(e.event_date, 'YYYY-MM-DD'), to_char(e.start_time, 'HH24:MI'), to_char(e.end_time, 'HH24:MI'),
       e.location, e.capacity, e.registration_deadline, e.created_by,
       u.first_name || ' ' || u.last_name, e.status,
       (SELECT COUNT(*) FROM registrations r WHERE r.event_id = e.id AND r.status = 'registered'),
       (SELECT COUNT(*) FROM attendance a WHERE a.event_id = e.id),
       e.created_at, e.updated_at`

const eventFrom = `
  FROM events e
  JOIN event_categories ec ON ec.id = e.category_id
  JOIN users u ON u.id = e.created_by`

var eventSortColumns = map[events.SortField]string{
	events.SortEventDate: "e.event_date",
	events.SortTitle:     "e.title",
	events.SortCreatedAt: "e.created_at",
	events.SortCapacity:  "e.capacity",
}

func eventOrder(field events.SortField, order pagination.SortOrder) string {
	column, ok := eventSortColumns[field]
	if !ok {
		column = eventSortColumns[events.SortEventDate]
	}
	tiebreak := "e.id"
	if column == "e.event_date" {
		tiebreak = "e.start_time, e.id"
	}
	return orderClause(column, order, tiebreak)
}

// scanEvent reads one eventSelect row; extra destinations follow the event
// columns.
func scanEvent(row pgx.Row, extra ...any) (*events.Event, error) {
	var e events.Event
	var status string
	dest := []any{
		&e.ID, &e.CollegeID, &e.CategoryID, &e.CategoryName, &e.Title, &e.Description,
		&e.EventDate, &e.StartTime, &e.EndTime,
		&e.Location, &e.Capacity, &e.RegistrationDeadline, &e.CreatedBy,
		&e.CreatedByName, &status,
		&e.RegistrationCount, &e.AttendanceCount,
		&e.CreatedAt, &e.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	e.Status = events.Status(status)
	return &e, nil
}

func eventWhere(collegeID int64, filters events.Filters, a *args) string {
	clauses := []string{"e.college_id = " + a.add(collegeID)}
	if filters.Status != "" {
		clauses = append(clauses, "e.status = "+a.add(string(filters.Status)))
	}
	if filters.CategoryID > 0 {
		clauses = append(clauses, "e.category_id = "+a.add(filters.CategoryID))
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		p := a.add(containsPattern(search))
		clauses = append(clauses, fmt.Sprintf("(e.title ILIKE %s OR e.description ILIKE %s)", p, p))
	}
	return " WHERE " + strings.Join(clauses, " AND ")
}

func (r *EventRepository) List(ctx context.Context, collegeID int64, filters events.Filters, page pagination.Params) (list []events.Event, err error) {
	defer func(start time.Time) { metrics.RecordQuery("list_events", start, err) }(time.Now())

	var a args
	query := eventSelect + eventFrom + eventWhere(collegeID, filters, &a) + " " +
		eventOrder(filters.SortBy, filters.SortOrder) +
		fmt.Sprintf(" LIMIT %s OFFSET %s", a.add(page.Limit), a.add(page.Offset()))

	rows, err := r.queryer().Query(ctx, query, a...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	list = []events.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		list = append(list, *e)
	}
	return list, rows.Err()
}

func (r *EventRepository) Count(ctx context.Context, collegeID int64, filters events.Filters) (int, error) {
	var a args
	var total int
	query := `SELECT COUNT(*) FROM events e` + eventWhere(collegeID, filters, &a)
	if err := r.queryer().QueryRow(ctx, query, a...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count events: %w", err)
	}
	return total, nil
}

func (r *EventRepository) Get(ctx context.Context, id, collegeID int64) (*events.Event, error) {
	e, err := scanEvent(r.queryer().QueryRow(ctx,
		eventSelect+eventFrom+` WHERE e.id = $1 AND e.college_id = $2`, id, collegeID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, events.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

func (r *EventRepository) CategoryExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.queryer().QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM event_categories WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check category: %w", err)
	}
	return exists, nil
}

func (r *EventRepository) Create(ctx context.Context, p events.WriteParams) (int64, error) {
	var id int64
	err := r.queryer().QueryRow(ctx, `
INSERT INTO events (college_id, category_id, title, description, event_date, start_time, end_time,
                    location, capacity, registration_deadline, created_by, status)
VALUES ($1, $2, $3, $4, $5::date, $6::time, $7::time, $8, $9, $10, $11, 'draft')
RETURNING id`,
		p.CollegeID, p.CategoryID, p.Title, p.Description, p.EventDate, p.StartTime, p.EndTime,
		p.Location, p.Capacity, p.RegistrationDeadline, p.CreatedBy,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return id, nil
}

func (r *EventRepository) Update(ctx context.Context, id int64, p events.WriteParams) error {
	tag, err := r.queryer().Exec(ctx, `
UPDATE events
   SET category_id = $3, title = $4, description = $5, event_date = $6::date,
       start_time = $7::time, end_time = $8::time, location = $9, capacity = $10,
       registration_deadline = $11, updated_at = now()
 WHERE id = $1 AND college_id = $2`,
		id, p.CollegeID, p.CategoryID, p.Title, p.Description, p.EventDate, p.StartTime, p.EndTime,
		p.Location, p.Capacity, p.RegistrationDeadline,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (r *EventRepository) SetStatus(ctx context.Context, id, collegeID int64, status events.Status) error {
	tag, err := r.queryer().Exec(ctx,
		`UPDATE events SET status = $3, updated_at = now() WHERE id = $1 AND college_id = $2`,
		id, collegeID, string(status))
	if err != nil {
		return fmt.Errorf("update event status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (r *EventRepository) Delete(ctx context.Context, id, collegeID int64) error {
	tag, err := r.queryer().Exec(ctx, `DELETE FROM events WHERE id = $1 AND college_id = $2`, id, collegeID)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return events.ErrNotFound
	}
	return nil
}

func (r *EventRepository) HasRegistrations(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.queryer().QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM registrations WHERE event_id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check registrations: %w", err)
	}
	return exists, nil
}

func (r *EventRepository) ListRegistrations(ctx context.Context, eventID int64, status string, page pagination.Params) ([]events.Registrant, int, error) {
	q := r.queryer()

	var total int
	if err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND status = $2`, eventID, status,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count registrations: %w", err)
	}

	rows, err := q.Query(ctx, `
SELECT r.id, r.event_id, r.user_id, r.status, r.registration_date,
       u.first_name, u.last_name, u.email, u.student_id
  FROM registrations r
  JOIN users u ON u.id = r.user_id
 WHERE r.event_id = $1 AND r.status = $2
 ORDER BY r.registration_date DESC, r.id DESC
 LIMIT $3 OFFSET $4`, eventID, status, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	out := []events.Registrant{}
	for rows.Next() {
		var reg events.Registrant
		if err := rows.Scan(&reg.ID, &reg.EventID, &reg.UserID, &reg.Status, &reg.RegistrationDate,
			&reg.FirstName, &reg.LastName, &reg.Email, &reg.StudentID); err != nil {
			return nil, 0, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, reg)
	}
	return out, total, rows.Err()
}
