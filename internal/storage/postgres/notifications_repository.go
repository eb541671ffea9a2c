package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campusevents/server/internal/jobs"
	"github.com/campusevents/server/internal/metrics"
	"github.com/jackc/pgx/v5"
)

var _ jobs.Directory = (*NotificationDirectory)(nil)

// NotificationDirectory resolves notification job arguments into recipients.
type NotificationDirectory struct {
	conn
}

func (r *Repository) Notifications() *NotificationDirectory {
	return &NotificationDirectory{conn: r.conn}
}

const noticeSelect = `
SELECT u.email, u.first_name, u.last_name, c.name,
       e.id, e.title, to_char(e.event_date, 'YYYY-MM-DD'),
       to_char(e.start_time, 'HH24:MI'), to_char(e.end_time, 'HH24:MI'),
       COALESCE(e.location, '')
  FROM users u
  JOIN colleges c ON c.id = u.college_id`

func scanNotice(row pgx.Row) (*jobs.Notice, error) {
	var n jobs.Notice
	err := row.Scan(&n.Email, &n.FirstName, &n.LastName, &n.CollegeName,
		&n.EventID, &n.EventTitle, &n.EventDate, &n.StartTime, &n.EndTime, &n.Location)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, jobs.ErrRecipientGone
	}
	if err != nil {
		return nil, err
	}
	return &n, nil
}

// RegistrationNotice only resolves registrations that are still active for an
// active user.
func (r *NotificationDirectory) RegistrationNotice(ctx context.Context, registrationID int64) (n *jobs.Notice, err error) {
	defer func(start time.Time) { metrics.RecordQuery("registration_notice", start, err) }(time.Now())
	return scanNotice(r.queryer().QueryRow(ctx, noticeSelect+`
  JOIN registrations reg ON reg.user_id = u.id
  JOIN events e ON e.id = reg.event_id
 WHERE reg.id = $1 AND reg.status = 'registered' AND u.is_active`, registrationID))
}

func (r *NotificationDirectory) Attendees(ctx context.Context, eventID int64) (ids []int64, err error) {
	defer func(start time.Time) { metrics.RecordQuery("event_attendees", start, err) }(time.Now())
	rows, err := r.queryer().Query(ctx, `
SELECT a.user_id
  FROM attendance a
  JOIN users u ON u.id = a.user_id
 WHERE a.event_id = $1 AND u.is_active
 ORDER BY a.user_id`, eventID)
	if err != nil {
		return nil, fmt.Errorf("query attendees: %w", err)
	}
	ids, err = pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("scan attendees: %w", err)
	}
	return ids, nil
}

// AttendeeNotice skips students who already left feedback.
func (r *NotificationDirectory) AttendeeNotice(ctx context.Context, eventID, userID int64) (n *jobs.Notice, err error) {
	defer func(start time.Time) { metrics.RecordQuery("attendee_notice", start, err) }(time.Now())
	return scanNotice(r.queryer().QueryRow(ctx, noticeSelect+`
  JOIN attendance a ON a.user_id = u.id
  JOIN events e ON e.id = a.event_id
 WHERE a.event_id = $1 AND a.user_id = $2 AND u.is_active
   AND NOT EXISTS (SELECT 1 FROM feedback f WHERE f.event_id = a.event_id AND f.user_id = a.user_id)`,
		eventID, userID))
}
