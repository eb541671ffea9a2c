package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/campusevents/server/internal/api/pagination"
	"github.com/campusevents/server/internal/domain/events"
	"github.com/campusevents/server/internal/domain/feedback"
	"github.com/jackc/pgx/v5"
)

var _ feedback.Repository = (*FeedbackRepository)(nil)

type FeedbackRepository struct {
	conn
}

func (r *FeedbackRepository) InTx(ctx context.Context, fn func(context.Context, feedback.Repository) error) error {
	return r.conn.inTx(ctx, func(ctx context.Context, c conn) error {
		return fn(ctx, &FeedbackRepository{conn: c})
	})
}

func (r *FeedbackRepository) Event(ctx context.Context, eventID, collegeID int64) (*feedback.EventRef, error) {
	var ref feedback.EventRef
	var status string
	err := r.queryer().QueryRow(ctx, `
SELECT id, title, status, to_char(event_date, 'YYYY-MM-DD')
  FROM events
 WHERE id = $1 AND college_id = $2`, eventID, collegeID,
	).Scan(&ref.ID, &ref.Title, &status, &ref.EventDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, feedback.ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	ref.Status = events.Status(status)
	return &ref, nil
}

func (r *FeedbackRepository) HasAttended(ctx context.Context, eventID, userID int64) (bool, error) {
	var attended bool
	err := r.queryer().QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM attendance WHERE event_id = $1 AND user_id = $2)`, eventID, userID,
	).Scan(&attended)
	if err != nil {
		return false, fmt.Errorf("check attendance: %w", err)
	}
	return attended, nil
}

const feedbackColumns = `id, event_id, user_id, rating, comment, submitted_at`

func scanFeedback(row pgx.Row) (*feedback.Feedback, error) {
	var f feedback.Feedback
	var rating int16
	err := row.Scan(&f.ID, &f.EventID, &f.UserID, &rating, &f.Comment, &f.SubmittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, feedback.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	f.Rating = int(rating)
	return &f, nil
}

func (r *FeedbackRepository) Find(ctx context.Context, eventID, userID int64) (*feedback.Feedback, error) {
	return scanFeedback(r.queryer().QueryRow(ctx,
		`SELECT `+feedbackColumns+` FROM feedback WHERE event_id = $1 AND user_id = $2`, eventID, userID))
}

func (r *FeedbackRepository) Create(ctx context.Context, eventID, userID int64, in feedback.Input, at time.Time) (*feedback.Feedback, error) {
	f, err := scanFeedback(r.queryer().QueryRow(ctx, `
INSERT INTO feedback (event_id, user_id, rating, comment, submitted_at)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+feedbackColumns, eventID, userID, in.Rating, in.Comment, at))
	if uniqueViolationOn(err, "feedback_event_user_key") {
		return nil, feedback.ErrAlreadySubmitted
	}
	if err != nil {
		return nil, fmt.Errorf("insert feedback: %w", err)
	}
	return f, nil
}

func (r *FeedbackRepository) Update(ctx context.Context, id int64, in feedback.Input, at time.Time) (*feedback.Feedback, error) {
	f, err := scanFeedback(r.queryer().QueryRow(ctx, `
UPDATE feedback SET rating = $2, comment = $3, submitted_at = $4
 WHERE id = $1
RETURNING `+feedbackColumns, id, in.Rating, in.Comment, at))
	if err != nil && !errors.Is(err, feedback.ErrNotFound) {
		return nil, fmt.Errorf("update feedback: %w", err)
	}
	return f, err
}

func (r *FeedbackRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.queryer().Exec(ctx, `DELETE FROM feedback WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete feedback: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return feedback.ErrNotFound
	}
	return nil
}

func (r *FeedbackRepository) List(ctx context.Context, eventID int64, page pagination.Params) ([]feedback.Entry, error) {
	rows, err := r.queryer().Query(ctx, `
SELECT f.id, f.event_id, f.user_id, f.rating, f.comment, f.submitted_at,
       u.first_name, u.last_name, u.student_id
  FROM feedback f
  JOIN users u ON u.id = f.user_id
 WHERE f.event_id = $1
 ORDER BY f.submitted_at DESC, f.id DESC
 LIMIT $2 OFFSET $3`, eventID, page.Limit, page.Offset())
	if err != nil {
		return nil, fmt.Errorf("list feedback: %w", err)
	}
	defer rows.Close()

	out := []feedback.Entry{}
	for rows.Next() {
		var e feedback.Entry
		var rating int16
		if err := rows.Scan(&e.ID, &e.EventID, &e.UserID, &rating, &e.Comment, &e.SubmittedAt,
			&e.FirstName, &e.LastName, &e.StudentID); err != nil {
			return nil, fmt.Errorf("scan feedback: %w", err)
		}
		e.Rating = int(rating)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *FeedbackRepository) Aggregate(ctx context.Context, eventID int64) (feedback.Aggregate, error) {
	var agg feedback.Aggregate
	err := r.queryer().QueryRow(ctx, `
SELECT COUNT(*), AVG(rating)::float8,
       COUNT(*) FILTER (WHERE rating = 5), COUNT(*) FILTER (WHERE rating = 4),
       COUNT(*) FILTER (WHERE rating = 3), COUNT(*) FILTER (WHERE rating = 2),
       COUNT(*) FILTER (WHERE rating = 1)
  FROM feedback
 WHERE event_id = $1`, eventID,
	).Scan(&agg.Count, &agg.Average, &agg.Stars.Five, &agg.Stars.Four, &agg.Stars.Three, &agg.Stars.Two, &agg.Stars.One)
	if err != nil {
		return feedback.Aggregate{}, fmt.Errorf("aggregate feedback: %w", err)
	}
	return agg, nil
}
