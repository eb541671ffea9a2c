package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/campusevents/server/internal/auth"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type seedCollege struct {
	name, domain, address, admin string
}

var seedColleges = []seedCollege{
	{"Tech University", "techuniv.edu", "123 Tech Street, Tech City", "John"},
	{"Innovation College", "innovationcollege.edu", "456 Innovation Ave, Innovation City", "Jane"},
	{"Digital Institute", "digitalinstitute.edu", "789 Digital Blvd, Digital City", "Bob"},
}

type seedEvent struct {
	college     int
	category    string
	title       string
	description string
	inDays      int
	start, end  string
	location    string
	capacity    int
	deadlineIn  int
}

var seedEvents = []seedEvent{
	{0, "Workshop", "Web Development Workshop", "Learn modern web development with React and Node.js", 7, "09:00", "17:00", "Computer Lab 1", 30, 5},
	{0, "Hackathon", "24-Hour Coding Challenge", "Build innovative solutions in 24 hours", 14, "10:00", "22:00", "Main Auditorium", 50, 12},
	{1, "Tech Talk", "AI and Machine Learning Trends", "Explore the latest trends in AI and ML", 3, "14:00", "16:00", "Conference Room A", 100, 1},
	{2, "Fest", "Tech Fest", "Annual technology festival with competitions and exhibitions", 21, "09:00", "18:00", "Campus Grounds", 200, 18},
}

var seedFeedback = []struct {
	rating  int
	comment string
}{
	{4, "Great seminar!"},
	{5, "Very informative session"},
	{3, "Good content but could be better organized"},
	{4, "Excellent presentation"},
	{5, "Learned a lot from this event"},
}

const studentsPerCollege = 10

// SeedSummary counts the rows a Seed call inserted.
type SeedSummary struct {
	Colleges      int
	Users         int
	Events        int
	Registrations int
	Attendance    int
	Feedback      int
}

// Seed loads demo data: three colleges with one admin (admin123) and ten
// students (student123) each, four upcoming published events, and one
// completed seminar with attendance and feedback. Existing colleges and users
// are left untouched, so the command can be re-run.
func Seed(ctx context.Context, pool *pgxpool.Pool, now time.Time) (SeedSummary, error) {
	var summary SeedSummary

	adminHash, err := auth.HashPassword("admin123")
	if err != nil {
		return summary, err
	}
	studentHash, err := auth.HashPassword("student123")
	if err != nil {
		return summary, err
	}

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		categories := map[string]int64{}
		rows, err := tx.Query(ctx, `SELECT id, name FROM event_categories`)
		if err != nil {
			return fmt.Errorf("load categories: %w", err)
		}
		for rows.Next() {
			var id int64
			var name string
			if err := rows.Scan(&id, &name); err != nil {
				rows.Close()
				return err
			}
			categories[name] = id
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		collegeIDs := make([]int64, len(seedColleges))
		adminIDs := make([]int64, len(seedColleges))
		studentIDs := make([][]int64, len(seedColleges))
		for i, c := range seedColleges {
			tag, err := tx.Exec(ctx, `
INSERT INTO colleges (name, domain, address, contact_email)
VALUES ($1, $2, $3, $4)
ON CONFLICT (domain) DO NOTHING`, c.name, c.domain, c.address, "admin@"+c.domain)
			if err != nil {
				return fmt.Errorf("insert college %s: %w", c.domain, err)
			}
			summary.Colleges += int(tag.RowsAffected())
			if err := tx.QueryRow(ctx, `SELECT id FROM colleges WHERE domain = $1`, c.domain).Scan(&collegeIDs[i]); err != nil {
				return err
			}

			adminIDs[i], err = seedUser(ctx, tx, &summary, collegeIDs[i], "admin@"+c.domain, adminHash, c.admin, "Admin", nil, auth.RoleAdmin)
			if err != nil {
				return err
			}
			for n := 1; n <= studentsPerCollege; n++ {
				sid := fmt.Sprintf("STU%03d", n)
				id, err := seedUser(ctx, tx, &summary, collegeIDs[i], fmt.Sprintf("student%d@%s", n, c.domain),
					studentHash, fmt.Sprintf("Student%d", n), fmt.Sprintf("Lastname%d", n), &sid, auth.RoleStudent)
				if err != nil {
					return err
				}
				studentIDs[i] = append(studentIDs[i], id)
			}
		}

		day := func(offset int) string {
			return now.AddDate(0, 0, offset).Format("2006-01-02")
		}

		for _, e := range seedEvents {
			deadline := now.AddDate(0, 0, e.deadlineIn)
			var eventID int64
			err := tx.QueryRow(ctx, `
INSERT INTO events (college_id, category_id, title, description, event_date, start_time, end_time,
                    location, capacity, registration_deadline, created_by, status)
VALUES ($1, $2, $3, $4, $5::date, $6::time, $7::time, $8, $9, $10, $11, 'published')
RETURNING id`,
				collegeIDs[e.college], categories[e.category], e.title, e.description, day(e.inDays),
				e.start, e.end, e.location, e.capacity, deadline, adminIDs[e.college],
			).Scan(&eventID)
			if err != nil {
				return fmt.Errorf("insert event %q: %w", e.title, err)
			}
			summary.Events++

			for _, studentID := range studentIDs[e.college][:5] {
				tag, err := tx.Exec(ctx, `
INSERT INTO registrations (event_id, user_id, status, registration_date)
VALUES ($1, $2, 'registered', $3)
ON CONFLICT (event_id, user_id) DO NOTHING`, eventID, studentID, now)
				if err != nil {
					return fmt.Errorf("insert registration: %w", err)
				}
				summary.Registrations += int(tag.RowsAffected())
			}
		}

		var seminarID int64
		err = tx.QueryRow(ctx, `
INSERT INTO events (college_id, category_id, title, description, event_date, start_time, end_time,
                    location, capacity, created_by, status)
VALUES ($1, $2, 'Completed Seminar', 'A seminar that already happened', $3::date,
        '10:00'::time, '12:00'::time, 'Room 101', 25, $4, 'completed')
RETURNING id`, collegeIDs[0], categories["Seminar"], day(-7), adminIDs[0]).Scan(&seminarID)
		if err != nil {
			return fmt.Errorf("insert seminar: %w", err)
		}
		summary.Events++

		checkIn := now.AddDate(0, 0, -7).Add(2 * time.Hour)
		for i, studentID := range studentIDs[0][:len(seedFeedback)] {
			batch := &pgx.Batch{}
			batch.Queue(`INSERT INTO registrations (event_id, user_id, status, registration_date)
VALUES ($1, $2, 'registered', $3) ON CONFLICT (event_id, user_id) DO NOTHING`, seminarID, studentID, checkIn.Add(-72*time.Hour))
			batch.Queue(`INSERT INTO attendance (event_id, user_id, check_in_time, check_out_time, status)
VALUES ($1, $2, $3, $4, 'present') ON CONFLICT (event_id, user_id) DO NOTHING`, seminarID, studentID, checkIn, checkIn.Add(2*time.Hour))
			batch.Queue(`INSERT INTO feedback (event_id, user_id, rating, comment, submitted_at)
VALUES ($1, $2, $3, $4, $5) ON CONFLICT (event_id, user_id) DO NOTHING`,
				seminarID, studentID, seedFeedback[i].rating, seedFeedback[i].comment, checkIn.Add(24*time.Hour))
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return fmt.Errorf("seed seminar attendee: %w", err)
			}
			summary.Registrations++
			summary.Attendance++
			summary.Feedback++
		}
		return nil
	})
	return summary, err
}

func seedUser(ctx context.Context, tx pgx.Tx, summary *SeedSummary, collegeID int64, email, hash, first, last string, studentID *string, role auth.Role) (int64, error) {
	tag, err := tx.Exec(ctx, `
INSERT INTO users (college_id, email, password_hash, first_name, last_name, student_id, role)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (email) DO NOTHING`, collegeID, email, hash, first, last, studentID, string(role))
	if err != nil {
		return 0, fmt.Errorf("insert user %s: %w", email, err)
	}
	summary.Users += int(tag.RowsAffected())
	var id int64
	if err := tx.QueryRow(ctx, `SELECT id FROM users WHERE email = $1`, email).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}
