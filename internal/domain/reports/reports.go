// Package reports computes the read-only, college-wide aggregates available
// to admins. Storage returns raw counts and averages; percentages and
// rounding are applied here so every report rounds the same way.
package reports

import (
	"context"
	"strings"

	"github.com/campusevents/server/internal/api/pagination"
	"github.com/campusevents/server/internal/domain/stats"
)

// Filters narrows reports to a date range and category.
type Filters struct {
	CategoryID int64
	StartDate  string
	EndDate    string
}

type PopularityFilters struct {
	Filters
	SortOrder pagination.SortOrder
}

type EventPopularity struct {
	ID                   int64    `json:"id"`
	Title                string   `json:"title"`
	EventDate            string   `json:"event_date"`
	Status               string   `json:"status"`
	Capacity             *int     `json:"capacity"`
	CategoryName         string   `json:"category_name"`
	RegistrationCount    int      `json:"registration_count"`
	AttendanceCount      int      `json:"attendance_count"`
	AttendancePercentage float64  `json:"attendance_percentage"`
	AverageRating        *float64 `json:"average_rating"`
	FeedbackCount        int      `json:"feedback_count"`
}

type StudentParticipation struct {
	ID                    int64    `json:"id"`
	FirstName             string   `json:"first_name"`
	LastName              string   `json:"last_name"`
	Email                 string   `json:"email"`
	StudentID             *string  `json:"student_id"`
	TotalRegistrations    int      `json:"total_registrations"`
	TotalAttendance       int      `json:"total_attendance"`
	TotalFeedback         int      `json:"total_feedback"`
	AttendancePercentage  float64  `json:"attendance_percentage"`
	AverageFeedbackRating *float64 `json:"average_feedback_rating"`
}

type AttendanceSummary struct {
	TotalEvents                 int      `json:"total_events"`
	TotalRegistrations          int      `json:"total_registrations"`
	TotalAttendance             int      `json:"total_attendance"`
	UniqueRegistrants           int      `json:"unique_registrants"`
	UniqueAttendees             int      `json:"unique_attendees"`
	OverallAttendancePercentage float64  `json:"overall_attendance_percentage"`
	TotalFeedback               int      `json:"total_feedback"`
	AverageFeedbackRating       *float64 `json:"average_feedback_rating"`
}

type FeedbackSummary struct {
	EventsWithFeedback int      `json:"events_with_feedback"`
	TotalFeedback      int      `json:"total_feedback"`
	AverageRating      *float64 `json:"average_rating"`
	stats.StarCounts
	RatingDistribution stats.Distribution `json:"rating_distribution"`
}

// FlexSort is an allowlisted sort column for the flexible report.
type FlexSort string

const (
	FlexRegistrationCount FlexSort = "registration_count"
	FlexAttendanceCount   FlexSort = "attendance_count"
	FlexAverageRating     FlexSort = "average_rating"
	FlexEventDate         FlexSort = "event_date"
)

func ParseFlexSort(value string) FlexSort {
	switch FlexSort(strings.TrimSpace(value)) {
	case FlexAttendanceCount:
		return FlexAttendanceCount
	case FlexAverageRating:
		return FlexAverageRating
	case FlexEventDate:
		return FlexEventDate
	default:
		return FlexRegistrationCount
	}
}

type FlexibleFilters struct {
	EventType        string               `json:"eventType,omitempty"`
	StartDate        string               `json:"startDate,omitempty"`
	EndDate          string               `json:"endDate,omitempty"`
	MinRegistrations int                  `json:"minRegistrations"`
	MinAttendance    int                  `json:"minAttendance"`
	MinRating        *float64             `json:"minRating,omitempty"`
	SortBy           FlexSort             `json:"sortBy"`
	SortOrder        pagination.SortOrder `json:"sortOrder"`
}

type Category struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
	EventCount  int     `json:"event_count"`
}

type Repository interface {
	EventPopularity(ctx context.Context, collegeID int64, filters PopularityFilters, page pagination.Params) ([]EventPopularity, int, error)
	StudentParticipation(ctx context.Context, collegeID int64, minEvents int, order pagination.SortOrder, page pagination.Params) ([]StudentParticipation, int, error)
	TopStudents(ctx context.Context, collegeID int64, limit int) ([]StudentParticipation, error)
	AttendanceSummary(ctx context.Context, collegeID int64, filters Filters) (AttendanceSummary, error)
	FeedbackSummary(ctx context.Context, collegeID int64, filters Filters) (FeedbackSummary, error)
	Flexible(ctx context.Context, collegeID int64, filters FlexibleFilters) ([]EventPopularity, error)
	Categories(ctx context.Context, collegeID int64) ([]Category, error)
}
