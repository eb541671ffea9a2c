package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/campusevents/server/internal/api/pagination"
	"github.com/campusevents/server/internal/domain/reports"
)

type ReportService interface {
	EventPopularity(ctx context.Context, collegeID int64, filters reports.PopularityFilters, page pagination.Params) (reports.PopularityPage, error)
	StudentParticipation(ctx context.Context, collegeID int64, minEvents int, order pagination.SortOrder, page pagination.Params) (reports.ParticipationPage, error)
	TopStudents(ctx context.Context, collegeID int64, limit int) ([]reports.StudentParticipation, error)
	AttendanceSummary(ctx context.Context, collegeID int64, filters reports.Filters) (reports.AttendanceSummary, error)
	FeedbackSummary(ctx context.Context, collegeID int64, filters reports.Filters) (reports.FeedbackSummary, error)
	Flexible(ctx context.Context, collegeID int64, filters reports.FlexibleFilters) (reports.FlexibleFilters, []reports.EventPopularity, error)
	Categories(ctx context.Context, collegeID int64) ([]reports.Category, error)
	Overview(ctx context.Context, collegeID int64, filters reports.Filters) (reports.Overview, error)
}

const reportsPageSize = 20

// ReportsHandler serves /api/reports. Every route is admin-only; RequireRole
// runs before any of these.
type ReportsHandler struct {
	Service ReportService
	Env     string
}

func NewReportsHandler(svc ReportService, env string) *ReportsHandler {
	return &ReportsHandler{Service: svc, Env: env}
}

func reportFilters(r *http.Request) reports.Filters {
	q := r.URL.Query()
	return reports.Filters{
		CategoryID: queryInt64(r, "categoryId"),
		StartDate:  strings.TrimSpace(q.Get("startDate")),
		EndDate:    strings.TrimSpace(q.Get("endDate")),
	}
}

func (h *ReportsHandler) EventPopularity(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	q := r.URL.Query()
	filters := reports.PopularityFilters{
		Filters:   reportFilters(r),
		SortOrder: pagination.ParseSortOrder(q.Get("sortOrder"), pagination.Desc),
	}
	page := pagination.Parse(q, reportsPageSize)

	result, err := h.Service.EventPopularity(r.Context(), user.CollegeID, filters, page)
	if err != nil {
		fail(w, r, err, h.Env, "Failed to generate event popularity report")
		return
	}
	body := paged("events", result.Events, page, result.Total)
	body["report"] = "Event Popularity Report"
	writeJSON(w, http.StatusOK, body)
}

func (h *ReportsHandler) StudentParticipation(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	q := r.URL.Query()
	minEvents := queryInt(r, "minEvents", 0)
	order := pagination.ParseSortOrder(q.Get("sortOrder"), pagination.Desc)
	page := pagination.Parse(q, reportsPageSize)

	result, err := h.Service.StudentParticipation(r.Context(), user.CollegeID, minEvents, order, page)
	if err != nil {
		fail(w, r, err, h.Env, "Failed to generate student participation report")
		return
	}
	body := paged("students", result.Students, page, result.Total)
	body["report"] = "Student Participation Report"
	writeJSON(w, http.StatusOK, body)
}

func (h *ReportsHandler) TopStudents(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", reports.DefaultTopStudents)
	if limit <= 0 {
		limit = reports.DefaultTopStudents
	}
	limit = min(limit, pagination.MaxLimit)

	students, err := h.Service.TopStudents(r.Context(), user.CollegeID, limit)
	if err != nil {
		fail(w, r, err, h.Env, "Failed to generate top students report")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"report":   "Top Active Students",
		"students": students,
		"limit":    limit,
	})
}

func (h *ReportsHandler) AttendanceSummary(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	summary, err := h.Service.AttendanceSummary(r.Context(), user.CollegeID, reportFilters(r))
	if err != nil {
		fail(w, r, err, h.Env, "Failed to generate attendance summary report")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"report":  "Attendance Summary Report",
		"summary": summary,
	})
}

func (h *ReportsHandler) FeedbackSummary(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	summary, err := h.Service.FeedbackSummary(r.Context(), user.CollegeID, reportFilters(r))
	if err != nil {
		fail(w, r, err, h.Env, "Failed to generate feedback summary report")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"report":  "Feedback Summary Report",
		"summary": summary,
	})
}

func (h *ReportsHandler) Flexible(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	q := r.URL.Query()
	filters := reports.FlexibleFilters{
		EventType:        q.Get("eventType"),
		StartDate:        strings.TrimSpace(q.Get("startDate")),
		EndDate:          strings.TrimSpace(q.Get("endDate")),
		MinRegistrations: queryInt(r, "minRegistrations", 0),
		MinAttendance:    queryInt(r, "minAttendance", 0),
		MinRating:        queryFloat(r, "minRating"),
		SortBy:           reports.ParseFlexSort(q.Get("sortBy")),
		SortOrder:        pagination.ParseSortOrder(q.Get("sortOrder"), pagination.Desc),
	}

	applied, rows, err := h.Service.Flexible(r.Context(), user.CollegeID, filters)
	if err != nil {
		fail(w, r, err, h.Env, "Failed to generate flexible report")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"report":  "Flexible Event Report",
		"filters": applied,
		"events":  rows,
		"total":   len(rows),
	})
}

func (h *ReportsHandler) Categories(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	categories, err := h.Service.Categories(r.Context(), user.CollegeID)
	if err != nil {
		fail(w, r, err, h.Env, "Failed to fetch categories")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (h *ReportsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r, h.Env)
	if !ok {
		return
	}
	overview, err := h.Service.Overview(r.Context(), user.CollegeID, reportFilters(r))
	if err != nil {
		fail(w, r, err, h.Env, "Failed to generate overview report")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"report":   "Overview Report",
		"overview": overview,
	})
}

// queryFloat returns nil for a missing or unparsable value.
func queryFloat(r *http.Request, key string) *float64 {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil
	}
	return &v
}
