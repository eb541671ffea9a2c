package tools

import (
	"context"
	"strings"

	"github.com/campusevents/server/internal/api/middleware"
	"github.com/campusevents/server/internal/api/pagination"
	"github.com/campusevents/server/internal/domain/reports"
	"github.com/mark3labs/mcp-go/mcp"
)

// ReportService is the read side of reports.Service.
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

const defaultPageSize = 20

// ReportTools exposes the admin reports as MCP tools. Calls run against
// CollegeID unless the request carries an authenticated admin, whose college
// wins.
type ReportTools struct {
	service   ReportService
	collegeID int64
}

func NewReportTools(service ReportService, collegeID int64) *ReportTools {
	return &ReportTools{service: service, collegeID: collegeID}
}

func (t *ReportTools) college(ctx context.Context) int64 {
	if user := middleware.UserFromContext(ctx); user != nil {
		return user.CollegeID
	}
	return t.collegeID
}

func dateRangeOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("start_date", mcp.Description("Only events on or after this date (YYYY-MM-DD)")),
		mcp.WithString("end_date", mcp.Description("Only events on or before this date (YYYY-MM-DD)")),
		mcp.WithNumber("category_id", mcp.Description("Only events in this category")),
	}
}

func pageOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithNumber("page", mcp.Description("Page number, starting at 1"), mcp.DefaultNumber(1)),
		mcp.WithNumber("limit", mcp.Description("Rows per page (max 100)"), mcp.DefaultNumber(defaultPageSize)),
	}
}

func newReportTool(name, description string, opts ...[]mcp.ToolOption) mcp.Tool {
	all := []mcp.ToolOption{
		mcp.WithDescription(description),
		mcp.WithReadOnlyHintAnnotation(true),
	}
	for _, o := range opts {
		all = append(all, o...)
	}
	return mcp.NewTool(name, all...)
}

func filtersFrom(req mcp.CallToolRequest) reports.Filters {
	return reports.Filters{
		CategoryID: int64(req.GetInt("category_id", 0)),
		StartDate:  strings.TrimSpace(req.GetString("start_date", "")),
		EndDate:    strings.TrimSpace(req.GetString("end_date", "")),
	}
}

func pageFrom(req mcp.CallToolRequest) pagination.Params {
	p := pagination.Params{Page: req.GetInt("page", 1), Limit: req.GetInt("limit", defaultPageSize)}
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultPageSize
	}
	if p.Limit > pagination.MaxLimit {
		p.Limit = pagination.MaxLimit
	}
	return p
}

func sortOrderFrom(req mcp.CallToolRequest, fallback pagination.SortOrder) pagination.SortOrder {
	return pagination.ParseSortOrder(req.GetString("sort_order", ""), fallback)
}

var sortOrderOption = mcp.WithString("sort_order", mcp.Description("asc or desc"), mcp.Enum("asc", "desc"))

func (t *ReportTools) EventPopularityTool() mcp.Tool {
	return newReportTool("event_popularity",
		"Events ranked by registration count, with attendance percentage and average rating.",
		dateRangeOptions(), pageOptions(), []mcp.ToolOption{sortOrderOption})
}

func (t *ReportTools) EventPopularityHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page := pageFrom(req)
	result, err := t.service.EventPopularity(ctx, t.college(ctx), reports.PopularityFilters{
		Filters:   filtersFrom(req),
		SortOrder: sortOrderFrom(req, pagination.Desc),
	}, page)
	if err != nil {
		return toolError(err, "failed to generate event popularity report")
	}
	return toolResultJSON(map[string]any{
		"events":     result.Events,
		"pagination": page.MetaFor(result.Total),
	})
}

func (t *ReportTools) StudentParticipationTool() mcp.Tool {
	return newReportTool("student_participation",
		"Students with their registration, attendance and feedback totals.",
		pageOptions(), []mcp.ToolOption{
			mcp.WithNumber("min_events", mcp.Description("Minimum attended events"), mcp.DefaultNumber(0)),
			sortOrderOption,
		})
}

func (t *ReportTools) StudentParticipationHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	page := pageFrom(req)
	result, err := t.service.StudentParticipation(ctx, t.college(ctx), req.GetInt("min_events", 0), sortOrderFrom(req, pagination.Desc), page)
	if err != nil {
		return toolError(err, "failed to generate student participation report")
	}
	return toolResultJSON(map[string]any{
		"students":   result.Students,
		"pagination": page.MetaFor(result.Total),
	})
}

func (t *ReportTools) TopStudentsTool() mcp.Tool {
	return newReportTool("top_active_students",
		"The most active students by attended events.",
		[]mcp.ToolOption{mcp.WithNumber("limit", mcp.Description("How many students (max 100)"), mcp.DefaultNumber(reports.DefaultTopStudents))})
}

func (t *ReportTools) TopStudentsHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", reports.DefaultTopStudents)
	if limit > pagination.MaxLimit {
		limit = pagination.MaxLimit
	}
	students, err := t.service.TopStudents(ctx, t.college(ctx), limit)
	if err != nil {
		return toolError(err, "failed to fetch top students")
	}
	return toolResultJSON(map[string]any{"students": students, "limit": limit})
}

func (t *ReportTools) AttendanceSummaryTool() mcp.Tool {
	return newReportTool("attendance_summary",
		"College-wide registration and attendance totals.", dateRangeOptions())
}

func (t *ReportTools) AttendanceSummaryHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := t.service.AttendanceSummary(ctx, t.college(ctx), filtersFrom(req))
	if err != nil {
		return toolError(err, "failed to generate attendance summary")
	}
	return toolResultJSON(map[string]any{"summary": summary})
}

func (t *ReportTools) FeedbackSummaryTool() mcp.Tool {
	return newReportTool("feedback_summary",
		"Feedback volume, average rating and star distribution.", dateRangeOptions())
}

func (t *ReportTools) FeedbackSummaryHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	summary, err := t.service.FeedbackSummary(ctx, t.college(ctx), filtersFrom(req))
	if err != nil {
		return toolError(err, "failed to generate feedback summary")
	}
	return toolResultJSON(map[string]any{"summary": summary})
}

func (t *ReportTools) FlexibleTool() mcp.Tool {
	return newReportTool("flexible_event_report",
		"Events filtered by category name, dates and minimum counts or rating.",
		[]mcp.ToolOption{
			mcp.WithString("event_type", mcp.Description("Category name")),
			mcp.WithString("start_date", mcp.Description("Only events on or after this date (YYYY-MM-DD)")),
			mcp.WithString("end_date", mcp.Description("Only events on or before this date (YYYY-MM-DD)")),
			mcp.WithNumber("min_registrations", mcp.Description("Minimum active registrations")),
			mcp.WithNumber("min_attendance", mcp.Description("Minimum attendance")),
			mcp.WithNumber("min_rating", mcp.Description("Minimum average rating, 1 to 5")),
			mcp.WithString("sort_by", mcp.Description("Sort column"), mcp.Enum(
				string(reports.FlexRegistrationCount), string(reports.FlexAttendanceCount),
				string(reports.FlexAverageRating), string(reports.FlexEventDate))),
			sortOrderOption,
		})
}

func (t *ReportTools) FlexibleHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filters := reports.FlexibleFilters{
		EventType:        strings.TrimSpace(req.GetString("event_type", "")),
		StartDate:        strings.TrimSpace(req.GetString("start_date", "")),
		EndDate:          strings.TrimSpace(req.GetString("end_date", "")),
		MinRegistrations: req.GetInt("min_registrations", 0),
		MinAttendance:    req.GetInt("min_attendance", 0),
		SortBy:           reports.ParseFlexSort(req.GetString("sort_by", "")),
		SortOrder:        sortOrderFrom(req, pagination.Desc),
	}
	if _, ok := req.GetArguments()["min_rating"]; ok {
		rating := req.GetFloat("min_rating", 0)
		filters.MinRating = &rating
	}

	applied, rows, err := t.service.Flexible(ctx, t.college(ctx), filters)
	if err != nil {
		return toolError(err, "failed to generate flexible report")
	}
	return toolResultJSON(map[string]any{"filters": applied, "events": rows, "total": len(rows)})
}

func (t *ReportTools) CategoriesTool() mcp.Tool {
	return newReportTool("event_categories", "Event categories with the number of events in each.")
}

func (t *ReportTools) CategoriesHandler(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	categories, err := t.service.Categories(ctx, t.college(ctx))
	if err != nil {
		return toolError(err, "failed to fetch categories")
	}
	return toolResultJSON(map[string]any{"categories": categories})
}

func (t *ReportTools) OverviewTool() mcp.Tool {
	return newReportTool("overview",
		"Attendance summary, feedback summary and top students in one call.", dateRangeOptions())
}

func (t *ReportTools) OverviewHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	overview, err := t.service.Overview(ctx, t.college(ctx), filtersFrom(req))
	if err != nil {
		return toolError(err, "failed to generate overview")
	}
	return toolResultJSON(map[string]any{"overview": overview})
}
