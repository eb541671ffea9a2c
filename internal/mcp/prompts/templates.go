// Package prompts holds MCP prompt templates that steer a client toward the
// report tools.
package prompts

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	termReviewPrompt     = "term_review"
	eventDebriefPrompt   = "event_debrief"
	engagementPlanPrompt = "engagement_plan"
)

type PromptTemplates struct{}

func NewPromptTemplates() *PromptTemplates {
	return &PromptTemplates{}
}

func (p *PromptTemplates) TermReviewPrompt() mcp.Prompt {
	return mcp.NewPrompt(
		termReviewPrompt,
		mcp.WithPromptDescription("Summarize event turnout and feedback for a date range"),
		mcp.WithArgument("start_date", mcp.ArgumentDescription("First day of the term (YYYY-MM-DD)")),
		mcp.WithArgument("end_date", mcp.ArgumentDescription("Last day of the term (YYYY-MM-DD)")),
	)
}

func (p *PromptTemplates) EventDebriefPrompt() mcp.Prompt {
	return mcp.NewPrompt(
		eventDebriefPrompt,
		mcp.WithPromptDescription("Compare one category of events against the college average"),
		mcp.WithArgument("event_type", mcp.ArgumentDescription("Category name, for example Workshop"), mcp.RequiredArgument()),
	)
}

func (p *PromptTemplates) EngagementPlanPrompt() mcp.Prompt {
	return mcp.NewPrompt(
		engagementPlanPrompt,
		mcp.WithPromptDescription("Find under-engaged students and suggest events for them"),
		mcp.WithArgument("min_events", mcp.ArgumentDescription("Attendance below this count counts as under-engaged")),
	)
}

func (p *PromptTemplates) TermReviewHandler(_ context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	args := request.Params.Arguments
	period := "all recorded events"
	start, end := getArgString(args, "start_date"), getArgString(args, "end_date")
	if start != "" || end != "" {
		period = fmt.Sprintf("events from %s to %s", orOpen(start), orOpen(end))
	}

	text := fmt.Sprintf("Review %s. Call attendance_summary and feedback_summary with the same dates, "+
		"then event_popularity sorted desc. Report overall attendance percentage, the three most and "+
		"least attended events, and any event with an average rating below 3.", period)
	return userPrompt("Term review of turnout and feedback", text), nil
}

func (p *PromptTemplates) EventDebriefHandler(_ context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	eventType := getArgString(request.Params.Arguments, "event_type")
	if eventType == "" {
		return nil, fmt.Errorf("event_type is required")
	}

	text := fmt.Sprintf("Call flexible_event_report with event_type %q and sort_by attendance_count, "+
		"then attendance_summary without filters. Compare the category's attendance and rating "+
		"with the college-wide figures and list what the best %s events have in common.", eventType, eventType)
	return userPrompt("Debrief for "+eventType+" events", text), nil
}

func (p *PromptTemplates) EngagementPlanHandler(_ context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	minEvents := getArgString(request.Params.Arguments, "min_events")
	if minEvents == "" {
		minEvents = "2"
	}

	text := fmt.Sprintf("Call student_participation sorted asc and collect students who attended fewer "+
		"than %s events. Then call event_categories and event_popularity. Suggest which categories "+
		"to promote to those students, citing attendance percentages.", minEvents)
	return userPrompt("Engagement plan for quiet students", text), nil
}

func userPrompt(description, text string) *mcp.GetPromptResult {
	return &mcp.GetPromptResult{
		Description: description,
		Messages: []mcp.PromptMessage{
			{
				Role:    mcp.RoleUser,
				Content: mcp.NewTextContent(text),
			},
		},
	}
}

func orOpen(date string) string {
	if date == "" {
		return "open"
	}
	return date
}

func getArgString(args map[string]string, key string) string {
	if args == nil {
		return ""
	}
	return strings.TrimSpace(args[key])
}
