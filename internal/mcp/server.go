package mcp

import (
	"github.com/campusevents/server/internal/mcp/prompts"
	"github.com/campusevents/server/internal/mcp/resources"
	"github.com/campusevents/server/internal/mcp/tools"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Config describes the MCP server. CollegeID scopes every report when the
// caller is not an authenticated admin, which is always the case on stdio.
type Config struct {
	Name      string
	Version   string
	CollegeID int64
}

// Server wraps the MCP server with the report tools of one college.
type Server struct {
	mcp *mcpserver.MCPServer
}

// NewServer registers the read-only report tools, the category resource and
// the report prompts.
func NewServer(cfg Config, reports tools.ReportService) *Server {
	mcpServer := mcpserver.NewMCPServer(
		cfg.Name,
		cfg.Version,
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithResourceCapabilities(false, false),
		mcpserver.WithPromptCapabilities(false),
		mcpserver.WithRecovery(),
		mcpserver.WithInstructions("Read-only campus event reports: popularity, participation, attendance and feedback for one college."),
	)

	reportTools := tools.NewReportTools(reports, cfg.CollegeID)
	mcpServer.AddTool(reportTools.EventPopularityTool(), reportTools.EventPopularityHandler)
	mcpServer.AddTool(reportTools.StudentParticipationTool(), reportTools.StudentParticipationHandler)
	mcpServer.AddTool(reportTools.TopStudentsTool(), reportTools.TopStudentsHandler)
	mcpServer.AddTool(reportTools.AttendanceSummaryTool(), reportTools.AttendanceSummaryHandler)
	mcpServer.AddTool(reportTools.FeedbackSummaryTool(), reportTools.FeedbackSummaryHandler)
	mcpServer.AddTool(reportTools.FlexibleTool(), reportTools.FlexibleHandler)
	mcpServer.AddTool(reportTools.CategoriesTool(), reportTools.CategoriesHandler)
	mcpServer.AddTool(reportTools.OverviewTool(), reportTools.OverviewHandler)

	categories := resources.NewCategoryResources(reports, cfg.CollegeID)
	mcpServer.AddResource(categories.Resource(), categories.ReadHandler)

	templates := prompts.NewPromptTemplates()
	mcpServer.AddPrompt(templates.TermReviewPrompt(), templates.TermReviewHandler)
	mcpServer.AddPrompt(templates.EventDebriefPrompt(), templates.EventDebriefHandler)
	mcpServer.AddPrompt(templates.EngagementPlanPrompt(), templates.EngagementPlanHandler)

	return &Server{mcp: mcpServer}
}

// MCPServer returns the underlying server for the transports.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}
