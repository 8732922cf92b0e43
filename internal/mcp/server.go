// Package mcp exposes the bug tracker as MCP tools so local agents can
// report, inspect, and move bugs through the same lifecycle and
// notification paths the API uses.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/bugtrackhq/bugtrack/internal/lifecycle"
	"github.com/bugtrackhq/bugtrack/internal/models"
	"github.com/bugtrackhq/bugtrack/internal/overdue"
	"github.com/bugtrackhq/bugtrack/internal/store"
)

// Server wraps the bugtrack data layer and exposes it as MCP tools.
type Server struct {
	store     store.Store
	lifecycle *lifecycle.Service
	scanner   *overdue.Scanner
}

// NewServer creates the MCP server wrapper with all required dependencies.
func NewServer(s store.Store, lc *lifecycle.Service, sc *overdue.Scanner) *Server {
	return &Server{store: s, lifecycle: lc, scanner: sc}
}

// MCPServer returns a configured mcp-go server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer("bugtrack", "1.0.0", server.WithToolCapabilities(true))

	srv.AddTool(s.listBugsTool())
	srv.AddTool(s.reportBugTool())
	srv.AddTool(s.moveBugTool())
	srv.AddTool(s.overdueSweepTool())

	return srv
}

// ServeStdio starts the stdio transport, blocking until ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	srv := s.MCPServer()
	stdioServer := server.NewStdioServer(srv)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

// actor resolves the acting user from the tool's actor_email argument.
func (s *Server) actor(ctx context.Context, request mcp.CallToolRequest) (*models.User, error) {
	email := request.GetString("actor_email", "")
	if email == "" {
		return nil, fmt.Errorf("actor_email is required")
	}
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("unknown actor %s: %w", email, err)
	}
	return u, nil
}

// ---------------------------------------------------------------------------
// Tool definitions and handlers
// ---------------------------------------------------------------------------

// bugtrack_list_bugs
func (s *Server) listBugsTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("bugtrack_list_bugs",
		mcp.WithDescription("List tracked bugs. Returns a JSON array with id, ticket, title, status, priority, assignee, and deadline."),
		mcp.WithString("project_id", mcp.Description("Filter by project id")),
		mcp.WithString("status", mcp.Description("Filter by status: open, in_progress, resolved, closed")),
		mcp.WithString("priority", mcp.Description("Filter by priority: low, medium, high, critical")),
	)
	return tool, s.handleListBugs
}

func (s *Server) handleListBugs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	filter := store.BugListFilter{
		ProjectID: request.GetString("project_id", ""),
		Status:    models.BugStatus(request.GetString("status", "")),
		Priority:  models.BugPriority(request.GetString("priority", "")),
	}
	bugs, err := s.store.ListBugs(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list bugs: %v", err)), nil
	}

	type bugOut struct {
		ID       string `json:"id"`
		Ticket   string `json:"ticket"`
		Title    string `json:"title"`
		Status   string `json:"status"`
		Priority string `json:"priority"`
		Assignee string `json:"assignee,omitempty"`
		DueAt    string `json:"due_at,omitempty"`
	}

	out := make([]bugOut, len(bugs))
	for i, b := range bugs {
		o := bugOut{
			ID:       b.ID,
			Ticket:   b.TicketNumber,
			Title:    b.Title,
			Status:   string(b.Status),
			Priority: string(b.Priority),
			Assignee: b.AssignedTo,
		}
		if b.DueAt != nil {
			o.DueAt = b.DueAt.Format(time.RFC3339)
		}
		out[i] = o
	}

	data, err := json.Marshal(out)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal bugs: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// bugtrack_report_bug
func (s *Server) reportBugTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("bugtrack_report_bug",
		mcp.WithDescription("Report a new bug. Fires the same notifications as the web app (assignee, reporter, admin fan-out for client reports)."),
		mcp.WithString("actor_email", mcp.Required(), mcp.Description("Email of the reporting user")),
		mcp.WithString("project", mcp.Required(), mcp.Description("Project name")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Bug title")),
		mcp.WithString("description", mcp.Description("Bug description")),
		mcp.WithString("priority", mcp.Description("Priority (admins only): low, medium, high, critical")),
		mcp.WithString("type", mcp.Description("Type (admins only): ui, performance, feature, security, error, other")),
		mcp.WithString("due_at", mcp.Description("Deadline, RFC 3339")),
	)
	return tool, s.handleReportBug
}

func (s *Server) handleReportBug(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	actor, err := s.actor(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	project, err := s.store.GetProjectByName(ctx, request.GetString("project", ""))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("project not found: %v", err)), nil
	}

	params := lifecycle.ReportParams{
		ProjectID:   project.ID,
		Title:       request.GetString("title", ""),
		Description: request.GetString("description", ""),
		Priority:    models.BugPriority(request.GetString("priority", "")),
		Type:        models.BugType(request.GetString("type", "")),
	}
	if dueStr := request.GetString("due_at", ""); dueStr != "" {
		due, err := time.Parse(time.RFC3339, dueStr)
		if err != nil {
			return mcp.NewToolResultError("due_at must be RFC 3339"), nil
		}
		params.DueAt = &due
	}

	b, err := s.lifecycle.Report(ctx, params, actor)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to report bug: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(`{"id":%q,"ticket":%q}`, b.ID, b.TicketNumber)), nil
}

// bugtrack_move_bug
func (s *Server) moveBugTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("bugtrack_move_bug",
		mcp.WithDescription("Move a bug to a new lifecycle status. Subject to the same authorization rules as the web app."),
		mcp.WithString("actor_email", mcp.Required(), mcp.Description("Email of the acting user (assignee or admin)")),
		mcp.WithString("bug_id", mcp.Required(), mcp.Description("Bug id or ticket number")),
		mcp.WithString("status", mcp.Required(), mcp.Description("Target status: open, in_progress, resolved, closed")),
	)
	return tool, s.handleMoveBug
}

func (s *Server) handleMoveBug(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	actor, err := s.actor(ctx, request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ref := request.GetString("bug_id", "")
	b, err := s.store.GetBug(ctx, ref)
	if err != nil {
		if b, err = s.store.GetBugByTicket(ctx, ref); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("bug not found: %s", ref)), nil
		}
	}

	moved, err := s.lifecycle.Transition(ctx, b.ID, models.BugStatus(request.GetString("status", "")), actor)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to move bug: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf(`{"id":%q,"ticket":%q,"status":%q}`, moved.ID, moved.TicketNumber, moved.Status)), nil
}

// bugtrack_overdue_sweep
func (s *Server) overdueSweepTool() (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("bugtrack_overdue_sweep",
		mcp.WithDescription("Run the overdue sweep once: notify assignees and reporters of bugs past deadline, honoring the 24h cooldown."),
	)
	return tool, s.handleOverdueSweep
}

func (s *Server) handleOverdueSweep(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	report, err := s.scanner.Run(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("sweep failed: %v", err)), nil
	}
	data, err := json.Marshal(report)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal report: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
