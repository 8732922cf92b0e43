package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/bugtrackhq/bugtrack/internal/lifecycle"
	"github.com/bugtrackhq/bugtrack/internal/models"
	"github.com/bugtrackhq/bugtrack/internal/output"
	"github.com/bugtrackhq/bugtrack/internal/store"
)

var (
	bugTitle    string
	bugDesc     string
	bugPriority string
	bugType     string
	bugStatus   string
	bugProject  string
	bugAssignee string
	bugDueAt    string
)

var bugCmd = &cobra.Command{
	Use:   "bug",
	Short: "Manage bug reports",
	Long:  "Report, list, and move bugs through their lifecycle.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugListRun(cmd)
	},
}

var bugReportCmd = &cobra.Command{
	Use:   "report <project>",
	Short: "Report a new bug",
	Long: `Report a new bug against a project. Priority and type are honored
only for admin actors; other roles get the server defaults (low/other).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugReportRun(cmd, args[0])
	},
}

var bugListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List bugs",
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugListRun(cmd)
	},
}

var bugShowCmd = &cobra.Command{
	Use:   "show <bug-id|ticket>",
	Short: "Show bug details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugShowRun(cmd, args[0])
	},
}

var bugMoveCmd = &cobra.Command{
	Use:   "move <bug-id|ticket>",
	Short: "Move a bug to a new status",
	Long: `Move a bug to a new lifecycle status. The acting user (--as) must be
the bug's assignee or an admin. Moving an unassigned bug as a developer
assigns it to you.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugMoveRun(cmd, args[0])
	},
}

var bugAssignCmd = &cobra.Command{
	Use:   "assign <bug-id|ticket>",
	Short: "Assign a bug to a developer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return bugAssignRun(cmd, args[0])
	},
}

func init() {
	bugCmd.PersistentFlags().StringVar(&asEmail, "as", "", "Email of the acting user")

	bugReportCmd.Flags().StringVar(&bugTitle, "title", "", "Bug title (required)")
	bugReportCmd.Flags().StringVar(&bugDesc, "desc", "", "Bug description")
	bugReportCmd.Flags().StringVar(&bugPriority, "priority", "", "Priority (admins only): low, medium, high, critical")
	bugReportCmd.Flags().StringVar(&bugType, "type", "", "Type (admins only): ui, performance, feature, security, error, other")
	bugReportCmd.Flags().StringVar(&bugAssignee, "assign", "", "Assignee email")
	bugReportCmd.Flags().StringVar(&bugDueAt, "due", "", "Deadline (RFC 3339, e.g. 2026-09-30T17:00:00Z)")
	_ = bugReportCmd.MarkFlagRequired("title")

	bugListCmd.Flags().StringVar(&bugStatus, "status", "", "Filter by status")
	bugListCmd.Flags().StringVar(&bugPriority, "priority", "", "Filter by priority")
	bugListCmd.Flags().StringVar(&bugProject, "project", "", "Filter by project name")

	bugMoveCmd.Flags().StringVar(&bugStatus, "status", "", "Target status (required)")
	_ = bugMoveCmd.MarkFlagRequired("status")

	bugAssignCmd.Flags().StringVar(&bugAssignee, "to", "", "Assignee email (required)")
	_ = bugAssignCmd.MarkFlagRequired("to")

	bugCmd.AddCommand(bugReportCmd)
	bugCmd.AddCommand(bugListCmd)
	bugCmd.AddCommand(bugShowCmd)
	bugCmd.AddCommand(bugMoveCmd)
	bugCmd.AddCommand(bugAssignCmd)
	rootCmd.AddCommand(bugCmd)
}

func bugReportRun(cmd *cobra.Command, projectName string) error {
	ctx := cmd.Context()
	s, err := getStore()
	if err != nil {
		return err
	}
	actor, err := resolveActor(ctx)
	if err != nil {
		return err
	}
	project, err := s.GetProjectByName(ctx, projectName)
	if err != nil {
		return err
	}

	params := lifecycle.ReportParams{
		ProjectID:   project.ID,
		Title:       bugTitle,
		Description: bugDesc,
		Priority:    models.BugPriority(bugPriority),
		Type:        models.BugType(bugType),
	}
	if bugAssignee != "" {
		assignee, err := s.GetUserByEmail(ctx, bugAssignee)
		if err != nil {
			return fmt.Errorf("assignee %s: %w", bugAssignee, err)
		}
		params.AssignedTo = assignee.ID
	}
	if bugDueAt != "" {
		due, err := time.Parse(time.RFC3339, bugDueAt)
		if err != nil {
			return fmt.Errorf("--due must be RFC 3339: %w", err)
		}
		params.DueAt = &due
	}

	if dryRun {
		ui.DryRunMsg("Would report bug %q to project %s", bugTitle, project.Name)
		return nil
	}

	lc, err := getLifecycle()
	if err != nil {
		return err
	}
	b, err := lc.Report(ctx, params, actor)
	if err != nil {
		return err
	}

	ui.Success("Reported %s: %s", output.Cyan(b.TicketNumber), b.Title)
	return nil
}

func bugListRun(cmd *cobra.Command) error {
	ctx := cmd.Context()
	s, err := getStore()
	if err != nil {
		return err
	}

	filter := store.BugListFilter{
		Status:   models.BugStatus(bugStatus),
		Priority: models.BugPriority(bugPriority),
	}
	if bugProject != "" {
		project, err := s.GetProjectByName(ctx, bugProject)
		if err != nil {
			return err
		}
		filter.ProjectID = project.ID
	}

	bugs, err := s.ListBugs(ctx, filter)
	if err != nil {
		return err
	}
	if len(bugs) == 0 {
		ui.Info("No bugs found")
		return nil
	}

	table := ui.Table([]string{"TICKET", "TITLE", "STATUS", "PRIORITY", "DUE"})
	for _, b := range bugs {
		_ = table.Append([]string{
			b.TicketNumber,
			b.Title,
			output.StatusColor(string(b.Status)),
			output.PriorityColor(string(b.Priority)),
			fmtTime(b.DueAt),
		})
	}
	return table.Render()
}

func bugShowRun(cmd *cobra.Command, ref string) error {
	ctx := cmd.Context()
	b, err := resolveBug(ctx, ref)
	if err != nil {
		return err
	}
	s, err := getStore()
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(b.TicketNumber), b.Title)
	fmt.Fprintf(ui.Out, "  Status:    %s\n", output.StatusColor(string(b.Status)))
	fmt.Fprintf(ui.Out, "  Priority:  %s\n", output.PriorityColor(string(b.Priority)))
	fmt.Fprintf(ui.Out, "  Type:      %s\n", b.Type)
	fmt.Fprintf(ui.Out, "  Created:   %s\n", b.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(ui.Out, "  Started:   %s\n", fmtTime(b.ScheduleStartAt))
	fmt.Fprintf(ui.Out, "  Due:       %s\n", fmtTime(b.DueAt))
	fmt.Fprintf(ui.Out, "  Resolved:  %s\n", fmtTime(b.ResolvedAt))
	if b.Description != "" {
		fmt.Fprintf(ui.Out, "\n%s\n", b.Description)
	}

	attachments, err := s.ListAttachments(ctx, b.ID)
	if err != nil {
		return err
	}
	if len(attachments) > 0 {
		fmt.Fprintln(ui.Out)
		for _, a := range attachments {
			fmt.Fprintf(ui.Out, "  📎 %s (%d bytes)\n", a.FileName, a.Size)
		}
	}
	return nil
}

func bugMoveRun(cmd *cobra.Command, ref string) error {
	ctx := cmd.Context()
	actor, err := resolveActor(ctx)
	if err != nil {
		return err
	}
	b, err := resolveBug(ctx, ref)
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would move %s from %s to %s", b.TicketNumber, b.Status, bugStatus)
		return nil
	}

	lc, err := getLifecycle()
	if err != nil {
		return err
	}
	moved, err := lc.Transition(ctx, b.ID, models.BugStatus(bugStatus), actor)
	if err != nil {
		return err
	}

	ui.Success("%s is now %s", moved.TicketNumber, output.StatusColor(string(moved.Status)))
	return nil
}

func bugAssignRun(cmd *cobra.Command, ref string) error {
	ctx := cmd.Context()
	s, err := getStore()
	if err != nil {
		return err
	}
	actor, err := resolveActor(ctx)
	if err != nil {
		return err
	}
	if actor.Role != models.RoleAdmin {
		return fmt.Errorf("only admins can assign bugs")
	}

	b, err := resolveBug(ctx, ref)
	if err != nil {
		return err
	}
	assignee, err := s.GetUserByEmail(ctx, bugAssignee)
	if err != nil {
		return fmt.Errorf("assignee %s: %w", bugAssignee, err)
	}
	if assignee.Role == models.RoleClient {
		return fmt.Errorf("cannot assign a bug to a client")
	}

	if dryRun {
		ui.DryRunMsg("Would assign %s to %s", b.TicketNumber, assignee.Name)
		return nil
	}

	b.AssignedTo = assignee.ID
	if err := s.UpdateBug(ctx, b); err != nil {
		return err
	}

	d, err := getDispatcher()
	if err != nil {
		return err
	}
	if err := d.Notify(ctx, assignee, "Penugasan Baru",
		fmt.Sprintf("Anda ditugaskan menangani laporan %s: %s", b.TicketNumber, b.Title)); err != nil {
		ui.Warning("assignment saved but notification failed: %v", err)
	}

	ui.Success("Assigned %s to %s", b.TicketNumber, assignee.Name)
	return nil
}
