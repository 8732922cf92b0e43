package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bugtrackhq/bugtrack/internal/models"
	"github.com/bugtrackhq/bugtrack/internal/store"
)

var projectDesc string

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectListRun(cmd)
	},
}

var projectAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectAddRun(cmd, args[0])
	},
}

var projectListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List projects",
	RunE: func(cmd *cobra.Command, args []string) error {
		return projectListRun(cmd)
	},
}

func init() {
	projectAddCmd.Flags().StringVar(&projectDesc, "desc", "", "Project description")

	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectListCmd)
	rootCmd.AddCommand(projectCmd)
}

func projectAddRun(cmd *cobra.Command, name string) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	if dryRun {
		ui.DryRunMsg("Would add project %s", name)
		return nil
	}

	p := &models.Project{Name: name, Description: projectDesc}
	if err := s.CreateProject(cmd.Context(), p); err != nil {
		return err
	}
	ui.Success("Added project %s", p.Name)
	return nil
}

func projectListRun(cmd *cobra.Command) error {
	ctx := cmd.Context()
	s, err := getStore()
	if err != nil {
		return err
	}

	projects, err := s.ListProjects(ctx)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		ui.Info("No projects found")
		return nil
	}

	table := ui.Table([]string{"NAME", "OPEN BUGS", "DESCRIPTION"})
	for _, p := range projects {
		bugs, err := s.ListBugs(ctx, store.BugListFilter{ProjectID: p.ID, Status: models.BugStatusOpen})
		if err != nil {
			return err
		}
		_ = table.Append([]string{p.Name, strconv.Itoa(len(bugs)), p.Description})
	}
	return table.Render()
}
