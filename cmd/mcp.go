package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bugtrackhq/bugtrack/internal/mcp"
	"github.com/bugtrackhq/bugtrack/internal/overdue"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets MCP clients report, list, and move bugs natively. Configure
with:

  {
    "mcpServers": {
      "bugtrack": { "command": "bugtrack", "args": ["mcp"] }
    }
  }

Available tools: bugtrack_list_bugs, bugtrack_report_bug,
bugtrack_move_bug, bugtrack_overdue_sweep`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		lc, err := getLifecycle()
		if err != nil {
			return err
		}
		d, err := getDispatcher()
		if err != nil {
			return err
		}

		scanner := overdue.NewScanner(s, d, newLogger(), viper.GetDuration("overdue.cooldown"))
		srv := mcp.NewServer(s, lc, scanner)
		return srv.ServeStdio(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
