package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bugtrackhq/bugtrack/internal/overdue"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the overdue sweep once",
	Long: `Scan for bugs past their deadline and notify assignees and reporters.
Bugs alerted within the cooldown window (default 24h) are skipped.

Intended to be run from cron or another external scheduler, e.g. hourly:

  0 * * * * bugtrack sweep

The command exits non-zero only when the sweep itself cannot run;
individual per-bug notification failures are logged and skipped.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getStore()
		if err != nil {
			return err
		}
		d, err := getDispatcher()
		if err != nil {
			return err
		}

		scanner := overdue.NewScanner(s, d, newLogger(), viper.GetDuration("overdue.cooldown"))
		report, err := scanner.Run(cmd.Context())
		if err != nil {
			return err
		}

		ui.Info("scanned %d overdue candidate(s)", report.Scanned)
		if report.Notified > 0 {
			ui.Success("notified %d", report.Notified)
		}
		if report.Skipped > 0 {
			ui.VerboseLog("skipped %d (cooldown)", report.Skipped)
		}
		if report.Failed > 0 {
			ui.Warning("failed %d (see logs)", report.Failed)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}
