package cmd

import (
	"github.com/spf13/cobra"
)

var waCmd = &cobra.Command{
	Use:   "wa",
	Short: "WhatsApp gateway diagnostics",
}

var waStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the gateway device status",
	RunE: func(cmd *cobra.Command, args []string) error {
		device, err := getGateway().DeviceStatus(cmd.Context())
		if err != nil {
			ui.Warning("device status check failed: %v", err)
			return nil
		}
		if device.Online {
			ui.Success("device %s (%s) is online", device.Name, device.Number)
		} else {
			ui.Warning("device is offline")
		}
		return nil
	},
}

var waSendCmd = &cobra.Command{
	Use:   "send <phone> <message>",
	Short: "Send a test message",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if dryRun {
			ui.DryRunMsg("Would send %q to %s", args[1], args[0])
			return nil
		}
		result := getGateway().Send(cmd.Context(), args[0], args[1])
		if result.Accepted {
			ui.Success("message accepted")
		} else {
			ui.Warning("message not accepted: %s", result.Reason)
		}
		return nil
	},
}

func init() {
	waCmd.AddCommand(waStatusCmd)
	waCmd.AddCommand(waSendCmd)
	rootCmd.AddCommand(waCmd)
}
