package cmd

import (
	"github.com/spf13/cobra"
)

var notificationUnread bool

var notificationCmd = &cobra.Command{
	Use:     "notification",
	Aliases: []string{"notif"},
	Short:   "Inspect in-app notifications",
	RunE: func(cmd *cobra.Command, args []string) error {
		return notificationListRun(cmd)
	},
}

var notificationListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List notifications for a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return notificationListRun(cmd)
	},
}

func init() {
	notificationCmd.PersistentFlags().StringVar(&asEmail, "as", "", "Email of the recipient user")
	notificationListCmd.Flags().BoolVar(&notificationUnread, "unread", false, "Only unread notifications")

	notificationCmd.AddCommand(notificationListCmd)
	rootCmd.AddCommand(notificationCmd)
}

func notificationListRun(cmd *cobra.Command) error {
	ctx := cmd.Context()
	s, err := getStore()
	if err != nil {
		return err
	}
	recipient, err := resolveActor(ctx)
	if err != nil {
		return err
	}

	notifications, err := s.ListNotifications(ctx, recipient.ID, notificationUnread)
	if err != nil {
		return err
	}
	if len(notifications) == 0 {
		ui.Info("No notifications for %s", recipient.Email)
		return nil
	}

	table := ui.Table([]string{"WHEN", "TITLE", "MESSAGE", "READ"})
	for _, n := range notifications {
		read := ""
		if n.IsRead {
			read = "✓"
		}
		_ = table.Append([]string{
			n.CreatedAt.Local().Format("2006-01-02 15:04"),
			n.Title,
			n.Message,
			read,
		})
	}
	return table.Render()
}
