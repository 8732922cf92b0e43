package cmd

import (
	"github.com/spf13/cobra"

	"github.com/bugtrackhq/bugtrack/internal/models"
)

var (
	userName  string
	userEmail string
	userRole  string
	userPhone string
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return userListRun(cmd)
	},
}

var userAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		return userAddRun(cmd)
	},
}

var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		return userListRun(cmd)
	},
}

func init() {
	userAddCmd.Flags().StringVar(&userName, "name", "", "Full name (required)")
	userAddCmd.Flags().StringVar(&userEmail, "email", "", "Email (required)")
	userAddCmd.Flags().StringVar(&userRole, "role", "client", "Role: admin, developer, client")
	userAddCmd.Flags().StringVar(&userPhone, "phone", "", "WhatsApp number (E.164, e.g. +6281234567890)")
	_ = userAddCmd.MarkFlagRequired("name")
	_ = userAddCmd.MarkFlagRequired("email")

	userListCmd.Flags().StringVar(&userRole, "role", "", "Filter by role")

	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userListCmd)
	rootCmd.AddCommand(userCmd)
}

func userAddRun(cmd *cobra.Command) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	role := models.Role(userRole)
	if !role.Valid() {
		return cmd.Help()
	}

	if dryRun {
		ui.DryRunMsg("Would add %s user %s <%s>", role, userName, userEmail)
		return nil
	}

	u := &models.User{Name: userName, Email: userEmail, Role: role, Phone: userPhone}
	if err := s.CreateUser(cmd.Context(), u); err != nil {
		return err
	}
	ui.Success("Added %s (%s)", u.Name, u.Role)
	return nil
}

func userListRun(cmd *cobra.Command) error {
	s, err := getStore()
	if err != nil {
		return err
	}

	users, err := s.ListUsers(cmd.Context(), models.Role(userRole))
	if err != nil {
		return err
	}
	if len(users) == 0 {
		ui.Info("No users found")
		return nil
	}

	table := ui.Table([]string{"NAME", "EMAIL", "ROLE", "PHONE"})
	for _, u := range users {
		_ = table.Append([]string{u.Name, u.Email, string(u.Role), u.Phone})
	}
	return table.Render()
}
