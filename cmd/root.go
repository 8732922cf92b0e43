package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bugtrackhq/bugtrack/internal/lifecycle"
	"github.com/bugtrackhq/bugtrack/internal/models"
	"github.com/bugtrackhq/bugtrack/internal/notify"
	"github.com/bugtrackhq/bugtrack/internal/output"
	"github.com/bugtrackhq/bugtrack/internal/store"
	"github.com/bugtrackhq/bugtrack/internal/wagate"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui        *output.UI
	dataStore store.Store

	verbose bool
	dryRun  bool
	asEmail string
)

var (
	buildVersion = "dev"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "bugtrack",
	Short: "Bug tracker with lifecycle notifications and WhatsApp delivery",
	Long: `bugtrack is a multi-role bug tracker (admin/developer/client).
It tracks bugs through their lifecycle, records in-app notifications for
every workflow event, forwards them best-effort over WhatsApp, and sweeps
for bugs past their deadline.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", false, "Show what would happen without making changes")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/bugtrack/config.yaml)")
}

func initConfig() {
	// If --config is explicitly set, use that file
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}

		configDir := filepath.Join(home, ".config", "bugtrack")
		viper.AddConfigPath(configDir)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("BUGTRACK")
	viper.AutomaticEnv()

	home, _ := os.UserHomeDir()
	defaultConfigDir := filepath.Join(home, ".config", "bugtrack")

	viper.SetDefault("db_path", filepath.Join(defaultConfigDir, "bugtrack.db"))
	viper.SetDefault("port", 8080)
	viper.SetDefault("wa.base_url", "https://app.whacenter.example")
	viper.SetDefault("wa.api_key", "")
	viper.SetDefault("wa.api_secret", "")
	viper.SetDefault("wa.send_timeout", "5s")
	viper.SetDefault("overdue.cooldown", "24h")
	viper.SetDefault("presence.ttl", "5m")

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
	ui.DryRun = dryRun

	// The store is initialized lazily so config/version commands can run
	// without a database.
}

// getStore returns the shared store, initializing it on first call.
func getStore() (store.Store, error) {
	if dataStore != nil {
		return dataStore, nil
	}

	dbPath := viper.GetString("db_path")
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	dataStore = s
	return dataStore, nil
}

// getGateway builds the WhatsApp gateway from config. Without credentials
// it degrades to the Noop gateway so sends become recorded-but-not-sent.
func getGateway() wagate.Gateway {
	key := viper.GetString("wa.api_key")
	secret := viper.GetString("wa.api_secret")
	if key == "" || secret == "" {
		return wagate.Noop{}
	}
	return wagate.NewClient(
		viper.GetString("wa.base_url"),
		key, secret,
		viper.GetDuration("wa.send_timeout"),
	)
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// getDispatcher wires the notification dispatcher over the shared store
// and the configured gateway.
func getDispatcher() (*notify.Dispatcher, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	return notify.New(s, getGateway(), newLogger(), viper.GetDuration("wa.send_timeout")), nil
}

// getLifecycle wires the lifecycle service used by the bug commands.
func getLifecycle() (*lifecycle.Service, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	d, err := getDispatcher()
	if err != nil {
		return nil, err
	}
	return lifecycle.NewService(s, d, newLogger()), nil
}

// resolveActor loads the acting user from --as <email>.
func resolveActor(ctx context.Context) (*models.User, error) {
	if asEmail == "" {
		return nil, fmt.Errorf("--as <email> is required to identify the acting user")
	}
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	u, err := s.GetUserByEmail(ctx, asEmail)
	if err != nil {
		return nil, fmt.Errorf("unknown user %s: %w", asEmail, err)
	}
	return u, nil
}

// resolveBug accepts either a bug id or a ticket number.
func resolveBug(ctx context.Context, ref string) (*models.Bug, error) {
	s, err := getStore()
	if err != nil {
		return nil, err
	}
	b, err := s.GetBug(ctx, ref)
	if err == nil {
		return b, nil
	}
	return s.GetBugByTicket(ctx, ref)
}

func fmtTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
