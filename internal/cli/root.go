// Package cli provides the command-line interface for the alert engine.
package cli

import (
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"stockwatch/internal/config"
	"stockwatch/internal/logging"
	"stockwatch/internal/notify"
	"stockwatch/internal/oracle"
	"stockwatch/internal/store"
)

// Version information
const (
	Version = "0.1.0"
)

// App holds the application dependencies.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Repo       store.TargetRepository
	Oracle     oracle.PriceOracle
	Dispatcher notify.Dispatcher
}

// NewRootCmd creates the root command for the CLI.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	repo, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to open target store, falling back to in-memory store")
		app.Repo = store.NewMemoryStore()
	} else {
		app.Repo = repo
		logger.Debug().Str("path", cfg.Store.Path).Msg("SQLite target store opened")
	}

	app.Oracle = oracle.NewFinnhubClient(oracle.FinnhubConfig{
		BaseURL:           cfg.Oracle.BaseURL,
		APIKey:            cfg.Oracle.APIKey,
		RequestsPerSecond: cfg.Oracle.RequestsPerSecond,
		Burst:             cfg.Oracle.Burst,
	})

	dispatcher, err := notify.NewMultiDispatcher(&cfg.Notifications)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize notification channels")
		dispatcher, _ = notify.NewMultiDispatcher(&config.NotificationConfig{})
	}
	if !dispatcher.HasChannels() {
		logger.Debug().Msg("No notification channels configured, alerts print to the terminal")
		dispatcher.AddChannel(notify.NewTerminalChannel())
	}
	app.Dispatcher = dispatcher

	rootCmd := &cobra.Command{
		Use:   "stockwatch",
		Short: "stockwatch - price target alerts for market symbols",
		Long: `stockwatch watches market symbols and alerts when a price target is hit.

Targets are registered per user with a threshold and a direction (below or
above). A background scheduler polls current prices, evaluates every pending
target, and delivers at most one alert per target over the configured
notification channels.

Use 'stockwatch serve' to run the scheduler and HTTP API.
Use 'stockwatch target' to manage targets from the command line.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			if debug {
				logging.SetDebugLevel()
				app.Logger = app.Logger.Level(zerolog.DebugLevel)
			}
			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().String("config", "", "config directory (default: ~/.config/stockwatch)")
	rootCmd.PersistentFlags().Bool("json", false, "output in JSON format")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newServeCmd(app))
	rootCmd.AddCommand(newCheckCmd(app))
	rootCmd.AddCommand(newTargetCmd(app))

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"version": Version})
			} else {
				output.Printf("stockwatch v%s\n", Version)
			}
		},
	}
}

func newConfigCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
		Long:  "View and validate application configuration.",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if output.IsJSON() {
				return output.JSON(app.Config)
			}
			return showConfig(output, app.Config)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration directory path",
		Run: func(cmd *cobra.Command, args []string) {
			output := NewOutput(cmd)
			if output.IsJSON() {
				output.JSON(map[string]string{"path": config.DefaultConfigDir()})
			} else {
				output.Println(config.DefaultConfigDir())
			}
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate configuration files",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Config.Validate(); err != nil {
				output.Error("Configuration validation failed: %v", err)
				return err
			}
			if output.IsJSON() {
				output.JSON(map[string]bool{"valid": true})
			} else {
				output.Success("Configuration is valid")
			}
			return nil
		},
	})

	return cmd
}

func showConfig(output *Output, cfg *config.Config) error {
	output.Bold("Poll Configuration")
	output.Printf("  Interval:        %s\n", cfg.Poll.Interval)
	output.Printf("  Concurrency:     %d\n", cfg.Poll.FetchConcurrency)
	output.Printf("  Fetch Timeout:   %s\n", cfg.Poll.FetchTimeout)
	output.Println()

	output.Bold("Price Oracle")
	output.Printf("  Base URL:        %s\n", cfg.Oracle.BaseURL)
	output.Printf("  API Key Set:     %v\n", cfg.Oracle.APIKey != "")
	output.Printf("  Rate Limit:      %.1f req/s (burst %d)\n", cfg.Oracle.RequestsPerSecond, cfg.Oracle.Burst)
	output.Println()

	output.Bold("Store")
	output.Printf("  Path:            %s\n", cfg.Store.Path)
	output.Println()

	output.Bold("API")
	output.Printf("  Enabled:         %v\n", cfg.API.Enabled)
	output.Printf("  Listen Addr:     %s\n", cfg.API.ListenAddr)
	output.Println()

	output.Bold("Notifications")
	output.Printf("  Telegram:        %v\n", cfg.Notifications.Telegram.Enabled)
	output.Printf("  Webhook:         %v\n", cfg.Notifications.Webhook.Enabled)

	return nil
}
