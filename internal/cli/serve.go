package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"stockwatch/internal/api"
	"stockwatch/internal/engine"
)

// newServeCmd creates the serve command. It runs the poll scheduler and,
// when enabled, the target management HTTP API, until interrupted.
func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the alert scheduler and HTTP API",
		Long: `Run the background scheduler that polls prices and delivers alerts.

The scheduler checks every pending target each poll interval. When the API is
enabled, targets can be managed over HTTP while the scheduler runs. Stop with
Ctrl-C; an in-flight cycle finishes its deliveries before shutdown.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			var apiErr error
			if app.Config.API.Enabled {
				server := api.NewServer(app.Config.API.ListenAddr, app.Repo, app.Logger)
				go func() {
					// An API failure takes the scheduler down with it.
					if err := server.Start(ctx); err != nil {
						apiErr = err
						cancel()
					}
				}()
			}

			scheduler := engine.NewScheduler(
				app.Repo,
				app.Oracle,
				app.Dispatcher,
				engine.SchedulerConfig{
					Interval:         app.Config.Poll.Interval,
					FetchConcurrency: app.Config.Poll.FetchConcurrency,
					FetchTimeout:     app.Config.Poll.FetchTimeout,
				},
				app.Logger,
			)
			scheduler.Run(ctx)

			app.Logger.Info().Msg("Shutting down")
			return apiErr
		},
	}
	return cmd
}
