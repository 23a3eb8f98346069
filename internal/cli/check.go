package cli

import (
	"github.com/spf13/cobra"

	"stockwatch/internal/engine"
)

// newCheckCmd creates the check command, which runs a single evaluation
// cycle and exits. Useful for cron-style deployments and smoke testing.
func newCheckCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one evaluation cycle and exit",
		Long: `Fetch current prices for every pending target, evaluate them, and deliver
any alerts that fire. Equivalent to one tick of 'stockwatch serve'.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

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

			stats := scheduler.RunCycle(cmd.Context())

			if output.IsJSON() {
				return output.JSON(stats)
			}
			output.Bold("Cycle complete")
			output.Printf("  Targets:      %d\n", stats.Targets)
			output.Printf("  Symbols:      %d\n", stats.Symbols)
			output.Printf("  Fired:        %d\n", stats.Fired)
			output.Printf("  Held:         %d\n", stats.Held)
			if stats.Unavailable > 0 {
				output.Warning("  Unavailable:  %d", stats.Unavailable)
			}
			if stats.DeliveryErrors > 0 {
				output.Warning("  Delivery errors: %d", stats.DeliveryErrors)
			}
			output.Dim("  Duration: %s", stats.Duration)
			return nil
		},
	}
	return cmd
}
