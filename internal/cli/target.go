package cli

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"stockwatch/internal/errors"
	"stockwatch/internal/models"
)

// newTargetCmd creates the target command group for managing price targets
// from the command line.
func newTargetCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "target",
		Short: "Manage price targets",
		Long: `Register, list, and remove price targets.

A target fires once when the symbol's price reaches the threshold from the
configured direction, then stays quiet until removed or re-created.`,
	}

	cmd.PersistentFlags().String("user", "", "user reference the target belongs to (required)")

	cmd.AddCommand(newTargetAddCmd(app))
	cmd.AddCommand(newTargetListCmd(app))
	cmd.AddCommand(newTargetRemoveCmd(app))

	return cmd
}

func requireUser(cmd *cobra.Command) (string, error) {
	user, _ := cmd.Flags().GetString("user")
	if user == "" {
		return "", fmt.Errorf("--user is required")
	}
	return user, nil
}

func newTargetAddCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add SYMBOL PRICE",
		Short: "Register a price target",
		Long: `Register a price target for a symbol. Re-adding a symbol replaces the
existing target, including one that has already fired.`,
		Example: `  stockwatch target add AAPL 150.00 --user 42
  stockwatch target add NVDA 900 --direction above --user 42`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			user, err := requireUser(cmd)
			if err != nil {
				return err
			}

			threshold, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid price %q: %w", args[1], err)
			}

			directionFlag, _ := cmd.Flags().GetString("direction")
			direction, ok := models.ParseDirection(directionFlag)
			if !ok {
				return fmt.Errorf("invalid direction %q, use below or above", directionFlag)
			}

			target := models.Target{
				Symbol:    models.NormalizeSymbol(args[0]),
				Threshold: threshold,
				Direction: direction,
				State:     models.StatePending,
				CreatedAt: time.Now().UTC(),
			}
			if err := target.Validate(); err != nil {
				return err
			}

			if err := app.Repo.Save(cmd.Context(), user, target); err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(target)
			}
			output.Success("Target set: %s %s %s", target.Symbol, directionWord(target.Direction), target.Threshold.StringFixed(2))
			return nil
		},
	}

	cmd.Flags().String("direction", "below", "trigger direction: below or above")
	return cmd
}

func newTargetListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered targets",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			user, err := requireUser(cmd)
			if err != nil {
				return err
			}

			targets, err := app.Repo.List(cmd.Context(), user)
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(targets)
			}
			if len(targets) == 0 {
				output.Dim("No targets registered.")
				return nil
			}

			table := NewTable(output, "SYMBOL", "DIRECTION", "THRESHOLD", "STATE", "NOTIFIED")
			for _, t := range targets {
				notified := "-"
				if t.NotifiedAt != nil {
					notified = t.NotifiedAt.Local().Format("2006-01-02 15:04")
				}
				table.AddRow(
					t.Symbol,
					string(t.Direction),
					t.Threshold.StringFixed(2),
					output.StateTag(string(t.State)),
					notified,
				)
			}
			table.Render()
			return nil
		},
	}
}

func newTargetRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove SYMBOL",
		Short: "Remove a registered target",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			user, err := requireUser(cmd)
			if err != nil {
				return err
			}

			symbol := models.NormalizeSymbol(args[0])
			err = app.Repo.Delete(cmd.Context(), user, symbol)
			if errors.Is(err, errors.ErrTargetNotFound) {
				output.Warning("No target for %s", symbol)
				return nil
			}
			if err != nil {
				return err
			}

			if output.IsJSON() {
				return output.JSON(map[string]string{"removed": symbol})
			}
			output.Success("Target for %s removed", symbol)
			return nil
		},
	}
}

func directionWord(d models.TriggerDirection) string {
	if d == models.TriggerAbove {
		return "at or above"
	}
	return "at or below"
}
