package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/mselser95/marketview/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var positionsCmd = &cobra.Command{
	Use:   "positions",
	Short: "List the current user's positions",
	RunE:  runPositions,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(positionsCmd)
}

func runPositions(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	env, err := newCLIEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	err = env.requireSession()
	if err != nil {
		return err
	}

	positions, err := env.client.Positions(ctx)
	if err != nil {
		return fmt.Errorf("fetch positions: %w", err)
	}

	renderPositions(os.Stdout, positions)

	return nil
}

func renderPositions(w io.Writer, positions []types.Position) {
	if len(positions) == 0 {
		fmt.Fprintln(w, "No open positions.")
		return
	}

	var invested, payout float64

	table := tablewriter.NewWriter(w)
	table.Header("Market", "Outcome", "Shares", "Avg Price", "Invested", "Payout If Right")
	for _, p := range positions {
		invested += p.TotalInvested
		payout += p.Shares
		table.Append(
			p.MarketID,
			p.Outcome,
			fmt.Sprintf("%.2f", p.Shares),
			fmt.Sprintf("%.4f", p.AvgPrice),
			fmt.Sprintf("$%.2f", p.TotalInvested),
			fmt.Sprintf("$%.2f", p.Shares),
		)
	}
	table.Render()

	fmt.Fprintf(w, "\nTotal invested: $%.2f, max payout: $%.2f\n", invested, payout)
}
