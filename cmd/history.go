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
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the current user's executed trades",
	RunE:  runHistory,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().String("cursor", "", "Pagination cursor from a previous page")
	historyCmd.Flags().Bool("all", false, "Follow cursors until the last page")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
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

	cursor, _ := cmd.Flags().GetString("cursor")
	all, _ := cmd.Flags().GetBool("all")

	var trades []types.Trade
	for {
		page, err := env.client.Trades(ctx, cursor)
		if err != nil {
			return fmt.Errorf("fetch trades: %w", err)
		}

		trades = append(trades, page.Trades...)

		if !page.HasMore || page.NextCursor == nil {
			cursor = ""
			break
		}

		cursor = *page.NextCursor
		if !all {
			break
		}
	}

	renderTrades(os.Stdout, trades)

	if cursor != "" {
		fmt.Printf("\nMore results: --cursor %s\n", cursor)
	}

	return nil
}

func renderTrades(w io.Writer, trades []types.Trade) {
	if len(trades) == 0 {
		fmt.Fprintln(w, "No trades found.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("Time", "Market", "Side", "Outcome", "Shares", "Price", "Total", "Status", "Ref")
	for i := range trades {
		t := &trades[i]
		table.Append(
			t.CreatedAt.Format("2006-01-02 15:04"),
			t.MarketID,
			t.Side,
			t.Outcome,
			fmt.Sprintf("%.2f", t.Shares),
			fmt.Sprintf("%.4f", t.Price),
			fmt.Sprintf("$%.2f", t.TotalAmount),
			t.Status,
			t.Reference(),
		)
	}
	table.Render()
}
