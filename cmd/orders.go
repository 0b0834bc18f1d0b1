package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/mselser95/marketview/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "List or cancel the current user's orders",
	Long: `Lists the current user's orders, optionally filtered by status
(OPEN, PARTIAL, FILLED, CANCELLED, EXPIRED).

Use --cancel to cancel orders by ID.`,
	RunE: runOrders,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(ordersCmd)
	ordersCmd.Flags().String("status", "", "Filter by order status")
	ordersCmd.Flags().StringSlice("cancel", nil, "Order IDs to cancel")
}

func runOrders(cmd *cobra.Command, args []string) error {
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

	toCancel, _ := cmd.Flags().GetStringSlice("cancel")
	if len(toCancel) > 0 {
		failed := 0
		for _, id := range toCancel {
			err := env.client.CancelOrder(ctx, id)
			if err != nil {
				failed++
				fmt.Printf("cancel %s: %v\n", id, err)
				continue
			}
			fmt.Printf("cancelled %s\n", id)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d cancellations failed", failed, len(toCancel))
		}
		return nil
	}

	status, _ := cmd.Flags().GetString("status")

	orders, err := env.client.Orders(ctx, strings.ToUpper(status))
	if err != nil {
		return fmt.Errorf("fetch orders: %w", err)
	}

	renderOrders(os.Stdout, orders)

	return nil
}

func renderOrders(w io.Writer, orders []types.Order) {
	if len(orders) == 0 {
		fmt.Fprintln(w, "No orders found.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("ID", "Market", "Side", "Outcome", "Price", "Shares", "Filled", "Status", "Expires")
	for _, o := range orders {
		expires := o.ExpiresAt
		if expires == "" {
			expires = "-"
		}
		table.Append(
			o.ID,
			o.MarketID,
			o.Side,
			o.Outcome,
			fmt.Sprintf("%.4f", o.Price),
			fmt.Sprintf("%.2f", o.Shares),
			fmt.Sprintf("%.2f", o.FilledShares),
			o.Status,
			expires,
		)
	}
	table.Render()
}
