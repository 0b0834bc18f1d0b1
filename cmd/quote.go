package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/mselser95/marketview/internal/quote"
)

//nolint:gochecknoglobals // Cobra boilerplate
var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Preview a trade without submitting it",
	Long: `Computes the trade preview for a market or limit order.

Market orders take --amount in dollars and --price, the YES price of the
outcome; the price of the chosen side is derived from it.
Limit orders take --shares and --limit in cents (0-100).

Examples:
  marketview quote --side yes --type market --amount 10 --price 0.25
  marketview quote --side no --type limit --shares 50 --limit 40`,
	RunE: runQuote,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(quoteCmd)
	quoteCmd.Flags().String("side", "yes", "Outcome side: yes or no")
	quoteCmd.Flags().String("type", "market", "Order type: market or limit")
	quoteCmd.Flags().Float64("amount", 0, "Dollar amount (market orders)")
	quoteCmd.Flags().Float64("price", 0, "YES price of the outcome, 0-1 (market orders)")
	quoteCmd.Flags().Float64("shares", 0, "Number of shares (limit orders)")
	quoteCmd.Flags().Float64("limit", 0, "Limit price in cents, 0-100 (limit orders)")
}

func runQuote(cmd *cobra.Command, args []string) error {
	sideFlag, _ := cmd.Flags().GetString("side")
	typeFlag, _ := cmd.Flags().GetString("type")
	amount, _ := cmd.Flags().GetFloat64("amount")
	price, _ := cmd.Flags().GetFloat64("price")
	shares, _ := cmd.Flags().GetFloat64("shares")
	limit, _ := cmd.Flags().GetFloat64("limit")

	side, orderType, err := parseOrderFlags(sideFlag, typeFlag)
	if err != nil {
		return err
	}

	q := quote.Compute(quote.Request{
		Side:        side,
		OrderType:   orderType,
		Amount:      amount,
		Shares:      shares,
		MarketPrice: quote.SidePrice(price, side),
		LimitCents:  limit,
	})

	renderQuote(os.Stdout, q)

	if !q.CanSubmit {
		return errors.New("quote is not submittable: check the amount, shares and price")
	}

	return nil
}

func parseOrderFlags(sideFlag, typeFlag string) (quote.Side, quote.OrderType, error) {
	side := quote.Side(sideFlag)
	if side != quote.SideYes && side != quote.SideNo {
		return "", "", fmt.Errorf("invalid side %q: must be yes or no", sideFlag)
	}

	orderType := quote.OrderType(typeFlag)
	if orderType != quote.OrderTypeMarket && orderType != quote.OrderTypeLimit {
		return "", "", fmt.Errorf("invalid order type %q: must be market or limit", typeFlag)
	}

	return side, orderType, nil
}

func renderQuote(w io.Writer, q quote.Quote) {
	table := tablewriter.NewWriter(w)
	table.Header("Side", "Type", "Price", "Amount", "Shares", "Return", "Profit", "Submittable")
	table.Append(
		string(q.Side),
		string(q.OrderType),
		fmt.Sprintf("%dc", quote.PricePercentage(q.UnitPrice)),
		fmt.Sprintf("$%.2f", q.Amount),
		fmt.Sprintf("%.2f", q.Shares),
		fmt.Sprintf("$%.2f", q.PotentialReturn),
		fmt.Sprintf("$%.2f", q.Profit),
		fmt.Sprintf("%t", q.CanSubmit),
	)
	table.Render()
}
