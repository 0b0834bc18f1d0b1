package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mselser95/marketview/internal/pricefeed"
	"github.com/mselser95/marketview/internal/quote"
	"github.com/mselser95/marketview/pkg/types"
	"github.com/mselser95/marketview/pkg/websocket"
)

//nolint:gochecknoglobals // Cobra boilerplate
var orderbookCmd = &cobra.Command{
	Use:   "orderbook <market-id>",
	Short: "Show a market and its orderbook",
	Long: `Fetches a market and its orderbook from the backend.

Use --trades to also list the market's recent public trades and --chart
<range> (1h, 6h, 24h, 7d, 30d, all) to print its price history. Use --follow
to keep streaming live prices for the market over WebSocket until
interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runOrderbook,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(orderbookCmd)
	orderbookCmd.Flags().IntP("depth", "d", 5, "Number of levels to show per side")
	orderbookCmd.Flags().BoolP("follow", "f", false, "Stream live prices until interrupted")
	orderbookCmd.Flags().Bool("trades", false, "Also list recent public trades")
	orderbookCmd.Flags().String("chart", "", "Also print price history over a range: 1h, 6h, 24h, 7d, 30d, all")
}

func runOrderbook(cmd *cobra.Command, args []string) error {
	marketID := args[0]
	depth, _ := cmd.Flags().GetInt("depth")
	follow, _ := cmd.Flags().GetBool("follow")
	showTrades, _ := cmd.Flags().GetBool("trades")
	chartRange, _ := cmd.Flags().GetString("chart")

	if chartRange != "" && !types.IsValidChartRange(chartRange) {
		return fmt.Errorf("invalid chart range: %s. Valid ranges: 1h, 6h, 24h, 7d, 30d, all", chartRange)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	env, err := newCLIEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	market, err := env.client.GetMarket(ctx, marketID)
	if err != nil {
		return fmt.Errorf("fetch market: %w", err)
	}

	fmt.Printf("%s\n%s | %s | resolution %s\n\n", market.Title, market.Category, market.Status, market.Resolution)
	renderOutcomes(os.Stdout, market)

	book, err := env.client.Orderbook(ctx, marketID)
	if err != nil {
		return fmt.Errorf("fetch orderbook: %w", err)
	}

	fmt.Println()
	renderBook(os.Stdout, "YES", book.Yes, depth)
	fmt.Println()
	renderBook(os.Stdout, "NO", book.No, depth)

	if showTrades {
		page, err := env.client.MarketTrades(ctx, marketID, "", 20)
		if err != nil {
			return fmt.Errorf("fetch market trades: %w", err)
		}
		fmt.Println()
		renderTrades(os.Stdout, page.Trades)
	}

	if chartRange != "" {
		points, err := env.client.MarketChart(ctx, marketID, chartRange)
		if err != nil {
			return fmt.Errorf("fetch chart: %w", err)
		}
		fmt.Println()
		renderChart(os.Stdout, chartRange, points)
	}

	if !follow {
		return nil
	}

	return followPrices(env, marketID)
}

func followPrices(env *cliEnv, marketID string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ws := websocket.New(websocket.Config{
		URL:                   env.cfg.WSURL,
		DialTimeout:           env.cfg.WSDialTimeout,
		PongTimeout:           env.cfg.WSPongTimeout,
		PingInterval:          env.cfg.WSPingInterval,
		ReconnectInitialDelay: env.cfg.WSReconnectInitialDelay,
		ReconnectMaxDelay:     env.cfg.WSReconnectMaxDelay,
		ReconnectBackoffMult:  env.cfg.WSReconnectBackoffMult,
		MessageBufferSize:     env.cfg.WSMessageBufferSize,
		Logger:                env.logger,
	})

	feed, err := pricefeed.New(&pricefeed.Config{
		Messages:   ws.MessageChan(),
		Subscriber: ws,
		Logger:     env.logger,
	})
	if err != nil {
		return fmt.Errorf("create price feed: %w", err)
	}

	err = ws.Start()
	if err != nil {
		return fmt.Errorf("start websocket: %w", err)
	}

	err = feed.Start(ctx)
	if err != nil {
		_ = ws.Close()
		return fmt.Errorf("start price feed: %w", err)
	}

	defer func() {
		cancel()
		_ = ws.Close()
		_ = feed.Close()
	}()

	err = feed.Watch(marketID)
	if err != nil {
		return fmt.Errorf("watch market: %w", err)
	}

	fmt.Printf("\nStreaming prices for %s (Ctrl-C to stop)\n", marketID)

	for {
		select {
		case <-ctx.Done():
			env.logger.Info("follow-stopped", zap.String("market-id", marketID))
			return nil
		case snapshot, ok := <-feed.Updates():
			if !ok {
				return nil
			}
			fmt.Printf("[%s] YES %dc  NO %dc\n",
				snapshot.LastUpdated.Format("15:04:05"),
				quote.PricePercentage(snapshot.YesPrice),
				quote.PricePercentage(snapshot.NoPrice))
		}
	}
}

func renderOutcomes(w io.Writer, market *types.Market) {
	table := tablewriter.NewWriter(w)
	table.Header("Outcome", "Price")
	for _, row := range market.OutcomeRows() {
		table.Append(row.Name, fmt.Sprintf("%dc", quote.PricePercentage(row.Price)))
	}
	table.Render()
}

func renderBook(w io.Writer, label string, side types.BookSide, depth int) {
	spread := "-"
	if s, ok := side.Spread(); ok {
		spread = fmt.Sprintf("%.4f", s)
	}
	fmt.Fprintf(w, "%s book (spread %s)\n", label, spread)

	table := tablewriter.NewWriter(w)
	table.Header("Bid Shares", "Bid", "Ask", "Ask Shares")

	rows := max(min(depth, len(side.Bids)), min(depth, len(side.Asks)))
	for i := 0; i < rows; i++ {
		bidShares, bid, ask, askShares := "", "", "", ""
		if i < len(side.Bids) {
			bidShares = fmt.Sprintf("%.2f", side.Bids[i].Shares)
			bid = fmt.Sprintf("%.4f", side.Bids[i].Price)
		}
		if i < len(side.Asks) {
			ask = fmt.Sprintf("%.4f", side.Asks[i].Price)
			askShares = fmt.Sprintf("%.2f", side.Asks[i].Shares)
		}
		table.Append(bidShares, bid, ask, askShares)
	}
	table.Render()
}

func renderChart(w io.Writer, rng string, points []types.PricePoint) {
	if len(points) == 0 {
		fmt.Fprintf(w, "No price history for %s.\n", rng)
		return
	}

	first, last := points[0], points[len(points)-1]
	change := quote.PricePercentage(last.YesPrice) - quote.PricePercentage(first.YesPrice)
	fmt.Fprintf(w, "Price history (%s, YES %+dc)\n", rng, change)

	table := tablewriter.NewWriter(w)
	table.Header("Time", "Yes", "No", "Volume")
	for _, p := range points {
		table.Append(
			p.Timestamp.Format("2006-01-02 15:04"),
			fmt.Sprintf("%dc", quote.PricePercentage(p.YesPrice)),
			fmt.Sprintf("%dc", quote.PricePercentage(p.NoPrice)),
			fmt.Sprintf("$%.0f", p.Volume),
		)
	}
	table.Render()
}
