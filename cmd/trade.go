package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mselser95/marketview/internal/gate"
	"github.com/mselser95/marketview/internal/quote"
	"github.com/mselser95/marketview/internal/storage"
	"github.com/mselser95/marketview/pkg/config"
)

//nolint:gochecknoglobals // Cobra boilerplate
var tradeCmd = &cobra.Command{
	Use:   "trade <market-id>",
	Short: "Submit a trade with the stored session",
	Long: `Submits a market or limit order through the same gate the daemon uses:
the session must be connected, the market ID must be a UUID and the market
must be binary. The outcome is printed and journaled.

Market orders trade at the market's current price for the chosen side.

Examples:
  marketview trade 7f9c... --side yes --type market --amount 10
  marketview trade 7f9c... --side no --type limit --shares 50 --limit 40 --expire`,
	Args: cobra.ExactArgs(1),
	RunE: runTrade,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(tradeCmd)
	tradeCmd.Flags().String("side", "yes", "Outcome side: yes or no")
	tradeCmd.Flags().String("type", "market", "Order type: market or limit")
	tradeCmd.Flags().Float64("amount", 0, "Dollar amount (market orders)")
	tradeCmd.Flags().Float64("shares", 0, "Number of shares (limit orders)")
	tradeCmd.Flags().Float64("limit", 0, "Limit price in cents, 0-100 (limit orders)")
	tradeCmd.Flags().Bool("expire", false, "Expire the limit order at the end of the day")
	tradeCmd.Flags().Bool("sell", false, "Sell instead of buy")
}

func runTrade(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	env, err := newCLIEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	sideFlag, _ := cmd.Flags().GetString("side")
	typeFlag, _ := cmd.Flags().GetString("type")

	side, orderType, err := parseOrderFlags(sideFlag, typeFlag)
	if err != nil {
		return err
	}

	req := gate.TradeRequest{
		MarketID:  args[0],
		Action:    gate.ActionBuy,
		Side:      side,
		OrderType: orderType,
	}
	req.Amount, _ = cmd.Flags().GetFloat64("amount")
	req.Shares, _ = cmd.Flags().GetFloat64("shares")
	req.LimitCents, _ = cmd.Flags().GetFloat64("limit")
	req.Expiration, _ = cmd.Flags().GetBool("expire")

	if sell, _ := cmd.Flags().GetBool("sell"); sell {
		req.Action = gate.ActionSell
	}

	if gate.IsValidMarketID(req.MarketID) {
		market, err := env.client.GetMarket(ctx, req.MarketID)
		if err != nil {
			return fmt.Errorf("fetch market: %w", err)
		}
		req.OutcomeCount = len(market.OutcomeRows())
		req.MarketPrice = quote.SidePrice(market.YesPrice, side)
		if side == quote.SideNo && market.NoPrice > 0 {
			req.MarketPrice = market.NoPrice
		}
	}

	journal, err := newJournal(ctx, env.cfg, env.logger)
	if err != nil {
		return err
	}
	defer func() {
		_ = journal.Close()
	}()

	submitter, err := gate.New(&gate.Config{
		Session: env.sessions,
		Trader:  env.client,
		Journal: journal,
		Logger:  env.logger,
	})
	if err != nil {
		return fmt.Errorf("create submitter: %w", err)
	}

	result := submitter.Submit(ctx, req)
	if result.Status != gate.StatusAccepted {
		return fmt.Errorf("trade %s: %s", result.Status, result.Message)
	}

	fmt.Printf("%s Reference: %s\n", result.Message, result.Reference())

	return nil
}

// newJournal returns the postgres journal when configured and the console
// journal otherwise. One-shot trades always print their outcome.
func newJournal(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Journal, error) {
	if cfg.JournalMode != "postgres" {
		return storage.NewConsoleJournal(os.Stdout, logger), nil
	}

	journal, err := storage.NewPostgresJournal(ctx, &storage.PostgresConfig{
		Host:     cfg.PostgresHost,
		Port:     cfg.PostgresPort,
		User:     cfg.PostgresUser,
		Password: cfg.PostgresPass,
		Database: cfg.PostgresDB,
		SSLMode:  cfg.PostgresSSL,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create postgres journal: %w", err)
	}

	return journal, nil
}
