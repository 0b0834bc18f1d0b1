package storage

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"

	"github.com/mselser95/marketview/internal/gate"
)

// ConsoleJournal prints each submission as a table.
type ConsoleJournal struct {
	out    io.Writer
	logger *zap.Logger
	mu     sync.Mutex
}

// NewConsoleJournal creates a journal that writes to out.
func NewConsoleJournal(out io.Writer, logger *zap.Logger) *ConsoleJournal {
	logger.Info("console-journal-initialized")
	return &ConsoleJournal{
		out:    out,
		logger: logger,
	}
}

// Record implements Journal.
func (c *ConsoleJournal) Record(_ context.Context, result *gate.Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	fmt.Fprintf(c.out, "\n[%s] trade %s: %s\n",
		result.SubmittedAt.Format("2006-01-02 15:04:05"), result.Status, result.Message)

	table := tablewriter.NewWriter(c.out)
	table.Header("Market", "Action", "Side", "Type", "Price", "Amount", "Shares", "Return", "Decision", "Ref")
	table.Append(
		result.MarketID,
		string(result.Action),
		string(result.Side),
		string(result.OrderType),
		fmt.Sprintf("%.4f", result.Quote.UnitPrice),
		fmt.Sprintf("$%.2f", result.Quote.Amount),
		fmt.Sprintf("%.2f", result.Quote.Shares),
		fmt.Sprintf("$%.2f", result.Quote.PotentialReturn),
		string(result.Decision),
		result.Reference(),
	)
	table.Render()

	return nil
}

// Close implements Journal.
func (c *ConsoleJournal) Close() error {
	c.logger.Info("closing-console-journal")
	return nil
}
