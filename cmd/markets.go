package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/mselser95/marketview/internal/quote"
	"github.com/mselser95/marketview/pkg/types"
)

//nolint:gochecknoglobals // Cobra boilerplate
var marketsCmd = &cobra.Command{
	Use:   "markets",
	Short: "List markets from the backend",
	Long: `Fetches one page of markets from the backend and prints them as a table.

Use --trending to list the backend's trending markets instead, or
--categories to list the market categories with their market counts.`,
	RunE: runMarkets,
}

//nolint:gochecknoinits // Cobra boilerplate
func init() {
	rootCmd.AddCommand(marketsCmd)
	marketsCmd.Flags().String("status", "", "Filter by market status")
	marketsCmd.Flags().String("category", "", "Filter by category")
	marketsCmd.Flags().StringP("sort", "s", "trending", "Sort by: trending, newest, ending_soon, volume, liquidity")
	marketsCmd.Flags().String("search", "", "Free-text search")
	marketsCmd.Flags().String("cursor", "", "Pagination cursor from a previous page")
	marketsCmd.Flags().IntP("limit", "l", 20, "Maximum number of markets to fetch")
	marketsCmd.Flags().Bool("trending", false, "List trending markets")
	marketsCmd.Flags().Bool("categories", false, "List market categories")
}

func runMarkets(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	env, err := newCLIEnv(ctx)
	if err != nil {
		return err
	}
	defer env.Close()

	categories, _ := cmd.Flags().GetBool("categories")
	if categories {
		list, err := env.client.Categories(ctx)
		if err != nil {
			return fmt.Errorf("fetch categories: %w", err)
		}
		renderCategories(os.Stdout, list)
		return nil
	}

	trending, _ := cmd.Flags().GetBool("trending")
	if trending {
		list, err := env.client.TrendingMarkets(ctx)
		if err != nil {
			return fmt.Errorf("fetch trending markets: %w", err)
		}
		renderMarkets(os.Stdout, list)
		return nil
	}

	q := types.MarketQuery{}
	q.Status, _ = cmd.Flags().GetString("status")
	q.Category, _ = cmd.Flags().GetString("category")
	q.Sort, _ = cmd.Flags().GetString("sort")
	q.Search, _ = cmd.Flags().GetString("search")
	q.Cursor, _ = cmd.Flags().GetString("cursor")
	q.Limit, _ = cmd.Flags().GetInt("limit")

	if !validSort(q.Sort) {
		return fmt.Errorf("invalid sort option: %s. Valid options: trending, newest, ending_soon, volume, liquidity", q.Sort)
	}

	page, err := env.client.ListMarkets(ctx, q)
	if err != nil {
		return fmt.Errorf("fetch markets: %w", err)
	}

	renderMarkets(os.Stdout, page.Markets)

	if page.HasMore && page.NextCursor != nil {
		fmt.Printf("\nMore results: --cursor %s\n", *page.NextCursor)
	}

	return nil
}

func validSort(sortBy string) bool {
	switch sortBy {
	case "trending", "newest", "ending_soon", "volume", "liquidity":
		return true
	default:
		return false
	}
}

func renderMarkets(w io.Writer, list []types.Market) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No markets found.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("ID", "Title", "Category", "Status", "Yes", "No", "Volume", "Ends")
	for i := range list {
		m := &list[i]

		title := m.Title
		if len(title) > 50 {
			title = title[:47] + "..."
		}

		yes, no := "-", "-"
		if !m.IsMultiOutcome() {
			yes = fmt.Sprintf("%dc", quote.PricePercentage(m.YesPrice))
			no = fmt.Sprintf("%dc", quote.PricePercentage(m.NoPrice))
		}

		ends := "-"
		if !m.EndDate.IsZero() {
			ends = m.EndDate.Format("2006-01-02")
		}

		table.Append(m.ID, title, m.Category, m.Status, yes, no, fmt.Sprintf("$%.0f", m.Volume), ends)
	}
	table.Render()

	fmt.Fprintf(w, "\nTotal: %d markets\n", len(list))
}

func renderCategories(w io.Writer, list []types.CategoryCount) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No categories found.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("Category", "Markets")
	for _, c := range list {
		table.Append(c.Category, strconv.Itoa(c.Count.ID))
	}
	table.Render()
}
