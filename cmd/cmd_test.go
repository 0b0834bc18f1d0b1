package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mselser95/marketview/internal/quote"
	"github.com/mselser95/marketview/internal/wallet"
	"github.com/mselser95/marketview/pkg/types"
)

func TestParseOrderFlags(t *testing.T) {
	tests := []struct {
		name      string
		side      string
		orderType string
		wantErr   bool
	}{
		{name: "yes-market", side: "yes", orderType: "market"},
		{name: "no-limit", side: "no", orderType: "limit"},
		{name: "bad-side", side: "maybe", orderType: "market", wantErr: true},
		{name: "bad-type", side: "yes", orderType: "stop", wantErr: true},
		{name: "uppercase-side", side: "YES", orderType: "market", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			side, orderType, err := parseOrderFlags(tt.side, tt.orderType)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, quote.Side(tt.side), side)
			assert.Equal(t, quote.OrderType(tt.orderType), orderType)
		})
	}
}

func TestValidSort(t *testing.T) {
	for _, s := range []string{"trending", "newest", "ending_soon", "volume", "liquidity"} {
		assert.True(t, validSort(s), s)
	}
	assert.False(t, validSort("volume24hr"))
	assert.False(t, validSort(""))
}

func TestRenderQuote(t *testing.T) {
	var buf bytes.Buffer

	q := quote.Compute(quote.Request{
		Side:        quote.SideYes,
		OrderType:   quote.OrderTypeMarket,
		Amount:      10,
		MarketPrice: 0.25,
	})
	renderQuote(&buf, q)

	out := buf.String()
	assert.Contains(t, out, "25c")
	assert.Contains(t, out, "$10.00")
	assert.Contains(t, out, "40.00")
	assert.Contains(t, out, "$30.00")
	assert.Contains(t, out, "true")
}

func TestParseWalletArg(t *testing.T) {
	d, err := parseWalletArg("metamask:0x52908400098527886e0f7030069857d2e4169ee7")
	require.NoError(t, err)
	assert.Equal(t, "metamask", d.ClientType)
	assert.Equal(t, "0x52908400098527886E0F7030069857D2E4169EE7", d.Address)

	d, err = parseWalletArg("phantom:7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU")
	require.NoError(t, err)
	assert.Equal(t, "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU", d.Address)

	for _, bad := range []string{"metamask", ":0xabc", "phantom:"} {
		_, err := parseWalletArg(bad)
		assert.Error(t, err, bad)
	}
}

func TestLoadWalletFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallets.json")
	content := `[
		{"address": "0xaaaa000000000000000000000000000000000001", "walletClientType": "privy"},
		{"address": "0xbbbb000000000000000000000000000000000002", "walletClientType": "wallet_connect", "walletName": "Rabby Wallet"}
	]`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	descs, err := loadWalletFile(path)
	require.NoError(t, err)
	require.Len(t, descs, 2)
	assert.Equal(t, wallet.TypePrivyEmbedded, wallet.Classify(descs[0]))
	assert.Equal(t, wallet.TypeRabby, wallet.Classify(descs[1]))

	_, err = loadWalletFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestRenderWalletsMarksPreferred(t *testing.T) {
	descs := []wallet.Descriptor{
		{Address: "0xaaaa000000000000000000000000000000000001", ClientType: "privy"},
		{Address: "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU", ClientType: "phantom"},
		{Address: "0xbbbb000000000000000000000000000000000002", ClientType: "metamask"},
	}

	var buf bytes.Buffer
	renderWallets(&buf, descs, wallet.PhantomFirst())
	assert.Contains(t, buf.String(), "Policy phantom-first prefers 7xKXtg...gAsU (phantom)")

	buf.Reset()
	renderWallets(&buf, descs, wallet.MetaMaskFirst())
	assert.Contains(t, buf.String(), "Policy metamask-first prefers 0xbbbb...0002 (metamask)")
}

func TestRenderPositionsTotals(t *testing.T) {
	var buf bytes.Buffer
	renderPositions(&buf, []types.Position{
		{MarketID: "m1", Outcome: "YES", Shares: 20, AvgPrice: 0.5, TotalInvested: 10},
		{MarketID: "m2", Outcome: "NO", Shares: 30, AvgPrice: 0.6667, TotalInvested: 20},
	})

	assert.Contains(t, buf.String(), "Total invested: $30.00, max payout: $50.00")
}

func TestRenderEmptyLists(t *testing.T) {
	var buf bytes.Buffer

	renderPositions(&buf, nil)
	renderOrders(&buf, nil)
	renderTrades(&buf, nil)
	renderMarkets(&buf, nil)

	out := buf.String()
	assert.Contains(t, out, "No open positions.")
	assert.Contains(t, out, "No orders found.")
	assert.Contains(t, out, "No trades found.")
	assert.Contains(t, out, "No markets found.")
}

func TestRenderBookShowsSpread(t *testing.T) {
	var buf bytes.Buffer
	renderBook(&buf, "YES", types.BookSide{
		Bids: []types.BookLevel{{Price: 0.48, Shares: 100}},
		Asks: []types.BookLevel{{Price: 0.52, Shares: 50}, {Price: 0.55, Shares: 10}},
	}, 5)

	out := buf.String()
	assert.Contains(t, out, "YES book (spread 0.0400)")
	assert.Contains(t, out, "0.5500")

	buf.Reset()
	renderBook(&buf, "NO", types.BookSide{}, 5)
	assert.Contains(t, buf.String(), "NO book (spread -)")
}

func TestRenderCategories(t *testing.T) {
	var buf bytes.Buffer
	renderCategories(&buf, []types.CategoryCount{
		{Category: "Politics", Count: types.CategoryTally{ID: 12}},
	})
	assert.Contains(t, buf.String(), "Politics")
	assert.Contains(t, buf.String(), "12")

	buf.Reset()
	renderCategories(&buf, nil)
	assert.Contains(t, buf.String(), "No categories found.")
}

func TestRenderChartShowsChange(t *testing.T) {
	var buf bytes.Buffer
	renderChart(&buf, "7d", []types.PricePoint{
		{YesPrice: 0.40, NoPrice: 0.60, Volume: 100, Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
		{YesPrice: 0.47, NoPrice: 0.53, Volume: 250, Timestamp: time.Date(2026, 3, 8, 12, 0, 0, 0, time.UTC)},
	})

	out := buf.String()
	assert.Contains(t, out, "Price history (7d, YES +7c)")
	assert.Contains(t, out, "2026-03-08 12:00")
	assert.Contains(t, out, "53c")

	buf.Reset()
	renderChart(&buf, "1h", nil)
	assert.Contains(t, buf.String(), "No price history for 1h.")
}

func TestRootCommandRegistersSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"run", "quote", "markets", "orderbook", "dev-login", "session", "trade", "positions", "orders", "history", "wallets"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}
