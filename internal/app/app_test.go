package app

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mselser95/marketview/internal/gate"
	"github.com/mselser95/marketview/internal/testutil"
	"github.com/mselser95/marketview/pkg/config"
	"github.com/mselser95/marketview/pkg/httpserver"
	"github.com/mselser95/marketview/pkg/types"
)

const testMarketID = "8c1d2e3f-4a5b-4c6d-8e7f-901234567890"

func testConfig(backend *testutil.MockBackend) *config.Config {
	return &config.Config{
		LogLevel:                "debug",
		HTTPPort:                "0",
		APIBaseURL:              backend.URL,
		WSURL:                   backend.WSURL(),
		APITimeout:              5 * time.Second,
		APIRateLimit:            100,
		APIRateBurst:            10,
		WSDialTimeout:           2 * time.Second,
		WSPongTimeout:           5 * time.Second,
		WSPingInterval:          time.Second,
		WSReconnectInitialDelay: 50 * time.Millisecond,
		WSReconnectMaxDelay:     time.Second,
		WSReconnectBackoffMult:  2,
		WSMessageBufferSize:     100,
		MarketCacheTTL:          15 * time.Second,
		MarketListCacheTTL:      30 * time.Second,
		OrderbookCacheTTL:       5 * time.Second,
		WalletPolicy:            "phantom-first",
		SessionStore:            "memory",
		DevLoginEnabled:         true,
		SessionSyncTimeout:      5 * time.Second,
		JournalMode:             "none",
	}
}

func startApp(t *testing.T, opts *Options) (*App, *testutil.MockBackend, http.Handler) {
	t.Helper()

	backend := testutil.NewMockBackend()
	t.Cleanup(backend.Close)
	backend.AddMarket(testutil.CreateTestMarket(testMarketID, "Will it rain tomorrow?", 0.25))

	a, err := New(testConfig(backend), zaptest.NewLogger(t), opts)
	require.NoError(t, err)

	require.NoError(t, a.Start())
	t.Cleanup(func() { _ = a.Shutdown() })

	return a, backend, a.httpServer.Handler()
}

func post(t *testing.T, h http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	return rec
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) gate.Result {
	t.Helper()

	var result gate.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	return result
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, zaptest.NewLogger(t), nil)
	require.Error(t, err)

	backend := testutil.NewMockBackend()
	defer backend.Close()

	_, err = New(testConfig(backend), nil, nil)
	require.Error(t, err)

	cfg := testConfig(backend)
	cfg.WalletPreferenceOrder = "phantom,unknown-wallet"
	_, err = New(cfg, zaptest.NewLogger(t), nil)
	require.Error(t, err)
}

func TestApp_TradeWithoutSessionIsRejected(t *testing.T) {
	_, backend, h := startApp(t, nil)

	rec := post(t, h, "/api/trades",
		`{"marketId":"`+testMarketID+`","side":"yes","orderType":"market","amount":10}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	result := decodeResult(t, rec)
	assert.Equal(t, gate.StatusRejected, result.Status)
	assert.Equal(t, gate.MsgConnectWallet, result.Message)
	assert.Empty(t, backend.Executions())
}

func TestApp_DevLoginAndMarketTrade(t *testing.T) {
	_, backend, h := startApp(t, nil)

	rec := post(t, h, "/api/session/dev-login", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var sess httpserver.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.True(t, sess.IsDevUser)
	assert.True(t, sess.HasToken)
	assert.True(t, strings.HasPrefix(sess.WalletAddress, "0x"))

	rec = post(t, h, "/api/trades",
		`{"marketId":"`+testMarketID+`","side":"yes","orderType":"market","amount":10}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decodeResult(t, rec)
	assert.Equal(t, gate.StatusAccepted, result.Status)
	assert.Equal(t, gate.MsgTradeExecuted, result.Message)

	executions := backend.Executions()
	require.Len(t, executions, 1)
	assert.Equal(t, "YES", executions[0].Outcome)
	assert.Equal(t, "BUY", executions[0].Side)
	assert.InDelta(t, 40, executions[0].Shares, 1e-9)
	assert.Equal(t, "Bearer demo-token-demo-user-1", backend.AuthHeader("POST /trades/execute"))
}

func TestApp_ProviderSyncAndLimitOrder(t *testing.T) {
	_, backend, h := startApp(t, nil)

	rec := post(t, h, "/api/session/provider", `{
		"ready": true,
		"authenticated": true,
		"accessToken": "privy-access",
		"user": {
			"id": "did:privy:alice",
			"email": "alice@example.com",
			"wallets": [
				{"address": "0x00000000000000000000000000000000000000bb", "walletClientType": "metamask"},
				{"address": "0x00000000000000000000000000000000000000aa", "walletClientType": "phantom"}
			]
		}
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var sess httpserver.SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.True(t, sess.HasToken)

	syncs := backend.Syncs()
	require.Len(t, syncs, 1)
	assert.Equal(t, "did:privy:alice", syncs[0].PrivyID)
	assert.True(t, strings.EqualFold("0x00000000000000000000000000000000000000aa", syncs[0].WalletAddress),
		"phantom wallet should win, got %s", syncs[0].WalletAddress)

	// A second observation of the same identity does not sync again.
	post(t, h, "/api/session/provider",
		`{"ready":true,"authenticated":true,"accessToken":"privy-access","user":{"id":"did:privy:alice"}}`)
	assert.Len(t, backend.Syncs(), 1)

	rec = post(t, h, "/api/trades",
		`{"marketId":"`+testMarketID+`","side":"no","orderType":"limit","shares":50,"limitCents":60}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decodeResult(t, rec)
	assert.Equal(t, gate.MsgLimitOrderPlaced, result.Message)

	orders := backend.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, "NO", orders[0].Outcome)
	assert.InDelta(t, 0.6, orders[0].Price, 1e-9)
	assert.InDelta(t, 50, orders[0].Shares, 1e-9)
	assert.Equal(t, "Bearer sync-token", backend.AuthHeader("POST /trades/order"))
}

func TestApp_TradeOnUnknownMarketIsNotTradable(t *testing.T) {
	_, backend, h := startApp(t, nil)

	require.Equal(t, http.StatusOK, post(t, h, "/api/session/dev-login", "").Code)

	rec := post(t, h, "/api/trades",
		`{"marketId":"00000000-0000-4000-8000-000000000000","side":"yes","orderType":"limit","shares":10,"limitCents":40}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	result := decodeResult(t, rec)
	assert.Equal(t, gate.StatusRejected, result.Status)
	assert.Equal(t, gate.OutcomeNotTradable, result.Decision)
	assert.Empty(t, backend.Orders())
}

func TestApp_DevLoginReleasesLogoutPoll(t *testing.T) {
	_, _, h := startApp(t, nil)

	rec := post(t, h, "/api/session/provider",
		`{"ready":true,"authenticated":true,"accessToken":"privy-access","user":{"id":"did:privy:dana"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	done := make(chan *httptest.ResponseRecorder, 1)
	go func() {
		req := httptest.NewRequest(http.MethodGet, "/api/session/logout?since=0", nil)
		poll := httptest.NewRecorder()
		h.ServeHTTP(poll, req)
		done <- poll
	}()

	require.Equal(t, http.StatusOK, post(t, h, "/api/session/dev-login", "").Code)

	select {
	case poll := <-done:
		require.Equal(t, http.StatusOK, poll.Code)
		var resp httpserver.LogoutResponse
		require.NoError(t, json.Unmarshal(poll.Body.Bytes(), &resp))
		assert.Equal(t, uint64(1), resp.LogoutEpoch)
	case <-time.After(2 * time.Second):
		t.Fatal("logout poll was not released by dev login")
	}
}

func TestApp_MarketHistoryThroughDaemon(t *testing.T) {
	_, _, h := startApp(t, nil)

	require.Equal(t, http.StatusOK, post(t, h, "/api/session/dev-login", "").Code)
	rec := post(t, h, "/api/trades",
		`{"marketId":"`+testMarketID+`","side":"yes","orderType":"market","amount":5}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = get(t, h, "/api/markets/"+testMarketID+"/trades")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var page types.TradesPage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
	require.Len(t, page.Trades, 1)
	assert.Equal(t, types.OutcomeYes, page.Trades[0].Outcome)

	rec = get(t, h, "/api/markets/"+testMarketID+"/chart?range=7d")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var points []types.PricePoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &points))
	require.Len(t, points, 1)
	assert.InDelta(t, 0.25, points[0].YesPrice, 1e-9)

	rec = get(t, h, "/api/markets/meta/categories")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var categories []types.CategoryCount
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &categories))
	require.Len(t, categories, 1)
	assert.Equal(t, "crypto", categories[0].Category)
	assert.Equal(t, 1, categories[0].Count.ID)
}

func TestApp_BackendErrorIsSurfaced(t *testing.T) {
	_, backend, h := startApp(t, nil)

	require.Equal(t, http.StatusOK, post(t, h, "/api/session/dev-login", "").Code)

	backend.Fail("POST /trades/execute", &types.APIError{
		Status:  http.StatusBadRequest,
		Code:    types.ErrCodeInsufficientFunds,
		Message: "Insufficient balance",
	})

	rec := post(t, h, "/api/trades",
		`{"marketId":"`+testMarketID+`","side":"yes","orderType":"market","amount":10,"marketPrice":0.25}`)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	result := decodeResult(t, rec)
	assert.Equal(t, gate.StatusFailed, result.Status)
	assert.Equal(t, "Insufficient balance", result.Message)
}

func TestApp_LivePriceFeed(t *testing.T) {
	a, backend, h := startApp(t, &Options{WatchMarkets: []string{testMarketID}})

	require.Eventually(t, func() bool {
		for _, frame := range backend.WSFrames() {
			if frame["type"] == "SUBSCRIBE_MARKET" && frame["marketId"] == testMarketID {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, backend.Publish("market:"+testMarketID+":price",
		map[string]float64{"yesPrice": 0.5, "noPrice": 0.5}))

	require.Eventually(t, func() bool {
		snapshot, ok := a.priceFeed.Price(testMarketID)
		return ok && snapshot.YesPrice == 0.5
	}, 2*time.Second, 20*time.Millisecond)

	require.Equal(t, http.StatusOK, post(t, h, "/api/session/dev-login", "").Code)

	rec := post(t, h, "/api/trades",
		`{"marketId":"`+testMarketID+`","side":"yes","orderType":"market","amount":10}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	executions := backend.Executions()
	require.Len(t, executions, 1)
	assert.InDelta(t, 20, executions[0].Shares, 1e-9)
}

func TestApp_WatchTrendingSubscribesDiscoveredMarkets(t *testing.T) {
	backend := testutil.NewMockBackend()
	t.Cleanup(backend.Close)
	backend.AddMarket(testutil.CreateTestMarket(testMarketID, "Will it rain tomorrow?", 0.25))
	backend.SetTrending(testMarketID)

	cfg := testConfig(backend)
	cfg.TrendingPollInterval = 50 * time.Millisecond

	a, err := New(cfg, zaptest.NewLogger(t), &Options{WatchTrending: true})
	require.NoError(t, err)
	require.NotNil(t, a.discovery)

	require.NoError(t, a.Start())
	t.Cleanup(func() { _ = a.Shutdown() })

	require.Eventually(t, func() bool {
		for _, frame := range backend.WSFrames() {
			if frame["type"] == "SUBSCRIBE_MARKET" && frame["marketId"] == testMarketID {
				return true
			}
		}
		return false
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, []string{testMarketID}, a.discovery.Watched())
	assert.GreaterOrEqual(t, backend.Calls("GET /markets/trending"), 1)
}
