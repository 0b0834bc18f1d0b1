// Package testutil provides an in-process Market View backend for tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/mselser95/marketview/pkg/types"
)

// MockBackend simulates the backend REST API and its WebSocket.
type MockBackend struct {
	*httptest.Server

	mu         sync.RWMutex
	markets    map[string]*types.Market
	trending   []string
	books      map[string]*types.Orderbook
	verify     *types.VerifyResponse
	syncToken  string
	demoUserID string
	failures   map[string]*types.APIError // keyed by "METHOD path-pattern"
	calls      map[string]int
	authHeader map[string]string
	orders     []types.OrderRequest
	executions []types.ExecuteRequest
	trades     []types.Trade
	syncs      []types.SyncRequest
	wsConns    []*websocket.Conn
	wsFrames   []map[string]any
	upgrader   websocket.Upgrader
}

// NewMockBackend starts a mock backend. Verify returns no wallets, sync
// returns "sync-token" and the demo user is "demo-user-1".
func NewMockBackend() *MockBackend {
	m := &MockBackend{
		markets:    make(map[string]*types.Market),
		books:      make(map[string]*types.Orderbook),
		syncToken:  "sync-token",
		demoUserID: "demo-user-1",
		failures:   make(map[string]*types.APIError),
		calls:      make(map[string]int),
		authHeader: make(map[string]string),
	}

	r := chi.NewRouter()
	r.Post("/auth/verify", m.wrap("POST /auth/verify", m.handleVerify))
	r.Post("/users/sync", m.wrap("POST /users/sync", m.handleSync))
	r.Post("/users/demo", m.wrap("POST /users/demo", m.handleDemo))
	r.Post("/users/demo-token/{id}", m.wrap("POST /users/demo-token", m.handleDemoToken))
	r.Post("/trades/order", m.wrap("POST /trades/order", m.handleOrder))
	r.Post("/trades/execute", m.wrap("POST /trades/execute", m.handleExecute))
	r.Get("/trades/orderbook/{marketId}", m.wrap("GET /trades/orderbook", m.handleOrderbook))
	r.Get("/markets/trending", m.wrap("GET /markets/trending", m.handleTrending))
	r.Get("/markets/meta/categories", m.wrap("GET /markets/meta/categories", m.handleCategories))
	r.Get("/markets/{id}", m.wrap("GET /markets", m.handleMarket))
	r.Get("/markets/{id}/chart", m.wrap("GET /markets/chart", m.handleChart))
	r.Get("/markets/{id}/trades", m.wrap("GET /markets/trades", m.handleMarketTrades))
	r.Get("/ws", m.handleWS)

	m.Server = httptest.NewServer(r)
	return m
}

// WSURL returns the WebSocket endpoint.
func (m *MockBackend) WSURL() string {
	return "ws" + strings.TrimPrefix(m.URL, "http") + "/ws"
}

// AddMarket registers a market.
func (m *MockBackend) AddMarket(market *types.Market) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markets[market.ID] = market
}

// SetTrending sets the IDs GET /markets/trending returns, in order.
// Unknown IDs are skipped.
func (m *MockBackend) SetTrending(ids ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trending = ids
}

// SetOrderbook registers an orderbook for a market.
func (m *MockBackend) SetOrderbook(marketID string, book *types.Orderbook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.books[marketID] = book
}

// SetVerifyResponse sets what POST /auth/verify returns.
func (m *MockBackend) SetVerifyResponse(resp *types.VerifyResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verify = resp
}

// Fail makes a route return err. Pass nil to clear it.
func (m *MockBackend) Fail(route string, err *types.APIError) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, route)
		return
	}
	m.failures[route] = err
}

// Calls returns how many times a route was hit.
func (m *MockBackend) Calls(route string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[route]
}

// AuthHeader returns the last Authorization header seen on a route.
func (m *MockBackend) AuthHeader(route string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.authHeader[route]
}

// Orders returns the limit orders received.
func (m *MockBackend) Orders() []types.OrderRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]types.OrderRequest(nil), m.orders...)
}

// Executions returns the market trades received.
func (m *MockBackend) Executions() []types.ExecuteRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]types.ExecuteRequest(nil), m.executions...)
}

// Syncs returns the user sync requests received.
func (m *MockBackend) Syncs() []types.SyncRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]types.SyncRequest(nil), m.syncs...)
}

// WSFrames returns the frames received from socket clients.
func (m *MockBackend) WSFrames() []map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]map[string]any(nil), m.wsFrames...)
}

// Publish sends a stream message to every connected socket client.
func (m *MockBackend) Publish(channel string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	msg := types.StreamMessage{Channel: channel, Data: raw, Timestamp: time.Now().UnixMilli()}

	m.mu.RLock()
	conns := append([]*websocket.Conn(nil), m.wsConns...)
	m.mu.RUnlock()

	for _, conn := range conns {
		err = conn.WriteJSON(msg)
		if err != nil {
			return err
		}
	}

	return nil
}

// wrap counts calls, records the auth header and applies configured failures.
func (m *MockBackend) wrap(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.calls[route]++
		m.authHeader[route] = r.Header.Get("Authorization")
		failure := m.failures[route]
		m.mu.Unlock()

		if failure != nil {
			WriteError(w, failure.Status, failure.Code, failure.Message)
			return
		}

		next(w, r)
	}
}

func (m *MockBackend) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req types.VerifyRequest
	if !decode(w, r, &req) {
		return
	}

	m.mu.RLock()
	resp := m.verify
	m.mu.RUnlock()

	if resp == nil {
		resp = &types.VerifyResponse{User: types.APIUser{ID: "user-1"}}
	}

	WriteData(w, resp)
}

func (m *MockBackend) handleSync(w http.ResponseWriter, r *http.Request) {
	var req types.SyncRequest
	if !decode(w, r, &req) {
		return
	}

	m.mu.Lock()
	m.syncs = append(m.syncs, req)
	token := m.syncToken
	m.mu.Unlock()

	WriteData(w, types.SyncResponse{
		User: types.APIUser{
			ID:            "user-1",
			PrivyID:       req.PrivyID,
			WalletAddress: req.WalletAddress,
			Email:         req.Email,
			DisplayName:   req.DisplayName,
		},
		Token: token,
	})
}

func (m *MockBackend) handleDemo(w http.ResponseWriter, r *http.Request) {
	var req types.DemoUsersRequest
	if !decode(w, r, &req) {
		return
	}

	m.mu.RLock()
	id := m.demoUserID
	m.mu.RUnlock()

	WriteData(w, []types.DemoUser{{ID: id, DisplayName: "Demo Trader"}})
}

func (m *MockBackend) handleDemoToken(w http.ResponseWriter, r *http.Request) {
	WriteData(w, types.TokenResponse{Token: "demo-token-" + chi.URLParam(r, "id")})
}

func (m *MockBackend) handleOrder(w http.ResponseWriter, r *http.Request) {
	var req types.OrderRequest
	if !decode(w, r, &req) {
		return
	}

	m.mu.Lock()
	m.orders = append(m.orders, req)
	n := len(m.orders)
	m.mu.Unlock()

	WriteData(w, types.Order{
		ID:        "order-" + itoa(n),
		MarketID:  req.MarketID,
		Side:      req.Side,
		Outcome:   req.Outcome,
		Price:     req.Price,
		Shares:    req.Shares,
		Status:    "OPEN",
		ExpiresAt: req.ExpiresAt,
		CreatedAt: time.Now().UTC(),
	})
}

func (m *MockBackend) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req types.ExecuteRequest
	if !decode(w, r, &req) {
		return
	}

	m.mu.Lock()
	m.executions = append(m.executions, req)
	n := len(m.executions)
	market := m.markets[req.MarketID]

	price := 0.5
	if market != nil {
		price = market.YesPrice
		if req.Outcome == types.OutcomeNo {
			price = market.NoPrice
		}
	}

	trade := types.Trade{
		ID:          "trade-" + itoa(n),
		MarketID:    req.MarketID,
		Side:        req.Side,
		Outcome:     req.Outcome,
		Shares:      req.Shares,
		Price:       price,
		TotalAmount: req.Shares * price,
		Status:      "CONFIRMED",
		CreatedAt:   time.Now().UTC(),
	}
	m.trades = append(m.trades, trade)
	m.mu.Unlock()

	WriteData(w, trade)
}

func (m *MockBackend) handleOrderbook(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	book, ok := m.books[chi.URLParam(r, "marketId")]
	m.mu.RUnlock()

	if !ok {
		book = &types.Orderbook{}
	}

	WriteData(w, book)
}

func (m *MockBackend) handleMarket(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	market, ok := m.markets[chi.URLParam(r, "id")]
	m.mu.RUnlock()

	if !ok {
		WriteError(w, http.StatusNotFound, types.ErrCodeNotFound, "Market not found")
		return
	}

	WriteData(w, market)
}

// handleChart returns a single point at the market's current price.
func (m *MockBackend) handleChart(w http.ResponseWriter, r *http.Request) {
	m.mu.RLock()
	market, ok := m.markets[chi.URLParam(r, "id")]
	m.mu.RUnlock()

	if !ok {
		WriteError(w, http.StatusNotFound, types.ErrCodeNotFound, "Market not found")
		return
	}

	WriteData(w, []types.PricePoint{{
		YesPrice:  market.YesPrice,
		NoPrice:   market.NoPrice,
		Volume:    market.Volume,
		Timestamp: time.Now().UTC(),
	}})
}

// handleMarketTrades returns every executed trade on the market in one page.
func (m *MockBackend) handleMarketTrades(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	m.mu.RLock()
	trades := make([]types.Trade, 0)
	for _, t := range m.trades {
		if t.MarketID == id {
			trades = append(trades, t)
		}
	}
	m.mu.RUnlock()

	WriteData(w, types.TradesPage{Trades: trades})
}

func (m *MockBackend) handleCategories(w http.ResponseWriter, _ *http.Request) {
	m.mu.RLock()
	counts := make(map[string]int)
	for _, market := range m.markets {
		counts[market.Category]++
	}
	m.mu.RUnlock()

	list := make([]types.CategoryCount, 0, len(counts))
	for category, n := range counts {
		list = append(list, types.CategoryCount{Category: category, Count: types.CategoryTally{ID: n}})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Category < list[j].Category })

	WriteData(w, list)
}

func (m *MockBackend) handleTrending(w http.ResponseWriter, _ *http.Request) {
	m.mu.RLock()
	list := make([]*types.Market, 0, len(m.trending))
	for _, id := range m.trending {
		if market, ok := m.markets[id]; ok {
			list = append(list, market)
		}
	}
	m.mu.RUnlock()

	WriteData(w, list)
}

func (m *MockBackend) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	m.mu.Lock()
	m.wsConns = append(m.wsConns, conn)
	m.mu.Unlock()

	for {
		var frame map[string]any
		err := conn.ReadJSON(&frame)
		if err != nil {
			return
		}

		m.mu.Lock()
		m.wsFrames = append(m.wsFrames, frame)
		m.mu.Unlock()
	}
}

// WriteData writes a success envelope.
func WriteData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": data})
}

// WriteError writes a failure envelope.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err != nil {
		WriteError(w, http.StatusBadRequest, types.ErrCodeValidation, "Invalid request body")
		return false
	}
	return true
}
