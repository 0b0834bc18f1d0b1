package httpserver

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mselser95/marketview/pkg/types"
)

const maxTradesPageSize = 100

// handleMarket handles GET /api/markets/{marketId}.
func (h *handler) handleMarket(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketId")

	market, err := h.markets.Market(r.Context(), marketID)
	if err != nil {
		h.writeBackendError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, market)
}

// handleOrderbook handles GET /api/orderbook/{marketId}.
func (h *handler) handleOrderbook(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketId")

	h.logger.Debug("orderbook-request-received", zap.String("market-id", marketID))

	book, err := h.markets.Orderbook(r.Context(), marketID)
	if err != nil {
		h.writeBackendError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, book)
}

// handleChart handles GET /api/markets/{marketId}/chart?range=.
func (h *handler) handleChart(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketId")

	rng := r.URL.Query().Get("range")
	if rng == "" {
		rng = types.ChartRange24h
	}

	if !types.IsValidChartRange(rng) {
		h.writeError(w, "range must be one of 1h, 6h, 24h, 7d, 30d, all", http.StatusBadRequest)
		return
	}

	points, err := h.markets.Chart(r.Context(), marketID, rng)
	if err != nil {
		h.writeBackendError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, points)
}

// handleMarketTrades handles GET /api/markets/{marketId}/trades?cursor=&limit=.
func (h *handler) handleMarketTrades(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketId")
	query := r.URL.Query()

	limit := 20
	if raw := query.Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > maxTradesPageSize {
			h.writeError(w, "limit must be between 1 and 100", http.StatusBadRequest)
			return
		}
		limit = v
	}

	page, err := h.markets.Trades(r.Context(), marketID, query.Get("cursor"), limit)
	if err != nil {
		h.writeBackendError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, page)
}

// handleCategories handles GET /api/markets/meta/categories.
func (h *handler) handleCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.markets.Categories(r.Context())
	if err != nil {
		h.writeBackendError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, categories)
}
