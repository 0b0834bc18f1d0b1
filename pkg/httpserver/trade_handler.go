package httpserver

import (
	"context"
	"net/http"

	json "github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/mselser95/marketview/internal/gate"
	"github.com/mselser95/marketview/internal/quote"
)

// handleTrade handles POST /api/trades. Input validation is part of the
// submission flow, so only malformed JSON is rejected here.
func (h *handler) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req gate.TradeRequest
	err := json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		h.writeError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	h.fillMarketData(r.Context(), &req)

	result := h.submitter.Submit(r.Context(), req)

	status := http.StatusOK
	switch result.Status {
	case gate.StatusRejected:
		status = http.StatusUnprocessableEntity
	case gate.StatusFailed:
		status = http.StatusBadGateway
	case gate.StatusAccepted:
	}

	h.writeJSON(w, status, result)
}

// fillMarketData supplies the outcome count and the side price from the
// catalog and the live feed when the request leaves them out.
func (h *handler) fillMarketData(ctx context.Context, req *gate.TradeRequest) {
	needPrice := req.OrderType == quote.OrderTypeMarket && req.MarketPrice <= 0
	if !needPrice && req.OutcomeCount > 0 {
		return
	}

	if h.markets == nil || !gate.IsValidMarketID(req.MarketID) {
		return
	}

	market, err := h.markets.Market(ctx, req.MarketID)
	if err != nil {
		h.logger.Debug("trade-market-lookup-failed",
			zap.String("market-id", req.MarketID),
			zap.Error(err))
		return
	}

	if req.OutcomeCount == 0 {
		req.OutcomeCount = len(market.OutcomeRows())
	}

	if needPrice {
		price := quote.SidePrice(market.YesPrice, req.Side)
		if req.Side == quote.SideNo && market.NoPrice > 0 {
			price = market.NoPrice
		}
		if h.prices != nil {
			price = h.prices.SidePrice(req.MarketID, req.Side, price)
		}
		req.MarketPrice = price
	}
}
