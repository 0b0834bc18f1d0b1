package httpserver

import (
	"net/http"

	"github.com/mselser95/marketview/internal/quote"
)

type quoteRequest struct {
	Side        quote.Side      `json:"side" validate:"required,oneof=yes no"`
	OrderType   quote.OrderType `json:"orderType" validate:"required,oneof=market limit"`
	Amount      float64         `json:"amount" validate:"gte=0"`
	Shares      float64         `json:"shares" validate:"gte=0"`
	MarketPrice float64         `json:"marketPrice" validate:"gte=0,lte=1"`
	LimitCents  float64         `json:"limitCents" validate:"gte=0,lte=100"`
}

// QuoteResponse is the preview of a trade.
type QuoteResponse struct {
	quote.Quote
	PricePercentage int `json:"pricePercentage"`
}

// handleQuote handles POST /api/quote.
func (h *handler) handleQuote(w http.ResponseWriter, r *http.Request) {
	var req quoteRequest
	if !h.decode(w, r, &req) {
		return
	}

	q := quote.Compute(quote.Request{
		Side:        req.Side,
		OrderType:   req.OrderType,
		Amount:      req.Amount,
		Shares:      req.Shares,
		MarketPrice: req.MarketPrice,
		LimitCents:  req.LimitCents,
	})

	h.writeJSON(w, http.StatusOK, QuoteResponse{
		Quote:           q,
		PricePercentage: quote.PricePercentage(q.UnitPrice),
	})
}
