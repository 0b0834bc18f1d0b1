package types

import "time"

// Wire side values.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// OrderRequest is the body of POST /trades/order.
type OrderRequest struct {
	MarketID  string  `json:"marketId"`
	Side      string  `json:"side"`
	Outcome   string  `json:"outcome"`
	Shares    float64 `json:"shares"`
	Price     float64 `json:"price"`
	ExpiresAt string  `json:"expiresAt,omitempty"`
}

// ExecuteRequest is the body of POST /trades/execute.
type ExecuteRequest struct {
	MarketID    string  `json:"marketId"`
	Side        string  `json:"side"`
	Outcome     string  `json:"outcome"`
	Shares      float64 `json:"shares"`
	TxSignature string  `json:"txSignature,omitempty"`
}

// Order is a resting limit order.
type Order struct {
	ID           string    `json:"id"`
	MarketID     string    `json:"marketId"`
	UserID       string    `json:"userId"`
	Side         string    `json:"side"`
	Outcome      string    `json:"outcome"`
	Price        float64   `json:"price"`
	Shares       float64   `json:"shares"`
	FilledShares float64   `json:"filledShares"`
	Status       string    `json:"status"` // OPEN, PARTIAL, FILLED, CANCELLED, EXPIRED
	ExpiresAt    string    `json:"expiresAt,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Trade is an executed trade.
type Trade struct {
	ID          string    `json:"id"`
	MarketID    string    `json:"marketId"`
	UserID      string    `json:"userId"`
	Side        string    `json:"side"`
	Outcome     string    `json:"outcome"`
	Shares      float64   `json:"shares"`
	Price       float64   `json:"price"`
	TotalAmount float64   `json:"totalAmount"`
	Status      string    `json:"status"` // PENDING, CONFIRMED, FAILED
	TxSignature string    `json:"txSignature,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Reference returns the identifier shown to the user for a trade.
func (t *Trade) Reference() string {
	if t.TxSignature != "" {
		return t.TxSignature
	}
	return t.ID
}

// TradesPage is a cursor-paginated list of trades.
type TradesPage struct {
	Trades     []Trade `json:"trades"`
	NextCursor *string `json:"nextCursor"`
	HasMore    bool    `json:"hasMore"`
}

// Position is a holding in one outcome of a market.
type Position struct {
	ID            string  `json:"id"`
	MarketID      string  `json:"marketId"`
	UserID        string  `json:"userId"`
	Outcome       string  `json:"outcome"`
	Shares        float64 `json:"shares"`
	AvgPrice      float64 `json:"avgPrice"`
	TotalInvested float64 `json:"totalInvested"`
}
