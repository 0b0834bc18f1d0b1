package types

import (
	"encoding/json"
	"time"
)

// BookLevel is a single resting price level.
type BookLevel struct {
	Price  float64 `json:"price"`
	Shares float64 `json:"shares"`
}

// BookSide holds both sides of the book for one outcome.
type BookSide struct {
	Bids []BookLevel `json:"bids"`
	Asks []BookLevel `json:"asks"`
}

// Orderbook is the response of GET /trades/orderbook/:marketId.
type Orderbook struct {
	Yes BookSide `json:"yes"`
	No  BookSide `json:"no"`
}

// Spread returns best ask minus best bid, or false when either side is empty.
func (b BookSide) Spread() (float64, bool) {
	if len(b.Bids) == 0 || len(b.Asks) == 0 {
		return 0, false
	}
	return b.Asks[0].Price - b.Bids[0].Price, true
}

// StreamMessage is a message received from the backend WebSocket.
type StreamMessage struct {
	Channel   string          `json:"channel"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// PriceUpdate is the payload of a market:<id>:price channel message.
type PriceUpdate struct {
	MarketID string  `json:"marketId"`
	YesPrice float64 `json:"yesPrice"`
	NoPrice  float64 `json:"noPrice"`
	Volume   float64 `json:"volume,omitempty"`
}

// PriceSnapshot is the latest known price of a market held by the price feed.
type PriceSnapshot struct {
	MarketID    string
	YesPrice    float64
	NoPrice     float64
	LastUpdated time.Time
}
