// Package quote computes the share, return and profit figures shown before a
// trade is confirmed. Every function is pure and never returns NaN or Inf.
package quote

import (
	"math"

	"github.com/shopspring/decimal"
)

// Side is the outcome being bought.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// OrderType selects which input is independent.
type OrderType string

const (
	// OrderTypeMarket takes an amount and derives shares from the live price.
	OrderTypeMarket OrderType = "market"
	// OrderTypeLimit takes shares and derives the amount from a target price.
	OrderTypeLimit OrderType = "limit"
)

// Quote is the derived preview of a trade.
type Quote struct {
	Side            Side      `json:"side"`
	OrderType       OrderType `json:"orderType"`
	UnitPrice       float64   `json:"unitPrice"`
	Amount          float64   `json:"amount"`
	Shares          float64   `json:"shares"`
	PotentialReturn float64   `json:"potentialReturn"`
	Profit          float64   `json:"profit"`
	CanSubmit       bool      `json:"canSubmit"`
}

// Request carries the raw inputs collected by a trading widget.
type Request struct {
	Side        Side      `json:"side"`
	OrderType   OrderType `json:"orderType"`
	Amount      float64   `json:"amount"`      // Market orders
	Shares      float64   `json:"shares"`      // Limit orders
	MarketPrice float64   `json:"marketPrice"` // Live price of the selected side
	LimitCents  float64   `json:"limitCents"`  // Limit orders, 0-100
}

// Compute dispatches on the order type. Unknown order types yield a zero quote.
func Compute(req Request) Quote {
	var q Quote

	switch req.OrderType {
	case OrderTypeMarket:
		q = Market(req.Amount, req.MarketPrice)
	case OrderTypeLimit:
		q = LimitFromCents(req.Shares, req.LimitCents)
	default:
		q = Quote{}
	}

	q.Side = req.Side
	q.OrderType = req.OrderType

	return q
}

// Market quotes a market order: shares = amount / unitPrice.
func Market(amount, unitPrice float64) Quote {
	if !validPrice(unitPrice) || !positive(amount) {
		return Quote{OrderType: OrderTypeMarket}
	}

	shares := amount / unitPrice
	if !finite(shares) {
		return Quote{OrderType: OrderTypeMarket}
	}

	return Quote{
		OrderType:       OrderTypeMarket,
		UnitPrice:       unitPrice,
		Amount:          amount,
		Shares:          shares,
		PotentialReturn: shares,
		Profit:          shares - amount,
		CanSubmit:       true,
	}
}

// Limit quotes a limit order: amount = shares * limitPrice.
func Limit(shares, limitPrice float64) Quote {
	if !validPrice(limitPrice) || !positive(shares) {
		return Quote{OrderType: OrderTypeLimit}
	}

	amount := shares * limitPrice
	if !finite(amount) {
		return Quote{OrderType: OrderTypeLimit}
	}

	return Quote{
		OrderType:       OrderTypeLimit,
		UnitPrice:       limitPrice,
		Amount:          amount,
		Shares:          shares,
		PotentialReturn: shares,
		Profit:          shares - amount,
		CanSubmit:       true,
	}
}

// LimitFromCents quotes a limit order whose price is given in cents (0-100).
func LimitFromCents(shares, cents float64) Quote {
	return Limit(shares, cents/100)
}

// SidePrice returns the price of the chosen side given the outcome's yes price.
func SidePrice(outcomePrice float64, side Side) float64 {
	if side == SideNo {
		return 1 - outcomePrice
	}
	return outcomePrice
}

// PricePercentage returns the price as whole cents, rounding half up.
// Rounding is done on the shortest decimal form of the price so that
// 0.285 becomes 29 rather than 28.
func PricePercentage(unitPrice float64) int {
	if !finite(unitPrice) {
		return 0
	}

	cents := decimal.NewFromFloat(unitPrice).Shift(2).Round(0)
	return int(cents.IntPart())
}

func validPrice(p float64) bool {
	return finite(p) && p > 0 && p <= 1
}

func positive(v float64) bool {
	return finite(v) && v > 0
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
