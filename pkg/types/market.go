package types

import (
	"strings"
	"time"
)

// Market status values reported by the backend.
const (
	MarketStatusDraft     = "DRAFT"
	MarketStatusActive    = "ACTIVE"
	MarketStatusPaused    = "PAUSED"
	MarketStatusResolved  = "RESOLVED"
	MarketStatusCancelled = "CANCELLED"
)

// Market represents a market from the Market View backend.
type Market struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	Description      string          `json:"description,omitempty"`
	Category         string          `json:"category"`
	Status           string          `json:"status"`
	Resolution       string          `json:"resolution"` // PENDING, YES, NO, INVALID
	YesPrice         float64         `json:"yesPrice"`
	NoPrice          float64         `json:"noPrice"`
	Volume           float64         `json:"volume"`
	Liquidity        float64         `json:"liquidity"`
	EndDate          time.Time       `json:"endDate"`
	IsLive           bool            `json:"isLive"`
	TrendingScore    float64         `json:"trendingScore,omitempty"`
	ImageURL         string          `json:"imageUrl,omitempty"`
	ResolutionSource string          `json:"resolutionSource,omitempty"`
	Outcomes         []MarketOutcome `json:"outcomes,omitempty"` // Only set for multi-outcome markets
	CreatedAt        time.Time       `json:"createdAt"`
}

// MarketOutcome is one row of a multi-outcome market.
type MarketOutcome struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// IsMultiOutcome reports whether the market has more than two outcomes.
func (m *Market) IsMultiOutcome() bool {
	return len(m.Outcomes) > 2
}

// OutcomeRows returns the rows a trading widget would show: the explicit
// outcomes for multi-outcome markets, or a synthetic Yes/No pair.
func (m *Market) OutcomeRows() []MarketOutcome {
	if m.IsMultiOutcome() {
		return m.Outcomes
	}

	return []MarketOutcome{
		{Name: "Yes", Price: m.YesPrice},
		{Name: "No", Price: m.NoPrice},
	}
}

// MarketsPage is a cursor-paginated list of markets.
type MarketsPage struct {
	Markets    []Market `json:"markets"`
	NextCursor *string  `json:"nextCursor"`
	HasMore    bool     `json:"hasMore"`
}

// Chart ranges accepted by GET /markets/:id/chart.
const (
	ChartRange1h  = "1h"
	ChartRange6h  = "6h"
	ChartRange24h = "24h"
	ChartRange7d  = "7d"
	ChartRange30d = "30d"
	ChartRangeAll = "all"
)

// IsValidChartRange reports whether r is a chart range the backend accepts.
func IsValidChartRange(r string) bool {
	switch r {
	case ChartRange1h, ChartRange6h, ChartRange24h, ChartRange7d, ChartRange30d, ChartRangeAll:
		return true
	default:
		return false
	}
}

// PricePoint is one point of a market's price history.
type PricePoint struct {
	YesPrice  float64   `json:"yesPrice"`
	NoPrice   float64   `json:"noPrice"`
	Volume    float64   `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// CategoryCount is a market category and how many markets it holds.
type CategoryCount struct {
	Category string        `json:"category"`
	Count    CategoryTally `json:"_count"`
}

// CategoryTally mirrors the backend's aggregate count object.
type CategoryTally struct {
	ID int `json:"id"`
}

// MarketQuery holds the filters accepted by GET /markets.
type MarketQuery struct {
	Status   string
	Category string
	Sort     string // trending, newest, ending_soon, volume, liquidity
	Search   string
	Cursor   string
	Limit    int
}

// Outcome values used on the wire.
const (
	OutcomeYes = "YES"
	OutcomeNo  = "NO"
)

// NormalizeOutcome upper-cases a yes/no outcome. Anything else is returned unchanged.
func NormalizeOutcome(outcome string) string {
	switch strings.ToUpper(strings.TrimSpace(outcome)) {
	case OutcomeYes:
		return OutcomeYes
	case OutcomeNo:
		return OutcomeNo
	default:
		return outcome
	}
}
