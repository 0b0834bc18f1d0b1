package testutil

import (
	"strconv"
	"time"

	"github.com/mselser95/marketview/pkg/types"
)

// CreateTestMarket returns an active binary market.
func CreateTestMarket(id, title string, yesPrice float64) *types.Market {
	return &types.Market{
		ID:        id,
		Title:     title,
		Category:  "crypto",
		Status:    types.MarketStatusActive,
		YesPrice:  yesPrice,
		NoPrice:   1 - yesPrice,
		Volume:    1000,
		Liquidity: 500,
		EndDate:   time.Now().Add(30 * 24 * time.Hour).UTC(),
		CreatedAt: time.Now().UTC(),
	}
}

// CreateTestBook returns an orderbook with one level per side.
func CreateTestBook(yesBid, yesAsk float64) *types.Orderbook {
	return &types.Orderbook{
		Yes: types.BookSide{
			Bids: []types.BookLevel{{Price: yesBid, Shares: 100}},
			Asks: []types.BookLevel{{Price: yesAsk, Shares: 100}},
		},
		No: types.BookSide{
			Bids: []types.BookLevel{{Price: 1 - yesAsk, Shares: 100}},
			Asks: []types.BookLevel{{Price: 1 - yesBid, Shares: 100}},
		},
	}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
