package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/mselser95/marketview/pkg/types"
)

// ListMarkets returns one page of markets matching the query.
func (c *Client) ListMarkets(ctx context.Context, q types.MarketQuery) (*types.MarketsPage, error) {
	params := url.Values{}
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	if q.Category != "" {
		params.Set("category", q.Category)
	}
	if q.Sort != "" {
		params.Set("sort", q.Sort)
	}
	if q.Search != "" {
		params.Set("search", q.Search)
	}
	if q.Cursor != "" {
		params.Set("cursor", q.Cursor)
	}
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}

	path := "/markets"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var page types.MarketsPage

	err := c.do(ctx, http.MethodGet, "markets_list", path, nil, &page)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}

	return &page, nil
}

// TrendingMarkets returns the backend's trending markets.
func (c *Client) TrendingMarkets(ctx context.Context) ([]types.Market, error) {
	var markets []types.Market

	err := c.do(ctx, http.MethodGet, "markets_trending", "/markets/trending", nil, &markets)
	if err != nil {
		return nil, fmt.Errorf("get trending markets: %w", err)
	}

	return markets, nil
}

// GetMarket returns a single market by ID.
func (c *Client) GetMarket(ctx context.Context, id string) (*types.Market, error) {
	var market types.Market

	err := c.do(ctx, http.MethodGet, "markets_get", "/markets/"+url.PathEscape(id), nil, &market)
	if err != nil {
		return nil, fmt.Errorf("get market %s: %w", id, err)
	}

	return &market, nil
}

// MarketChart returns the price history of a market over rng. An empty
// range asks for the last 24 hours.
func (c *Client) MarketChart(ctx context.Context, id, rng string) ([]types.PricePoint, error) {
	if rng == "" {
		rng = types.ChartRange24h
	}

	if !types.IsValidChartRange(rng) {
		return nil, fmt.Errorf("invalid chart range %q", rng)
	}

	path := "/markets/" + url.PathEscape(id) + "/chart?range=" + url.QueryEscape(rng)

	var points []types.PricePoint

	err := c.do(ctx, http.MethodGet, "markets_chart", path, nil, &points)
	if err != nil {
		return nil, fmt.Errorf("get market chart %s: %w", id, err)
	}

	return points, nil
}

// MarketTrades returns one page of a market's public trades.
func (c *Client) MarketTrades(ctx context.Context, id, cursor string, limit int) (*types.TradesPage, error) {
	params := url.Values{}
	if limit <= 0 {
		limit = 20
	}
	params.Set("limit", strconv.Itoa(limit))
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	path := "/markets/" + url.PathEscape(id) + "/trades?" + params.Encode()

	var page types.TradesPage

	err := c.do(ctx, http.MethodGet, "markets_trades", path, nil, &page)
	if err != nil {
		return nil, fmt.Errorf("get market trades %s: %w", id, err)
	}

	return &page, nil
}

// Categories returns the market categories with their market counts.
func (c *Client) Categories(ctx context.Context) ([]types.CategoryCount, error) {
	var categories []types.CategoryCount

	err := c.do(ctx, http.MethodGet, "markets_categories", "/markets/meta/categories", nil, &categories)
	if err != nil {
		return nil, fmt.Errorf("get categories: %w", err)
	}

	return categories, nil
}
