// Package markets is a read-through cache over the backend's market
// endpoints: markets and market lists, charts, public trades, categories and
// orderbooks.
package markets

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mselser95/marketview/pkg/cache"
	"github.com/mselser95/marketview/pkg/types"
)

// Source is the backend the catalog reads through to.
type Source interface {
	GetMarket(ctx context.Context, id string) (*types.Market, error)
	ListMarkets(ctx context.Context, q types.MarketQuery) (*types.MarketsPage, error)
	TrendingMarkets(ctx context.Context) ([]types.Market, error)
	MarketChart(ctx context.Context, id, rng string) ([]types.PricePoint, error)
	MarketTrades(ctx context.Context, id, cursor string, limit int) (*types.TradesPage, error)
	Categories(ctx context.Context) ([]types.CategoryCount, error)
	Orderbook(ctx context.Context, marketID string) (*types.Orderbook, error)
}

// Config holds the catalog configuration.
type Config struct {
	Source       Source
	Cache        cache.Cache
	MarketTTL    time.Duration
	ListTTL      time.Duration
	OrderbookTTL time.Duration
	Logger       *zap.Logger
}

// Catalog serves markets and orderbooks from cache, loading misses from the
// backend. Concurrent misses for the same key share one backend call.
type Catalog struct {
	source       Source
	cache        cache.Cache
	marketTTL    time.Duration
	listTTL      time.Duration
	orderbookTTL time.Duration
	group        singleflight.Group
	logger       *zap.Logger
}

// NewCatalog creates a new catalog.
func NewCatalog(cfg *Config) (*Catalog, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.Source == nil {
		return nil, errors.New("source cannot be nil")
	}

	if cfg.Cache == nil {
		return nil, errors.New("cache cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Catalog{
		source:       cfg.Source,
		cache:        cfg.Cache,
		marketTTL:    orDefault(cfg.MarketTTL, 15*time.Second),
		listTTL:      orDefault(cfg.ListTTL, 30*time.Second),
		orderbookTTL: orDefault(cfg.OrderbookTTL, 5*time.Second),
		logger:       cfg.Logger,
	}, nil
}

// Market returns a market by ID.
func (c *Catalog) Market(ctx context.Context, id string) (*types.Market, error) {
	v, err := c.load(marketKey(id), c.marketTTL, func() (any, error) {
		return c.source.GetMarket(ctx, id)
	})
	if err != nil {
		return nil, err
	}

	market, ok := v.(*types.Market)
	if !ok {
		return nil, fmt.Errorf("unexpected cached type %T for market %s", v, id)
	}

	cp := *market
	return &cp, nil
}

// List returns one page of markets for the query.
func (c *Catalog) List(ctx context.Context, q types.MarketQuery) (*types.MarketsPage, error) {
	v, err := c.load(listKey(q), c.listTTL, func() (any, error) {
		return c.source.ListMarkets(ctx, q)
	})
	if err != nil {
		return nil, err
	}

	page, ok := v.(*types.MarketsPage)
	if !ok {
		return nil, fmt.Errorf("unexpected cached type %T for market list", v)
	}

	return page, nil
}

// Trending returns the backend's trending markets.
func (c *Catalog) Trending(ctx context.Context) ([]types.Market, error) {
	v, err := c.load("markets:trending", c.listTTL, func() (any, error) {
		return c.source.TrendingMarkets(ctx)
	})
	if err != nil {
		return nil, err
	}

	markets, ok := v.([]types.Market)
	if !ok {
		return nil, fmt.Errorf("unexpected cached type %T for trending markets", v)
	}

	return markets, nil
}

// Chart returns a market's price history over rng.
func (c *Catalog) Chart(ctx context.Context, marketID, rng string) ([]types.PricePoint, error) {
	if rng == "" {
		rng = types.ChartRange24h
	}

	v, err := c.load("chart:"+marketID+"|"+rng, c.listTTL, func() (any, error) {
		return c.source.MarketChart(ctx, marketID, rng)
	})
	if err != nil {
		return nil, err
	}

	points, ok := v.([]types.PricePoint)
	if !ok {
		return nil, fmt.Errorf("unexpected cached type %T for chart %s", v, marketID)
	}

	return points, nil
}

// Trades returns one page of a market's public trades. Pages are kept as
// briefly as orderbooks since both move with every fill.
func (c *Catalog) Trades(ctx context.Context, marketID, cursor string, limit int) (*types.TradesPage, error) {
	key := "trades:" + marketID + "|" + cursor + "|" + strconv.Itoa(limit)

	v, err := c.load(key, c.orderbookTTL, func() (any, error) {
		return c.source.MarketTrades(ctx, marketID, cursor, limit)
	})
	if err != nil {
		return nil, err
	}

	page, ok := v.(*types.TradesPage)
	if !ok {
		return nil, fmt.Errorf("unexpected cached type %T for trades %s", v, marketID)
	}

	return page, nil
}

// Categories returns the market categories with their market counts.
func (c *Catalog) Categories(ctx context.Context) ([]types.CategoryCount, error) {
	v, err := c.load("markets:categories", c.listTTL, func() (any, error) {
		return c.source.Categories(ctx)
	})
	if err != nil {
		return nil, err
	}

	categories, ok := v.([]types.CategoryCount)
	if !ok {
		return nil, fmt.Errorf("unexpected cached type %T for categories", v)
	}

	return categories, nil
}

// Orderbook returns the orderbook for a market.
func (c *Catalog) Orderbook(ctx context.Context, marketID string) (*types.Orderbook, error) {
	v, err := c.load(orderbookKey(marketID), c.orderbookTTL, func() (any, error) {
		return c.source.Orderbook(ctx, marketID)
	})
	if err != nil {
		return nil, err
	}

	book, ok := v.(*types.Orderbook)
	if !ok {
		return nil, fmt.Errorf("unexpected cached type %T for orderbook %s", v, marketID)
	}

	return book, nil
}

// ApplyPrice updates the cached market with a live price. Markets not in
// cache are left alone and fetched fresh on next access.
func (c *Catalog) ApplyPrice(update types.PriceUpdate) {
	key := marketKey(update.MarketID)

	cached, ok := c.cache.Get(key)
	if !ok {
		return
	}

	market, ok := cached.(*types.Market)
	if !ok {
		return
	}

	updated := *market
	updated.YesPrice = update.YesPrice
	updated.NoPrice = update.NoPrice
	if update.Volume > 0 {
		updated.Volume = update.Volume
	}

	c.cache.Set(key, &updated, c.marketTTL)
	PriceUpdatesAppliedTotal.Inc()
}

// InvalidateOrderbook drops a cached orderbook, e.g. after an order event.
func (c *Catalog) InvalidateOrderbook(marketID string) {
	c.cache.Delete(orderbookKey(marketID))
}

func (c *Catalog) load(key string, ttl time.Duration, fetch func() (any, error)) (any, error) {
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		start := time.Now()
		value, err := fetch()
		FetchDurationSeconds.Observe(time.Since(start).Seconds())
		if err != nil {
			FetchErrorsTotal.Inc()
			return nil, err
		}

		c.cache.Set(key, value, ttl)
		return value, nil
	})
	if err != nil {
		c.logger.Debug("catalog-fetch-failed", zap.String("key", key), zap.Error(err))
		return nil, err
	}

	if shared {
		SharedFetchesTotal.Inc()
	}

	return v, nil
}

func marketKey(id string) string {
	return "market:" + id
}

func orderbookKey(id string) string {
	return "orderbook:" + id
}

func listKey(q types.MarketQuery) string {
	return "markets:" + q.Status + "|" + q.Category + "|" + q.Sort + "|" + q.Search + "|" + q.Cursor + "|" + strconv.Itoa(q.Limit)
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
