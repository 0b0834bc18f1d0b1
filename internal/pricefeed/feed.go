// Package pricefeed turns market socket messages into live outcome prices.
package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/mselser95/marketview/internal/quote"
	"github.com/mselser95/marketview/pkg/types"
	"github.com/mselser95/marketview/pkg/websocket"
)

// Sink receives price changes and book invalidations. The market catalog implements it.
type Sink interface {
	ApplyPrice(update types.PriceUpdate)
	InvalidateOrderbook(marketID string)
}

// Subscriber manages market subscriptions on the socket.
type Subscriber interface {
	SubscribeMarkets(marketIDs []string) error
	UnsubscribeMarkets(marketIDs []string) error
}

// Config holds price feed configuration.
type Config struct {
	Messages   <-chan *types.StreamMessage
	Subscriber Subscriber
	Sink       Sink
	Logger     *zap.Logger
}

// Feed tracks the latest price per watched market.
type Feed struct {
	prices     map[string]*types.PriceSnapshot
	mu         sync.RWMutex
	logger     *zap.Logger
	msgChan    <-chan *types.StreamMessage
	subscriber Subscriber
	sink       Sink
	updateChan chan types.PriceSnapshot
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

var errInvalidPrice = errors.New("invalid price")

// priceMessage is the payload of a price channel message. NoPrice is a
// pointer so an explicit 0 can be told apart from a missing field.
type priceMessage struct {
	MarketID string   `json:"marketId"`
	YesPrice float64  `json:"yesPrice"`
	NoPrice  *float64 `json:"noPrice"`
	Volume   float64  `json:"volume"`
}

// New creates a new price feed.
func New(cfg *Config) (*Feed, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	if cfg.Messages == nil {
		return nil, errors.New("messages channel cannot be nil")
	}

	if cfg.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Feed{
		prices:     make(map[string]*types.PriceSnapshot),
		logger:     cfg.Logger,
		msgChan:    cfg.Messages,
		subscriber: cfg.Subscriber,
		sink:       cfg.Sink,
		updateChan: make(chan types.PriceSnapshot, 1000),
	}, nil
}

// Start consumes messages until ctx is done or the message channel closes.
func (f *Feed) Start(ctx context.Context) error {
	f.logger.Info("price-feed-starting")

	f.wg.Add(1)
	go f.processMessages(ctx)

	return nil
}

func (f *Feed) processMessages(ctx context.Context) {
	defer f.wg.Done()

	for {
		select {
		case <-ctx.Done():
			f.logger.Info("price-feed-stopping")
			return
		case msg, ok := <-f.msgChan:
			if !ok {
				f.logger.Info("message-channel-closed")
				return
			}

			err := f.handleMessage(msg)
			if err != nil {
				f.logger.Warn("handle-message-error",
					zap.Error(err),
					zap.String("channel", msg.Channel))
			}
		}
	}
}

// handleMessage dispatches one stream message by channel kind.
func (f *Feed) handleMessage(msg *types.StreamMessage) error {
	marketID, kind, ok := websocket.ParseChannel(msg.Channel)
	if !ok {
		UpdatesTotal.WithLabelValues("ignored").Inc()
		return nil
	}

	timer := prometheus.NewTimer(UpdateProcessingDuration)
	defer timer.ObserveDuration()

	UpdatesTotal.WithLabelValues(kind).Inc()

	switch kind {
	case websocket.KindPrice:
		return f.handlePrice(marketID, msg)
	case websocket.KindTrades, websocket.KindOrders:
		if f.sink != nil {
			f.sink.InvalidateOrderbook(marketID)
		}
		return nil
	default:
		return nil
	}
}

func (f *Feed) handlePrice(marketID string, msg *types.StreamMessage) error {
	var raw priceMessage
	err := json.Unmarshal(msg.Data, &raw)
	if err != nil {
		return fmt.Errorf("decode price update: %w", err)
	}

	update := types.PriceUpdate{
		MarketID: raw.MarketID,
		YesPrice: raw.YesPrice,
		Volume:   raw.Volume,
	}

	if update.MarketID == "" {
		update.MarketID = marketID
	}

	if !validPrice(update.YesPrice) {
		return fmt.Errorf("market %s yes price %v: %w", update.MarketID, update.YesPrice, errInvalidPrice)
	}

	// A missing no price is the complement of yes. An explicit 0 is kept.
	update.NoPrice = 1 - update.YesPrice
	if raw.NoPrice != nil {
		update.NoPrice = *raw.NoPrice
	}

	if !validNoPrice(update.NoPrice) {
		return fmt.Errorf("market %s no price %v: %w", update.MarketID, update.NoPrice, errInvalidPrice)
	}

	updated := time.Now()
	if msg.Timestamp > 0 {
		updated = time.UnixMilli(msg.Timestamp)
	}

	snapshot := types.PriceSnapshot{
		MarketID:    update.MarketID,
		YesPrice:    update.YesPrice,
		NoPrice:     update.NoPrice,
		LastUpdated: updated,
	}

	f.mu.Lock()
	f.prices[update.MarketID] = &snapshot
	PricesTracked.Set(float64(len(f.prices)))
	f.mu.Unlock()

	if f.sink != nil {
		f.sink.ApplyPrice(update)
	}

	f.logger.Debug("price-updated",
		zap.String("market-id", update.MarketID),
		zap.Float64("yes-price", update.YesPrice),
		zap.Float64("no-price", update.NoPrice))

	select {
	case f.updateChan <- snapshot:
	default:
		UpdatesDroppedTotal.WithLabelValues("channel_full").Inc()
	}

	return nil
}

// Watch subscribes to live updates for the given markets.
func (f *Feed) Watch(marketIDs ...string) error {
	if f.subscriber == nil {
		return errors.New("no subscriber configured")
	}

	err := f.subscriber.SubscribeMarkets(marketIDs)
	if err != nil {
		return fmt.Errorf("subscribe markets: %w", err)
	}

	return nil
}

// Unwatch stops live updates and forgets the cached prices.
func (f *Feed) Unwatch(marketIDs ...string) error {
	f.mu.Lock()
	for _, id := range marketIDs {
		delete(f.prices, id)
	}
	PricesTracked.Set(float64(len(f.prices)))
	f.mu.Unlock()

	if f.subscriber == nil {
		return nil
	}

	err := f.subscriber.UnsubscribeMarkets(marketIDs)
	if err != nil {
		return fmt.Errorf("unsubscribe markets: %w", err)
	}

	return nil
}

// Price returns the latest live price of a market.
func (f *Feed) Price(marketID string) (types.PriceSnapshot, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	snapshot, exists := f.prices[marketID]
	if !exists {
		return types.PriceSnapshot{}, false
	}

	return *snapshot, true
}

// SidePrice returns the live price for one side, or fallback when no live
// price has arrived yet.
func (f *Feed) SidePrice(marketID string, side quote.Side, fallback float64) float64 {
	snapshot, ok := f.Price(marketID)
	if !ok {
		return fallback
	}

	if side == quote.SideNo {
		return snapshot.NoPrice
	}

	return snapshot.YesPrice
}

// Snapshots returns a copy of every tracked price.
func (f *Feed) Snapshots() map[string]types.PriceSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := make(map[string]types.PriceSnapshot, len(f.prices))
	for id, snapshot := range f.prices {
		out[id] = *snapshot
	}

	return out
}

// Updates returns the channel of price changes. It is closed by Close.
func (f *Feed) Updates() <-chan types.PriceSnapshot {
	return f.updateChan
}

// Close waits for the processing loop and closes the update channel.
func (f *Feed) Close() error {
	f.closeOnce.Do(func() {
		f.logger.Info("closing-price-feed")
		f.wg.Wait()
		close(f.updateChan)
		f.logger.Info("price-feed-closed")
	})

	return nil
}

func validPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p > 0 && p <= 1
}

// validNoPrice also accepts 0, which a fully resolved yes market reports.
func validNoPrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0) && p >= 0 && p <= 1
}
