package pricefeed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mselser95/marketview/internal/quote"
	"github.com/mselser95/marketview/pkg/types"
)

type recordingSink struct {
	mu          sync.Mutex
	prices      []types.PriceUpdate
	invalidated []string
}

func (s *recordingSink) ApplyPrice(update types.PriceUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices = append(s.prices, update)
}

func (s *recordingSink) InvalidateOrderbook(marketID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated = append(s.invalidated, marketID)
}

type fakeSubscriber struct {
	subscribed   []string
	unsubscribed []string
	err          error
}

func (s *fakeSubscriber) SubscribeMarkets(ids []string) error {
	s.subscribed = append(s.subscribed, ids...)
	return s.err
}

func (s *fakeSubscriber) UnsubscribeMarkets(ids []string) error {
	s.unsubscribed = append(s.unsubscribed, ids...)
	return s.err
}

func newTestFeed(t *testing.T) (*Feed, *recordingSink, *fakeSubscriber) {
	t.Helper()

	sink := &recordingSink{}
	sub := &fakeSubscriber{}
	feed, err := New(&Config{
		Messages:   make(chan *types.StreamMessage),
		Subscriber: sub,
		Sink:       sink,
		Logger:     zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	return feed, sink, sub
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)

	_, err = New(&Config{Logger: zaptest.NewLogger(t)})
	require.Error(t, err)

	_, err = New(&Config{Messages: make(chan *types.StreamMessage)})
	require.Error(t, err)
}

func TestHandleMessage_Price(t *testing.T) {
	feed, sink, _ := newTestFeed(t)

	err := feed.handleMessage(&types.StreamMessage{
		Channel:   "market:m1:price",
		Data:      []byte(`{"yesPrice":0.62,"noPrice":0.38}`),
		Timestamp: 1704067200000,
	})
	require.NoError(t, err)

	snapshot, ok := feed.Price("m1")
	require.True(t, ok)
	assert.Equal(t, "m1", snapshot.MarketID)
	assert.InDelta(t, 0.62, snapshot.YesPrice, 1e-9)
	assert.InDelta(t, 0.38, snapshot.NoPrice, 1e-9)
	assert.Equal(t, time.UnixMilli(1704067200000), snapshot.LastUpdated)

	require.Len(t, sink.prices, 1)
	assert.Equal(t, "m1", sink.prices[0].MarketID)

	select {
	case got := <-feed.Updates():
		assert.Equal(t, snapshot, got)
	default:
		t.Fatal("expected update on channel")
	}
}

func TestHandleMessage_PriceComplement(t *testing.T) {
	feed, _, _ := newTestFeed(t)

	err := feed.handleMessage(&types.StreamMessage{
		Channel: "market:m1:price",
		Data:    []byte(`{"yesPrice":0.25}`),
	})
	require.NoError(t, err)

	snapshot, ok := feed.Price("m1")
	require.True(t, ok)
	assert.InDelta(t, 0.75, snapshot.NoPrice, 1e-9)
}

func TestHandleMessage_ExplicitZeroNoPriceKept(t *testing.T) {
	feed, sink, _ := newTestFeed(t)

	err := feed.handleMessage(&types.StreamMessage{
		Channel: "market:m1:price",
		Data:    []byte(`{"yesPrice":0.97,"noPrice":0}`),
	})
	require.NoError(t, err)

	snapshot, ok := feed.Price("m1")
	require.True(t, ok)
	assert.InDelta(t, 0.97, snapshot.YesPrice, 1e-9)
	assert.Zero(t, snapshot.NoPrice)

	require.Len(t, sink.prices, 1)
	assert.Zero(t, sink.prices[0].NoPrice)

	err = feed.handleMessage(&types.StreamMessage{
		Channel: "market:m2:price",
		Data:    []byte(`{"yesPrice":1,"noPrice":0}`),
	})
	require.NoError(t, err)

	snapshot, ok = feed.Price("m2")
	require.True(t, ok)
	assert.InDelta(t, 1.0, snapshot.YesPrice, 1e-9)
	assert.Zero(t, snapshot.NoPrice)
}

func TestHandleMessage_InvalidPrice(t *testing.T) {
	feed, sink, _ := newTestFeed(t)

	tests := []struct {
		name string
		data string
	}{
		{"zero yes", `{"yesPrice":0}`},
		{"above one", `{"yesPrice":1.5,"noPrice":0.2}`},
		{"negative no", `{"yesPrice":0.5,"noPrice":-0.1}`},
		{"malformed", `{"yesPrice":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := feed.handleMessage(&types.StreamMessage{
				Channel: "market:m1:price",
				Data:    []byte(tt.data),
			})
			require.Error(t, err)
		})
	}

	_, ok := feed.Price("m1")
	assert.False(t, ok)
	assert.Empty(t, sink.prices)
}

func TestHandleMessage_TradesInvalidateBook(t *testing.T) {
	feed, sink, _ := newTestFeed(t)

	require.NoError(t, feed.handleMessage(&types.StreamMessage{Channel: "market:m1:trades", Data: []byte(`{}`)}))
	require.NoError(t, feed.handleMessage(&types.StreamMessage{Channel: "market:m2:orders", Data: []byte(`{}`)}))
	require.NoError(t, feed.handleMessage(&types.StreamMessage{Channel: "user:u1:orders", Data: []byte(`{}`)}))

	assert.Equal(t, []string{"m1", "m2"}, sink.invalidated)
}

func TestSidePrice(t *testing.T) {
	feed, _, _ := newTestFeed(t)

	assert.InDelta(t, 0.4, feed.SidePrice("m1", quote.SideYes, 0.4), 1e-9)

	require.NoError(t, feed.handleMessage(&types.StreamMessage{
		Channel: "market:m1:price",
		Data:    []byte(`{"yesPrice":0.7,"noPrice":0.3}`),
	}))

	assert.InDelta(t, 0.7, feed.SidePrice("m1", quote.SideYes, 0.4), 1e-9)
	assert.InDelta(t, 0.3, feed.SidePrice("m1", quote.SideNo, 0.4), 1e-9)
}

func TestWatchUnwatch(t *testing.T) {
	feed, _, sub := newTestFeed(t)

	require.NoError(t, feed.Watch("m1", "m2"))
	assert.Equal(t, []string{"m1", "m2"}, sub.subscribed)

	require.NoError(t, feed.handleMessage(&types.StreamMessage{
		Channel: "market:m1:price",
		Data:    []byte(`{"yesPrice":0.5,"noPrice":0.5}`),
	}))

	require.NoError(t, feed.Unwatch("m1"))
	assert.Equal(t, []string{"m1"}, sub.unsubscribed)

	_, ok := feed.Price("m1")
	assert.False(t, ok)
	assert.Empty(t, feed.Snapshots())

	sub.err = errors.New("not connected")
	require.Error(t, feed.Watch("m3"))
}

func TestStart_ProcessesUntilChannelClosed(t *testing.T) {
	msgs := make(chan *types.StreamMessage, 2)
	sink := &recordingSink{}
	feed, err := New(&Config{Messages: msgs, Sink: sink, Logger: zaptest.NewLogger(t)})
	require.NoError(t, err)

	require.NoError(t, feed.Start(context.Background()))

	msgs <- &types.StreamMessage{Channel: "market:m1:price", Data: []byte(`{"yesPrice":0.55,"noPrice":0.45}`)}
	close(msgs)

	require.NoError(t, feed.Close())

	snapshot, ok := feed.Price("m1")
	require.True(t, ok)
	assert.InDelta(t, 0.55, snapshot.YesPrice, 1e-9)

	_, open := <-feed.Updates()
	assert.True(t, open) // buffered update still readable
	_, open = <-feed.Updates()
	assert.False(t, open)
}
