// Package websocket is the client for the Market View live-update socket.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mselser95/marketview/pkg/types"
)

// Client message types.
const (
	MsgSubscribe         = "SUBSCRIBE"
	MsgUnsubscribe       = "UNSUBSCRIBE"
	MsgSubscribeMarket   = "SUBSCRIBE_MARKET"
	MsgUnsubscribeMarket = "UNSUBSCRIBE_MARKET"
)

// Channel kinds published per market.
const (
	KindTrades = "trades"
	KindOrders = "orders"
	KindPrice  = "price"
)

// MarketChannel returns the channel name for a market and kind.
func MarketChannel(marketID, kind string) string {
	return "market:" + marketID + ":" + kind
}

// ParseChannel splits a "market:<id>:<kind>" channel.
func ParseChannel(channel string) (marketID, kind string, ok bool) {
	rest, found := strings.CutPrefix(channel, "market:")
	if !found {
		return "", "", false
	}

	idx := strings.LastIndex(rest, ":")
	if idx <= 0 || idx == len(rest)-1 {
		return "", "", false
	}

	return rest[:idx], rest[idx+1:], true
}

// clientMessage is a frame sent to the server.
type clientMessage struct {
	Type     string `json:"type"`
	Channel  string `json:"channel,omitempty"`
	MarketID string `json:"marketId,omitempty"`
}

// Manager holds one connection to the backend socket, keeps it alive and
// replays market subscriptions after a reconnect.
type Manager struct {
	url             string
	conn            *websocket.Conn
	logger          *zap.Logger
	reconnectMgr    *ReconnectManager
	config          Config
	messageChan     chan *types.StreamMessage
	ctx             context.Context
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	mu              sync.RWMutex
	writeMu         sync.Mutex      // gorilla allows one concurrent writer
	markets         map[string]bool // Subscribed market IDs
	channels        map[string]bool // Subscribed raw channels
	connected       atomic.Bool
	lastPongTime    atomic.Int64
	connectionStart atomic.Int64
	closeOnce       sync.Once
}

// Config holds WebSocket manager configuration.
type Config struct {
	URL                   string
	DialTimeout           time.Duration
	PongTimeout           time.Duration
	PingInterval          time.Duration
	ReconnectInitialDelay time.Duration
	ReconnectMaxDelay     time.Duration
	ReconnectBackoffMult  float64
	ReconnectJitter       float64
	MessageBufferSize     int
	Logger                *zap.Logger
}

// New creates a new WebSocket manager.
func New(cfg Config) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 10 * time.Second
	}

	if cfg.MessageBufferSize <= 0 {
		cfg.MessageBufferSize = 1000
	}

	reconnectCfg := ReconnectConfig{
		InitialDelay:      cfg.ReconnectInitialDelay,
		MaxDelay:          cfg.ReconnectMaxDelay,
		BackoffMultiplier: cfg.ReconnectBackoffMult,
		JitterPercent:     cfg.ReconnectJitter,
	}

	return &Manager{
		url:          cfg.URL,
		logger:       cfg.Logger,
		reconnectMgr: NewReconnectManager(reconnectCfg, cfg.Logger),
		config:       cfg,
		messageChan:  make(chan *types.StreamMessage, cfg.MessageBufferSize),
		ctx:          ctx,
		cancel:       cancel,
		markets:      make(map[string]bool),
		channels:     make(map[string]bool),
	}
}

// Start connects and starts the read, ping and reconnect loops.
func (m *Manager) Start() error {
	m.logger.Info("websocket-manager-starting", zap.String("url", m.url))

	err := m.connect(m.ctx)
	if err != nil {
		return fmt.Errorf("initial connection: %w", err)
	}

	m.wg.Add(3)
	go m.readLoop()
	go m.pingLoop()
	go m.reconnectLoop()

	return nil
}

// connect dials the socket and installs the pong handler.
func (m *Manager) connect(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: m.config.DialTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, m.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	conn.SetPongHandler(func(string) error {
		m.lastPongTime.Store(time.Now().Unix())
		return nil
	})

	m.mu.Lock()
	m.conn = conn
	m.mu.Unlock()

	now := time.Now()
	m.connected.Store(true)
	m.lastPongTime.Store(now.Unix())
	m.connectionStart.Store(now.Unix())
	ActiveConnections.Set(1)

	m.logger.Info("websocket-connected", zap.String("url", m.url))

	return nil
}

// Connected reports whether the socket is currently up.
func (m *Manager) Connected() bool {
	return m.connected.Load()
}

// SubscribeMarkets subscribes to every channel of the given markets.
func (m *Manager) SubscribeMarkets(marketIDs []string) error {
	m.mu.Lock()
	added := make([]string, 0, len(marketIDs))
	for _, id := range marketIDs {
		if id == "" || m.markets[id] {
			continue
		}
		m.markets[id] = true
		added = append(added, id)
	}
	total := len(m.markets)
	m.mu.Unlock()

	if len(added) == 0 {
		return nil
	}

	for i, id := range added {
		err := m.write(clientMessage{Type: MsgSubscribeMarket, MarketID: id})
		if err != nil {
			// Roll back the ones not sent so a reconnect does not replay them twice.
			m.mu.Lock()
			for _, pending := range added[i:] {
				delete(m.markets, pending)
			}
			total = len(m.markets)
			m.mu.Unlock()

			SubscriptionCount.Set(float64(total))
			return fmt.Errorf("write subscribe message: %w", err)
		}
	}

	SubscriptionCount.Set(float64(total))

	m.logger.Info("subscribed-to-markets",
		zap.Int("new-count", len(added)),
		zap.Int("total-count", total))

	return nil
}

// UnsubscribeMarkets drops market subscriptions.
func (m *Manager) UnsubscribeMarkets(marketIDs []string) error {
	m.mu.Lock()
	removed := make([]string, 0, len(marketIDs))
	for _, id := range marketIDs {
		if !m.markets[id] {
			continue
		}
		delete(m.markets, id)
		removed = append(removed, id)
	}
	total := len(m.markets)
	m.mu.Unlock()

	if len(removed) == 0 {
		return nil
	}

	SubscriptionCount.Set(float64(total))

	for _, id := range removed {
		err := m.write(clientMessage{Type: MsgUnsubscribeMarket, MarketID: id})
		if err != nil {
			return fmt.Errorf("write unsubscribe message: %w", err)
		}
		UnsubscriptionsTotal.Inc()
	}

	m.logger.Info("unsubscribed-from-markets",
		zap.Int("count", len(removed)),
		zap.Int("remaining-count", total))

	return nil
}

// SubscribeChannel subscribes to a single named channel.
func (m *Manager) SubscribeChannel(channel string) error {
	m.mu.Lock()
	if m.channels[channel] {
		m.mu.Unlock()
		return nil
	}
	m.channels[channel] = true
	m.mu.Unlock()

	err := m.write(clientMessage{Type: MsgSubscribe, Channel: channel})
	if err != nil {
		m.mu.Lock()
		delete(m.channels, channel)
		m.mu.Unlock()
		return fmt.Errorf("write subscribe message: %w", err)
	}

	return nil
}

// UnsubscribeChannel drops a named channel subscription.
func (m *Manager) UnsubscribeChannel(channel string) error {
	m.mu.Lock()
	if !m.channels[channel] {
		m.mu.Unlock()
		return nil
	}
	delete(m.channels, channel)
	m.mu.Unlock()

	err := m.write(clientMessage{Type: MsgUnsubscribe, Channel: channel})
	if err != nil {
		return fmt.Errorf("write unsubscribe message: %w", err)
	}

	return nil
}

func (m *Manager) write(msg clientMessage) error {
	m.mu.RLock()
	conn := m.conn
	m.mu.RUnlock()

	if conn == nil || !m.connected.Load() {
		return errors.New("not connected")
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	return conn.WriteJSON(msg)
}

// readLoop decodes frames into the message channel until the connection drops.
func (m *Manager) readLoop() {
	defer m.wg.Done()

	m.mu.RLock()
	conn := m.conn
	m.mu.RUnlock()

	if conn == nil {
		return
	}

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		_, frame, err := conn.ReadMessage()
		if err != nil {
			if m.ctx.Err() == nil {
				m.logger.Warn("read-error", zap.Error(err))
			}

			startTime := m.connectionStart.Load()
			if startTime > 0 {
				ConnectionDuration.Observe(time.Since(time.Unix(startTime, 0)).Seconds())
			}

			m.connected.Store(false)
			ActiveConnections.Set(0)
			return
		}

		start := time.Now()

		var msg types.StreamMessage
		err = json.Unmarshal(frame, &msg)
		if err != nil || msg.Channel == "" {
			preview := string(frame)
			if len(preview) > 100 {
				preview = preview[:100]
			}
			m.logger.Debug("websocket-unparseable-message",
				zap.Int("bytes", len(frame)),
				zap.String("preview", preview))
			MessagesDroppedTotal.WithLabelValues("unparseable").Inc()
			continue
		}

		_, kind, _ := ParseChannel(msg.Channel)
		MessagesReceivedTotal.WithLabelValues(kind).Inc()

		select {
		case m.messageChan <- &msg:
		default:
			m.logger.Warn("message-channel-full", zap.String("channel", msg.Channel))
			MessagesDroppedTotal.WithLabelValues("channel_full").Inc()
		}

		MessageLatencySeconds.Observe(time.Since(start).Seconds())
	}
}

// pingLoop sends pings and drops the connection when pongs stop arriving.
func (m *Manager) pingLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if !m.connected.Load() {
				continue
			}

			m.mu.RLock()
			conn := m.conn
			m.mu.RUnlock()

			if conn == nil {
				continue
			}

			if m.config.PongTimeout > 0 {
				lastPong := time.Unix(m.lastPongTime.Load(), 0)
				if time.Since(lastPong) > m.config.PongTimeout+m.config.PingInterval {
					m.logger.Warn("pong-timeout", zap.Time("last-pong", lastPong))
					conn.Close() // readLoop observes the error and marks the connection down
					continue
				}
			}

			err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(time.Second))
			if err != nil {
				m.logger.Warn("ping-error", zap.Error(err))
			}
		}
	}
}

// reconnectLoop reconnects with backoff when the connection drops and
// replays subscriptions on the new connection.
func (m *Manager) reconnectLoop() {
	defer m.wg.Done()

	for {
		select {
		case <-m.ctx.Done():
			return
		default:
		}

		if m.connected.Load() {
			select {
			case <-m.ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		m.logger.Warn("connection-lost-initiating-reconnect")

		err := m.reconnectMgr.Reconnect(m.ctx, m.connect)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			m.logger.Error("reconnection-failed", zap.Error(err))
			continue
		}

		err = m.resubscribeAll()
		if err != nil {
			m.logger.Error("resubscribe-failed", zap.Error(err))
			m.connected.Store(false)
			continue
		}

		m.wg.Add(1)
		go m.readLoop()
	}
}

// resubscribeAll replays every market and channel subscription.
func (m *Manager) resubscribeAll() error {
	m.mu.RLock()
	msgs := make([]clientMessage, 0, len(m.markets)+len(m.channels))
	for id := range m.markets {
		msgs = append(msgs, clientMessage{Type: MsgSubscribeMarket, MarketID: id})
	}
	for channel := range m.channels {
		msgs = append(msgs, clientMessage{Type: MsgSubscribe, Channel: channel})
	}
	m.mu.RUnlock()

	for _, msg := range msgs {
		err := m.write(msg)
		if err != nil {
			return fmt.Errorf("write resubscribe message: %w", err)
		}
	}

	if len(msgs) > 0 {
		m.logger.Info("resubscribed-after-reconnect", zap.Int("count", len(msgs)))
	}

	return nil
}

// MessageChan returns the channel of received stream messages. It is closed by Close.
func (m *Manager) MessageChan() <-chan *types.StreamMessage {
	return m.messageChan
}

// Close stops all loops and closes the connection.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		m.logger.Info("closing-websocket-manager")

		m.cancel()

		m.mu.RLock()
		if m.conn != nil {
			m.conn.Close()
		}
		m.mu.RUnlock()

		m.wg.Wait()

		close(m.messageChan)
		ActiveConnections.Set(0)

		m.logger.Info("websocket-manager-closed")
	})

	return nil
}
