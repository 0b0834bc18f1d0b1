package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// ActiveConnections is 1 while the socket is connected.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketview_ws_active_connections",
		Help: "Number of active WebSocket connections",
	})

	// ReconnectAttemptsTotal tracks reconnection attempts.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketview_ws_reconnect_attempts_total",
		Help: "Total number of WebSocket reconnection attempts",
	})

	// ReconnectFailuresTotal tracks reconnection failures.
	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketview_ws_reconnect_failures_total",
		Help: "Total number of WebSocket reconnection failures",
	})

	// MessagesReceivedTotal tracks messages received by channel kind.
	MessagesReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketview_ws_messages_received_total",
		Help: "Total number of WebSocket messages received",
	}, []string{"kind"})

	// MessageLatencySeconds tracks decode-and-dispatch latency.
	MessageLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "marketview_ws_message_latency_seconds",
		Help:    "WebSocket message processing latency",
		Buckets: prometheus.DefBuckets,
	})

	// SubscriptionCount tracks subscribed markets.
	SubscriptionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketview_ws_subscription_count",
		Help: "Number of subscribed markets",
	})

	// MessagesDroppedTotal tracks dropped messages by reason.
	MessagesDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketview_ws_messages_dropped_total",
		Help: "Total number of WebSocket messages dropped",
	}, []string{"reason"})

	// ConnectionDuration tracks connection lifetime.
	ConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "marketview_ws_connection_duration_seconds",
		Help:    "Duration of WebSocket connections before disconnect",
		Buckets: []float64{60, 300, 600, 1800, 3600, 7200, 14400, 28800, 43200, 86400},
	})

	// UnsubscriptionsTotal tracks market unsubscriptions.
	UnsubscriptionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketview_ws_unsubscriptions_total",
		Help: "Total number of market unsubscriptions",
	})
)
