package pricefeed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// UpdatesTotal tracks stream messages handled by channel kind.
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketview_pricefeed_updates_total",
			Help: "Total number of stream messages handled by the price feed",
		},
		[]string{"kind"},
	)

	// UpdateProcessingDuration tracks per-message handling time.
	UpdateProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "marketview_pricefeed_update_processing_seconds",
		Help:    "Time spent handling a stream message",
		Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8),
	})

	// UpdatesDroppedTotal tracks price updates not delivered to listeners.
	UpdatesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketview_pricefeed_updates_dropped_total",
			Help: "Total number of price updates dropped",
		},
		[]string{"reason"},
	)

	// PricesTracked tracks markets with a live price in memory.
	PricesTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketview_pricefeed_prices_tracked",
		Help: "Number of markets with a live price",
	})
)
