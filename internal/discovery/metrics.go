package discovery

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// MarketsWatched tracks how many trending markets are currently watched.
	MarketsWatched = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "marketview_discovery_markets_watched",
		Help: "Number of trending markets currently watched",
	})

	// NewMarketsTotal tracks markets that entered the trending list.
	NewMarketsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketview_discovery_new_markets_total",
		Help: "Total number of markets that entered the trending list",
	})

	// DroppedMarketsTotal tracks markets that left the trending list.
	DroppedMarketsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketview_discovery_dropped_markets_total",
		Help: "Total number of markets that left the trending list",
	})

	// PollDurationSeconds tracks poll latency.
	PollDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "marketview_discovery_poll_duration_seconds",
		Help:    "Duration of trending market polls",
		Buckets: prometheus.DefBuckets,
	})

	// PollErrorsTotal tracks poll failures.
	PollErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketview_discovery_poll_errors_total",
		Help: "Total number of trending market poll failures",
	})
)
