package markets

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// FetchDurationSeconds tracks backend fetches made on cache misses.
	FetchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "marketview_catalog_fetch_duration_seconds",
		Help:    "Duration of catalog fetches from the backend",
		Buckets: prometheus.DefBuckets,
	})

	// FetchErrorsTotal counts failed catalog fetches.
	FetchErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketview_catalog_fetch_errors_total",
		Help: "Total number of failed catalog fetches",
	})

	// SharedFetchesTotal counts callers that joined an in-flight fetch.
	SharedFetchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketview_catalog_shared_fetches_total",
		Help: "Total number of catalog reads served by an in-flight fetch",
	})

	// PriceUpdatesAppliedTotal counts live prices written into cached markets.
	PriceUpdatesAppliedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketview_catalog_price_updates_applied_total",
		Help: "Total number of live price updates applied to cached markets",
	})
)
