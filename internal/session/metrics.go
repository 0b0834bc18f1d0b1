package session

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// SyncAttemptsTotal counts backend sync attempts.
	SyncAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketview_session_sync_attempts_total",
		Help: "Total number of backend user sync attempts",
	})

	// SyncFailuresTotal counts failed syncs by failure kind.
	SyncFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketview_session_sync_failures_total",
		Help: "Total number of failed backend user syncs",
	}, []string{"kind"})

	// SyncDurationSeconds tracks how long a sync takes end to end.
	SyncDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "marketview_session_sync_duration_seconds",
		Help:    "Duration of backend user syncs",
		Buckets: prometheus.DefBuckets,
	})

	// StaleResultsTotal counts sync results dropped after a disconnect or identity switch.
	StaleResultsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketview_session_stale_results_total",
		Help: "Total number of sync results discarded as stale",
	})

	// DevLoginsTotal counts dev logins.
	DevLoginsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketview_session_dev_logins_total",
		Help: "Total number of dev user logins",
	})

	// StateGauge is 1 for the current session state and 0 for the others.
	StateGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "marketview_session_state",
		Help: "Current session state",
	}, []string{"state"})
)
