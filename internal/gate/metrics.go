package gate

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// SubmissionsTotal counts trade submissions by status and gate decision.
	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketview_gate_submissions_total",
		Help: "Total number of trade submissions",
	}, []string{"status", "decision"})

	// RetrySyncsTotal counts syncs retried from the submit path.
	RetrySyncsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketview_gate_retry_syncs_total",
		Help: "Total number of session syncs retried before a submission",
	})

	// SubmitDurationSeconds tracks backend order/trade latency.
	SubmitDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketview_gate_submit_duration_seconds",
		Help:    "Duration of order placement and trade execution requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"order_type"})

	// JournalErrorsTotal counts results that could not be journaled.
	JournalErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketview_gate_journal_errors_total",
		Help: "Total number of submission results that failed to journal",
	})
)
