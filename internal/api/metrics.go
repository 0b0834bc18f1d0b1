package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// RequestDurationSeconds tracks backend request latency per route.
	RequestDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketview_api_request_duration_seconds",
		Help:    "Duration of Market View backend requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// RequestErrorsTotal counts failed backend requests by route and class.
	RequestErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketview_api_request_errors_total",
		Help: "Total number of failed Market View backend requests",
	}, []string{"route", "class"})
)
