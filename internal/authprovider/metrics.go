package authprovider

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics
var (
	// LogoutsRequestedTotal counts provider logouts requested from the UI.
	LogoutsRequestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marketview_authprovider_logouts_requested_total",
		Help: "Total number of provider logouts requested from the UI",
	})
)
