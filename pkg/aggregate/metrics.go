package aggregate

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RefreshTotal tracks refresh outcomes per user pipeline
	RefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devpulse_refresh_total",
			Help: "Total refresh operations by outcome",
		},
		[]string{"outcome"},
	)

	// CacheRequests tracks cache-aside lookups per tier
	CacheRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "devpulse_cache_requests_total",
			Help: "Cache lookups by tier and result",
		},
		[]string{"tier", "result"},
	)
)

func init() {
	// Register metrics with the default registry
	prometheus.MustRegister(RefreshTotal)
	prometheus.MustRegister(CacheRequests)
}
