package ratebudget

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RateRemaining tracks the remaining upstream call quota
	RateRemaining = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "devpulse_rate_budget_remaining",
			Help: "Remaining GitHub API call quota from the last observation",
		},
	)

	// RateLimit tracks the total upstream call quota
	RateLimit = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "devpulse_rate_budget_limit",
			Help: "Total GitHub API call quota from the last observation",
		},
	)

	// RateReset tracks when the upstream quota replenishes
	RateReset = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "devpulse_rate_budget_reset_seconds",
			Help: "Unix time at which the GitHub API quota resets",
		},
	)
)

func init() {
	// Register metrics with the default registry
	prometheus.MustRegister(RateRemaining)
	prometheus.MustRegister(RateLimit)
	prometheus.MustRegister(RateReset)
}
