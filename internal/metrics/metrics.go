package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cityweather_provider_fetches_total",
			Help: "Total upstream weather fetches by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	FetchLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cityweather_provider_fetch_latency_seconds",
			Help:    "Upstream weather fetch latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	PanelTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cityweather_panel_transitions_total",
			Help: "Weather panel state transitions by target state",
		},
		[]string{"state"},
	)

	StaleResultsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cityweather_stale_results_discarded_total",
			Help: "Fetch results dropped because the selection changed before they arrived",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cityweather_active_sessions",
			Help: "Browser sessions currently held in memory",
		},
	)

	SessionsEvicted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cityweather_sessions_evicted_total",
			Help: "Sessions evicted from memory by reason",
		},
		[]string{"reason"},
	)
)
