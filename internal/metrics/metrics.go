package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	UpstreamCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sunburntimer_upstream_calls_total",
			Help: "Total upstream API calls",
		},
		[]string{"source", "endpoint", "status"},
	)

	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sunburntimer_upstream_latency_seconds",
			Help:    "Upstream API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source", "endpoint"},
	)

	ForecastsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sunburntimer_forecast_hours_ingested_total",
			Help: "Total hourly UV samples stored",
		},
		[]string{"source"},
	)

	CalculationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sunburntimer_calculations_total",
			Help: "Total burn calculations by outcome",
		},
		[]string{"outcome"},
	)

	CalculationResolution = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sunburntimer_calculation_resolution_total",
			Help: "Slices per hour chosen by the resolution selector",
		},
		[]string{"slices_per_hour"},
	)

	CalculationPoints = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sunburntimer_calculation_points",
			Help:    "Points returned per calculation",
			Buckets: prometheus.LinearBuckets(0, 4, 8),
		},
	)
)
