// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ProviderRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_requests_total",
			Help: "Upstream provider HTTP attempts by endpoint and status",
		},
		[]string{"endpoint", "status"},
	)

	ProviderRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "provider_request_duration_seconds",
			Help:    "Latency of upstream provider HTTP attempts",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	ProviderRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_retries_total",
			Help: "Retries scheduled against the upstream provider",
		},
		[]string{"endpoint", "reason"},
	)

	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Cache lookups by cache layer and result",
		},
		[]string{"layer", "result"},
	)

	CircuitBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "provider_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "provider_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"from", "to"},
	)

	CapacityDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capacity_decisions_total",
			Help: "Computed capacity states",
		},
		[]string{"state"},
	)

	CapacityCalculationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "capacity_calculation_duration_seconds",
			Help:    "Duration of uncached capacity calculations",
			Buckets: prometheus.DefBuckets,
		},
	)

	CapacityFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "capacity_fallbacks_total",
			Help: "Degraded NEXT_DAY payloads served instead of a calculation",
		},
		[]string{"reason"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Boundary HTTP requests by route and status code",
		},
		[]string{"route", "code"},
	)
)
