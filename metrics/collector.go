// Package metrics exports Prometheus instrumentation for flowkit primitives.
// The Collector plugs into the workflow Observer and the rotation manager
// callbacks, so wiring it up is one constructor call per subsystem; with no
// collector attached, nothing is recorded and nothing fails.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/BaSui01/flowkit/rotation"
	"github.com/BaSui01/flowkit/workflow"
)

// Collector holds the Prometheus series for every flowkit event stream.
type Collector struct {
	retriesTotal       *prometheus.CounterVec
	retryDelaySeconds  *prometheus.HistogramVec
	fallbacksTotal     *prometheus.CounterVec
	cacheHitsTotal     *prometheus.CounterVec
	cacheMissesTotal   *prometheus.CounterVec
	compensationsTotal *prometheus.CounterVec
	routesTotal        *prometheus.CounterVec
	rotationsTotal     *prometheus.CounterVec
	circuitTransitions *prometheus.CounterVec
}

// NewCollector creates a Collector and registers its series with reg. Pass
// prometheus.DefaultRegisterer for the process-wide registry.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	c := &Collector{
		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "retries_total",
				Help:      "Retry attempts per primitive",
			},
			[]string{"primitive"},
		),
		retryDelaySeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "retry_delay_seconds",
				Help:      "Backoff delay applied before each retry",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"primitive"},
		),
		fallbacksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fallbacks_total",
				Help:      "Fallback candidate activations per primitive",
			},
			[]string{"primitive", "candidate"},
		),
		cacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Cache hits per primitive",
			},
			[]string{"primitive"},
		),
		cacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Cache misses per primitive",
			},
			[]string{"primitive"},
		),
		compensationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "compensations_total",
				Help:      "Compensation runs per primitive and outcome",
			},
			[]string{"primitive", "outcome"},
		),
		routesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "routes_total",
				Help:      "Router selections per primitive and route",
			},
			[]string{"primitive", "route"},
		),
		rotationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rotations_total",
				Help:      "Target rotations per reason",
			},
			[]string{"from", "to", "reason"},
		),
		circuitTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_transitions_total",
				Help:      "Circuit breaker state transitions",
			},
			[]string{"from", "to"},
		),
	}

	reg.MustRegister(
		c.retriesTotal,
		c.retryDelaySeconds,
		c.fallbacksTotal,
		c.cacheHitsTotal,
		c.cacheMissesTotal,
		c.compensationsTotal,
		c.routesTotal,
		c.rotationsTotal,
		c.circuitTransitions,
	)
	return c
}

// WorkflowObserver returns an Observer that records workflow events into the
// collector.
func (c *Collector) WorkflowObserver() *workflow.Observer {
	return &workflow.Observer{
		OnRetry: func(primitive string, _ int, _ error, delay time.Duration) {
			c.retriesTotal.WithLabelValues(primitive).Inc()
			c.retryDelaySeconds.WithLabelValues(primitive).Observe(delay.Seconds())
		},
		OnFallback: func(primitive, candidate string, _ error) {
			c.fallbacksTotal.WithLabelValues(primitive, candidate).Inc()
		},
		OnCacheHit: func(primitive, _ string) {
			c.cacheHitsTotal.WithLabelValues(primitive).Inc()
		},
		OnCacheMiss: func(primitive, _ string) {
			c.cacheMissesTotal.WithLabelValues(primitive).Inc()
		},
		OnCompensation: func(primitive string, err error) {
			outcome := "ok"
			if err != nil {
				outcome = "failed"
			}
			c.compensationsTotal.WithLabelValues(primitive, outcome).Inc()
		},
		OnRoute: func(primitive, route string) {
			c.routesTotal.WithLabelValues(primitive, route).Inc()
		},
	}
}

// OnRotate is a rotation.Config callback recording target rotations.
func (c *Collector) OnRotate(from, to, reason string) {
	c.rotationsTotal.WithLabelValues(from, to, reason).Inc()
}

// OnCircuitChange is a rotation.Config callback recording circuit breaker
// transitions.
func (c *Collector) OnCircuitChange(from, to rotation.CircuitState) {
	c.circuitTransitions.WithLabelValues(from.String(), to.String()).Inc()
}
