// Package prometheus implements httpcache.MetricsCollector using
// github.com/prometheus/client_golang, so the core executor stays free of
// any metrics-backend dependency. Grounded on the teacher's
// metrics/prometheus/prometheus.go Collector, restated against the new
// three-method MetricsCollector interface.
package prometheus

import (
	"time"

	"github.com/arkhollow/httpcache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements httpcache.MetricsCollector for Prometheus.
type Collector struct {
	outcomes        *prometheus.CounterVec
	outcomeDuration *prometheus.HistogramVec
	storeOps        *prometheus.CounterVec
	storeOpDuration *prometheus.HistogramVec
	staleServed     *prometheus.CounterVec
}

// CollectorConfig configures a Collector's registry, metric name prefix,
// and any labels constant across all its series.
type CollectorConfig struct {
	// Registry is the Prometheus registry to use. If nil, uses prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// Namespace for metrics (default: "httpcache").
	Namespace string

	// Subsystem for metrics (optional).
	Subsystem string

	// ConstLabels are labels added to all metrics.
	ConstLabels prometheus.Labels
}

// NewCollector creates a Collector with the default registry and configuration.
func NewCollector() *Collector {
	return NewCollectorWithConfig(CollectorConfig{})
}

// NewCollectorWithRegistry creates a Collector registered against reg.
func NewCollectorWithRegistry(reg prometheus.Registerer) *Collector {
	return NewCollectorWithConfig(CollectorConfig{Registry: reg})
}

// NewCollectorWithConfig creates a Collector with full control over
// registry, namespace, subsystem, and const labels.
func NewCollectorWithConfig(config CollectorConfig) *Collector {
	if config.Registry == nil {
		config.Registry = prometheus.DefaultRegisterer
	}
	if config.Namespace == "" {
		config.Namespace = "httpcache"
	}

	factory := promauto.With(config.Registry)

	return &Collector{
		outcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "outcomes_total",
				Help:        "Total number of Execute calls by final response status",
				ConstLabels: config.ConstLabels,
			},
			[]string{"status"},
		),
		outcomeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "outcome_duration_seconds",
				Help:        "Duration of Execute calls in seconds, by final response status",
				Buckets:     []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5, 10},
				ConstLabels: config.ConstLabels,
			},
			[]string{"status"},
		),
		storeOps: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "store_operations_total",
				Help:        "Total number of Store operations by operation and result",
				ConstLabels: config.ConstLabels,
			},
			[]string{"operation", "result"},
		),
		storeOpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "store_operation_duration_seconds",
				Help:        "Duration of Store operations in seconds, by operation",
				Buckets:     []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
				ConstLabels: config.ConstLabels,
			},
			[]string{"operation"},
		),
		staleServed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   config.Namespace,
				Subsystem:   config.Subsystem,
				Name:        "stale_served_total",
				Help:        "Total number of stale responses served, by reason",
				ConstLabels: config.ConstLabels,
			},
			[]string{"reason"},
		),
	}
}

// RecordOutcome implements httpcache.MetricsCollector.
func (c *Collector) RecordOutcome(status httpcache.ResponseStatus, duration time.Duration) {
	label := status.String()
	c.outcomes.WithLabelValues(label).Inc()
	c.outcomeDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordStoreOperation implements httpcache.MetricsCollector.
func (c *Collector) RecordStoreOperation(op, result string, duration time.Duration) {
	c.storeOps.WithLabelValues(op, result).Inc()
	c.storeOpDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordStaleServed implements httpcache.MetricsCollector.
func (c *Collector) RecordStaleServed(reason string) {
	c.staleServed.WithLabelValues(reason).Inc()
}

var _ httpcache.MetricsCollector = (*Collector)(nil)
