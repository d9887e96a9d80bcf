// Package prometheus implements the component metrics interfaces on top of
// the registry in pkg/metrics.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/fsdelegate/pkg/delegate"
	"github.com/marmos91/fsdelegate/pkg/fs"
	"github.com/marmos91/fsdelegate/pkg/metrics"
)

// delegateMetrics is the Prometheus implementation of delegate.Metrics.
type delegateMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	attempts          *prometheus.HistogramVec
	retriesTotal      *prometheus.CounterVec
}

// NewDelegateMetrics creates a Prometheus-backed delegate.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewDelegateMetrics() delegate.Metrics {
	reg := metrics.GetRegistry()
	if reg == nil {
		return nil
	}
	return newDelegateMetrics(reg)
}

func newDelegateMetrics(reg prometheus.Registerer) *delegateMetrics {
	return &delegateMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "operations_total",
				Help:      "Total number of delegate operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metrics.Namespace,
				Name:      "operation_duration_milliseconds",
				Help:      "Duration of delegate operations in milliseconds, backoff included",
				Buckets: []float64{
					1,    // 1ms - metadata lookups
					10,   // 10ms
					50,   // 50ms
					100,  // 100ms
					500,  // 500ms
					1000, // 1s - one backoff
					2500, // 2.5s - two backoffs
					5000, // 5s
				},
			},
			[]string{"operation"},
		),
		attempts: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metrics.Namespace,
				Name:      "operation_attempts",
				Help:      "Attempts spent per delegate operation",
				Buckets:   []float64{1, 2, 3, 5},
			},
			[]string{"operation"},
		),
		retriesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "retries_total",
				Help:      "Total number of repeated attempts after a transient error",
			},
			[]string{"operation"},
		),
	}
}

// outcome labels an error by its filesystem category.
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	if code, ok := fs.CodeOf(err); ok {
		return code.String()
	}
	return "error"
}

func (m *delegateMetrics) ObserveOperation(operation string, attempts int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.operationsTotal.WithLabelValues(operation, outcome(err)).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(float64(duration.Microseconds()) / 1000)
	m.attempts.WithLabelValues(operation).Observe(float64(attempts))
}

func (m *delegateMetrics) RecordRetry(operation string) {
	if m == nil {
		return
	}
	m.retriesTotal.WithLabelValues(operation).Inc()
}
