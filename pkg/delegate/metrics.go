package delegate

import "time"

// Metrics observes executor activity. A nil Metrics disables collection.
//
// The Prometheus implementation lives in pkg/metrics/prometheus.
type Metrics interface {
	// ObserveOperation records a finished operation, its attempt count and
	// its total duration including backoff. err is nil on success.
	ObserveOperation(operation string, attempts int, duration time.Duration, err error)

	// RecordRetry records one repeated attempt of operation.
	RecordRetry(operation string)
}
