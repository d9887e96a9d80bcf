package api

import "time"

// Metrics records HTTP API activity. Implementations live in
// pkg/metrics/prometheus; a nil Metrics disables collection.
type Metrics interface {
	// ObserveRequest records one request against its route pattern.
	ObserveRequest(method, route string, status int, duration time.Duration)

	// SetSessions reports the number of cached delegate sessions.
	SetSessions(n int)
}
