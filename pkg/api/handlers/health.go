package handlers

import (
	"net/http"
)

// SessionPool is the view of the session manager the health endpoints use.
type SessionPool interface {
	// Ready returns nil while new sessions can be opened.
	Ready() error

	// Count returns the number of cached sessions.
	Count() int
}

// HealthHandler handles the unauthenticated health endpoints.
type HealthHandler struct {
	pool    SessionPool
	version string
	fsType  string
}

// NewHealthHandler creates a new health handler. pool may be nil, in which
// case readiness reports unhealthy.
func NewHealthHandler(pool SessionPool, version, fsType string) *HealthHandler {
	return &HealthHandler{pool: pool, version: version, fsType: fsType}
}

// Liveness handles GET /health.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthyResponse(map[string]string{
		"service": "fsdelegate",
		"version": h.version,
	}))
}

// Readiness handles GET /health/ready.
//
// Returns 503 Service Unavailable once the server is shutting down.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if h.pool == nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse("session manager not initialized"))
		return
	}
	if err := h.pool.Ready(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse(err.Error()))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(map[string]any{
		"sessions":   h.pool.Count(),
		"filesystem": h.fsType,
	}))
}
