package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/pulsar-relay/relay/internal/api"
)

// PingFunc checks connectivity to a backing dependency. It should return
// nil when the dependency is reachable.
type PingFunc func(ctx context.Context) error

// healthResponse is the body returned by GET /health.
type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Health handles GET /health: a liveness probe with no dependency checks.
func Health(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, healthResponse{Status: "healthy", Timestamp: time.Now().UTC()})
}

// readinessResponse is the body returned by GET /ready.
type readinessResponse struct {
	Ready  bool              `json:"ready"`
	Checks map[string]string `json:"checks"`
}

// ReadyHandler implements GET /ready: reports whether every configured
// backing dependency (currently just the store, when running the "store"
// backend) answers within the request's deadline.
type ReadyHandler struct {
	pings map[string]PingFunc
}

// NewReadyHandler builds a ReadyHandler. A nil storePing means the relay is
// running the in-memory backend, which is always ready.
func NewReadyHandler(storePing PingFunc) *ReadyHandler {
	h := &ReadyHandler{pings: make(map[string]PingFunc)}
	if storePing != nil {
		h.pings["store"] = storePing
	}
	return h
}

func (h *ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	ready := true
	for name, ping := range h.pings {
		if err := ping(ctx); err != nil {
			checks[name] = "error: " + err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}
	if len(h.pings) == 0 {
		checks["store"] = "not_configured"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	api.JSON(w, status, readinessResponse{Ready: ready, Checks: checks})
}
