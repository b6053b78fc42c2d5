package handler

import (
	"net/http"

	natsclient "github.com/capitalize-ai/vcon-datasets/internal/nats"
)

// connectionChecker reports whether a backing connection is up.
type connectionChecker interface {
	IsConnected() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	nats connectionChecker
}

// NewHealthHandler creates a new health handler. A nil client means event
// publishing is disabled and does not affect readiness.
func NewHealthHandler(natsClient *natsclient.Client) *HealthHandler {
	h := &HealthHandler{}
	if natsClient != nil {
		h.nats = natsClient
	}
	return h
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.nats != nil && !h.nats.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
