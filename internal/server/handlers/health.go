package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

// HandleHealth handles GET /health.
// @Summary Health check
// @Description Adapter readiness including synchronization status; 503 while unhealthy
// @Tags health
// @Produce json
// @Success 200 {object} object
// @Failure 503 {object} object
// @Router /health [get]
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	health := h.backend.Health(r.Context())
	doc := map[string]any{
		"status":  health.Status,
		"adapter": h.backend.Name(),
		"version": h.config.Version,
		"uptime":  time.Since(h.startTime).Round(time.Second).String(),
	}
	if len(health.Details) > 0 {
		doc["details"] = health.Details
	}

	status := http.StatusOK
	if !health.Ready() {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(doc); err != nil {
		h.logger.Debug().Err(err).Msg("Failed to write health response")
	}
}
