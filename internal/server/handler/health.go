package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	engine Engine
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler reading liveness data from engine.
func NewHealthHandler(engine Engine, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{engine: engine, logger: logger}
}

// HealthCheck responds with the server liveness and data freshness status.
// The endpoint stays 200 even when upstream data is stale; consumers inspect
// the stale flag.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"stale":            h.engine.Stale(),
		"droppedMessages":  h.engine.DroppedMessages(),
		"discardedUpdates": h.engine.DiscardedUpdates(),
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	})
}
