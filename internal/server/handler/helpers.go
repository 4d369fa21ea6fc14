// Package handler contains the HTTP handlers for the riskwatch API.
package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/meridianhq/riskwatch/internal/domain"
)

// Engine is the read and acknowledge surface the handlers need. Implemented
// by *engine.Engine.
type Engine interface {
	Snapshot() domain.EngineSnapshot
	Position(id string) (domain.Position, error)
	Positions() []domain.Position
	Portfolio() domain.PortfolioSnapshot
	Metrics() []domain.RiskMetric
	Alerts() []domain.Alert
	Stale() bool
	AcknowledgeAlert(ctx context.Context, id string) error
	DroppedMessages() int64
	DiscardedUpdates() int64
}

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseLimit extracts a limit query parameter. Defaults to 50, capped at 500.
func parseLimit(r *http.Request) int {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}
	return limit
}
