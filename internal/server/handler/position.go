package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/meridianhq/riskwatch/internal/domain"
)

// PositionHandler serves the canonical position state.
type PositionHandler struct {
	engine Engine
	logger *slog.Logger
}

// NewPositionHandler creates a PositionHandler backed by engine.
func NewPositionHandler(engine Engine, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{engine: engine, logger: logger}
}

// ListPositions returns all tracked positions. The optional status query
// parameter filters to one lifecycle state.
// GET /api/positions?status=active
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	positions := h.engine.Positions()

	if status := r.URL.Query().Get("status"); status != "" {
		filtered := positions[:0:0]
		for _, p := range positions {
			if p.Status == domain.PositionStatus(status) {
				filtered = append(filtered, p)
			}
		}
		positions = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"positions": positions,
		"stale":     h.engine.Stale(),
	})
}

// GetPosition returns one position by id.
// GET /api/positions/{id}
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	pos, err := h.engine.Position(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "position not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, pos)
}
