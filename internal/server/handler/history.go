package handler

import (
	"log/slog"
	"net/http"

	"github.com/meridianhq/riskwatch/internal/domain"
)

// HistoryHandler serves the persisted audit trail. It is registered only
// when a history store is configured.
type HistoryHandler struct {
	history domain.HistoryStore
	logger  *slog.Logger
}

// NewHistoryHandler creates a HistoryHandler reading from history.
func NewHistoryHandler(history domain.HistoryStore, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{history: history, logger: logger}
}

// ListClosedPositions returns persisted closed positions, newest first.
// GET /api/history/positions
func (h *HistoryHandler) ListClosedPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.history.ListClosedPositions(r.Context(), parseLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list closed positions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"positions": positions})
}

// ListAlerts returns persisted alerts, newest first.
// GET /api/history/alerts
func (h *HistoryHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.history.ListAlerts(r.Context(), parseLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list alert history failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"alerts": alerts})
}
