package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/meridianhq/riskwatch/internal/domain"
)

// AlertHandler serves the alert ring buffer and acknowledgment endpoint.
type AlertHandler struct {
	engine Engine
	logger *slog.Logger
}

// NewAlertHandler creates an AlertHandler backed by engine.
func NewAlertHandler(engine Engine, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{engine: engine, logger: logger}
}

// ListAlerts returns the buffered alerts, newest first. Pass
// unacknowledged=true to hide acknowledged ones.
// GET /api/alerts
func (h *AlertHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := h.engine.Alerts()

	if only, _ := strconv.ParseBool(r.URL.Query().Get("unacknowledged")); only {
		filtered := alerts[:0:0]
		for _, a := range alerts {
			if !a.Acknowledged {
				filtered = append(filtered, a)
			}
		}
		alerts = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
	})
}

// AcknowledgeAlert marks one alert as acknowledged.
// POST /api/alerts/{id}/ack
func (h *AlertHandler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.engine.AcknowledgeAlert(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "alert not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "acknowledged"})
}
