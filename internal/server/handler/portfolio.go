package handler

import (
	"log/slog"
	"net/http"
)

// PortfolioHandler serves portfolio aggregates and risk metrics.
type PortfolioHandler struct {
	engine Engine
	logger *slog.Logger
}

// NewPortfolioHandler creates a PortfolioHandler backed by engine.
func NewPortfolioHandler(engine Engine, logger *slog.Logger) *PortfolioHandler {
	return &PortfolioHandler{engine: engine, logger: logger}
}

// GetPortfolio returns the current portfolio aggregates. Optional fields
// (winRate, valueAtRisk) are null when the inputs to compute them are
// unavailable.
// GET /api/portfolio
func (h *PortfolioHandler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"portfolio": h.engine.Portfolio(),
		"stale":     h.engine.Stale(),
	})
}

// ListMetrics returns the current risk metric set with status and trend.
// GET /api/risk/metrics
func (h *PortfolioHandler) ListMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"metrics": h.engine.Metrics(),
		"stale":   h.engine.Stale(),
	})
}
