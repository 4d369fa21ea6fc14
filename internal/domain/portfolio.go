package domain

import "time"

// PortfolioSnapshot aggregates all active positions. WinRate, AvgRiskScore,
// and ValueAtRisk are nil when they cannot be computed or were not reported
// by the upstream source; consumers must render that as unavailable, never
// as zero. RiskScore is derived locally; AvgRiskScore is the source's own
// aggregate, kept separate so the two never masquerade as each other.
type PortfolioSnapshot struct {
	TotalPnL     float64   `json:"totalPnl"`
	Exposure     float64   `json:"exposure"`
	WinRate      *float64  `json:"winRate,omitempty"`
	RiskScore    float64   `json:"riskScore"`
	AvgRiskScore *float64  `json:"avgRiskScore,omitempty"`
	ValueAtRisk  *float64  `json:"valueAtRisk,omitempty"`
	ActiveCount  int       `json:"activeCount"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// EngineSnapshot is the immutable view delivered to subscribed consumers on
// every published state change.
type EngineSnapshot struct {
	Positions   []Position        `json:"positions"`
	RiskMetrics []RiskMetric      `json:"riskMetrics"`
	Alerts      []Alert           `json:"alerts"`
	Portfolio   PortfolioSnapshot `json:"portfolio"`

	// Stale is set after repeated snapshot fetch failures; the data shown is
	// the last known good state.
	Stale bool `json:"stale"`
}
