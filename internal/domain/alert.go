package domain

import "time"

// AlertCategory is the closed set of alert conditions the engine can raise.
type AlertCategory string

const (
	AlertPositionRisk  AlertCategory = "position-risk"
	AlertPortfolioRisk AlertCategory = "portfolio-risk"
	AlertDrawdown      AlertCategory = "drawdown"
	AlertVarBreach     AlertCategory = "var-breach"
	AlertStopLoss      AlertCategory = "stop-loss"
	AlertTakeProfit    AlertCategory = "take-profit"
)

// ValidAlertCategory reports whether c is a known category. Unknown values
// from upstream are rejected rather than carried as free-form strings.
func ValidAlertCategory(c AlertCategory) bool {
	switch c {
	case AlertPositionRisk, AlertPortfolioRisk, AlertDrawdown,
		AlertVarBreach, AlertStopLoss, AlertTakeProfit:
		return true
	}
	return false
}

// AlertSeverity ranks how urgent an alert is. Severities are ordered; see
// Rank.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// Rank returns the numeric ordering of a severity, with critical highest.
func (s AlertSeverity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	default:
		return 0
	}
}

// Alert is a single threshold-crossing event. Alerts stay in the ring buffer
// until evicted and require explicit operator acknowledgment.
type Alert struct {
	ID           string        `json:"id"`
	Category     AlertCategory `json:"category"`
	Severity     AlertSeverity `json:"severity"`
	Symbol       string        `json:"symbol,omitempty"` // empty for portfolio-level alerts
	Value        float64       `json:"value"`
	Threshold    float64       `json:"threshold"`
	Timestamp    time.Time     `json:"timestamp"`
	Acknowledged bool          `json:"acknowledged"`
}
