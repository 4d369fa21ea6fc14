package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridianhq/riskwatch/internal/domain"
)

// RiskLimits is the active limit configuration the evaluator compares
// derived metrics against.
type RiskLimits struct {
	MaxPositionRiskPct  float64
	MaxPortfolioRiskPct float64
	MaxDailyLossPct     float64
	MaxDrawdownPct      float64
	VaRConfidencePct    float64
}

// DefaultRiskLimits returns conservative limits used when none are
// configured.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxPositionRiskPct:  75,
		MaxPortfolioRiskPct: 60,
		MaxDailyLossPct:     5,
		MaxDrawdownPct:      10,
		VaRConfidencePct:    95,
	}
}

// crossingKey identifies one alertable condition. Portfolio-level
// conditions use an empty symbol.
type crossingKey struct {
	symbol   string
	category domain.AlertCategory
}

// Evaluator compares recomputed metrics against the risk limits and emits
// alerts on threshold crossings. It remembers which conditions are currently
// breached so a metric hovering above its limit produces one alert, not a
// storm; crossing back below re-arms the condition without acknowledging
// anything.
type Evaluator struct {
	limits RiskLimits

	breached map[crossingKey]domain.AlertSeverity
	prev     map[string]float64 // previous metric values, for trend

	dayStart    time.Time
	dayStartPnL float64
	peakPnL     float64
	havePeak    bool
}

// NewEvaluator creates an Evaluator with the given limits.
func NewEvaluator(limits RiskLimits) *Evaluator {
	return &Evaluator{
		limits:   limits,
		breached: make(map[crossingKey]domain.AlertSeverity),
		prev:     make(map[string]float64),
	}
}

// Limits returns the active limit configuration.
func (e *Evaluator) Limits() RiskLimits { return e.limits }

// Evaluate derives the risk metric set for the current state and returns any
// newly crossed alerts. It must be called from the engine's single apply
// path; it is not safe for concurrent use.
func (e *Evaluator) Evaluate(active []domain.Position, portfolio domain.PortfolioSnapshot, now time.Time) ([]domain.RiskMetric, []domain.Alert) {
	var alerts []domain.Alert

	// Per-position conditions first: stop/target touches and position risk.
	for _, pos := range active {
		prox := Proximity(pos)
		if pos.StopLoss != nil {
			if a, ok := e.cross(pos.Symbol, domain.AlertStopLoss, -prox, 1, now); ok {
				a.Value = pos.CurrentPrice
				a.Threshold = *pos.StopLoss
				a.Severity = domain.SeverityCritical
				alerts = append(alerts, a)
			}
		}
		if pos.TakeProfit != nil {
			if a, ok := e.cross(pos.Symbol, domain.AlertTakeProfit, prox, 1, now); ok {
				a.Value = pos.CurrentPrice
				a.Threshold = *pos.TakeProfit
				a.Severity = domain.SeverityLow
				alerts = append(alerts, a)
			}
		}
		// Risk score on the 0-10 scale maps to percent of the max.
		if a, ok := e.cross(pos.Symbol, domain.AlertPositionRisk, pos.RiskScore*10, e.limits.MaxPositionRiskPct, now); ok {
			alerts = append(alerts, a)
		}
	}

	metrics := e.portfolioMetrics(portfolio, now)
	for _, m := range metrics {
		category := metricCategory(m.Name)
		if a, crossed := e.crossKeyed(m.Name, "", category, m.Value, m.Threshold, now); crossed {
			alerts = append(alerts, a)
		}
	}

	return metrics, alerts
}

// portfolioMetrics builds the portfolio-level metric set, deriving status
// from value and threshold and trend from the previous observation.
func (e *Evaluator) portfolioMetrics(p domain.PortfolioSnapshot, now time.Time) []domain.RiskMetric {
	// Daily loss resets at UTC midnight.
	day := now.Truncate(24 * time.Hour)
	if !day.Equal(e.dayStart) {
		e.dayStart = day
		e.dayStartPnL = p.TotalPnL
	}
	if !e.havePeak || p.TotalPnL > e.peakPnL {
		e.peakPnL = p.TotalPnL
		e.havePeak = true
	}

	metrics := []domain.RiskMetric{
		{
			Name:      "portfolio_risk",
			Value:     p.RiskScore * 10,
			Threshold: e.limits.MaxPortfolioRiskPct,
			Unit:      "%",
		},
	}

	if p.Exposure > 0 {
		dailyLoss := e.dayStartPnL - p.TotalPnL
		if dailyLoss < 0 {
			dailyLoss = 0
		}
		drawdown := e.peakPnL - p.TotalPnL
		if drawdown < 0 {
			drawdown = 0
		}
		metrics = append(metrics,
			domain.RiskMetric{
				Name:      "daily_loss",
				Value:     dailyLoss / p.Exposure * 100,
				Threshold: e.limits.MaxDailyLossPct,
				Unit:      "%",
			},
			domain.RiskMetric{
				Name:      "drawdown",
				Value:     drawdown / p.Exposure * 100,
				Threshold: e.limits.MaxDrawdownPct,
				Unit:      "%",
			},
		)
		if p.ValueAtRisk != nil {
			metrics = append(metrics, domain.RiskMetric{
				Name:      "value_at_risk",
				Value:     *p.ValueAtRisk,
				Threshold: e.limits.MaxDailyLossPct / 100 * p.Exposure,
				Unit:      "$",
			})
		}
	}

	for i := range metrics {
		m := &metrics[i]
		m.Status = domain.StatusFor(m.Value, m.Threshold)
		if prev, ok := e.prev[m.Name]; ok {
			m.Trend = domain.TrendFor(prev, m.Value)
		} else {
			m.Trend = domain.TrendStable
		}
		e.prev[m.Name] = m.Value
	}
	return metrics
}

// cross updates the breach state for one condition and returns an alert when
// the condition newly exceeds its threshold or its severity tier rises.
func (e *Evaluator) cross(symbol string, category domain.AlertCategory, value, threshold float64, now time.Time) (domain.Alert, bool) {
	return e.crossKeyed(symbol, symbol, category, value, threshold, now)
}

// crossKeyed is cross with an explicit breach-state key, letting two
// portfolio metrics that share an alert category (daily loss and drawdown)
// track their breach state independently.
func (e *Evaluator) crossKeyed(keyName, symbol string, category domain.AlertCategory, value, threshold float64, now time.Time) (domain.Alert, bool) {
	key := crossingKey{symbol: keyName, category: category}

	if threshold <= 0 || value < threshold {
		delete(e.breached, key)
		return domain.Alert{}, false
	}

	severity := severityFor(value, threshold)
	if prev, ok := e.breached[key]; ok && severity.Rank() <= prev.Rank() {
		// Still breached at the same or lower tier; no new alert until the
		// condition re-crosses.
		return domain.Alert{}, false
	}
	e.breached[key] = severity

	return domain.Alert{
		ID:        uuid.NewString(),
		Category:  category,
		Severity:  severity,
		Symbol:    symbol,
		Value:     value,
		Threshold: threshold,
		Timestamp: now,
	}, true
}

// severityFor grades a breach by how far the value sits past its threshold.
func severityFor(value, threshold float64) domain.AlertSeverity {
	ratio := value / threshold
	switch {
	case ratio >= 2:
		return domain.SeverityCritical
	case ratio >= 1.5:
		return domain.SeverityHigh
	case ratio >= 1.2:
		return domain.SeverityMedium
	default:
		return domain.SeverityLow
	}
}

// metricCategory maps a portfolio metric to the alert category raised when
// it breaches. Daily loss shares the drawdown category; its breach state is
// keyed by metric name so the two do not mask each other.
func metricCategory(name string) domain.AlertCategory {
	switch name {
	case "portfolio_risk":
		return domain.AlertPortfolioRisk
	case "daily_loss", "drawdown":
		return domain.AlertDrawdown
	case "value_at_risk":
		return domain.AlertVarBreach
	default:
		return domain.AlertPortfolioRisk
	}
}
