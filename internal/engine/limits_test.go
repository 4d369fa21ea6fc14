package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/riskwatch/internal/domain"
)

func portfolioWithRisk(score float64) domain.PortfolioSnapshot {
	return domain.PortfolioSnapshot{RiskScore: score, ActiveCount: 1}
}

func alertsByCategory(alerts []domain.Alert, category domain.AlertCategory) []domain.Alert {
	var out []domain.Alert
	for _, a := range alerts {
		if a.Category == category {
			out = append(out, a)
		}
	}
	return out
}

func TestEvaluateEmitsOncePerBreach(t *testing.T) {
	e := NewEvaluator(DefaultRiskLimits())
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	// 7.0 on the 0-10 scale is 70%, above the 60% portfolio limit.
	_, alerts := e.Evaluate(nil, portfolioWithRisk(7), now)
	require.Len(t, alertsByCategory(alerts, domain.AlertPortfolioRisk), 1)

	// Hovering above the limit produces no second alert.
	_, alerts = e.Evaluate(nil, portfolioWithRisk(7.1), now.Add(time.Second))
	assert.Empty(t, alertsByCategory(alerts, domain.AlertPortfolioRisk))

	// Dropping below the limit re-arms the condition.
	_, alerts = e.Evaluate(nil, portfolioWithRisk(5), now.Add(2*time.Second))
	assert.Empty(t, alertsByCategory(alerts, domain.AlertPortfolioRisk))

	_, alerts = e.Evaluate(nil, portfolioWithRisk(7), now.Add(3*time.Second))
	assert.Len(t, alertsByCategory(alerts, domain.AlertPortfolioRisk), 1)
}

func TestEvaluateEscalatesSeverityTier(t *testing.T) {
	e := NewEvaluator(DefaultRiskLimits())
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	_, alerts := e.Evaluate(nil, portfolioWithRisk(7), now)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.SeverityLow, alerts[0].Severity)

	// 9.5 maps to 95%, over 1.5x the 60% limit: a higher tier, so a new
	// alert fires without a re-cross.
	_, alerts = e.Evaluate(nil, portfolioWithRisk(9.5), now.Add(time.Second))
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.SeverityHigh, alerts[0].Severity)
}

func TestEvaluateStopLossTouch(t *testing.T) {
	e := NewEvaluator(DefaultRiskLimits())
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	pos := domain.Position{
		ID: "p-1", Symbol: "BTC-USD", Side: domain.SideLong,
		EntryPrice: 100, CurrentPrice: 90, Quantity: 1,
		StopLoss: f64(90), Status: domain.PositionStatusActive,
	}

	_, alerts := e.Evaluate([]domain.Position{pos}, domain.PortfolioSnapshot{}, now)

	stops := alertsByCategory(alerts, domain.AlertStopLoss)
	require.Len(t, stops, 1)
	assert.Equal(t, domain.SeverityCritical, stops[0].Severity)
	assert.Equal(t, "BTC-USD", stops[0].Symbol)
	assert.InDelta(t, 90, stops[0].Value, 1e-9)
	assert.InDelta(t, 90, stops[0].Threshold, 1e-9)
}

func TestEvaluateTakeProfitTouch(t *testing.T) {
	e := NewEvaluator(DefaultRiskLimits())
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	pos := domain.Position{
		ID: "p-1", Symbol: "BTC-USD", Side: domain.SideLong,
		EntryPrice: 100, CurrentPrice: 121, Quantity: 1,
		TakeProfit: f64(120), Status: domain.PositionStatusActive,
	}

	_, alerts := e.Evaluate([]domain.Position{pos}, domain.PortfolioSnapshot{}, now)

	takes := alertsByCategory(alerts, domain.AlertTakeProfit)
	require.Len(t, takes, 1)
	assert.Equal(t, domain.SeverityLow, takes[0].Severity)
}

func TestDailyLossAndDrawdownMetrics(t *testing.T) {
	e := NewEvaluator(DefaultRiskLimits())
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	// First observation of the day establishes the baselines.
	metrics, _ := e.Evaluate(nil, domain.PortfolioSnapshot{TotalPnL: 0, Exposure: 1000, ActiveCount: 1}, now)
	require.Len(t, metrics, 3)

	// A 100 drop on 1000 exposure is a 10% daily loss and drawdown, past
	// both the 5% and 10% limits.
	metrics, alerts := e.Evaluate(nil, domain.PortfolioSnapshot{TotalPnL: -100, Exposure: 1000, ActiveCount: 1}, now.Add(time.Hour))

	byName := make(map[string]domain.RiskMetric, len(metrics))
	for _, m := range metrics {
		byName[m.Name] = m
	}

	daily, ok := byName["daily_loss"]
	require.True(t, ok)
	assert.InDelta(t, 10, daily.Value, 1e-9)
	assert.Equal(t, domain.MetricStatusCritical, daily.Status)
	assert.Equal(t, domain.TrendUp, daily.Trend)

	dd, ok := byName["drawdown"]
	require.True(t, ok)
	assert.InDelta(t, 10, dd.Value, 1e-9)

	// Both conditions alert under the drawdown category with independent
	// breach state.
	assert.Len(t, alertsByCategory(alerts, domain.AlertDrawdown), 2)
}

func TestValueAtRiskMetric(t *testing.T) {
	e := NewEvaluator(DefaultRiskLimits())
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	vaR := 80.0
	metrics, alerts := e.Evaluate(nil, domain.PortfolioSnapshot{
		Exposure:    1000,
		ValueAtRisk: &vaR,
		ActiveCount: 1,
	}, now)

	var m *domain.RiskMetric
	for i := range metrics {
		if metrics[i].Name == "value_at_risk" {
			m = &metrics[i]
		}
	}
	require.NotNil(t, m)
	assert.InDelta(t, 80, m.Value, 1e-9)
	assert.InDelta(t, 50, m.Threshold, 1e-9) // 5% of 1000 exposure

	assert.Len(t, alertsByCategory(alerts, domain.AlertVarBreach), 1)
}

func TestSeverityFor(t *testing.T) {
	assert.Equal(t, domain.SeverityLow, severityFor(61, 60))
	assert.Equal(t, domain.SeverityMedium, severityFor(75, 60))
	assert.Equal(t, domain.SeverityHigh, severityFor(95, 60))
	assert.Equal(t, domain.SeverityCritical, severityFor(125, 60))
}
