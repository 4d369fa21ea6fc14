package engine

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/riskwatch/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func f64(v float64) *float64 { return &v }

func TestPnL(t *testing.T) {
	tests := []struct {
		name    string
		pos     domain.Position
		wantPnL float64
		wantPct float64
	}{
		{
			name:    "long in profit",
			pos:     domain.Position{Side: domain.SideLong, EntryPrice: 100, CurrentPrice: 110, Quantity: 2},
			wantPnL: 20,
			wantPct: 10,
		},
		{
			name:    "short loses when price rises",
			pos:     domain.Position{Side: domain.SideShort, EntryPrice: 100, CurrentPrice: 110, Quantity: 2},
			wantPnL: -20,
			wantPct: -10,
		},
		{
			name:    "short in profit",
			pos:     domain.Position{Side: domain.SideShort, EntryPrice: 100, CurrentPrice: 90, Quantity: 1},
			wantPnL: 10,
			wantPct: 10,
		},
		{
			name:    "zero entry yields zero percent",
			pos:     domain.Position{Side: domain.SideLong, EntryPrice: 0, CurrentPrice: 10, Quantity: 1},
			wantPnL: 10,
			wantPct: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pnl, pct := PnL(tt.pos)
			assert.InDelta(t, tt.wantPnL, pnl, 1e-9)
			assert.InDelta(t, tt.wantPct, pct, 1e-9)
		})
	}
}

func TestProximity(t *testing.T) {
	tests := []struct {
		name string
		pos  domain.Position
		want float64
	}{
		{
			name: "halfway to target",
			pos:  domain.Position{Side: domain.SideLong, EntryPrice: 100, CurrentPrice: 110, StopLoss: f64(90), TakeProfit: f64(120)},
			want: 0.5,
		},
		{
			name: "halfway to stop",
			pos:  domain.Position{Side: domain.SideLong, EntryPrice: 100, CurrentPrice: 95, StopLoss: f64(90), TakeProfit: f64(120)},
			want: -0.5,
		},
		{
			name: "past target clamps to one",
			pos:  domain.Position{Side: domain.SideLong, EntryPrice: 100, CurrentPrice: 130, StopLoss: f64(90), TakeProfit: f64(120)},
			want: 1,
		},
		{
			name: "at the stop",
			pos:  domain.Position{Side: domain.SideLong, EntryPrice: 100, CurrentPrice: 90, StopLoss: f64(90)},
			want: -1,
		},
		{
			name: "missing target contributes zero",
			pos:  domain.Position{Side: domain.SideLong, EntryPrice: 100, CurrentPrice: 110, StopLoss: f64(90)},
			want: 0,
		},
		{
			name: "short approaching stop",
			pos:  domain.Position{Side: domain.SideShort, EntryPrice: 100, CurrentPrice: 105, StopLoss: f64(110), TakeProfit: f64(80)},
			want: -0.5,
		},
		{
			name: "short approaching target",
			pos:  domain.Position{Side: domain.SideShort, EntryPrice: 100, CurrentPrice: 90, StopLoss: f64(110), TakeProfit: f64(80)},
			want: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Proximity(tt.pos), 1e-9)
		})
	}
}

func TestWeightedRiskPolicyScore(t *testing.T) {
	policy := DefaultRiskPolicy()
	now := time.Now().UTC()

	calm := domain.Position{
		Side: domain.SideLong, EntryPrice: 100, CurrentPrice: 110,
		StopLoss: f64(90), TakeProfit: f64(120),
		Leverage: 1, OpenedAt: now.Add(-time.Hour),
	}
	risky := calm
	risky.Leverage = 15
	risky.CurrentPrice = 91

	calmScore := policy.Score(calm, now)
	riskyScore := policy.Score(risky, now)

	assert.GreaterOrEqual(t, calmScore, 0.0)
	assert.LessOrEqual(t, calmScore, 10.0)
	assert.Greater(t, riskyScore, calmScore)

	// Degenerate weights never divide by zero.
	zero := WeightedRiskPolicy{}
	assert.Zero(t, zero.Score(risky, now))
}

func TestPortfolioEmpty(t *testing.T) {
	calc := NewCalculator(nil)
	now := time.Now().UTC()

	snap := calc.Portfolio(nil, nil, nil, 95, now)

	assert.Zero(t, snap.ActiveCount)
	assert.Zero(t, snap.TotalPnL)
	assert.Nil(t, snap.WinRate)
	assert.Nil(t, snap.AvgRiskScore)
	assert.Nil(t, snap.ValueAtRisk)
	assert.Equal(t, now, snap.UpdatedAt)
}

func TestPortfolioAggregates(t *testing.T) {
	calc := NewCalculator(nil)
	now := time.Now().UTC()

	positions := []domain.Position{
		{Side: domain.SideLong, EntryPrice: 100, CurrentPrice: 110, Quantity: 2, Leverage: 1, OpenedAt: now.Add(-time.Hour)},
		{Side: domain.SideShort, EntryPrice: 50, CurrentPrice: 55, Quantity: 4, Leverage: 2, OpenedAt: now.Add(-time.Hour)},
	}
	for i := range positions {
		calc.Recompute(&positions[i], now)
	}

	winRate := 0.6
	avgRisk := 4.2
	snap := calc.Portfolio(positions, &winRate, &avgRisk, 95, now)

	assert.Equal(t, 2, snap.ActiveCount)
	assert.InDelta(t, 0, snap.TotalPnL, 1e-9) // +20 long, -20 short
	assert.InDelta(t, 220+440, snap.Exposure, 1e-9)
	require.NotNil(t, snap.WinRate)
	assert.Equal(t, 0.6, *snap.WinRate)
	require.NotNil(t, snap.AvgRiskScore)
	assert.Equal(t, 4.2, *snap.AvgRiskScore)

	// Returns are +10% and -10%; the dispersion makes VaR strictly positive.
	require.NotNil(t, snap.ValueAtRisk)
	assert.InDelta(t, snap.Exposure*0.1*1.645, *snap.ValueAtRisk, 1e-6)
}

func TestZScoreInterpolation(t *testing.T) {
	assert.InDelta(t, 1.282, zScore(90), 1e-9)
	assert.InDelta(t, 1.645, zScore(95), 1e-9)
	assert.InDelta(t, 2.326, zScore(99), 1e-9)
	assert.InDelta(t, 1.9855, zScore(97), 1e-4)
	assert.InDelta(t, 1.282, zScore(50), 1e-9)
	assert.InDelta(t, 2.326, zScore(99.9), 1e-9)
}

func TestExposure(t *testing.T) {
	assert.InDelta(t, 220, Exposure(domain.Position{CurrentPrice: 110, Quantity: 2}), 1e-9)
	assert.InDelta(t, 440, Exposure(domain.Position{CurrentPrice: 110, Quantity: 2, Leverage: 2}), 1e-9)
	assert.InDelta(t, 220, Exposure(domain.Position{CurrentPrice: 110, Quantity: -2}), 1e-9)
}
