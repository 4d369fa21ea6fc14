package engine

import (
	"math"
	"time"

	"github.com/meridianhq/riskwatch/internal/domain"
)

// RiskPolicy scores a single position on a 0-10 scale. The weighting of
// leverage, stop proximity, and holding duration is deployment policy, so it
// is injected rather than hard-coded.
type RiskPolicy interface {
	Score(pos domain.Position, now time.Time) float64
}

// WeightedRiskPolicy is the default RiskPolicy: a weighted blend of
// leverage, proximity to the stop level, and holding duration, normalized to
// [0, 10].
type WeightedRiskPolicy struct {
	LeverageWeight  float64
	ProximityWeight float64
	DurationWeight  float64
	// MaxLeverage is the leverage treated as maximally risky.
	MaxLeverage float64
	// MaxDuration is the holding time treated as maximally risky.
	MaxDuration time.Duration
}

// DefaultRiskPolicy returns the stock weighting used when no policy is
// configured.
func DefaultRiskPolicy() WeightedRiskPolicy {
	return WeightedRiskPolicy{
		LeverageWeight:  0.5,
		ProximityWeight: 0.35,
		DurationWeight:  0.15,
		MaxLeverage:     20,
		MaxDuration:     30 * 24 * time.Hour,
	}
}

// Score implements RiskPolicy.
func (p WeightedRiskPolicy) Score(pos domain.Position, now time.Time) float64 {
	total := p.LeverageWeight + p.ProximityWeight + p.DurationWeight
	if total <= 0 {
		return 0
	}

	lev := pos.Leverage
	if lev < 1 {
		lev = 1
	}
	levComp := (lev - 1) / (p.MaxLeverage - 1)

	// Proximity runs from -1 (at stop) to +1 (at target); risk rises as the
	// position approaches its stop.
	proxComp := (1 - Proximity(pos)) / 2

	durComp := 0.0
	if p.MaxDuration > 0 && !pos.OpenedAt.IsZero() {
		durComp = float64(now.Sub(pos.OpenedAt)) / float64(p.MaxDuration)
	}

	score := 10 * (p.LeverageWeight*clamp01(levComp) +
		p.ProximityWeight*clamp01(proxComp) +
		p.DurationWeight*clamp01(durComp)) / total
	return clamp(score, 0, 10)
}

// Calculator derives P&L and risk figures from a position's raw fields. It
// holds no state of its own; every call recomputes from scratch so derived
// values can never drift from their inputs.
type Calculator struct {
	policy RiskPolicy
}

// NewCalculator creates a Calculator using the given risk policy, or the
// default weighting when policy is nil.
func NewCalculator(policy RiskPolicy) *Calculator {
	if policy == nil {
		policy = DefaultRiskPolicy()
	}
	return &Calculator{policy: policy}
}

// Recompute fills the derived fields of pos from its raw fields.
func (c *Calculator) Recompute(pos *domain.Position, now time.Time) {
	pos.UnrealizedPnL, pos.UnrealizedPnLPct = PnL(*pos)
	pos.RiskScore = c.policy.Score(*pos, now)
}

// PnL returns the unrealized profit and its percentage of the entry price
// for the given position.
func PnL(pos domain.Position) (pnl, pnlPct float64) {
	diff := pos.CurrentPrice - pos.EntryPrice
	if pos.Side == domain.SideShort {
		diff = -diff
	}
	pnl = diff * pos.Quantity
	if pos.EntryPrice != 0 {
		pnlPct = diff / pos.EntryPrice * 100
	}
	return pnl, pnlPct
}

// Proximity returns the normalized distance of the current price between the
// stop and target levels: -1 at the stop, 0 at entry, +1 at the target. A
// missing bound contributes 0 on its side; the value is clamped to [-1, 1].
func Proximity(pos domain.Position) float64 {
	// Favorable movement is price up for longs, down for shorts.
	move := pos.CurrentPrice - pos.EntryPrice
	if pos.Side == domain.SideShort {
		move = -move
	}

	if move >= 0 {
		if pos.TakeProfit == nil {
			return 0
		}
		span := *pos.TakeProfit - pos.EntryPrice
		if pos.Side == domain.SideShort {
			span = -span
		}
		if span <= 0 {
			return 0
		}
		return clamp(move/span, 0, 1)
	}

	if pos.StopLoss == nil {
		return 0
	}
	span := pos.EntryPrice - *pos.StopLoss
	if pos.Side == domain.SideShort {
		span = -span
	}
	if span <= 0 {
		return 0
	}
	return clamp(move/span, -1, 0)
}

// Exposure returns the notional exposure of a position, scaled by leverage
// when present.
func Exposure(pos domain.Position) float64 {
	lev := pos.Leverage
	if lev < 1 {
		lev = 1
	}
	return math.Abs(pos.CurrentPrice*pos.Quantity) * lev
}

// Portfolio aggregates the active positions into a portfolio snapshot.
// winRate and avgRiskScore come from the upstream source when reported; they
// are never fabricated locally. VaR is a parametric estimate from the dispersion of
// position returns at the given confidence level and is absent when there
// are no active positions.
func (c *Calculator) Portfolio(active []domain.Position, winRate, avgRiskScore *float64, varConfidencePct float64, now time.Time) domain.PortfolioSnapshot {
	snap := domain.PortfolioSnapshot{
		ActiveCount:  len(active),
		WinRate:      winRate,
		AvgRiskScore: avgRiskScore,
		UpdatedAt:    now,
	}
	if len(active) == 0 {
		return snap
	}

	var weightedScore float64
	returns := make([]float64, 0, len(active))
	for _, pos := range active {
		exp := Exposure(pos)
		snap.TotalPnL += pos.UnrealizedPnL
		snap.Exposure += exp
		weightedScore += pos.RiskScore * exp
		returns = append(returns, pos.UnrealizedPnLPct/100)
	}
	if snap.Exposure > 0 {
		snap.RiskScore = clamp(weightedScore/snap.Exposure, 0, 10)
	}

	vaR := snap.Exposure * stddev(returns) * zScore(varConfidencePct)
	snap.ValueAtRisk = &vaR
	return snap
}

// zScore returns the one-tailed normal z value for a confidence level given
// in percent, interpolating between the common 90/95/99 anchors.
func zScore(confidencePct float64) float64 {
	anchors := []struct{ pct, z float64 }{
		{90, 1.282},
		{95, 1.645},
		{99, 2.326},
	}
	if confidencePct <= anchors[0].pct {
		return anchors[0].z
	}
	for i := 1; i < len(anchors); i++ {
		if confidencePct <= anchors[i].pct {
			lo, hi := anchors[i-1], anchors[i]
			frac := (confidencePct - lo.pct) / (hi.pct - lo.pct)
			return lo.z + frac*(hi.z-lo.z)
		}
	}
	return anchors[len(anchors)-1].z
}

func stddev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var variance float64
	for _, x := range xs {
		variance += (x - mean) * (x - mean)
	}
	variance /= float64(len(xs))
	return math.Sqrt(variance)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func clamp01(x float64) float64 { return clamp(x, 0, 1) }
