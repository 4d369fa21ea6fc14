package domain

import "time"

// Side is the direction of a position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// PositionStatus tracks the lifecycle state of a position. Transitions are
// monotonic: once closed, a position never returns to active.
type PositionStatus string

const (
	PositionStatusActive  PositionStatus = "active"
	PositionStatusClosed  PositionStatus = "closed"
	PositionStatusPending PositionStatus = "pending"
)

// Position is the canonical record for a single open or historical position.
// Derived fields (UnrealizedPnL, UnrealizedPnLPct, RiskScore) are recomputed
// from the raw fields after every accepted mutation and are never carried
// over from a previous computation.
type Position struct {
	ID           string         `json:"id"`
	Symbol       string         `json:"symbol"`
	Side         Side           `json:"side"`
	EntryPrice   float64        `json:"entryPrice"`
	CurrentPrice float64        `json:"currentPrice"`
	Quantity     float64        `json:"quantity"`
	Leverage     float64        `json:"leverage,omitempty"` // <= 1 means unlevered
	StopLoss     *float64       `json:"stopLoss,omitempty"`
	TakeProfit   *float64       `json:"takeProfit,omitempty"`
	Status       PositionStatus `json:"status"`
	OpenedAt     time.Time      `json:"openedAt"`
	ClosedAt     *time.Time     `json:"closedAt,omitempty"`

	// Sequence is the source-assigned sequence of the newest update applied
	// to any field of this record.
	Sequence  int64     `json:"sequence"`
	UpdatedAt time.Time `json:"updatedAt"`

	UnrealizedPnL    float64 `json:"unrealizedPnl"`
	UnrealizedPnLPct float64 `json:"unrealizedPnlPct"`
	RiskScore        float64 `json:"riskScore"` // [0, 10]
}

// Active reports whether the position still contributes to portfolio
// exposure and risk.
func (p Position) Active() bool {
	return p.Status == PositionStatusActive
}
