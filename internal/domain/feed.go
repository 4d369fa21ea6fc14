package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// PushEventType is the closed set of message types on the live channel.
type PushEventType string

const (
	PushPositionUpdate PushEventType = "position_update"
	PushPositionClosed PushEventType = "position_closed"
	PushRiskAlert      PushEventType = "risk_alert"
)

// PositionDelta is the payload of a position_update or position_closed push
// event. Only non-nil fields were touched by the update; the reconciler
// applies last-writer-wins per field, not per record.
type PositionDelta struct {
	PositionID   string   `json:"positionId"`
	Symbol       string   `json:"symbol,omitempty"`
	Side         Side     `json:"side,omitempty"`
	EntryPrice   *float64 `json:"entryPrice,omitempty"`
	CurrentPrice *float64 `json:"currentPrice,omitempty"`
	Quantity     *float64 `json:"quantity,omitempty"`
	Leverage     *float64 `json:"leverage,omitempty"`
	StopLoss     *float64 `json:"stopLoss,omitempty"`
	TakeProfit   *float64 `json:"takeProfit,omitempty"`
}

// RiskAlertPayload is the payload of a risk_alert push event: an alert
// condition detected upstream rather than derived locally.
type RiskAlertPayload struct {
	Category  AlertCategory `json:"category"`
	Severity  AlertSeverity `json:"severity"`
	Symbol    string        `json:"symbol,omitempty"`
	Value     float64       `json:"value"`
	Threshold float64       `json:"threshold"`
}

// PushEvent is a single parsed message from the live update channel. The
// sequence and timestamp come from the source, not the local clock, so
// ordering decisions are immune to clock skew.
type PushEvent struct {
	Type      PushEventType
	Sequence  int64
	Timestamp time.Time

	// Exactly one of the following is set, matching Type.
	Delta *PositionDelta
	Alert *RiskAlertPayload
}

// pushEnvelope is the wire form of a push message.
type pushEnvelope struct {
	Type      PushEventType   `json:"type"`
	Data      json.RawMessage `json:"data"`
	Sequence  int64           `json:"sequence"`
	Timestamp int64           `json:"timestamp"` // unix milliseconds
}

// ParsePushEvent decodes a raw channel message into a typed PushEvent. It
// returns an error for unknown types, missing payloads, or non-positive
// sequences; callers drop such messages without touching state.
func ParsePushEvent(raw []byte) (PushEvent, error) {
	var env pushEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PushEvent{}, fmt.Errorf("push event: decode envelope: %w", err)
	}
	if env.Sequence <= 0 {
		return PushEvent{}, fmt.Errorf("push event: %w: sequence %d", ErrMalformedEvent, env.Sequence)
	}

	ev := PushEvent{
		Type:      env.Type,
		Sequence:  env.Sequence,
		Timestamp: time.UnixMilli(env.Timestamp).UTC(),
	}

	switch env.Type {
	case PushPositionUpdate, PushPositionClosed:
		var delta PositionDelta
		if err := json.Unmarshal(env.Data, &delta); err != nil {
			return PushEvent{}, fmt.Errorf("push event: decode %s payload: %w", env.Type, err)
		}
		if delta.PositionID == "" {
			return PushEvent{}, fmt.Errorf("push event: %w: missing position id", ErrMalformedEvent)
		}
		ev.Delta = &delta
	case PushRiskAlert:
		var alert RiskAlertPayload
		if err := json.Unmarshal(env.Data, &alert); err != nil {
			return PushEvent{}, fmt.Errorf("push event: decode risk_alert payload: %w", err)
		}
		if !ValidAlertCategory(alert.Category) {
			return PushEvent{}, fmt.Errorf("push event: %w: category %q", ErrMalformedEvent, alert.Category)
		}
		ev.Alert = &alert
	default:
		return PushEvent{}, fmt.Errorf("push event: %w: type %q", ErrMalformedEvent, env.Type)
	}

	return ev, nil
}

// SnapshotPosition is one position record inside a full snapshot document.
// Sequence is the source-assigned sequence of the record at snapshot time and
// shares the sequence space with push events.
type SnapshotPosition struct {
	ID           string   `json:"id"`
	Symbol       string   `json:"symbol"`
	Side         Side     `json:"side"`
	EntryPrice   float64  `json:"entryPrice"`
	CurrentPrice float64  `json:"currentPrice"`
	Quantity     float64  `json:"quantity"`
	Leverage     float64  `json:"leverage,omitempty"`
	StopLoss     *float64 `json:"stopLoss,omitempty"`
	TakeProfit   *float64 `json:"takeProfit,omitempty"`
	OpenedAt     int64    `json:"openedAt"` // unix milliseconds
	Sequence     int64    `json:"sequence"`
}

// SnapshotAlert is an upstream-produced alert carried in a snapshot document.
type SnapshotAlert struct {
	Category  AlertCategory `json:"category"`
	Severity  AlertSeverity `json:"severity"`
	Symbol    string        `json:"symbol,omitempty"`
	Value     float64       `json:"value"`
	Threshold float64       `json:"threshold"`
	Timestamp int64         `json:"timestamp"` // unix milliseconds
}

// SnapshotDocument is the full point-in-time state returned by the periodic
// poll. WinRate and AvgRiskScore are optional upstream aggregates; absence
// means unavailable, never zero.
type SnapshotDocument struct {
	Positions    []SnapshotPosition `json:"positions"`
	Alerts       []SnapshotAlert    `json:"alerts"`
	TotalPnL     float64            `json:"totalPnl"`
	ActiveCount  int                `json:"activeCount"`
	WinRate      *float64           `json:"winRate,omitempty"`
	AvgRiskScore *float64           `json:"avgRiskScore,omitempty"`
}
