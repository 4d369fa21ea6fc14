package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePushEventPositionUpdate(t *testing.T) {
	raw := []byte(`{
		"type": "position_update",
		"sequence": 42,
		"timestamp": 1756400000000,
		"data": {"positionId": "p-1", "currentPrice": 103.5}
	}`)

	ev, err := ParsePushEvent(raw)
	require.NoError(t, err)

	assert.Equal(t, PushPositionUpdate, ev.Type)
	assert.Equal(t, int64(42), ev.Sequence)
	assert.Equal(t, time.UnixMilli(1756400000000).UTC(), ev.Timestamp)
	require.NotNil(t, ev.Delta)
	assert.Equal(t, "p-1", ev.Delta.PositionID)
	require.NotNil(t, ev.Delta.CurrentPrice)
	assert.Equal(t, 103.5, *ev.Delta.CurrentPrice)
	assert.Nil(t, ev.Delta.EntryPrice)
	assert.Nil(t, ev.Alert)
}

func TestParsePushEventRiskAlert(t *testing.T) {
	raw := []byte(`{
		"type": "risk_alert",
		"sequence": 7,
		"timestamp": 1756400000000,
		"data": {"category": "drawdown", "severity": "high", "value": 12.5, "threshold": 10}
	}`)

	ev, err := ParsePushEvent(raw)
	require.NoError(t, err)

	assert.Equal(t, PushRiskAlert, ev.Type)
	require.NotNil(t, ev.Alert)
	assert.Equal(t, AlertDrawdown, ev.Alert.Category)
	assert.Equal(t, SeverityHigh, ev.Alert.Severity)
	assert.Nil(t, ev.Delta)
}

func TestParsePushEventRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"invalid json", `{not json`},
		{"zero sequence", `{"type":"position_update","sequence":0,"timestamp":1,"data":{"positionId":"p-1"}}`},
		{"negative sequence", `{"type":"position_update","sequence":-3,"timestamp":1,"data":{"positionId":"p-1"}}`},
		{"unknown type", `{"type":"margin_call","sequence":1,"timestamp":1,"data":{}}`},
		{"missing position id", `{"type":"position_closed","sequence":1,"timestamp":1,"data":{}}`},
		{"unknown alert category", `{"type":"risk_alert","sequence":1,"timestamp":1,"data":{"category":"weather","severity":"low"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePushEvent([]byte(tt.raw))
			assert.Error(t, err)
		})
	}
}

func TestValidAlertCategory(t *testing.T) {
	assert.True(t, ValidAlertCategory(AlertStopLoss))
	assert.True(t, ValidAlertCategory(AlertVarBreach))
	assert.False(t, ValidAlertCategory(AlertCategory("weather")))
	assert.False(t, ValidAlertCategory(AlertCategory("")))
}
