package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/riskwatch/internal/domain"
)

func TestStoreListOrdering(t *testing.T) {
	store := NewStore()
	base := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	store.upsert(domain.Position{ID: "b", OpenedAt: base})
	store.upsert(domain.Position{ID: "a", OpenedAt: base})
	store.upsert(domain.Position{ID: "c", OpenedAt: base.Add(-time.Hour)})

	got := store.List(nil)
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "a", got[1].ID)
	assert.Equal(t, "b", got[2].ID)
}

func TestStoreActiveFiltersClosed(t *testing.T) {
	store := NewStore()
	store.upsert(domain.Position{ID: "open", Status: domain.PositionStatusActive})
	store.upsert(domain.Position{ID: "done", Status: domain.PositionStatusClosed})

	active := store.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "open", active[0].ID)
}

func TestStoreMarkClosedIsTerminal(t *testing.T) {
	store := NewStore()
	at := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	store.upsert(domain.Position{ID: "p-1", Status: domain.PositionStatusActive, Sequence: 2})

	closed, ok := store.markClosed("p-1", at, 5)
	require.True(t, ok)
	assert.Equal(t, domain.PositionStatusClosed, closed.Status)
	assert.Equal(t, int64(5), closed.Sequence)
	require.NotNil(t, closed.ClosedAt)
	assert.Equal(t, at, *closed.ClosedAt)

	_, ok = store.markClosed("p-1", at.Add(time.Minute), 6)
	assert.False(t, ok)

	_, ok = store.markClosed("missing", at, 1)
	assert.False(t, ok)
}

func TestStoreMetrics(t *testing.T) {
	store := NewStore()
	store.SetMetrics([]domain.RiskMetric{
		{Name: "drawdown", Value: 3},
		{Name: "daily_loss", Value: 1},
	})

	metrics := store.Metrics()
	require.Len(t, metrics, 2)
	assert.Equal(t, "daily_loss", metrics[0].Name)
	assert.Equal(t, "drawdown", metrics[1].Name)

	m, ok := store.Metric("drawdown")
	require.True(t, ok)
	assert.InDelta(t, 3, m.Value, 1e-9)
}
