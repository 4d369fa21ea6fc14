package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianhq/riskwatch/internal/domain"
)

func newTestReconciler(t *testing.T) (*Reconciler, *Store) {
	t.Helper()
	store := NewStore()
	return NewReconciler(store, NewCalculator(nil), testLogger()), store
}

func snapshotPos(id, symbol string, seq int64, entry, current float64) domain.SnapshotPosition {
	return domain.SnapshotPosition{
		ID:           id,
		Symbol:       symbol,
		Side:         domain.SideLong,
		EntryPrice:   entry,
		CurrentPrice: current,
		Quantity:     2,
		OpenedAt:     time.Now().Add(-time.Hour).UnixMilli(),
		Sequence:     seq,
	}
}

func updateEvent(id string, seq int64, delta domain.PositionDelta) domain.PushEvent {
	delta.PositionID = id
	return domain.PushEvent{
		Type:      domain.PushPositionUpdate,
		Sequence:  seq,
		Timestamp: time.Now().UTC(),
		Delta:     &delta,
	}
}

func closeEvent(id string, seq int64) domain.PushEvent {
	return domain.PushEvent{
		Type:      domain.PushPositionClosed,
		Sequence:  seq,
		Timestamp: time.Now().UTC(),
		Delta:     &domain.PositionDelta{PositionID: id},
	}
}

func TestApplySnapshotCreatesPositions(t *testing.T) {
	r, store := newTestReconciler(t)

	res := r.ApplySnapshot(domain.SnapshotDocument{
		Positions: []domain.SnapshotPosition{
			snapshotPos("p-1", "BTC-USD", 1, 100, 110),
			snapshotPos("p-2", "ETH-USD", 1, 50, 45),
		},
	})

	assert.ElementsMatch(t, []string{"p-1", "p-2"}, res.Changed)
	assert.Empty(t, res.Closed)

	pos, ok := store.Get("p-1")
	require.True(t, ok)
	assert.Equal(t, domain.PositionStatusActive, pos.Status)
	assert.InDelta(t, 20, pos.UnrealizedPnL, 1e-9)
	assert.InDelta(t, 10, pos.UnrealizedPnLPct, 1e-9)
}

func TestApplySnapshotDropsInvalidRecords(t *testing.T) {
	r, store := newTestReconciler(t)

	res := r.ApplySnapshot(domain.SnapshotDocument{
		Positions: []domain.SnapshotPosition{
			{ID: "", Symbol: "BTC-USD", EntryPrice: 100, CurrentPrice: 110, Quantity: 1, Sequence: 1},
			{ID: "p-neg", Symbol: "BTC-USD", EntryPrice: 100, CurrentPrice: -5, Quantity: 1, Sequence: 1},
			snapshotPos("p-ok", "BTC-USD", 1, 100, 110),
		},
	})

	assert.Equal(t, []string{"p-ok"}, res.Changed)
	_, ok := store.Get("p-neg")
	assert.False(t, ok)
}

func TestApplySnapshotIsIdempotent(t *testing.T) {
	r, store := newTestReconciler(t)
	doc := domain.SnapshotDocument{
		Positions: []domain.SnapshotPosition{snapshotPos("p-1", "BTC-USD", 3, 100, 110)},
	}

	r.ApplySnapshot(doc)
	first, _ := store.Get("p-1")
	r.ApplySnapshot(doc)
	second, _ := store.Get("p-1")

	assert.Equal(t, first.CurrentPrice, second.CurrentPrice)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Sequence, second.Sequence)
}

func TestAbsentFromSnapshotTransitionsToClosed(t *testing.T) {
	r, store := newTestReconciler(t)

	r.ApplySnapshot(domain.SnapshotDocument{
		Positions: []domain.SnapshotPosition{
			snapshotPos("p-1", "BTC-USD", 1, 100, 110),
			snapshotPos("p-2", "ETH-USD", 1, 50, 45),
		},
	})

	res := r.ApplySnapshot(domain.SnapshotDocument{
		Positions: []domain.SnapshotPosition{snapshotPos("p-1", "BTC-USD", 2, 100, 112)},
	})

	require.Len(t, res.Closed, 1)
	assert.Equal(t, "p-2", res.Closed[0].ID)

	// The record survives as closed, it is not deleted.
	pos, ok := store.Get("p-2")
	require.True(t, ok)
	assert.Equal(t, domain.PositionStatusClosed, pos.Status)
	require.NotNil(t, pos.ClosedAt)
}

func TestSnapshotCannotReopenClosedPosition(t *testing.T) {
	r, store := newTestReconciler(t)
	doc := domain.SnapshotDocument{
		Positions: []domain.SnapshotPosition{snapshotPos("p-1", "BTC-USD", 1, 100, 110)},
	}

	r.ApplySnapshot(doc)
	res := r.ApplyDelta(closeEvent("p-1", 5))
	require.Len(t, res.Closed, 1)

	r.ApplySnapshot(doc)

	pos, _ := store.Get("p-1")
	assert.Equal(t, domain.PositionStatusClosed, pos.Status)
}

func TestOutOfOrderDeltasAreDiscarded(t *testing.T) {
	r, store := newTestReconciler(t)
	r.ApplySnapshot(domain.SnapshotDocument{
		Positions: []domain.SnapshotPosition{snapshotPos("p-1", "BTC-USD", 1, 100, 110)},
	})

	res := r.ApplyDelta(updateEvent("p-1", 3, domain.PositionDelta{CurrentPrice: f64(120)}))
	assert.False(t, res.Stale)

	// A slower path delivers the older update afterwards.
	res = r.ApplyDelta(updateEvent("p-1", 2, domain.PositionDelta{CurrentPrice: f64(90)}))
	assert.True(t, res.Stale)

	pos, _ := store.Get("p-1")
	assert.InDelta(t, 120, pos.CurrentPrice, 1e-9)
	assert.Equal(t, int64(3), pos.Sequence)
}

func TestDeltaAppliesPerField(t *testing.T) {
	r, store := newTestReconciler(t)
	r.ApplySnapshot(domain.SnapshotDocument{
		Positions: []domain.SnapshotPosition{snapshotPos("p-1", "BTC-USD", 1, 100, 110)},
	})

	// Price moved at seq 5; a late seq-3 delta still owns the untouched
	// quantity field.
	r.ApplyDelta(updateEvent("p-1", 5, domain.PositionDelta{CurrentPrice: f64(120)}))
	res := r.ApplyDelta(updateEvent("p-1", 3, domain.PositionDelta{
		CurrentPrice: f64(90),
		Quantity:     f64(7),
	}))
	assert.False(t, res.Stale)

	pos, _ := store.Get("p-1")
	assert.InDelta(t, 120, pos.CurrentPrice, 1e-9)
	assert.InDelta(t, 7, pos.Quantity, 1e-9)
}

func TestSnapshotKeepsNewerPushFields(t *testing.T) {
	r, store := newTestReconciler(t)
	r.ApplySnapshot(domain.SnapshotDocument{
		Positions: []domain.SnapshotPosition{snapshotPos("p-1", "BTC-USD", 1, 100, 110)},
	})
	r.ApplyDelta(updateEvent("p-1", 5, domain.PositionDelta{CurrentPrice: f64(120)}))

	// The poll races the push feed; its record predates the push update.
	r.ApplySnapshot(domain.SnapshotDocument{
		Positions: []domain.SnapshotPosition{snapshotPos("p-1", "BTC-USD", 3, 101, 105)},
	})

	pos, _ := store.Get("p-1")
	assert.InDelta(t, 120, pos.CurrentPrice, 1e-9, "push field newer than snapshot must win")
	assert.InDelta(t, 101, pos.EntryPrice, 1e-9, "untouched field follows the snapshot")
}

func TestDeltaOlderThanSnapshotIsDiscarded(t *testing.T) {
	r, store := newTestReconciler(t)
	r.ApplySnapshot(domain.SnapshotDocument{
		Positions: []domain.SnapshotPosition{snapshotPos("p-1", "BTC-USD", 5, 100, 110)},
	})

	// The push feed replays an update that predates the snapshot record.
	res := r.ApplyDelta(updateEvent("p-1", 3, domain.PositionDelta{CurrentPrice: f64(90)}))
	assert.True(t, res.Stale)

	pos, _ := store.Get("p-1")
	assert.InDelta(t, 110, pos.CurrentPrice, 1e-9, "snapshot value must survive an older delta")
	assert.Equal(t, int64(5), pos.Sequence)

	// A close older than the snapshot is equally stale.
	res = r.ApplyDelta(closeEvent("p-1", 4))
	assert.True(t, res.Stale)
	pos, _ = store.Get("p-1")
	assert.Equal(t, domain.PositionStatusActive, pos.Status)
}

func TestCloseIsTerminalAndIdempotent(t *testing.T) {
	r, _ := newTestReconciler(t)
	r.ApplySnapshot(domain.SnapshotDocument{
		Positions: []domain.SnapshotPosition{snapshotPos("p-1", "BTC-USD", 1, 100, 110)},
	})

	res := r.ApplyDelta(closeEvent("p-1", 4))
	require.Len(t, res.Closed, 1)

	// Redelivery of the same close.
	res = r.ApplyDelta(closeEvent("p-1", 4))
	assert.True(t, res.Stale)
	assert.Empty(t, res.Closed)

	// A later update cannot resurrect the position.
	res = r.ApplyDelta(updateEvent("p-1", 9, domain.PositionDelta{CurrentPrice: f64(150)}))
	assert.True(t, res.Stale)
}

func TestDeltaCreatesUnknownPosition(t *testing.T) {
	r, store := newTestReconciler(t)

	res := r.ApplyDelta(updateEvent("p-new", 8, domain.PositionDelta{
		Symbol:       "SOL-USD",
		Side:         domain.SideShort,
		EntryPrice:   f64(200),
		CurrentPrice: f64(190),
		Quantity:     f64(3),
	}))

	assert.Equal(t, []string{"p-new"}, res.Changed)
	pos, ok := store.Get("p-new")
	require.True(t, ok)
	assert.Equal(t, domain.SideShort, pos.Side)
	assert.Equal(t, int64(8), pos.Sequence)
	assert.InDelta(t, 30, pos.UnrealizedPnL, 1e-9)
}

func TestPartialDeltaForUnknownPositionIsIgnored(t *testing.T) {
	r, store := newTestReconciler(t)

	res := r.ApplyDelta(updateEvent("p-ghost", 8, domain.PositionDelta{CurrentPrice: f64(190)}))

	assert.Empty(t, res.Changed)
	assert.False(t, res.Stale)
	_, ok := store.Get("p-ghost")
	assert.False(t, ok)
}
