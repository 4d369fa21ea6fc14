package engine

import (
	"log/slog"
	"time"

	"github.com/meridianhq/riskwatch/internal/domain"
)

// field identifies a single reconcilable field on a position record.
// Last-writer-wins is tracked per field, not per record, so a snapshot can
// refresh untouched fields while a newer push update keeps the ones it set.
type field int

const (
	fieldEntryPrice field = iota
	fieldCurrentPrice
	fieldQuantity
	fieldLeverage
	fieldStopLoss
	fieldTakeProfit
	fieldStatus
	fieldCount
)

type fieldSeqs [fieldCount]int64

// ApplyResult describes the outcome of reconciling one input.
type ApplyResult struct {
	// Changed lists the ids of positions whose record was mutated.
	Changed []string
	// Closed lists positions that transitioned to closed in this apply.
	Closed []domain.Position
	// Stale is true when a push delta was discarded because its sequence
	// was not newer than the last applied one. Expected traffic, not an
	// error.
	Stale bool
}

// Reconciler arbitrates between full-snapshot and push-delta inputs. It is
// the only writer of the Store; the engine feeds it from a single serialized
// apply queue, which is what makes field-level last-writer-wins well defined.
type Reconciler struct {
	store  *Store
	calc   *Calculator
	seqs   map[string]*fieldSeqs
	logger *slog.Logger
	now    func() time.Time
}

// NewReconciler creates a Reconciler writing through to the given store and
// recomputing derived metrics with calc after every accepted mutation.
func NewReconciler(store *Store, calc *Calculator, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		calc:   calc,
		seqs:   make(map[string]*fieldSeqs),
		logger: logger.With(slog.String("component", "reconciler")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (r *Reconciler) seqsFor(id string) *fieldSeqs {
	fs, ok := r.seqs[id]
	if !ok {
		fs = &fieldSeqs{}
		r.seqs[id] = fs
	}
	return fs
}

// ApplySnapshot reconciles a full snapshot document into the store. Every
// snapshot position is upserted unless a push-sourced update for a field
// carries a strictly newer sequence, in which case the push value wins for
// that field. Stored positions absent from the snapshot transition to
// closed; they are never deleted, preserving audit history.
func (r *Reconciler) ApplySnapshot(doc domain.SnapshotDocument) ApplyResult {
	var res ApplyResult
	now := r.now()
	seen := make(map[string]struct{}, len(doc.Positions))

	for _, sp := range doc.Positions {
		if sp.ID == "" || sp.CurrentPrice <= 0 || sp.EntryPrice <= 0 {
			r.logger.Warn("snapshot position dropped",
				slog.String("id", sp.ID),
				slog.Float64("current_price", sp.CurrentPrice),
			)
			continue
		}
		seen[sp.ID] = struct{}{}

		existing, exists := r.store.Get(sp.ID)
		if exists && existing.Status == domain.PositionStatusClosed {
			// Closed is terminal; a snapshot cannot reopen a position.
			continue
		}

		pos := r.mergeSnapshotPosition(existing, exists, sp, now)
		r.calc.Recompute(&pos, now)
		r.store.upsert(pos)
		res.Changed = append(res.Changed, pos.ID)
	}

	// Positions the fresh snapshot no longer reports have exited upstream.
	for _, pos := range r.store.Active() {
		if _, ok := seen[pos.ID]; ok {
			continue
		}
		closed, ok := r.store.markClosed(pos.ID, now, pos.Sequence)
		if !ok {
			continue
		}
		res.Changed = append(res.Changed, closed.ID)
		res.Closed = append(res.Closed, closed)
	}

	return res
}

// mergeSnapshotPosition builds the post-snapshot record for one position,
// keeping any field whose last push sequence is strictly newer than the
// snapshot record's sequence.
func (r *Reconciler) mergeSnapshotPosition(existing domain.Position, exists bool, sp domain.SnapshotPosition, now time.Time) domain.Position {
	fs := r.seqsFor(sp.ID)

	pos := domain.Position{
		ID:           sp.ID,
		Symbol:       sp.Symbol,
		Side:         sp.Side,
		EntryPrice:   sp.EntryPrice,
		CurrentPrice: sp.CurrentPrice,
		Quantity:     sp.Quantity,
		Leverage:     sp.Leverage,
		StopLoss:     sp.StopLoss,
		TakeProfit:   sp.TakeProfit,
		Status:       domain.PositionStatusActive,
		OpenedAt:     time.UnixMilli(sp.OpenedAt).UTC(),
		Sequence:     sp.Sequence,
		UpdatedAt:    now,
	}

	if exists {
		pos.OpenedAt = existing.OpenedAt
		pos.Status = existing.Status
		if existing.Sequence > pos.Sequence {
			pos.Sequence = existing.Sequence
		}
		if fs[fieldEntryPrice] > sp.Sequence {
			pos.EntryPrice = existing.EntryPrice
		}
		if fs[fieldCurrentPrice] > sp.Sequence {
			pos.CurrentPrice = existing.CurrentPrice
		}
		if fs[fieldQuantity] > sp.Sequence {
			pos.Quantity = existing.Quantity
		}
		if fs[fieldLeverage] > sp.Sequence {
			pos.Leverage = existing.Leverage
		}
		if fs[fieldStopLoss] > sp.Sequence {
			pos.StopLoss = existing.StopLoss
		}
		if fs[fieldTakeProfit] > sp.Sequence {
			pos.TakeProfit = existing.TakeProfit
		}
	}

	// The snapshot record's sequence becomes the floor for every field, so a
	// push delta older than the snapshot cannot overwrite it later.
	for f := field(0); f < fieldCount; f++ {
		if fs[f] < sp.Sequence {
			fs[f] = sp.Sequence
		}
	}

	return pos
}

// ApplyDelta reconciles a single push event into the store. A field is
// applied only when the event sequence is strictly newer than the last
// applied sequence for that field; older deltas are discarded silently so
// out-of-order delivery stays idempotent-safe.
func (r *Reconciler) ApplyDelta(ev domain.PushEvent) ApplyResult {
	switch ev.Type {
	case domain.PushPositionClosed:
		return r.applyClose(ev)
	case domain.PushPositionUpdate:
		return r.applyUpdate(ev)
	default:
		// risk_alert events carry no position state; the engine routes them
		// to the alert ring directly.
		return ApplyResult{}
	}
}

func (r *Reconciler) applyClose(ev domain.PushEvent) ApplyResult {
	fs := r.seqsFor(ev.Delta.PositionID)
	if ev.Sequence <= fs[fieldStatus] {
		return ApplyResult{Stale: true}
	}
	fs[fieldStatus] = ev.Sequence

	closed, ok := r.store.markClosed(ev.Delta.PositionID, r.now(), ev.Sequence)
	if !ok {
		// Unknown or already closed; nothing to mutate.
		return ApplyResult{}
	}
	return ApplyResult{
		Changed: []string{closed.ID},
		Closed:  []domain.Position{closed},
	}
}

func (r *Reconciler) applyUpdate(ev domain.PushEvent) ApplyResult {
	delta := ev.Delta
	now := r.now()

	pos, exists := r.store.Get(delta.PositionID)
	if exists && pos.Status == domain.PositionStatusClosed {
		// Closed is terminal; late updates for a closed position are noise.
		return ApplyResult{Stale: true}
	}
	if !exists {
		created, ok := r.positionFromDelta(ev, now)
		if !ok {
			r.logger.Debug("delta for unknown position lacks required fields",
				slog.String("position_id", delta.PositionID),
			)
			return ApplyResult{}
		}
		r.calc.Recompute(&created, now)
		r.store.upsert(created)
		return ApplyResult{Changed: []string{created.ID}}
	}

	fs := r.seqsFor(delta.PositionID)
	applied := false

	if delta.EntryPrice != nil && *delta.EntryPrice > 0 && ev.Sequence > fs[fieldEntryPrice] {
		pos.EntryPrice = *delta.EntryPrice
		fs[fieldEntryPrice] = ev.Sequence
		applied = true
	}
	if delta.CurrentPrice != nil && *delta.CurrentPrice > 0 && ev.Sequence > fs[fieldCurrentPrice] {
		pos.CurrentPrice = *delta.CurrentPrice
		fs[fieldCurrentPrice] = ev.Sequence
		applied = true
	}
	if delta.Quantity != nil && ev.Sequence > fs[fieldQuantity] {
		pos.Quantity = *delta.Quantity
		fs[fieldQuantity] = ev.Sequence
		applied = true
	}
	if delta.Leverage != nil && ev.Sequence > fs[fieldLeverage] {
		pos.Leverage = *delta.Leverage
		fs[fieldLeverage] = ev.Sequence
		applied = true
	}
	if delta.StopLoss != nil && ev.Sequence > fs[fieldStopLoss] {
		pos.StopLoss = delta.StopLoss
		fs[fieldStopLoss] = ev.Sequence
		applied = true
	}
	if delta.TakeProfit != nil && ev.Sequence > fs[fieldTakeProfit] {
		pos.TakeProfit = delta.TakeProfit
		fs[fieldTakeProfit] = ev.Sequence
		applied = true
	}

	if !applied {
		return ApplyResult{Stale: true}
	}

	if ev.Sequence > pos.Sequence {
		pos.Sequence = ev.Sequence
	}
	pos.UpdatedAt = now
	r.calc.Recompute(&pos, now)
	r.store.upsert(pos)
	return ApplyResult{Changed: []string{pos.ID}}
}

// positionFromDelta creates a position on first observation via push. The
// delta must carry enough raw fields to satisfy the record invariants.
func (r *Reconciler) positionFromDelta(ev domain.PushEvent, now time.Time) (domain.Position, bool) {
	delta := ev.Delta
	if delta.Symbol == "" || delta.EntryPrice == nil || *delta.EntryPrice <= 0 ||
		delta.CurrentPrice == nil || *delta.CurrentPrice <= 0 || delta.Quantity == nil {
		return domain.Position{}, false
	}
	side := delta.Side
	if side != domain.SideLong && side != domain.SideShort {
		return domain.Position{}, false
	}

	fs := r.seqsFor(delta.PositionID)
	for f := field(0); f < fieldCount; f++ {
		fs[f] = ev.Sequence
	}

	pos := domain.Position{
		ID:           delta.PositionID,
		Symbol:       delta.Symbol,
		Side:         side,
		EntryPrice:   *delta.EntryPrice,
		CurrentPrice: *delta.CurrentPrice,
		Quantity:     *delta.Quantity,
		Status:       domain.PositionStatusActive,
		OpenedAt:     ev.Timestamp,
		Sequence:     ev.Sequence,
		UpdatedAt:    now,
	}
	if delta.Leverage != nil {
		pos.Leverage = *delta.Leverage
	}
	pos.StopLoss = delta.StopLoss
	pos.TakeProfit = delta.TakeProfit
	return pos, true
}
