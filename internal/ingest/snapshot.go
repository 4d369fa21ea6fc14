// Package ingest contains the two engine feeders: the periodic full-snapshot
// poller and the live push-channel listener. Both hand already-parsed data to
// the engine's serialized apply path; neither blocks the other.
package ingest

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/meridianhq/riskwatch/internal/domain"
	"github.com/meridianhq/riskwatch/internal/engine"
)

// SnapshotApplier is the slice of the engine the snapshot ingestor needs.
type SnapshotApplier interface {
	ApplySnapshot(doc domain.SnapshotDocument)
	SetStale(stale bool)
}

// SnapshotIngestor fetches a full current-state document at a fixed interval
// and hands it to the engine. Fetch failures never clear existing state; the
// last known good snapshot stays visible and is flagged stale after the
// configured number of consecutive failures.
type SnapshotIngestor struct {
	source         domain.SnapshotSource
	applier        SnapshotApplier
	interval       time.Duration
	staleThreshold int
	logger         *slog.Logger

	// failures is confined to scheduler ticks, which never overlap.
	failures int
	fetchSeq atomic.Int64
}

// NewSnapshotIngestor creates a snapshot ingestor polling source every
// interval. staleThreshold <= 0 defaults to 3.
func NewSnapshotIngestor(source domain.SnapshotSource, applier SnapshotApplier, interval time.Duration, staleThreshold int, logger *slog.Logger) *SnapshotIngestor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if staleThreshold <= 0 {
		staleThreshold = 3
	}
	return &SnapshotIngestor{
		source:         source,
		applier:        applier,
		interval:       interval,
		staleThreshold: staleThreshold,
		logger:         logger.With(slog.String("component", "snapshot_ingestor")),
	}
}

// Start schedules the poll on the shared scheduler, fetching once
// immediately. The returned function stops this ingestor's timer.
func (i *SnapshotIngestor) Start(ctx context.Context, sched *engine.Scheduler) (stop func()) {
	return sched.Every(ctx, "snapshot_poll", i.interval, true, i.pollOnce)
}

// pollOnce runs a single fetch cycle.
func (i *SnapshotIngestor) pollOnce(ctx context.Context) {
	seq := i.fetchSeq.Add(1)

	doc, err := i.source.FetchSnapshot(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		i.failures++
		i.logger.WarnContext(ctx, "snapshot fetch failed",
			slog.Int64("fetch_seq", seq),
			slog.Int("consecutive_failures", i.failures),
			slog.String("error", err.Error()),
		)
		if i.failures == i.staleThreshold {
			i.applier.SetStale(true)
		}
		return
	}

	if i.failures >= i.staleThreshold {
		i.applier.SetStale(false)
	}
	i.failures = 0

	i.logger.DebugContext(ctx, "snapshot fetched",
		slog.Int64("fetch_seq", seq),
		slog.Int("positions", len(doc.Positions)),
		slog.Int("alerts", len(doc.Alerts)),
	)
	i.applier.ApplySnapshot(doc)
}

// Fetches returns the number of fetch attempts so far.
func (i *SnapshotIngestor) Fetches() int64 { return i.fetchSeq.Load() }
