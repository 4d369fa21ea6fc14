package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/meridianhq/riskwatch/internal/domain"
)

// EventApplier is the slice of the engine the push ingestor needs.
type EventApplier interface {
	ApplyEvent(ev domain.PushEvent)
}

// PushIngestor listens on the live update channel and forwards typed events
// to the engine, tagged with the source's own sequence and timestamp so
// ordering decisions are immune to local clock skew. Malformed messages are
// dropped and counted, never propagated as state. Reconnection is the
// underlying source's responsibility; while it is down the engine degrades
// to snapshot-only updates.
type PushIngestor struct {
	source  domain.PushSource
	applier EventApplier
	logger  *slog.Logger

	dropped atomic.Int64
}

// NewPushIngestor creates a push ingestor reading from source.
func NewPushIngestor(source domain.PushSource, applier EventApplier, logger *slog.Logger) *PushIngestor {
	return &PushIngestor{
		source:  source,
		applier: applier,
		logger:  logger.With(slog.String("component", "push_ingestor")),
	}
}

// Run blocks consuming the push channel until ctx is cancelled.
func (p *PushIngestor) Run(ctx context.Context) error {
	if err := p.source.Run(ctx, p.onMessage); err != nil && ctx.Err() == nil {
		return fmt.Errorf("ingest: push source: %w", err)
	}
	return ctx.Err()
}

// onMessage parses one raw channel message and forwards the typed event.
func (p *PushIngestor) onMessage(raw []byte) {
	ev, err := domain.ParsePushEvent(raw)
	if err != nil {
		p.dropped.Add(1)
		p.logger.Debug("push message dropped", slog.String("error", err.Error()))
		return
	}
	p.applier.ApplyEvent(ev)
}

// Dropped returns the count of malformed messages discarded so far.
func (p *PushIngestor) Dropped() int64 { return p.dropped.Load() }
