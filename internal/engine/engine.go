// Package engine implements the position/risk reconciliation core: a single
// canonical store fed by a periodic snapshot poll and an incremental push
// feed, with derived P&L and risk metrics, threshold alerting, and
// synchronous state-change notification.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/meridianhq/riskwatch/internal/domain"
)

// Notifier forwards high-severity alerts to operator channels. Implemented
// by internal/notify.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// Config holds the engine's tunables.
type Config struct {
	// AlertCapacity bounds the alert ring buffer.
	AlertCapacity int
	// AlertCooldown is the dedup window for repeated (symbol, category)
	// alerts.
	AlertCooldown time.Duration
	// Limits is the active risk limit configuration.
	Limits RiskLimits
	// Policy scores per-position risk; nil selects the default weighting.
	Policy RiskPolicy
}

// Options carries the engine's optional collaborators. Any field may be nil.
type Options struct {
	Bus      domain.SignalBus
	History  domain.HistoryStore
	Notifier Notifier
}

// applyMsg is one unit of work on the serialized apply path. Exactly one
// field is set.
type applyMsg struct {
	snapshot *domain.SnapshotDocument
	event    *domain.PushEvent
	stale    *bool
}

// Engine owns the canonical position/risk state. Both ingestion channels
// funnel into one ordered apply queue consumed by a single goroutine, which
// is what makes field-level last-writer-wins deterministic instead of racy.
type Engine struct {
	cfg    Config
	store  *Store
	calc   *Calculator
	recon  *Reconciler
	eval   *Evaluator
	ring   *AlertRing
	hub    *Hub
	opts   Options
	logger *slog.Logger

	apply  chan applyMsg
	runCtx atomic.Value // context.Context, set once by Run
	closed atomic.Bool

	// Apply-loop confined upstream aggregates; nil means the source did not
	// report them.
	upstreamWinRate      *float64
	upstreamAvgRiskScore *float64

	dropped   atomic.Int64 // malformed inputs rejected before state
	discarded atomic.Int64 // stale/out-of-order updates (expected traffic)
}

// New constructs an engine. The engine holds no ambient globals; its
// lifecycle is Run until the context is cancelled, then Close. Inputs arrive
// through ApplySnapshot, ApplyEvent, and SetStale, normally driven by the
// ingestors in internal/ingest.
func New(cfg Config, opts Options, logger *slog.Logger) *Engine {
	if cfg.AlertCooldown <= 0 {
		cfg.AlertCooldown = time.Minute
	}
	if cfg.Limits == (RiskLimits{}) {
		cfg.Limits = DefaultRiskLimits()
	}

	store := NewStore()
	calc := NewCalculator(cfg.Policy)
	return &Engine{
		cfg:    cfg,
		store:  store,
		calc:   calc,
		recon:  NewReconciler(store, calc, logger),
		eval:   NewEvaluator(cfg.Limits),
		ring:   NewAlertRing(cfg.AlertCapacity, cfg.AlertCooldown),
		hub:    NewHub(),
		opts:   opts,
		logger: logger.With(slog.String("component", "engine")),
		apply:  make(chan applyMsg, 256),
	}
}

// Run starts the apply loop and blocks until ctx is cancelled. In-flight
// fetches may complete after teardown; their results are discarded by the
// liveness check in enqueue.
func (e *Engine) Run(ctx context.Context) error {
	e.runCtx.Store(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.applyLoop(gctx) })

	e.logger.InfoContext(ctx, "engine started",
		slog.Int("alert_capacity", e.cfg.AlertCapacity),
		slog.Duration("alert_cooldown", e.cfg.AlertCooldown),
	)
	return g.Wait()
}

// Close marks the engine as torn down. Results of work already in flight
// are discarded rather than applied. Safe to call multiple times.
func (e *Engine) Close() {
	if e.closed.CompareAndSwap(false, true) {
		e.logger.Info("engine closed")
	}
}

// ApplySnapshot places a full snapshot document on the serialized apply
// path.
func (e *Engine) ApplySnapshot(doc domain.SnapshotDocument) {
	e.enqueue(applyMsg{snapshot: &doc})
}

// ApplyEvent places a typed push event on the serialized apply path.
func (e *Engine) ApplyEvent(ev domain.PushEvent) {
	e.enqueue(applyMsg{event: &ev})
}

// SetStale flags (or clears) the stale indicator seen by consumers. State
// is never cleared on staleness; the last known good data stays visible.
func (e *Engine) SetStale(stale bool) {
	e.enqueue(applyMsg{stale: &stale})
}

// enqueue places a message on the serialized apply path unless the engine
// has been torn down.
func (e *Engine) enqueue(msg applyMsg) {
	v := e.runCtx.Load()
	if e.closed.Load() || v == nil {
		return
	}
	select {
	case e.apply <- msg:
	case <-v.(context.Context).Done():
	}
}

// applyLoop is the single writer of the store. It drains the apply queue in
// arrival order, reconciles each input, recomputes derived state, evaluates
// thresholds, and publishes the resulting snapshot.
func (e *Engine) applyLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-e.apply:
			if e.closed.Load() {
				continue
			}
			switch {
			case msg.snapshot != nil:
				e.applySnapshot(ctx, *msg.snapshot)
			case msg.event != nil:
				e.applyEvent(ctx, *msg.event)
			case msg.stale != nil:
				if e.store.Stale() != *msg.stale {
					e.store.SetStale(*msg.stale)
					e.publish(ctx)
				}
			}
		}
	}
}

func (e *Engine) applySnapshot(ctx context.Context, doc domain.SnapshotDocument) {
	e.upstreamWinRate = doc.WinRate
	e.upstreamAvgRiskScore = doc.AvgRiskScore

	res := e.recon.ApplySnapshot(doc)

	// Upstream-produced alerts ride along with the snapshot.
	for _, sa := range doc.Alerts {
		if !domain.ValidAlertCategory(sa.Category) {
			e.dropped.Add(1)
			continue
		}
		e.raiseAlert(ctx, domain.Alert{
			ID:        uuid.NewString(),
			Category:  sa.Category,
			Severity:  sa.Severity,
			Symbol:    sa.Symbol,
			Value:     sa.Value,
			Threshold: sa.Threshold,
			Timestamp: time.UnixMilli(sa.Timestamp).UTC(),
		})
	}

	e.finalize(ctx, res)
}

func (e *Engine) applyEvent(ctx context.Context, ev domain.PushEvent) {
	if ev.Type == domain.PushRiskAlert {
		e.raiseAlert(ctx, domain.Alert{
			ID:        uuid.NewString(),
			Category:  ev.Alert.Category,
			Severity:  ev.Alert.Severity,
			Symbol:    ev.Alert.Symbol,
			Value:     ev.Alert.Value,
			Threshold: ev.Alert.Threshold,
			Timestamp: ev.Timestamp,
		})
		e.publish(ctx)
		return
	}

	res := e.recon.ApplyDelta(ev)
	if res.Stale {
		// Expected with out-of-order delivery; not an error.
		e.discarded.Add(1)
		return
	}
	if len(res.Changed) == 0 {
		return
	}
	e.finalize(ctx, res)
}

// finalize recomputes portfolio aggregates and risk metrics after an
// accepted mutation, evaluates thresholds, records history, and publishes.
func (e *Engine) finalize(ctx context.Context, res ApplyResult) {
	now := time.Now().UTC()
	active := e.store.Active()

	portfolio := e.calc.Portfolio(active, e.upstreamWinRate, e.upstreamAvgRiskScore, e.cfg.Limits.VaRConfidencePct, now)
	e.store.SetPortfolio(portfolio)

	metrics, alerts := e.eval.Evaluate(active, portfolio, now)
	e.store.SetMetrics(metrics)

	for _, alert := range alerts {
		e.raiseAlert(ctx, alert)
	}

	if e.opts.History != nil {
		for _, pos := range res.Closed {
			if err := e.opts.History.RecordClosedPosition(ctx, pos); err != nil {
				e.logger.WarnContext(ctx, "record closed position failed",
					slog.String("position_id", pos.ID),
					slog.String("error", err.Error()),
				)
			}
		}
	}

	e.publish(ctx)
}

// raiseAlert inserts an alert into the ring; when it survives dedup it is
// persisted and, for high or critical severity, fanned out to operators.
func (e *Engine) raiseAlert(ctx context.Context, alert domain.Alert) {
	if !e.ring.Insert(alert) {
		return
	}

	e.logger.InfoContext(ctx, "alert raised",
		slog.String("category", string(alert.Category)),
		slog.String("severity", string(alert.Severity)),
		slog.String("symbol", alert.Symbol),
		slog.Float64("value", alert.Value),
		slog.Float64("threshold", alert.Threshold),
	)

	if e.opts.History != nil {
		if err := e.opts.History.RecordAlert(ctx, alert); err != nil {
			e.logger.WarnContext(ctx, "record alert failed",
				slog.String("alert_id", alert.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if e.opts.Notifier != nil && alert.Severity.Rank() >= domain.SeverityHigh.Rank() {
		title := fmt.Sprintf("%s %s alert", alert.Severity, alert.Category)
		msg := fmt.Sprintf("%s: value %.2f crossed threshold %.2f", alert.Symbol, alert.Value, alert.Threshold)
		if alert.Symbol == "" {
			msg = fmt.Sprintf("portfolio: value %.2f crossed threshold %.2f", alert.Value, alert.Threshold)
		}
		if err := e.opts.Notifier.Notify(ctx, string(alert.Category), title, msg); err != nil {
			e.logger.WarnContext(ctx, "alert notification failed",
				slog.String("alert_id", alert.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	if e.opts.Bus != nil {
		if payload, err := json.Marshal(map[string]any{"type": "alert", "payload": alert}); err == nil {
			if err := e.opts.Bus.Publish(ctx, "alerts", payload); err != nil {
				e.logger.WarnContext(ctx, "bus publish alert failed", slog.String("error", err.Error()))
			}
		}
	}
}

// publish delivers the current immutable snapshot to in-process subscribers
// and, when a bus is wired, to out-of-process consumers.
func (e *Engine) publish(ctx context.Context) {
	snap := e.Snapshot()
	e.hub.Publish(snap)

	if e.opts.Bus != nil {
		if payload, err := json.Marshal(map[string]any{"type": "state", "payload": snap}); err == nil {
			if err := e.opts.Bus.Publish(ctx, "state", payload); err != nil {
				e.logger.WarnContext(ctx, "bus publish state failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Snapshot assembles the current immutable view of positions, metrics,
// alerts, and portfolio aggregates.
func (e *Engine) Snapshot() domain.EngineSnapshot {
	return domain.EngineSnapshot{
		Positions:   e.store.List(nil),
		RiskMetrics: e.store.Metrics(),
		Alerts:      e.ring.List(),
		Portfolio:   e.store.Portfolio(),
		Stale:       e.store.Stale(),
	}
}

// Position returns the canonical record for one position id.
func (e *Engine) Position(id string) (domain.Position, error) {
	pos, ok := e.store.Get(id)
	if !ok {
		return domain.Position{}, fmt.Errorf("engine: position %q: %w", id, domain.ErrNotFound)
	}
	return pos, nil
}

// Positions returns all tracked positions, open and closed.
func (e *Engine) Positions() []domain.Position { return e.store.List(nil) }

// Alerts returns the buffered alert history, newest first.
func (e *Engine) Alerts() []domain.Alert { return e.ring.List() }

// Portfolio returns the latest portfolio aggregates.
func (e *Engine) Portfolio() domain.PortfolioSnapshot { return e.store.Portfolio() }

// Metrics returns the current risk metric set.
func (e *Engine) Metrics() []domain.RiskMetric { return e.store.Metrics() }

// Stale reports whether consumers are looking at last-known-good data.
func (e *Engine) Stale() bool { return e.store.Stale() }

// Subscribe registers a consumer callback on the notification hub.
func (e *Engine) Subscribe(fn Subscriber) (unsubscribe func()) {
	return e.hub.Subscribe(fn)
}

// AcknowledgeAlert marks an alert as acknowledged and republishes state.
func (e *Engine) AcknowledgeAlert(ctx context.Context, id string) error {
	if !e.ring.Acknowledge(id) {
		return fmt.Errorf("engine: alert %q: %w", id, domain.ErrNotFound)
	}
	e.publish(ctx)
	return nil
}

// DroppedMessages returns the count of malformed inputs discarded before
// touching state, covering both push messages and snapshot alert records.
func (e *Engine) DroppedMessages() int64 { return e.dropped.Load() }

// DiscardedUpdates returns the count of stale out-of-order updates skipped.
func (e *Engine) DiscardedUpdates() int64 { return e.discarded.Load() }
