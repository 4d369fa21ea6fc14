// Package app provides the top-level application lifecycle for riskwatch. It
// wires together all dependencies (upstream clients, engine, stores, signal
// bus, notifications, API server) and runs them until shutdown.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meridianhq/riskwatch/internal/config"
	"github.com/meridianhq/riskwatch/internal/engine"
	"github.com/meridianhq/riskwatch/internal/ingest"
	"github.com/meridianhq/riskwatch/internal/server"
	"github.com/meridianhq/riskwatch/internal/server/handler"
	"github.com/meridianhq/riskwatch/internal/server/ws"
	"github.com/meridianhq/riskwatch/internal/upstream"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts the engine, ingestors, and API server,
// and blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting application",
		slog.String("log_level", a.cfg.LogLevel),
	)

	deps, cleanup, err := Wire(ctx, a.cfg, a.logger)
	if err != nil {
		return fmt.Errorf("app: wire dependencies: %w", err)
	}
	a.closers = append(a.closers, cleanup)

	// A typed nil *notify.Notifier must not end up inside the interface.
	var notifier engine.Notifier
	if deps.Notifier != nil {
		notifier = deps.Notifier
	}

	eng := engine.New(engine.Config{
		AlertCapacity: a.cfg.Engine.AlertCapacity,
		AlertCooldown: a.cfg.Engine.AlertCooldown.Duration,
		Limits: engine.RiskLimits{
			MaxPositionRiskPct:  a.cfg.Limits.MaxPositionRiskPct,
			MaxPortfolioRiskPct: a.cfg.Limits.MaxPortfolioRiskPct,
			MaxDailyLossPct:     a.cfg.Limits.MaxDailyLossPct,
			MaxDrawdownPct:      a.cfg.Limits.MaxDrawdownPct,
			VaRConfidencePct:    a.cfg.Limits.VarConfidencePct,
		},
		Policy: engine.WeightedRiskPolicy{
			LeverageWeight:  a.cfg.Policy.LeverageWeight,
			ProximityWeight: a.cfg.Policy.ProximityWeight,
			DurationWeight:  a.cfg.Policy.DurationWeight,
			MaxLeverage:     a.cfg.Policy.MaxLeverage,
			MaxDuration:     a.cfg.Policy.MaxDuration.Duration,
		},
	}, engine.Options{
		Bus:      deps.SignalBus,
		History:  deps.History,
		Notifier: notifier,
	}, a.logger)

	sched := engine.NewScheduler(a.logger)
	a.closers = append(a.closers, sched.Stop)
	a.closers = append(a.closers, eng.Close)

	snapshotClient := upstream.NewSnapshotClient(a.cfg.Upstream.SnapshotURL, a.cfg.Upstream.ApiKey)
	snapshots := ingest.NewSnapshotIngestor(
		snapshotClient, eng,
		a.cfg.Engine.PollInterval.Duration,
		a.cfg.Engine.StaleThreshold,
		a.logger,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return eng.Run(gctx) })

	snapshots.Start(gctx, sched)

	if a.cfg.Upstream.WsURL != "" {
		feed := upstream.NewPushFeed(a.cfg.Upstream.WsURL, a.cfg.Upstream.Channels, a.logger)
		pushes := ingest.NewPushIngestor(feed, eng, a.logger)
		g.Go(func() error { return pushes.Run(gctx) })
	}

	if deps.Archiver != nil {
		sched.Every(gctx, "history_archive", a.cfg.S3.ArchiveInterval.Duration, false, deps.Archiver.Run)
	}

	if a.cfg.Server.Enabled {
		wsHub := ws.NewHub(eng, a.logger)
		g.Go(func() error { return wsHub.Run(gctx) })

		var historyHandler *handler.HistoryHandler
		if deps.History != nil {
			historyHandler = handler.NewHistoryHandler(deps.History, a.logger)
		}

		srv := server.NewServer(server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.ApiKey,
		}, server.Handlers{
			Health:    handler.NewHealthHandler(eng, a.logger),
			Positions: handler.NewPositionHandler(eng, a.logger),
			Portfolio: handler.NewPortfolioHandler(eng, a.logger),
			Alerts:    handler.NewAlertHandler(eng, a.logger),
			History:   historyHandler,
		}, wsHub, a.logger)

		g.Go(srv.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// Close tears down all resources in reverse registration order. Safe to call
// multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down application")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
