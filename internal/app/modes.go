package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arbdesk/cedearmon/internal/engine"
	"github.com/arbdesk/cedearmon/internal/server"
	"github.com/arbdesk/cedearmon/internal/server/handler"
	"github.com/arbdesk/cedearmon/internal/server/ws"
)

// TickMode runs a single evaluation pass and exits.
func (a *App) TickMode(ctx context.Context, deps *Dependencies) error {
	report, err := deps.Engine.Tick(ctx)
	if err != nil {
		return fmt.Errorf("app: tick: %w", err)
	}
	a.logTick(ctx, report)
	return nil
}

// DaemonMode ticks immediately, then on every poll interval until the
// context is cancelled.
func (a *App) DaemonMode(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Engine.PollInterval.Duration
	a.logger.InfoContext(ctx, "daemon started", slog.Duration("poll_interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.runTick(ctx, deps)
	for {
		select {
		case <-ctx.Done():
			a.logger.Info("daemon stopped")
			return nil
		case <-ticker.C:
			a.runTick(ctx, deps)
		}
	}
}

// ServeMode runs the HTTP and WebSocket API without its own tick loop.
// Evaluations still happen via POST /api/tick/trigger.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	if !a.cfg.Server.Enabled {
		return errors.New("app: serve: server is disabled in config")
	}
	return a.serve(ctx, deps)
}

// ArchiveMode drains audit rows older than the retention window to object
// storage and exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	cutoff := time.Now().Add(-time.Duration(a.cfg.S3.RetentionDays) * 24 * time.Hour)
	a.logger.InfoContext(ctx, "archive run starting",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.cfg.S3.RetentionDays),
	)

	archived, err := deps.Archiver.Run(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("app: archive: %w", err)
	}
	a.logger.InfoContext(ctx, "archive run finished", slog.Int64("rows_archived", archived))
	return nil
}

// FullMode runs the daemon tick loop and, when the server is enabled, the
// API server alongside it.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	if !a.cfg.Server.Enabled {
		a.logger.Info("server disabled, running tick loop only")
		return a.DaemonMode(ctx, deps)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.DaemonMode(gctx, deps) })
	g.Go(func() error { return a.serve(gctx, deps) })
	return g.Wait()
}

// serve starts the HTTP server plus the WebSocket hub and blocks until the
// context is cancelled or either fails.
func (a *App) serve(ctx context.Context, deps *Dependencies) error {
	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(time.Now()),
		Evaluations: handler.NewEvaluationHandler(deps.Audit, deps.logger),
		Watchlist:   handler.NewWatchlistHandler(deps.Watchlist, deps.logger),
	}
	if deps.Engine != nil {
		handlers.Tick = handler.NewTickHandler(deps.Engine, deps.logger)
	}

	var hub *ws.Hub
	if deps.Bus != nil {
		hub = ws.NewHub(deps.Bus, engine.AlertsChannel, deps.logger)
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
	}, handlers, hub, deps.logger)

	g, gctx := errgroup.WithContext(ctx)
	if hub != nil {
		g.Go(func() error { return hub.Run(gctx) })
	}
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// runTick executes one tick inside the daemon loop. Failures are logged and
// the loop continues; a broken tick must not kill the daemon.
func (a *App) runTick(ctx context.Context, deps *Dependencies) {
	report, err := deps.Engine.Tick(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		a.logger.ErrorContext(ctx, "tick failed", slog.Any("error", err))
		return
	}
	a.logTick(ctx, report)
}

// logTick emits a one-line summary of a completed tick.
func (a *App) logTick(ctx context.Context, report engine.TickReport) {
	if report.SkipReason != "" {
		a.logger.InfoContext(ctx, "tick skipped",
			slog.String("tick_id", report.TickID),
			slog.String("reason", report.SkipReason),
		)
		return
	}
	a.logger.InfoContext(ctx, "tick complete",
		slog.String("tick_id", report.TickID),
		slog.Float64("reference_rate", report.ReferenceRate),
		slog.Int("evaluated", report.Evaluated),
		slog.Int("alerts", len(report.Alerts)),
	)
}
