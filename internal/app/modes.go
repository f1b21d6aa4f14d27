package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/resolvd/internal/pipeline"
	"github.com/alanyoungcy/resolvd/internal/server"
	"github.com/alanyoungcy/resolvd/internal/server/handler"
	"github.com/alanyoungcy/resolvd/internal/server/ws"
	"github.com/alanyoungcy/resolvd/internal/service"
)

// ServeMode runs the HTTP API and websocket hub only. Lifecycle transitions
// still happen, but only when driven by requests; pair with a monitor replica
// for unattended operation.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// MonitorMode runs the phase monitor sweeper only: markets are finalized and
// migrated as their deadlines pass, with no API surface.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startPhaseMonitor(ctx, g, deps)
	return g.Wait()
}

// ArchiveMode runs the cold-storage archiver only.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startArchiver(ctx, g, deps)
	return g.Wait()
}

// FullMode starts every subsystem enabled in the configuration: HTTP API,
// phase monitor, and archiver.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}
	if a.cfg.Monitor.Enabled {
		a.startPhaseMonitor(ctx, g, deps)
	}
	if a.cfg.Archive.Enabled {
		a.startArchiver(ctx, g, deps)
	}

	return g.Wait()
}

// startHTTPServer adds the websocket hub and HTTP server goroutines to the
// given errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:        a.cfg.Mode,
		StartedAt:   time.Now().UTC(),
		MarketCount: deps.Registry.Len,
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	checks := map[string]handler.Pinger{
		"postgres": deps.PG.Pool().Ping,
		"redis": func(ctx context.Context) error {
			return deps.Redis.Underlying().Ping(ctx).Err()
		},
	}
	if deps.S3 != nil {
		checks["s3"] = deps.S3.Health
	}

	srv := server.New(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			AdminToken:  a.cfg.Server.AdminToken,
		},
		server.Handlers{
			Health:    handler.NewHealthHandler(checks),
			Markets:   handler.NewMarketHandler(deps.Service, a.logger),
			Reports:   handler.NewReportHandler(deps.Service, a.logger),
			Disputes:  handler.NewDisputeHandler(deps.Service, a.logger),
			Lifecycle: handler.NewLifecycleHandler(deps.Service, a.logger),
		},
		hub,
		a.logger,
	)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startPhaseMonitor adds the sweep loop to the errgroup, running one immediate
// sweep so overdue markets advance without waiting out the first tick.
func (a *App) startPhaseMonitor(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	monitor := service.NewPhaseMonitor(deps.Service, a.cfg.Monitor.SweepInterval.Duration, a.logger)
	g.Go(func() error {
		monitor.Sweep(ctx)
		return monitor.Run(ctx)
	})
}

// startArchiver adds the periodic archive loop to the errgroup.
func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	runner := pipeline.NewArchiver(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger)
	g.Go(func() error {
		return runner.RunInterval(ctx, a.cfg.Archive.Interval.Duration)
	})
}
