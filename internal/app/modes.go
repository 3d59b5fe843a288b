package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/tokenmarket/internal/server"
	"github.com/alanyoungcy/tokenmarket/internal/server/handler"
	"github.com/alanyoungcy/tokenmarket/internal/server/ws"
	"github.com/alanyoungcy/tokenmarket/internal/service"
)

// ServerMode runs the HTTP + WebSocket API without any background jobs.
// Useful when sweeping and archiving run in a separate process.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "running in server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	return g.Wait()
}

// SweeperMode runs only the background jobs: the expiry sweep and, when
// configured, the terminal-listing archive.
func (a *App) SweeperMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "running in sweeper mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startBackgroundJobs(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the API server and all background jobs in one process.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "running in full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startHTTPServer(ctx, g, deps)
	a.startBackgroundJobs(ctx, g, deps)
	return g.Wait()
}

// startHTTPServer adds the HTTP server and WebSocket hub goroutines to the
// given errgroup. The server is shut down gracefully when the context is
// cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	listingSvc := service.NewListingService(
		deps.ListingStore, deps.AssetStore, deps.ListingCache, deps.SignalBus, a.logger,
	).WithNotifier(deps.Notifier)
	batchSvc := service.NewBatchService(
		deps.ListingStore, deps.AssetStore, deps.ListingCache, deps.SignalBus, a.logger,
	)

	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:      a.cfg.Mode,
		StartedAt: time.Now().UTC(),
	})
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
			RateLimit:   a.cfg.Server.RateLimit,
			RateWindow:  a.cfg.Server.RateWindow.Duration,
		},
		server.Handlers{
			Health:   handler.NewHealthHandler(a.logger),
			Listings: handler.NewListingHandler(listingSvc, a.logger),
			Assets:   handler.NewAssetHandler(listingSvc, deps.StatsCache, a.logger),
			Batch:    handler.NewBatchHandler(batchSvc, a.logger),
		},
		hub,
		deps.RateLimiter,
		a.logger,
	)

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startBackgroundJobs adds the expiry sweep and the optional archive job to
// the given errgroup.
func (a *App) startBackgroundJobs(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	sweeper := service.NewExpiryService(
		deps.ListingStore, deps.ListingCache, deps.LockManager, deps.SignalBus,
		a.logger, a.cfg.Sweeper.Interval.Duration, a.cfg.Sweeper.BatchSize,
	)
	g.Go(func() error {
		return sweeper.Run(ctx)
	})

	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		g.Go(func() error {
			return a.runArchiveLoop(ctx, deps)
		})
	}
}

// runArchiveLoop periodically moves terminal listings older than the
// configured retention window to object storage. Failures are logged and
// retried on the next tick rather than tearing down the process.
func (a *App) runArchiveLoop(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	retention := time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-retention)
			if _, err := deps.Archiver.ArchiveListings(ctx, cutoff); err != nil {
				a.logger.WarnContext(ctx, "archive run failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
