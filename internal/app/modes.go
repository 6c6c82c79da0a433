package app

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/breakpt/riftbet/internal/notify"
	"github.com/breakpt/riftbet/internal/pipeline"
	"github.com/breakpt/riftbet/internal/server"
	"github.com/breakpt/riftbet/internal/server/handler"
	"github.com/breakpt/riftbet/internal/server/ws"
	"github.com/breakpt/riftbet/internal/service"
)

// services bundles the domain services shared by the modes.
type services struct {
	accounts   *service.AccountService
	markets    *service.MarketService
	wagers     *service.WagerService
	settlement *service.SettlementService
}

func (a *App) buildServices(deps *Dependencies) *services {
	return &services{
		accounts: service.NewAccountService(
			deps.Users, deps.Wagers, deps.Riot, a.logger,
			a.cfg.Book.StartingBalance, a.cfg.Book.DailyReward,
			a.cfg.Book.LeaderboardMinWagers,
		),
		markets: service.NewMarketService(
			deps.Matches, deps.Markets, deps.QuoteCache, deps.SignalBus, a.logger,
		),
		wagers: service.NewWagerService(
			deps.Ledger, deps.Wagers, deps.QuoteCache, deps.SignalBus, a.logger,
			a.cfg.Book.MaxStake,
		),
		settlement: service.NewSettlementService(
			deps.Ledger, deps.Matches, deps.Markets, deps.Riot,
			deps.LockManager, deps.SignalBus, a.logger,
			a.cfg.Poller.SettleLockTTL.Duration,
		),
	}
}

// ServeMode runs the HTTP API, the WebSocket hub, and the notification
// bridge. No provider polling happens in this mode.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)

	a.startHTTPServer(ctx, g, deps, svcs)
	a.startNotifyBridge(ctx, g, deps)

	return g.Wait()
}

// PollMode runs the discovery poller, settlement, archival, and the
// notification bridge. No HTTP API is exposed.
func (a *App) PollMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting poll mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)

	a.startPipeline(ctx, g, deps, svcs)
	a.startNotifyBridge(ctx, g, deps)

	return g.Wait()
}

// FullMode runs everything: the HTTP API, the WebSocket hub, the discovery
// and archival pipelines, and the notification bridge.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	svcs := a.buildServices(deps)

	a.startHTTPServer(ctx, g, deps, svcs)
	a.startPipeline(ctx, g, deps, svcs)
	a.startNotifyBridge(ctx, g, deps)

	return g.Wait()
}

// startHTTPServer adds the API server and WebSocket hub goroutines to the
// group. The server is shut down gracefully when the context is cancelled.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		err := hub.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(deps.Postgres, deps.Redis, a.logger),
		Markets: handler.NewMarketHandler(svcs.markets, a.logger),
		Wagers:  handler.NewWagerHandler(svcs.wagers, a.logger),
		Users:   handler.NewUserHandler(svcs.accounts, a.logger),
		Riot:    handler.NewRiotHandler(svcs.accounts, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		AdminKey:    a.cfg.Server.AdminKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

// startPipeline adds the discovery and archival loops to the group.
func (a *App) startPipeline(ctx context.Context, g *errgroup.Group, deps *Dependencies, svcs *services) {
	discovery := pipeline.NewDiscovery(
		deps.Users,
		deps.Matches,
		deps.Riot,
		svcs.markets,
		svcs.settlement,
		a.logger,
		a.cfg.Poller.GracePeriod.Duration,
		a.cfg.Poller.Concurrency,
	)

	var archiver *pipeline.Archiver
	if deps.Archiver != nil {
		archiver = pipeline.NewArchiver(deps.Archiver, a.cfg.Poller.ArchiveRetentionDays, a.logger)
	} else {
		a.logger.InfoContext(ctx, "s3 bucket not configured, archival disabled")
	}

	orch := pipeline.NewOrchestrator(
		discovery,
		archiver,
		a.cfg.Poller.Interval.Duration,
		a.cfg.Poller.ArchiveInterval.Duration,
		a.logger,
	)
	g.Go(func() error {
		return orch.Run(ctx)
	})
}

// startNotifyBridge adds the settlement notification consumer to the group.
// Bridge failures stop the group; context cancellation is a clean exit.
func (a *App) startNotifyBridge(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	bridge := notify.NewBridge(deps.SignalBus, deps.Notifier, a.logger)
	g.Go(func() error {
		err := bridge.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})
}
