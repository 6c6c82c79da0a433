package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Orchestrator manages the background goroutines: match discovery polling and
// cold-storage archival.
type Orchestrator struct {
	discovery       *Discovery
	archiver        *Archiver
	pollInterval    time.Duration
	archiveInterval time.Duration
	logger          *slog.Logger
}

// NewOrchestrator creates an Orchestrator. archiver may be nil when blob
// storage is not configured; archival is then skipped.
func NewOrchestrator(
	discovery *Discovery,
	archiver *Archiver,
	pollInterval time.Duration,
	archiveInterval time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		discovery:       discovery,
		archiver:        archiver,
		pollInterval:    pollInterval,
		archiveInterval: archiveInterval,
		logger:          logger,
	}
}

// Run starts the loops in an errgroup. Each goroutine respects ctx
// cancellation; if one returns a non-context error, the group cancels the
// shared context and Run returns that error.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting",
		slog.Duration("poll_interval", o.pollInterval),
		slog.Duration("archive_interval", o.archiveInterval),
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := o.discovery.RunLoop(ctx, o.pollInterval)
		if ctx.Err() != nil {
			return nil // clean shutdown
		}
		return fmt.Errorf("discovery: %w", err)
	})

	if o.archiver != nil {
		g.Go(func() error {
			err := o.archiver.RunLoop(ctx, o.archiveInterval)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	err := g.Wait()
	if err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}

	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}
