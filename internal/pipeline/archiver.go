package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/breakpt/riftbet/internal/domain"
)

// Archiver moves settled history out of the database into blob cold storage.
type Archiver struct {
	blobArchiver  domain.Archiver
	retentionDays int
	logger        *slog.Logger
}

// NewArchiver creates a new Archiver.
func NewArchiver(blobArchiver domain.Archiver, retentionDays int, logger *slog.Logger) *Archiver {
	return &Archiver{
		blobArchiver:  blobArchiver,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

// Run executes a single archive sweep over everything settled before the
// retention cutoff.
func (a *Archiver) Run(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-time.Duration(a.retentionDays) * 24 * time.Hour)

	count, err := a.blobArchiver.ArchiveSettled(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("archiving settled history before %v: %w", cutoff, err)
	}

	a.logger.Info("archive sweep complete",
		slog.Time("cutoff", cutoff),
		slog.Int64("archived", count),
	)
	return nil
}

// RunLoop runs archive sweeps at the given interval until the context is
// cancelled. Failed sweeps are logged and retried on the next tick.
func (a *Archiver) RunLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.Run(ctx); err != nil {
				a.logger.Error("archive sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}
