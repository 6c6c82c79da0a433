// Package pipeline runs the background loops: live match discovery, match
// settlement hand-off, and cold-storage archival.
package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/breakpt/riftbet/internal/domain"
)

// TrackedLister supplies the users whose live matches are polled.
type TrackedLister interface {
	ListTracked(ctx context.Context) ([]domain.TrackedParticipant, error)
}

// OngoingLister supplies the matches still awaiting settlement.
type OngoingLister interface {
	ListOngoing(ctx context.Context) ([]domain.Match, error)
}

// LiveLookup reports a participant's current live match, if any.
type LiveLookup interface {
	ActiveMatch(ctx context.Context, puuid string) (domain.ActiveMatch, bool, error)
}

// MatchOpener records a sighted live match for a tracked participant.
type MatchOpener interface {
	OpenOrJoin(ctx context.Context, am domain.ActiveMatch, p domain.TrackedParticipant) (domain.Market, error)
}

// Settler finalizes a match that has disappeared from the provider.
type Settler interface {
	Settle(ctx context.Context, externalID string) error
}

// Discovery polls the provider for every tracked user's live match and hands
// vanished matches to the settler once they stay absent past the grace
// period. One cycle runs at a time: if the provider is slow and a tick fires
// mid-cycle, the tick is dropped rather than queued.
type Discovery struct {
	users       TrackedLister
	matches     OngoingLister
	lookup      LiveLookup
	opener      MatchOpener
	settler     Settler
	logger      *slog.Logger
	gracePeriod time.Duration
	concurrency int

	inFlight atomic.Bool
	now      func() time.Time

	mu          sync.Mutex
	absentSince map[string]time.Time
}

// NewDiscovery creates a Discovery poller.
func NewDiscovery(
	users TrackedLister,
	matches OngoingLister,
	lookup LiveLookup,
	opener MatchOpener,
	settler Settler,
	logger *slog.Logger,
	gracePeriod time.Duration,
	concurrency int,
) *Discovery {
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Discovery{
		users:       users,
		matches:     matches,
		lookup:      lookup,
		opener:      opener,
		settler:     settler,
		logger:      logger,
		gracePeriod: gracePeriod,
		concurrency: concurrency,
		now:         time.Now,
		absentSince: map[string]time.Time{},
	}
}

// RunLoop runs discovery cycles at the given interval until the context is
// cancelled. The first cycle runs immediately.
func (d *Discovery) RunLoop(ctx context.Context, interval time.Duration) error {
	if err := d.Cycle(ctx); err != nil {
		d.logger.Error("discovery cycle failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("discovery loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := d.Cycle(ctx); err != nil {
				d.logger.Error("discovery cycle failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Cycle runs one discovery pass: look up every tracked user's live match in
// parallel, open or join markets for the live ones, then walk the ongoing
// matches that were not sighted and settle those absent past the grace
// period. Per-user and per-match failures are logged and skipped so one bad
// apple cannot stall the rest.
func (d *Discovery) Cycle(ctx context.Context) error {
	if !d.inFlight.CompareAndSwap(false, true) {
		d.logger.Warn("discovery cycle still running, tick dropped")
		return nil
	}
	defer d.inFlight.Store(false)

	tracked, err := d.users.ListTracked(ctx)
	if err != nil {
		return err
	}

	var mu sync.Mutex
	sighted := map[string]bool{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for _, p := range tracked {
		g.Go(func() error {
			am, live, err := d.lookup.ActiveMatch(gctx, p.PUUID)
			if err != nil {
				d.logger.Warn("discovery: live lookup failed",
					slog.String("username", p.Username),
					slog.String("error", err.Error()),
				)
				return nil
			}
			if !live {
				return nil
			}

			mu.Lock()
			sighted[am.ExternalID] = true
			mu.Unlock()

			if _, err := d.opener.OpenOrJoin(gctx, am, p); err != nil {
				d.logger.Warn("discovery: open/join failed",
					slog.String("match_id", am.ExternalID),
					slog.String("username", p.Username),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	return d.sweepAbsent(ctx, sighted)
}

// sweepAbsent hands ongoing matches absent beyond the grace period to the
// settler. A match sighted again resets its absence clock.
func (d *Discovery) sweepAbsent(ctx context.Context, sighted map[string]bool) error {
	ongoing, err := d.matches.ListOngoing(ctx)
	if err != nil {
		return err
	}

	now := d.now()
	ongoingIDs := map[string]bool{}

	for _, m := range ongoing {
		ongoingIDs[m.ExternalID] = true

		if sighted[m.ExternalID] {
			d.clearAbsent(m.ExternalID)
			continue
		}

		since, tracked := d.markAbsent(m.ExternalID, now)
		if !tracked || now.Sub(since) < d.gracePeriod {
			continue
		}

		if err := d.settler.Settle(ctx, m.ExternalID); err != nil {
			d.logger.Warn("discovery: settlement failed, will retry",
				slog.String("match_id", m.ExternalID),
				slog.String("error", err.Error()),
			)
			continue
		}
		d.clearAbsent(m.ExternalID)
	}

	// Drop absence entries for matches that are no longer ongoing.
	d.mu.Lock()
	for id := range d.absentSince {
		if !ongoingIDs[id] {
			delete(d.absentSince, id)
		}
	}
	d.mu.Unlock()

	return nil
}

// markAbsent records the first time a match was observed absent and returns
// that time. tracked is false on the very first observation, so the grace
// clock starts now and the settle check waits for the next cycle.
func (d *Discovery) markAbsent(id string, now time.Time) (time.Time, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if since, ok := d.absentSince[id]; ok {
		return since, true
	}
	d.absentSince[id] = now
	return now, false
}

func (d *Discovery) clearAbsent(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.absentSince, id)
}
