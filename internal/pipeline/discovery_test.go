package pipeline

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/breakpt/riftbet/internal/domain"
)

type stubUsers struct{ tracked []domain.TrackedParticipant }

func (s *stubUsers) ListTracked(context.Context) ([]domain.TrackedParticipant, error) {
	return s.tracked, nil
}

type stubMatches struct{ ongoing []domain.Match }

func (s *stubMatches) ListOngoing(context.Context) ([]domain.Match, error) {
	return s.ongoing, nil
}

type stubLookup struct {
	mu   sync.Mutex
	live map[string]domain.ActiveMatch // puuid -> live match
}

func (s *stubLookup) ActiveMatch(_ context.Context, puuid string) (domain.ActiveMatch, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	am, ok := s.live[puuid]
	return am, ok, nil
}

type stubOpener struct {
	mu    sync.Mutex
	calls []string // "matchID/userID"
}

func (s *stubOpener) OpenOrJoin(_ context.Context, am domain.ActiveMatch, p domain.TrackedParticipant) (domain.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, am.ExternalID+"/"+p.UserID)
	return domain.Market{ID: "m-" + am.ExternalID}, nil
}

type stubSettler struct {
	mu      sync.Mutex
	settled []string
	err     error
}

func (s *stubSettler) Settle(_ context.Context, externalID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.settled = append(s.settled, externalID)
	return nil
}

type discoveryFixture struct {
	users   *stubUsers
	matches *stubMatches
	lookup  *stubLookup
	opener  *stubOpener
	settler *stubSettler
	d       *Discovery
	clock   time.Time
}

func newDiscoveryFixture(t *testing.T, grace time.Duration) *discoveryFixture {
	t.Helper()
	f := &discoveryFixture{
		users:   &stubUsers{},
		matches: &stubMatches{},
		lookup:  &stubLookup{live: map[string]domain.ActiveMatch{}},
		opener:  &stubOpener{},
		settler: &stubSettler{},
		clock:   time.Now(),
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.d = NewDiscovery(f.users, f.matches, f.lookup, f.opener, f.settler, logger, grace, 4)
	f.d.now = func() time.Time { return f.clock }
	return f
}

func TestCycle_OpensMarketsForLiveMatches(t *testing.T) {
	f := newDiscoveryFixture(t, time.Minute)
	f.users.tracked = []domain.TrackedParticipant{
		{UserID: "u1", Username: "alpha", PUUID: "p1"},
		{UserID: "u2", Username: "beta", PUUID: "p2"},
	}
	f.lookup.live["p1"] = domain.ActiveMatch{ExternalID: "EUW1_1", Team: domain.SideA}
	f.lookup.live["p2"] = domain.ActiveMatch{ExternalID: "EUW1_2", Team: domain.SideB}

	if err := f.d.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle: %v", err)
	}

	if len(f.opener.calls) != 2 {
		t.Errorf("open/join calls = %v, want 2", f.opener.calls)
	}
	if len(f.settler.settled) != 0 {
		t.Errorf("settled = %v, want none", f.settler.settled)
	}
}

func TestCycle_SettlesAfterGracePeriod(t *testing.T) {
	f := newDiscoveryFixture(t, time.Minute)
	f.matches.ongoing = []domain.Match{{ExternalID: "EUW1_1", State: domain.MatchStateOngoing}}
	ctx := context.Background()

	// First absence only starts the clock.
	if err := f.d.Cycle(ctx); err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if len(f.settler.settled) != 0 {
		t.Fatalf("settled on first absence: %v", f.settler.settled)
	}

	// Still inside the grace period.
	f.clock = f.clock.Add(30 * time.Second)
	if err := f.d.Cycle(ctx); err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if len(f.settler.settled) != 0 {
		t.Fatalf("settled inside grace period: %v", f.settler.settled)
	}

	// Past the grace period.
	f.clock = f.clock.Add(31 * time.Second)
	if err := f.d.Cycle(ctx); err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if len(f.settler.settled) != 1 || f.settler.settled[0] != "EUW1_1" {
		t.Errorf("settled = %v, want [EUW1_1]", f.settler.settled)
	}
}

func TestCycle_SightingResetsAbsenceClock(t *testing.T) {
	f := newDiscoveryFixture(t, time.Minute)
	f.users.tracked = []domain.TrackedParticipant{{UserID: "u1", Username: "alpha", PUUID: "p1"}}
	f.matches.ongoing = []domain.Match{{ExternalID: "EUW1_1", State: domain.MatchStateOngoing}}
	ctx := context.Background()

	// Absent once.
	if err := f.d.Cycle(ctx); err != nil {
		t.Fatalf("Cycle: %v", err)
	}

	// Sighted again: the provider blipped.
	f.lookup.live["p1"] = domain.ActiveMatch{ExternalID: "EUW1_1", Team: domain.SideA}
	f.clock = f.clock.Add(2 * time.Minute)
	if err := f.d.Cycle(ctx); err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if len(f.settler.settled) != 0 {
		t.Fatalf("settled a sighted match: %v", f.settler.settled)
	}

	// Absent again: clock restarts, so no settle yet even though the first
	// absence was long ago.
	f.lookup.mu.Lock()
	delete(f.lookup.live, "p1")
	f.lookup.mu.Unlock()
	f.clock = f.clock.Add(2 * time.Minute)
	if err := f.d.Cycle(ctx); err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if len(f.settler.settled) != 0 {
		t.Errorf("settled before fresh grace period elapsed: %v", f.settler.settled)
	}
}

func TestCycle_SettlerFailureRetriesNextCycle(t *testing.T) {
	f := newDiscoveryFixture(t, time.Minute)
	f.matches.ongoing = []domain.Match{{ExternalID: "EUW1_1", State: domain.MatchStateOngoing}}
	f.settler.err = context.DeadlineExceeded
	ctx := context.Background()

	if err := f.d.Cycle(ctx); err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	f.clock = f.clock.Add(2 * time.Minute)
	if err := f.d.Cycle(ctx); err != nil {
		t.Fatalf("Cycle: %v", err)
	}

	// The settler failed; retry on the next cycle without waiting for a new
	// grace period.
	f.settler.mu.Lock()
	f.settler.err = nil
	f.settler.mu.Unlock()
	f.clock = f.clock.Add(time.Second)
	if err := f.d.Cycle(ctx); err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if len(f.settler.settled) != 1 {
		t.Errorf("settled = %v, want one retry success", f.settler.settled)
	}
}

func TestCycle_DropsOverlappingTick(t *testing.T) {
	f := newDiscoveryFixture(t, time.Minute)
	f.d.inFlight.Store(true)

	if err := f.d.Cycle(context.Background()); err != nil {
		t.Fatalf("Cycle: %v", err)
	}
	if len(f.opener.calls) != 0 || len(f.settler.settled) != 0 {
		t.Error("overlapping cycle did work")
	}
}
