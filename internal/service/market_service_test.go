package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/breakpt/riftbet/internal/domain"
)

type marketFixture struct {
	st  *memState
	bus *fakeBus
	svc *MarketService
}

func newMarketFixture(t *testing.T) *marketFixture {
	t.Helper()
	st := newMemState()
	bus := newFakeBus()
	svc := NewMarketService(
		&memMatchStore{st: st},
		&memMarketStore{st: st},
		newFakeQuoteCache(),
		bus,
		discardLogger(),
	)
	return &marketFixture{st: st, bus: bus, svc: svc}
}

func TestOpenOrJoin_CreatesMatchAndMarketOnce(t *testing.T) {
	f := newMarketFixture(t)
	ctx := context.Background()
	am := domain.ActiveMatch{
		ExternalID: "EUW1_1",
		Team:       domain.SideA,
		ChampionID: 157,
		StartedAt:  time.Now(),
	}

	m1, err := f.svc.OpenOrJoin(ctx, am, domain.TrackedParticipant{UserID: "u1", Username: "alpha", PUUID: "p1"})
	if err != nil {
		t.Fatalf("OpenOrJoin: %v", err)
	}
	if m1.State != domain.MarketStateOpen {
		t.Errorf("market state = %q, want OPEN", m1.State)
	}
	if m1.Quote != domain.NeutralQuote {
		t.Errorf("new market quote = %+v, want neutral", m1.Quote)
	}

	// A second tracked user in the same match joins; no second market.
	am.Team = domain.SideB
	m2, err := f.svc.OpenOrJoin(ctx, am, domain.TrackedParticipant{UserID: "u2", Username: "beta", PUUID: "p2"})
	if err != nil {
		t.Fatalf("OpenOrJoin join: %v", err)
	}
	if m2.ID != m1.ID {
		t.Errorf("second call market = %s, want %s", m2.ID, m1.ID)
	}
	if len(f.st.markets) != 1 {
		t.Errorf("markets = %d, want 1", len(f.st.markets))
	}
	if got := len(f.st.participants["EUW1_1"]); got != 2 {
		t.Errorf("participants = %d, want 2", got)
	}
}

func TestOpenOrJoin_RepeatSightingIsIdempotent(t *testing.T) {
	f := newMarketFixture(t)
	ctx := context.Background()
	am := domain.ActiveMatch{ExternalID: "EUW1_1", Team: domain.SideA, StartedAt: time.Now()}
	p := domain.TrackedParticipant{UserID: "u1", Username: "alpha", PUUID: "p1"}

	for i := 0; i < 3; i++ {
		if _, err := f.svc.OpenOrJoin(ctx, am, p); err != nil {
			t.Fatalf("OpenOrJoin #%d: %v", i, err)
		}
	}
	if got := len(f.st.participants["EUW1_1"]); got != 1 {
		t.Errorf("participants = %d, want 1", got)
	}
	if len(f.st.markets) != 1 {
		t.Errorf("markets = %d, want 1", len(f.st.markets))
	}
}

func TestOpenOrJoin_PublishesDuoSignal(t *testing.T) {
	f := newMarketFixture(t)
	ctx := context.Background()
	am := domain.ActiveMatch{ExternalID: "EUW1_1", Team: domain.SideA, StartedAt: time.Now()}

	if _, err := f.svc.OpenOrJoin(ctx, am, domain.TrackedParticipant{UserID: "u1", Username: "alpha", PUUID: "p1"}); err != nil {
		t.Fatalf("OpenOrJoin: %v", err)
	}
	if f.bus.count(domain.ChannelSignals) != 0 {
		t.Fatalf("signal published for a single participant")
	}

	if _, err := f.svc.OpenOrJoin(ctx, am, domain.TrackedParticipant{UserID: "u2", Username: "beta", PUUID: "p2"}); err != nil {
		t.Fatalf("OpenOrJoin: %v", err)
	}
	if f.bus.count(domain.ChannelSignals) != 1 {
		t.Fatalf("signal events = %d, want 1", f.bus.count(domain.ChannelSignals))
	}

	var sig duoSignal
	if err := json.Unmarshal(f.bus.published[domain.ChannelSignals][0], &sig); err != nil {
		t.Fatalf("decode signal: %v", err)
	}
	if sig.MatchID != "EUW1_1" || sig.Team != "A" || len(sig.Usernames) != 2 {
		t.Errorf("signal = %+v", sig)
	}
}

func TestOpenOrJoin_RejectsFinishedMatch(t *testing.T) {
	f := newMarketFixture(t)
	f.st.matches["EUW1_1"] = domain.Match{ExternalID: "EUW1_1", State: domain.MatchStateFinished}

	_, err := f.svc.OpenOrJoin(context.Background(),
		domain.ActiveMatch{ExternalID: "EUW1_1", Team: domain.SideA},
		domain.TrackedParticipant{UserID: "u1", PUUID: "p1"})
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}
}

func TestClose(t *testing.T) {
	f := newMarketFixture(t)
	f.st.markets["m1"] = domain.Market{
		ID: "m1", MatchID: "EUW1_1", Kind: domain.MarketKindOutcome,
		State: domain.MarketStateOpen, Quote: domain.NeutralQuote,
	}
	ctx := context.Background()

	if err := f.svc.Close(ctx, "m1"); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := f.st.markets["m1"].State; got != domain.MarketStateClosed {
		t.Errorf("state = %q, want CLOSED", got)
	}

	// Closing again conflicts.
	if err := f.svc.Close(ctx, "m1"); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}

	if err := f.svc.Close(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
