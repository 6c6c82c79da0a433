package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/breakpt/riftbet/internal/domain"
)

type settleFixture struct {
	st       *memState
	bus      *fakeBus
	locks    *fakeLocks
	provider *fakeProvider
	svc      *SettlementService
}

func newSettleFixture(t *testing.T) *settleFixture {
	t.Helper()
	st := newMemState()
	bus := newFakeBus()
	locks := newFakeLocks()
	provider := &fakeProvider{}
	svc := NewSettlementService(
		&memLedger{st: st},
		&memMatchStore{st: st},
		&memMarketStore{st: st},
		provider,
		locks,
		bus,
		discardLogger(),
		time.Minute,
	)
	return &settleFixture{st: st, bus: bus, locks: locks, provider: provider, svc: svc}
}

// seed creates an ongoing match with one tracked participant on side A, its
// open market, and two opposing wagers: u1 60 on A at 2.0, u2 40 on B at 2.2.
func (f *settleFixture) seed() {
	f.st.users["u1"] = domain.User{ID: "u1", Username: "alpha", Balance: 940}
	f.st.users["u2"] = domain.User{ID: "u2", Username: "beta", Balance: 960}
	f.st.matches["EUW1_1"] = domain.Match{ExternalID: "EUW1_1", State: domain.MatchStateOngoing}
	f.st.participants["EUW1_1"] = []domain.MatchParticipant{
		{MatchID: "EUW1_1", UserID: "u1", PUUID: "puuid-1", Team: domain.SideA},
	}
	f.st.markets["m1"] = domain.Market{
		ID: "m1", MatchID: "EUW1_1", Kind: domain.MarketKindOutcome,
		State: domain.MarketStateOpen, Quote: domain.Quote{A: 1.96, B: 2.04},
	}
	f.st.wagers["w1"] = domain.Wager{
		ID: "w1", UserID: "u1", MarketID: "m1", Side: domain.SideA,
		Amount: 60, LockedOdd: 2.0, State: domain.WagerStatePlaced,
	}
	f.st.wagers["w2"] = domain.Wager{
		ID: "w2", UserID: "u2", MarketID: "m1", Side: domain.SideB,
		Amount: 40, LockedOdd: 2.2, State: domain.WagerStatePlaced,
	}
}

func TestSettle_PaysWinnersAtLockedOdds(t *testing.T) {
	f := newSettleFixture(t)
	f.seed()
	f.provider.resultFn = func(string) ([]domain.MatchOutcome, error) {
		return []domain.MatchOutcome{{PUUID: "puuid-1", Won: true}}, nil
	}

	if err := f.svc.Settle(context.Background(), "EUW1_1"); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	// u1 wins 60 * 2.0 = 120 on top of 940.
	if got := f.st.users["u1"].Balance; got != 1060 {
		t.Errorf("winner balance = %v, want 1060", got)
	}
	// u2's stake stays debited.
	if got := f.st.users["u2"].Balance; got != 960 {
		t.Errorf("loser balance = %v, want 960", got)
	}
	if got := f.st.wagers["w1"].State; got != domain.WagerStateWon {
		t.Errorf("w1 state = %q, want WON", got)
	}
	if got := f.st.wagers["w2"].State; got != domain.WagerStateLost {
		t.Errorf("w2 state = %q, want LOST", got)
	}
	if got := f.st.markets["m1"].State; got != domain.MarketStateFinished {
		t.Errorf("market state = %q, want FINISHED", got)
	}
	match := f.st.matches["EUW1_1"]
	if match.State != domain.MatchStateFinished {
		t.Errorf("match state = %q, want FINISHED", match.State)
	}
	if match.Result == nil || *match.Result != domain.SideA {
		t.Errorf("match result = %v, want A", match.Result)
	}
	if f.bus.count(domain.ChannelSettlements) != 1 {
		t.Errorf("settlement events = %d, want 1", f.bus.count(domain.ChannelSettlements))
	}
}

func TestSettle_AnchorLossMeansOppositeWins(t *testing.T) {
	f := newSettleFixture(t)
	f.seed()
	f.provider.resultFn = func(string) ([]domain.MatchOutcome, error) {
		return []domain.MatchOutcome{{PUUID: "puuid-1", Won: false}}, nil
	}

	if err := f.svc.Settle(context.Background(), "EUW1_1"); err != nil {
		t.Fatalf("Settle: %v", err)
	}

	// u2 wins 40 * 2.2 = 88 on top of 960.
	if got := f.st.users["u2"].Balance; got != 1048 {
		t.Errorf("winner balance = %v, want 1048", got)
	}
	if got := f.st.users["u1"].Balance; got != 940 {
		t.Errorf("loser balance = %v, want 940", got)
	}
	if r := f.st.matches["EUW1_1"].Result; r == nil || *r != domain.SideB {
		t.Errorf("match result = %v, want B", r)
	}
}

func TestSettle_StillLiveIsNoOp(t *testing.T) {
	f := newSettleFixture(t)
	f.seed()
	f.provider.activeFn = func(string) (domain.ActiveMatch, bool, error) {
		return domain.ActiveMatch{ExternalID: "EUW1_1"}, true, nil
	}
	f.provider.resultFn = func(string) ([]domain.MatchOutcome, error) {
		t.Fatal("result fetched for a live match")
		return nil, nil
	}

	if err := f.svc.Settle(context.Background(), "EUW1_1"); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if got := f.st.matches["EUW1_1"].State; got != domain.MatchStateOngoing {
		t.Errorf("match state = %q, want ONGOING", got)
	}
}

func TestSettle_ResultNotYetPublished(t *testing.T) {
	f := newSettleFixture(t)
	f.seed()
	f.provider.resultFn = func(string) ([]domain.MatchOutcome, error) {
		return nil, fmt.Errorf("riot: match result: %w", domain.ErrNotFound)
	}

	err := f.svc.Settle(context.Background(), "EUW1_1")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	// Nothing moves; the next cycle retries.
	if got := f.st.matches["EUW1_1"].State; got != domain.MatchStateOngoing {
		t.Errorf("match state = %q, want ONGOING", got)
	}
	if got := f.st.users["u1"].Balance; got != 940 {
		t.Errorf("balance = %v, want 940", got)
	}
}

func TestSettle_AlreadySettledIsNoOp(t *testing.T) {
	f := newSettleFixture(t)
	f.seed()
	f.provider.resultFn = func(string) ([]domain.MatchOutcome, error) {
		return []domain.MatchOutcome{{PUUID: "puuid-1", Won: true}}, nil
	}
	ctx := context.Background()

	if err := f.svc.Settle(ctx, "EUW1_1"); err != nil {
		t.Fatalf("first Settle: %v", err)
	}
	balance := f.st.users["u1"].Balance

	// A second settle must not pay out again.
	if err := f.svc.Settle(ctx, "EUW1_1"); err != nil {
		t.Fatalf("second Settle: %v", err)
	}
	if got := f.st.users["u1"].Balance; got != balance {
		t.Errorf("balance after resettle = %v, want %v", got, balance)
	}
	if f.bus.count(domain.ChannelSettlements) != 1 {
		t.Errorf("settlement events = %d, want 1", f.bus.count(domain.ChannelSettlements))
	}
}

func TestSettle_LockHeldElsewhereIsNoOp(t *testing.T) {
	f := newSettleFixture(t)
	f.seed()
	unlock, err := f.locks.Acquire(context.Background(), "settle:EUW1_1", time.Minute)
	if err != nil {
		t.Fatalf("pre-acquire: %v", err)
	}
	defer unlock()

	if err := f.svc.Settle(context.Background(), "EUW1_1"); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	if got := f.st.matches["EUW1_1"].State; got != domain.MatchStateOngoing {
		t.Errorf("match state = %q, want ONGOING", got)
	}
}

func TestSettle_ReleasesLock(t *testing.T) {
	f := newSettleFixture(t)
	f.seed()
	f.provider.resultFn = func(string) ([]domain.MatchOutcome, error) {
		return []domain.MatchOutcome{{PUUID: "puuid-1", Won: true}}, nil
	}

	if err := f.svc.Settle(context.Background(), "EUW1_1"); err != nil {
		t.Fatalf("Settle: %v", err)
	}
	unlock, err := f.locks.Acquire(context.Background(), "settle:EUW1_1", time.Minute)
	if err != nil {
		t.Fatalf("lock not released: %v", err)
	}
	unlock()
}
