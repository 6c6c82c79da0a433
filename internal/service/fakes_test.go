package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/breakpt/riftbet/internal/domain"
)

// memState is the shared in-memory backing for the store fakes. The ledger
// fake snapshots it before each transaction and restores the snapshot on
// error, mirroring rollback semantics.
type memState struct {
	mu           sync.Mutex
	users        map[string]domain.User
	matches      map[string]domain.Match
	participants map[string][]domain.MatchParticipant
	markets      map[string]domain.Market
	wagers       map[string]domain.Wager
}

func newMemState() *memState {
	return &memState{
		users:        map[string]domain.User{},
		matches:      map[string]domain.Match{},
		participants: map[string][]domain.MatchParticipant{},
		markets:      map[string]domain.Market{},
		wagers:       map[string]domain.Wager{},
	}
}

func (st *memState) snapshot() *memState {
	cp := newMemState()
	for k, v := range st.users {
		cp.users[k] = v
	}
	for k, v := range st.matches {
		cp.matches[k] = v
	}
	for k, v := range st.participants {
		cp.participants[k] = append([]domain.MatchParticipant(nil), v...)
	}
	for k, v := range st.markets {
		cp.markets[k] = v
	}
	for k, v := range st.wagers {
		cp.wagers[k] = v
	}
	return cp
}

func (st *memState) restore(snap *memState) {
	st.users = snap.users
	st.matches = snap.matches
	st.participants = snap.participants
	st.markets = snap.markets
	st.wagers = snap.wagers
}

// --- user store ---

type memUserStore struct{ st *memState }

func (s *memUserStore) Create(_ context.Context, u domain.User) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	for _, existing := range s.st.users {
		if existing.Username == u.Username {
			return domain.ErrConflict
		}
	}
	u.CreatedAt = time.Now()
	s.st.users[u.ID] = u
	return nil
}

func (s *memUserStore) GetByID(_ context.Context, id string) (domain.User, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	u, ok := s.st.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (s *memUserStore) LinkRiotAccount(_ context.Context, userID, puuid, tagline string) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	u, ok := s.st.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.PUUID = &puuid
	u.RiotTagline = &tagline
	s.st.users[userID] = u
	return nil
}

func (s *memUserStore) UnlinkRiotAccount(_ context.Context, userID string) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	u, ok := s.st.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.PUUID = nil
	u.RiotTagline = nil
	s.st.users[userID] = u
	return nil
}

func (s *memUserStore) ListTracked(_ context.Context) ([]domain.TrackedParticipant, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	var out []domain.TrackedParticipant
	for _, u := range s.st.users {
		if u.PUUID != nil {
			out = append(out, domain.TrackedParticipant{UserID: u.ID, Username: u.Username, PUUID: *u.PUUID})
		}
	}
	return out, nil
}

func (s *memUserStore) Credit(_ context.Context, userID string, amount float64) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	u, ok := s.st.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.Balance += amount
	s.st.users[userID] = u
	return nil
}

func (s *memUserStore) ClaimDaily(_ context.Context, userID string, amount float64) (bool, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	u, ok := s.st.users[userID]
	if !ok {
		return false, domain.ErrNotFound
	}
	now := time.Now()
	if u.DailyClaimedAt != nil && now.Sub(*u.DailyClaimedAt) < 24*time.Hour {
		return false, nil
	}
	u.Balance += amount
	u.DailyClaimedAt = &now
	s.st.users[userID] = u
	return true, nil
}

func (s *memUserStore) Profile(_ context.Context, userID string) (domain.Profile, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	u, ok := s.st.users[userID]
	if !ok {
		return domain.Profile{}, domain.ErrNotFound
	}
	p := domain.Profile{
		Username:    u.Username,
		Balance:     u.Balance,
		RiotTagline: u.RiotTagline,
		DailyClaim:  u.DailyClaimedAt,
	}
	for _, w := range s.st.wagers {
		if w.UserID != userID {
			continue
		}
		p.TotalWagers++
		if w.State == domain.WagerStateWon {
			p.TotalWins++
		}
	}
	return p, nil
}

func (s *memUserStore) Leaderboard(_ context.Context, minWagers int) ([]domain.LeaderboardEntry, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	var out []domain.LeaderboardEntry
	for _, u := range s.st.users {
		var total, won, finished int64
		for _, w := range s.st.wagers {
			if w.UserID != u.ID {
				continue
			}
			total++
			switch w.State {
			case domain.WagerStateWon:
				won++
				finished++
			case domain.WagerStateLost:
				finished++
			}
		}
		if total < int64(minWagers) {
			continue
		}
		e := domain.LeaderboardEntry{Username: u.Username, Balance: u.Balance, TotalWagers: total}
		if finished > 0 {
			e.Winrate = float64(won) / float64(finished)
		}
		out = append(out, e)
	}
	return out, nil
}

// --- match store ---

type memMatchStore struct{ st *memState }

func (s *memMatchStore) CreateIfAbsent(_ context.Context, m domain.Match) (domain.Match, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if existing, ok := s.st.matches[m.ExternalID]; ok {
		return existing, nil
	}
	m.CreatedAt = time.Now()
	s.st.matches[m.ExternalID] = m
	return m, nil
}

func (s *memMatchStore) GetByExternalID(_ context.Context, externalID string) (domain.Match, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	m, ok := s.st.matches[externalID]
	if !ok {
		return domain.Match{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *memMatchStore) ListOngoing(_ context.Context) ([]domain.Match, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	var out []domain.Match
	for _, m := range s.st.matches {
		if m.State == domain.MatchStateOngoing {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memMatchStore) UpsertParticipant(_ context.Context, p domain.MatchParticipant) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	list := s.st.participants[p.MatchID]
	for i, existing := range list {
		if existing.UserID == p.UserID {
			list[i] = p
			return nil
		}
	}
	s.st.participants[p.MatchID] = append(list, p)
	return nil
}

func (s *memMatchStore) ListParticipants(_ context.Context, matchID string) ([]domain.MatchParticipant, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	return append([]domain.MatchParticipant(nil), s.st.participants[matchID]...), nil
}

func (s *memMatchStore) ListFinishedBefore(_ context.Context, before time.Time) ([]domain.Match, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	var out []domain.Match
	for _, m := range s.st.matches {
		if m.State == domain.MatchStateFinished && m.UpdatedAt.Before(before) {
			out = append(out, m)
		}
	}
	return out, nil
}

// --- market store ---

type memMarketStore struct{ st *memState }

func (s *memMarketStore) CreateCanonical(_ context.Context, m domain.Market) (domain.Market, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	for _, existing := range s.st.markets {
		if existing.MatchID == m.MatchID && existing.Kind == m.Kind {
			return existing, nil
		}
	}
	m.CreatedAt = time.Now()
	s.st.markets[m.ID] = m
	return m, nil
}

func (s *memMarketStore) GetByID(_ context.Context, id string) (domain.Market, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	m, ok := s.st.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (s *memMarketStore) GetByMatch(_ context.Context, matchID string, kind domain.MarketKind) (domain.Market, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	for _, m := range s.st.markets {
		if m.MatchID == matchID && m.Kind == kind {
			return m, nil
		}
	}
	return domain.Market{}, domain.ErrNotFound
}

func (s *memMarketStore) Close(_ context.Context, id string) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	m, ok := s.st.markets[id]
	if !ok {
		return domain.ErrNotFound
	}
	if m.State != domain.MarketStateOpen {
		return domain.ErrConflict
	}
	m.State = domain.MarketStateClosed
	s.st.markets[id] = m
	return nil
}

func (s *memMarketStore) ListOpen(_ context.Context) ([]domain.Market, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	var out []domain.Market
	for _, m := range s.st.markets {
		if m.State == domain.MarketStateOpen {
			out = append(out, m)
		}
	}
	return out, nil
}

// --- wager store ---

type memWagerStore struct{ st *memState }

func (s *memWagerStore) ListByUser(_ context.Context, userID string) ([]domain.Wager, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	var out []domain.Wager
	for _, w := range s.st.wagers {
		if w.UserID == userID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *memWagerStore) ListByMarket(_ context.Context, marketID string) ([]domain.Wager, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	var out []domain.Wager
	for _, w := range s.st.wagers {
		if w.MarketID == marketID {
			out = append(out, w)
		}
	}
	return out, nil
}

func (s *memWagerStore) ListSettledBefore(_ context.Context, before time.Time) ([]domain.Wager, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	var out []domain.Wager
	for _, w := range s.st.wagers {
		if w.State != domain.WagerStatePlaced && w.SettledAt != nil && w.SettledAt.Before(before) {
			out = append(out, w)
		}
	}
	return out, nil
}

// --- ledger ---

type memLedger struct{ st *memState }

func (l *memLedger) InTx(_ context.Context, fn func(tx domain.LedgerTx) error) error {
	l.st.mu.Lock()
	defer l.st.mu.Unlock()
	snap := l.st.snapshot()
	if err := fn(&memTx{st: l.st}); err != nil {
		l.st.restore(snap)
		return err
	}
	return nil
}

// memTx operates directly on the state; the caller already holds the mutex.
type memTx struct{ st *memState }

func (t *memTx) MarketForUpdate(_ context.Context, marketID string) (domain.Market, error) {
	m, ok := t.st.markets[marketID]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (t *memTx) DebitBalance(_ context.Context, userID string, amount float64) (float64, error) {
	u, ok := t.st.users[userID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	if u.Balance < amount {
		return 0, domain.ErrInsufficientFunds
	}
	u.Balance -= amount
	t.st.users[userID] = u
	return u.Balance, nil
}

func (t *memTx) CreditBalance(_ context.Context, userID string, amount float64) error {
	u, ok := t.st.users[userID]
	if !ok {
		return domain.ErrNotFound
	}
	u.Balance += amount
	t.st.users[userID] = u
	return nil
}

func (t *memTx) InsertWager(_ context.Context, w domain.Wager) error {
	for _, existing := range t.st.wagers {
		if existing.UserID == w.UserID && existing.MarketID == w.MarketID && existing.Side == w.Side {
			return domain.ErrConflict
		}
	}
	w.CreatedAt = time.Now()
	t.st.wagers[w.ID] = w
	return nil
}

func (t *memTx) StakeTotals(_ context.Context, marketID string) (float64, float64, error) {
	var a, b float64
	for _, w := range t.st.wagers {
		if w.MarketID != marketID || w.State != domain.WagerStatePlaced {
			continue
		}
		if w.Side == domain.SideA {
			a += w.Amount
		} else {
			b += w.Amount
		}
	}
	return a, b, nil
}

func (t *memTx) UpdateQuote(_ context.Context, marketID string, q domain.Quote) error {
	m, ok := t.st.markets[marketID]
	if !ok {
		return domain.ErrNotFound
	}
	m.Quote = q
	t.st.markets[marketID] = m
	return nil
}

func (t *memTx) ListPlaced(_ context.Context, marketID string) ([]domain.Wager, error) {
	var out []domain.Wager
	for _, w := range t.st.wagers {
		if w.MarketID == marketID && w.State == domain.WagerStatePlaced {
			out = append(out, w)
		}
	}
	return out, nil
}

func (t *memTx) SetWagerState(_ context.Context, wagerID string, state domain.WagerState) error {
	w, ok := t.st.wagers[wagerID]
	if !ok {
		return domain.ErrNotFound
	}
	w.State = state
	if state == domain.WagerStateWon || state == domain.WagerStateLost {
		now := time.Now()
		w.SettledAt = &now
	}
	t.st.wagers[wagerID] = w
	return nil
}

func (t *memTx) SetMarketState(_ context.Context, marketID string, state domain.MarketState) error {
	m, ok := t.st.markets[marketID]
	if !ok {
		return domain.ErrNotFound
	}
	m.State = state
	t.st.markets[marketID] = m
	return nil
}

func (t *memTx) FinalizeMatch(_ context.Context, externalID string, winner domain.Side) error {
	m, ok := t.st.matches[externalID]
	if !ok || m.State != domain.MatchStateOngoing {
		return domain.ErrConflict
	}
	m.State = domain.MatchStateFinished
	m.Result = &winner
	m.UpdatedAt = time.Now()
	t.st.matches[externalID] = m
	return nil
}

// --- bus, cache, locks, provider ---

type fakeBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	streamed  map[string][][]byte
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: map[string][][]byte{}, streamed: map[string][][]byte{}}
}

func (b *fakeBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *fakeBus) Subscribe(_ context.Context, _ string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (b *fakeBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streamed[stream] = append(b.streamed[stream], payload)
	return nil
}

func (b *fakeBus) count(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.published[channel])
}

type fakeQuoteCache struct {
	mu     sync.Mutex
	quotes map[string]domain.Quote
}

func newFakeQuoteCache() *fakeQuoteCache {
	return &fakeQuoteCache{quotes: map[string]domain.Quote{}}
}

func (c *fakeQuoteCache) SetQuote(_ context.Context, marketID string, q domain.Quote) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotes[marketID] = q
	return nil
}

func (c *fakeQuoteCache) GetQuote(_ context.Context, marketID string) (domain.Quote, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q, ok := c.quotes[marketID]
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	return q, nil
}

type fakeLocks struct {
	mu   sync.Mutex
	held map[string]bool
}

func newFakeLocks() *fakeLocks {
	return &fakeLocks{held: map[string]bool{}}
}

func (l *fakeLocks) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		return nil, domain.ErrLockHeld
	}
	l.held[key] = true
	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.held[key] = false
	}, nil
}

type fakeProvider struct {
	activeFn func(puuid string) (domain.ActiveMatch, bool, error)
	resultFn func(externalID string) ([]domain.MatchOutcome, error)
}

func (p *fakeProvider) ActiveMatch(_ context.Context, puuid string) (domain.ActiveMatch, bool, error) {
	if p.activeFn == nil {
		return domain.ActiveMatch{}, false, nil
	}
	return p.activeFn(puuid)
}

func (p *fakeProvider) MatchResult(_ context.Context, externalID string) ([]domain.MatchOutcome, error) {
	if p.resultFn == nil {
		return nil, fmt.Errorf("no result: %w", domain.ErrNotFound)
	}
	return p.resultFn(externalID)
}

type fakeResolver struct {
	puuid string
	err   error
}

func (r *fakeResolver) AccountByRiotID(_ context.Context, _, _ string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return r.puuid, nil
}
