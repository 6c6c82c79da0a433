package domain

import (
	"context"
	"time"
)

// UserStore persists internal accounts and their contest identity links.
type UserStore interface {
	Create(ctx context.Context, u User) error
	GetByID(ctx context.Context, id string) (User, error)
	// LinkRiotAccount attaches a contest identity to the user, overwriting any
	// previous link. A user never holds more than one identity.
	LinkRiotAccount(ctx context.Context, userID, puuid, tagline string) error
	UnlinkRiotAccount(ctx context.Context, userID string) error
	// ListTracked returns every user with a linked contest identity.
	ListTracked(ctx context.Context) ([]TrackedParticipant, error)
	// Credit atomically increments the user's balance.
	Credit(ctx context.Context, userID string, amount float64) error
	// ClaimDaily atomically grants the daily reward if the last claim is more
	// than 24 hours old. It reports whether the claim succeeded.
	ClaimDaily(ctx context.Context, userID string, amount float64) (bool, error)
	Profile(ctx context.Context, userID string) (Profile, error)
	Leaderboard(ctx context.Context, minWagers int) ([]LeaderboardEntry, error)
}

// MatchStore persists tracked matches and their participant assignments.
type MatchStore interface {
	// CreateIfAbsent inserts the match unless one with the same external id
	// already exists, and returns the surviving row either way.
	CreateIfAbsent(ctx context.Context, m Match) (Match, error)
	GetByExternalID(ctx context.Context, externalID string) (Match, error)
	ListOngoing(ctx context.Context) ([]Match, error)
	// UpsertParticipant records the user's team assignment for a match.
	// Repeated calls with the same (match, user) update the row.
	UpsertParticipant(ctx context.Context, p MatchParticipant) error
	ListParticipants(ctx context.Context, matchID string) ([]MatchParticipant, error)
	// ListFinishedBefore returns finished matches settled strictly before the
	// cutoff, for archival.
	ListFinishedBefore(ctx context.Context, before time.Time) ([]Match, error)
}

// MarketStore persists markets outside the serialized ledger path.
type MarketStore interface {
	// CreateCanonical inserts the canonical market for a match unless it
	// already exists, and returns the surviving row either way. The
	// (match_id, kind) uniqueness constraint resolves creation races.
	CreateCanonical(ctx context.Context, m Market) (Market, error)
	GetByID(ctx context.Context, id string) (Market, error)
	GetByMatch(ctx context.Context, matchID string, kind MarketKind) (Market, error)
	// Close transitions OPEN -> CLOSED. Any other starting state is ErrConflict.
	Close(ctx context.Context, id string) error
	ListOpen(ctx context.Context) ([]Market, error)
}

// WagerStore provides read access to wagers outside the ledger path.
type WagerStore interface {
	ListByUser(ctx context.Context, userID string) ([]Wager, error)
	ListByMarket(ctx context.Context, marketID string) ([]Wager, error)
	// ListSettledBefore returns terminal wagers settled strictly before the
	// cutoff, for archival.
	ListSettledBefore(ctx context.Context, before time.Time) ([]Wager, error)
}

// LedgerTx is the set of mutations available inside one serialized ledger
// transaction. MarketForUpdate must be called first: it takes the per-market
// lock that serializes concurrent placements and settlement on the same
// market, so stake aggregates can never be read stale.
type LedgerTx interface {
	// MarketForUpdate loads the market and acquires its per-market lock for
	// the duration of the transaction.
	MarketForUpdate(ctx context.Context, marketID string) (Market, error)
	// DebitBalance atomically subtracts amount if the balance covers it, and
	// returns the new balance. Insufficient cover is ErrInsufficientFunds.
	DebitBalance(ctx context.Context, userID string, amount float64) (float64, error)
	CreditBalance(ctx context.Context, userID string, amount float64) error
	// InsertWager creates the wager. A duplicate (user, market, side) is
	// ErrConflict.
	InsertWager(ctx context.Context, w Wager) error
	// StakeTotals sums the PLACED wager amounts per side.
	StakeTotals(ctx context.Context, marketID string) (stakeA, stakeB float64, err error)
	UpdateQuote(ctx context.Context, marketID string, q Quote) error
	ListPlaced(ctx context.Context, marketID string) ([]Wager, error)
	SetWagerState(ctx context.Context, wagerID string, state WagerState) error
	SetMarketState(ctx context.Context, marketID string, state MarketState) error
	// FinalizeMatch transitions ONGOING -> FINISHED and sets the write-once
	// result. A match already finished is ErrConflict.
	FinalizeMatch(ctx context.Context, externalID string, winner Side) error
}

// Ledger runs a function inside one atomic, per-market serialized
// transaction. The function's error rolls everything back; nil commits.
type Ledger interface {
	InTx(ctx context.Context, fn func(tx LedgerTx) error) error
}

// LockManager provides distributed mutual exclusion.
type LockManager interface {
	// Acquire obtains the named lock for at most ttl and returns an unlock
	// function. It returns ErrLockHeld if another party holds the lock.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}
