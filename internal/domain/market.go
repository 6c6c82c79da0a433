package domain

import "time"

// MarketState represents the lifecycle state of a market. Transitions are
// monotonic: OPEN -> CLOSED -> FINISHED, or OPEN -> FINISHED directly.
type MarketState string

const (
	MarketStateOpen     MarketState = "OPEN"
	MarketStateClosed   MarketState = "CLOSED"
	MarketStateFinished MarketState = "FINISHED"
)

// MarketKind distinguishes market types for a match. Only the canonical
// match-outcome market exists today; the (match_id, kind) uniqueness
// constraint leaves room for more kinds later.
type MarketKind string

const MarketKindOutcome MarketKind = "outcome"

// Quote is the pair of payout multipliers currently offered on a market.
// The pricing formula guarantees A + B == 4 at all times.
type Quote struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

// NeutralQuote is the quote of a market with no stake on either side.
var NeutralQuote = Quote{A: 2.0, B: 2.0}

// Side returns the multiplier for the given side.
func (q Quote) Side(s Side) float64 {
	if s == SideA {
		return q.A
	}
	return q.B
}

// Market is the binary win/lose wagering instrument tied to one tracked
// match. Exactly one canonical market exists per match; duplicate creation
// races collapse onto a single row via the (match_id, kind) constraint.
type Market struct {
	ID        string
	MatchID   string
	Kind      MarketKind
	Title     string
	State     MarketState
	Quote     Quote
	CreatedAt time.Time
	UpdatedAt time.Time
}
