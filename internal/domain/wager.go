package domain

import "time"

// WagerState tracks the wager lifecycle. PLACED is the only live state; WON
// and LOST are terminal.
type WagerState string

const (
	WagerStatePlaced WagerState = "PLACED"
	WagerStateWon    WagerState = "WON"
	WagerStateLost   WagerState = "LOST"
)

// Wager is a single stake on one side of a market. LockedOdd is the quote for
// the chosen side read immediately before the wager's own stake entered the
// aggregate; it never changes afterwards and settlement pays exactly
// Amount * LockedOdd.
type Wager struct {
	ID        string
	UserID    string
	MarketID  string
	Side      Side
	Amount    float64
	LockedOdd float64
	State     WagerState
	CreatedAt time.Time
	SettledAt *time.Time
}

// PotentialGain is the payout this wager yields if it wins.
func (w Wager) PotentialGain() float64 {
	return w.Amount * w.LockedOdd
}

// WagerReceipt is returned to the caller after a successful placement. It
// carries the locked odd and the market quote as recomputed with the new
// stake included.
type WagerReceipt struct {
	Wager    Wager
	NewQuote Quote
	Balance  float64
}
