// Package pricing computes payout multipliers for a binary market from the
// aggregate stake on each side. It is a pure function of the aggregates and
// holds no state; callers are responsible for feeding it the live aggregate
// inside the same serialized unit that persists the result.
package pricing

import "github.com/breakpt/riftbet/internal/domain"

// Sensitivity tiers: the quote shades harder against the heavy side as volume
// grows, so small early stakes cannot whip the market around.
const (
	gammaLow  = 0.1
	gammaMid  = 0.2
	gammaHigh = 0.3

	midVolume  = 50
	highVolume = 100
)

// gamma returns the sensitivity for the given per-side stakes.
func gamma(stakeA, stakeB float64) float64 {
	max := stakeA
	if stakeB > max {
		max = stakeB
	}
	switch {
	case max >= highVolume:
		return gammaHigh
	case max >= midVolume:
		return gammaMid
	default:
		return gammaLow
	}
}

// Price maps the aggregate stake distribution to the quote pair. With no
// stake the market is neutral (2.0 / 2.0); otherwise the heavy side's quote
// is shaded down and the light side's up, keeping A + B == 4 exactly.
func Price(stakeA, stakeB float64) domain.Quote {
	total := stakeA + stakeB
	if total == 0 {
		return domain.NeutralQuote
	}
	a := 2 - gamma(stakeA, stakeB)*(stakeA-stakeB)/total
	return domain.Quote{A: a, B: 4 - a}
}
