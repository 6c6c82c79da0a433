package domain

import (
	"context"
	"time"
)

// QuoteCache is a short-lived read cache for market quotes, refreshed on every
// repricing. Readers fall back to the primary store on a miss.
type QuoteCache interface {
	SetQuote(ctx context.Context, marketID string, q Quote) error
	// GetQuote returns ErrNotFound when no cached quote exists.
	GetQuote(ctx context.Context, marketID string) (Quote, error)
}

// RateLimiter bounds outbound request rates against a shared budget.
type RateLimiter interface {
	// Allow reports whether one more request fits under the limit for the
	// window, counting it if so.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
