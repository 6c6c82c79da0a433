package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/breakpt/riftbet/internal/domain"
)

// quoteTTL bounds staleness if a repricing event is lost; readers fall back
// to the primary store after expiry.
const quoteTTL = 5 * time.Minute

// QuoteCache implements domain.QuoteCache using Redis hashes. Each market's
// quote lives at "quote:{marketID}" with fields "a" and "b".
type QuoteCache struct {
	rdb *redis.Client
}

var _ domain.QuoteCache = (*QuoteCache)(nil)

// NewQuoteCache creates a QuoteCache backed by the given Client.
func NewQuoteCache(c *Client) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying()}
}

func quoteKey(marketID string) string {
	return "quote:" + marketID
}

// SetQuote stores the latest quote pair for a market.
func (qc *QuoteCache) SetQuote(ctx context.Context, marketID string, q domain.Quote) error {
	key := quoteKey(marketID)
	fields := map[string]interface{}{
		"a": strconv.FormatFloat(q.A, 'f', -1, 64),
		"b": strconv.FormatFloat(q.B, 'f', -1, 64),
	}

	pipe := qc.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, quoteTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s: %w", marketID, err)
	}
	return nil
}

// GetQuote retrieves the cached quote pair for a market. It returns
// domain.ErrNotFound when no cached quote exists.
func (qc *QuoteCache) GetQuote(ctx context.Context, marketID string) (domain.Quote, error) {
	vals, err := qc.rdb.HGetAll(ctx, quoteKey(marketID)).Result()
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: get quote %s: %w", marketID, err)
	}
	if len(vals) == 0 {
		return domain.Quote{}, domain.ErrNotFound
	}

	aStr, okA := vals["a"]
	bStr, okB := vals["b"]
	if !okA || !okB {
		return domain.Quote{}, domain.ErrNotFound
	}

	a, err := strconv.ParseFloat(aStr, 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse quote a %s: %w", marketID, err)
	}
	b, err := strconv.ParseFloat(bStr, 64)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: parse quote b %s: %w", marketID, err)
	}

	return domain.Quote{A: a, B: b}, nil
}
