package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/breakpt/riftbet/internal/domain"
)

// WagerStore implements domain.WagerStore using PostgreSQL. Mutations run
// through the Ledger; this store is read-only.
type WagerStore struct {
	pool *pgxpool.Pool
}

var _ domain.WagerStore = (*WagerStore)(nil)

// NewWagerStore creates a new WagerStore backed by the given connection pool.
func NewWagerStore(pool *pgxpool.Pool) *WagerStore {
	return &WagerStore{pool: pool}
}

const wagerCols = `id, user_id, market_id, side, amount, locked_odd, state, created_at, settled_at`

func scanWager(row pgx.Row) (domain.Wager, error) {
	var w domain.Wager
	var side, state string
	err := row.Scan(
		&w.ID, &w.UserID, &w.MarketID, &side, &w.Amount,
		&w.LockedOdd, &state, &w.CreatedAt, &w.SettledAt,
	)
	if err != nil {
		return domain.Wager{}, err
	}
	w.Side = domain.Side(side)
	w.State = domain.WagerState(state)
	return w, nil
}

func collectWagers(rows pgx.Rows) ([]domain.Wager, error) {
	var wagers []domain.Wager
	for rows.Next() {
		w, err := scanWager(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan wager: %w", err)
		}
		wagers = append(wagers, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: wager rows: %w", err)
	}
	return wagers, nil
}

// ListByUser returns the user's wagers, newest first.
func (s *WagerStore) ListByUser(ctx context.Context, userID string) ([]domain.Wager, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+wagerCols+` FROM wagers WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list wagers for user %s: %w", userID, err)
	}
	defer rows.Close()
	return collectWagers(rows)
}

// ListByMarket returns every wager on a market.
func (s *WagerStore) ListByMarket(ctx context.Context, marketID string) ([]domain.Wager, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+wagerCols+` FROM wagers WHERE market_id = $1 ORDER BY created_at`, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list wagers for market %s: %w", marketID, err)
	}
	defer rows.Close()
	return collectWagers(rows)
}

// ListSettledBefore returns terminal wagers settled strictly before the
// cutoff, for archival.
func (s *WagerStore) ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Wager, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+wagerCols+` FROM wagers
		WHERE state IN ('WON', 'LOST') AND settled_at < $1
		ORDER BY settled_at`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list settled wagers: %w", err)
	}
	defer rows.Close()
	return collectWagers(rows)
}
