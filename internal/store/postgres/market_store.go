package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/breakpt/riftbet/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

var _ domain.MarketStore = (*MarketStore)(nil)

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, match_id, kind, title, state, quote_a, quote_b, created_at, updated_at`

func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var kind, state string
	err := row.Scan(
		&m.ID, &m.MatchID, &kind, &m.Title, &state,
		&m.Quote.A, &m.Quote.B, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.Kind = domain.MarketKind(kind)
	m.State = domain.MarketState(state)
	return m, nil
}

// CreateCanonical inserts the canonical market for a match unless it already
// exists, and returns the surviving row either way. The (match_id, kind)
// uniqueness constraint resolves concurrent creation races.
func (s *MarketStore) CreateCanonical(ctx context.Context, m domain.Market) (domain.Market, error) {
	const query = `
		INSERT INTO markets (id, match_id, kind, title, state, quote_a, quote_b, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (match_id, kind) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		m.ID, m.MatchID, string(m.Kind), m.Title, string(m.State), m.Quote.A, m.Quote.B)
	if err != nil {
		return domain.Market{}, fmt.Errorf("postgres: create market for match %s: %w", m.MatchID, err)
	}
	return s.GetByMatch(ctx, m.MatchID, m.Kind)
}

// GetByID retrieves a market by its primary key.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// GetByMatch retrieves the market of the given kind for a match.
func (s *MarketStore) GetByMatch(ctx context.Context, matchID string, kind domain.MarketKind) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE match_id = $1 AND kind = $2`,
		matchID, string(kind))
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market for match %s: %w", matchID, err)
	}
	return m, nil
}

// Close transitions an OPEN market to CLOSED. A market in any other state is
// domain.ErrConflict.
func (s *MarketStore) Close(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE markets SET state = 'CLOSED', updated_at = NOW() WHERE id = $1 AND state = 'OPEN'`,
		id)
	if err != nil {
		return fmt.Errorf("postgres: close market %s: %w", id, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM markets WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("postgres: close market check %s: %w", id, err)
	}
	if !exists {
		return domain.ErrNotFound
	}
	return domain.ErrConflict
}

// ListOpen returns every market accepting wagers.
func (s *MarketStore) ListOpen(ctx context.Context) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketCols+` FROM markets WHERE state = 'OPEN' ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan open market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: open market rows: %w", err)
	}
	return markets, nil
}
