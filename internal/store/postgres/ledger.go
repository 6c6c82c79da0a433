package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/breakpt/riftbet/internal/domain"
)

// Ledger implements domain.Ledger on top of pgx transactions. The per-market
// row lock taken by MarketForUpdate is the serialization boundary: every
// placement and settlement on the same market queues behind it, so stake
// aggregates are never read stale.
type Ledger struct {
	pool *pgxpool.Pool
}

var _ domain.Ledger = (*Ledger)(nil)

// NewLedger creates a Ledger backed by the given connection pool.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// InTx runs fn inside one transaction. Any error from fn rolls everything
// back; nil commits.
func (l *Ledger) InTx(ctx context.Context, fn func(tx domain.LedgerTx) error) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin ledger tx: %w", err)
	}

	if err := fn(&ledgerTx{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit ledger tx: %w", err)
	}
	return nil
}

type ledgerTx struct {
	tx pgx.Tx
}

var _ domain.LedgerTx = (*ledgerTx)(nil)

// MarketForUpdate loads the market and takes its row lock for the duration of
// the transaction.
func (t *ledgerTx) MarketForUpdate(ctx context.Context, marketID string) (domain.Market, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1 FOR UPDATE`, marketID)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: lock market %s: %w", marketID, err)
	}
	return m, nil
}

// DebitBalance subtracts amount if the balance covers it and returns the new
// balance. The conditional UPDATE is the only funds check; there is no
// read-then-write window.
func (t *ledgerTx) DebitBalance(ctx context.Context, userID string, amount float64) (float64, error) {
	var balance float64
	err := t.tx.QueryRow(ctx, `
		UPDATE users SET balance = balance - $2, updated_at = NOW()
		WHERE id = $1 AND balance >= $2
		RETURNING balance`,
		userID, amount).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("postgres: debit user %s: %w", userID, err)
	}

	var exists bool
	if err := t.tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID,
	).Scan(&exists); err != nil {
		return 0, fmt.Errorf("postgres: debit check user %s: %w", userID, err)
	}
	if !exists {
		return 0, domain.ErrNotFound
	}
	return 0, domain.ErrInsufficientFunds
}

// CreditBalance adds amount to the user's balance.
func (t *ledgerTx) CreditBalance(ctx context.Context, userID string, amount float64) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE users SET balance = balance + $2, updated_at = NOW() WHERE id = $1`,
		userID, amount)
	if err != nil {
		return fmt.Errorf("postgres: credit user %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// InsertWager creates the wager row. A duplicate (user, market, side) is
// domain.ErrConflict.
func (t *ledgerTx) InsertWager(ctx context.Context, w domain.Wager) error {
	const query = `
		INSERT INTO wagers (id, user_id, market_id, side, amount, locked_odd, state, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`

	_, err := t.tx.Exec(ctx, query,
		w.ID, w.UserID, w.MarketID, string(w.Side), w.Amount, w.LockedOdd, string(w.State))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: insert wager: %w", domain.ErrConflict)
		}
		return fmt.Errorf("postgres: insert wager: %w", err)
	}
	return nil
}

// StakeTotals sums the PLACED wager amounts per side.
func (t *ledgerTx) StakeTotals(ctx context.Context, marketID string) (float64, float64, error) {
	const query = `
		SELECT COALESCE(SUM(amount) FILTER (WHERE side = 'A'), 0),
		       COALESCE(SUM(amount) FILTER (WHERE side = 'B'), 0)
		FROM wagers
		WHERE market_id = $1 AND state = 'PLACED'`

	var stakeA, stakeB float64
	if err := t.tx.QueryRow(ctx, query, marketID).Scan(&stakeA, &stakeB); err != nil {
		return 0, 0, fmt.Errorf("postgres: stake totals for market %s: %w", marketID, err)
	}
	return stakeA, stakeB, nil
}

// UpdateQuote persists a freshly computed quote pair.
func (t *ledgerTx) UpdateQuote(ctx context.Context, marketID string, q domain.Quote) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE markets SET quote_a = $2, quote_b = $3, updated_at = NOW() WHERE id = $1`,
		marketID, q.A, q.B)
	if err != nil {
		return fmt.Errorf("postgres: update quote for market %s: %w", marketID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListPlaced returns the live wagers on a market.
func (t *ledgerTx) ListPlaced(ctx context.Context, marketID string) ([]domain.Wager, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+wagerCols+` FROM wagers WHERE market_id = $1 AND state = 'PLACED' ORDER BY created_at`,
		marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list placed wagers for market %s: %w", marketID, err)
	}
	defer rows.Close()
	return collectWagers(rows)
}

// SetWagerState transitions a wager. Terminal states stamp settled_at.
func (t *ledgerTx) SetWagerState(ctx context.Context, wagerID string, state domain.WagerState) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE wagers
		SET state = $2,
		    settled_at = CASE WHEN $2 IN ('WON', 'LOST') THEN NOW() ELSE settled_at END
		WHERE id = $1`,
		wagerID, string(state))
	if err != nil {
		return fmt.Errorf("postgres: set wager %s state: %w", wagerID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetMarketState transitions a market.
func (t *ledgerTx) SetMarketState(ctx context.Context, marketID string, state domain.MarketState) error {
	tag, err := t.tx.Exec(ctx,
		`UPDATE markets SET state = $2, updated_at = NOW() WHERE id = $1`,
		marketID, string(state))
	if err != nil {
		return fmt.Errorf("postgres: set market %s state: %w", marketID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// FinalizeMatch transitions ONGOING -> FINISHED and writes the result exactly
// once. A match already finished (or missing) is domain.ErrConflict, which
// lets a second settler bail out cleanly.
func (t *ledgerTx) FinalizeMatch(ctx context.Context, externalID string, winner domain.Side) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE matches SET state = 'FINISHED', result = $2, updated_at = NOW()
		WHERE external_id = $1 AND state = 'ONGOING'`,
		externalID, string(winner))
	if err != nil {
		return fmt.Errorf("postgres: finalize match %s: %w", externalID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrConflict
	}
	return nil
}
