package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/breakpt/riftbet/internal/domain"
)

// UserStore implements domain.UserStore using PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

var _ domain.UserStore = (*UserStore)(nil)

// NewUserStore creates a new UserStore backed by the given connection pool.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Create inserts a new user. A taken username is domain.ErrConflict.
func (s *UserStore) Create(ctx context.Context, u domain.User) error {
	const query = `
		INSERT INTO users (id, username, balance, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())`

	_, err := s.pool.Exec(ctx, query, u.ID, u.Username, u.Balance)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: create user %s: %w", u.Username, domain.ErrConflict)
		}
		return fmt.Errorf("postgres: create user %s: %w", u.Username, err)
	}
	return nil
}

const userCols = `id, username, balance, puuid, riot_tagline, daily_claimed_at, created_at, updated_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Username, &u.Balance,
		&u.PUUID, &u.RiotTagline, &u.DailyClaimedAt,
		&u.CreatedAt, &u.UpdatedAt,
	)
	return u, err
}

// GetByID retrieves a user by its primary key.
func (s *UserStore) GetByID(ctx context.Context, id string) (domain.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.User{}, domain.ErrNotFound
		}
		return domain.User{}, fmt.Errorf("postgres: get user %s: %w", id, err)
	}
	return u, nil
}

// LinkRiotAccount attaches a contest identity, overwriting any previous link.
// A puuid already linked to another user is domain.ErrConflict.
func (s *UserStore) LinkRiotAccount(ctx context.Context, userID, puuid, tagline string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET puuid = $2, riot_tagline = $3, updated_at = NOW() WHERE id = $1`,
		userID, puuid, tagline)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("postgres: link riot account for user %s: %w", userID, domain.ErrConflict)
		}
		return fmt.Errorf("postgres: link riot account for user %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UnlinkRiotAccount clears the contest identity link.
func (s *UserStore) UnlinkRiotAccount(ctx context.Context, userID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET puuid = NULL, riot_tagline = NULL, updated_at = NOW() WHERE id = $1`,
		userID)
	if err != nil {
		return fmt.Errorf("postgres: unlink riot account for user %s: %w", userID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListTracked returns every user with a linked contest identity.
func (s *UserStore) ListTracked(ctx context.Context) ([]domain.TrackedParticipant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, username, puuid FROM users WHERE puuid IS NOT NULL ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list tracked users: %w", err)
	}
	defer rows.Close()

	var tracked []domain.TrackedParticipant
	for rows.Next() {
		var p domain.TrackedParticipant
		if err := rows.Scan(&p.UserID, &p.Username, &p.PUUID); err != nil {
			return nil, fmt.Errorf("postgres: scan tracked user: %w", err)
		}
		tracked = append(tracked, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list tracked users rows: %w", err)
	}
	return tracked, nil
}

// Credit atomically increments the user's balance.
func (s *UserStore) Credit(ctx context.Context, userID string, amount float64) error {
	tag, err := s.pool.Exec(ctx,
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

// ClaimDaily grants the daily reward if the last claim is more than 24 hours
// old. The conditional UPDATE makes concurrent claims race-safe: only one
// caller observes RowsAffected == 1.
func (s *UserStore) ClaimDaily(ctx context.Context, userID string, amount float64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET balance = balance + $2, daily_claimed_at = NOW(), updated_at = NOW()
		WHERE id = $1
		  AND (daily_claimed_at IS NULL OR daily_claimed_at <= NOW() - INTERVAL '24 hours')`,
		userID, amount)
	if err != nil {
		return false, fmt.Errorf("postgres: claim daily for user %s: %w", userID, err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE id = $1)`, userID,
	).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres: claim daily check user %s: %w", userID, err)
	}
	if !exists {
		return false, domain.ErrNotFound
	}
	return false, nil
}

// Profile aggregates the user's account view together with wager counts.
func (s *UserStore) Profile(ctx context.Context, userID string) (domain.Profile, error) {
	const query = `
		SELECT u.username, u.balance, u.riot_tagline, u.daily_claimed_at,
		       COUNT(w.id),
		       COUNT(w.id) FILTER (WHERE w.state = 'WON')
		FROM users u
		LEFT JOIN wagers w ON w.user_id = u.id
		WHERE u.id = $1
		GROUP BY u.id`

	var p domain.Profile
	err := s.pool.QueryRow(ctx, query, userID).Scan(
		&p.Username, &p.Balance, &p.RiotTagline, &p.DailyClaim,
		&p.TotalWagers, &p.TotalWins,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Profile{}, domain.ErrNotFound
		}
		return domain.Profile{}, fmt.Errorf("postgres: profile for user %s: %w", userID, err)
	}
	return p, nil
}

// Leaderboard ranks users by balance. Only users with at least minWagers
// wagers qualify; winrate is computed over finished wagers only.
func (s *UserStore) Leaderboard(ctx context.Context, minWagers int) ([]domain.LeaderboardEntry, error) {
	const query = `
		SELECT u.username, u.balance, COUNT(w.id),
		       COALESCE(
		           COUNT(w.id) FILTER (WHERE w.state = 'WON')::float8 /
		           NULLIF(COUNT(w.id) FILTER (WHERE w.state IN ('WON', 'LOST')), 0),
		           0)
		FROM users u
		JOIN wagers w ON w.user_id = u.id
		GROUP BY u.id
		HAVING COUNT(w.id) >= $1
		ORDER BY u.balance DESC
		LIMIT 100`

	rows, err := s.pool.Query(ctx, query, minWagers)
	if err != nil {
		return nil, fmt.Errorf("postgres: leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		if err := rows.Scan(&e.Username, &e.Balance, &e.TotalWagers, &e.Winrate); err != nil {
			return nil, fmt.Errorf("postgres: scan leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: leaderboard rows: %w", err)
	}
	return entries, nil
}
