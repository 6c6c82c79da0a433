package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/breakpt/riftbet/internal/domain"
)

// MatchStore implements domain.MatchStore using PostgreSQL.
type MatchStore struct {
	pool *pgxpool.Pool
}

var _ domain.MatchStore = (*MatchStore)(nil)

// NewMatchStore creates a new MatchStore backed by the given connection pool.
func NewMatchStore(pool *pgxpool.Pool) *MatchStore {
	return &MatchStore{pool: pool}
}

const matchCols = `external_id, state, result, started_at, created_at, updated_at`

func scanMatch(row pgx.Row) (domain.Match, error) {
	var m domain.Match
	var state string
	var result *string
	err := row.Scan(&m.ExternalID, &state, &result, &m.StartedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return domain.Match{}, err
	}
	m.State = domain.MatchState(state)
	if result != nil {
		s := domain.Side(*result)
		m.Result = &s
	}
	return m, nil
}

// CreateIfAbsent inserts the match unless one with the same external id
// already exists, and returns the surviving row either way. Concurrent
// discovery of the same match collapses onto one row through the
// ON CONFLICT DO NOTHING.
func (s *MatchStore) CreateIfAbsent(ctx context.Context, m domain.Match) (domain.Match, error) {
	const query = `
		INSERT INTO matches (external_id, state, started_at, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (external_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query, m.ExternalID, string(m.State), m.StartedAt)
	if err != nil {
		return domain.Match{}, fmt.Errorf("postgres: create match %s: %w", m.ExternalID, err)
	}
	return s.GetByExternalID(ctx, m.ExternalID)
}

// GetByExternalID retrieves a match by its provider-assigned id.
func (s *MatchStore) GetByExternalID(ctx context.Context, externalID string) (domain.Match, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+matchCols+` FROM matches WHERE external_id = $1`, externalID)
	m, err := scanMatch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Match{}, domain.ErrNotFound
		}
		return domain.Match{}, fmt.Errorf("postgres: get match %s: %w", externalID, err)
	}
	return m, nil
}

// ListOngoing returns every match still in the ONGOING state.
func (s *MatchStore) ListOngoing(ctx context.Context) ([]domain.Match, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+matchCols+` FROM matches WHERE state = 'ONGOING' ORDER BY started_at`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list ongoing matches: %w", err)
	}
	defer rows.Close()
	return collectMatches(rows)
}

// ListFinishedBefore returns finished matches last updated strictly before the
// cutoff, for archival.
func (s *MatchStore) ListFinishedBefore(ctx context.Context, before time.Time) ([]domain.Match, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+matchCols+` FROM matches WHERE state = 'FINISHED' AND updated_at < $1 ORDER BY updated_at`,
		before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list finished matches: %w", err)
	}
	defer rows.Close()
	return collectMatches(rows)
}

func collectMatches(rows pgx.Rows) ([]domain.Match, error) {
	var matches []domain.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: match rows: %w", err)
	}
	return matches, nil
}

// UpsertParticipant records the user's team assignment for a match. Repeated
// sightings update the row, never duplicate it.
func (s *MatchStore) UpsertParticipant(ctx context.Context, p domain.MatchParticipant) error {
	const query = `
		INSERT INTO match_participants (match_id, user_id, puuid, team, champion_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (match_id, user_id) DO UPDATE SET
			puuid       = EXCLUDED.puuid,
			team        = EXCLUDED.team,
			champion_id = EXCLUDED.champion_id`

	_, err := s.pool.Exec(ctx, query, p.MatchID, p.UserID, p.PUUID, string(p.Team), p.ChampionID)
	if err != nil {
		return fmt.Errorf("postgres: upsert participant %s/%s: %w", p.MatchID, p.UserID, err)
	}
	return nil
}

// ListParticipants returns every tracked participant of a match.
func (s *MatchStore) ListParticipants(ctx context.Context, matchID string) ([]domain.MatchParticipant, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT match_id, user_id, puuid, team, champion_id, created_at
		FROM match_participants WHERE match_id = $1 ORDER BY created_at`, matchID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list participants for %s: %w", matchID, err)
	}
	defer rows.Close()

	var participants []domain.MatchParticipant
	for rows.Next() {
		var p domain.MatchParticipant
		var team string
		if err := rows.Scan(&p.MatchID, &p.UserID, &p.PUUID, &team, &p.ChampionID, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan participant: %w", err)
		}
		p.Team = domain.Side(team)
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: participant rows: %w", err)
	}
	return participants, nil
}
