// Package service contains the business logic layered between the HTTP/API
// surface, the discovery pipeline, and the stores.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/breakpt/riftbet/internal/domain"
)

// MarketService manages match and market lifecycle up to (but excluding) the
// serialized wagering path.
type MarketService struct {
	matches domain.MatchStore
	markets domain.MarketStore
	quotes  domain.QuoteCache
	bus     domain.SignalBus
	logger  *slog.Logger
}

// NewMarketService creates a MarketService with all required dependencies.
func NewMarketService(
	matches domain.MatchStore,
	markets domain.MarketStore,
	quotes domain.QuoteCache,
	bus domain.SignalBus,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		matches: matches,
		markets: markets,
		quotes:  quotes,
		bus:     bus,
		logger:  logger,
	}
}

// duoSignal is published when at least two tracked users share a team in the
// same live match.
type duoSignal struct {
	MatchID   string   `json:"match_id"`
	Team      string   `json:"team"`
	Usernames []string `json:"usernames"`
}

// OpenOrJoin records a sighted live match for a tracked participant. The
// first sighting creates the match and its canonical market with a neutral
// quote; later sightings of the same match only add the participant. Every
// step is idempotent, so concurrent discovery of the same match by several
// pollers collapses onto one match and one market.
func (s *MarketService) OpenOrJoin(ctx context.Context, am domain.ActiveMatch, p domain.TrackedParticipant) (domain.Market, error) {
	match, err := s.matches.CreateIfAbsent(ctx, domain.Match{
		ExternalID: am.ExternalID,
		State:      domain.MatchStateOngoing,
		StartedAt:  am.StartedAt,
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: open match %s: %w", am.ExternalID, err)
	}

	// Wagers are pointless on a match already decided.
	if match.State != domain.MatchStateOngoing {
		return domain.Market{}, fmt.Errorf("market_service: match %s: %w", am.ExternalID, domain.ErrConflict)
	}

	if err := s.matches.UpsertParticipant(ctx, domain.MatchParticipant{
		MatchID:    match.ExternalID,
		UserID:     p.UserID,
		PUUID:      p.PUUID,
		Team:       am.Team,
		ChampionID: am.ChampionID,
	}); err != nil {
		return domain.Market{}, fmt.Errorf("market_service: join match %s: %w", am.ExternalID, err)
	}

	market, err := s.markets.CreateCanonical(ctx, domain.Market{
		ID:      uuid.New().String(),
		MatchID: match.ExternalID,
		Kind:    domain.MarketKindOutcome,
		Title:   fmt.Sprintf("Match %s", match.ExternalID),
		State:   domain.MarketStateOpen,
		Quote:   domain.NeutralQuote,
	})
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: create market for %s: %w", am.ExternalID, err)
	}

	s.checkDuo(ctx, match.ExternalID)

	s.logger.InfoContext(ctx, "market_service: match joined",
		slog.String("match_id", match.ExternalID),
		slog.String("market_id", market.ID),
		slog.String("username", p.Username),
		slog.String("team", string(am.Team)),
	)

	return market, nil
}

// checkDuo publishes a signal when two or more tracked users share a team in
// the match. Failures only log; discovery must not stall on the bus.
func (s *MarketService) checkDuo(ctx context.Context, matchID string) {
	participants, err := s.matches.ListParticipants(ctx, matchID)
	if err != nil {
		s.logger.WarnContext(ctx, "market_service: duo check failed",
			slog.String("match_id", matchID),
			slog.String("error", err.Error()),
		)
		return
	}

	byTeam := map[domain.Side][]string{}
	for _, p := range participants {
		byTeam[p.Team] = append(byTeam[p.Team], p.UserID)
	}

	for team, users := range byTeam {
		if len(users) < 2 {
			continue
		}
		payload, err := json.Marshal(duoSignal{
			MatchID:   matchID,
			Team:      string(team),
			Usernames: users,
		})
		if err != nil {
			continue
		}
		if err := s.bus.Publish(ctx, domain.ChannelSignals, payload); err != nil {
			s.logger.WarnContext(ctx, "market_service: duo signal publish failed",
				slog.String("match_id", matchID),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Get retrieves a market, overlaying the cached quote when one is fresher
// than the stored row.
func (s *MarketService) Get(ctx context.Context, id string) (domain.Market, error) {
	m, err := s.markets.GetByID(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get %q: %w", id, err)
	}

	if q, cacheErr := s.quotes.GetQuote(ctx, id); cacheErr == nil {
		m.Quote = q
	}
	return m, nil
}

// GetByMatch retrieves the canonical market for a match.
func (s *MarketService) GetByMatch(ctx context.Context, matchID string) (domain.Market, error) {
	m, err := s.markets.GetByMatch(ctx, matchID, domain.MarketKindOutcome)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get by match %q: %w", matchID, err)
	}
	return m, nil
}

// ListOpen returns every market currently accepting wagers.
func (s *MarketService) ListOpen(ctx context.Context) ([]domain.Market, error) {
	markets, err := s.markets.ListOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("market_service: list open: %w", err)
	}
	return markets, nil
}

// Close stops a market from accepting wagers. Settlement of placed wagers
// still happens when the match finishes.
func (s *MarketService) Close(ctx context.Context, id string) error {
	if err := s.markets.Close(ctx, id); err != nil {
		return fmt.Errorf("market_service: close %q: %w", id, err)
	}

	payload, _ := json.Marshal(map[string]any{
		"market_id": id,
		"state":     string(domain.MarketStateClosed),
		"at":        time.Now().UTC(),
	})
	if err := s.bus.Publish(ctx, domain.ChannelQuotes, payload); err != nil {
		s.logger.WarnContext(ctx, "market_service: close publish failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
	}

	s.logger.InfoContext(ctx, "market_service: market closed", slog.String("market_id", id))
	return nil
}

// Participants lists the tracked participants of a match.
func (s *MarketService) Participants(ctx context.Context, matchID string) ([]domain.MatchParticipant, error) {
	participants, err := s.matches.ListParticipants(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("market_service: participants %q: %w", matchID, err)
	}
	return participants, nil
}
