package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/breakpt/riftbet/internal/domain"
)

// ResultProvider supplies the authoritative view of a match from the outside
// world: whether it is still running and, once finished, who won.
type ResultProvider interface {
	ActiveMatch(ctx context.Context, puuid string) (domain.ActiveMatch, bool, error)
	MatchResult(ctx context.Context, externalID string) ([]domain.MatchOutcome, error)
}

// SettlementService finalizes matches and pays out wagers exactly once. A
// distributed lock keeps concurrent settlers off the same match; the
// write-once match finalization inside the ledger transaction catches
// whatever slips past the lock.
type SettlementService struct {
	ledger   domain.Ledger
	matches  domain.MatchStore
	markets  domain.MarketStore
	provider ResultProvider
	locks    domain.LockManager
	bus      domain.SignalBus
	logger   *slog.Logger
	lockTTL  time.Duration
}

// NewSettlementService creates a SettlementService with all required
// dependencies.
func NewSettlementService(
	ledger domain.Ledger,
	matches domain.MatchStore,
	markets domain.MarketStore,
	provider ResultProvider,
	locks domain.LockManager,
	bus domain.SignalBus,
	logger *slog.Logger,
	lockTTL time.Duration,
) *SettlementService {
	if lockTTL <= 0 {
		lockTTL = time.Minute
	}
	return &SettlementService{
		ledger:   ledger,
		matches:  matches,
		markets:  markets,
		provider: provider,
		locks:    locks,
		bus:      bus,
		logger:   logger,
		lockTTL:  lockTTL,
	}
}

// settlementEvent is the bus payload emitted after a match settles.
type settlementEvent struct {
	MatchID  string    `json:"match_id"`
	MarketID string    `json:"market_id"`
	Winner   string    `json:"winner"`
	Won      int       `json:"wagers_won"`
	Lost     int       `json:"wagers_lost"`
	Paid     float64   `json:"paid_out"`
	At       time.Time `json:"at"`
}

// Settle finalizes one match: verifies it really ended, fetches the result,
// and pays out every placed wager in a single atomic transaction. It is safe
// to call repeatedly; a match that is already settled, still running, or
// being settled elsewhere is a no-op.
func (s *SettlementService) Settle(ctx context.Context, externalID string) error {
	unlock, err := s.locks.Acquire(ctx, "settle:"+externalID, s.lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			s.logger.DebugContext(ctx, "settlement: lock held elsewhere",
				slog.String("match_id", externalID))
			return nil
		}
		return fmt.Errorf("settlement: acquire lock %s: %w", externalID, err)
	}
	defer unlock()

	match, err := s.matches.GetByExternalID(ctx, externalID)
	if err != nil {
		return fmt.Errorf("settlement: load match %s: %w", externalID, err)
	}
	if match.State != domain.MatchStateOngoing {
		return nil
	}

	participants, err := s.matches.ListParticipants(ctx, externalID)
	if err != nil {
		return fmt.Errorf("settlement: load participants %s: %w", externalID, err)
	}
	if len(participants) == 0 {
		return fmt.Errorf("settlement: match %s has no participants: %w", externalID, domain.ErrValidation)
	}
	anchor := participants[0]

	// Re-verify against the provider: grace-period absence can be a blip.
	if am, live, err := s.provider.ActiveMatch(ctx, anchor.PUUID); err != nil {
		return fmt.Errorf("settlement: re-verify %s: %w", externalID, err)
	} else if live && am.ExternalID == externalID {
		s.logger.DebugContext(ctx, "settlement: match still live",
			slog.String("match_id", externalID))
		return nil
	}

	outcomes, err := s.provider.MatchResult(ctx, externalID)
	if err != nil {
		return fmt.Errorf("settlement: result %s: %w", externalID, err)
	}

	winner, err := resolveWinner(anchor, outcomes)
	if err != nil {
		return fmt.Errorf("settlement: %s: %w", externalID, err)
	}

	market, err := s.markets.GetByMatch(ctx, externalID, domain.MarketKindOutcome)
	if err != nil {
		return fmt.Errorf("settlement: load market for %s: %w", externalID, err)
	}

	var event settlementEvent
	err = s.ledger.InTx(ctx, func(tx domain.LedgerTx) error {
		if _, err := tx.MarketForUpdate(ctx, market.ID); err != nil {
			return fmt.Errorf("settlement: lock market: %w", err)
		}
		if err := tx.FinalizeMatch(ctx, externalID, winner); err != nil {
			return fmt.Errorf("settlement: finalize match: %w", err)
		}

		placed, err := tx.ListPlaced(ctx, market.ID)
		if err != nil {
			return fmt.Errorf("settlement: list placed: %w", err)
		}

		event = settlementEvent{
			MatchID:  externalID,
			MarketID: market.ID,
			Winner:   string(winner),
		}
		for _, w := range placed {
			if w.Side == winner {
				payout := w.PotentialGain()
				if err := tx.CreditBalance(ctx, w.UserID, payout); err != nil {
					return fmt.Errorf("settlement: credit wager %s: %w", w.ID, err)
				}
				if err := tx.SetWagerState(ctx, w.ID, domain.WagerStateWon); err != nil {
					return fmt.Errorf("settlement: mark wager %s won: %w", w.ID, err)
				}
				event.Won++
				event.Paid += payout
			} else {
				if err := tx.SetWagerState(ctx, w.ID, domain.WagerStateLost); err != nil {
					return fmt.Errorf("settlement: mark wager %s lost: %w", w.ID, err)
				}
				event.Lost++
			}
		}

		return tx.SetMarketState(ctx, market.ID, domain.MarketStateFinished)
	})
	if err != nil {
		// A concurrent settler won the finalize race; its commit is the one
		// that counts.
		if errors.Is(err, domain.ErrConflict) {
			return nil
		}
		return err
	}

	s.publishSettlement(ctx, event)

	s.logger.InfoContext(ctx, "settlement: match settled",
		slog.String("match_id", externalID),
		slog.String("winner", string(winner)),
		slog.Int("wagers_won", event.Won),
		slog.Int("wagers_lost", event.Lost),
		slog.Float64("paid_out", event.Paid),
	)

	return nil
}

// resolveWinner maps the anchor participant's outcome to the winning side.
func resolveWinner(anchor domain.MatchParticipant, outcomes []domain.MatchOutcome) (domain.Side, error) {
	for _, o := range outcomes {
		if o.PUUID != anchor.PUUID {
			continue
		}
		if o.Won {
			return anchor.Team, nil
		}
		return anchor.Team.Opposite(), nil
	}
	return "", fmt.Errorf("anchor participant absent from result: %w", domain.ErrProvider)
}

func (s *SettlementService) publishSettlement(ctx context.Context, event settlementEvent) {
	event.At = time.Now().UTC()
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, domain.ChannelSettlements, payload); err != nil {
		s.logger.WarnContext(ctx, "settlement: publish failed",
			slog.String("match_id", event.MatchID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.bus.StreamAppend(ctx, domain.ChannelSettlements, payload); err != nil {
		s.logger.WarnContext(ctx, "settlement: stream append failed",
			slog.String("match_id", event.MatchID),
			slog.String("error", err.Error()),
		)
	}
}
