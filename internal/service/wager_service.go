package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/breakpt/riftbet/internal/domain"
	"github.com/breakpt/riftbet/internal/pricing"
)

// WagerService owns the serialized placement path. All stake mutations run
// inside one ledger transaction holding the market row lock, so the quote a
// wager locks is always computed from an aggregate that cannot move
// underneath it.
type WagerService struct {
	ledger   domain.Ledger
	wagers   domain.WagerStore
	quotes   domain.QuoteCache
	bus      domain.SignalBus
	logger   *slog.Logger
	maxStake float64
}

// NewWagerService creates a WagerService. maxStake of zero leaves single
// wagers uncapped.
func NewWagerService(
	ledger domain.Ledger,
	wagers domain.WagerStore,
	quotes domain.QuoteCache,
	bus domain.SignalBus,
	logger *slog.Logger,
	maxStake float64,
) *WagerService {
	return &WagerService{
		ledger:   ledger,
		wagers:   wagers,
		quotes:   quotes,
		bus:      bus,
		logger:   logger,
		maxStake: maxStake,
	}
}

// wagerEvent is the bus payload published after a successful placement.
type wagerEvent struct {
	WagerID   string    `json:"wager_id"`
	MarketID  string    `json:"market_id"`
	Side      string    `json:"side"`
	Amount    float64   `json:"amount"`
	LockedOdd float64   `json:"locked_odd"`
	At        time.Time `json:"at"`
}

// quoteEvent is the bus payload published on every repricing.
type quoteEvent struct {
	MarketID string       `json:"market_id"`
	Quote    domain.Quote `json:"quote"`
	At       time.Time    `json:"at"`
}

// Place admits one wager. Inside the ledger transaction, in order: the market
// row lock is taken and the OPEN state checked, the odd for the chosen side
// is computed from the aggregate as it stands before this wager, the stake is
// debited, the wager inserted, and the quote recomputed with the new stake
// included. Any failure rolls the whole placement back.
func (s *WagerService) Place(ctx context.Context, userID, marketID string, side domain.Side, amount float64) (domain.WagerReceipt, error) {
	if !side.Valid() {
		return domain.WagerReceipt{}, fmt.Errorf("wager_service: side %q: %w", side, domain.ErrValidation)
	}
	if amount <= 0 {
		return domain.WagerReceipt{}, fmt.Errorf("wager_service: amount must be positive: %w", domain.ErrValidation)
	}
	if s.maxStake > 0 && amount > s.maxStake {
		return domain.WagerReceipt{}, fmt.Errorf("wager_service: amount exceeds max stake %.2f: %w", s.maxStake, domain.ErrValidation)
	}

	var receipt domain.WagerReceipt
	err := s.ledger.InTx(ctx, func(tx domain.LedgerTx) error {
		market, err := tx.MarketForUpdate(ctx, marketID)
		if err != nil {
			return fmt.Errorf("wager_service: lock market: %w", err)
		}
		if market.State != domain.MarketStateOpen {
			return fmt.Errorf("wager_service: market %s is %s: %w", marketID, market.State, domain.ErrConflict)
		}

		stakeA, stakeB, err := tx.StakeTotals(ctx, marketID)
		if err != nil {
			return fmt.Errorf("wager_service: stake totals: %w", err)
		}

		// The odd locks against the aggregate before this wager joins it.
		lockedOdd := pricing.Price(stakeA, stakeB).Side(side)

		balance, err := tx.DebitBalance(ctx, userID, amount)
		if err != nil {
			return fmt.Errorf("wager_service: debit: %w", err)
		}

		wager := domain.Wager{
			ID:        uuid.New().String(),
			UserID:    userID,
			MarketID:  marketID,
			Side:      side,
			Amount:    amount,
			LockedOdd: lockedOdd,
			State:     domain.WagerStatePlaced,
		}
		if err := tx.InsertWager(ctx, wager); err != nil {
			return fmt.Errorf("wager_service: insert: %w", err)
		}

		if side == domain.SideA {
			stakeA += amount
		} else {
			stakeB += amount
		}
		newQuote := pricing.Price(stakeA, stakeB)
		if err := tx.UpdateQuote(ctx, marketID, newQuote); err != nil {
			return fmt.Errorf("wager_service: update quote: %w", err)
		}

		receipt = domain.WagerReceipt{
			Wager:    wager,
			NewQuote: newQuote,
			Balance:  balance,
		}
		return nil
	})
	if err != nil {
		return domain.WagerReceipt{}, err
	}

	s.publishPlacement(ctx, receipt)

	s.logger.InfoContext(ctx, "wager_service: wager placed",
		slog.String("wager_id", receipt.Wager.ID),
		slog.String("market_id", marketID),
		slog.String("side", string(side)),
		slog.Float64("amount", amount),
		slog.Float64("locked_odd", receipt.Wager.LockedOdd),
	)

	return receipt, nil
}

// publishPlacement refreshes the quote cache and emits bus events. All of it
// is best-effort: the wager is already committed.
func (s *WagerService) publishPlacement(ctx context.Context, receipt domain.WagerReceipt) {
	marketID := receipt.Wager.MarketID

	if err := s.quotes.SetQuote(ctx, marketID, receipt.NewQuote); err != nil {
		s.logger.WarnContext(ctx, "wager_service: quote cache set failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}

	now := time.Now().UTC()
	if payload, err := json.Marshal(quoteEvent{MarketID: marketID, Quote: receipt.NewQuote, At: now}); err == nil {
		if err := s.bus.Publish(ctx, domain.ChannelQuotes, payload); err != nil {
			s.logger.WarnContext(ctx, "wager_service: quote publish failed",
				slog.String("market_id", marketID),
				slog.String("error", err.Error()),
			)
		}
	}

	payload, err := json.Marshal(wagerEvent{
		WagerID:   receipt.Wager.ID,
		MarketID:  marketID,
		Side:      string(receipt.Wager.Side),
		Amount:    receipt.Wager.Amount,
		LockedOdd: receipt.Wager.LockedOdd,
		At:        now,
	})
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, domain.ChannelWagers, payload); err != nil {
		s.logger.WarnContext(ctx, "wager_service: wager publish failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.bus.StreamAppend(ctx, domain.ChannelWagers, payload); err != nil {
		s.logger.WarnContext(ctx, "wager_service: wager stream append failed",
			slog.String("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}
}

// ListByMarket returns every wager on a market.
func (s *WagerService) ListByMarket(ctx context.Context, marketID string) ([]domain.Wager, error) {
	wagers, err := s.wagers.ListByMarket(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("wager_service: list by market %q: %w", marketID, err)
	}
	return wagers, nil
}

// History returns the user's wagers, newest first.
func (s *WagerService) History(ctx context.Context, userID string) ([]domain.Wager, error) {
	wagers, err := s.wagers.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("wager_service: history %q: %w", userID, err)
	}
	return wagers, nil
}
