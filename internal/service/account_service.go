package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/breakpt/riftbet/internal/domain"
)

// AccountResolver maps a riot id pair to a puuid.
type AccountResolver interface {
	AccountByRiotID(ctx context.Context, gameName, tagLine string) (string, error)
}

// AccountService manages user accounts, identity links, and reward claims.
type AccountService struct {
	users           domain.UserStore
	wagers          domain.WagerStore
	resolver        AccountResolver
	logger          *slog.Logger
	startingBalance float64
	dailyReward     float64
	minWagers       int
}

// NewAccountService creates an AccountService with all required dependencies.
func NewAccountService(
	users domain.UserStore,
	wagers domain.WagerStore,
	resolver AccountResolver,
	logger *slog.Logger,
	startingBalance, dailyReward float64,
	minWagers int,
) *AccountService {
	return &AccountService{
		users:           users,
		wagers:          wagers,
		resolver:        resolver,
		logger:          logger,
		startingBalance: startingBalance,
		dailyReward:     dailyReward,
		minWagers:       minWagers,
	}
}

// Register creates a new account seeded with the starting balance.
func (s *AccountService) Register(ctx context.Context, username string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.User{}, fmt.Errorf("account_service: username must not be empty: %w", domain.ErrValidation)
	}

	u := domain.User{
		ID:       uuid.New().String(),
		Username: username,
		Balance:  s.startingBalance,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return domain.User{}, fmt.Errorf("account_service: register %q: %w", username, err)
	}

	s.logger.InfoContext(ctx, "account_service: user registered",
		slog.String("user_id", u.ID),
		slog.String("username", username),
	)
	return u, nil
}

// Get retrieves a user by id.
func (s *AccountService) Get(ctx context.Context, userID string) (domain.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("account_service: get %q: %w", userID, err)
	}
	return u, nil
}

// LinkRiotAccount resolves "gameName#tagLine" via the provider and attaches
// the resulting puuid to the user. Relinking overwrites the previous link.
func (s *AccountService) LinkRiotAccount(ctx context.Context, userID, gameName, tagLine string) error {
	gameName = strings.TrimSpace(gameName)
	tagLine = strings.TrimSpace(strings.TrimPrefix(tagLine, "#"))
	if gameName == "" || tagLine == "" {
		return fmt.Errorf("account_service: riot id must be name and tagline: %w", domain.ErrValidation)
	}

	puuid, err := s.resolver.AccountByRiotID(ctx, gameName, tagLine)
	if err != nil {
		return fmt.Errorf("account_service: resolve %s#%s: %w", gameName, tagLine, err)
	}

	tagline := gameName + "#" + tagLine
	if err := s.users.LinkRiotAccount(ctx, userID, puuid, tagline); err != nil {
		return fmt.Errorf("account_service: link %q: %w", userID, err)
	}

	s.logger.InfoContext(ctx, "account_service: riot account linked",
		slog.String("user_id", userID),
		slog.String("riot_id", tagline),
	)
	return nil
}

// UnlinkRiotAccount detaches the user's contest identity. The user drops out
// of discovery on the next poll cycle.
func (s *AccountService) UnlinkRiotAccount(ctx context.Context, userID string) error {
	if err := s.users.UnlinkRiotAccount(ctx, userID); err != nil {
		return fmt.Errorf("account_service: unlink %q: %w", userID, err)
	}
	s.logger.InfoContext(ctx, "account_service: riot account unlinked",
		slog.String("user_id", userID))
	return nil
}

// ClaimDaily grants the daily reward at most once per 24 hours. It reports
// whether the claim succeeded.
func (s *AccountService) ClaimDaily(ctx context.Context, userID string) (bool, error) {
	claimed, err := s.users.ClaimDaily(ctx, userID, s.dailyReward)
	if err != nil {
		return false, fmt.Errorf("account_service: claim daily %q: %w", userID, err)
	}
	if claimed {
		s.logger.InfoContext(ctx, "account_service: daily reward claimed",
			slog.String("user_id", userID),
			slog.Float64("amount", s.dailyReward),
		)
	}
	return claimed, nil
}

// Profile aggregates the user's account view.
func (s *AccountService) Profile(ctx context.Context, userID string) (domain.Profile, error) {
	p, err := s.users.Profile(ctx, userID)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("account_service: profile %q: %w", userID, err)
	}
	return p, nil
}

// Leaderboard ranks qualifying users by balance.
func (s *AccountService) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	entries, err := s.users.Leaderboard(ctx, s.minWagers)
	if err != nil {
		return nil, fmt.Errorf("account_service: leaderboard: %w", err)
	}
	return entries, nil
}
