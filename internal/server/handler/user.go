package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/breakpt/riftbet/internal/domain"
)

// AccountService defines the methods the user handler requires from the
// service layer.
type AccountService interface {
	Register(ctx context.Context, username string) (domain.User, error)
	Profile(ctx context.Context, userID string) (domain.Profile, error)
	ClaimDaily(ctx context.Context, userID string) (bool, error)
	Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error)
}

// UserHandler serves account endpoints.
type UserHandler struct {
	accounts AccountService
	logger   *slog.Logger
}

// NewUserHandler creates a UserHandler with the given service and logger.
func NewUserHandler(accounts AccountService, logger *slog.Logger) *UserHandler {
	return &UserHandler{
		accounts: accounts,
		logger:   logger,
	}
}

type registerRequest struct {
	Username string `json:"username"`
}

// Register creates a new account with the starting balance. The returned id
// is what the identity proxy hands back as X-User-ID on later requests.
// POST /api/user/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.accounts.Register(r.Context(), req.Username)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to register user")
		return
	}

	h.logger.InfoContext(r.Context(), "handler: user registered",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       user.ID,
		"username": user.Username,
		"balance":  user.Balance,
	})
}

// Profile returns the caller's aggregate account view.
// GET /api/user/profile
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID := callerID(w, r)
	if userID == "" {
		return
	}

	profile, err := h.accounts.Profile(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// ClaimDaily grants the daily reward if the caller's 24h window has elapsed.
// POST /api/user/daily
func (h *UserHandler) ClaimDaily(w http.ResponseWriter, r *http.Request) {
	userID := callerID(w, r)
	if userID == "" {
		return
	}

	claimed, err := h.accounts.ClaimDaily(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to claim daily reward")
		return
	}
	if !claimed {
		writeError(w, http.StatusConflict, "daily reward already claimed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"claimed": true})
}

// Leaderboard returns users ranked by balance. Only users past the minimum
// wager count appear.
// GET /api/user/leaderboard
func (h *UserHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.accounts.Leaderboard(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to load leaderboard")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": entries})
}
