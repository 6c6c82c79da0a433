package handler

import (
	"context"
	"log/slog"
	"net/http"
)

// RiotLinkService defines the identity-linking methods the riot handler
// requires from the service layer.
type RiotLinkService interface {
	LinkRiotAccount(ctx context.Context, userID, gameName, tagLine string) error
	UnlinkRiotAccount(ctx context.Context, userID string) error
}

// RiotHandler serves Riot account linking endpoints.
type RiotHandler struct {
	accounts RiotLinkService
	logger   *slog.Logger
}

// NewRiotHandler creates a RiotHandler with the given service and logger.
func NewRiotHandler(accounts RiotLinkService, logger *slog.Logger) *RiotHandler {
	return &RiotHandler{
		accounts: accounts,
		logger:   logger,
	}
}

type linkRequest struct {
	Name    string `json:"name"`
	Tagline string `json:"tagline"`
}

// Link resolves the riot id to a puuid and attaches it to the caller.
// Relinking overwrites the previous identity.
// POST /api/riot/link
func (h *RiotHandler) Link(w http.ResponseWriter, r *http.Request) {
	userID := callerID(w, r)
	if userID == "" {
		return
	}

	var req linkRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.accounts.LinkRiotAccount(r.Context(), userID, req.Name, req.Tagline); err != nil {
		writeDomainError(w, r, h.logger, err, "failed to link riot account")
		return
	}

	h.logger.InfoContext(r.Context(), "handler: riot account linked",
		slog.String("user_id", userID),
	)
	writeJSON(w, http.StatusOK, map[string]bool{"linked": true})
}

// Unlink removes the caller's riot identity, taking them out of the
// discovery poll set.
// DELETE /api/riot/link
func (h *RiotHandler) Unlink(w http.ResponseWriter, r *http.Request) {
	userID := callerID(w, r)
	if userID == "" {
		return
	}

	if err := h.accounts.UnlinkRiotAccount(r.Context(), userID); err != nil {
		writeDomainError(w, r, h.logger, err, "failed to unlink riot account")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"linked": false})
}
