package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/breakpt/riftbet/internal/domain"
)

// WagerService defines the methods the wager handler requires from the
// service layer.
type WagerService interface {
	Place(ctx context.Context, userID, marketID string, side domain.Side, amount float64) (domain.WagerReceipt, error)
	History(ctx context.Context, userID string) ([]domain.Wager, error)
}

// WagerHandler serves wager placement and history endpoints.
type WagerHandler struct {
	wagers WagerService
	logger *slog.Logger
}

// NewWagerHandler creates a WagerHandler with the given service and logger.
func NewWagerHandler(wagers WagerService, logger *slog.Logger) *WagerHandler {
	return &WagerHandler{
		wagers: wagers,
		logger: logger,
	}
}

type placeWagerRequest struct {
	MarketID string  `json:"market_id"`
	Side     string  `json:"side"`
	Amount   float64 `json:"amount"`
}

// wagerResponse is the wire shape of a wager.
type wagerResponse struct {
	ID            string     `json:"id"`
	MarketID      string     `json:"market_id"`
	Side          string     `json:"side"`
	Amount        float64    `json:"amount"`
	LockedOdd     float64    `json:"locked_odd"`
	PotentialGain float64    `json:"potential_gain"`
	State         string     `json:"state"`
	CreatedAt     time.Time  `json:"created_at"`
	SettledAt     *time.Time `json:"settled_at,omitempty"`
}

func toWagerResponse(wg domain.Wager) wagerResponse {
	return wagerResponse{
		ID:            wg.ID,
		MarketID:      wg.MarketID,
		Side:          string(wg.Side),
		Amount:        wg.Amount,
		LockedOdd:     wg.LockedOdd,
		PotentialGain: wg.PotentialGain(),
		State:         string(wg.State),
		CreatedAt:     wg.CreatedAt,
		SettledAt:     wg.SettledAt,
	}
}

// PlaceWager places a stake for the caller and returns the receipt with the
// locked odd, the recomputed market quote, and the remaining balance.
// POST /api/wagers
func (h *WagerHandler) PlaceWager(w http.ResponseWriter, r *http.Request) {
	userID := callerID(w, r)
	if userID == "" {
		return
	}

	var req placeWagerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MarketID == "" {
		writeError(w, http.StatusBadRequest, "missing market_id")
		return
	}

	receipt, err := h.wagers.Place(r.Context(), userID, req.MarketID, domain.Side(req.Side), req.Amount)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to place wager")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"wager":   toWagerResponse(receipt.Wager),
		"quote":   receipt.NewQuote,
		"balance": receipt.Balance,
	})
}

// ListWagers returns the caller's wager history, newest first.
// GET /api/wagers
func (h *WagerHandler) ListWagers(w http.ResponseWriter, r *http.Request) {
	userID := callerID(w, r)
	if userID == "" {
		return
	}

	wagers, err := h.wagers.History(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to list wagers")
		return
	}

	out := make([]wagerResponse, 0, len(wagers))
	for _, wg := range wagers {
		out = append(out, toWagerResponse(wg))
	}
	writeJSON(w, http.StatusOK, map[string]any{"wagers": out})
}
