package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/breakpt/riftbet/internal/domain"
)

// MarketService defines the methods the market handler requires from the
// service layer.
type MarketService interface {
	Get(ctx context.Context, id string) (domain.Market, error)
	ListOpen(ctx context.Context) ([]domain.Market, error)
	Close(ctx context.Context, id string) error
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given service and logger.
func NewMarketHandler(markets MarketService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		logger:  logger,
	}
}

// marketResponse is the wire shape of a market.
type marketResponse struct {
	ID        string       `json:"id"`
	MatchID   string       `json:"match_id"`
	Kind      string       `json:"kind"`
	Title     string       `json:"title"`
	State     string       `json:"state"`
	Quote     domain.Quote `json:"quote"`
	CreatedAt time.Time    `json:"created_at"`
}

func toMarketResponse(m domain.Market) marketResponse {
	return marketResponse{
		ID:        m.ID,
		MatchID:   m.MatchID,
		Kind:      string(m.Kind),
		Title:     m.Title,
		State:     string(m.State),
		Quote:     m.Quote,
		CreatedAt: m.CreatedAt,
	}
}

// ListMarkets returns all OPEN markets with their live quotes.
// GET /api/markets
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := h.markets.ListOpen(r.Context())
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to list markets")
		return
	}

	out := make([]marketResponse, 0, len(markets))
	for _, m := range markets {
		out = append(out, toMarketResponse(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"markets": out})
}

// GetMarket returns a single market by its ID, in any state.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	market, err := h.markets.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, h.logger, err, "failed to get market")
		return
	}
	writeJSON(w, http.StatusOK, toMarketResponse(market))
}

// CloseMarket transitions an OPEN market to CLOSED, stopping further wagers.
// Settlement still runs when the match ends. Admin only.
// POST /api/markets/{id}/close
func (h *MarketHandler) CloseMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	if err := h.markets.Close(r.Context(), id); err != nil {
		writeDomainError(w, r, h.logger, err, "failed to close market")
		return
	}

	h.logger.InfoContext(r.Context(), "handler: market closed", slog.String("market_id", id))
	writeJSON(w, http.StatusOK, map[string]string{"state": string(domain.MarketStateClosed)})
}
