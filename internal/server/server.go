// Package server wires the HTTP API: routing, middleware, and the WebSocket
// endpoint.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/breakpt/riftbet/internal/domain"
	"github.com/breakpt/riftbet/internal/server/handler"
	"github.com/breakpt/riftbet/internal/server/middleware"
	"github.com/breakpt/riftbet/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	AdminKey    string

	// RateLimit caps requests per client IP per RateWindow. Zero disables
	// API rate limiting.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server registers.
type Handlers struct {
	Health  *handler.HealthHandler
	Markets *handler.MarketHandler
	Wagers  *handler.WagerHandler
	Users   *handler.UserHandler
	Riot    *handler.RiotHandler
}

// Server is the HTTP + WebSocket API for the wagering book.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered. limiter may be nil;
// rate limiting is then skipped.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	admin := middleware.Admin(cfg.AdminKey)

	// Health check, no identity required.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Markets.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.Handle("POST /api/markets/{id}/close", admin(http.HandlerFunc(handlers.Markets.CloseMarket)))

	// Wagers.
	mux.HandleFunc("POST /api/wagers", handlers.Wagers.PlaceWager)
	mux.HandleFunc("GET /api/wagers", handlers.Wagers.ListWagers)

	// Accounts.
	mux.HandleFunc("POST /api/user/register", handlers.Users.Register)
	mux.HandleFunc("GET /api/user/profile", handlers.Users.Profile)
	mux.HandleFunc("POST /api/user/daily", handlers.Users.ClaimDaily)
	mux.HandleFunc("GET /api/user/leaderboard", handlers.Users.Leaderboard)

	// Riot identity linking.
	mux.HandleFunc("POST /api/riot/link", handlers.Riot.Link)
	mux.HandleFunc("DELETE /api/riot/link", handlers.Riot.Unlink)

	// WebSocket event stream.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Middleware chain, innermost first.
	var h http.Handler = mux
	h = middleware.Identity()(h)
	h = middleware.Logging(logger)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(h)
	}
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
