package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger reports backend connectivity for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves the health-check endpoint.
type HealthHandler struct {
	db     Pinger
	cache  Pinger
	logger *slog.Logger
}

// NewHealthHandler creates a HealthHandler. Either pinger may be nil when the
// backend is not wired in the running mode.
func NewHealthHandler(db, cache Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{db: db, cache: cache, logger: logger}
}

// HealthCheck reports liveness plus per-backend connectivity.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := map[string]string{}

	for name, p := range map[string]Pinger{"postgres": h.db, "redis": h.cache} {
		if p == nil {
			continue
		}
		if err := p.Ping(ctx); err != nil {
			checks[name] = "down"
			status = http.StatusServiceUnavailable
			h.logger.WarnContext(r.Context(), "health check failed",
				slog.String("backend", name),
				slog.String("error", err.Error()),
			)
			continue
		}
		checks[name] = "ok"
	}

	body := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}
	if status != http.StatusOK {
		body["status"] = "degraded"
	}
	writeJSON(w, status, body)
}
