// Package handler contains the HTTP handlers for the wagering API. Each
// handler declares the narrow service interface it consumes so the package
// never depends on concrete service implementations.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/breakpt/riftbet/internal/domain"
	"github.com/breakpt/riftbet/internal/server/middleware"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps the shared sentinel errors onto HTTP statuses,
// logging anything unexpected as a 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error, fallback string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInsufficientFunds):
		writeError(w, http.StatusUnprocessableEntity, "insufficient balance")
	case errors.Is(err, domain.ErrProvider):
		writeError(w, http.StatusBadGateway, "upstream provider error")
	default:
		logger.ErrorContext(r.Context(), "handler: "+fallback,
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

// callerID returns the identity set by the identity middleware, writing a 401
// and returning "" when the request carried none.
func callerID(w http.ResponseWriter, r *http.Request) string {
	id := middleware.UserID(r.Context())
	if id == "" {
		writeError(w, http.StatusUnauthorized, "missing X-User-ID")
	}
	return id
}

// pathParam extracts a named path parameter from the request using Go 1.22+
// built-in routing (http.Request.PathValue).
func pathParam(r *http.Request, name string) string {
	return r.PathValue(name)
}

// decodeBody decodes a JSON request body into dst, rejecting unknown fields.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
