package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

type ctxKey int

const userIDKey ctxKey = iota

// Identity returns middleware that copies the caller identity from the
// X-User-ID header into the request context. The header is set by the
// fronting identity proxy; this service never authenticates users itself.
// Requests without the header pass through; handlers that require an
// identity reject them.
func Identity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
				r = r.WithContext(context.WithValue(r.Context(), userIDKey, id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserID returns the caller identity stored by Identity, or "" when the
// request carried none.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// Admin returns middleware that guards operator endpoints with a static key,
// accepted either as a Bearer token in the Authorization header or in the
// X-API-Key header. If adminKey is empty the guarded endpoints are disabled
// outright rather than left open.
func Admin(adminKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKey == "" {
				writeAuthError(w, http.StatusForbidden, "admin endpoints disabled")
				return
			}

			token := extractToken(r)
			if token == "" {
				writeAuthError(w, http.StatusUnauthorized, "missing admin key")
				return
			}

			// Constant-time comparison to prevent timing attacks.
			if subtle.ConstantTimeCompare([]byte(token), []byte(adminKey)) != 1 {
				writeAuthError(w, http.StatusUnauthorized, "invalid admin key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractToken looks for a token in the Authorization header (Bearer scheme)
// or in the X-API-Key header.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return strings.TrimSpace(key)
	}
	return ""
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `"}`))
}
