package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler(captured *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			*captured = UserID(r.Context())
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestIdentity_PropagatesHeader(t *testing.T) {
	var got string
	h := Identity()(okHandler(&got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-User-ID", " u-123 ")
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got != "u-123" {
		t.Errorf("user id = %q", got)
	}
}

func TestIdentity_MissingHeaderPassesThrough(t *testing.T) {
	var got string
	h := Identity()(okHandler(&got))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusOK || got != "" {
		t.Errorf("code/id = %d/%q", rec.Code, got)
	}
}

func TestAdmin_KeyChecks(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		header func(*http.Request)
		want   int
	}{
		{"bearer ok", "sekrit", func(r *http.Request) { r.Header.Set("Authorization", "Bearer sekrit") }, http.StatusOK},
		{"api key ok", "sekrit", func(r *http.Request) { r.Header.Set("X-API-Key", "sekrit") }, http.StatusOK},
		{"wrong key", "sekrit", func(r *http.Request) { r.Header.Set("X-API-Key", "guess") }, http.StatusUnauthorized},
		{"missing key", "sekrit", func(*http.Request) {}, http.StatusUnauthorized},
		{"disabled", "", func(r *http.Request) { r.Header.Set("X-API-Key", "anything") }, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := Admin(tt.key)(okHandler(nil))
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			tt.header(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
