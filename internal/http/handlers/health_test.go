package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/geocoder89/libraryhub/internal/http/handlers"
)

func TestReadyz(t *testing.T) {
	up := func(ctx context.Context) error { return nil }
	down := func(ctx context.Context) error { return errors.New("connection refused") }

	tests := []struct {
		name           string
		checks         map[string]handlers.PingFunc
		wantStatusCode int
		wantChecks     map[string]string
	}{
		{
			name:           "all_up",
			checks:         map[string]handlers.PingFunc{"db": up, "redis": up},
			wantStatusCode: http.StatusOK,
			wantChecks:     map[string]string{"db": "up", "redis": "up"},
		},
		{
			name:           "db_down",
			checks:         map[string]handlers.PingFunc{"db": down, "redis": up},
			wantStatusCode: http.StatusServiceUnavailable,
			wantChecks:     map[string]string{"db": "down", "redis": "up"},
		},
		{
			name:           "redis_not_configured",
			checks:         map[string]handlers.PingFunc{"db": up, "redis": nil},
			wantStatusCode: http.StatusOK,
			wantChecks:     map[string]string{"db": "up"},
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			h := handlers.NewHealthHandler(tt.checks)
			r := setupRouter(http.MethodGet, "/readyz", h.Readyz)

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d", w.Code, tt.wantStatusCode)
			}

			var body struct {
				Checks map[string]string `json:"checks"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(body.Checks) != len(tt.wantChecks) {
				t.Fatalf("got checks %v, want %v", body.Checks, tt.wantChecks)
			}
			for k, v := range tt.wantChecks {
				if body.Checks[k] != v {
					t.Fatalf("check %s = %q, want %q", k, body.Checks[k], v)
				}
			}
		})
	}
}

func TestHealthz(t *testing.T) {
	h := handlers.NewHealthHandler(nil)
	r := setupRouter(http.MethodGet, "/healthz", h.Healthz)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}
}
