package middlewares

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/libraryhub/internal/actorctx"
	"github.com/geocoder89/libraryhub/internal/auth"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeVerifier struct {
	verifyFn func(token string) (*auth.Claims, error)
}

func (f fakeVerifier) VerifyAccessToken(token string) (*auth.Claims, error) {
	return f.verifyFn(token)
}

func TestRequireAuth(t *testing.T) {
	verifier := fakeVerifier{verifyFn: func(token string) (*auth.Claims, error) {
		if token == "good" {
			return &auth.Claims{UserID: "u-1", Email: "a@b.c", Role: "member"}, nil
		}
		return nil, auth.ErrInvalidToken
	}}
	m := NewAuthMiddleware(verifier)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid", header: "Bearer good", wantStatus: http.StatusOK},
		{name: "missing", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong_scheme", header: "Basic abc", wantStatus: http.StatusUnauthorized},
		{name: "empty_token", header: "Bearer ", wantStatus: http.StatusUnauthorized},
		{name: "invalid_token", header: "Bearer bad", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			var ctxUser, ginUser string

			r := gin.New()
			r.GET("/me", m.RequireAuth(), func(c *gin.Context) {
				ctxUser, _ = actorctx.UserIDFrom(c.Request.Context())
				ginUser, _ = UserIDFromContext(c)
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK && (ctxUser != "u-1" || ginUser != "u-1") {
				t.Fatalf("identity not propagated: ctx=%q gin=%q", ctxUser, ginUser)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	m := NewAuthMiddleware(fakeVerifier{verifyFn: func(token string) (*auth.Claims, error) {
		return &auth.Claims{UserID: "u-1", Role: token}, nil
	}})

	r := gin.New()
	r.GET("/admin/users", m.RequireAuth(), m.RequireRole("admin"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	tests := []struct {
		role       string
		wantStatus int
	}{
		{role: "admin", wantStatus: http.StatusOK},
		{role: "member", wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
		req.Header.Set("Authorization", "Bearer "+tt.role)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		if w.Code != tt.wantStatus {
			t.Fatalf("role %s: got status %d, want %d", tt.role, w.Code, tt.wantStatus)
		}
		if tt.wantStatus == http.StatusForbidden && !strings.Contains(w.Body.String(), `"code":"forbidden"`) {
			t.Fatalf("role %s: unexpected body %s", tt.role, w.Body.String())
		}
	}

	// RequireRole without identity on the context
	r2 := gin.New()
	r2.GET("/x", m.RequireRole("admin"), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r2.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusUnauthorized)
	}
}

func TestRequireJSON(t *testing.T) {
	r := gin.New()
	r.Use(RequireJSON())
	r.POST("/books", func(c *gin.Context) { c.Status(http.StatusCreated) })

	tests := []struct {
		name        string
		body        string
		contentType string
		wantStatus  int
	}{
		{name: "json", body: `{}`, contentType: "application/json; charset=utf-8", wantStatus: http.StatusCreated},
		{name: "form", body: `a=b`, contentType: "application/x-www-form-urlencoded", wantStatus: http.StatusUnsupportedMediaType},
		{name: "missing_type", body: `{}`, wantStatus: http.StatusUnsupportedMediaType},
		{name: "no_body", wantStatus: http.StatusCreated},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/books", bytes.NewBufferString(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Fatalf("got status %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestMaxBodyBytes(t *testing.T) {
	r := gin.New()
	r.Use(MaxBodyBytes(8))
	r.POST("/books", func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/books", bytes.NewBufferString(`{"title":"too long"}`)))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusRequestEntityTooLarge)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/books", bytes.NewBufferString(`{}`)))
	if w.Code != http.StatusCreated {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusCreated)
	}
}

func TestCORSMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(CORSMiddleware([]string{"https://app.example.com/"}))
	r.GET("/books", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/books", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("allowed origin not echoed, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/books", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("foreign origin echoed: %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/books", nil)
	req.Header.Set("Origin", "https://app.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight got %d, want %d", w.Code, http.StatusNoContent)
	}
}

func TestRequestID(t *testing.T) {
	var fromCtx string

	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) {
		fromCtx = actorctx.RequestIDFrom(c.Request.Context())
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Header().Get("X-Request-Id") != "abc-123" || fromCtx != "abc-123" {
		t.Fatalf("request id not propagated: header=%q ctx=%q", w.Header().Get("X-Request-Id"), fromCtx)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected a generated request id")
	}
}

func TestRequestTimeout(t *testing.T) {
	r := gin.New()
	r.Use(RequestTimeout(50 * time.Millisecond))
	r.GET("/x", func(c *gin.Context) {
		if _, ok := c.Request.Context().Deadline(); !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected request context to carry a deadline")
	}
}

var errStore = errors.New("store down")
