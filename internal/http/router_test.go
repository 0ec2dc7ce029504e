package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/geocoder89/libraryhub/internal/account"
	"github.com/geocoder89/libraryhub/internal/auth"
	"github.com/geocoder89/libraryhub/internal/catalog"
	"github.com/geocoder89/libraryhub/internal/circulation"
	"github.com/geocoder89/libraryhub/internal/config"
	apphttp "github.com/geocoder89/libraryhub/internal/http"
	"github.com/geocoder89/libraryhub/internal/http/handlers"
	"github.com/geocoder89/libraryhub/internal/http/middlewares"
	"github.com/geocoder89/libraryhub/internal/observability"
	"github.com/geocoder89/libraryhub/internal/repo/memory"
	"github.com/geocoder89/libraryhub/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"
)

type testApp struct {
	t      *testing.T
	router *gin.Engine
	store  *memory.Store
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Config{
		Env:                "test",
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		MaxBodyBytes:       1 << 20,
		RequestTimeout:     2 * time.Second,
	}

	st := memory.NewStore()
	reg := prometheus.NewRegistry()
	prom := observability.NewProm(reg)

	accounts := account.NewService(st.Repos().Users, security.NewPasswordHasher(bcrypt.MinCost))
	if _, err := accounts.EnsureAdmin(context.Background(), "Admin", "admin@example.com", "admin-secret"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}

	router := apphttp.NewRouter(apphttp.Deps{
		Config:      cfg,
		Catalog:     catalog.NewService(st, catalog.WithSanitizer(security.NewTextSanitizer())),
		Circulation: circulation.NewService(st, circulation.WithMetrics(prom)),
		Accounts:    accounts,
		Tokens:      auth.NewManager("test-secret", time.Hour),
		LoginLimits: middlewares.NewMemoryLimitStore(100, time.Minute),
		Prom:        prom,
		Gatherer:    reg,
		ReadyChecks: map[string]handlers.PingFunc{"store": st.Ping},
	})

	return &testApp{t: t, router: router, store: st}
}

func (a *testApp) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			a.t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *testApp) expect(w *httptest.ResponseRecorder, status int) {
	a.t.Helper()
	if w.Code != status {
		a.t.Fatalf("got status %d, want %d, body=%s", w.Code, status, w.Body.String())
	}
}

func (a *testApp) decode(w *httptest.ResponseRecorder, out interface{}) {
	a.t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		a.t.Fatalf("decode: %v body=%s", err, w.Body.String())
	}
}

type session struct {
	User struct {
		ID   string `json:"id"`
		Role string `json:"role"`
	} `json:"user"`
	AccessToken string `json:"accessToken"`
}

func (a *testApp) register(email, username string) session {
	a.t.Helper()
	w := a.do(nethttp.MethodPost, "/auth/register", "", map[string]string{
		"email": email, "username": username, "password": "secret1",
	})
	a.expect(w, nethttp.StatusCreated)

	var s session
	a.decode(w, &s)
	return s
}

func (a *testApp) login(email, password string) session {
	a.t.Helper()
	w := a.do(nethttp.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": password})
	a.expect(w, nethttp.StatusOK)

	var s session
	a.decode(w, &s)
	return s
}

type errBody struct {
	Error struct {
		Code string `json:"code"`
	} `json:"error"`
}

func (a *testApp) expectCode(w *httptest.ResponseRecorder, status int, code string) {
	a.t.Helper()
	a.expect(w, status)

	var e errBody
	a.decode(w, &e)
	if e.Error.Code != code {
		a.t.Fatalf("got code %q, want %q", e.Error.Code, code)
	}
}

type bookBody struct {
	ID              string `json:"id"`
	Description     string `json:"description"`
	TotalCopies     int    `json:"totalCopies"`
	AvailableCopies int    `json:"availableCopies"`
}

type borrowingBody struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func TestBorrowingWorkflowOverHTTP(t *testing.T) {
	app := newTestApp(t)

	admin := app.login("admin@example.com", "admin-secret")
	if admin.User.Role != "admin" {
		t.Fatalf("seeded admin has role %q", admin.User.Role)
	}
	alice := app.register("alice@example.com", "alice")
	bob := app.register("bob@example.com", "bobby")

	// members cannot manage the catalog
	app.expect(app.do(nethttp.MethodPost, "/books", alice.AccessToken, map[string]interface{}{
		"title": "Dune", "author": "Herbert", "totalCopies": 1,
	}), nethttp.StatusForbidden)

	w := app.do(nethttp.MethodPost, "/books", admin.AccessToken, map[string]interface{}{
		"title":       "Dune",
		"author":      "Herbert",
		"description": "<script>alert(1)</script>Spice",
		"totalCopies": 1,
	})
	app.expect(w, nethttp.StatusCreated)
	var created bookBody
	app.decode(w, &created)
	if strings.Contains(created.Description, "<script>") {
		t.Fatalf("description not sanitized: %q", created.Description)
	}

	w = app.do(nethttp.MethodPost, "/books/"+created.ID+"/borrow", alice.AccessToken, nil)
	app.expect(w, nethttp.StatusCreated)
	var loan borrowingBody
	app.decode(w, &loan)
	if loan.Status != "active" {
		t.Fatalf("got status %q", loan.Status)
	}

	app.expectCode(app.do(nethttp.MethodPost, "/books/"+created.ID+"/borrow", alice.AccessToken, nil), nethttp.StatusConflict, "already_borrowed")
	app.expectCode(app.do(nethttp.MethodPost, "/books/"+created.ID+"/borrow", bob.AccessToken, nil), nethttp.StatusConflict, "no_copies_available")

	// someone else's borrowing is invisible
	app.expect(app.do(nethttp.MethodPost, "/borrowings/"+loan.ID+"/return", bob.AccessToken, nil), nethttp.StatusNotFound)

	app.expect(app.do(nethttp.MethodPost, "/borrowings/"+loan.ID+"/return", alice.AccessToken, nil), nethttp.StatusOK)
	app.expectCode(app.do(nethttp.MethodPost, "/borrowings/"+loan.ID+"/return", alice.AccessToken, nil), nethttp.StatusConflict, "already_returned")

	w = app.do(nethttp.MethodGet, "/books/"+created.ID, "", nil)
	app.expect(w, nethttp.StatusOK)
	var after bookBody
	app.decode(w, &after)
	if after.AvailableCopies != 1 {
		t.Fatalf("availableCopies = %d, want 1", after.AvailableCopies)
	}

	w = app.do(nethttp.MethodGet, "/borrowings", alice.AccessToken, nil)
	app.expect(w, nethttp.StatusOK)

	app.expect(app.do(nethttp.MethodGet, "/admin/borrowings", alice.AccessToken, nil), nethttp.StatusForbidden)
	w = app.do(nethttp.MethodGet, "/admin/borrowings", admin.AccessToken, nil)
	app.expect(w, nethttp.StatusOK)
	var all struct {
		Count int `json:"count"`
	}
	app.decode(w, &all)
	if all.Count != 1 {
		t.Fatalf("admin sees %d borrowings, want 1", all.Count)
	}

	// the book has history now
	app.expectCode(app.do(nethttp.MethodDelete, "/books/"+created.ID, admin.AccessToken, nil), nethttp.StatusConflict, "book_has_borrowings")

	if jobs := app.store.Jobs(); len(jobs) != 2 {
		t.Fatalf("expected a receipt and a return notice, got %d jobs", len(jobs))
	}
}

func TestAuthOverHTTP(t *testing.T) {
	app := newTestApp(t)

	app.register("carol@example.com", "carol")
	app.expectCode(app.do(nethttp.MethodPost, "/auth/register", "", map[string]string{
		"email": "carol@example.com", "username": "carol2", "password": "secret1",
	}), nethttp.StatusConflict, "email_taken")

	app.expectCode(app.do(nethttp.MethodPost, "/auth/register", "", map[string]string{
		"email": "no-at-sign", "username": "ab", "password": "123",
	}), nethttp.StatusBadRequest, "validation_failed")

	app.expectCode(app.do(nethttp.MethodPost, "/auth/login", "", map[string]string{
		"email": "carol@example.com", "password": "wrong!",
	}), nethttp.StatusUnauthorized, "invalid_credentials")

	s := app.login("carol@example.com", "secret1")
	app.expect(app.do(nethttp.MethodGet, "/me", s.AccessToken, nil), nethttp.StatusOK)
	app.expect(app.do(nethttp.MethodGet, "/me", "", nil), nethttp.StatusUnauthorized)
}

func TestOperationalRoutes(t *testing.T) {
	app := newTestApp(t)

	app.expect(app.do(nethttp.MethodGet, "/healthz", "", nil), nethttp.StatusOK)
	app.expect(app.do(nethttp.MethodGet, "/readyz", "", nil), nethttp.StatusOK)

	app.do(nethttp.MethodGet, "/books", "", nil)
	w := app.do(nethttp.MethodGet, "/metrics", "", nil)
	app.expect(w, nethttp.StatusOK)
	if !strings.Contains(w.Body.String(), "libraryhub_http_requests_total") {
		t.Fatalf("metrics output missing request counter")
	}

	w = app.do(nethttp.MethodGet, "/books", "", nil)
	if w.Header().Get("X-Request-Id") == "" || w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("expected request id and security headers, got %v", w.Header())
	}
}
