package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/geocoder89/libraryhub/internal/apperr"
	"github.com/geocoder89/libraryhub/internal/domain/user"
	"github.com/geocoder89/libraryhub/internal/http/handlers"
	"github.com/geocoder89/libraryhub/internal/validation"
)

type fakeAccounts struct {
	registerFn func(ctx context.Context, email, username, password string) (user.Public, error)
	loginFn    func(ctx context.Context, email, password string) (user.Public, error)
	getFn      func(ctx context.Context, id string) (user.Public, error)
}

func (f *fakeAccounts) Register(ctx context.Context, email, username, password string) (user.Public, error) {
	if f.registerFn != nil {
		return f.registerFn(ctx, email, username, password)
	}
	return user.Public{}, nil
}

func (f *fakeAccounts) Login(ctx context.Context, email, password string) (user.Public, error) {
	if f.loginFn != nil {
		return f.loginFn(ctx, email, password)
	}
	return user.Public{}, user.ErrInvalidCredentials
}

func (f *fakeAccounts) GetUser(ctx context.Context, id string) (user.Public, error) {
	if f.getFn != nil {
		return f.getFn(ctx, id)
	}
	return user.Public{}, user.ErrNotFound
}

type fakeTokens struct {
	err error
}

func (f fakeTokens) GenerateAccessToken(userID, email, role string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "token-for-" + userID, nil
}

func (f fakeTokens) AccessTTL() time.Duration { return 15 * time.Minute }

type sessionBody struct {
	User        user.Public `json:"user"`
	AccessToken string      `json:"accessToken"`
	TokenType   string      `json:"tokenType"`
	ExpiresIn   int64       `json:"expiresIn"`
}

func TestRegisterHandler(t *testing.T) {
	id := newUUID()

	tests := []struct {
		name           string
		body           string
		setUp          func(*fakeAccounts)
		tokens         fakeTokens
		wantStatusCode int
		wantCode       string
	}{
		{
			name: "success",
			body: `{"email":"ada@example.com","username":"ada","password":"secret1"}`,
			setUp: func(f *fakeAccounts) {
				f.registerFn = func(ctx context.Context, email, username, password string) (user.Public, error) {
					return user.Public{ID: id, Name: username, Email: email, Role: user.RoleMember}, nil
				}
			},
			wantStatusCode: http.StatusCreated,
		},
		{
			name: "validation_error",
			body: `{"email":"nope","username":"ab","password":"123"}`,
			setUp: func(f *fakeAccounts) {
				f.registerFn = func(ctx context.Context, email, username, password string) (user.Public, error) {
					return user.Public{}, apperr.Invalid(validation.Registration(email, username, password))
				}
			},
			wantStatusCode: http.StatusBadRequest,
			wantCode:       "validation_failed",
		},
		{
			name: "email_taken",
			body: `{"email":"ada@example.com","username":"ada","password":"secret1"}`,
			setUp: func(f *fakeAccounts) {
				f.registerFn = func(ctx context.Context, email, username, password string) (user.Public, error) {
					return user.Public{}, user.ErrEmailTaken
				}
			},
			wantStatusCode: http.StatusConflict,
			wantCode:       user.ErrEmailTaken.Code,
		},
		{
			name: "token_signing_fails",
			body: `{"email":"ada@example.com","username":"ada","password":"secret1"}`,
			setUp: func(f *fakeAccounts) {
				f.registerFn = func(ctx context.Context, email, username, password string) (user.Public, error) {
					return user.Public{ID: id}, nil
				}
			},
			tokens:         fakeTokens{err: errors.New("boom")},
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeAccounts{}
			if tt.setUp != nil {
				tt.setUp(fake)
			}

			h := handlers.NewAuthHandler(fake, tt.tokens)
			r := setupRouter(http.MethodPost, "/auth/register", h.Register)

			req := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
			if tt.wantCode != "" {
				if got := decodeError(t, w); got.Code != tt.wantCode {
					t.Fatalf("got code %q, want %q", got.Code, tt.wantCode)
				}
			}
			if tt.wantStatusCode == http.StatusCreated {
				var body sessionBody
				if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
					t.Fatalf("decode: %v", err)
				}
				if body.User.ID != id || body.AccessToken != "token-for-"+id || body.TokenType != "Bearer" {
					t.Fatalf("unexpected session: %+v", body)
				}
				if body.ExpiresIn != int64((15 * time.Minute).Seconds()) {
					t.Fatalf("unexpected expiresIn %d", body.ExpiresIn)
				}
				if bytes.Contains(w.Body.Bytes(), []byte("password")) {
					t.Fatalf("response mentions password: %s", w.Body.String())
				}
			}
		})
	}
}

func TestLoginHandler(t *testing.T) {
	id := newUUID()

	fake := &fakeAccounts{
		loginFn: func(ctx context.Context, email, password string) (user.Public, error) {
			if email == "ada@example.com" && password == "secret1" {
				return user.Public{ID: id, Email: email, Role: user.RoleMember}, nil
			}
			return user.Public{}, user.ErrInvalidCredentials
		},
	}
	h := handlers.NewAuthHandler(fake, fakeTokens{})

	tests := []struct {
		name           string
		body           string
		wantStatusCode int
	}{
		{name: "success", body: `{"email":"ada@example.com","password":"secret1"}`, wantStatusCode: http.StatusOK},
		{name: "wrong_password", body: `{"email":"ada@example.com","password":"nope"}`, wantStatusCode: http.StatusUnauthorized},
		{name: "unknown_email", body: `{"email":"bob@example.com","password":"secret1"}`, wantStatusCode: http.StatusUnauthorized},
	}

	var unauthorizedBodies []string

	for _, tt := range tests {
		tt := tt

		t.Run(tt.name, func(t *testing.T) {
			r := setupRouter(http.MethodPost, "/auth/login", h.Login)

			req := httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			if w.Code != tt.wantStatusCode {
				t.Fatalf("got status %d, want %d, body=%s", w.Code, tt.wantStatusCode, w.Body.String())
			}
			if w.Code == http.StatusUnauthorized {
				unauthorizedBodies = append(unauthorizedBodies, w.Body.String())
			}
		})
	}

	if len(unauthorizedBodies) == 2 && unauthorizedBodies[0] != unauthorizedBodies[1] {
		t.Fatalf("unknown email and wrong password must be indistinguishable:\n%s\n%s", unauthorizedBodies[0], unauthorizedBodies[1])
	}
}

func TestMeHandler(t *testing.T) {
	id := newUUID()

	fake := &fakeAccounts{
		getFn: func(ctx context.Context, got string) (user.Public, error) {
			if got != id {
				return user.Public{}, user.ErrNotFound
			}
			return user.Public{ID: id, Email: "ada@example.com"}, nil
		},
	}
	h := handlers.NewAuthHandler(fake, fakeTokens{})

	r := setupAuthedRouter(http.MethodGet, "/me", id, h.Me)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusOK)
	}

	r = setupAuthedRouter(http.MethodGet, "/me", "", h.Me)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/me", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("got status %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
