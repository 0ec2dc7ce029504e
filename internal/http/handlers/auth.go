package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/geocoder89/libraryhub/internal/apperr"
	"github.com/geocoder89/libraryhub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type Accounts interface {
	Register(ctx context.Context, email, username, password string) (user.Public, error)
	Login(ctx context.Context, email, password string) (user.Public, error)
	GetUser(ctx context.Context, id string) (user.Public, error)
}

type TokenIssuer interface {
	GenerateAccessToken(userID, email, role string) (string, error)
	AccessTTL() time.Duration
}

type AuthHandler struct {
	accounts Accounts
	tokens   TokenIssuer
}

func NewAuthHandler(accounts Accounts, tokens TokenIssuer) *AuthHandler {
	return &AuthHandler{accounts: accounts, tokens: tokens}
}

type sessionResponse struct {
	User        user.Public `json:"user"`
	AccessToken string      `json:"accessToken"`
	TokenType   string      `json:"tokenType"`
	ExpiresIn   int64       `json:"expiresIn"`
}

func (h *AuthHandler) Register(ctx *gin.Context) {
	var req user.RegisterRequest
	if !BindJSON(ctx, &req) {
		return
	}

	u, err := h.accounts.Register(ctx.Request.Context(), req.Email, req.Username, req.Password)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	h.respondSession(ctx, http.StatusCreated, u)
}

func (h *AuthHandler) Login(ctx *gin.Context) {
	var req user.LoginRequest
	if !BindJSON(ctx, &req) {
		return
	}

	u, err := h.accounts.Login(ctx.Request.Context(), req.Email, req.Password)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	h.respondSession(ctx, http.StatusOK, u)
}

func (h *AuthHandler) respondSession(ctx *gin.Context, status int, u user.Public) {
	token, err := h.tokens.GenerateAccessToken(u.ID, u.Email, u.Role)
	if err != nil {
		RespondErr(ctx, apperr.Internal("sign access token", err))
		return
	}

	ctx.JSON(status, sessionResponse{
		User:        u,
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(h.tokens.AccessTTL() / time.Second),
	})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}

	u, err := h.accounts.GetUser(ctx.Request.Context(), userID)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, u)
}
