package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/libraryhub/internal/domain/user"
	"github.com/gin-gonic/gin"
)

type UserAdmin interface {
	ListUsers(ctx context.Context) ([]user.Public, error)
	CreateUser(ctx context.Context, req user.CreateRequest) (user.Public, error)
}

type UsersHandler struct {
	users UserAdmin
}

func NewUsersHandler(users UserAdmin) *UsersHandler {
	return &UsersHandler{users: users}
}

func (h *UsersHandler) List(ctx *gin.Context) {
	items, err := h.users.ListUsers(ctx.Request.Context())
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

func (h *UsersHandler) Create(ctx *gin.Context) {
	var req user.CreateRequest
	if !BindJSON(ctx, &req) {
		return
	}

	u, err := h.users.CreateUser(ctx.Request.Context(), req)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusCreated, u)
}
