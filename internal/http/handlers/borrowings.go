package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/libraryhub/internal/domain/borrowing"
	"github.com/geocoder89/libraryhub/internal/http/middlewares"
	"github.com/geocoder89/libraryhub/internal/utils"
	"github.com/gin-gonic/gin"
)

type Circulation interface {
	Borrow(ctx context.Context, bookID, userID string) (borrowing.Borrowing, error)
	ReturnBook(ctx context.Context, borrowingID, userID string) (borrowing.Borrowing, error)
	GetBorrowing(ctx context.Context, borrowingID, userID string) (borrowing.Borrowing, error)
	ListUserBorrowings(ctx context.Context, userID string) ([]borrowing.Borrowing, error)
	ListAllBorrowings(ctx context.Context) ([]borrowing.Borrowing, error)
}

type BorrowingsHandler struct {
	circulation Circulation
}

func NewBorrowingsHandler(circulation Circulation) *BorrowingsHandler {
	return &BorrowingsHandler{circulation: circulation}
}

func currentUser(ctx *gin.Context) (string, bool) {
	userID, ok := middlewares.UserIDFromContext(ctx)
	if !ok {
		RespondUnAuthorized(ctx, "unauthorized", "Missing user identity")
		return "", false
	}
	return userID, true
}

func borrowingID(ctx *gin.Context) (string, bool) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondNotFound(ctx, borrowing.ErrNotFound.Code, borrowing.ErrNotFound.Message)
		return "", false
	}
	return id, true
}

// Borrow handles POST /books/:id/borrow.
func (h *BorrowingsHandler) Borrow(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	bookID, ok := bookID(ctx)
	if !ok {
		return
	}

	br, err := h.circulation.Borrow(ctx.Request.Context(), bookID, userID)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.Header("Location", "/borrowings/"+br.ID)
	ctx.JSON(http.StatusCreated, br)
}

func (h *BorrowingsHandler) Return(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := borrowingID(ctx)
	if !ok {
		return
	}

	br, err := h.circulation.ReturnBook(ctx.Request.Context(), id, userID)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, br)
}

func (h *BorrowingsHandler) Get(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := borrowingID(ctx)
	if !ok {
		return
	}

	br, err := h.circulation.GetBorrowing(ctx.Request.Context(), id, userID)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, br)
}

func (h *BorrowingsHandler) ListMine(ctx *gin.Context) {
	userID, ok := currentUser(ctx)
	if !ok {
		return
	}

	items, err := h.circulation.ListUserBorrowings(ctx.Request.Context(), userID)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}

// ListAll is the admin view across every user.
func (h *BorrowingsHandler) ListAll(ctx *gin.Context) {
	items, err := h.circulation.ListAllBorrowings(ctx.Request.Context())
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": items,
		"count": len(items),
	})
}
