package handlers

import (
	"context"
	"net/http"

	"github.com/geocoder89/libraryhub/internal/domain/book"
	"github.com/geocoder89/libraryhub/internal/utils"
	"github.com/gin-gonic/gin"
)

type Catalog interface {
	GetBook(ctx context.Context, id string) (book.Book, error)
	ListBooks(ctx context.Context, search *string) ([]book.Book, error)
	CreateBook(ctx context.Context, in book.Input) (book.Book, error)
	UpdateBook(ctx context.Context, id string, in book.Input) (book.Book, error)
	DeleteBook(ctx context.Context, id string) error
}

type BooksHandler struct {
	catalog Catalog
}

func NewBooksHandler(catalog Catalog) *BooksHandler {
	return &BooksHandler{catalog: catalog}
}

// bookID reads and checks the :id path param, answering 404 when it cannot
// name a book.
func bookID(ctx *gin.Context) (string, bool) {
	id := ctx.Param("id")
	if !utils.IsUUID(id) {
		RespondNotFound(ctx, book.ErrNotFound.Code, book.ErrNotFound.Message)
		return "", false
	}
	return id, true
}

func (h *BooksHandler) ListBooks(ctx *gin.Context) {
	var search *string
	if v, ok := ctx.GetQuery("search"); ok {
		search = &v
	}

	books, err := h.catalog.ListBooks(ctx.Request.Context(), search)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.JSON(http.StatusOK, gin.H{
		"items": books,
		"count": len(books),
	})
}

func (h *BooksHandler) GetBook(ctx *gin.Context) {
	id, ok := bookID(ctx)
	if !ok {
		return
	}

	b, err := h.catalog.GetBook(ctx.Request.Context(), id)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, b.Version(), b)
}

func (h *BooksHandler) CreateBook(ctx *gin.Context) {
	var in book.Input
	if !BindJSON(ctx, &in) {
		return
	}

	b, err := h.catalog.CreateBook(ctx.Request.Context(), in)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.Header("Location", "/books/"+b.ID)
	ctx.Header("ETag", weakETag(b.Version()))
	ctx.JSON(http.StatusCreated, b)
}

func (h *BooksHandler) UpdateBook(ctx *gin.Context) {
	id, ok := bookID(ctx)
	if !ok {
		return
	}

	var in book.Input
	if !BindJSON(ctx, &in) {
		return
	}

	b, err := h.catalog.UpdateBook(ctx.Request.Context(), id, in)
	if err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.Header("ETag", weakETag(b.Version()))
	ctx.JSON(http.StatusOK, b)
}

func (h *BooksHandler) DeleteBook(ctx *gin.Context) {
	id, ok := bookID(ctx)
	if !ok {
		return
	}

	if err := h.catalog.DeleteBook(ctx.Request.Context(), id); err != nil {
		RespondErr(ctx, err)
		return
	}

	ctx.Status(http.StatusNoContent)
}
