package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/geocoder89/libraryhub/internal/apperr"
	"github.com/gin-gonic/gin"
)

type APIError struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"requestId,omitempty"`
	Details   interface{} `json:"details,omitempty"`
}

func requestIDFrom(ctx *gin.Context) string {
	v, ok := ctx.Get("request_id")

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader("X-Request-Id")
}

func RespondError(ctx *gin.Context, status int, code, message string, details interface{}) {
	ctx.JSON(status, gin.H{
		"error": APIError{
			Code:      code,
			Message:   message,
			RequestID: requestIDFrom(ctx),
			Details:   details,
		},
	})
}

func RespondBadRequest(ctx *gin.Context, message string, details interface{}) {
	RespondError(ctx, http.StatusBadRequest, "invalid_request", message, details)
}

func RespondNotFound(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusNotFound, code, message, nil)
}

func RespondInternal(ctx *gin.Context, message string) {
	RespondError(ctx, http.StatusInternalServerError, "internal_error", message, nil)
}

func RespondUnAuthorized(ctx *gin.Context, code, message string) {
	RespondError(ctx, http.StatusUnauthorized, code, message, nil)
}

// statusFor maps an error kind onto the HTTP status the API reports.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict, apperr.KindUnavailable:
		return http.StatusConflict
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// RespondErr writes the envelope for any error returned by a service.
// Storage and internal failures never leak their cause to the client.
func RespondErr(ctx *gin.Context, err error) {
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		logFailure(ctx, err)
		RespondInternal(ctx, "Something went wrong")
		return
	}

	status := statusFor(appErr.Kind)
	if status == http.StatusInternalServerError {
		logFailure(ctx, err)
		RespondInternal(ctx, "Something went wrong")
		return
	}

	RespondError(ctx, status, appErr.Code, appErr.Message, appErr.Details)
}

func logFailure(ctx *gin.Context, err error) {
	slog.Default().ErrorContext(ctx.Request.Context(), "request failed",
		"request_id", requestIDFrom(ctx),
		"method", ctx.Request.Method,
		"route", ctx.FullPath(),
		"err", err,
	)
}
