package middlewares

import (
	"time"

	"github.com/geocoder89/libraryhub/internal/config"
	"github.com/gin-gonic/gin"
)

// RequestTimeout bounds the request context handed to handlers and
// services.
func RequestTimeout(d time.Duration) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if d <= 0 {
			ctx.Next()
			return
		}

		cctx, cancel := config.WithTimeout(ctx.Request.Context(), d)
		defer cancel()

		ctx.Request = ctx.Request.WithContext(cctx)
		ctx.Next()
	}
}
