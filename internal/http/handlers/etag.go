package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// RespondJSONWithETag tags the response with a weak validator derived from
// version and answers 304 when the client already holds it.
func RespondJSONWithETag(ctx *gin.Context, status int, version string, payload interface{}) {
	if strings.TrimSpace(version) == "" {
		ctx.JSON(status, payload)
		return
	}

	etag := weakETag(version)
	ctx.Header("ETag", etag)

	if ifNoneMatchMatches(ctx.GetHeader("If-None-Match"), etag) {
		ctx.Status(http.StatusNotModified)
		return
	}

	ctx.JSON(status, payload)
}

func weakETag(version string) string {
	return `W/"` + version + `"`
}

func ifNoneMatchMatches(headerValue, currentETag string) bool {
	if strings.TrimSpace(headerValue) == "" || strings.TrimSpace(currentETag) == "" {
		return false
	}

	if strings.TrimSpace(headerValue) == "*" {
		return true
	}

	current := normalizeETag(currentETag)

	for _, part := range strings.Split(headerValue, ",") {
		if normalizeETag(part) == current {
			return true
		}
	}

	return false
}

// weak comparison, RFC 9110 section 8.8.3.2
func normalizeETag(raw string) string {
	v := strings.TrimSpace(raw)

	if strings.HasPrefix(v, "W/") {
		v = strings.TrimSpace(strings.TrimPrefix(v, "W/"))
	}

	return v
}
