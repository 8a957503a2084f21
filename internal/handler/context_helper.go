package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/event-registration-api/internal/middleware"
)

// metaWithMessage returns the request's response metadata with a user-facing message attached.
func metaWithMessage(c *gin.Context, message string) map[string]interface{} {
	meta := middleware.ExtractMeta(c)
	if meta == nil {
		meta = map[string]interface{}{}
	}
	if message != "" {
		meta["message"] = message
	}
	return meta
}
