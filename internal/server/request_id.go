package server

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader     = "X-Request-ID"
	requestIDContextKey = "web43_request_id"
)

// requestIDMiddleware tags every request with a UUIDv7, honoring an id the
// caller already supplied so proxied requests stay traceable end to end.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			generated, err := uuid.NewV7()
			if err == nil {
				requestID = generated.String()
			}
		}
		c.Set(requestIDContextKey, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Next()
	}
}
