package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"coinflip_escrow/internal/logger"
)

const RequestIDHeader = "X-Request-ID"

// RequestID tags each request with an id and a request-scoped logger.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(RequestIDHeader, id)

		l := logger.With("request_id", id)
		c.Request = c.Request.WithContext(logger.NewContext(c.Request.Context(), l))
		c.Next()
	}
}
