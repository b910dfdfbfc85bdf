package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/genlayerlabs/glvault/pkg/constants"
)

const requestIDHeader = "X-Request-ID"

// RequestIDMiddleware assigns a request ID (reusing one the caller already
// sent, if any) and attaches it to both the response header and the request
// context, so handlers and the logger can correlate a call end to end.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		ctx := context.WithValue(c.Request.Context(), constants.ContextKeyRequestID, id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
