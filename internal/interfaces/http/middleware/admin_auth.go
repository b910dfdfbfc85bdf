package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/genlayerlabs/glvault/internal/domain/service"
	vaulterr "github.com/genlayerlabs/glvault/pkg/errors"
)

// AdminAuthMiddleware rejects any request whose Authorization header does
// not carry the configured admin bearer token, before the handler runs.
func AdminAuthMiddleware(authenticator service.RequestAuthenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := authenticator.VerifyAdmin(c.GetHeader("Authorization")); err != nil {
			resp, status := vaulterr.ToErrorResponse(err)
			c.AbortWithStatusJSON(status, resp)
			return
		}
		c.Next()
	}
}
