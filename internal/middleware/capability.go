package middleware

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/f2freport-api/pkg/errors"
	"github.com/noah-isme/f2freport-api/pkg/response"
)

// RequireCapability rejects requests whose token does not grant capability.
func RequireCapability(capability string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFromContext(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !claims.HasCapability(capability) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "missing capability "+capability))
			c.Abort()
			return
		}
		c.Next()
	}
}
