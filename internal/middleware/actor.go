package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/charlesng35/cmsauthz/internal/auditctx"
)

// Actor stores the caller identity, client IP and user agent on the request
// context so services can attribute activity without a gin dependency.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := auditctx.Actor{
			UserID:    c.GetString(CtxUserIDKey),
			Role:      c.GetString(CtxRoleKey),
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}
		c.Request = c.Request.WithContext(auditctx.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}
