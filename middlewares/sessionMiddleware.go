package middlewares

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/medequip/equipment_backend/config"
	"github.com/medequip/equipment_backend/models"
	"github.com/medequip/equipment_backend/utils"
)

// SessionResolver looks up the session a login token belongs to.
type SessionResolver func(ctx context.Context, token string) (*models.Session, bool, error)

// SessionMiddleware resolves the "token" header into the request context.
// Requests without a token pass through anonymously; RequireSession guards
// the routes that need one.
func SessionMiddleware(resolve SessionResolver) gin.HandlerFunc {
	if resolve == nil {
		resolve = models.GetSession
	}
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		session, exists, err := resolve(c.Request.Context(), token)
		if err != nil {
			config.LogError(config.GetLogger(), "middlewares", "SessionMiddleware", "resolve session", nil, err)
		}
		if err != nil || !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUsernameInContext(ctx, session.Username)
		ctx = utils.SetUserIdInContext(ctx, session.UserId)
		ctx = utils.SetRoleInContext(ctx, string(session.Role))
		ctx = utils.SetTenantIdInContext(ctx, session.TenantId)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if username, ok := utils.GetUsernameFromContext(c.Request.Context()); !ok || username == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}
