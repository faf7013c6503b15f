package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SamiTelo/API-Football/internal/models"
)

// RequireRoles lets the request through when the current user has one of roles.
func RequireRoles(roles ...models.RoleName) gin.HandlerFunc {
	roleSet := make(map[models.RoleName]struct{}, len(roles))
	for _, role := range roles {
		roleSet[role] = struct{}{}
	}

	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abortUnauthorized(c)
			return
		}

		if _, ok := roleSet[user.RoleName()]; !ok {
			abortForbidden(c)
			return
		}

		c.Next()
	}
}

// RequirePermissions lets the request through when the user's role grants every permission.
func RequirePermissions(permissions ...models.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			abortUnauthorized(c)
			return
		}

		for _, p := range permissions {
			if !user.Role.HasPermission(p) {
				abortForbidden(c)
				return
			}
		}

		c.Next()
	}
}

func abortForbidden(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"error":   "forbidden",
		"message": "Accès refusé",
	})
}
