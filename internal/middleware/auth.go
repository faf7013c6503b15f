package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SamiTelo/API-Football/internal/models"
	"github.com/SamiTelo/API-Football/internal/security"
)

const (
	currentUserKey   = "current_user"
	accessPayloadKey = "access_payload"
)

type UserLoader interface {
	GetByID(ctx context.Context, id int64) (models.User, error)
}

// Auth accepts a bearer access token and loads its subject as the current user.
func Auth(signer *security.TokenSigner, users UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			abortUnauthorized(c)
			return
		}

		tokenStr := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		payload, err := signer.Verify(security.PurposeAccess, tokenStr)
		if err != nil {
			abortUnauthorized(c)
			return
		}

		user, err := users.GetByID(c.Request.Context(), payload.UserID)
		if err != nil {
			abortUnauthorized(c)
			return
		}

		c.Set(accessPayloadKey, payload)
		c.Set(currentUserKey, user)

		c.Next()
	}
}

func CurrentUser(c *gin.Context) (models.User, bool) {
	val, exists := c.Get(currentUserKey)
	if !exists {
		return models.User{}, false
	}
	user, ok := val.(models.User)
	return user, ok
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":   "unauthorized",
		"message": "Non autorisé",
	})
}
