package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"mythweaver/api/internal/security"
)

const (
	currentUserKey = "current_user_id"
	tokenQueryKey  = "access_token"
)

// Auth verifies the bearer token and stores the caller's user id on the
// context. Browsers cannot set headers on websocket upgrades, so GET requests
// may pass the token as the access_token query parameter instead.
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr := bearerToken(c)
		if tokenStr == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
			return
		}

		claims, err := security.ParseAccessToken(tokenStr, secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid_token"})
			return
		}

		c.Set(currentUserKey, claims.UserID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	if c.Request.Method == http.MethodGet {
		return c.Query(tokenQueryKey)
	}
	return ""
}

// CurrentUserID returns the id set by Auth.
func CurrentUserID(c *gin.Context) (int64, bool) {
	id, ok := c.Get(currentUserKey)
	if !ok {
		return 0, false
	}
	userID, ok := id.(int64)
	return userID, ok && userID > 0
}
