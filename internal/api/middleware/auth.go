package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/vedant7151/Invoice-Generator/internal/auth"
)

// ContextKeyUserID holds the key for user ID in Gin context.
const ContextKeyUserID = "userID"

// AuthMiddleware creates a Gin middleware for JWT authentication. The
// authenticated user id becomes the owner of everything the request touches.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, "Authorization header required")
			return
		}

		scheme, tokenString, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(tokenString) == "" {
			abort(c, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
			return
		}

		claims, err := auth.ValidateJWT(strings.TrimSpace(tokenString), jwtSecret)
		if err != nil {
			abort(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}

		c.Set(ContextKeyUserID, claims.UserID)
		c.Next()
	}
}

// UserID returns the authenticated user id, or "" outside AuthMiddleware.
func UserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}
