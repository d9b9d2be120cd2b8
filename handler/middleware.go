package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/presale_portal/service"
)

const ctxUserID = "userID"
const ctxUserRole = "userRole"

// AuthRequired validates the bearer token and stashes the caller's
// identity on the gin context.
func AuthRequired(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := auth.VerifyAccess(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxUserRole, claims.Role)
		c.Next()
	}
}

// OptionalAuth resolves the caller when a bearer token is present but
// never rejects; the quote endpoints work for anonymous visitors too.
func OptionalAuth(auth *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token != "" && token != header {
			if claims, err := auth.VerifyAccess(token); err == nil {
				c.Set(ctxUserID, claims.UserID)
				c.Set(ctxUserRole, claims.Role)
			}
		}
		c.Next()
	}
}

func callerID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

func callerIsAdmin(c *gin.Context) bool {
	return c.GetString(ctxUserRole) == "admin"
}
