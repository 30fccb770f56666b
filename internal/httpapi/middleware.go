package httpapi

import (
	"net/http"

	"catalog-platform/internal/token"

	"github.com/gin-gonic/gin"
)

// RequireSession rejects requests while the engine holds no valid token.
// Scoped remote calls made by downstream handlers read the current token
// from the manager; an unauthenticated engine cannot serve them.
func RequireSession(m *token.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !m.IsAuthenticated() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "no active session"})
			return
		}
		c.Next()
	}
}
