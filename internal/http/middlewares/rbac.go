package middlewares

import (
	"net/http"

	"github.com/eventra/eventra/internal/authz"
	"github.com/gin-gonic/gin"
)

// RequireOperation gates a route on the central capability table. Ownership
// checks (creator-or-management) stay in the handlers as a second layer.
func (m *AuthMiddleware) RequireOperation(op authz.Operation) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, ok := RoleFromContext(c)

		if !ok {
			abortUnauthenticated(c, "Missing identity context")
			return
		}

		if !authz.Allowed(role, op) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"message": "You are not allowed to perform this action",
				"errors":  gin.H{"code": "forbidden"},
			})
			return
		}
		c.Next()
	}
}
