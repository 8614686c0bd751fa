package rbac

import (
	"net/http"
	"slices"

	"crm-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireAnyRole lets the request through when the operator holds one of
// allowed. admin always passes; roles outside the known set never do.
// Must run after auth.RequireAccessToken.
func RequireAnyRole(allowed ...string) gin.HandlerFunc {
	allowed = slices.Clone(allowed)
	return func(c *gin.Context) {
		id, ok := auth.FromContext(c.Request.Context())
		if !ok || id.Role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		if IsAdmin(id.Role) {
			c.Next()
			return
		}
		if !IsKnownRole(id.Role) || !slices.Contains(allowed, id.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "role": id.Role})
			return
		}
		c.Next()
	}
}

func RequireWrite() gin.HandlerFunc { return RequireAnyRole(WriteRoles...) }

func RequireRead() gin.HandlerFunc { return RequireAnyRole(ReadRoles...) }

func RequireOversight() gin.HandlerFunc { return RequireAnyRole(OversightRoles...) }
