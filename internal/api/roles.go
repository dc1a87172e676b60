package api

import (
	"github.com/gin-gonic/gin"
)

// RequireTenantRoles enforces a route's required-role set. Must run after
// TenantContextMiddleware.
//
// The model is deliberately flat: there is no role hierarchy, owner is not
// implied when admin is required. Routes enumerate every role they accept.
// An empty set means any authenticated tenant member.
func RequireTenantRoles(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		if len(allowed) == 0 {
			c.Next()
			return
		}
		role := c.GetString("tenantRole")
		if role == "" {
			denyForbidden(c, ErrRoleRequired)
			return
		}
		if _, ok := allowed[role]; !ok {
			denyForbidden(c, ErrInsufficientPermissions)
			return
		}
		c.Next()
	}
}
