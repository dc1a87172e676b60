package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	database "github.com/novadesk/novadesk-backend/internal"
	"github.com/novadesk/novadesk-backend/internal/audit"
)

// membership is one (tenant, role) binding of the caller, joined with the
// tenant's subscription status for fallback selection.
type membership struct {
	TenantID  uuid.UUID `db:"tenant_id"`
	Role      string    `db:"role"`
	SubStatus *string   `db:"sub_status"`
}

func loadMemberships(ctx context.Context, userID uuid.UUID) ([]membership, error) {
	rows := []membership{}
	err := database.DB.SelectContext(ctx, &rows, `
        SELECT m.tenant_id, m.role, s.status AS sub_status
        FROM tenant_members m
        LEFT JOIN subscriptions s ON s.tenant_id = m.tenant_id
        WHERE m.user_id = $1
        ORDER BY m.joined_at ASC`, userID)
	return rows, err
}

func findMembership(ms []membership, tenantID string) (membership, bool) {
	for _, m := range ms {
		if m.TenantID.String() == tenantID {
			return m, true
		}
	}
	return membership{}, false
}

// TenantContextMiddleware resolves the active tenant and role for the request.
// Resolution priority:
//  1. the signed session claim (trust anchor),
//  2. an X-Tenant-Id header override, honored only when a membership for the
//     header tenant exists (an accepted override writes one audit entry),
//  3. fallback to the caller's first active-or-trial membership, else first of
//     any status.
//
// Whatever path resolved a tenant, a membership for (caller, tenant) must
// exist or the request is denied: a stale or tampered claim cannot bypass the
// membership check. When nothing resolves at all the request proceeds with no
// tenant; routes that need one declare it with RequireTenant.
//
// Handlers must scope every query by the tenantID this middleware sets and
// never re-derive a tenant from raw client input.
func TenantContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		userIDStr := c.GetString("userID")
		if userIDStr == "" {
			denyUnauthorized(c)
			return
		}
		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			denyUnauthorized(c)
			return
		}

		memberships, err := loadMemberships(c.Request.Context(), userID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve tenant context"})
			return
		}

		claimTenant := c.GetString("claimTenantID")
		headerTenant := c.GetHeader("X-Tenant-Id")

		active := claimTenant
		override := false
		if headerTenant != "" && headerTenant != claimTenant {
			// Override attempt. The header is client-controlled and never
			// trusted without a membership for the requested tenant.
			if _, ok := findMembership(memberships, headerTenant); !ok {
				securityLog("tenant override rejected: user=%s header_tenant=%s claim_tenant=%s path=%s",
					userID, headerTenant, claimTenant, c.Request.URL.Path)
				publishSecurityEvent(c, "override_rejected", map[string]any{
					"user_id":       userID.String(),
					"header_tenant": headerTenant,
					"claim_tenant":  claimTenant,
					"path":          c.Request.URL.Path,
				})
				// insufficient_access, not no_access: the caller asked for a
				// specific tenant it holds no membership in. no_access is
				// reserved for a resolved tenant that turns out inaccessible
				// (stale claim, RequireTenant fence).
				denyForbidden(c, ErrInsufficientAccess)
				return
			}
			active = headerTenant
			override = true
		}

		if active == "" {
			// No claim, no header: fall back to the caller's memberships.
			for _, m := range memberships {
				if m.SubStatus != nil && (*m.SubStatus == database.SubActive || *m.SubStatus == database.SubTrial) {
					active = m.TenantID.String()
					break
				}
			}
			if active == "" && len(memberships) > 0 {
				active = memberships[0].TenantID.String()
			}
		}

		if active == "" {
			// Tenant-less request. Allowed only because some endpoints
			// (list my tenants, profile) operate without one; tenant-scoped
			// routes are fenced by RequireTenant.
			c.Next()
			return
		}

		// Mandatory existence check, regardless of which path resolved the
		// tenant. A signed claim pointing at a tenant the user no longer
		// belongs to is denied here.
		m, ok := findMembership(memberships, active)
		if !ok {
			securityLog("resolved tenant without membership: user=%s tenant=%s path=%s",
				userID, active, c.Request.URL.Path)
			publishSecurityEvent(c, "stale_claim", map[string]any{
				"user_id": userID.String(),
				"tenant":  active,
				"path":    c.Request.URL.Path,
			})
			denyForbidden(c, ErrNoAccess)
			return
		}

		if override {
			// Exactly one audit entry per accepted override. Audit is
			// best-effort: a failed write never blocks the honored override.
			from := uuid.Nil
			if claimTenant != "" {
				from, _ = uuid.Parse(claimTenant)
			}
			ip := c.ClientIP()
			ua := c.Request.UserAgent()
			audit.BestEffort("tenant override entry", func() error {
				ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
				defer cancel()
				return audit.RecordTenantOverride(ctx, userID, from, m.TenantID, m.Role, c.FullPath(), c.Request.Method, &ip, &ua)
			})
			publishSecurityEvent(c, "override_accepted", map[string]any{
				"user_id":     userID.String(),
				"from_tenant": claimTenant,
				"to_tenant":   active,
				"path":        c.Request.URL.Path,
			})
			overrideTotal.Inc()
		}

		c.Set("tenantID", active)
		c.Set("tenantRole", m.Role)
		c.Next()
	}
}

// RequireTenant fences tenant-scoped routes: the null-tenant pass-through in
// TenantContextMiddleware is only reachable on routes that omit this.
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("tenantID") == "" {
			denyForbidden(c, ErrNoAccess)
			return
		}
		c.Next()
	}
}
