package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	database "github.com/novadesk/novadesk-backend/internal"
)

// RegisterRoutes mounts the public surface and the authenticated pipeline.
//
// Stage order on tenant-scoped routes is fixed: identity, tenant resolution,
// RequireTenant, role set, subscription gate, plan limit, handler. The role
// stage runs before the gate, so a caller whose role is rejected is denied
// with the role key and never triggers the subscription lookup. Each
// tenant-scoped route attaches its own role and gate stages in that order;
// only RequireTenant is shared at the group level.
func RegisterRoutes(router *gin.Engine) {
	authRoutes := router.Group("/auth")
	authRoutes.Use(RateLimitMiddlewareFromEnv())
	{
		authRoutes.POST("/register", RegisterUser)
		authRoutes.POST("/login", LoginUser)
	}

	// Billing provider webhook: authenticated by HMAC signature, not sessions.
	router.POST("/webhooks/billing", BillingWebhook)

	router.GET("/healthz", func(c *gin.Context) { c.Status(200) })
	router.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 300*time.Millisecond)
		defer cancel()
		if err := database.DB.DB.PingContext(ctx); err != nil {
			c.JSON(503, gin.H{"status": "not ready", "error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ready"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	protected := router.Group("/")
	protected.Use(AuthMiddleware())
	protected.Use(TenantContextMiddleware())
	{
		// Tenant-less endpoints: no RequireTenant, usable by callers whose
		// session resolves no tenant at all.
		protected.GET("/me", GetMe)
		protected.PUT("/me/password", UpdatePassword)
		protected.GET("/tenants/mine", GetMyTenants)

		// Tenant-scoped endpoints. Scoping comes only from the resolved
		// context; there is no tenant id in these URLs.
		tenant := protected.Group("/tenant")
		tenant.Use(RequireTenant())
		{
			gate := SubscriptionGateMiddleware()

			tenant.GET("", gate, GetTenant)
			tenant.PUT("", RequireTenantRoles(database.RoleAdmin, database.RoleOwner), gate, UpdateTenant)

			tenant.GET("/members", gate, ListMembers)
			tenant.PUT("/members/:userId/role", RequireTenantRoles(database.RoleOwner), gate, UpdateMemberRole)
			tenant.DELETE("/members/:userId", RequireTenantRoles(database.RoleOwner, database.RoleAdmin), gate, RemoveMember)
			tenant.POST("/transfer-ownership", RequireTenantRoles(database.RoleOwner), gate, TransferOwnership)

			tenant.GET("/subscription", gate, GetSubscription)

			tenant.GET("/audit", RequireTenantRoles(database.RoleOwner, database.RoleAdmin), gate, ListAuditEntries)
			tenant.GET("/audit/verify", RequireTenantRoles(database.RoleOwner, database.RoleAdmin), gate, VerifyAuditChain)

			agentRoutes := tenant.Group("/agents")
			{
				agentRoutes.POST("", RequireTenantRoles(database.RoleAdmin, database.RoleOwner), gate, PlanLimitMiddleware(ResourceAgents), CreateAgent)
				agentRoutes.GET("", gate, GetAgents)
				agentRoutes.GET("/:agentId", gate, GetAgentByID)
				agentRoutes.PUT("/:agentId", RequireTenantRoles(database.RoleAdmin, database.RoleOwner), gate, UpdateAgent)
				agentRoutes.DELETE("/:agentId", RequireTenantRoles(database.RoleAdmin, database.RoleOwner), gate, DeleteAgent)
			}

			channelRoutes := tenant.Group("/channels")
			{
				channelRoutes.POST("", RequireTenantRoles(database.RoleAdmin, database.RoleOwner), gate, PlanLimitMiddleware(ResourceChannels), CreateChannel)
				channelRoutes.GET("", gate, GetChannels)
				channelRoutes.DELETE("/:channelId", RequireTenantRoles(database.RoleAdmin, database.RoleOwner), gate, DeleteChannel)
			}
		}
	}
}
