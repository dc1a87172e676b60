package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	database "github.com/novadesk/novadesk-backend/internal"
)

// Resource types subject to plan ceilings.
const (
	ResourceAgents   = "agents"
	ResourceChannels = "channels"
)

// inferResourceFromRoute guesses the limited resource from the route path.
// Only creation routes carry this middleware, so POST is assumed.
func inferResourceFromRoute(path string) string {
	switch {
	case strings.Contains(path, "/agents"):
		return ResourceAgents
	case strings.Contains(path, "/channels"):
		return ResourceChannels
	default:
		return ""
	}
}

// PlanLimitMiddleware denies resource creation once the tenant is at its plan
// ceiling for the resource type. Attach to creation routes only, after the
// subscription gate (a blocked tenant never reaches the limit check).
// Pass an empty resource to infer it from the route path.
func PlanLimitMiddleware(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetString("tenantID")
		if tenantID == "" {
			c.Next()
			return
		}
		res := resource
		if res == "" {
			path := c.FullPath()
			if path == "" {
				path = c.Request.URL.Path
			}
			res = inferResourceFromRoute(path)
		}
		if res == "" {
			c.Next()
			return
		}

		limit, ok, err := planCeiling(c, tenantID, res)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to check plan limits"})
			return
		}
		if !ok || limit < 0 {
			// No subscription/plan row yet, or an unlimited plan.
			c.Next()
			return
		}

		var count int
		countQuery := "SELECT COUNT(1) FROM agents WHERE tenant_id=$1"
		if res == ResourceChannels {
			countQuery = "SELECT COUNT(1) FROM channels WHERE tenant_id=$1"
		}
		if err := database.DB.GetContext(c.Request.Context(), &count, countQuery, tenantID); err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to check plan limits"})
			return
		}
		if count >= limit {
			key := ErrAgentsLimitReached
			if res == ResourceChannels {
				key = ErrChannelsLimitReached
			}
			denyForbidden(c, key)
			return
		}
		c.Next()
	}
}

// planCeiling returns the tenant's ceiling for the given resource, with
// ok=false when the tenant has no subscription or plan.
func planCeiling(c *gin.Context, tenantID, resource string) (int, bool, error) {
	column := "p.agent_limit"
	if resource == ResourceChannels {
		column = "p.channel_limit"
	}
	var limit int
	err := database.DB.GetContext(c.Request.Context(), &limit,
		`SELECT `+column+` FROM subscriptions s JOIN plans p ON p.id = s.plan_id WHERE s.tenant_id=$1`, tenantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return limit, true, nil
}
