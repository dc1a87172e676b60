package api

import (
	"database/sql"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	database "github.com/novadesk/novadesk-backend/internal"
)

type subscriptionRow struct {
	Status            string     `db:"status"`
	TrialEndsAt       *time.Time `db:"trial_ends_at"`
	GracePeriodEndsAt *time.Time `db:"grace_period_ends_at"`
	BlockedAt         *time.Time `db:"blocked_at"`
}

// SubscriptionGateMiddleware evaluates the tenant's subscription state
// machine. Must run after TenantContextMiddleware.
//
// A tenant with no subscription row is still provisioning and passes. The
// explicit blocked_at marker is checked before the status enum because a
// tenant can be manually blocked independent of its nominal status.
func SubscriptionGateMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		tenantID := c.GetString("tenantID")
		if tenantID == "" {
			c.Next()
			return
		}

		var sub subscriptionRow
		err := database.DB.GetContext(c.Request.Context(), &sub,
			`SELECT status, trial_ends_at, grace_period_ends_at, blocked_at FROM subscriptions WHERE tenant_id=$1`, tenantID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				c.Next()
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to check subscription"})
			return
		}

		now := time.Now()

		if sub.BlockedAt != nil {
			denyForbidden(c, ErrSubscriptionBlocked)
			return
		}

		switch sub.Status {
		case database.SubBlocked, database.SubCancelled:
			denyForbidden(c, ErrSubscriptionBlocked)
			return
		case database.SubTrial:
			if sub.TrialEndsAt != nil && !now.Before(*sub.TrialEndsAt) {
				denyForbidden(c, ErrTrialExpired)
				return
			}
		case database.SubPastDue:
			if sub.GracePeriodEndsAt != nil && !now.Before(*sub.GracePeriodEndsAt) {
				denyForbidden(c, ErrGracePeriodExpired)
				return
			}
			// Inside the grace window: allowed, but visible to operators.
			log.Printf("subscription past_due within grace period: tenant=%s path=%s", tenantID, c.Request.URL.Path)
		}

		c.Next()
	}
}
