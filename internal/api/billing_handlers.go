package api

import (
	"database/sql"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	database "github.com/novadesk/novadesk-backend/internal"
	"github.com/novadesk/novadesk-backend/internal/utils"
	"github.com/robfig/cron/v3"
)

// GetSubscription returns the active tenant's subscription state.
func GetSubscription(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	var row struct {
		Status            string     `db:"status"`
		PlanName          *string    `db:"plan_name"`
		TrialEndsAt       *time.Time `db:"trial_ends_at"`
		GracePeriodEndsAt *time.Time `db:"grace_period_ends_at"`
		BlockedAt         *time.Time `db:"blocked_at"`
	}
	err := database.DB.Get(&row, `
        SELECT s.status, p.name AS plan_name, s.trial_ends_at, s.grace_period_ends_at, s.blocked_at
        FROM subscriptions s
        LEFT JOIN plans p ON p.id = s.plan_id
        WHERE s.tenant_id = $1`, tenantID)
	if err != nil {
		if err == sql.ErrNoRows {
			// Still provisioning; the gate allows this tenant through.
			c.JSON(http.StatusOK, SubscriptionResponse{Status: "provisioning"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch subscription"})
		return
	}
	c.JSON(http.StatusOK, SubscriptionResponse{
		Status:            row.Status,
		PlanName:          row.PlanName,
		TrialEndsAt:       row.TrialEndsAt,
		GracePeriodEndsAt: row.GracePeriodEndsAt,
		BlockedAt:         row.BlockedAt,
	})
}

// defaultGraceDays bounds how long a past_due tenant keeps access when the
// provider event does not say.
const defaultGraceDays = 7

// BillingWebhook applies billing-provider events to a tenant's subscription
// state machine. Authenticated by Stripe-style HMAC over "{ts}.{body}" using
// NOVA_BILLING_WEBHOOK_SECRET; this endpoint sits outside the session pipeline.
func BillingWebhook(c *gin.Context) {
	secret := os.Getenv("NOVA_BILLING_WEBHOOK_SECRET")
	if secret == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Billing webhook not configured"})
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable body"})
		return
	}
	ts, err := strconv.ParseInt(c.GetHeader("X-Billing-Timestamp"), 10, 64)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid timestamp"})
		return
	}
	if !utils.VerifyWebhookSignature(secret, ts, body, c.GetHeader("X-Billing-Signature")) {
		securityLog("billing webhook signature mismatch from %s", c.ClientIP())
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	var ev BillingEvent
	if err := json.Unmarshal(body, &ev); err != nil || ev.Type == "" || ev.TenantID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid event body"})
		return
	}

	if err := applyBillingEvent(ev); err != nil {
		log.Printf("billing webhook: apply %s for tenant=%s failed: %v", ev.Type, ev.TenantID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to apply billing event"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func applyBillingEvent(ev BillingEvent) error {
	var err error
	switch ev.Type {
	case "subscription.activated", "payment.recovered", "account.unblocked":
		_, err = database.DB.Exec(`UPDATE subscriptions SET status=$1, grace_period_ends_at=NULL, blocked_at=NULL,
            provider_subscription_id=COALESCE(NULLIF($2,''), provider_subscription_id),
            provider_customer_id=COALESCE(NULLIF($3,''), provider_customer_id),
            updated_at=NOW() WHERE tenant_id=$4`,
			database.SubActive, ev.ProviderSub, ev.ProviderCustomer, ev.TenantID)
	case "payment.failed":
		days := ev.GraceDays
		if days <= 0 {
			days = defaultGraceDays
		}
		_, err = database.DB.Exec(`UPDATE subscriptions SET status=$1, grace_period_ends_at=NOW() + ($2 * INTERVAL '1 day'),
            updated_at=NOW() WHERE tenant_id=$3`,
			database.SubPastDue, days, ev.TenantID)
	case "subscription.cancelled":
		_, err = database.DB.Exec(`UPDATE subscriptions SET status=$1, updated_at=NOW() WHERE tenant_id=$2`,
			database.SubCancelled, ev.TenantID)
	case "account.blocked":
		_, err = database.DB.Exec(`UPDATE subscriptions SET status=$1, blocked_at=NOW(), updated_at=NOW() WHERE tenant_id=$2`,
			database.SubBlocked, ev.TenantID)
	default:
		log.Printf("billing webhook: ignoring unknown event type %q", ev.Type)
	}
	return err
}

var reconcilerOnce sync.Once

// StartBillingReconciler runs a periodic sweep that hard-blocks tenants whose
// grace period elapsed without payment recovery. The gate would already deny
// them with grace_period_expired; the sweep makes the stored state match and
// stamps blocked_at for billing reconciliation.
func StartBillingReconciler() {
	reconcilerOnce.Do(func() {
		spec := os.Getenv("NOVA_BILLING_RECONCILE_CRON")
		if spec == "" {
			spec = "*/10 * * * *"
		}
		sched := cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)))
		_, err := sched.AddFunc(spec, func() {
			res, err := database.DB.Exec(`UPDATE subscriptions SET status=$1, blocked_at=NOW(), updated_at=NOW()
                WHERE status=$2 AND grace_period_ends_at IS NOT NULL AND grace_period_ends_at < NOW() AND blocked_at IS NULL`,
				database.SubBlocked, database.SubPastDue)
			if err != nil {
				log.Printf("billing reconciler: sweep failed: %v", err)
				return
			}
			if n, _ := res.RowsAffected(); n > 0 {
				log.Printf("billing reconciler: blocked %d tenants past grace", n)
			}
		})
		if err != nil {
			log.Printf("billing reconciler: bad cron spec %q: %v", spec, err)
			return
		}
		sched.Start()
	})
}
