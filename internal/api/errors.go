package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Denial keys returned to callers. Every one of these is recoverable by the
// caller (fix credentials, upgrade plan, ask the tenant owner) and none is a
// server fault. No internal state leaks through these responses.
const (
	ErrUnauthorized            = "unauthorized"
	ErrNoAccess                = "no_access"
	ErrInsufficientAccess      = "insufficient_access"
	ErrRoleRequired            = "role_required"
	ErrInsufficientPermissions = "insufficient_permissions"
	ErrSubscriptionBlocked     = "subscription_blocked"
	ErrGracePeriodExpired      = "grace_period_expired"
	ErrTrialExpired            = "trial_expired"
	ErrAgentsLimitReached      = "agents_limit_reached"
	ErrChannelsLimitReached    = "channels_limit_reached"
)

// deny aborts the request with a structured denial body. 401 is reserved for
// missing/invalid identity; every authorization, subscription, and limit
// denial uses 403.
func deny(c *gin.Context, status int, errorKey string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error_key": errorKey})
	denialTotal.WithLabelValues(errorKey).Inc()
}

func denyUnauthorized(c *gin.Context) {
	deny(c, http.StatusUnauthorized, ErrUnauthorized)
}

func denyForbidden(c *gin.Context, errorKey string) {
	deny(c, http.StatusForbidden, errorKey)
}

// securityLog marks denials that represent potential security violations
// (spoofed override header, stale claim) so forensic review can separate them
// from benign denials like an expired trial.
func securityLog(format string, args ...any) {
	log.Printf("security: "+format, args...)
}
