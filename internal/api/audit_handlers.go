package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	database "github.com/novadesk/novadesk-backend/internal"
	"github.com/novadesk/novadesk-backend/internal/audit"
)

type AuditEntryResponse struct {
	ID           int64           `json:"id"`
	UserID       uuid.UUID       `json:"user_id"`
	PlatformRole *string         `json:"platform_role,omitempty"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resource_type"`
	ResourceID   *string         `json:"resource_id,omitempty"`
	Metadata     json.RawMessage `json:"metadata"`
	IPAddress    *string         `json:"ip_address,omitempty"`
	UserAgent    *string         `json:"user_agent,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// ListAuditEntries returns the active tenant's audit trail, newest first.
// Read path for operators; the pipeline itself never reads the log.
func ListAuditEntries(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}

	rows := []database.AuditLog{}
	err := database.DB.Select(&rows, `SELECT id, user_id, platform_role, tenant_id, action, resource_type, resource_id, metadata, ip_address, user_agent, prev_hash, this_hash, created_at
        FROM audit_logs WHERE tenant_id=$1 ORDER BY id DESC LIMIT $2`, tenantID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch audit entries"})
		return
	}

	resp := make([]AuditEntryResponse, 0, len(rows))
	for _, r := range rows {
		resp = append(resp, AuditEntryResponse{
			ID:           r.ID,
			UserID:       r.UserID,
			PlatformRole: r.PlatformRole,
			Action:       r.Action,
			ResourceType: r.ResourceType,
			ResourceID:   r.ResourceID,
			Metadata:     r.Metadata,
			IPAddress:    r.IPAddress,
			UserAgent:    r.UserAgent,
			CreatedAt:    r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// VerifyAuditChain walks the tenant's hash chain and reports the first broken
// row, if any.
func VerifyAuditChain(c *gin.Context) {
	tenantID, err := uuid.Parse(c.GetString("tenantID"))
	if err != nil {
		denyForbidden(c, ErrNoAccess)
		return
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	broken, err := audit.Verify(c.Request.Context(), tenantID, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify audit chain"})
		return
	}
	if broken != 0 {
		c.JSON(http.StatusOK, gin.H{"intact": false, "first_broken_id": broken})
		return
	}
	c.JSON(http.StatusOK, gin.H{"intact": true})
}
