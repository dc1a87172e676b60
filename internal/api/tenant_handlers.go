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

// GetMyTenants lists the tenants the caller belongs to. Tenant-less endpoint:
// it is how a user with no resolvable tenant discovers their memberships.
func GetMyTenants(c *gin.Context) {
	userID, ok := c.Get("userID")
	if !ok {
		denyUnauthorized(c)
		return
	}

	type row struct {
		ID   string `db:"id"`
		Name string `db:"name"`
		Role string `db:"role"`
	}
	rows := []row{}
	err := database.DB.Select(&rows, `
        SELECT t.id, t.name, m.role
        FROM tenants t
        JOIN tenant_members m ON m.tenant_id = t.id
        WHERE m.user_id = $1
        ORDER BY m.joined_at ASC`, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tenants"})
		return
	}

	resp := make([]TenantResponse, 0, len(rows))
	for _, r := range rows {
		resp = append(resp, TenantResponse{ID: r.ID, Name: r.Name, Role: r.Role})
	}
	c.JSON(http.StatusOK, resp)
}

// GetTenant returns the active tenant's basic info.
func GetTenant(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	var row struct {
		ID   string `db:"id"`
		Name string `db:"name"`
	}
	err := database.DB.Get(&row, `SELECT id, name FROM tenants WHERE id=$1`, tenantID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Tenant not found"})
		return
	}
	c.JSON(http.StatusOK, TenantResponse{ID: row.ID, Name: row.Name, Role: c.GetString("tenantRole")})
}

// UpdateTenant updates mutable tenant settings (currently only name).
func UpdateTenant(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	var req UpdateTenantRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid name"})
		return
	}
	_, err := database.DB.Exec(`UPDATE tenants SET name=$1, updated_at=NOW() WHERE id=$2`, req.Name, tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update tenant"})
		return
	}
	GetTenant(c)
}

// ListMembers returns the active tenant's members.
func ListMembers(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	rows := []MemberResponse{}
	err := database.DB.Select(&rows, `
        SELECT m.user_id AS userid, u.full_name AS fullname, u.email, m.role, m.joined_at AS joinedat
        FROM tenant_members m
        JOIN users u ON u.id = m.user_id
        WHERE m.tenant_id = $1
        ORDER BY m.joined_at ASC`, tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch members"})
		return
	}
	c.JSON(http.StatusOK, rows)
}

func validRole(r string) bool {
	switch r {
	case database.RoleOwner, database.RoleAdmin, database.RoleAgent, database.RoleViewer:
		return true
	}
	return false
}

// UpdateMemberRole changes another member's role. Owner only; ownership itself
// moves via TransferOwnership, not here.
func UpdateMemberRole(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	memberIDStr := c.Param("userId")
	memberID, err := uuid.Parse(memberIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}
	var req UpdateMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil || !validRole(req.Role) || req.Role == database.RoleOwner {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
		return
	}

	res, err := database.DB.Exec(`UPDATE tenant_members SET role=$1 WHERE tenant_id=$2 AND user_id=$3`,
		req.Role, tenantID, memberID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update member role"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
		return
	}

	recordPrivileged(c, "member_role_changed", map[string]any{
		"member_user_id": memberID.String(),
		"new_role":       req.Role,
	})
	c.JSON(http.StatusOK, gin.H{"message": "Role updated"})
}

// RemoveMember deletes a membership. The owner cannot be removed.
func RemoveMember(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	memberIDStr := c.Param("userId")
	memberID, err := uuid.Parse(memberIDStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var role string
	if err := database.DB.Get(&role, `SELECT role FROM tenant_members WHERE tenant_id=$1 AND user_id=$2`, tenantID, memberID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Member not found"})
		return
	}
	if role == database.RoleOwner {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot remove the tenant owner"})
		return
	}

	if _, err := database.DB.Exec(`DELETE FROM tenant_members WHERE tenant_id=$1 AND user_id=$2`, tenantID, memberID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove member"})
		return
	}

	recordPrivileged(c, "member_removed", map[string]any{
		"member_user_id": memberID.String(),
	})
	c.JSON(http.StatusOK, gin.H{"message": "Member removed"})
}

// TransferOwnership moves the owner role to another existing member, demoting
// the current owner to admin. Owner only.
func TransferOwnership(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	callerID := c.GetString("userID")
	var req TransferOwnershipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	tx, err := database.DB.Beginx()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start transaction"})
		return
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	var n int
	if err := tx.Get(&n, `SELECT COUNT(1) FROM tenant_members WHERE tenant_id=$1 AND user_id=$2`, tenantID, req.NewOwnerUserID); err != nil || n == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "New owner must already be a member"})
		return
	}
	if _, err := tx.Exec(`UPDATE tenant_members SET role=$1 WHERE tenant_id=$2 AND user_id=$3`, database.RoleAdmin, tenantID, callerID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to transfer ownership"})
		return
	}
	if _, err := tx.Exec(`UPDATE tenant_members SET role=$1 WHERE tenant_id=$2 AND user_id=$3`, database.RoleOwner, tenantID, req.NewOwnerUserID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to transfer ownership"})
		return
	}
	if _, err := tx.Exec(`UPDATE tenants SET owner_id=$1, updated_at=NOW() WHERE id=$2`, req.NewOwnerUserID, tenantID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to transfer ownership"})
		return
	}
	if err := tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to commit ownership transfer"})
		return
	}
	committed = true

	recordPrivileged(c, "tenant_ownership_transferred", map[string]any{
		"new_owner_user_id": req.NewOwnerUserID.String(),
	})
	c.JSON(http.StatusOK, gin.H{"message": "Ownership transferred"})
}

// recordPrivileged writes a best-effort audit entry for a privileged action
// performed by the authenticated caller against the active tenant.
func recordPrivileged(c *gin.Context, action string, metadata map[string]any) {
	userID, err := uuid.Parse(c.GetString("userID"))
	if err != nil {
		return
	}
	tenantID, err := uuid.Parse(c.GetString("tenantID"))
	if err != nil {
		return
	}
	role := c.GetString("tenantRole")
	ip := c.ClientIP()
	ua := c.Request.UserAgent()
	audit.BestEffort(action, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return audit.Record(ctx, audit.Entry{
			UserID:       userID,
			PlatformRole: &role,
			TenantID:     &tenantID,
			Action:       action,
			Metadata:     metadata,
			IPAddress:    &ip,
			UserAgent:    &ua,
		})
	})
}
