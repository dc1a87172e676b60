package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	database "github.com/novadesk/novadesk-backend/internal"
)

// CreateChannel creates a messaging channel in the active tenant.
func CreateChannel(c *gin.Context) {
	var req CreateChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	tenantID, err := uuid.Parse(c.GetString("tenantID"))
	if err != nil {
		denyForbidden(c, ErrNoAccess)
		return
	}
	userID, err := uuid.Parse(c.GetString("userID"))
	if err != nil {
		denyUnauthorized(c)
		return
	}

	cfg := req.Config
	if len(cfg) == 0 {
		cfg = json.RawMessage(`{}`)
	}
	ch := database.Channel{
		ID:              uuid.New(),
		TenantID:        tenantID,
		Name:            req.Name,
		Provider:        req.Provider,
		Config:          cfg,
		CreatedByUserID: userID,
		CreatedAt:       time.Now(),
	}
	_, err = database.DB.NamedExec(`INSERT INTO channels (id, tenant_id, name, provider, config, created_by_user_id, created_at)
        VALUES (:id, :tenant_id, :name, :provider, :config, :created_by_user_id, :created_at)`, ch)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create channel"})
		return
	}

	c.JSON(http.StatusCreated, ChannelResponse{
		ID:        ch.ID,
		TenantID:  ch.TenantID,
		Name:      ch.Name,
		Provider:  ch.Provider,
		CreatedAt: ch.CreatedAt,
	})
}

// GetChannels lists the active tenant's channels.
func GetChannels(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	var channels []database.Channel
	err := database.DB.Select(&channels, `SELECT id, tenant_id, name, provider, config, created_by_user_id, created_at
        FROM channels WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve channels"})
		return
	}
	resp := make([]ChannelResponse, 0, len(channels))
	for _, ch := range channels {
		resp = append(resp, ChannelResponse{
			ID:        ch.ID,
			TenantID:  ch.TenantID,
			Name:      ch.Name,
			Provider:  ch.Provider,
			CreatedAt: ch.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteChannel removes a channel, scoped to the active tenant.
func DeleteChannel(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	channelID, err := uuid.Parse(c.Param("channelId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid channel ID format"})
		return
	}

	res, err := database.DB.Exec(`DELETE FROM channels WHERE id = $1 AND tenant_id = $2`, channelID, tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete channel"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Channel not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Channel deleted"})
}
