package api

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	database "github.com/novadesk/novadesk-backend/internal"
)

// CreateAgent creates an automation agent in the active tenant. The tenant
// comes from the resolved request context, never from the request body or URL.
func CreateAgent(c *gin.Context) {
	var req CreateAgentRequest
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

	newAgent := database.Agent{
		ID:              uuid.New(),
		TenantID:        tenantID,
		Name:            req.Name,
		Description:     req.Description,
		CreatedByUserID: userID,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	_, err = database.DB.NamedExec(`INSERT INTO agents (id, tenant_id, name, description, created_by_user_id, created_at, updated_at)
        VALUES (:id, :tenant_id, :name, :description, :created_by_user_id, :created_at, :updated_at)`, newAgent)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create agent"})
		return
	}

	c.JSON(http.StatusCreated, AgentResponse{
		ID:          newAgent.ID,
		TenantID:    newAgent.TenantID,
		Name:        newAgent.Name,
		Description: newAgent.Description,
		CreatedAt:   newAgent.CreatedAt,
	})
}

// GetAgents lists the active tenant's agents.
func GetAgents(c *gin.Context) {
	tenantID := c.GetString("tenantID")

	var agents []database.Agent
	err := database.DB.Select(&agents, `SELECT id, tenant_id, name, description, created_by_user_id, created_at, updated_at
        FROM agents WHERE tenant_id = $1 ORDER BY created_at DESC`, tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve agents"})
		return
	}

	resp := make([]AgentResponse, 0, len(agents))
	for _, a := range agents {
		resp = append(resp, AgentResponse{
			ID:          a.ID,
			TenantID:    a.TenantID,
			Name:        a.Name,
			Description: a.Description,
			CreatedAt:   a.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// GetAgentByID returns one agent, scoped to the active tenant.
func GetAgentByID(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	agentID, err := uuid.Parse(c.Param("agentId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid agent ID format"})
		return
	}

	var a database.Agent
	err = database.DB.Get(&a, `SELECT id, tenant_id, name, description, created_by_user_id, created_at, updated_at
        FROM agents WHERE id = $1 AND tenant_id = $2`, agentID, tenantID)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve agent"})
		}
		return
	}
	c.JSON(http.StatusOK, AgentResponse{
		ID:          a.ID,
		TenantID:    a.TenantID,
		Name:        a.Name,
		Description: a.Description,
		CreatedAt:   a.CreatedAt,
	})
}

// UpdateAgent updates an agent's mutable fields, scoped to the active tenant.
func UpdateAgent(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	agentID, err := uuid.Parse(c.Param("agentId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid agent ID format"})
		return
	}
	var req UpdateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if req.Name == nil && req.Description == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Nothing to update"})
		return
	}

	res, err := database.DB.Exec(`UPDATE agents SET
            name = COALESCE($1, name),
            description = COALESCE($2, description),
            updated_at = NOW()
        WHERE id = $3 AND tenant_id = $4`, req.Name, req.Description, agentID, tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update agent"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
		return
	}
	GetAgentByID(c)
}

// DeleteAgent removes an agent, scoped to the active tenant.
func DeleteAgent(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	agentID, err := uuid.Parse(c.Param("agentId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid agent ID format"})
		return
	}

	res, err := database.DB.Exec(`DELETE FROM agents WHERE id = $1 AND tenant_id = $2`, agentID, tenantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete agent"})
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Agent not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Agent deleted"})
}
