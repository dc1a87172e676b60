package api

import (
	"database/sql"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	database "github.com/novadesk/novadesk-backend/internal"
	"github.com/novadesk/novadesk-backend/internal/utils"
)

// defaultTrialDays is how long a freshly provisioned tenant can run before the
// subscription gate starts denying.
const defaultTrialDays = 14

// RegisterUser creates a user, their default tenant, the owner membership,
// and a trial subscription in one transaction.
func RegisterUser(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	if ok, why := utils.ValidatePasswordPolicy(req.Password); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": why})
		return
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	tx, err := database.DB.Beginx()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start database transaction"})
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Println("Recovered in RegisterUser, rolling back transaction:", r)
			tx.Rollback()
		} else if err != nil {
			tx.Rollback()
		}
	}()

	newUser := database.User{
		ID:             uuid.New(),
		FullName:       req.FullName,
		Email:          req.Email,
		HashedPassword: hashedPassword,
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
	_, err = tx.NamedExec(`INSERT INTO users (id, full_name, email, hashed_password, created_at, updated_at)
        VALUES (:id, :full_name, :email, :hashed_password, :created_at, :updated_at)`, newUser)
	if err != nil {
		if strings.Contains(err.Error(), "unique constraint") {
			c.JSON(http.StatusConflict, gin.H{"error": "Email address already registered"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register user"})
		}
		return
	}

	tenantName := req.TenantName
	if tenantName == "" {
		tenantName = req.FullName + "'s Workspace"
	}
	newTenant := database.Tenant{
		ID:        uuid.New(),
		Name:      tenantName,
		OwnerID:   newUser.ID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	_, err = tx.NamedExec(`INSERT INTO tenants (id, name, owner_id, created_at, updated_at)
        VALUES (:id, :name, :owner_id, :created_at, :updated_at)`, newTenant)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create tenant"})
		return
	}

	newMember := database.TenantMember{
		TenantID: newTenant.ID,
		UserID:   newUser.ID,
		Role:     database.RoleOwner,
		JoinedAt: time.Now(),
	}
	_, err = tx.NamedExec(`INSERT INTO tenant_members (tenant_id, user_id, role, joined_at)
        VALUES (:tenant_id, :user_id, :role, :joined_at)`, newMember)
	if err != nil {
		log.Printf("Error linking user to tenant: %v\n", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to link user to tenant"})
		return
	}

	trialEnds := time.Now().AddDate(0, 0, defaultTrialDays)
	_, err = tx.Exec(`INSERT INTO subscriptions (id, tenant_id, status, trial_ends_at, created_at, updated_at)
        VALUES ($1, $2, $3, $4, NOW(), NOW())`, uuid.New(), newTenant.ID, database.SubTrial, trialEnds)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to provision trial subscription"})
		return
	}

	if err = tx.Commit(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to commit registration transaction"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":   "User registered successfully",
		"user_id":   newUser.ID,
		"email":     newUser.Email,
		"tenant_id": newTenant.ID,
	})
}

// LoginUser authenticates by email/password and issues a session token whose
// tenant_id claim is the user's first (default) tenant.
func LoginUser(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	var user database.User
	err := database.DB.Get(&user, `SELECT id, full_name, email, hashed_password, created_at, updated_at FROM users WHERE email=$1`, req.Email)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		}
		return
	}

	if !utils.CheckPasswordHash(req.Password, user.HashedPassword) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	// Default tenant for the session claim: oldest membership. A user with no
	// memberships still gets a session; tenant resolution happens per request.
	var defaultTenant uuid.UUID
	err = database.DB.Get(&defaultTenant, `SELECT tenant_id FROM tenant_members WHERE user_id=$1 ORDER BY joined_at ASC LIMIT 1`, user.ID)
	if err != nil && err != sql.ErrNoRows {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}

	tokenString, err := utils.GenerateJWT(user.ID, defaultTenant)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   tokenString,
		"user_id": user.ID,
	})
}
