package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	database "github.com/novadesk/novadesk-backend/internal"
	"github.com/novadesk/novadesk-backend/internal/utils"
)

type MeResponse struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// GetMe returns the current authenticated user's basic profile.
// Tenant-less endpoint: works even for users with no memberships.
func GetMe(c *gin.Context) {
	uid, ok := c.Get("userID")
	if !ok {
		denyUnauthorized(c)
		return
	}
	var row struct {
		ID        string    `db:"id"`
		FullName  string    `db:"full_name"`
		Email     string    `db:"email"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}
	err := database.DB.Get(&row, `SELECT id, full_name, email, created_at, updated_at FROM users WHERE id=$1`, uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load profile"})
		return
	}
	c.JSON(http.StatusOK, MeResponse{
		ID:        row.ID,
		FullName:  row.FullName,
		Email:     row.Email,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	})
}

type UpdatePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// UpdatePassword changes the current user's password after verifying the current one.
func UpdatePassword(c *gin.Context) {
	uid, ok := c.Get("userID")
	if !ok {
		denyUnauthorized(c)
		return
	}
	var req UpdatePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if ok, why := utils.ValidatePasswordPolicy(req.NewPassword); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": why})
		return
	}
	var storedHash string
	err := database.DB.Get(&storedHash, `SELECT hashed_password FROM users WHERE id=$1`, uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user"})
		return
	}
	if !utils.CheckPasswordHash(req.CurrentPassword, storedHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Current password is incorrect"})
		return
	}
	newHash, err := utils.HashPassword(req.NewPassword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}
	_, err = database.DB.Exec(`UPDATE users SET hashed_password=$1, updated_at=NOW() WHERE id=$2`, newHash, uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update password"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated"})
}
