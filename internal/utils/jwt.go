package utils

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// GetJwtSecretString returns the resolved JWT secret.
// Resolution order: JWT_SECRET -> NOVA_JWT_SECRET -> dev default (unless strict).
func GetJwtSecretString() (string, error) {
	secret := strings.TrimSpace(os.Getenv("JWT_SECRET"))
	if secret == "" {
		secret = strings.TrimSpace(os.Getenv("NOVA_JWT_SECRET"))
	}
	if secret == "" {
		// Safe dev default unless NOVA_STRICT_JWT requires an env secret.
		strict := strings.EqualFold(strings.TrimSpace(os.Getenv("NOVA_STRICT_JWT")), "1") ||
			strings.EqualFold(strings.TrimSpace(os.Getenv("NOVA_STRICT_JWT")), "true")
		if !strict {
			secret = "dev_jwt_secret_123"
		}
	}
	if secret == "" {
		return "", fmt.Errorf("JWT_SECRET environment variable not set")
	}
	return secret, nil
}

// GetJwtSecretBytes returns the resolved JWT secret in []byte form.
func GetJwtSecretBytes() ([]byte, error) {
	s, err := GetJwtSecretString()
	if err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// GenerateJWT creates a session token for a user. tenantID is the tenant the
// session was opened against and becomes the trusted baseline for per-request
// tenant resolution; pass uuid.Nil for a session with no default tenant.
func GenerateJWT(userID uuid.UUID, tenantID uuid.UUID) (string, error) {
	jwtSecret, err := GetJwtSecretBytes()
	if err != nil {
		return "", err
	}

	claims := jwt.MapClaims{
		"user_id": userID.String(),
		"exp":     time.Now().Add(24 * time.Hour).Unix(),
		"iat":     time.Now().Unix(),
	}
	if tenantID != uuid.Nil {
		claims["tenant_id"] = tenantID.String()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}
