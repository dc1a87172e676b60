package utils

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword securely hashes a plain text password
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash compares a plain text password with a stored hash
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// ValidatePasswordPolicy enforces a basic strong password policy:
// >= 10 characters, mixed character classes, no common weak substrings.
func ValidatePasswordPolicy(pw string) (ok bool, reason string) {
	if len(pw) < 10 {
		return false, "password must be at least 10 characters"
	}
	var hasLower, hasUpper, hasDigit, hasSpecial bool
	for _, r := range pw {
		switch {
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= '0' && r <= '9':
			hasDigit = true
		default:
			hasSpecial = true
		}
	}
	if !hasLower || !hasUpper || !hasDigit || !hasSpecial {
		return false, "password must include lowercase, uppercase, digit, and special character"
	}
	for _, w := range []string{"password", "123456", "qwerty", "letmein", "admin"} {
		if strings.Contains(strings.ToLower(pw), w) {
			return false, "password is too common/guessable"
		}
	}
	return true, ""
}
