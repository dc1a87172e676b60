package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"

	"github.com/novadesk/novadesk-backend/internal/utils"
)

// AuthMiddleware validates the signed session token and attaches the caller's
// identity to the request. The tenant_id claim, when present, is stored as the
// trusted baseline for tenant resolution; it cannot be forged by the client
// because it was signed at login time.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			denyUnauthorized(c)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			denyUnauthorized(c)
			return
		}
		tokenString := parts[1]

		jwtSecret, err := utils.GetJwtSecretBytes()
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "JWT secret configuration error"})
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return jwtSecret, nil
		})
		if err != nil || !token.Valid {
			denyUnauthorized(c)
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			denyUnauthorized(c)
			return
		}
		userID, ok := claims["user_id"].(string)
		if !ok || userID == "" {
			denyUnauthorized(c)
			return
		}
		c.Set("userID", userID)
		if tid, ok := claims["tenant_id"].(string); ok && tid != "" {
			c.Set("claimTenantID", tid)
		}
		c.Next()
	}
}

// RequestIDMiddleware ensures every request has an X-Request-ID. If absent, generate one.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.New().String()
		}
		c.Set("requestID", rid)
		c.Writer.Header().Set("X-Request-ID", rid)
		c.Next()
	}
}

// VersionMiddleware reads the NOVA-Version request header; if absent, uses the
// default; always sets X-NOVA-Version in the response.
func VersionMiddleware(defaultVersion string) gin.HandlerFunc {
	if defaultVersion == "" {
		defaultVersion = "2026-09-01"
	}
	return func(c *gin.Context) {
		ver := c.GetHeader("NOVA-Version")
		if ver == "" {
			ver = defaultVersion
		}
		c.Set("novaVersion", ver)
		c.Writer.Header().Set("X-NOVA-Version", ver)
		c.Next()
	}
}

// Simple in-memory IP rate limiter (fixed window)
type clientWindow struct {
	count       int
	windowStart time.Time
}

type ipLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientWindow
	limit   int
	window  time.Duration
}

func newIPLimiter(limit int, window time.Duration) *ipLimiter {
	return &ipLimiter{
		clients: make(map[string]*clientWindow),
		limit:   limit,
		window:  window,
	}
}

func (l *ipLimiter) allow(ip string) (bool, time.Duration) {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	cw, ok := l.clients[ip]
	if !ok {
		l.clients[ip] = &clientWindow{count: 1, windowStart: now}
		return true, 0
	}
	if now.Sub(cw.windowStart) >= l.window {
		cw.count = 1
		cw.windowStart = now
		return true, 0
	}
	if cw.count < l.limit {
		cw.count++
		return true, 0
	}
	retryAfter := l.window - now.Sub(cw.windowStart)
	return false, retryAfter
}

// RateLimitMiddleware limits requests per client IP. Intended for the auth endpoints.
func RateLimitMiddleware(limitPerMinute int) gin.HandlerFunc {
	if limitPerMinute <= 0 {
		limitPerMinute = 60
	}
	limiter := newIPLimiter(limitPerMinute, time.Minute)
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if net.ParseIP(ip) == nil {
			ip = "unknown"
		}
		ok, retryAfter := limiter.allow(ip)
		if !ok {
			c.Header("Retry-After", fmt.Sprintf("%d", int(retryAfter.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Try again later."})
			return
		}
		c.Next()
	}
}

// RateLimitMiddlewareFromEnv builds a rate-limit middleware using env config.
// NOVA_AUTH_RPM (default 60). If NOVA_REDIS_ADDR is set, use Redis; else in-memory.
func RateLimitMiddlewareFromEnv() gin.HandlerFunc {
	rpm := 60
	if v := os.Getenv("NOVA_AUTH_RPM"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			rpm = n
		}
	}
	addr := os.Getenv("NOVA_REDIS_ADDR")
	if addr == "" {
		return RateLimitMiddleware(rpm)
	}
	rc := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("NOVA_REDIS_PASSWORD"),
		DB:       parseEnvInt("NOVA_REDIS_DB", 0),
	})
	// Shared across requests so a Redis outage still accumulates counts.
	fallback := RateLimitMiddleware(rpm)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		if net.ParseIP(ip) == nil {
			ip = "unknown"
		}
		now := time.Now().UTC()
		key := fmt.Sprintf("rl:%s:%04d%02d%02d%02d%02d", ip, now.Year(), int(now.Month()), now.Day(), now.Hour(), now.Minute())
		ctx, cancel := context.WithTimeout(c.Request.Context(), 200*time.Millisecond)
		defer cancel()

		n, err := rc.Incr(ctx, key).Result()
		if err != nil {
			// Redis unavailable; keep limiting in memory rather than failing auth traffic
			fallback(c)
			return
		}
		_ = rc.Expire(ctx, key, 61*time.Second).Err()
		if int(n) > rpm {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded. Try again later."})
			return
		}
		c.Next()
	}
}

// helpers
func parseEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
