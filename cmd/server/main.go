package main

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	database "github.com/novadesk/novadesk-backend/internal"
	"github.com/novadesk/novadesk-backend/internal/api"
)

func main() {
	database.Connect()

	port := os.Getenv("PORT")
	if port == "" {
		port = os.Getenv("NOVA_PORT")
	}
	if port == "" {
		port = "8081"
	}
	log.Println("Starting NovaDesk backend server on :" + port + "...")
	router := gin.Default()

	// OpenTelemetry tracing (optional)
	if shutdown, ok := api.SetupOTelFromEnv(); ok {
		defer shutdown(context.Background())
		router.Use(otelgin.Middleware("novadesk-backend"))
	}

	// Security-event bus (in-process unless NOVA_NATS_URL is configured)
	bus := api.SetupEventBusFromEnv()
	defer bus.Close()

	// Grace-period sweeper
	api.StartBillingReconciler()

	router.Use(api.MetricsMiddleware())
	router.Use(api.RequestIDMiddleware())
	router.Use(api.VersionMiddleware("2026-09-01"))

	config := cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Tenant-Id", "X-Request-ID", "NOVA-Version"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if origins := os.Getenv("NOVA_CORS_ORIGINS"); origins != "" {
		config.AllowAllOrigins = false
		parts := strings.Split(origins, ",")
		allow := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				allow = append(allow, s)
			}
		}
		if len(allow) > 0 {
			config.AllowOrigins = allow
		}
	}
	router.Use(cors.New(config))

	if tp := os.Getenv("NOVA_TRUSTED_PROXIES"); tp != "" {
		parts := strings.Split(tp, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if err := router.SetTrustedProxies(parts); err != nil {
			log.Printf("warning: failed to set trusted proxies: %v", err)
		}
	}

	api.RegisterRoutes(router)

	if err := router.Run(":" + port); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}
