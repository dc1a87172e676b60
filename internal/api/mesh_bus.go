package api

import (
	"context"
	"encoding/json"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/novadesk/novadesk-backend/internal/mesh"
)

var eventBus mesh.Bus

// SetupEventBusFromEnv wires the security-event bus: NATS when
// NOVA_NATS_URL is set (build with -tags nats), else an in-process bus.
func SetupEventBusFromEnv() mesh.Bus {
	if url := os.Getenv("NOVA_NATS_URL"); url != "" {
		if b, err := mesh.NewNatsBus(url); err == nil {
			eventBus = b
			return b
		}
	}
	b := mesh.NewLocalBus()
	eventBus = b
	return b
}

// publishSecurityEvent fans a security-relevant decision out on the bus.
// Fire-and-forget: publish failures never affect the request.
func publishSecurityEvent(c *gin.Context, kind string, payload map[string]any) {
	if eventBus == nil {
		return
	}
	payload["kind"] = kind
	payload["request_id"] = c.GetString("requestID")
	b, err := json.Marshal(payload)
	if err != nil {
		return
	}
	topic := mesh.TopicAccessDenied
	if kind == "override_accepted" {
		topic = mesh.TopicTenantOverride
	}
	_ = eventBus.Publish(context.Background(), mesh.Event{Topic: topic, Payload: b})
}
