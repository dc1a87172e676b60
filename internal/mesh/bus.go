// Package mesh provides a small pub/sub bus used to fan security events out to
// operator tooling. Deliveries are fire-and-forget; the authorization decision
// never waits on a subscriber.
package mesh

import (
	"context"
	"encoding/json"
	"time"
)

const (
	// TopicTenantOverride carries accepted cross-tenant override events.
	TopicTenantOverride = "authz.override"
	// TopicAccessDenied carries security-relevant denials (spoofed header,
	// stale claim). Benign denials such as an expired trial are not published.
	TopicAccessDenied = "authz.denied"
)

type Event struct {
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"ts"`
}

type Handler func(ctx context.Context, e Event)

type Bus interface {
	Publish(ctx context.Context, e Event) error
	Subscribe(topic string, h Handler) (unsubscribe func(), err error)
	Close() error
}
