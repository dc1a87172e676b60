package database

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Tenant roles. The set is closed and deliberately flat: routes enumerate every
// role they accept, nothing is implied by ordering.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleAgent  = "agent"
	RoleViewer = "viewer"
)

// Subscription statuses as written by billing webhooks.
const (
	SubTrial     = "trial"
	SubActive    = "active"
	SubPastDue   = "past_due"
	SubBlocked   = "blocked"
	SubCancelled = "cancelled"
)

// User represents the 'users' table.
type User struct {
	ID             uuid.UUID `db:"id"`
	FullName       string    `db:"full_name"`
	Email          string    `db:"email"`
	HashedPassword string    `db:"hashed_password"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Tenant represents the 'tenants' table. A tenant is an isolated customer
// account and the unit of data partitioning for every downstream query.
type Tenant struct {
	ID        uuid.UUID `db:"id"`
	Name      string    `db:"name"`
	OwnerID   uuid.UUID `db:"owner_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// TenantMember represents the 'tenant_members' table.
// At most one row exists per (tenant_id, user_id).
type TenantMember struct {
	TenantID uuid.UUID `db:"tenant_id"`
	UserID   uuid.UUID `db:"user_id"`
	Role     string    `db:"role"`
	JoinedAt time.Time `db:"joined_at"`
}

// Plan represents the 'plans' table. A negative limit means unlimited.
type Plan struct {
	ID           uuid.UUID `db:"id"`
	Name         string    `db:"name"`
	AgentLimit   int       `db:"agent_limit"`
	ChannelLimit int       `db:"channel_limit"`
	CreatedAt    time.Time `db:"created_at"`
}

// Subscription represents the 'subscriptions' table, one row per tenant at most.
// It is written by billing webhooks and the reconciliation sweeper; the request
// pipeline only reads it.
type Subscription struct {
	ID                uuid.UUID  `db:"id"`
	TenantID          uuid.UUID  `db:"tenant_id"`
	PlanID            *uuid.UUID `db:"plan_id"`
	Status            string     `db:"status"`
	TrialEndsAt       *time.Time `db:"trial_ends_at"`
	GracePeriodEndsAt *time.Time `db:"grace_period_ends_at"`
	BlockedAt         *time.Time `db:"blocked_at"`
	ProviderCustomer  *string    `db:"provider_customer_id"`
	ProviderSub       *string    `db:"provider_subscription_id"`
	CreatedAt         time.Time  `db:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at"`
}

// Agent represents the 'agents' table (automation agents owned by a tenant).
type Agent struct {
	ID              uuid.UUID `db:"id"`
	TenantID        uuid.UUID `db:"tenant_id"`
	Name            string    `db:"name"`
	Description     *string   `db:"description"`
	CreatedByUserID uuid.UUID `db:"created_by_user_id"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// Channel represents the 'channels' table (messaging channels bound to a tenant).
type Channel struct {
	ID              uuid.UUID       `db:"id"`
	TenantID        uuid.UUID       `db:"tenant_id"`
	Name            string          `db:"name"`
	Provider        string          `db:"provider"`
	Config          json.RawMessage `db:"config"`
	CreatedByUserID uuid.UUID       `db:"created_by_user_id"`
	CreatedAt       time.Time       `db:"created_at"`
}

// AuditLog represents the 'audit_logs' table. Rows are append-only and
// hash-chained per tenant so tampering is detectable after the fact.
type AuditLog struct {
	ID           int64           `db:"id"`
	UserID       uuid.UUID       `db:"user_id"`
	PlatformRole *string         `db:"platform_role"`
	TenantID     *uuid.UUID      `db:"tenant_id"`
	Action       string          `db:"action"`
	ResourceType string          `db:"resource_type"`
	ResourceID   *string         `db:"resource_id"`
	Metadata     json.RawMessage `db:"metadata"`
	IPAddress    *string         `db:"ip_address"`
	UserAgent    *string         `db:"user_agent"`
	PrevHash     string          `db:"prev_hash"`
	ThisHash     string          `db:"this_hash"`
	CreatedAt    time.Time       `db:"created_at"`
}
