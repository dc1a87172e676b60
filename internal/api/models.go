package api

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// RegisterRequest defines the expected JSON body for user registration
type RegisterRequest struct {
	FullName   string `json:"full_name" binding:"required"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	TenantName string `json:"tenant_name"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type TenantResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role,omitempty"`
}

type UpdateTenantRequest struct {
	Name string `json:"name"`
}

type MemberResponse struct {
	UserID   uuid.UUID `json:"user_id"`
	FullName string    `json:"full_name"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

type UpdateMemberRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

type TransferOwnershipRequest struct {
	NewOwnerUserID uuid.UUID `json:"new_owner_user_id" binding:"required"`
}

type CreateAgentRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

type UpdateAgentRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// AgentResponse defines the standard structure for returning agent data
type AgentResponse struct {
	ID          uuid.UUID `json:"id"`
	TenantID    uuid.UUID `json:"tenant_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type CreateChannelRequest struct {
	Name     string          `json:"name" binding:"required"`
	Provider string          `json:"provider" binding:"required"`
	Config   json.RawMessage `json:"config"`
}

type ChannelResponse struct {
	ID        uuid.UUID `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Name      string    `json:"name"`
	Provider  string    `json:"provider"`
	CreatedAt time.Time `json:"created_at"`
}

type SubscriptionResponse struct {
	Status            string     `json:"status"`
	PlanName          *string    `json:"plan_name,omitempty"`
	TrialEndsAt       *time.Time `json:"trial_ends_at,omitempty"`
	GracePeriodEndsAt *time.Time `json:"grace_period_ends_at,omitempty"`
	BlockedAt         *time.Time `json:"blocked_at,omitempty"`
}

// BillingEvent is the inbound shape posted by the billing provider webhook.
type BillingEvent struct {
	Type             string `json:"type" binding:"required"`
	TenantID         string `json:"tenant_id" binding:"required"`
	GraceDays        int    `json:"grace_days"`
	ProviderSub      string `json:"provider_subscription_id"`
	ProviderCustomer string `json:"provider_customer_id"`
}
