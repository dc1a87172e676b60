// Package audit records privileged and cross-tenant decisions in an
// append-only, hash-chained log. Writes are best-effort: a failed append is
// logged for operators and never surfaced to the request that triggered it.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"strings"

	db "github.com/novadesk/novadesk-backend/internal"
	"github.com/google/uuid"
)

// Entry is one audit record. ResourceType may be left empty, in which case it
// is inferred from the action tag.
type Entry struct {
	UserID       uuid.UUID
	PlatformRole *string
	TenantID     *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   *string
	Metadata     map[string]any
	IPAddress    *string
	UserAgent    *string
}

// InferResourceType maps an action tag onto a coarse resource category by
// substring match. Best-effort classifier only: it affects how entries are
// grouped in review tooling, never an authorization outcome.
func InferResourceType(action string) string {
	a := strings.ToLower(action)
	switch {
	case strings.Contains(a, "tenant"):
		return "tenant"
	case strings.Contains(a, "user") || strings.Contains(a, "member"):
		return "user"
	case strings.Contains(a, "subscription") || strings.Contains(a, "billing"):
		return "subscription"
	case strings.Contains(a, "plan"):
		return "plan"
	default:
		return "unknown"
	}
}

// Record appends an entry, chaining its hash to the previous entry of the same
// tenant: this_hash = SHA256(prev_hash_bytes || canonical_metadata_json).
// The caller decides whether a failure matters; the pipeline swallows it.
func Record(ctx context.Context, e Entry) error {
	if e.ResourceType == "" {
		e.ResourceType = InferResourceType(e.Action)
	}
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return err
	}

	var prev string
	if e.TenantID != nil {
		_ = db.DB.GetContext(ctx, &prev, `SELECT this_hash FROM audit_logs WHERE tenant_id=$1 ORDER BY id DESC LIMIT 1`, e.TenantID)
	}
	h := sha256.New()
	if prev != "" {
		pb, _ := hex.DecodeString(prev)
		h.Write(pb)
	}
	h.Write(meta)
	hs := hex.EncodeToString(h.Sum(nil))

	_, err = db.DB.ExecContext(ctx, `INSERT INTO audit_logs(user_id, platform_role, tenant_id, action, resource_type, resource_id, metadata, ip_address, user_agent, prev_hash, this_hash)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		e.UserID, e.PlatformRole, e.TenantID, e.Action, e.ResourceType, e.ResourceID, meta, e.IPAddress, e.UserAgent, prev, hs)
	return err
}

// RecordTenantOverride writes the single audit entry that accompanies an
// accepted tenant override, carrying both the from- and to-tenant ids plus the
// endpoint that was being accessed.
func RecordTenantOverride(ctx context.Context, userID uuid.UUID, fromTenant, toTenant uuid.UUID, role, path, method string, ip, userAgent *string) error {
	var from *string
	if fromTenant != uuid.Nil {
		s := fromTenant.String()
		from = &s
	}
	return Record(ctx, Entry{
		UserID:       userID,
		PlatformRole: &role,
		TenantID:     &toTenant,
		Action:       "tenant_override",
		ResourceType: "tenant",
		Metadata: map[string]any{
			"from_tenant": from,
			"to_tenant":   toTenant.String(),
			"path":        path,
			"method":      method,
		},
		IPAddress: ip,
		UserAgent: userAgent,
	})
}

// BestEffort runs fn and logs any error instead of returning it. Audit writes
// must never abort or delay the request they accompany.
func BestEffort(what string, fn func() error) {
	if err := fn(); err != nil {
		log.Printf("audit: %s failed (swallowed): %v", what, err)
	}
}

// Verify walks the chain for a tenant and returns the id of the first broken
// row, or 0 when the chain is intact.
func Verify(ctx context.Context, tenantID uuid.UUID, limit int) (int64, error) {
	type row struct {
		ID       int64           `db:"id"`
		Prev     string          `db:"prev_hash"`
		This     string          `db:"this_hash"`
		Metadata json.RawMessage `db:"metadata"`
	}
	if limit <= 0 || limit > 10000 {
		limit = 10000
	}
	rows := []row{}
	if err := db.DB.SelectContext(ctx, &rows, `SELECT id, prev_hash, this_hash, metadata FROM audit_logs WHERE tenant_id=$1 ORDER BY id ASC LIMIT $2`, tenantID, limit); err != nil {
		return 0, err
	}
	var last string
	for _, r := range rows {
		h := sha256.New()
		if last != "" {
			pb, _ := hex.DecodeString(last)
			h.Write(pb)
		}
		h.Write(r.Metadata)
		if hex.EncodeToString(h.Sum(nil)) != r.This {
			return r.ID, nil
		}
		last = r.This
	}
	return 0, nil
}
