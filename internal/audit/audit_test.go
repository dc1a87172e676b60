package audit

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	database "github.com/novadesk/novadesk-backend/internal"
)

func newMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("error creating sqlmock: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	database.DB = sqlx.NewDb(conn, "sqlmock")
	return mock
}

func TestInferResourceType(t *testing.T) {
	cases := map[string]string{
		"tenant_override":              "tenant",
		"tenant_ownership_transferred": "tenant",
		"member_role_changed":          "user",
		"member_removed":               "user",
		"user_password_changed":        "user",
		"subscription_updated":         "subscription",
		"billing_webhook_applied":      "subscription",
		"plan_changed":                 "plan",
		"something_else":               "unknown",
	}
	for action, want := range cases {
		if got := InferResourceType(action); got != want {
			t.Fatalf("InferResourceType(%q) = %q, want %q", action, got, want)
		}
	}
}

func chainHash(prevHex string, meta []byte) string {
	h := sha256.New()
	if prevHex != "" {
		pb, _ := hex.DecodeString(prevHex)
		h.Write(pb)
	}
	h.Write(meta)
	return hex.EncodeToString(h.Sum(nil))
}

func TestRecord_FirstEntryHashesMetadataOnly(t *testing.T) {
	mock := newMockDB(t)
	tenantID := uuid.New()
	userID := uuid.New()

	meta := map[string]any{"path": "/tenant/agents", "method": "POST"}
	metaJSON, _ := json.Marshal(meta)
	want := chainHash("", metaJSON)

	mock.ExpectQuery("SELECT this_hash FROM audit_logs").
		WithArgs(&tenantID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(userID, nil, &tenantID, "tenant_override", "tenant", nil,
			metaJSON, nil, nil, "", want).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := Record(context.Background(), Entry{
		UserID:   userID,
		TenantID: &tenantID,
		Action:   "tenant_override",
		Metadata: meta,
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestRecord_ChainsToPreviousHash(t *testing.T) {
	mock := newMockDB(t)
	tenantID := uuid.New()
	userID := uuid.New()

	prevMeta, _ := json.Marshal(map[string]any{"n": 1})
	prev := chainHash("", prevMeta)

	meta := map[string]any{"n": 2}
	metaJSON, _ := json.Marshal(meta)
	want := chainHash(prev, metaJSON)

	mock.ExpectQuery("SELECT this_hash FROM audit_logs").
		WithArgs(&tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"this_hash"}).AddRow(prev))
	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(userID, nil, &tenantID, "member_removed", "user", nil,
			metaJSON, nil, nil, prev, want).
		WillReturnResult(sqlmock.NewResult(2, 1))

	err := Record(context.Background(), Entry{
		UserID:   userID,
		TenantID: &tenantID,
		Action:   "member_removed",
		Metadata: meta,
	})
	if err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestVerify_IntactChain(t *testing.T) {
	mock := newMockDB(t)
	tenantID := uuid.New()

	m1, _ := json.Marshal(map[string]any{"n": 1})
	m2, _ := json.Marshal(map[string]any{"n": 2})
	h1 := chainHash("", m1)
	h2 := chainHash(h1, m2)

	mock.ExpectQuery("SELECT id, prev_hash, this_hash, metadata FROM audit_logs").
		WithArgs(tenantID, 10000).
		WillReturnRows(sqlmock.NewRows([]string{"id", "prev_hash", "this_hash", "metadata"}).
			AddRow(1, "", h1, m1).
			AddRow(2, h1, h2, m2))

	broken, err := Verify(context.Background(), tenantID, 0)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if broken != 0 {
		t.Fatalf("intact chain reported broken at id %d", broken)
	}
}

func TestVerify_DetectsTamperedMetadata(t *testing.T) {
	mock := newMockDB(t)
	tenantID := uuid.New()

	m1, _ := json.Marshal(map[string]any{"n": 1})
	m2, _ := json.Marshal(map[string]any{"n": 2})
	h1 := chainHash("", m1)
	h2 := chainHash(h1, m2)
	tampered, _ := json.Marshal(map[string]any{"n": 99})

	mock.ExpectQuery("SELECT id, prev_hash, this_hash, metadata FROM audit_logs").
		WithArgs(tenantID, 10000).
		WillReturnRows(sqlmock.NewRows([]string{"id", "prev_hash", "this_hash", "metadata"}).
			AddRow(1, "", h1, m1).
			AddRow(2, h1, h2, tampered))

	broken, err := Verify(context.Background(), tenantID, 0)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if broken != 2 {
		t.Fatalf("expected tamper detection at id 2, got %d", broken)
	}
}

func TestBestEffortSwallowsError(t *testing.T) {
	called := false
	BestEffort("test write", func() error {
		called = true
		return sql.ErrConnDone
	})
	if !called {
		t.Fatal("BestEffort did not run fn")
	}
}
