package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/novadesk/novadesk-backend/internal/utils"
)

func wiredRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	RegisterRoutes(r)
	return r
}

func bearerRequest(t *testing.T, method, path string, userID, tenantID uuid.UUID) *http.Request {
	t.Helper()
	token, err := utils.GenerateJWT(userID, tenantID)
	if err != nil {
		t.Fatalf("GenerateJWT failed: %v", err)
	}
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

// The role stage runs before the subscription gate: a caller whose role is
// rejected is denied with the role key even when the tenant is blocked, and
// the subscription row is never read.
func TestPipeline_RoleStageRunsBeforeSubscriptionGate(t *testing.T) {
	t.Setenv("JWT_SECRET", "pipeline_test_secret")
	mock := newMockDB(t)
	userID := uuid.New()
	tenantID := uuid.New()

	// Only the membership lookup; no subscription expectation.
	mock.ExpectQuery("FROM tenant_members m").
		WithArgs(userID).
		WillReturnRows(membershipRows([3]string{tenantID.String(), "viewer", "active"}))

	w := httptest.NewRecorder()
	wiredRouter().ServeHTTP(w, bearerRequest(t, "PUT", "/tenant", userID, tenantID))

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", w.Code, w.Body.String())
	}
	if key := errorKey(t, w); key != ErrInsufficientPermissions {
		t.Fatalf("expected error_key %q, got %q", ErrInsufficientPermissions, key)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("subscription must not be read when the role stage denies: %v", err)
	}
}

func TestPipeline_GateRunsAfterAcceptedRole(t *testing.T) {
	t.Setenv("JWT_SECRET", "pipeline_test_secret")
	mock := newMockDB(t)
	userID := uuid.New()
	tenantID := uuid.New()
	blockedAt := time.Now().Add(-time.Hour)

	mock.ExpectQuery("FROM tenant_members m").
		WithArgs(userID).
		WillReturnRows(membershipRows([3]string{tenantID.String(), "admin", "active"}))
	mock.ExpectQuery("FROM subscriptions WHERE tenant_id").
		WithArgs(tenantID.String()).
		WillReturnRows(sqlmock.
			NewRows([]string{"status", "trial_ends_at", "grace_period_ends_at", "blocked_at"}).
			AddRow("active", nil, nil, blockedAt))

	w := httptest.NewRecorder()
	wiredRouter().ServeHTTP(w, bearerRequest(t, "PUT", "/tenant", userID, tenantID))

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d body=%s", w.Code, w.Body.String())
	}
	if key := errorKey(t, w); key != ErrSubscriptionBlocked {
		t.Fatalf("expected error_key %q, got %q", ErrSubscriptionBlocked, key)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestPipeline_MissingTokenDenied(t *testing.T) {
	newMockDB(t)
	w := httptest.NewRecorder()
	wiredRouter().ServeHTTP(w, httptest.NewRequest("GET", "/tenant", nil))

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}
