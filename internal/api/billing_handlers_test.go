package api

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/novadesk/novadesk-backend/internal/utils"
)

func webhookRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhooks/billing", BillingWebhook)
	return r
}

func signedWebhookRequest(t *testing.T, secret string, body []byte) *http.Request {
	t.Helper()
	ts := time.Now().Unix()
	req := httptest.NewRequest("POST", "/webhooks/billing", bytes.NewReader(body))
	req.Header.Set("X-Billing-Timestamp", fmt.Sprintf("%d", ts))
	req.Header.Set("X-Billing-Signature", utils.ComputeWebhookSignature(secret, ts, body))
	return req
}

func TestBillingWebhook_RejectsBadSignature(t *testing.T) {
	t.Setenv("NOVA_BILLING_WEBHOOK_SECRET", "whsec_test")
	newMockDB(t)

	body := []byte(`{"type":"payment.failed","tenant_id":"` + uuid.New().String() + `"}`)
	req := signedWebhookRequest(t, "wrong_secret", body)
	w := httptest.NewRecorder()
	webhookRouter().ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on signature mismatch, got %d", w.Code)
	}
}

func TestBillingWebhook_PaymentFailedStartsGrace(t *testing.T) {
	t.Setenv("NOVA_BILLING_WEBHOOK_SECRET", "whsec_test")
	mock := newMockDB(t)
	tenantID := uuid.New().String()

	mock.ExpectExec("UPDATE subscriptions SET status").
		WithArgs("past_due", defaultGraceDays, tenantID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := []byte(`{"type":"payment.failed","tenant_id":"` + tenantID + `"}`)
	req := signedWebhookRequest(t, "whsec_test", body)
	w := httptest.NewRecorder()
	webhookRouter().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestBillingWebhook_RecoveryClearsGraceAndBlock(t *testing.T) {
	t.Setenv("NOVA_BILLING_WEBHOOK_SECRET", "whsec_test")
	mock := newMockDB(t)
	tenantID := uuid.New().String()

	mock.ExpectExec("UPDATE subscriptions SET status").
		WithArgs("active", "sub_123", "", tenantID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := []byte(`{"type":"payment.recovered","tenant_id":"` + tenantID + `","provider_subscription_id":"sub_123"}`)
	req := signedWebhookRequest(t, "whsec_test", body)
	w := httptest.NewRecorder()
	webhookRouter().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestBillingWebhook_UnknownEventAcknowledged(t *testing.T) {
	t.Setenv("NOVA_BILLING_WEBHOOK_SECRET", "whsec_test")
	newMockDB(t)

	body := []byte(`{"type":"invoice.finalized","tenant_id":"` + uuid.New().String() + `"}`)
	req := signedWebhookRequest(t, "whsec_test", body)
	w := httptest.NewRecorder()
	webhookRouter().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("unknown event types must be acknowledged, got %d", w.Code)
	}
}

func TestBillingWebhook_UnconfiguredSecret(t *testing.T) {
	t.Setenv("NOVA_BILLING_WEBHOOK_SECRET", "")
	req := httptest.NewRequest("POST", "/webhooks/billing", bytes.NewReader(nil))
	w := httptest.NewRecorder()
	webhookRouter().ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when secret unset, got %d", w.Code)
	}
}
