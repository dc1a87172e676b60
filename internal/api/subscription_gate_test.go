package api

import (
	"database/sql"
	"database/sql/driver"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func gateRouter(tenantID string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/resource",
		func(c *gin.Context) {
			if tenantID != "" {
				c.Set("tenantID", tenantID)
			}
		},
		SubscriptionGateMiddleware(),
		func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"success": true}) },
	)
	return r
}

func timeVal(t *time.Time) driver.Value {
	if t == nil {
		return nil
	}
	return *t
}

func TestSubscriptionGate(t *testing.T) {
	tenantID := uuid.New().String()
	future := time.Now().Add(72 * time.Hour)
	past := time.Now().Add(-72 * time.Hour)

	cases := []struct {
		name       string
		status     string
		trialEnds  *time.Time
		graceEnds  *time.Time
		blockedAt  *time.Time
		noRow      bool
		wantStatus int
		wantKey    string
	}{
		{name: "no subscription row passes", noRow: true, wantStatus: http.StatusOK},
		{name: "active passes", status: "active", wantStatus: http.StatusOK},
		{name: "trial within window passes", status: "trial", trialEnds: &future, wantStatus: http.StatusOK},
		{name: "trial expired", status: "trial", trialEnds: &past, wantStatus: http.StatusForbidden, wantKey: ErrTrialExpired},
		{name: "past_due within grace passes", status: "past_due", graceEnds: &future, wantStatus: http.StatusOK},
		{name: "past_due grace elapsed", status: "past_due", graceEnds: &past, wantStatus: http.StatusForbidden, wantKey: ErrGracePeriodExpired},
		{name: "blocked status", status: "blocked", wantStatus: http.StatusForbidden, wantKey: ErrSubscriptionBlocked},
		{name: "cancelled treated as blocked", status: "cancelled", wantStatus: http.StatusForbidden, wantKey: ErrSubscriptionBlocked},
		{name: "blocked_at marker wins over active status", status: "active", blockedAt: &past, wantStatus: http.StatusForbidden, wantKey: ErrSubscriptionBlocked},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock := newMockDB(t)
			q := mock.ExpectQuery("FROM subscriptions WHERE tenant_id").WithArgs(tenantID)
			if tc.noRow {
				q.WillReturnError(sql.ErrNoRows)
			} else {
				q.WillReturnRows(sqlmock.
					NewRows([]string{"status", "trial_ends_at", "grace_period_ends_at", "blocked_at"}).
					AddRow(tc.status, timeVal(tc.trialEnds), timeVal(tc.graceEnds), timeVal(tc.blockedAt)))
			}

			r := gateRouter(tenantID)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest("GET", "/resource", nil))

			if w.Code != tc.wantStatus {
				t.Fatalf("expected %d, got %d body=%s", tc.wantStatus, w.Code, w.Body.String())
			}
			if tc.wantKey != "" {
				if key := errorKey(t, w); key != tc.wantKey {
					t.Fatalf("expected error_key %q, got %q", tc.wantKey, key)
				}
			}
		})
	}
}

func TestSubscriptionGate_SkipsWithoutTenant(t *testing.T) {
	newMockDB(t)
	r := gateRouter("")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/resource", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("tenant-less request must pass the gate untouched: got %d", w.Code)
	}
}
