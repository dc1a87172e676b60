package api

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func limitRouter(tenantID, path, resource string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST(path,
		func(c *gin.Context) { c.Set("tenantID", tenantID) },
		PlanLimitMiddleware(resource),
		func(c *gin.Context) { c.JSON(http.StatusCreated, gin.H{"success": true}) },
	)
	return r
}

func TestPlanLimit_DeniesAtCeiling(t *testing.T) {
	mock := newMockDB(t)
	tenantID := uuid.New().String()

	mock.ExpectQuery("SELECT p.agent_limit FROM subscriptions").
		WithArgs(tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"agent_limit"}).AddRow(3))
	mock.ExpectQuery("SELECT COUNT\\(1\\) FROM agents").
		WithArgs(tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	r := limitRouter(tenantID, "/tenant/agents", ResourceAgents)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/tenant/agents", nil))

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 at ceiling, got %d body=%s", w.Code, w.Body.String())
	}
	if key := errorKey(t, w); key != ErrAgentsLimitReached {
		t.Fatalf("expected error_key %q, got %q", ErrAgentsLimitReached, key)
	}
}

func TestPlanLimit_AllowsBelowCeiling(t *testing.T) {
	mock := newMockDB(t)
	tenantID := uuid.New().String()

	mock.ExpectQuery("SELECT p.channel_limit FROM subscriptions").
		WithArgs(tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"channel_limit"}).AddRow(5))
	mock.ExpectQuery("SELECT COUNT\\(1\\) FROM channels").
		WithArgs(tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	r := limitRouter(tenantID, "/tenant/channels", ResourceChannels)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/tenant/channels", nil))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201 below ceiling, got %d body=%s", w.Code, w.Body.String())
	}
}

func TestPlanLimit_NegativeLimitMeansUnlimited(t *testing.T) {
	mock := newMockDB(t)
	tenantID := uuid.New().String()

	mock.ExpectQuery("SELECT p.agent_limit FROM subscriptions").
		WithArgs(tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"agent_limit"}).AddRow(-1))

	r := limitRouter(tenantID, "/tenant/agents", ResourceAgents)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/tenant/agents", nil))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected unlimited plan to pass without a count query, got %d", w.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sqlmock expectations: %v", err)
	}
}

func TestPlanLimit_NoSubscriptionPasses(t *testing.T) {
	mock := newMockDB(t)
	tenantID := uuid.New().String()

	mock.ExpectQuery("SELECT p.agent_limit FROM subscriptions").
		WithArgs(tenantID).
		WillReturnError(sql.ErrNoRows)

	r := limitRouter(tenantID, "/tenant/agents", ResourceAgents)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/tenant/agents", nil))

	if w.Code != http.StatusCreated {
		t.Fatalf("expected provisioning tenant to pass, got %d", w.Code)
	}
}

func TestPlanLimit_InfersResourceFromRoute(t *testing.T) {
	mock := newMockDB(t)
	tenantID := uuid.New().String()

	mock.ExpectQuery("SELECT p.channel_limit FROM subscriptions").
		WithArgs(tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"channel_limit"}).AddRow(2))
	mock.ExpectQuery("SELECT COUNT\\(1\\) FROM channels").
		WithArgs(tenantID).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	r := limitRouter(tenantID, "/tenant/channels", "")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/tenant/channels", nil))

	if w.Code != http.StatusForbidden {
		t.Fatalf("expected inferred channel limit to deny, got %d", w.Code)
	}
	if key := errorKey(t, w); key != ErrChannelsLimitReached {
		t.Fatalf("expected error_key %q, got %q", ErrChannelsLimitReached, key)
	}
}

func TestInferResourceFromRoute(t *testing.T) {
	cases := map[string]string{
		"/tenant/agents":   ResourceAgents,
		"/tenant/channels": ResourceChannels,
		"/tenant/members":  "",
	}
	for path, want := range cases {
		if got := inferResourceFromRoute(path); got != want {
			t.Fatalf("inferResourceFromRoute(%q) = %q, want %q", path, got, want)
		}
	}
}
