package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/swiftcart/api/internal/domain"
	"github.com/swiftcart/api/internal/services"
)

func TestHealthzAlwaysOK(t *testing.T) {
	h := NewHealthHandlers(WithHealthClock(func() time.Time { return handlerTestNow }))

	rec := httptest.NewRecorder()
	h.Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Status    string `json:"status"`
		Timestamp string `json:"timestamp"`
	}
	decodeResponse(t, rec, &resp)
	if resp.Status != "ok" {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.Timestamp != "2025-03-10T12:00:00Z" {
		t.Errorf("timestamp = %q", resp.Timestamp)
	}
}

func TestReadyzReportsChecks(t *testing.T) {
	system := &systemServiceStub{
		health: func(ctx context.Context) (services.SystemHealthReport, error) {
			return services.SystemHealthReport{
				Status:      domain.HealthStatusDegraded,
				Version:     "1.4.0",
				Environment: "prod",
				Uptime:      2 * time.Hour,
				GeneratedAt: handlerTestNow,
				Checks: map[string]domain.SystemHealthCheck{
					"firestore": {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond},
					"pubsub":    {Status: domain.HealthStatusDegraded, Detail: "publish backlog"},
				},
			}, nil
		},
	}
	h := NewHealthHandlers(WithSystemService(system))

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, degraded should still answer 200", rec.Code)
	}
	var resp struct {
		Status string `json:"status"`
		Checks map[string]struct {
			Status string `json:"status"`
			Detail string `json:"detail"`
		} `json:"checks"`
	}
	decodeResponse(t, rec, &resp)
	if resp.Status != "degraded" {
		t.Errorf("status = %q", resp.Status)
	}
	if resp.Checks["pubsub"].Detail != "publish backlog" {
		t.Errorf("checks = %+v", resp.Checks)
	}
}

func TestReadyzErrorAnswers503(t *testing.T) {
	system := &systemServiceStub{
		health: func(ctx context.Context) (services.SystemHealthReport, error) {
			return services.SystemHealthReport{Status: domain.HealthStatusError}, nil
		},
	}
	h := NewHealthHandlers(WithSystemService(system))

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestReadyzWithoutSystemServiceFallsBackToLiveness(t *testing.T) {
	h := NewHealthHandlers()

	rec := httptest.NewRecorder()
	h.Readyz(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
