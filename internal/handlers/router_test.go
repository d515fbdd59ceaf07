package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestRouterMountsConfiguredGroups(t *testing.T) {
	router := NewRouter(
		WithMeRoutes(func(r chi.Router) {
			r.Get("/orders", func(w http.ResponseWriter, req *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
		}),
		WithAdminRoutes(func(r chi.Router) {
			r.Get("/orders", func(w http.ResponseWriter, req *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
		}),
	)

	tests := []struct {
		name   string
		target string
		want   int
	}{
		{name: "me group", target: "/api/v1/me/orders", want: http.StatusOK},
		{name: "admin group", target: "/api/v1/admin/orders", want: http.StatusOK},
		{name: "webhooks unconfigured", target: "/api/v1/webhooks/storefront/orders", want: http.StatusNotImplemented},
		{name: "unknown route", target: "/api/v1/nowhere", want: http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.target, nil))
			if rec.Code != tc.want {
				t.Errorf("GET %s = %d, want %d", tc.target, rec.Code, tc.want)
			}
		})
	}
}

func TestRouterHealthEndpoints(t *testing.T) {
	router := NewRouter()

	for _, target := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", target, rec.Code)
		}
	}
}

func TestRouterAppliesGroupMiddlewares(t *testing.T) {
	var seen []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen = append(seen, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	router := NewRouter(
		WithWebhookRoutes(func(r chi.Router) {
			r.Post("/storefront/orders", func(w http.ResponseWriter, req *http.Request) {
				w.WriteHeader(http.StatusCreated)
			})
		}),
		WithWebhookMiddlewares(mw("hmac")),
		WithInternalRoutes(func(r chi.Router) {
			r.Post("/events/orders", func(w http.ResponseWriter, req *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			})
		}),
		WithInternalMiddlewares(mw("oidc")),
	)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/storefront/orders", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("webhook status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/internal/events/orders", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("internal status = %d", rec.Code)
	}

	if len(seen) != 2 || seen[0] != "hmac" || seen[1] != "oidc" {
		t.Errorf("middleware order = %v", seen)
	}
}
