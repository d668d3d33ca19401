package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"workshop-booking/internal/admin"
	"workshop-booking/internal/auth"
	"workshop-booking/internal/config"
	"workshop-booking/internal/httpapi"
	"workshop-booking/internal/rbac"
	"workshop-booking/internal/registration"
	"workshop-booking/internal/seats"

	"github.com/gin-gonic/gin"
)

func testRouter(t *testing.T, health func(context.Context) error) (*gin.Engine, *auth.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	store := registration.NewStore(registration.NewMemoryRepo())
	engine := seats.NewEngine(seats.NewMemoryRepo(seats.Workshop{ID: "w1", TotalSeats: 3, AvailableSeats: 3}), store)

	r := gin.New()
	registerRoutes(r, routeDeps{
		handlers: httpapi.Handlers{Admin: admin.NewService(store, engine, nil, time.Hour), Workshops: engine},
		authMW:   auth.RequireAccessToken(m),
		seats:    engine,
		health:   health,
	})
	return r, m
}

func serve(r *gin.Engine, method, path, token string) int {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func token(t *testing.T, m *auth.Manager, role string) string {
	t.Helper()
	p, err := m.IssuePair(time.Now(), auth.Identity{UserID: "u-" + role, Role: role})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	return p.AccessToken
}

func TestHealthz(t *testing.T) {
	r, _ := testRouter(t, nil)
	if code := serve(r, http.MethodGet, "/healthz", ""); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}

	r, _ = testRouter(t, func(context.Context) error { return errors.New("db down") })
	if code := serve(r, http.MethodGet, "/healthz", ""); code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", code)
	}
}

func TestRegistrationRequiresToken(t *testing.T) {
	r, _ := testRouter(t, nil)
	if code := serve(r, http.MethodPost, "/v1/workshops/w1/registrations", ""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	r, m := testRouter(t, nil)

	if code := serve(r, http.MethodGet, "/v1/admin/workshops/w1/audit", token(t, m, rbac.RoleMember)); code != http.StatusForbidden {
		t.Fatalf("member: expected 403, got %d", code)
	}
	if code := serve(r, http.MethodGet, "/v1/admin/workshops/w1/audit", token(t, m, rbac.RoleAdmin)); code != http.StatusOK {
		t.Fatalf("admin: expected 200, got %d", code)
	}
	if code := serve(r, http.MethodPost, "/v1/admin/workshops/w1/recalculate-seats", token(t, m, rbac.RoleSuperAdmin)); code != http.StatusOK {
		t.Fatalf("super_admin: expected 200, got %d", code)
	}
}
