package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/auth"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/middleware"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/models"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/observability"
)

func TestServer_AdminRoutesRequireAdmin(t *testing.T) {
	env := newTestEnv(t)

	routes := []struct {
		method, path string
	}{
		{http.MethodPost, "/api/admin/fix-orphan-profiles"},
		{http.MethodGet, "/api/admin/clients"},
		{http.MethodGet, "/api/admin/policies"},
		{http.MethodGet, "/api/admin/policies/p1/documents"},
	}

	for _, rt := range routes {
		for _, token := range []string{"", "client-token", "orphan-token"} {
			w := env.do(t, rt.method, rt.path, token, nil)
			assert.Equal(t, http.StatusForbidden, w.Code, "%s %s as %q", rt.method, rt.path, token)
			assert.Equal(t, "admin role required", errorMessage(t, w))
		}
	}
	assert.Empty(t, env.reconciler.opts)
}

func TestServer_InvalidToken(t *testing.T) {
	env := newTestEnv(t)

	for _, path := range []string{"/api/admin/clients", "/api/admin/fix-orphan-profiles"} {
		w := env.do(t, http.MethodPost, path, "forged", nil)
		assert.Equal(t, http.StatusForbidden, w.Code, path)
		assert.Equal(t, "invalid or expired token", errorMessage(t, w))
	}
	assert.Empty(t, env.reconciler.opts)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/fix-orphan-profiles", nil)
	req.Header.Set("Authorization", "Basic YWRtaW46YWRtaW4=")
	w := httptest.NewRecorder()
	env.server.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = env.do(t, http.MethodGet, "/api/me", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.do(t, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "authentication required", errorMessage(t, w))
}

func TestServer_UnknownRoute(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/nope", "admin-token", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "route not found", errorMessage(t, w))
}

func TestServer_RequestID(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/admin/clients", "admin-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestServer_HealthAndMetrics(t *testing.T) {
	logger := observability.NewNopLogger()
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	health := observability.NewHealthChecker(nil, nil, "test")

	server := NewServer(Dependencies{
		Store:   newFakeStore(),
		Auth:    middleware.NewAuthMiddleware(stubVerifier{}, stubProfiles{}, nil, true),
		Metrics: metrics,
		Health:  health,
		Logger:  logger,
	})

	for _, path := range []string{"/health", "/health/live", "/health/ready", "/metrics"} {
		w := httptest.NewRecorder()
		server.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestServer_AdminRateLimit(t *testing.T) {
	store := newFakeStore()
	limiter := middleware.NewRateLimiter(&middleware.RateLimitConfig{
		RequestsPerWindow: 2,
		WindowDuration:    time.Minute,
		BurstSize:         0,
	})
	server := NewServer(Dependencies{
		Store: store,
		Auth: middleware.NewAuthMiddleware(stubVerifier{}, stubProfiles{
			"acc-admin": {ID: "acc-admin", Role: models.RoleAdmin},
		}, auth.NewAuditLogger(observability.NewNopLogger()), true),
		RateLimit: middleware.NewRateLimitMiddleware(limiter, nil),
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/admin/clients", nil)
		req.Header.Set("Authorization", "Bearer admin-token")
		w := httptest.NewRecorder()
		server.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
