package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/auth"
	"github.com/panchofuegouy-jpg/imseguros-sub000/pkg/contextkeys"
)

func TestRateLimiter_Allow(t *testing.T) {
	config := &RateLimitConfig{
		RequestsPerWindow: 10,
		WindowDuration:    time.Second,
		BurstSize:         2,
	}
	limiter := NewRateLimiter(config)
	ctx := context.Background()

	allowedCount := 0
	for i := 0; i < config.RequestsPerWindow+config.BurstSize+5; i++ {
		if ok, _ := limiter.Allow(ctx, "k"); ok {
			allowedCount++
		}
	}
	assert.Equal(t, config.RequestsPerWindow+config.BurstSize, allowedCount)

	ok, _ := limiter.Allow(ctx, "other")
	assert.True(t, ok, "keys have independent buckets")

	time.Sleep(time.Second)
	ok, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok, "tokens refill over time")
}

func TestRateLimiter_Cleanup(t *testing.T) {
	limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: 10 * time.Millisecond})
	limiter.Allow(context.Background(), "k")

	time.Sleep(30 * time.Millisecond)
	limiter.Cleanup()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Empty(t, limiter.buckets)
}

func newRedisLimiter(t *testing.T, limit int) (*RedisRateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisRateLimiter(client, &RateLimitConfig{RequestsPerWindow: limit, WindowDuration: time.Minute}, ""), mr
}

func TestRedisRateLimiter_Allow(t *testing.T) {
	limiter, mr := newRedisLimiter(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "account:acc-1")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := limiter.Allow(ctx, "account:acc-1")
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, time.Minute, mr.TTL("portal:ratelimit:account:acc-1"))

	mr.FastForward(time.Minute + time.Second)
	ok, err = limiter.Allow(ctx, "account:acc-1")
	require.NoError(t, err)
	assert.True(t, ok, "window resets after expiry")

	require.NoError(t, limiter.Reset(ctx, "account:acc-1"))
	assert.False(t, mr.Exists("portal:ratelimit:account:acc-1"))
	assert.NoError(t, limiter.HealthCheck(ctx))
}

func TestRedisRateLimiter_FailsOpen(t *testing.T) {
	limiter, mr := newRedisLimiter(t, 1)
	mr.Close()

	ok, err := limiter.Allow(context.Background(), "k")
	assert.Error(t, err)
	assert.True(t, ok)
}

type rejectionCounter struct{ n int }

func (c *rejectionCounter) RecordRateLimited() { c.n++ }

type brokenLimiter struct{}

func (brokenLimiter) Allow(context.Context, string) (bool, error) {
	return true, errors.New("redis error: connection refused")
}
func (brokenLimiter) Config() *RateLimitConfig { return DefaultRateLimitConfig() }

func TestRateLimitMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	t.Run("limits per account", func(t *testing.T) {
		limiter, _ := newRedisLimiter(t, 2)
		counter := &rejectionCounter{}
		h := NewRateLimitMiddleware(limiter, counter).Handler(ok)

		call := func(account string) *httptest.ResponseRecorder {
			req := httptest.NewRequest("POST", "/api/admin/clients", nil)
			req = req.WithContext(contextkeys.WithAuth(req.Context(), &auth.AuthContext{AccountID: account}))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			return w
		}

		assert.Equal(t, http.StatusNoContent, call("a").Code)
		assert.Equal(t, http.StatusNoContent, call("a").Code)
		w := call("a")
		assert.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "60", w.Header().Get("Retry-After"))
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
		assert.JSONEq(t, `{"error":"rate limit exceeded"}`, w.Body.String())
		assert.Equal(t, 1, counter.n)

		assert.Equal(t, http.StatusNoContent, call("b").Code)
	})

	t.Run("limits anonymous callers by address", func(t *testing.T) {
		limiter := NewRateLimiter(&RateLimitConfig{RequestsPerWindow: 1, WindowDuration: time.Hour})
		h := NewRateLimitMiddleware(limiter, nil).Handler(ok)

		call := func(ip string) int {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = ip + ":1234"
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)
			return w.Code
		}
		assert.Equal(t, http.StatusNoContent, call("192.0.2.1"))
		assert.Equal(t, http.StatusTooManyRequests, call("192.0.2.1"))
		assert.Equal(t, http.StatusNoContent, call("192.0.2.2"))
	})

	t.Run("fails open", func(t *testing.T) {
		h := NewRateLimitMiddleware(brokenLimiter{}, nil).Handler(ok)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}
