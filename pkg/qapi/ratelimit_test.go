package qapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func newTestLimiter(t *testing.T, burst int) *RateLimiter {
	rl := NewRateLimiter(RateLimiterConfig{
		Rate:            rate.Every(time.Hour),
		Burst:           burst,
		CleanupInterval: time.Hour,
		IdleTTL:         time.Minute,
	})
	t.Cleanup(rl.Stop)
	return rl
}

func TestAllowPerClient(t *testing.T) {
	rl := newTestLimiter(t, 2)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
	assert.Equal(t, 2, rl.Len())
}

func TestSweepDropsIdleClients(t *testing.T) {
	rl := newTestLimiter(t, 1)
	rl.Allow("10.0.0.1")

	rl.sweep(time.Now().Add(2 * time.Minute))
	assert.Zero(t, rl.Len())
}

func TestMiddlewareLimitsWrites(t *testing.T) {
	rl := newTestLimiter(t, 1)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(method, path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.RemoteAddr = "192.0.2.7:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/api/v1/users/login").Code)

	limited := do(http.MethodPost, "/api/v1/users/login")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))
	assert.Contains(t, limited.Body.String(), `"success":false`)

	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/v1/users/me").Code)
	assert.Equal(t, http.StatusOK, do(http.MethodPost, "/health").Code)
}
