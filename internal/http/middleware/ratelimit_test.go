package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stroyteh/kanban-service/internal/auth"
	"github.com/stroyteh/kanban-service/internal/config"
	"github.com/stroyteh/kanban-service/internal/http/middleware"
	"go.uber.org/zap"
)

func createTestRateLimiter(cfg *config.RateLimitConfig) *middleware.RateLimiter {
	return middleware.NewRateLimiter(cfg, zap.NewNop())
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := createTestRateLimiter(&config.RateLimitConfig{Enabled: false, RequestsPerMinute: 5})
	handler := rl.LimitByIP(okHandler())

	for i := 0; i < 50; i++ {
		req := httptest.NewRequest(http.MethodGet, "/kanban-api/v1/boards/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	}
}

func TestRateLimiter_ThrottlesByIP(t *testing.T) {
	rl := createTestRateLimiter(&config.RateLimitConfig{Enabled: true, RequestsPerMinute: 3})
	handler := rl.LimitByIP(okHandler())

	serve := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/kanban-api/v1/cards/", nil)
		req.RemoteAddr = ip + ":4000"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w
	}

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, serve("10.0.0.1").Code)
	}
	w := serve("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"detail":"Request was throttled. Expected available in 60 seconds."}`, w.Body.String())

	assert.Equal(t, http.StatusOK, serve("10.0.0.2").Code, "other clients keep their own quota")
}

func TestRateLimiter_Whitelists(t *testing.T) {
	rl := createTestRateLimiter(&config.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: 1,
		WhitelistIPs:      []string{"127.0.0.1"},
		WhitelistPaths:    []string{"/kanban-api/health/", "/kanban-api/swagger/*"},
	})
	handler := rl.LimitByIP(okHandler())

	for i := 0; i < 10; i++ {
		for _, tc := range []struct{ ip, path string }{
			{"127.0.0.1", "/kanban-api/v1/cards/"},
			{"10.1.1.1", "/kanban-api/health/"},
			{"10.1.1.2", "/kanban-api/swagger/index.html"},
		} {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			req.RemoteAddr = tc.ip + ":1"
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code, tc.path)
		}
	}
}

func TestRateLimiter_PerCallerAndWrites(t *testing.T) {
	rl := createTestRateLimiter(&config.RateLimitConfig{Enabled: true, RequestsPerMinute: 10, WritesPerMinute: 2})
	handler := rl.Limit(okHandler())

	serve := func(method string, user int64) int {
		req := httptest.NewRequest(method, "/kanban-api/v1/cards/", nil)
		req.RemoteAddr = "10.0.0.9:1"
		uc := &auth.UserContext{UserID: &user, Username: "u"}
		req = req.WithContext(auth.WithUserContext(req.Context(), uc))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, serve(http.MethodPost, 1))
	assert.Equal(t, http.StatusOK, serve(http.MethodPatch, 1))
	assert.Equal(t, http.StatusTooManyRequests, serve(http.MethodPost, 1), "write quota exhausted")
	assert.Equal(t, http.StatusOK, serve(http.MethodGet, 1), "reads are not counted against writes")

	// Same IP, different user
	assert.Equal(t, http.StatusOK, serve(http.MethodPost, 2))
}

func TestRateLimiter_ServiceCallersShareBucket(t *testing.T) {
	rl := createTestRateLimiter(&config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2})
	handler := rl.Limit(okHandler())

	codes := make([]int, 0, 3)
	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		req := httptest.NewRequest(http.MethodGet, "/kanban-api/v1/cards/", nil)
		req.RemoteAddr = ip + ":1"
		req = req.WithContext(auth.WithUserContext(req.Context(), auth.ServiceUser()))
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}
