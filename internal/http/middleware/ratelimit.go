package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/httprate"
	"github.com/stroyteh/kanban-service/internal/auth"
	"github.com/stroyteh/kanban-service/internal/config"
	"go.uber.org/zap"
)

// RateLimiter throttles callers per minute. Before authentication callers
// are keyed by client IP; after it, by user id, with all service-token calls
// sharing one bucket. Writes have a second, smaller quota.
type RateLimiter struct {
	cfg           *config.RateLimitConfig
	logger        *zap.Logger
	ipLimiter     func(http.Handler) http.Handler
	callerLimiter func(http.Handler) http.Handler
	writeLimiter  func(http.Handler) http.Handler
	whitelistIPs  map[string]bool
	exactPaths    map[string]bool
	prefixPaths   []string
}

// NewRateLimiter creates a new rate limiter with the given configuration
func NewRateLimiter(cfg *config.RateLimitConfig, logger *zap.Logger) *RateLimiter {
	rl := &RateLimiter{
		cfg:          cfg,
		logger:       logger,
		whitelistIPs: make(map[string]bool),
		exactPaths:   make(map[string]bool),
	}
	for _, ip := range cfg.WhitelistIPs {
		rl.whitelistIPs[ip] = true
	}
	for _, p := range cfg.WhitelistPaths {
		if prefix, ok := strings.CutSuffix(p, "/*"); ok {
			rl.prefixPaths = append(rl.prefixPaths, prefix)
			continue
		}
		rl.exactPaths[p] = true
	}

	rl.ipLimiter = rl.limiter(cfg.RequestsPerMinute, httprate.KeyByIP)
	rl.callerLimiter = rl.limiter(cfg.RequestsPerMinute, rl.callerKey)
	rl.writeLimiter = rl.limiter(cfg.WritesPerMinute, rl.callerKey)

	logger.Info("Rate limiter initialized",
		zap.Bool("enabled", cfg.Enabled),
		zap.Int("requests_per_minute", cfg.RequestsPerMinute),
		zap.Int("writes_per_minute", cfg.WritesPerMinute),
	)
	return rl
}

func (rl *RateLimiter) limiter(perMinute int, key httprate.KeyFunc) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(key),
		httprate.WithLimitHandler(rl.exceeded),
	)
}

// LimitByIP is the global limiter applied before authentication
func (rl *RateLimiter) LimitByIP(next http.Handler) http.Handler {
	return rl.wrap(next, func(h http.Handler) http.Handler { return rl.ipLimiter(h) })
}

// Limit is the per-caller limiter; it must run after authentication
func (rl *RateLimiter) Limit(next http.Handler) http.Handler {
	return rl.wrap(next, func(h http.Handler) http.Handler {
		return rl.callerLimiter(writesOnly(rl.writeLimiter, h))
	})
}

func (rl *RateLimiter) wrap(next http.Handler, chain func(http.Handler) http.Handler) http.Handler {
	if !rl.cfg.Enabled {
		return next
	}
	limited := chain(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.exempt(r) {
			next.ServeHTTP(w, r)
			return
		}
		limited.ServeHTTP(w, r)
	})
}

// writesOnly applies limit to unsafe methods and passes reads straight to next
func writesOnly(limit func(http.Handler) http.Handler, next http.Handler) http.Handler {
	limited := limit(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
		default:
			limited.ServeHTTP(w, r)
		}
	})
}

func (rl *RateLimiter) exempt(r *http.Request) bool {
	if rl.exactPaths[r.URL.Path] {
		return true
	}
	for _, prefix := range rl.prefixPaths {
		if strings.HasPrefix(r.URL.Path, prefix) {
			return true
		}
	}
	return rl.whitelistIPs[clientIP(r)]
}

func (rl *RateLimiter) callerKey(r *http.Request) (string, error) {
	if uc, ok := auth.FromContext(r.Context()); ok && uc != nil {
		if uc.IsService {
			return "service", nil
		}
		if uc.UserID != nil {
			return "user:" + strconv.FormatInt(*uc.UserID, 10), nil
		}
	}
	return "ip:" + clientIP(r), nil
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then RemoteAddr
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func (rl *RateLimiter) exceeded(w http.ResponseWriter, r *http.Request) {
	key, _ := rl.callerKey(r)
	rl.logger.Warn("rate limit exceeded",
		zap.String("path", r.URL.Path),
		zap.String("method", r.Method),
		zap.String("caller", key),
		zap.String("request_id", RequestID(r.Context())),
	)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", "60")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"detail":"Request was throttled. Expected available in 60 seconds."}`))
}
