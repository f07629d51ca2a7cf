package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/stroyteh/kanban-service/internal/domain"
	"go.uber.org/zap"
)

// AllowedHosts rejects requests whose Host header is not in hosts with 400.
// An empty list allows every host. Entries starting with a dot match subdomains.
func AllowedHosts(hosts []string, logger *zap.Logger) func(http.Handler) http.Handler {
	allowed := make([]string, 0, len(hosts))
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			allowed = append(allowed, h)
		}
	}
	return func(next http.Handler) http.Handler {
		if len(allowed) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := strings.ToLower(r.Host)
			if h, _, err := net.SplitHostPort(host); err == nil {
				host = h
			}
			if !hostAllowed(host, allowed) {
				logger.Warn("rejected request with disallowed host",
					zap.String("host", r.Host),
					zap.String("path", r.URL.Path),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(domain.ErrorResponse{Detail: "Invalid host header."})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hostAllowed(host string, allowed []string) bool {
	for _, a := range allowed {
		switch {
		case a == "*":
			return true
		case strings.HasPrefix(a, "."):
			if host == a[1:] || strings.HasSuffix(host, a) {
				return true
			}
		case host == a:
			return true
		}
	}
	return false
}
