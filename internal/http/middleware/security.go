package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/stroyteh/kanban-service/internal/config"
)

// SecurityHeaders sets the configured response headers. API responses are
// never cached. Paths under any of docsPrefixes skip the Content-Security-Policy
// so the Swagger UI can load its inline assets.
func SecurityHeaders(cfg *config.SecurityConfig, docsPrefixes ...string) func(http.Handler) http.Handler {
	headers := map[string]string{"Cache-Control": "no-store"}
	if cfg.ContentTypeNosniff {
		headers["X-Content-Type-Options"] = "nosniff"
	}
	if cfg.FrameOptions != "" {
		headers["X-Frame-Options"] = cfg.FrameOptions
	}
	if cfg.ReferrerPolicy != "" {
		headers["Referrer-Policy"] = cfg.ReferrerPolicy
	}
	if cfg.EnableHSTS {
		hsts := "max-age=" + strconv.Itoa(cfg.HSTSMaxAge)
		if cfg.HSTSIncludeSubdomains {
			hsts += "; includeSubDomains"
		}
		headers["Strict-Transport-Security"] = hsts
	}

	isDocs := func(path string) bool {
		for _, p := range docsPrefixes {
			if p != "" && strings.HasPrefix(path, p) {
				return true
			}
		}
		return false
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			for k, v := range headers {
				h.Set(k, v)
			}
			if cfg.ContentSecurityPolicy != "" && !isDocs(r.URL.Path) {
				h.Set("Content-Security-Policy", cfg.ContentSecurityPolicy)
			}
			h.Del("X-Powered-By")
			h.Del("Server")
			next.ServeHTTP(w, r)
		})
	}
}
