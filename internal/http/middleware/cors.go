package middleware

import (
	"net/http"
	"slices"
	"strings"

	"github.com/go-chi/cors"
	"github.com/stroyteh/kanban-service/internal/auth"
	"github.com/stroyteh/kanban-service/internal/config"
	"go.uber.org/zap"
)

// CORS returns the cross-origin middleware. Origins may be exact
// ("https://erp.example.org"), "*" or a subdomain wildcard
// ("https://*.example.org"). With no origins configured, development
// allows every origin and other environments allow none.
func CORS(cfg *config.CORSConfig, environment string, logger *zap.Logger) func(http.Handler) http.Handler {
	options := cors.Options{
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   withHeaders(cfg.AllowedHeaders, "Authorization", "Content-Type", auth.ServiceTokenHeader, RequestIDHeader),
		ExposedHeaders:   withHeaders(cfg.ExposedHeaders, RequestIDHeader),
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}

	devLike := environment == "development" || environment == "local" || environment == ""
	switch {
	case len(cfg.AllowedOrigins) == 0 && devLike:
		options.AllowOriginFunc = anyOrigin
		logger.Info("CORS allows all origins in development mode")
	case len(cfg.AllowedOrigins) == 0:
		// AllowOriginFunc is required here; an empty AllowedOrigins means "*" to go-chi/cors
		options.AllowOriginFunc = func(*http.Request, string) bool { return false }
		logger.Warn("CORS has no allowed origins, cross-origin requests are denied",
			zap.String("environment", environment))
	case slices.Contains(cfg.AllowedOrigins, "*"):
		if !devLike {
			logger.Warn("CORS configured with wildcard origin outside development",
				zap.String("environment", environment))
		}
		options.AllowOriginFunc = anyOrigin
	default:
		match := originMatcher(cfg.AllowedOrigins)
		options.AllowOriginFunc = func(_ *http.Request, origin string) bool { return match(origin) }
		logger.Info("CORS configured with explicit origins", zap.Strings("origins", cfg.AllowedOrigins))
	}

	return cors.Handler(options)
}

func anyOrigin(_ *http.Request, origin string) bool {
	return origin != ""
}

// originMatcher compares case-insensitively; "scheme://*.domain" matches
// any subdomain of domain but not domain itself
func originMatcher(allowed []string) func(string) bool {
	exact := make(map[string]bool)
	var wildcards [][2]string
	for _, o := range allowed {
		o = strings.ToLower(strings.TrimSuffix(o, "/"))
		if scheme, rest, ok := strings.Cut(o, "://*."); ok {
			wildcards = append(wildcards, [2]string{scheme + "://", "." + rest})
			continue
		}
		exact[o] = true
	}
	return func(origin string) bool {
		origin = strings.ToLower(origin)
		if exact[origin] {
			return true
		}
		for _, w := range wildcards {
			if strings.HasPrefix(origin, w[0]) && strings.HasSuffix(origin, w[1]) &&
				len(origin) > len(w[0])+len(w[1]) {
				return true
			}
		}
		return false
	}
}

// withHeaders appends the headers the service itself depends on
func withHeaders(configured []string, required ...string) []string {
	out := slices.Clone(configured)
	for _, h := range required {
		if !slices.ContainsFunc(out, func(c string) bool { return strings.EqualFold(c, h) }) {
			out = append(out, h)
		}
	}
	return out
}
