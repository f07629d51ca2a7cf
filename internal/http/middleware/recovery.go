package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/stroyteh/kanban-service/internal/domain"
	"go.uber.org/zap"
)

// Recovery turns a panic into a 500 response carrying the correlation id
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil || rec == http.ErrAbortHandler {
					if rec != nil {
						panic(rec)
					}
					return
				}
				requestID := RequestID(r.Context())
				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("request_id", requestID),
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(domain.ErrorResponse{
					Detail:        "internal error",
					CorrelationID: requestID,
				})
			}()
			next.ServeHTTP(w, r)
		})
	}
}
