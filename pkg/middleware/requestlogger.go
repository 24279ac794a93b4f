package middleware

import (
	"log/slog"
	"net/http"

	"github.com/ncsyvn/microservices-go/pkg/logger"
)

// RequestLogger stores a request-scoped logger enriched with the correlation
// id and trace ids in the context; handlers fetch it with logger.FromContext.
// Mount it after RequestLogging and Tracing. Routes behind the gate get a
// logger that also carries user_id and jti.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logger.NewContext(r.Context(), logger.WithContext(r.Context(), base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
