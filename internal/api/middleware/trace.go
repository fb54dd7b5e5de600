// Package middleware holds the HTTP middleware shared by all routes.
package middleware

import (
	"net/http"

	"github.com/gastroview/model-service/internal/api/shared"
	"github.com/gastroview/model-service/internal/platform/logger"
)

// TraceID assigns each request a trace ID and binds a request-scoped
// logger carrying it, so every log line of the request correlates.
func TraceID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := shared.SetTraceID(r.Context())

		log := logger.FromContext(ctx).With(
			"trace_id", shared.GetTraceID(ctx),
			"method", r.Method,
			"path", r.URL.Path)
		ctx = logger.WithLogger(ctx, log)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
