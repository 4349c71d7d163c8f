package middlewarex

import (
	"log/slog"
	"net/http"

	"groupbuy_market/pkg/contextx"
)

var logger = contextx.LoggerFromContextOrDefault //nolint:gochecknoglobals

// Logger puts a request-scoped logger into the context. Must run after
// TraceID so the trace id ends up on every log line of the request.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		l := slog.Default()
		if traceID, err := contextx.TraceIDFromContext(ctx); err == nil {
			l = l.With(slog.String("trace_id", traceID.String()))
		}

		next.ServeHTTP(w, r.WithContext(contextx.WithLogger(ctx, l)))
	})
}
