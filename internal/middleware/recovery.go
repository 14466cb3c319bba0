package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/2beens/liftrecords/internal/telemetry/metrics"
	"github.com/2beens/liftrecords/pkg"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PanicRecovery turns a panicking handler into a 500 with the usual JSON
// error body. The sentry hook picks up the logged error.
func PanicRecovery(metricsManager *metrics.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}

				span := trace.SpanFromContext(r.Context())
				span.SetStatus(codes.Error, fmt.Sprintf("panic: %v", rec))

				log.WithFields(log.Fields{
					"method": r.Method,
					"path":   r.URL.Path,
				}).Errorf("panic serving request: %v\n%s", rec, debug.Stack())
				if metricsManager != nil {
					metricsManager.CounterHandleRequestPanic.Inc()
				}
				pkg.WriteJSONError(w, "internal error", "internal", http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
