package middleware

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/mgiraudeau/vocagym/internal/telemetry/metrics"
)

func PanicRecovery(metricsManager *metrics.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if r := recover(); r != nil {
					metricsManager.CounterHandleRequestPanic.Inc()
					log.Errorf("panic while serving request: %v", r)
					http.Error(w, "internal server error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
