package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/mgiraudeau/vocagym/internal/telemetry/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func RequestMetrics(metricsManager *metrics.Manager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			metricsManager.GaugeRequests.Inc()
			defer metricsManager.GaugeRequests.Dec()

			recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(recorder, r)

			metricsManager.CounterRequests.
				WithLabelValues(r.Method, strconv.Itoa(recorder.statusCode)).
				Inc()
			metricsManager.HistRequestDuration.Observe(time.Since(start).Seconds())
		})
	}
}
