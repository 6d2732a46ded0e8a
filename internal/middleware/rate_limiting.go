package middleware

import (
	"net/http"

	"github.com/go-redis/redis_rate/v9"
	log "github.com/sirupsen/logrus"

	"github.com/mgiraudeau/vocagym/internal/telemetry/metrics"
	"github.com/mgiraudeau/vocagym/pkg"
)

// LoginRateLimit limits login attempts per client IP, to slow down
// credential stuffing. Other paths pass through untouched.
func LoginRateLimit(
	rateLimiter *redis_rate.Limiter,
	metricsManager *metrics.Manager,
	allowedPerMin int,
) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/auth/login" || r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}

			userIP, _ := pkg.ReadUserIP(r)
			res, err := rateLimiter.Allow(
				r.Context(),
				"login::"+userIP,
				redis_rate.PerMinute(allowedPerMin),
			)
			if err != nil {
				// rate limiter down is not a reason to lock everyone out
				log.Errorf("login rate limit, allow check: %s", err)
				next.ServeHTTP(w, r)
				return
			}

			if res.Allowed <= 0 {
				metricsManager.CounterRateLimitedRequests.Inc()
				log.Warnf("login rate limited for %s", userIP)
				http.Error(w, "too many login attempts", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
