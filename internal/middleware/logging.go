package middleware

import (
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/mgiraudeau/vocagym/pkg"
)

func LogRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/" || r.URL.Path == "/version" {
				next.ServeHTTP(w, r)
				return
			}

			userAgent := r.Header.Get("User-Agent")
			reqIP, _ := pkg.ReadUserIP(r)
			log.Tracef(
				"[%s] %s %s, agent: %s",
				reqIP, r.Method, r.URL.Path, userAgent,
			)

			next.ServeHTTP(w, r)
		})
	}
}
