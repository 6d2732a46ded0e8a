package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/mgiraudeau/vocagym/internal/auth"
	"github.com/mgiraudeau/vocagym/pkg"
)

// AuthTokenHeader carries the session token on authenticated requests.
const AuthTokenHeader = "X-VOCAGYM-TOKEN"

//go:generate mockgen -source=$GOFILE -destination=auth_mocks_test.go -package=middleware

type loginChecker interface {
	LoggedUserID(ctx context.Context, token string) (int, error)
}

var publicPaths = map[string]struct{}{
	"/":                    {},
	"/version":             {},
	"/auth/login":          {},
	"/auth/register":       {},
	"/auth/check-username": {},
	"/exercises":           {},
}

func isPublicPath(path string) bool {
	if _, ok := publicPaths[path]; ok {
		return true
	}
	// public wall pages are readable by anyone
	return strings.HasPrefix(path, "/gg/")
}

// AuthMiddleware rejects requests to protected paths without a valid
// session token, and stores the logged in user ID in the request
// context for the handlers downstream.
func AuthMiddleware(authChecker loginChecker) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			token := r.Header.Get(AuthTokenHeader)
			userID, err := authChecker.LoggedUserID(r.Context(), token)
			if err != nil {
				if !errors.Is(err, auth.ErrNotLoggedIn) {
					log.Errorf("auth middleware, check token: %s", err)
				}
				reqIP, _ := pkg.ReadUserIP(r)
				log.Tracef(
					"unauthorized => ip: %s, path: %s",
					reqIP, r.URL.Path,
				)
				http.Error(w, "no can do", http.StatusUnauthorized)
				return
			}

			r = r.WithContext(auth.ContextWithUserID(r.Context(), userID))
			next.ServeHTTP(w, r)
		})
	}
}
