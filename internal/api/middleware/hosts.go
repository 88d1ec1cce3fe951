package middleware

import (
	"net"
	"net/http"
	"slices"

	"github.com/filmgate/auth-service/internal/api/helpers"
)

// AllowedHosts rejects requests whose Host header is not in the allow
// list. "*" disables the check.
func AllowedHosts(hosts []string) func(http.Handler) http.Handler {
	allowAll := len(hosts) == 0 || slices.Contains(hosts, "*")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if allowAll {
				next.ServeHTTP(w, r)
				return
			}

			host := r.Host
			if h, _, err := net.SplitHostPort(host); err == nil {
				host = h
			}
			if !slices.Contains(hosts, host) {
				helpers.RespondError(w, http.StatusBadRequest, "Invalid host header")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
