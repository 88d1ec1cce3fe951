package middleware

import (
	"net/http"

	"github.com/filmgate/auth-service/internal/api/helpers"
)

// RequirePermission rejects requests whose principal lacks the given
// permission. Must run after RequireAuth.
func RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := GetPrincipal(r.Context())
			if err != nil {
				helpers.RespondError(w, http.StatusUnauthorized, "Not authenticated")
				return
			}
			if !principal.HasPermission(permission) {
				helpers.RespondError(w, http.StatusForbidden, "Not enough permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireSuperuser restricts a route to superusers.
func RequireSuperuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := GetPrincipal(r.Context())
		if err != nil {
			helpers.RespondError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		if !principal.IsSuperuser {
			helpers.RespondError(w, http.StatusForbidden, "Not enough permissions")
			return
		}
		next.ServeHTTP(w, r)
	})
}
