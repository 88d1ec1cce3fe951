package middleware

import (
	"errors"
	"net/http"

	"github.com/filmgate/auth-service/internal/api/helpers"
	"github.com/filmgate/auth-service/internal/auth"
)

// RequireAuth resolves the bearer token into a principal and stores it on
// the request context. Requests without a valid, unrevoked access token
// get 401.
func RequireAuth(authenticator *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := authenticator.ResolvePrincipal(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				if errors.Is(err, auth.ErrUnauthorized) {
					helpers.RespondError(w, http.StatusUnauthorized, "Not authenticated")
					return
				}
				helpers.RespondError(w, http.StatusInternalServerError, "Internal Server Error")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// OptionalAuth resolves a principal when a valid bearer token is present
// and passes the request through anonymously otherwise. Rate limiting
// uses it to pick the caller's tier on public endpoints.
func OptionalAuth(authenticator *auth.Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			principal, err := authenticator.ResolvePrincipal(r.Context(), header)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}
