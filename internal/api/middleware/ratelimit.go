package middleware

import (
	"log/slog"
	"net/http"

	"github.com/filmgate/auth-service/internal/api/helpers"
	"github.com/filmgate/auth-service/internal/ratelimit"
)

// RateLimit enforces the distributed leaky-bucket limit for one traffic
// class. Authenticated callers are bucketed by user id with their role
// tier; anonymous callers are bucketed by IP as guests. A limiter backend
// failure fails closed.
func RateLimit(limiter *ratelimit.Limiter, class string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identifier := helpers.GetRealIP(r)
			roles := []string{ratelimit.TierGuest}

			if principal, err := GetPrincipal(r.Context()); err == nil {
				identifier = principal.ID.String()
				roles = principal.Roles
			}

			allowed, err := limiter.Allow(r.Context(), class, identifier, roles)
			if err != nil {
				slog.Error("rate limiter unavailable", "class", class, "error", err)
				helpers.RespondError(w, http.StatusServiceUnavailable, "Service temporarily unavailable")
				return
			}
			if !allowed {
				helpers.RespondError(w, http.StatusTooManyRequests, "Rate limit exceeded. Try again later.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
