// Package api wires the HTTP surface: routing, middleware order and the
// translation of service errors into status codes.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/filmgate/auth-service/internal/api/helpers"
	"github.com/filmgate/auth-service/internal/api/middleware"
	"github.com/filmgate/auth-service/internal/auth"
	"github.com/filmgate/auth-service/internal/ratelimit"
)

// PermissionManageRoles guards the role administration endpoints.
const PermissionManageRoles = "manage_roles"

// RouterConfig carries everything the router needs to assemble the
// middleware stack and route table.
type RouterConfig struct {
	AuthHandlers  *AuthHandlers
	RoleHandlers  *RoleHandlers
	Authenticator *auth.Authenticator
	Limiter       *ratelimit.Limiter
	IPLimiter     *middleware.IPRateLimiter
	CORSOrigins   []string
	AllowedHosts  []string
}

// NewRouter builds the chi router. The local IP guard runs before any
// work; the distributed limiter runs after authentication so it can
// bucket by user id and role tier.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.PanicRecovery)
	r.Use(middleware.AllowedHosts(cfg.AllowedHosts))
	r.Use(middleware.CORS(cfg.CORSOrigins))
	if cfg.IPLimiter != nil {
		r.Use(cfg.IPLimiter.Middleware)
	}

	r.Get("/health", healthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler)

		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(cfg.Limiter, ratelimit.ClassRegister))
				r.Post("/register", cfg.AuthHandlers.Register)
			})
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(cfg.Limiter, ratelimit.ClassLogin))
				r.Post("/login", cfg.AuthHandlers.Login)
			})
			r.Group(func(r chi.Router) {
				// Optional auth so callers presenting a valid access token
				// are bucketed by user id and tier rather than IP.
				r.Use(middleware.OptionalAuth(cfg.Authenticator))
				r.Use(middleware.RateLimit(cfg.Limiter, ratelimit.ClassDefault))
				r.Post("/refresh", cfg.AuthHandlers.Refresh)
				r.Post("/logout", cfg.AuthHandlers.Logout)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth(cfg.Authenticator))
				r.Use(middleware.RateLimit(cfg.Limiter, ratelimit.ClassDefault))
				r.Post("/logout_all_other_sessions", cfg.AuthHandlers.LogoutAllOther)
				r.Get("/history", cfg.AuthHandlers.History)
				r.Get("/social_accounts", cfg.AuthHandlers.SocialAccounts)
				r.Patch("/profile", cfg.AuthHandlers.UpdateProfile)
				r.Post("/mfa/setup", cfg.AuthHandlers.MFASetup)
				r.Post("/mfa/verify", cfg.AuthHandlers.MFAVerify)
			})
		})

		r.Route("/roles", func(r chi.Router) {
			r.Use(middleware.RequireAuth(cfg.Authenticator))
			r.Use(middleware.RateLimit(cfg.Limiter, ratelimit.ClassDefault))
			r.Use(middleware.RequirePermission(PermissionManageRoles))

			r.Post("/", cfg.RoleHandlers.Create)
			r.Get("/", cfg.RoleHandlers.List)
			r.Get("/{id}", cfg.RoleHandlers.Get)
			r.Put("/{id}", cfg.RoleHandlers.Update)
			r.Delete("/{id}", cfg.RoleHandlers.Delete)
			r.Post("/{role_id}/assign/{user_id}", cfg.RoleHandlers.Assign)
			r.Delete("/{role_id}/revoke/{user_id}", cfg.RoleHandlers.Revoke)
			r.Get("/{user_id}/permissions", cfg.RoleHandlers.UserPermissions)
		})
	})

	return r
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	helpers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
