package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"github.com/filmgate/auth-service/internal/api"
	"github.com/filmgate/auth-service/internal/api/middleware"
	"github.com/filmgate/auth-service/internal/auth"
	"github.com/filmgate/auth-service/internal/cache"
	"github.com/filmgate/auth-service/internal/config"
	"github.com/filmgate/auth-service/internal/ratelimit"
	"github.com/filmgate/auth-service/internal/rbac"
	"github.com/filmgate/auth-service/internal/storage"
	"github.com/filmgate/auth-service/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.Setup(cfg.LogLevel, cfg.LogJSON || cfg.Env == "production")
	log.Info("starting auth service", "env", cfg.Env, "addr", cfg.HTTPAddr)

	if cfg.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.Env,
		}); err != nil {
			log.Warn("sentry init failed", "error", err)
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := storage.NewPostgres(ctx, cfg.DatabaseURL, cfg.DBMaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient, err := cache.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	userRepo := storage.NewUserRepo(pool)
	roleRepo := storage.NewRoleRepo(pool)
	historyRepo := storage.NewHistoryRepo(pool)
	socialRepo := storage.NewSocialAccountRepo(pool)

	sessions := cache.NewSessionIndex(redisClient)
	denyList := cache.NewDenyList(redisClient)
	permCache := cache.NewPermissionCache(redisClient)

	hasher := auth.NewBcryptHasher(cfg.BcryptCost)
	tokens := auth.NewJWTProvider(
		cfg.JWTAccessSecret, cfg.JWTRefreshSecret,
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL,
		denyList,
	)

	authService := auth.NewService(userRepo, historyRepo, sessions, denyList, hasher, tokens, cfg.RefreshTokenTTL, log)
	mfaService := auth.NewMFAService(userRepo, tokens, cfg.MFAIssuer)
	rbacService := rbac.NewService(roleRepo, userRepo, permCache, log)
	authenticator := auth.NewAuthenticator(tokens, userRepo, rbacService)
	limiter := ratelimit.NewLimiter(redisClient, cfg.RateLimits)
	ipLimiter := middleware.NewIPRateLimiter(rate.Limit(cfg.LocalRPS), cfg.LocalBurst)

	router := api.NewRouter(api.RouterConfig{
		AuthHandlers:  api.NewAuthHandlers(authService, mfaService, socialRepo),
		RoleHandlers:  api.NewRoleHandlers(rbacService),
		Authenticator: authenticator,
		Limiter:       limiter,
		IPLimiter:     ipLimiter,
		CORSOrigins:   cfg.CORSOrigins,
		AllowedHosts:  cfg.AllowedHosts,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
