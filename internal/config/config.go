package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/filmgate/auth-service/internal/ratelimit"
)

const minSecretLength = 16

// Config holds all application configuration.
type Config struct {
	Env      string
	HTTPAddr string

	DatabaseURL string
	DBMaxConns  int32

	RedisURL string

	JWTAccessSecret  string
	JWTRefreshSecret string
	AccessTokenTTL   time.Duration
	RefreshTokenTTL  time.Duration

	BcryptCost int

	CORSOrigins  []string
	AllowedHosts []string

	LogLevel string
	LogJSON  bool

	SentryDSN string

	MFAIssuer string

	// Process-local guard in front of the distributed limiter.
	LocalRPS   float64
	LocalBurst int

	RateLimits ratelimit.Matrix
}

// Load reads configuration from environment variables and validates it.
func Load() (*Config, error) {
	cfg := &Config{
		Env:              getEnv("APP_ENV", "development"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8000"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		DBMaxConns:       int32(getEnvAsInt("DATABASE_MAX_CONNS", 15)), // pool 5 + 10 overflow
		RedisURL:         getEnv("REDIS_URL", "redis://localhost:6379"),
		JWTAccessSecret:  os.Getenv("JWT_SECRET_KEY"),
		JWTRefreshSecret: os.Getenv("JWT_REFRESH_SECRET_KEY"),
		AccessTokenTTL:   time.Duration(getEnvAsInt("ACCESS_TOKEN_EXPIRE_MINUTES", 15)) * time.Minute,
		RefreshTokenTTL:  time.Duration(getEnvAsInt("REFRESH_TOKEN_EXPIRE_DAYS", 7)) * 24 * time.Hour,
		BcryptCost:       getEnvAsInt("BCRYPT_COST", 12),
		CORSOrigins:      getEnvAsList("CORS_ORIGINS", []string{"*"}),
		AllowedHosts:     getEnvAsList("ALLOWED_HOSTS", []string{"*"}),
		LogLevel:         getEnv("LOG_LEVEL", "INFO"),
		LogJSON:          getEnvAsBool("LOG_JSON_FORMAT", false),
		SentryDSN:        os.Getenv("SENTRY_DSN"),
		MFAIssuer:        getEnv("MFA_TOTP_ISSUER", "Filmgate Auth"),
		LocalRPS:         getEnvAsFloat("LOCAL_RATE_LIMIT_RPS", 50),
		LocalBurst:       getEnvAsInt("LOCAL_RATE_LIMIT_BURST", 100),
		RateLimits:       ratelimit.DefaultMatrix(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if !strings.HasPrefix(c.RedisURL, "redis://") && !strings.HasPrefix(c.RedisURL, "rediss://") {
		return fmt.Errorf("REDIS_URL must start with redis:// or rediss://")
	}
	if len(c.JWTAccessSecret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET_KEY must be at least %d bytes", minSecretLength)
	}
	if len(c.JWTRefreshSecret) < minSecretLength {
		return fmt.Errorf("JWT_REFRESH_SECRET_KEY must be at least %d bytes", minSecretLength)
	}
	return nil
}

func getEnv(name, defaultVal string) string {
	if val := os.Getenv(name); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(name string, defaultVal int) int {
	valStr := os.Getenv(name)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}

func getEnvAsFloat(name string, defaultVal float64) float64 {
	valStr := os.Getenv(name)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseFloat(valStr, 64)
	if err != nil {
		return defaultVal
	}
	return val
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valStr := os.Getenv(name)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.ParseBool(valStr)
	if err != nil {
		return defaultVal
	}
	return val
}

func getEnvAsList(name string, defaultVal []string) []string {
	valStr := os.Getenv(name)
	if valStr == "" {
		return defaultVal
	}
	parts := strings.Split(valStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
