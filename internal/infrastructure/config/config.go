package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/arvoria/authd/internal/domain"
	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// Environment ("development" or "production")
	Environment string

	// Database configuration
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	// JWT configuration
	JWTIssuer           string
	JWTAudience         string
	JWTKeyPath          string
	JWTAccessDuration   time.Duration
	JWTRefreshDuration  time.Duration
	JWTIDTokenDuration  time.Duration
	AuthCodeDuration    time.Duration
	TokenEndpointURL    string

	// Client assertion key-set resolution
	JWKSCacheTTL     time.Duration
	JWKSFetchTimeout time.Duration

	// Rate limiting
	RateLimitMax     int
	RateLimitWindow  time.Duration
	RateLimitBypass  []string
	RedisAddr        string
	RedisPassword    string

	// Server configuration
	ServerPort int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	// Load .env from project root
	_ = godotenv.Load()

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	accessDuration, err := time.ParseDuration(getEnv("JWT_ACCESS_TOKEN_DURATION", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_ACCESS_TOKEN_DURATION: %w", err)
	}

	refreshDuration, err := time.ParseDuration(getEnv("JWT_REFRESH_TOKEN_DURATION", "720h"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_REFRESH_TOKEN_DURATION: %w", err)
	}

	idTokenDuration, err := time.ParseDuration(getEnv("JWT_ID_TOKEN_DURATION", "1h"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWT_ID_TOKEN_DURATION: %w", err)
	}

	codeDuration, err := time.ParseDuration(getEnv("AUTH_CODE_DURATION", "10m"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTH_CODE_DURATION: %w", err)
	}

	jwksTTL, err := time.ParseDuration(getEnv("JWKS_CACHE_TTL", "15m"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWKS_CACHE_TTL: %w", err)
	}

	jwksTimeout, err := time.ParseDuration(getEnv("JWKS_FETCH_TIMEOUT", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid JWKS_FETCH_TIMEOUT: %w", err)
	}

	rateWindow, err := time.ParseDuration(getEnv("RATE_LIMIT_WINDOW", "1m"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_WINDOW: %w", err)
	}

	issuer := getEnv("JWT_ISSUER", "http://localhost:8080")

	return &Config{
		Environment: getEnv("APP_ENV", "development"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     dbPort,
		DBUser:     getEnv("DB_USER", "owner"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "authd"),

		JWTIssuer:          issuer,
		JWTAudience:        getEnv("JWT_AUDIENCE", "authd-api"),
		JWTKeyPath:         getEnv("JWT_KEY_PATH", ""),
		JWTAccessDuration:  accessDuration,
		JWTRefreshDuration: refreshDuration,
		JWTIDTokenDuration: idTokenDuration,
		AuthCodeDuration:   codeDuration,
		TokenEndpointURL:   getEnv("TOKEN_ENDPOINT_URL", issuer+"/oauth2/token"),

		JWKSCacheTTL:     jwksTTL,
		JWKSFetchTimeout: jwksTimeout,

		RateLimitMax:    getEnvInt("RATE_LIMIT_MAX", 60),
		RateLimitWindow: rateWindow,
		RateLimitBypass: getEnvList("RATE_LIMIT_BYPASS", nil),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),

		ServerPort: getEnvInt("PORT", 8080),
	}, nil
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Validate checks that a production deployment carries the required
// configuration. Missing key material, issuer or audience is a fatal
// startup error, never a silent fallback.
func (c *Config) Validate() error {
	if !c.IsProduction() {
		return nil
	}
	if c.JWTKeyPath == "" {
		return fmt.Errorf("JWT_KEY_PATH is required in production")
	}
	if c.JWTIssuer == "" {
		return fmt.Errorf("JWT_ISSUER is required in production")
	}
	if c.JWTAudience == "" {
		return fmt.Errorf("JWT_AUDIENCE is required in production")
	}
	if len(c.RateLimitBypass) > 0 {
		return fmt.Errorf("RATE_LIMIT_BYPASS must not be set in production")
	}
	if c.DBHost == "" || c.DBUser == "" || c.DBName == "" {
		return fmt.Errorf("database configuration is incomplete")
	}
	return nil
}

// Durations mirrors the domain defaults when the environment carries
// zero values.
func (c *Config) AccessTokenDuration() time.Duration {
	if c.JWTAccessDuration > 0 {
		return c.JWTAccessDuration
	}
	return domain.DefaultAccessTokenDuration
}

func (c *Config) RefreshTokenDuration() time.Duration {
	if c.JWTRefreshDuration > 0 {
		return c.JWTRefreshDuration
	}
	return domain.DefaultRefreshTokenDuration
}

func (c *Config) AuthorizationCodeDuration() time.Duration {
	if c.AuthCodeDuration > 0 {
		return c.AuthCodeDuration
	}
	return domain.DefaultAuthorizationCodeDuration
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt gets an environment variable as an integer or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvList gets a comma-separated environment variable as a slice
func getEnvList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
