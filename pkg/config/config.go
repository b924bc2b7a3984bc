package config

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	OAuth    OAuthConfig
	Database DatabaseConfig
	Redis    RedisConfig

	// Logging
	LogLevel       string
	MetricsEnabled bool
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// AuthConfig holds token signing and authorization settings
type AuthConfig struct {
	// JWTSecret is the base64-encoded HMAC signing key shared by the
	// access and refresh token paths.
	JWTSecret string

	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	CookieSecure   bool
	CookieSameSite string

	// FrontendURL is the base URL the OAuth callback redirects to.
	FrontendURL string

	// BypassPaths are path patterns excluded from permission checks
	// (auth endpoints, docs). Patterns use {name} placeholders like
	// permission paths.
	BypassPaths []string

	// AllowAnonymous controls the authorizer's policy for requests that
	// carry no identity. The upstream behavior was a silent allow; here it
	// must be opted into explicitly.
	AllowAnonymous bool
}

// OAuthProviderConfig holds one provider's client credentials
type OAuthProviderConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// OAuthConfig holds settings for the supported OAuth providers
type OAuthConfig struct {
	Google   OAuthProviderConfig
	Facebook OAuthProviderConfig

	// Timeout bounds the code exchange and profile fetch round trips.
	Timeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
}

// RedisConfig holds the optional permission cache backend. An empty URL
// disables the L2 cache; the authorizer still runs with its in-process L1.
type RedisConfig struct {
	URL         string
	Password    string
	DB          int
	CacheTTL    time.Duration
	L1CacheSize int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("LUMEN_HOST", "0.0.0.0"),
			Port:            getEnv("LUMEN_PORT", "8080"),
			ReadTimeout:     getEnvDuration("LUMEN_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("LUMEN_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:     getEnvDuration("LUMEN_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("LUMEN_SHUTDOWN_TIMEOUT", 30*time.Second),
			HealthPort:      getEnv("LUMEN_HEALTH_PORT", "9090"),
		},
		Auth: AuthConfig{
			JWTSecret:       getEnv("LUMEN_JWT_SECRET", ""),
			AccessTokenTTL:  time.Duration(getEnvInt("LUMEN_ACCESS_TOKEN_TTL_SECONDS", 3600)) * time.Second,
			RefreshTokenTTL: time.Duration(getEnvInt("LUMEN_REFRESH_TOKEN_TTL_SECONDS", 7*24*3600)) * time.Second,
			CookieSecure:    getEnvBool("LUMEN_COOKIE_SECURE", true),
			CookieSameSite:  getEnv("LUMEN_COOKIE_SAME_SITE", "lax"),
			FrontendURL:     getEnv("LUMEN_FRONTEND_URL", "http://localhost:3000"),
			BypassPaths:     splitList(getEnv("LUMEN_AUTHZ_BYPASS_PATHS", defaultBypassPaths)),
			AllowAnonymous:  getEnvBool("LUMEN_AUTHZ_ALLOW_ANONYMOUS", false),
		},
		OAuth: OAuthConfig{
			Google: OAuthProviderConfig{
				ClientID:     getEnv("LUMEN_OAUTH_GOOGLE_CLIENT_ID", ""),
				ClientSecret: getEnv("LUMEN_OAUTH_GOOGLE_CLIENT_SECRET", ""),
				RedirectURL:  getEnv("LUMEN_OAUTH_GOOGLE_REDIRECT_URL", ""),
			},
			Facebook: OAuthProviderConfig{
				ClientID:     getEnv("LUMEN_OAUTH_FACEBOOK_CLIENT_ID", ""),
				ClientSecret: getEnv("LUMEN_OAUTH_FACEBOOK_CLIENT_SECRET", ""),
				RedirectURL:  getEnv("LUMEN_OAUTH_FACEBOOK_REDIRECT_URL", ""),
			},
			Timeout: getEnvDuration("LUMEN_OAUTH_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL:         getEnv("LUMEN_POSTGRES_URL", ""),
			MaxConns:    getEnvInt("LUMEN_POSTGRES_MAX_CONNS", 25),
			MinConns:    getEnvInt("LUMEN_POSTGRES_MIN_CONNS", 5),
			Timeout:     getEnvDuration("LUMEN_POSTGRES_TIMEOUT", 5*time.Second),
			MaxLifetime: getEnvDuration("LUMEN_POSTGRES_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:         getEnv("LUMEN_REDIS_URL", ""),
			Password:    getEnv("LUMEN_REDIS_PASSWORD", ""),
			DB:          getEnvInt("LUMEN_REDIS_DB", 0),
			CacheTTL:    getEnvDuration("LUMEN_PERMISSION_CACHE_TTL", 5*time.Minute),
			L1CacheSize: getEnvInt("LUMEN_PERMISSION_CACHE_L1_SIZE", 1024),
		},
		LogLevel:       getEnv("LUMEN_LOG_LEVEL", "info"),
		MetricsEnabled: getEnvBool("LUMEN_METRICS_ENABLED", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

const defaultBypassPaths = "/api/v1/auth/login,/api/v1/auth/register,/api/v1/auth/refresh,/api/v1/auth/social/login,/api/v1/auth/social/callback,/storage/{file},/v3/api-docs"

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if _, err := c.Auth.SecretKey(); err != nil {
		return fmt.Errorf("JWT secret must be base64: %w", err)
	}
	if c.Auth.AccessTokenTTL <= 0 {
		return fmt.Errorf("access token TTL must be positive")
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		return fmt.Errorf("refresh token TTL must be positive")
	}
	if _, err := ParseSameSite(c.Auth.CookieSameSite); err != nil {
		return err
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	return nil
}

// SecretKey decodes the base64 HMAC signing key
func (a AuthConfig) SecretKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(a.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("invalid base64 secret: %w", err)
	}
	return key, nil
}

// ParseSameSite maps a config string to http.SameSite
func ParseSameSite(value string) (http.SameSite, error) {
	switch strings.ToLower(value) {
	case "", "default":
		return http.SameSiteDefaultMode, nil
	case "lax":
		return http.SameSiteLaxMode, nil
	case "strict":
		return http.SameSiteStrictMode, nil
	case "none":
		return http.SameSiteNoneMode, nil
	default:
		return 0, fmt.Errorf("invalid same-site value: %s (must be lax, strict, none, or default)", value)
	}
}

// splitList parses a comma-separated list, dropping empty entries
func splitList(value string) []string {
	if value == "" {
		return nil
	}

	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
