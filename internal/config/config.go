// Package config loads the service configuration from environment variables.
//
// A .env file in the working directory is loaded first if present (local
// development). Anything that has no sensible default and would make every
// request fail (identity provider settings, the completion API key) is
// required here, so a misconfigured deployment fails at startup rather than
// per request.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Completion CompletionConfig
	CORS       CORSConfig
	RateLimit  RateLimitConfig
}

type ServerConfig struct {
	Port        int
	Environment string
	SiteURL     string // Public base URL, used to build share links and magic-link redirects
}

// IsProduction reports whether cookies should be marked Secure.
func (c ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

type DatabaseConfig struct {
	Driver string // "sqlite" or "postgres"
	Path   string // sqlite file path
	URL    string // postgres connection string
}

// RedisConfig is optional. An empty URL disables the Redis-backed code ledger
// and rate limiter.
type RedisConfig struct {
	URL string
}

// AuthConfig points at the hosted passwordless identity provider.
type AuthConfig struct {
	URL       string // e.g. https://<project>.supabase.co/auth/v1
	AnonKey   string // public API key sent as the apikey header
	JWTSecret string // HS256 secret the provider signs access tokens with
}

type CompletionConfig struct {
	Provider string // "openai" or "gemini"
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Load reads and validates configuration from environment variables.
func Load() (*Config, error) {
	_ = godotenv.Load()

	authURL, err := getEnvRequired("AUTH_URL")
	if err != nil {
		return nil, err
	}
	anonKey, err := getEnvRequired("AUTH_ANON_KEY")
	if err != nil {
		return nil, err
	}
	jwtSecret, err := getEnvRequired("AUTH_JWT_SECRET")
	if err != nil {
		return nil, err
	}
	completionKey, err := getEnvRequired("COMPLETION_API_KEY")
	if err != nil {
		return nil, err
	}

	port := getEnvAsInt("PORT", 8080)
	provider := getEnv("COMPLETION_PROVIDER", "openai")

	cfg := &Config{
		Server: ServerConfig{
			Port:        port,
			Environment: getEnv("ENV", "development"),
			SiteURL:     strings.TrimRight(getEnv("SITE_URL", fmt.Sprintf("http://localhost:%d", port)), "/"),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DATABASE_DRIVER", "sqlite"),
			Path:   getEnv("DB_PATH", "data/aligned.db"),
			URL:    getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Auth: AuthConfig{
			URL:       strings.TrimRight(authURL, "/"),
			AnonKey:   anonKey,
			JWTSecret: jwtSecret,
		},
		Completion: CompletionConfig{
			Provider: provider,
			APIKey:   completionKey,
			Model:    getEnv("COMPLETION_MODEL", defaultModel(provider)),
			BaseURL:  strings.TrimRight(getEnv("COMPLETION_BASE_URL", defaultBaseURL(provider)), "/"),
			Timeout:  getEnvAsDuration("COMPLETION_TIMEOUT", 60*time.Second),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", nil),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvAsInt("RATE_LIMIT_REQUESTS", 5),
			Window:   getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadDatabase reads only the database settings. The migrate command uses it
// so schema upgrades do not need provider credentials.
func LoadDatabase() DatabaseConfig {
	_ = godotenv.Load()
	return DatabaseConfig{
		Driver: getEnv("DATABASE_DRIVER", "sqlite"),
		Path:   getEnv("DB_PATH", "data/aligned.db"),
		URL:    getEnv("DATABASE_URL", ""),
	}
}

// Validate checks that every setting is present and well-formed.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d is out of range", c.Server.Port)
	}
	if _, err := url.ParseRequestURI(c.Server.SiteURL); err != nil {
		return fmt.Errorf("invalid SITE_URL: %w", err)
	}
	if _, err := url.ParseRequestURI(c.Auth.URL); err != nil {
		return fmt.Errorf("invalid AUTH_URL: %w", err)
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 32 bytes")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("DB_PATH is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown DATABASE_DRIVER %q", c.Database.Driver)
	}

	switch c.Completion.Provider {
	case "openai":
		if _, err := url.ParseRequestURI(c.Completion.BaseURL); err != nil {
			return fmt.Errorf("invalid COMPLETION_BASE_URL: %w", err)
		}
	case "gemini":
	default:
		return fmt.Errorf("unknown COMPLETION_PROVIDER %q", c.Completion.Provider)
	}
	if c.Completion.Timeout <= 0 {
		return fmt.Errorf("COMPLETION_TIMEOUT must be positive")
	}

	if c.RateLimit.Requests <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive")
	}
	return nil
}

func defaultModel(provider string) string {
	if provider == "gemini" {
		return "gemini-2.5-flash"
	}
	return "gpt-4o-mini"
}

// defaultBaseURL is empty for gemini, where the SDK knows its own endpoint.
func defaultBaseURL(provider string) string {
	if provider == "gemini" {
		return ""
	}
	return "https://api.openai.com/v1"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvRequired(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return value, nil
}

func getEnvAsInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration accepts Go duration syntax ("90s", "2m").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsSlice splits a comma-separated value, dropping empty entries.
func getEnvAsSlice(key string, defaultValue []string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
