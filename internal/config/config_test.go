package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("AUTH_URL", "https://project.example.co/auth/v1/")
	t.Setenv("AUTH_ANON_KEY", "anon-key")
	t.Setenv("AUTH_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("COMPLETION_API_KEY", "sk-test")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "http://localhost:8080", cfg.Server.SiteURL)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "https://project.example.co/auth/v1", cfg.Auth.URL, "trailing slash trimmed")
	assert.Equal(t, "openai", cfg.Completion.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Completion.Model)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Completion.BaseURL)
	assert.Equal(t, 60*time.Second, cfg.Completion.Timeout)
	assert.False(t, cfg.Server.IsProduction())
}

func TestLoad_MissingCompletionKeyIsFatal(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("COMPLETION_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COMPLETION_API_KEY")
}

func TestLoad_Overrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("COMPLETION_PROVIDER", "gemini")
	t.Setenv("COMPLETION_TIMEOUT", "45s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Server.IsProduction())
	assert.Equal(t, "gemini-2.5-flash", cfg.Completion.Model)
	assert.Empty(t, cfg.Completion.BaseURL, "gemini uses the SDK endpoint")
	assert.Equal(t, 45*time.Second, cfg.Completion.Timeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Server:     ServerConfig{Port: 8080, SiteURL: "http://localhost:8080"},
			Database:   DatabaseConfig{Driver: "sqlite", Path: ":memory:"},
			Auth:       AuthConfig{URL: "https://auth.example", AnonKey: "k", JWTSecret: "0123456789abcdef0123456789abcdef"},
			Completion: CompletionConfig{Provider: "openai", APIKey: "k", BaseURL: "https://api.example/v1", Timeout: time.Minute},
			RateLimit:  RateLimitConfig{Requests: 5, Window: time.Minute},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"short jwt secret", func(c *Config) { c.Auth.JWTSecret = "short" }},
		{"postgres without url", func(c *Config) { c.Database.Driver = "postgres" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"unknown provider", func(c *Config) { c.Completion.Provider = "llama" }},
		{"zero timeout", func(c *Config) { c.Completion.Timeout = 0 }},
		{"bad site url", func(c *Config) { c.Server.SiteURL = "not a url" }},
	}

	require.NoError(t, valid().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}
