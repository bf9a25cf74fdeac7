package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("LLM_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "sqlite3", cfg.DatabaseDriver)
	assert.Equal(t, "openai", cfg.LLMProvider)
	assert.Equal(t, "gpt-3.5-turbo", cfg.LLMModel)
	assert.Equal(t, 10*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 30*time.Second, cfg.LLMTimeout)
	assert.Zero(t, cfg.LLMRateLimit)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("LLM_API_KEY", "sk-test")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("LLM_TIMEOUT", "5s")
	t.Setenv("LLM_RATE_LIMIT", "2.5")
	t.Setenv("JWT_TTL", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, 5*time.Second, cfg.LLMTimeout)
	assert.Equal(t, 2.5, cfg.LLMRateLimit)
	assert.Equal(t, 10*time.Hour, cfg.JWTTTL, "unparseable value keeps the default")
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "http_port: \"7070\"\n" +
		"jwt_secret: " + testSecret + "\n" +
		"llm_provider: gemini\n" +
		"gemini_api_key: g-key\n" +
		"llm_model: gemini-1.5-flash-latest\n" +
		"jwt_ttl: 2h\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("HTTP_PORT", "6060")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "6060", cfg.HTTPPort, "environment wins over the file")
	assert.Equal(t, "gemini", cfg.LLMProvider)
	assert.Equal(t, "g-key", cfg.GeminiAPIKey)
	assert.Equal(t, "gemini-1.5-flash-latest", cfg.LLMModel)
	assert.Equal(t, 2*time.Hour, cfg.JWTTTL)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := defaults()
		cfg.JWTSecret = testSecret
		cfg.LLMAPIKey = "sk-test"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"short secret", func(c *Config) { c.JWTSecret = "short" }, false},
		{"missing api key", func(c *Config) { c.LLMAPIKey = "" }, false},
		{"gemini without key", func(c *Config) { c.LLMProvider = "gemini" }, false},
		{"gemini with key", func(c *Config) { c.LLMProvider = "gemini"; c.GeminiAPIKey = "g" }, true},
		{"unknown provider", func(c *Config) { c.LLMProvider = "other" }, false},
		{"unknown driver", func(c *Config) { c.DatabaseDriver = "postgres" }, false},
		{"zero timeout", func(c *Config) { c.LLMTimeout = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}
