package config_test

import (
	"testing"
	"time"

	testify "github.com/stretchr/testify/assert"

	"github.com/danphilibin/relay/internal/assert"
	"github.com/danphilibin/relay/internal/assert/helpers"
	"github.com/danphilibin/relay/internal/config"
)

func TestConfigValidation(t *testing.T) {
	as := assert.New(t)

	t.Run("valid_default_config", func(t *testing.T) {
		cfg := config.NewDefaultConfig()
		as.ConfigValid(cfg)
	})

	t.Run("valid_test_config", func(t *testing.T) {
		cfg := helpers.NewTestConfig()
		as.ConfigValid(cfg)
	})

	tests := []struct {
		name          string
		configMod     func(*config.Config)
		errorContains string
	}{
		{
			name: "invalid_api_port_zero",
			configMod: func(c *config.Config) {
				c.APIPort = 0
			},
			errorContains: "invalid API port",
		},
		{
			name: "invalid_api_port_too_high",
			configMod: func(c *config.Config) {
				c.APIPort = 70000
			},
			errorContains: "invalid API port",
		},
		{
			name: "zero_input_timeout",
			configMod: func(c *config.Config) {
				c.InputTimeout = 0
			},
			errorContains: "input timeout must be positive",
		},
		{
			name: "zero_response_timeout",
			configMod: func(c *config.Config) {
				c.ResponseTimeout = 0
			},
			errorContains: "response timeout must be positive",
		},
		{
			name: "unknown_stream_backend",
			configMod: func(c *config.Config) {
				c.Stream.Backend = "kafka"
			},
			errorContains: "invalid stream backend",
		},
		{
			name: "blob_without_url",
			configMod: func(c *config.Config) {
				c.Stream.Backend = config.BackendBlob
				c.Stream.BlobURL = ""
			},
			errorContains: "requires a URL",
		},
		{
			name: "unknown_history_backend",
			configMod: func(c *config.Config) {
				c.History.Backend = "postgres"
			},
			errorContains: "invalid history backend",
		},
		{
			name: "sqlite_without_path",
			configMod: func(c *config.Config) {
				c.History.Backend = config.BackendSQLite
				c.History.SQLitePath = ""
			},
			errorContains: "requires a path",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewDefaultConfig()
			tt.configMod(cfg)
			as.ConfigInvalid(cfg, tt.errorContains)
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("API_HOST", "127.0.0.1")
	t.Setenv("API_PORT", "9090")
	t.Setenv("APP_URL", "https://relay.example.com")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("STREAM_BACKEND", "redis")
	t.Setenv("STREAM_REDIS_ADDR", "redis:6379")
	t.Setenv("STREAM_REDIS_DB", "3")
	t.Setenv("HISTORY_BACKEND", "sqlite")
	t.Setenv("HISTORY_SQLITE_PATH", "/tmp/relay.db")
	t.Setenv("INPUT_TIMEOUT", "60")
	t.Setenv("RESPONSE_TIMEOUT", "5")

	cfg := config.NewDefaultConfig()
	testify.NoError(t, cfg.LoadFromEnv())

	testify.Equal(t, "127.0.0.1", cfg.APIHost)
	testify.Equal(t, 9090, cfg.APIPort)
	testify.Equal(t, "https://relay.example.com", cfg.AppURL)
	testify.Equal(t, "debug", cfg.LogLevel)
	testify.Equal(t, config.BackendRedis, cfg.Stream.Backend)
	testify.Equal(t, "redis:6379", cfg.Stream.Redis.Addr)
	testify.Equal(t, 3, cfg.Stream.Redis.DB)
	testify.Equal(t, config.BackendSQLite, cfg.History.Backend)
	testify.Equal(t, "/tmp/relay.db", cfg.History.SQLitePath)
	testify.Equal(t, time.Minute, cfg.InputTimeout)
	testify.Equal(t, 5*time.Second, cfg.ResponseTimeout)
	testify.Equal(t, config.DefaultShutdownTimeout, cfg.ShutdownTimeout)
	testify.NoError(t, cfg.Validate())
}

func TestLoadFromEnvErrors(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"API_PORT", "not-a-number"},
		{"API_PORT", "70000"},
		{"INPUT_TIMEOUT", "0"},
		{"HISTORY_REDIS_DB", "99"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			cfg := config.NewDefaultConfig()
			err := cfg.LoadFromEnv()
			testify.Error(t, err)
			testify.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoadFromEnvKeepsSubSecondDefaults(t *testing.T) {
	cfg := config.NewDefaultConfig()
	cfg.ResponseTimeout = 250 * time.Millisecond
	testify.NoError(t, cfg.LoadFromEnv())
	testify.Equal(t, 250*time.Millisecond, cfg.ResponseTimeout)
}
