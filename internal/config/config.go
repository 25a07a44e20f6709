package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/danphilibin/relay/pkg/util"
)

type (
	// Config holds configuration settings for the relay service
	Config struct {
		// API Server
		APIHost  string
		APIPort  int
		AppURL   string
		LogLevel string

		// Stores
		Stream    StreamStoreConfig
		History   HistoryStoreConfig
		ScriptDir string

		// Runs
		InputTimeout     time.Duration
		ResponseTimeout  time.Duration
		ActorIdleTimeout time.Duration
		ShutdownTimeout  time.Duration
	}

	// RedisConfig locates a Redis server and the key prefix to use there
	RedisConfig struct {
		Addr     string
		Password string
		DB       int
		Prefix   string
	}

	// StreamStoreConfig selects where run message logs are persisted
	StreamStoreConfig struct {
		Backend string
		Redis   RedisConfig
		BlobURL string
	}

	// HistoryStoreConfig selects where durable step history is persisted
	HistoryStoreConfig struct {
		Backend    string
		Redis      RedisConfig
		SQLitePath string
	}
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBlob   = "blob"
	BackendSQLite = "sqlite"
)

const (
	DefaultAPIPort = 8080
	DefaultAPIHost = "0.0.0.0"
	DefaultAppURL  = "http://localhost:5173"
	MaxTCPPort     = 65535

	DefaultRedisEndpoint = "localhost:6379"
	DefaultRedisDB       = 0
	DefaultRedisPrefix   = "relay"
	DefaultBlobURL       = "mem://"
	DefaultSQLitePath    = "relay.db"

	DefaultInputTimeout     = 5 * time.Minute
	DefaultResponseTimeout  = 30 * time.Second
	DefaultActorIdleTimeout = 5 * time.Minute
	DefaultShutdownTimeout  = 10 * time.Second

	MaxInputTimeoutSeconds    = 365 * 24 * 60 * 60 // 1 year
	MaxResponseTimeoutSeconds = 60 * 60
	MaxIdleTimeoutSeconds     = 24 * 60 * 60
	MaxRedisDB                = 15
)

var (
	ErrInvalidAPIPort         = errors.New("invalid API port")
	ErrInvalidInputTimeout    = errors.New("input timeout must be positive")
	ErrInvalidResponseTimeout = errors.New(
		"response timeout must be positive",
	)
	ErrInvalidStreamBackend  = errors.New("invalid stream backend")
	ErrInvalidHistoryBackend = errors.New("invalid history backend")
	ErrBlobURLRequired       = errors.New("blob stream backend requires a URL")
	ErrSQLitePathRequired    = errors.New(
		"sqlite history backend requires a path",
	)
)

var (
	streamBackends  = util.SetOf(BackendMemory, BackendRedis, BackendBlob)
	historyBackends = util.SetOf(BackendMemory, BackendRedis, BackendSQLite)
)

// NewDefaultConfig creates a configuration with in-memory stores and the
// standard run timeouts
func NewDefaultConfig() *Config {
	return &Config{
		APIHost:  DefaultAPIHost,
		APIPort:  DefaultAPIPort,
		AppURL:   DefaultAppURL,
		LogLevel: "info",
		Stream: StreamStoreConfig{
			Backend: BackendMemory,
			Redis:   defaultRedis(),
			BlobURL: DefaultBlobURL,
		},
		History: HistoryStoreConfig{
			Backend:    BackendMemory,
			Redis:      defaultRedis(),
			SQLitePath: DefaultSQLitePath,
		},
		InputTimeout:     DefaultInputTimeout,
		ResponseTimeout:  DefaultResponseTimeout,
		ActorIdleTimeout: DefaultActorIdleTimeout,
		ShutdownTimeout:  DefaultShutdownTimeout,
	}
}

// LoadFromEnv populates configuration values from environment variables.
// Returns an error if any env var cannot be parsed.
func (c *Config) LoadFromEnv() error {
	if apiHost := os.Getenv("API_HOST"); apiHost != "" {
		c.APIHost = apiHost
	}
	if appURL := os.Getenv("APP_URL"); appURL != "" {
		c.AppURL = appURL
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.LogLevel = logLevel
	}
	if backend := os.Getenv("STREAM_BACKEND"); backend != "" {
		c.Stream.Backend = backend
	}
	if blobURL := os.Getenv("STREAM_BLOB_URL"); blobURL != "" {
		c.Stream.BlobURL = blobURL
	}
	if backend := os.Getenv("HISTORY_BACKEND"); backend != "" {
		c.History.Backend = backend
	}
	if path := os.Getenv("HISTORY_SQLITE_PATH"); path != "" {
		c.History.SQLitePath = path
	}
	if dir := os.Getenv("SCRIPT_DIR"); dir != "" {
		c.ScriptDir = dir
	}

	if err := loadEnvInt("API_PORT", &c.APIPort, 0, MaxTCPPort); err != nil {
		return err
	}
	if err := LoadRedisConfigFromEnv(&c.Stream.Redis, "STREAM"); err != nil {
		return err
	}
	if err := LoadRedisConfigFromEnv(&c.History.Redis, "HISTORY"); err != nil {
		return err
	}

	if err := loadEnvSeconds(
		"INPUT_TIMEOUT", &c.InputTimeout, MaxInputTimeoutSeconds,
	); err != nil {
		return err
	}
	if err := loadEnvSeconds(
		"RESPONSE_TIMEOUT", &c.ResponseTimeout, MaxResponseTimeoutSeconds,
	); err != nil {
		return err
	}
	if err := loadEnvSeconds(
		"ACTOR_IDLE_TIMEOUT", &c.ActorIdleTimeout, MaxIdleTimeoutSeconds,
	); err != nil {
		return err
	}
	return loadEnvSeconds(
		"SHUTDOWN_TIMEOUT", &c.ShutdownTimeout, MaxResponseTimeoutSeconds,
	)
}

// Validate checks that all configuration values are valid
func (c *Config) Validate() error {
	if c.APIPort <= 0 || c.APIPort > MaxTCPPort {
		return fmt.Errorf("%w: %d", ErrInvalidAPIPort, c.APIPort)
	}

	if c.InputTimeout <= 0 {
		return ErrInvalidInputTimeout
	}

	if c.ResponseTimeout <= 0 {
		return ErrInvalidResponseTimeout
	}

	if !streamBackends.Contains(c.Stream.Backend) {
		return fmt.Errorf("%w: %s", ErrInvalidStreamBackend, c.Stream.Backend)
	}
	if c.Stream.Backend == BackendBlob && c.Stream.BlobURL == "" {
		return ErrBlobURLRequired
	}

	if !historyBackends.Contains(c.History.Backend) {
		return fmt.Errorf("%w: %s",
			ErrInvalidHistoryBackend, c.History.Backend)
	}
	if c.History.Backend == BackendSQLite && c.History.SQLitePath == "" {
		return ErrSQLitePathRequired
	}

	return nil
}

// LoadRedisConfigFromEnv loads Redis connection settings from environment
// variables with the given prefix (e.g., "STREAM" or "HISTORY")
func LoadRedisConfigFromEnv(r *RedisConfig, prefix string) error {
	if addr := os.Getenv(prefix + "_REDIS_ADDR"); addr != "" {
		r.Addr = addr
	}
	if password := os.Getenv(prefix + "_REDIS_PASSWORD"); password != "" {
		r.Password = password
	}
	if envPrefix := os.Getenv(prefix + "_REDIS_PREFIX"); envPrefix != "" {
		r.Prefix = envPrefix
	}
	return loadEnvInt(prefix+"_REDIS_DB", &r.DB, -1, MaxRedisDB)
}

func defaultRedis() RedisConfig {
	return RedisConfig{
		Addr:   DefaultRedisEndpoint,
		DB:     DefaultRedisDB,
		Prefix: DefaultRedisPrefix,
	}
}

// loadEnvInt reads key from the environment, parses it as an integer, and
// sets *dst if the value is in the range (min, max]. Returns an error if
// the value cannot be parsed or falls outside the valid range.
func loadEnvInt[T ~int | ~int64](key string, dst *T, min, max T) error {
	s := os.Getenv(key)
	if s == "" {
		return nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %q", key, s)
	}
	tv := T(v)
	if tv <= min || tv > max {
		return fmt.Errorf("invalid %s: %d out of range [%d, %d]",
			key, tv, min+1, max)
	}
	*dst = tv
	return nil
}

func loadEnvSeconds(key string, dst *time.Duration, max int) error {
	if os.Getenv(key) == "" {
		return nil
	}
	var secs int
	if err := loadEnvInt(key, &secs, 0, max); err != nil {
		return err
	}
	*dst = time.Duration(secs) * time.Second
	return nil
}
