package helpers

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/danphilibin/relay/internal/config"
)

// NewTestConfig creates a default configuration with debug logging enabled
// and timeouts short enough for tests
func NewTestConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.LogLevel = "debug"
	cfg.InputTimeout = 5 * time.Second
	cfg.ResponseTimeout = 2 * time.Second
	cfg.ShutdownTimeout = time.Second
	return cfg
}

// NewTestRedis starts a miniredis server that is stopped with the test
func NewTestRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	return miniredis.RunT(t)
}

// NewRedisClient connects a client to server and closes it with the test
func NewRedisClient(t *testing.T, server *miniredis.Miniredis) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client
}
