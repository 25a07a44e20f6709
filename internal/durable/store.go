package durable

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/danphilibin/relay/internal/config"
)

// NewHistoryStore opens the HistoryStore selected by the configuration
func NewHistoryStore(
	ctx context.Context, cfg config.HistoryStoreConfig,
) (HistoryStore, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemoryHistory(), nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("history redis: %w", err)
		}
		return NewRedisHistory(client, cfg.Redis.Prefix), nil
	case config.BackendSQLite:
		return OpenSQLiteHistory(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("%w: %s", config.ErrInvalidHistoryBackend,
			cfg.Backend)
	}
}
