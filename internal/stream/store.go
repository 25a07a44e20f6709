package stream

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/danphilibin/relay/internal/config"
	"github.com/danphilibin/relay/pkg/api"
)

// Store persists run message logs. Appends for a single run are always
// issued sequentially by that run's actor
type Store interface {
	Load(ctx context.Context, runID api.RunID) ([]*api.Message, error)
	Append(ctx context.Context, runID api.RunID, msg *api.Message) error
	Close() error
}

var ErrUnknownBackend = errors.New("unknown stream backend")

// NewStore opens the Store selected by the configuration
func NewStore(
	ctx context.Context, cfg config.StreamStoreConfig,
) (Store, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemoryStore(), nil
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("stream redis: %w", err)
		}
		return NewRedisStore(client, cfg.Redis.Prefix), nil
	case config.BackendBlob:
		return OpenBlobStore(ctx, cfg.BlobURL, "runs")
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Backend)
	}
}
