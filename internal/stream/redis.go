package stream

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/danphilibin/relay/pkg/api"
)

// RedisStore keeps each run log in a Redis list, one JSON message per
// element
type RedisStore struct {
	client *redis.Client
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore creates a store on an existing client. The store takes
// ownership of the client and closes it on Close
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Load(
	ctx context.Context, runID api.RunID,
) ([]*api.Message, error) {
	raw, err := s.client.LRange(ctx, s.keyFor(runID), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	res := make([]*api.Message, 0, len(raw))
	for i, r := range raw {
		msg, err := api.ParseMessage([]byte(r))
		if err != nil {
			return nil, fmt.Errorf("run %s message %d: %w", runID, i, err)
		}
		res = append(res, msg)
	}
	return res, nil
}

func (s *RedisStore) Append(
	ctx context.Context, runID api.RunID, msg *api.Message,
) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.client.RPush(ctx, s.keyFor(runID), data).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) keyFor(runID api.RunID) string {
	return s.prefix + ":run:" + string(runID) + ":messages"
}
