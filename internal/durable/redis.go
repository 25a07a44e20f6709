package durable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/danphilibin/relay/pkg/api"
)

// RedisHistory keeps instances as JSON strings and step and event histories
// as Redis lists
type RedisHistory struct {
	client *redis.Client
	prefix string
}

var _ HistoryStore = (*RedisHistory)(nil)

// NewRedisHistory creates a history store on an existing client. The store
// takes ownership of the client and closes it on Close
func NewRedisHistory(client *redis.Client, prefix string) *RedisHistory {
	return &RedisHistory{client: client, prefix: prefix}
}

func (r *RedisHistory) CreateInstance(
	ctx context.Context, inst *Instance,
) error {
	data, err := json.Marshal(inst)
	if err != nil {
		return err
	}
	ok, err := r.client.SetNX(ctx, r.instanceKey(inst.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrInstanceExists, inst.ID)
	}
	return r.client.SAdd(ctx, r.indexKey(), string(inst.ID)).Err()
}

func (r *RedisHistory) GetInstance(
	ctx context.Context, id api.RunID,
) (*Instance, error) {
	data, err := r.client.Get(ctx, r.instanceKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var inst Instance
	if err := json.Unmarshal(data, &inst); err != nil {
		return nil, err
	}
	return &inst, nil
}

func (r *RedisHistory) UpdateInstance(
	ctx context.Context, inst *Instance,
) error {
	data, err := json.Marshal(inst)
	if err != nil {
		return err
	}
	ok, err := r.client.SetXX(ctx, r.instanceKey(inst.ID), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, inst.ID)
	}
	return nil
}

func (r *RedisHistory) ListInstances(
	ctx context.Context, status Status,
) ([]*Instance, error) {
	ids, err := r.client.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, err
	}
	var res []*Instance
	for _, id := range ids {
		inst, err := r.GetInstance(ctx, api.RunID(id))
		if errors.Is(err, ErrInstanceNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if status == "" || inst.Status == status {
			res = append(res, inst)
		}
	}
	return res, nil
}

func (r *RedisHistory) AppendStep(
	ctx context.Context, id api.RunID, rec *StepRecord,
) error {
	return r.push(ctx, r.instanceKey(id)+":steps", rec)
}

func (r *RedisHistory) Steps(
	ctx context.Context, id api.RunID,
) ([]*StepRecord, error) {
	return readList[StepRecord](ctx, r.client, r.instanceKey(id)+":steps")
}

func (r *RedisHistory) AppendEvent(
	ctx context.Context, id api.RunID, ev *EventRecord,
) error {
	return r.push(ctx, r.instanceKey(id)+":events", ev)
}

func (r *RedisHistory) Events(
	ctx context.Context, id api.RunID,
) ([]*EventRecord, error) {
	return readList[EventRecord](ctx, r.client, r.instanceKey(id)+":events")
}

func (r *RedisHistory) Close() error {
	return r.client.Close()
}

func (r *RedisHistory) push(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.client.RPush(ctx, key, data).Err()
}

func (r *RedisHistory) instanceKey(id api.RunID) string {
	return r.prefix + ":instance:" + string(id)
}

func (r *RedisHistory) indexKey() string {
	return r.prefix + ":instances"
}

func readList[T any](
	ctx context.Context, client *redis.Client, key string,
) ([]*T, error) {
	raw, err := client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	res := make([]*T, 0, len(raw))
	for _, item := range raw {
		var v T
		if err := json.Unmarshal([]byte(item), &v); err != nil {
			return nil, err
		}
		res = append(res, &v)
	}
	return res, nil
}
