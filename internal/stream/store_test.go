package stream_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gocloud.dev/blob/memblob"

	"github.com/danphilibin/relay/internal/assert"
	"github.com/danphilibin/relay/internal/config"
	"github.com/danphilibin/relay/internal/stream"
	"github.com/danphilibin/relay/pkg/api"
)

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) stream.Store{
		"memory": func(*testing.T) stream.Store {
			return stream.NewMemoryStore()
		},
		"redis": func(t *testing.T) stream.Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			return stream.NewRedisStore(client, "test")
		},
		"blob": func(*testing.T) stream.Store {
			return stream.NewBlobStore(memblob.OpenBucket(nil), "runs")
		},
	}

	for name, open := range stores {
		t.Run(name, func(t *testing.T) {
			as := assert.New(t)
			store := open(t)
			defer func() { _ = store.Close() }()

			ctx := context.Background()
			msgs, err := store.Load(ctx, "run")
			as.NoError(err)
			as.Empty(msgs)

			input := api.NewInputRequest("relay-input-1", "Name?", nil, nil)
			as.NoError(store.Append(ctx, "run",
				api.NewOutputMessage("relay-output-0", api.MarkdownBlock("hi")),
			))
			as.NoError(store.Append(ctx, "run", input))
			as.NoError(store.Append(ctx, "run",
				api.NewInputReceived("relay-input-1", map[string]any{
					"input": "Ada",
				}),
			))

			msgs, err = store.Load(ctx, "run")
			as.NoError(err)
			as.MessageIDs(msgs,
				"relay-output-0", "relay-input-1", "relay-input-1",
			)
			as.Equal(input, msgs[1])
			as.Equal("Ada", msgs[2].Value["input"])

			other, err := store.Load(ctx, "other")
			as.NoError(err)
			as.Empty(other)
		})
	}
}

func TestHubOverRedisSurvivesRestart(t *testing.T) {
	as := assert.New(t)
	mr := miniredis.RunT(t)
	ctx := context.Background()

	open := func() *stream.Hub {
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		return stream.NewHub(stream.NewRedisStore(client, "relay"), 0)
	}

	hub := open()
	as.NoError(hub.Append(ctx, "run", api.NewLogMessage("m0", "zero")))
	as.NoError(hub.Close())

	hub = open()
	defer func() { _ = hub.Close() }()

	as.NoError(hub.Append(ctx, "run", api.NewLogMessage("m0", "zero")))
	as.NoError(hub.Append(ctx, "run", api.NewLogMessage("m1", "one")))

	msgs, err := hub.Messages(ctx, "run")
	as.NoError(err)
	as.MessageIDs(msgs, "m0", "m1")
}

func TestNewStore(t *testing.T) {
	as := assert.New(t)
	ctx := context.Background()

	cfg := config.NewDefaultConfig().Stream
	store, err := stream.NewStore(ctx, cfg)
	as.NoError(err)
	as.IsType(&stream.MemoryStore{}, store)

	cfg.Backend = config.BackendBlob
	cfg.BlobURL = "mem://"
	store, err = stream.NewStore(ctx, cfg)
	as.NoError(err)
	as.IsType(&stream.BlobStore{}, store)
	as.NoError(store.Close())

	mr := miniredis.RunT(t)
	cfg.Backend = config.BackendRedis
	cfg.Redis.Addr = mr.Addr()
	store, err = stream.NewStore(ctx, cfg)
	as.NoError(err)
	as.IsType(&stream.RedisStore{}, store)
	as.NoError(store.Close())

	cfg.Backend = "tape"
	_, err = stream.NewStore(ctx, cfg)
	as.ErrorIs(err, stream.ErrUnknownBackend)
}
