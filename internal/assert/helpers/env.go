package helpers

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/danphilibin/relay/internal/callresponse"
	"github.com/danphilibin/relay/internal/config"
	"github.com/danphilibin/relay/internal/durable"
	"github.com/danphilibin/relay/internal/relay"
	"github.com/danphilibin/relay/internal/stream"
)

type (
	// TestEnv holds a complete relay runtime wired over test stores
	TestEnv struct {
		Config       *config.Config
		Registry     *relay.Registry
		Hub          *stream.Hub
		Host         *durable.Host
		Runner       *relay.Runner
		Orchestrator *callresponse.Orchestrator
		Redis        *miniredis.Miniredis

		open storeOpener
	}

	storeOpener func() (stream.Store, durable.HistoryStore)
)

// NewTestEnv creates a runtime over in-memory stores with defs registered.
// Everything is shut down when the test ends
func NewTestEnv(t *testing.T, defs ...*relay.Definition) *TestEnv {
	t.Helper()
	streams := stream.NewMemoryStore()
	history := durable.NewMemoryHistory()
	return newTestEnv(t, func() (stream.Store, durable.HistoryStore) {
		return streams, history
	}, defs)
}

// NewRedisTestEnv creates a runtime whose stream and history stores live
// in a miniredis server
func NewRedisTestEnv(t *testing.T, defs ...*relay.Definition) *TestEnv {
	t.Helper()
	server := NewTestRedis(t)
	env := newTestEnv(t, func() (stream.Store, durable.HistoryStore) {
		streams := redis.NewClient(&redis.Options{Addr: server.Addr()})
		history := redis.NewClient(&redis.Options{Addr: server.Addr()})
		return stream.NewRedisStore(streams, "test-stream"),
			durable.NewRedisHistory(history, "test-history")
	}, defs)
	env.Redis = server
	return env
}

func newTestEnv(
	t *testing.T, open storeOpener, defs []*relay.Definition,
) *TestEnv {
	t.Helper()
	registry := relay.NewRegistry()
	for _, def := range defs {
		require.NoError(t, registry.Register(def))
	}

	env := &TestEnv{
		Config:   NewTestConfig(),
		Registry: registry,
		open:     open,
	}
	env.start(t)
	t.Cleanup(env.stop)
	return env
}

// Restart simulates a process restart: executing runs are interrupted, a
// new hub and host are opened over the same stores and every unfinished
// run is recovered
func (e *TestEnv) Restart(t *testing.T) int {
	t.Helper()
	e.stop()
	e.start(t)
	n, err := e.Host.Recover(context.Background())
	require.NoError(t, err)
	return n
}

func (e *TestEnv) start(t *testing.T) {
	t.Helper()
	streams, history := e.open()
	e.Hub = stream.NewHub(streams, e.Config.ActorIdleTimeout)
	e.Host = durable.NewHost(history)
	e.Runner = relay.NewRunner(e.Registry, e.Hub, e.Config.InputTimeout)
	require.NoError(t, e.Runner.Register(e.Host))
	e.Orchestrator = callresponse.New(e.Registry, e.Hub, e.Host,
		callresponse.Options{
			AppURL:          e.Config.AppURL,
			ResponseTimeout: e.Config.ResponseTimeout,
		},
	)
}

func (e *TestEnv) stop() {
	_ = e.Host.Close()
	_ = e.Hub.Close()
}
