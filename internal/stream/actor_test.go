package stream

import (
	"context"
	"testing"
	"time"

	"github.com/danphilibin/relay/internal/assert"
	"github.com/danphilibin/relay/pkg/api"
)

func readers(hub *Hub, runID api.RunID) int {
	var n int
	_ = hub.exec(context.Background(), runID, func(a *runActor) error {
		n = len(a.subs)
		return nil
	})
	return n
}

func TestCancelledSubscribeLeavesNoReader(t *testing.T) {
	as := assert.New(t)
	hub := NewHub(NewMemoryStore(), 0)
	defer func() { _ = hub.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for range 200 {
		if sub, err := hub.Subscribe(ctx, "run"); err == nil {
			sub.Close()
		}
	}

	as.Eventually(func() bool {
		return readers(hub, "run") == 0
	}, 2*time.Second, "cancelled readers should not stay attached")

	live, err := hub.Subscribe(context.Background(), "run")
	as.NoError(err)
	defer live.Close()
	as.Equal(1, readers(hub, "run"))
}

func TestIdleActorRetiresAfterCancelledSubscribe(t *testing.T) {
	as := assert.New(t)
	hub := NewHub(NewMemoryStore(), 10*time.Millisecond)
	defer func() { _ = hub.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _ = hub.Subscribe(ctx, "run")

	as.Eventually(func() bool {
		hub.mu.Lock()
		defer hub.mu.Unlock()
		_, ok := hub.actors["run"]
		return !ok
	}, 2*time.Second, "actor should retire once idle")
}
