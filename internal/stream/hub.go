package stream

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kode4food/caravan"

	"github.com/danphilibin/relay/pkg/api"
	"github.com/danphilibin/relay/pkg/log"
)

// Hub routes stream operations to the actor owning each run
type Hub struct {
	store  Store
	idle   time.Duration
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	actors map[api.RunID]*runActor
	closed bool
}

var (
	ErrHubClosed          = errors.New("stream hub closed")
	ErrSubscriptionClosed = errors.New("subscription closed")
	ErrDuplicateMessage   = errors.New("message already in stream")
)

// NewHub creates a hub over store. Actors with no readers and no traffic
// for idle are retired; zero keeps them for the life of the hub
func NewHub(store Store, idle time.Duration) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		store:  store,
		idle:   idle,
		ctx:    ctx,
		cancel: cancel,
		actors: map[api.RunID]*runActor{},
	}
}

// Append validates msg, persists it to the run's log and delivers it to
// every attached reader. A message whose key is already in the log is
// ignored, so replayed steps never duplicate output
func (h *Hub) Append(
	ctx context.Context, runID api.RunID, msg *api.Message,
) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	return h.exec(ctx, runID, func(a *runActor) error {
		return a.append(msg)
	})
}

// AppendFrom builds a message from the run's current log and appends it
// in the same actor operation, so no other append can interleave. An error
// from build is returned as is. A built message whose key is already in the
// log fails with ErrDuplicateMessage
func (h *Hub) AppendFrom(
	ctx context.Context, runID api.RunID,
	build func([]*api.Message) (*api.Message, error),
) error {
	return h.exec(ctx, runID, func(a *runActor) error {
		if err := a.ensureLoaded(); err != nil {
			return err
		}
		msg, err := build(a.log)
		if err != nil {
			return err
		}
		if err := msg.Validate(); err != nil {
			return err
		}
		if a.keys.Contains(msg.Key()) {
			return fmt.Errorf("%w: %s", ErrDuplicateMessage, msg.Key())
		}
		return a.append(msg)
	})
}

// Subscribe attaches a reader to the run. The reader first receives every
// persisted message, then live appends. Cancelling ctx closes the reader
func (h *Hub) Subscribe(
	ctx context.Context, runID api.RunID,
) (*Subscription, error) {
	sub := newSubscription(h, runID)
	err := h.exec(ctx, runID, func(a *runActor) error {
		return a.subscribe(sub)
	})
	if err != nil {
		// the queued op may still run after ctx ends
		sub.Close()
		return nil, err
	}
	sub.setStop(context.AfterFunc(ctx, sub.Close))
	return sub, nil
}

// Messages returns the full persisted log of the run
func (h *Hub) Messages(
	ctx context.Context, runID api.RunID,
) ([]*api.Message, error) {
	var res []*api.Message
	err := h.exec(ctx, runID, func(a *runActor) error {
		if err := a.ensureLoaded(); err != nil {
			return err
		}
		res = make([]*api.Message, len(a.log))
		copy(res, a.log)
		return nil
	})
	return res, err
}

// Close ends every subscription, stops all actors and closes the store
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.cancel()
	h.wg.Wait()

	h.mu.Lock()
	for id, a := range h.actors {
		if a.pending.Load() == 0 {
			a.closeMailbox()
		}
		delete(h.actors, id)
	}
	h.mu.Unlock()
	return h.store.Close()
}

func (h *Hub) unsubscribe(sub *Subscription) {
	a, ok := h.lookup(sub.runID)
	if !ok {
		return
	}
	defer a.pending.Add(-1)
	_ = a.submit(h.ctx, func() error {
		a.unsubscribe(sub)
		return nil
	})
}

func (h *Hub) exec(
	ctx context.Context, runID api.RunID, fn func(*runActor) error,
) error {
	a, err := h.acquire(runID)
	if err != nil {
		return err
	}
	defer a.pending.Add(-1)
	return a.submit(ctx, func() error {
		return fn(a)
	})
}

func (h *Hub) acquire(runID api.RunID) (*runActor, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrHubClosed
	}
	a, ok := h.actors[runID]
	if !ok {
		a = h.newActor(runID)
		h.actors[runID] = a
		h.wg.Add(1)
		go a.run()
	}
	a.pending.Add(1)
	return a, nil
}

func (h *Hub) lookup(runID api.RunID) (*runActor, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	a, ok := h.actors[runID]
	if ok {
		a.pending.Add(1)
	}
	return a, ok
}

func (h *Hub) newActor(runID api.RunID) *runActor {
	mailbox := caravan.NewTopic[op]()
	return &runActor{
		hub:     h,
		runID:   runID,
		mailbox: mailbox,
		prod:    mailbox.NewProducer(),
		cons:    mailbox.NewConsumer(),
		subs:    map[*Subscription]struct{}{},
	}
}

// retire removes an idle actor from the hub. It fails if a caller holds the
// actor or a reader is still attached
func (h *Hub) retire(a *runActor) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if a.pending.Load() != 0 || len(a.subs) != 0 {
		return false
	}
	delete(h.actors, a.runID)
	slog.Debug("Stream actor retired", log.RunID(a.runID))
	return true
}
