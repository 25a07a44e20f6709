package stream

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/kode4food/caravan/message"
	"github.com/kode4food/caravan/topic"

	"github.com/danphilibin/relay/pkg/api"
	"github.com/danphilibin/relay/pkg/log"
	"github.com/danphilibin/relay/pkg/util"
)

type (
	runActor struct {
		hub     *Hub
		runID   api.RunID
		mailbox topic.Topic[op]
		prod    topic.Producer[op]
		cons    topic.Consumer[op]
		pending atomic.Int64

		// owned by the actor goroutine
		loaded bool
		log    []*api.Message
		keys   util.Set[string]
		subs   map[*Subscription]struct{}
	}

	op func()
)

func (a *runActor) run() {
	defer a.hub.wg.Done()

	var idle <-chan time.Time
	var timer *time.Timer
	if a.hub.idle > 0 {
		timer = time.NewTimer(a.hub.idle)
		defer timer.Stop()
		idle = timer.C
	}

	for {
		select {
		case fn, ok := <-a.cons.Receive():
			if !ok {
				a.closeSubscriptions()
				return
			}
			a.runOp(fn)
			if timer != nil {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(a.hub.idle)
			}

		case <-idle:
			if a.hub.retire(a) {
				a.closeMailbox()
				return
			}
			timer.Reset(a.hub.idle)

		case <-a.hub.ctx.Done():
			a.closeSubscriptions()
			return
		}
	}
}

// submit hands fn to the actor goroutine and waits for its result
func (a *runActor) submit(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	message.Send(a.prod, func() {
		done <- fn()
	})
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-a.hub.ctx.Done():
		return ErrHubClosed
	}
}

func (a *runActor) runOp(fn op) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Stream actor panic",
				log.RunID(a.runID),
				slog.Any("panic", r))
		}
	}()
	fn()
}

func (a *runActor) ensureLoaded() error {
	if a.loaded {
		return nil
	}
	msgs, err := a.hub.store.Load(a.hub.ctx, a.runID)
	if err != nil {
		return err
	}
	a.log = msgs
	a.keys = make(util.Set[string], len(msgs))
	for _, m := range msgs {
		a.keys.Add(m.Key())
	}
	a.loaded = true
	return nil
}

func (a *runActor) append(msg *api.Message) error {
	if err := a.ensureLoaded(); err != nil {
		return err
	}
	key := msg.Key()
	if a.keys.Contains(key) {
		slog.Debug("Duplicate message ignored",
			log.RunID(a.runID),
			log.MessageID(msg.ID),
			slog.String("type", string(msg.Type)))
		return nil
	}
	if err := a.hub.store.Append(a.hub.ctx, a.runID, msg); err != nil {
		return err
	}
	a.log = append(a.log, msg)
	a.keys.Add(key)

	for sub := range a.subs {
		if !sub.push(msg) {
			delete(a.subs, sub)
		}
	}
	return nil
}

func (a *runActor) subscribe(sub *Subscription) error {
	if sub.isClosed() {
		return nil
	}
	if err := a.ensureLoaded(); err != nil {
		return err
	}
	sub.pushAll(a.log)
	a.subs[sub] = struct{}{}
	return nil
}

func (a *runActor) unsubscribe(sub *Subscription) {
	delete(a.subs, sub)
}

func (a *runActor) closeSubscriptions() {
	for sub := range a.subs {
		sub.end()
		delete(a.subs, sub)
	}
}

func (a *runActor) closeMailbox() {
	a.prod.Close()
	a.cons.Close()
}
