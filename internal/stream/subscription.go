package stream

import (
	"context"
	"sync"

	"github.com/danphilibin/relay/pkg/api"
)

// Subscription is an independent cursor over one run's log. Messages are
// queued without bound, so a slow reader never blocks an append
type Subscription struct {
	hub    *Hub
	runID  api.RunID
	notify chan struct{}
	stop   func() bool

	mu     sync.Mutex
	queue  []*api.Message
	closed bool
	once   sync.Once
}

func newSubscription(h *Hub, runID api.RunID) *Subscription {
	return &Subscription{
		hub:    h,
		runID:  runID,
		notify: make(chan struct{}, 1),
	}
}

// RunID returns the run this subscription reads from
func (s *Subscription) RunID() api.RunID {
	return s.runID
}

// Next blocks until a message is available. Queued messages are always
// drained before ErrSubscriptionClosed is reported
func (s *Subscription) Next(ctx context.Context) (*api.Message, error) {
	for {
		if msg, ok, closed := s.pop(); ok {
			return msg, nil
		} else if closed {
			return nil, ErrSubscriptionClosed
		}
		select {
		case <-s.notify:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// TryNext returns the next queued message without blocking
func (s *Subscription) TryNext() (*api.Message, bool) {
	msg, ok, _ := s.pop()
	return msg, ok
}

// Close detaches this reader from the run. Other readers are unaffected
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.end()
		s.mu.Lock()
		stop := s.stop
		s.mu.Unlock()
		if stop != nil {
			stop()
		}
		s.hub.unsubscribe(s)
	})
}

func (s *Subscription) setStop(stop func() bool) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		stop()
		return
	}
	s.stop = stop
	s.mu.Unlock()
}

func (s *Subscription) pop() (*api.Message, bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) > 0 {
		msg := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		return msg, true, false
	}
	return nil, false, s.closed
}

func (s *Subscription) push(msg *api.Message) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, msg)
	s.mu.Unlock()
	s.wake()
	return true
}

func (s *Subscription) pushAll(msgs []*api.Message) {
	s.mu.Lock()
	s.queue = append(s.queue, msgs...)
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// end marks the stream as finished. Already queued messages stay readable
func (s *Subscription) end() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wake()
}

func (s *Subscription) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}
