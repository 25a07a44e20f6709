package wait

import (
	"context"
	"testing"
	"time"

	"github.com/danphilibin/relay/pkg/api"
	"github.com/danphilibin/relay/pkg/util"
)

type (
	// Source yields the messages of one run in order
	Source interface {
		Next(ctx context.Context) (*api.Message, error)
	}

	Wait struct {
		t       *testing.T
		source  Source
		timeout time.Duration
	}

	Predicate[T any] func(T) bool

	MessageFilter Predicate[*api.Message]
)

const DefaultTimeout = time.Second * 5

func On(t *testing.T, source Source) *Wait {
	return &Wait{
		t:       t,
		source:  source,
		timeout: DefaultTimeout,
	}
}

func (w *Wait) WithTimeout(timeout time.Duration) *Wait {
	res := *w
	res.timeout = timeout
	return &res
}

// ForMessages reads from the source until count matching messages were
// seen and returns them
func (w *Wait) ForMessages(count int, filter MessageFilter) []*api.Message {
	w.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	var res []*api.Message
	for len(res) < count {
		msg, err := w.source.Next(ctx)
		if err != nil {
			w.t.Fatalf("waiting for %d messages: %v", count, err)
		}
		if filter(msg) {
			res = append(res, msg)
		}
	}
	return res
}

// ForMessage waits for a single matching message
func (w *Wait) ForMessage(filter MessageFilter) *api.Message {
	w.t.Helper()
	return w.ForMessages(1, filter)[0]
}

// ForInteraction waits for the next unanswered request of the run
func (w *Wait) ForInteraction() *api.Message {
	w.t.Helper()
	return w.ForMessage(Request())
}

// ForCompletion waits for the workflow_complete marker
func (w *Wait) ForCompletion() *api.Message {
	w.t.Helper()
	return w.ForMessage(Type(api.MessageWorkflowComplete))
}

// And composes message filters and returns true when all match
func And(filters ...MessageFilter) MessageFilter {
	return func(msg *api.Message) bool {
		for _, filter := range filters {
			if !filter(msg) {
				return false
			}
		}
		return true
	}
}

// Type creates a filter for a single message type
func Type(msgType api.MessageType) MessageFilter {
	return Types(msgType)
}

// Types creates a filter for the given message types
func Types(msgTypes ...api.MessageType) MessageFilter {
	if len(msgTypes) == 0 {
		return func(*api.Message) bool { return false }
	}
	lookup := util.SetOf(msgTypes...)
	return func(msg *api.Message) bool {
		return msg != nil && lookup.Contains(msg.Type)
	}
}

// IDs matches messages carrying one of the given ids
func IDs(ids ...api.MessageID) MessageFilter {
	lookup := util.SetOf(ids...)
	return func(msg *api.Message) bool {
		return msg != nil && lookup.Contains(msg.ID)
	}
}

// Request matches input and confirm requests
func Request() MessageFilter {
	return func(msg *api.Message) bool {
		return msg != nil && msg.IsRequest()
	}
}

// Any matches every message
func Any() MessageFilter {
	return func(*api.Message) bool { return true }
}
