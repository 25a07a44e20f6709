package callresponse

import (
	"context"

	"github.com/danphilibin/relay/pkg/api"
)

type (
	// Source is an ordered, replaying cursor over one run's messages
	Source interface {
		Next(ctx context.Context) (*api.Message, error)
		TryNext() (*api.Message, bool)
	}

	// Batch is what a consumer collected before it stopped. Interaction is
	// the unanswered request the run waits on; Terminal reports that the
	// workflow_complete marker was reached. When both are unset the result
	// is inconclusive: the stream ended or the wait budget ran out
	Batch struct {
		Messages    []*api.Message
		Interaction *api.Message
		Terminal    bool
	}

	consumer struct {
		src       Source
		lookahead *api.Message
	}
)

// ConsumeUntilInteraction reads src until the run pauses on an unanswered
// request or completes. When afterID is set, every message up to and
// including the first one carrying that id is skipped, along with the
// messages immediately following it that share the id. A request directly
// followed by its answer is collected as resolved, never returned as the
// interaction. Running out of stream or time yields an inconclusive Batch
func ConsumeUntilInteraction(
	ctx context.Context, src Source, afterID api.MessageID,
) *Batch {
	c := &consumer{src: src}
	res := &Batch{}

	if afterID != "" && !c.skipThrough(ctx, afterID) {
		return res
	}

	for {
		msg, ok := c.next(ctx)
		if !ok {
			return res
		}
		res.Messages = append(res.Messages, msg)

		switch {
		case msg.Type == api.MessageWorkflowComplete:
			res.Terminal = true
			return res
		case msg.IsRequest():
			if answer, ok := c.answerFor(msg); ok {
				res.Messages = append(res.Messages, answer)
				continue
			}
			res.Interaction = msg
			return res
		}
	}
}

func (c *consumer) skipThrough(ctx context.Context, id api.MessageID) bool {
	for {
		msg, ok := c.next(ctx)
		if !ok {
			return false
		}
		if msg.ID == id {
			break
		}
	}
	for {
		msg, ok := c.src.TryNext()
		if !ok {
			return true
		}
		if msg.ID != id {
			c.lookahead = msg
			return true
		}
	}
}

// answerFor looks at the next already-delivered message without blocking
// and consumes it only if it answers req
func (c *consumer) answerFor(req *api.Message) (*api.Message, bool) {
	msg := c.lookahead
	if msg == nil {
		var ok bool
		if msg, ok = c.src.TryNext(); !ok {
			return nil, false
		}
	}
	if msg.Answers(req) {
		c.lookahead = nil
		return msg, true
	}
	c.lookahead = msg
	return nil, false
}

func (c *consumer) next(ctx context.Context) (*api.Message, bool) {
	if msg := c.lookahead; msg != nil {
		c.lookahead = nil
		return msg, true
	}
	msg, err := c.src.Next(ctx)
	if err != nil {
		return nil, false
	}
	return msg, true
}
