package wait_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/danphilibin/relay/internal/assert/wait"
	"github.com/danphilibin/relay/internal/stream"
	"github.com/danphilibin/relay/pkg/api"
)

func TestTypesFilter(t *testing.T) {
	filter := wait.Types(api.MessageLog, api.MessageOutput)
	assert.False(t, filter(nil))
	assert.True(t, filter(api.NewLogMessage("a", "hi")))
	assert.False(t, filter(api.NewWorkflowComplete()))
	assert.False(t, wait.Types()(api.NewLogMessage("a", "hi")))
}

func TestIDsFilter(t *testing.T) {
	filter := wait.IDs("a", "b")
	assert.True(t, filter(api.NewLogMessage("a", "one")))
	assert.True(t, filter(api.NewLogMessage("b", "two")))
	assert.False(t, filter(api.NewLogMessage("c", "three")))
}

func TestAndFilter(t *testing.T) {
	filter := wait.And(wait.Type(api.MessageLog), wait.IDs("a"))
	assert.True(t, filter(api.NewLogMessage("a", "one")))
	assert.False(t, filter(api.NewLogMessage("b", "two")))
	assert.False(t, filter(api.NewConfirmRequest("a", "Sure?")))
}

func TestForMessagesOnSubscription(t *testing.T) {
	hub := stream.NewHub(stream.NewMemoryStore(), 0)
	defer func() { _ = hub.Close() }()

	ctx := context.Background()
	sub, err := hub.Subscribe(ctx, "run")
	assert.NoError(t, err)
	defer sub.Close()

	assert.NoError(t, hub.Append(ctx, "run", api.NewLogMessage("m0", "hi")))
	assert.NoError(t, hub.Append(ctx, "run",
		api.NewConfirmRequest("relay-confirm-1", "Sure?"),
	))
	assert.NoError(t, hub.Append(ctx, "run", api.NewWorkflowComplete()))

	w := wait.On(t, sub)
	req := w.ForInteraction()
	assert.Equal(t, api.MessageID("relay-confirm-1"), req.ID)
	done := w.ForCompletion()
	assert.Equal(t, api.WorkflowCompleteID, done.ID)
}
