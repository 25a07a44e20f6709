package log_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/danphilibin/relay/pkg/api"
	"github.com/danphilibin/relay/pkg/log"
)

type errStub string

func TestRunID(t *testing.T) {
	attr := log.RunID(api.RunID("run-123"))
	assertAttrEqual(t, attr, "run_id", "run-123")
}

func TestWorkflow(t *testing.T) {
	attr := log.Workflow(api.Slug("ask-name"))
	assertAttrEqual(t, attr, "workflow", "ask-name")
}

func TestMessageID(t *testing.T) {
	attr := log.MessageID(api.MessageID("relay-input-0"))
	assertAttrEqual(t, attr, "message_id", "relay-input-0")
}

func TestStepAndEvent(t *testing.T) {
	assertAttrEqual(t, log.StepName("relay-output-1"), "step", "relay-output-1")
	assertAttrEqual(t, log.EventName("relay-input-0"), "event", "relay-input-0")
}

func TestStatus(t *testing.T) {
	attr := log.Status(api.StatusAwaitingInput)
	assertAttrEqual(t, attr, "status", "awaiting_input")
}

func TestError(t *testing.T) {
	attr := log.Error(nil)
	assertAttrEqual(t, attr, "error", "")

	attr = log.Error(errStub("boom"))
	assertAttrEqual(t, attr, "error", "boom")
}

func TestErrorString(t *testing.T) {
	attr := log.ErrorString("badness")
	assertAttrEqual(t, attr, "error", "badness")
}

func (e errStub) Error() string { return string(e) }

func assertAttrEqual(t *testing.T, attr slog.Attr, key, value string) {
	t.Helper()
	assert.Equal(t, key, attr.Key)
	assert.Equal(t, value, attr.Value.String())
}
