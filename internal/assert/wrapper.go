package assert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/danphilibin/relay/internal/config"
	"github.com/danphilibin/relay/pkg/api"
)

// Wrapper wraps testify assertions with relay-specific helpers
type Wrapper struct {
	*testing.T
	*assert.Assertions
	Require *assert.Assertions
}

// DefaultRetryInterval is the default polling interval for Eventually checks
const DefaultRetryInterval = 10 * time.Millisecond

// New creates a new test assertion wrapper with both assert and require from
// testify plus relay-specific helpers
func New(t *testing.T) *Wrapper {
	return &Wrapper{
		T:          t,
		Assertions: assert.New(t),
		Require:    assert.New(t),
	}
}

// MessageIDs asserts that msgs carry exactly the given ids, in order
func (w *Wrapper) MessageIDs(msgs []*api.Message, ids ...api.MessageID) {
	w.Helper()
	got := make([]api.MessageID, len(msgs))
	for i, msg := range msgs {
		got[i] = msg.ID
	}
	if len(ids) == 0 {
		ids = []api.MessageID{}
	}
	w.Equal(ids, got)
}

// MessageTypes asserts that msgs carry exactly the given types, in order
func (w *Wrapper) MessageTypes(msgs []*api.Message, types ...api.MessageType) {
	w.Helper()
	got := make([]api.MessageType, len(msgs))
	for i, msg := range msgs {
		got[i] = msg.Type
	}
	if len(types) == 0 {
		types = []api.MessageType{}
	}
	w.Equal(types, got)
}

// MessageValid asserts that a message passes validation
func (w *Wrapper) MessageValid(msg *api.Message) {
	w.Helper()
	w.NoError(msg.Validate())
	w.NotEmpty(msg.ID)
}

// MessageInvalid asserts that a message fails validation and returns the
// validation error
func (w *Wrapper) MessageInvalid(
	msg *api.Message, expectedErrorContains string,
) error {
	w.Helper()
	err := msg.Validate()
	w.ErrorIs(err, api.ErrInvalidMessage)
	if err != nil && expectedErrorContains != "" {
		w.Contains(err.Error(), expectedErrorContains)
	}
	return err
}

// ConfigValid asserts that a configuration is valid
func (w *Wrapper) ConfigValid(cfg *config.Config) {
	w.Helper()
	w.NoError(cfg.Validate())
	w.True(cfg.APIPort > 0 && cfg.APIPort <= config.MaxTCPPort)
	w.True(cfg.InputTimeout > 0)
	w.True(cfg.ResponseTimeout > 0)
}

// ConfigInvalid asserts that a configuration is invalid
func (w *Wrapper) ConfigInvalid(cfg *config.Config, contains string) {
	w.Helper()
	err := cfg.Validate()
	w.Error(err)
	if err != nil && contains != "" {
		w.Contains(err.Error(), contains)
	}
}

// Eventually runs a condition repeatedly until it passes or times out
func (w *Wrapper) Eventually(
	condition func() bool, timeout time.Duration, msg string, args ...any,
) {
	w.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(DefaultRetryInterval)
	}
	w.Fail(msg, args...)
}

// EventuallyWithError runs a condition that returns an error until it succeeds
// or times out
func (w *Wrapper) EventuallyWithError(
	condition func() error, timeout time.Duration, msg string, args ...any,
) {
	w.Helper()
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		err := condition()
		if err == nil {
			return
		}
		lastErr = err
		time.Sleep(DefaultRetryInterval)
	}
	if lastErr != nil {
		w.Fail(msg+": last error: "+lastErr.Error(), args...)
		return
	}
	w.Fail(msg, args...)
}
