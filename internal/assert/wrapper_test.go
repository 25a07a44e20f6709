package assert

import (
	"errors"
	"testing"
	"time"

	"github.com/danphilibin/relay/internal/config"
	"github.com/danphilibin/relay/pkg/api"
)

func TestNew(t *testing.T) {
	wrapper := New(t)

	if wrapper.T != t {
		t.Error("Wrapper.T should be set to the testing.T instance")
	}
	if wrapper.Assertions == nil {
		t.Error("Wrapper.Assertions should be initialized")
	}
	if wrapper.Require == nil {
		t.Error("Wrapper.Require should be initialized")
	}
}

func TestMessageIDs(t *testing.T) {
	w := New(t)
	w.MessageIDs(nil)
	w.MessageIDs([]*api.Message{
		api.NewLogMessage("a", "one"),
		api.NewLogMessage("b", "two"),
	}, "a", "b")
}

func TestMessageTypes(t *testing.T) {
	w := New(t)
	w.MessageTypes([]*api.Message{
		api.NewLogMessage("a", "one"),
		api.NewConfirmRequest("b", "Sure?"),
		api.NewWorkflowComplete(),
	}, api.MessageLog, api.MessageConfirmRequest, api.MessageWorkflowComplete)
}

func TestMessageValid(t *testing.T) {
	tests := []struct {
		name string
		msg  *api.Message
	}{
		{
			name: "output",
			msg: api.NewOutputMessage("relay-output-0",
				api.MarkdownBlock("**hi**"),
			),
		},
		{
			name: "input request",
			msg:  api.NewInputRequest("relay-input-1", "Name?", nil, nil),
		},
		{
			name: "confirm received",
			msg:  api.NewConfirmReceived("relay-confirm-2", true),
		},
		{
			name: "workflow complete",
			msg:  api.NewWorkflowComplete(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(t)
			w.MessageValid(tt.msg)
		})
	}
}

func TestMessageInvalid(t *testing.T) {
	tests := []struct {
		name     string
		msg      *api.Message
		contains string
	}{
		{
			name:     "unknown type",
			msg:      &api.Message{Type: "telegram", ID: "x"},
			contains: "telegram",
		},
		{
			name:     "missing id",
			msg:      &api.Message{Type: api.MessageLog, Text: "hi"},
			contains: "id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(t)
			w.MessageInvalid(tt.msg, tt.contains)
		})
	}
}

func TestConfigValid(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*config.Config)
	}{
		{
			name: "default config is valid",
			mod:  func(*config.Config) {},
		},
		{
			name: "minimum valid port",
			mod:  func(c *config.Config) { c.APIPort = 1 },
		},
		{
			name: "maximum valid port",
			mod:  func(c *config.Config) { c.APIPort = config.MaxTCPPort },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewDefaultConfig()
			tt.mod(cfg)
			w := New(t)
			w.ConfigValid(cfg)
		})
	}
}

func TestConfigInvalid(t *testing.T) {
	tests := []struct {
		name     string
		mod      func(*config.Config)
		contains string
	}{
		{
			name:     "invalid port zero",
			mod:      func(c *config.Config) { c.APIPort = 0 },
			contains: "port",
		},
		{
			name:     "invalid port too large",
			mod:      func(c *config.Config) { c.APIPort = 65536 },
			contains: "port",
		},
		{
			name:     "invalid input timeout",
			mod:      func(c *config.Config) { c.InputTimeout = -1 },
			contains: "timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewDefaultConfig()
			tt.mod(cfg)
			w := New(t)
			w.ConfigInvalid(cfg, tt.contains)
		})
	}
}

func TestEventually(t *testing.T) {
	tests := []struct {
		name      string
		condition func() bool
	}{
		{
			name:      "condition passes immediately",
			condition: func() bool { return true },
		},
		{
			name: "condition passes after retries",
			condition: func() func() bool {
				attempts := 0
				return func() bool {
					attempts++
					return attempts >= 3
				}
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(t)
			w.Eventually(tt.condition, time.Second, "condition should pass")
		})
	}
}

func TestEventuallyWithError(t *testing.T) {
	tests := []struct {
		name      string
		condition func() error
	}{
		{
			name:      "condition succeeds immediately",
			condition: func() error { return nil },
		},
		{
			name: "condition succeeds after retries",
			condition: func() func() error {
				attempts := 0
				return func() error {
					attempts++
					if attempts >= 3 {
						return nil
					}
					return errors.New("not ready yet")
				}
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(t)
			w.EventuallyWithError(
				tt.condition, time.Second, "condition should succeed",
			)
		})
	}
}
