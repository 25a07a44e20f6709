package agent_test

import (
	"strings"
	"testing"

	"github.com/danphilibin/relay/internal/agent"
	"github.com/danphilibin/relay/internal/assert"
	"github.com/danphilibin/relay/pkg/api"
)

func messages(msgs ...*api.Message) []api.Message {
	res := make([]api.Message, len(msgs))
	for i, m := range msgs {
		res[i] = *m
	}
	return res
}

func TestFormatAwaitingInput(t *testing.T) {
	as := assert.New(t)

	req := api.NewInputRequest("relay-input-1", "Name?", nil, nil)
	res := &api.CallResponseResult{
		RunID:  "run-1",
		Status: api.StatusAwaitingInput,
		Messages: messages(
			api.NewOutputMessage("relay-output-0", api.MarkdownBlock("Hello")),
			req,
		),
		Interaction: req,
	}

	expected := strings.Join([]string{
		"Hello",
		"",
		"[Workflow paused - awaiting_input]",
		"Run ID: run-1",
		"Event: relay-input-1",
		"Prompt: Name?",
		"Fields:",
		"- input (text): Name?",
		"Buttons: Continue",
		"",
		"Use relay_respond to continue this workflow.",
	}, "\n")
	as.Equal(expected, agent.FormatForAgent(res))
}

func TestFormatAwaitingConfirm(t *testing.T) {
	as := assert.New(t)

	req := api.NewConfirmRequest("relay-confirm-3", "Refund $150?")
	res := &api.CallResponseResult{
		RunID:  "run-2",
		Status: api.StatusAwaitingConfirm,
		Messages: messages(
			api.NewInputReceived("relay-input-1", map[string]any{
				"amount": float64(150),
			}),
			api.NewOutputMessage("relay-output-2",
				api.MarkdownBlock("Processing refund for $150..."),
			),
			req,
		),
		Interaction: req,
	}

	expected := strings.Join([]string{
		`[Input received] {"amount":150}`,
		"Processing refund for $150...",
		"",
		"[Workflow paused - awaiting_confirm]",
		"Run ID: run-2",
		"Event: relay-confirm-3",
		"Confirm: Refund $150?",
		"",
		"Use relay_respond to continue this workflow.",
	}, "\n")
	as.Equal(expected, agent.FormatForAgent(res))
}

func TestFormatSelectFields(t *testing.T) {
	as := assert.New(t)

	schema := api.InputSchema{
		{Key: "reason", FieldDef: api.FieldDef{
			Type: api.FieldSelect, Label: "Reason",
			Options: []api.SelectOption{
				{Value: "defective", Label: "Defective"},
				{Value: "other", Label: "Other"},
			},
		}},
		{Key: "detail", FieldDef: api.FieldDef{
			Type: api.FieldText, Label: "Detail",
			Description: "Anything else?",
		}},
	}
	req := api.NewInputRequest("relay-input-4", "Refund reason", schema,
		[]api.InputButton{
			{Label: "Submit"},
			{Label: "Cancel", Intent: api.IntentDanger},
		},
	)
	res := &api.CallResponseResult{
		RunID:       "run-3",
		Status:      api.StatusAwaitingInput,
		Messages:    messages(req),
		Interaction: req,
	}

	out := agent.FormatForAgent(res)
	as.Contains(out,
		"Fields:\n"+
			"- reason (select): Reason [options: defective, other]\n"+
			"- detail (text): Anything else?\n"+
			"Buttons: Submit, Cancel",
	)
	as.False(strings.HasPrefix(out, "[Input requested]"))
}

func TestFormatComplete(t *testing.T) {
	as := assert.New(t)

	res := &api.CallResponseResult{
		RunID:  "run-4",
		Status: api.StatusComplete,
		Messages: messages(
			api.NewInputReceived("relay-input-1", map[string]any{
				"input": "Ada",
			}),
			api.NewOutputMessage("relay-output-3",
				api.MarkdownBlock("Nice to meet you, Ada!"),
			),
			api.NewWorkflowComplete(),
		),
	}
	as.Equal(strings.Join([]string{
		`[Input received] {"input":"Ada"}`,
		"Nice to meet you, Ada!",
		"[Workflow complete]",
	}, "\n"), agent.FormatForAgent(res))

	res.Messages = res.Messages[:2]
	as.True(strings.HasSuffix(
		agent.FormatForAgent(res), "\n[Workflow complete]",
	))
}

func TestFormatFailed(t *testing.T) {
	as := assert.New(t)

	res := &api.CallResponseResult{
		RunID:    "run-5",
		Status:   api.StatusComplete,
		Messages: messages(api.NewWorkflowFailed("event timeout")),
	}
	as.Equal("[Workflow failed] event timeout", agent.FormatForAgent(res))
}

func TestFormatRunning(t *testing.T) {
	as := assert.New(t)

	res := &api.CallResponseResult{
		RunID:  "run-6",
		Status: api.StatusRunning,
		Messages: messages(
			api.NewLoadingMessage("relay-loading-0", "Working...", false),
		),
	}
	as.Equal(strings.Join([]string{
		"[Loading] Working...",
		"",
		"[Workflow running]",
		"Run ID: run-6",
		"",
		"Use relay_status to check on this workflow.",
	}, "\n"), agent.FormatForAgent(res))
}

func TestFormatBlocks(t *testing.T) {
	tests := []struct {
		name     string
		msg      *api.Message
		expected string
	}{
		{
			name:     "text",
			msg:      api.NewOutputMessage("a", api.TextBlock("plain")),
			expected: "plain",
		},
		{
			name:     "log",
			msg:      api.NewLogMessage("a", "legacy"),
			expected: "legacy",
		},
		{
			name: "table",
			msg: api.NewOutputMessage("a", api.TableBlock("People",
				[]string{"name"}, [][]string{{"Ada"}},
			)),
			expected: "[Table: People]",
		},
		{
			name: "untitled_table",
			msg: api.NewOutputMessage("a", api.TableBlock("",
				[]string{"name"}, [][]string{{"Ada"}},
			)),
			expected: "[Table]",
		},
		{
			name:     "code",
			msg:      api.NewOutputMessage("a", api.CodeBlock("ls", "bash")),
			expected: "[Code: bash] ls",
		},
		{
			name:     "plain_code",
			msg:      api.NewOutputMessage("a", api.CodeBlock("ls", "")),
			expected: "[Code: plain] ls",
		},
		{
			name: "image",
			msg: api.NewOutputMessage("a",
				api.ImageBlock("https://x/y.png", "A laptop"),
			),
			expected: "[Image: A laptop]",
		},
		{
			name: "image_without_alt",
			msg: api.NewOutputMessage("a",
				api.ImageBlock("https://x/y.png", ""),
			),
			expected: "[Image: https://x/y.png]",
		},
		{
			name: "link",
			msg: api.NewOutputMessage("a",
				api.LinkBlock("https://go.dev", "Go", "The Go site"),
			),
			expected: "[Link: Go]",
		},
		{
			name: "buttons",
			msg: api.NewOutputMessage("a", api.ButtonsBlock(
				api.OutputButton{Label: "Open"},
				api.OutputButton{Label: "Close", Intent: api.IntentDanger},
			)),
			expected: "[Buttons: Open, Close]",
		},
		{
			name:     "loading_complete",
			msg:      api.NewLoadingMessage("a", "Done!", true),
			expected: "[Loading complete] Done!",
		},
		{
			name:     "confirm_rejected",
			msg:      api.NewConfirmReceived("a", false),
			expected: "[Confirmation received] rejected",
		},
		{
			name:     "confirm_approved",
			msg:      api.NewConfirmReceived("a", true),
			expected: "[Confirmation received] approved",
		},
		{
			name:     "answered_request",
			msg:      api.NewConfirmRequest("a", "Sure?"),
			expected: "[Confirmation requested] Sure?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			as := assert.New(t)
			res := &api.CallResponseResult{
				Status:   api.StatusComplete,
				Messages: messages(tt.msg, api.NewWorkflowComplete()),
			}
			as.Equal(tt.expected+"\n[Workflow complete]",
				agent.FormatForAgent(res),
			)
		})
	}
}
