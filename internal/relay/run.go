package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/danphilibin/relay/internal/durable"
	"github.com/danphilibin/relay/pkg/api"
)

type (
	// Appender persists a message to a run's stream
	Appender interface {
		Append(ctx context.Context, runID api.RunID, msg *api.Message) error
	}

	// Run is the handle a workflow handler uses to talk to its user
	Run struct {
		step         *durable.Step
		stream       Appender
		data         map[string]any
		inputTimeout time.Duration
	}

	// Loader lets a loading body replace the text shown on completion
	Loader struct {
		text string
	}
)

const (
	prefixOutput  = "output"
	prefixInput   = "input"
	prefixConfirm = "confirm"
	prefixLoading = "loading"
)

// ID returns the run id
func (r *Run) ID() api.RunID {
	return r.step.RunID()
}

// Data returns the upfront input the run was started with
func (r *Run) Data() map[string]any {
	return r.data
}

// Step exposes the durable step handle for user-defined steps. Steps issued
// through it advance the same position that names relay primitives
func (r *Run) Step() *durable.Step {
	return r.step
}

// Output emits a markdown block
func (r *Run) Output(ctx context.Context, markdown string) error {
	return r.Markdown(ctx, markdown)
}

// Log emits a plain text log line
func (r *Run) Log(ctx context.Context, text string) error {
	return r.emit(ctx, func(id api.MessageID) *api.Message {
		return api.NewLogMessage(id, text)
	})
}

// Markdown emits a markdown block
func (r *Run) Markdown(ctx context.Context, content string) error {
	return r.Block(ctx, api.MarkdownBlock(content))
}

// Text emits a plain text block
func (r *Run) Text(ctx context.Context, text string) error {
	return r.Block(ctx, api.TextBlock(text))
}

// Table emits a table block
func (r *Run) Table(
	ctx context.Context, title string, columns []string, rows [][]string,
) error {
	return r.Block(ctx, api.TableBlock(title, columns, rows))
}

// Code emits a code block
func (r *Run) Code(ctx context.Context, code, language string) error {
	return r.Block(ctx, api.CodeBlock(code, language))
}

// Image emits an image block
func (r *Run) Image(ctx context.Context, src, alt string) error {
	return r.Block(ctx, api.ImageBlock(src, alt))
}

// Link emits a link block
func (r *Run) Link(ctx context.Context, url, title, description string) error {
	return r.Block(ctx, api.LinkBlock(url, title, description))
}

// Buttons emits a row of buttons
func (r *Run) Buttons(ctx context.Context, buttons ...api.OutputButton) error {
	return r.Block(ctx, api.ButtonsBlock(buttons...))
}

// Block emits any output block. An invalid block fails before anything is
// recorded
func (r *Run) Block(ctx context.Context, block *api.OutputBlock) error {
	if err := block.Validate(); err != nil {
		return err
	}
	return r.emit(ctx, func(id api.MessageID) *api.Message {
		return api.NewOutputMessage(id, block)
	})
}

// Input asks for a single text value and waits for the answer
func (r *Run) Input(ctx context.Context, prompt string) (string, error) {
	value, err := r.Form(ctx, prompt, nil)
	if err != nil {
		return "", err
	}
	switch v := value[api.DefaultInputKey].(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	default:
		return fmt.Sprint(v), nil
	}
}

// Form asks for the fields of schema and waits for the answer. A nil schema
// asks for a single text field keyed "input"
func (r *Run) Form(
	ctx context.Context, prompt string, schema api.InputSchema,
	buttons ...api.InputButton,
) (map[string]any, error) {
	id := r.nextID(prefixInput)
	req := api.NewInputRequest(id, prompt, schema, buttons)
	if err := req.Validate(); err != nil {
		return nil, err
	}

	payload, err := r.ask(ctx, id, req)
	if err != nil {
		return nil, err
	}
	return api.DecodeInputValue(payload)
}

// Confirm asks for approval and waits for the decision
func (r *Run) Confirm(ctx context.Context, message string) (bool, error) {
	id := r.nextID(prefixConfirm)
	req := api.NewConfirmRequest(id, message)
	if err := req.Validate(); err != nil {
		return false, err
	}

	payload, err := r.ask(ctx, id, req)
	if err != nil {
		return false, err
	}
	return api.DecodeApproved(payload)
}

// Loading shows text while body runs, then marks it complete. Body may
// call other primitives and may replace the completion text through the
// Loader. If body fails, no completion is emitted
func (r *Run) Loading(
	ctx context.Context, text string,
	body func(ctx context.Context, l *Loader) error,
) error {
	id := r.nextID(prefixLoading)
	start := api.NewLoadingMessage(id, text, false)
	if err := r.append(ctx, string(id)+"-start", start); err != nil {
		return err
	}

	l := &Loader{text: text}
	if err := body(ctx, l); err != nil {
		return err
	}

	done := api.NewLoadingMessage(id, l.text, true)
	return r.append(ctx, string(id)+"-complete", done)
}

// Complete sets the text shown once loading finishes
func (l *Loader) Complete(text string) {
	l.text = text
}

func (r *Run) emit(
	ctx context.Context, build func(id api.MessageID) *api.Message,
) error {
	id := r.nextID(prefixOutput)
	return r.append(ctx, string(id), build(id))
}

func (r *Run) ask(
	ctx context.Context, id api.MessageID, req *api.Message,
) (json.RawMessage, error) {
	if err := r.append(ctx, string(id)+"-request", req); err != nil {
		return nil, err
	}
	return r.step.WaitForEvent(ctx, string(id), r.inputTimeout)
}

// append records msg in the stream inside a durable step, so a replayed
// handler skips it. The hub ignores a duplicate key in case the process
// died between the append and the step record
func (r *Run) append(
	ctx context.Context, stepName string, msg *api.Message,
) error {
	_, err := r.step.Do(ctx, stepName, func(ctx context.Context) (any, error) {
		return true, r.stream.Append(ctx, r.ID(), msg)
	})
	return err
}

func (r *Run) nextID(prefix string) api.MessageID {
	return api.MessageID(
		fmt.Sprintf("relay-%s-%d", prefix, r.step.Position()),
	)
}
