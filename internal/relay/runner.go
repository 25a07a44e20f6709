package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/danphilibin/relay/internal/durable"
	"github.com/danphilibin/relay/pkg/api"
	"github.com/danphilibin/relay/pkg/log"
)

type (
	// Params is the payload of a relay durable instance
	Params struct {
		Workflow api.Slug       `json:"workflow"`
		Data     map[string]any `json:"data,omitempty"`
	}

	// Runner is the single durable entrypoint that executes every workflow
	// in the registry
	Runner struct {
		registry     *Registry
		stream       Appender
		inputTimeout time.Duration
	}
)

// HandlerName is the durable handler name the Runner is registered under
const HandlerName = "relay"

const (
	stepComplete = "relay-workflow-complete"
	stepFailed   = "relay-workflow-failed"
)

// DefaultInputTimeout bounds how long input and confirm wait for an answer
const DefaultInputTimeout = 5 * time.Minute

// NewRunner creates a Runner resolving workflows from registry and writing
// messages to stream
func NewRunner(
	registry *Registry, stream Appender, inputTimeout time.Duration,
) *Runner {
	if inputTimeout <= 0 {
		inputTimeout = DefaultInputTimeout
	}
	return &Runner{
		registry:     registry,
		stream:       stream,
		inputTimeout: inputTimeout,
	}
}

// Register binds the Runner to host
func (r *Runner) Register(host *durable.Host) error {
	return host.Register(HandlerName, r.Handle)
}

// Handle executes one workflow run. Whatever the handler does, the stream
// ends in a workflow_complete message, carrying the error if it failed
func (r *Runner) Handle(
	ctx context.Context, step *durable.Step, raw json.RawMessage,
) error {
	var params Params
	if err := json.Unmarshal(raw, &params); err != nil {
		return fmt.Errorf("relay params: %w", err)
	}

	run := &Run{
		step:         step,
		stream:       r.stream,
		data:         params.Data,
		inputTimeout: r.inputTimeout,
	}
	if run.data == nil {
		run.data = map[string]any{}
	}

	def, ok := r.registry.Get(string(params.Workflow))
	if !ok {
		err := fmt.Errorf("%w: %s", ErrWorkflowNotFound, params.Workflow)
		notice := fmt.Sprintf("Error: Unknown workflow: %s", params.Workflow)
		if err := run.Markdown(ctx, notice); err != nil {
			slog.Error("Failed to report unknown workflow",
				log.RunID(run.ID()),
				log.Error(err))
		}
		return r.fail(ctx, run, err)
	}

	if step.Replaying() {
		slog.Info("Workflow resumed",
			log.RunID(run.ID()),
			log.Workflow(def.Slug))
	}

	if err := invoke(ctx, def.Handler, run); err != nil {
		if ctx.Err() != nil {
			// Interrupted by shutdown; the run resumes on recovery
			return err
		}
		slog.Warn("Workflow failed",
			log.RunID(run.ID()),
			log.Workflow(def.Slug),
			log.Error(err))
		return r.fail(ctx, run, err)
	}

	err := r.finish(ctx, run, stepComplete, api.NewWorkflowComplete())
	if err != nil {
		return err
	}
	slog.Info("Workflow completed",
		log.RunID(run.ID()),
		log.Workflow(def.Slug))
	return nil
}

func (r *Runner) fail(ctx context.Context, run *Run, cause error) error {
	msg := api.NewWorkflowFailed(cause.Error())
	if err := r.finish(ctx, run, stepFailed, msg); err != nil {
		slog.Error("Failed to record workflow failure",
			log.RunID(run.ID()),
			log.Error(err))
	}
	return cause
}

// finish appends the terminal marker in its own step. When the history no
// longer lines up with the handler (a nondeterministic replay), the marker
// is appended directly; the stream drops it if it is already there
func (r *Runner) finish(
	ctx context.Context, run *Run, stepName string, msg *api.Message,
) error {
	err := run.append(ctx, stepName, msg)
	if err == nil || ctx.Err() != nil {
		return err
	}
	return r.stream.Append(ctx, run.ID(), msg)
}

func invoke(ctx context.Context, h Handler, run *Run) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("workflow panic: %v", rec)
		}
	}()
	return h(ctx, run)
}
