package callresponse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/danphilibin/relay/internal/agent"
	"github.com/danphilibin/relay/internal/durable"
	"github.com/danphilibin/relay/internal/relay"
	"github.com/danphilibin/relay/internal/stream"
	"github.com/danphilibin/relay/internal/util"
	"github.com/danphilibin/relay/pkg/api"
	"github.com/danphilibin/relay/pkg/log"
)

type (
	// Orchestrator starts and answers runs on behalf of synchronous callers
	Orchestrator struct {
		registry *relay.Registry
		hub      *stream.Hub
		host     *durable.Host
		appURL   string
		wait     time.Duration
		tools    *util.LRUCache[api.Slug, *agent.Capability]
	}

	// Options tunes an Orchestrator
	Options struct {
		// AppURL is the base URL of the UI, used to build run links
		AppURL string

		// ResponseTimeout bounds how long a call waits for the run to
		// pause or complete before reporting it as still running
		ResponseTimeout time.Duration
	}
)

// DefaultResponseTimeout is used when Options leaves the wait budget unset
const DefaultResponseTimeout = 30 * time.Second

const capabilityCacheSize = 256

var (
	ErrWorkflowNotFound      = errors.New("workflow not found")
	ErrRunNotFound           = errors.New("run not found")
	ErrInteractionNotPending = errors.New("interaction not pending")
	ErrInvalidInput          = errors.New("invalid workflow input")
)

// New creates an Orchestrator over the given registry, stream hub and
// durable host. The Runner must already be registered with host
func New(
	registry *relay.Registry, hub *stream.Hub, host *durable.Host,
	opts Options,
) *Orchestrator {
	wait := opts.ResponseTimeout
	if wait <= 0 {
		wait = DefaultResponseTimeout
	}
	return &Orchestrator{
		registry: registry,
		hub:      hub,
		host:     host,
		appURL:   strings.TrimSuffix(opts.AppURL, "/"),
		wait:     wait,
		tools: util.NewLRUCache[api.Slug, *agent.Capability](
			capabilityCacheSize,
		),
	}
}

// ListWorkflows describes every registered workflow
func (o *Orchestrator) ListWorkflows() []*api.WorkflowInfo {
	defs := o.registry.List()
	res := make([]*api.WorkflowInfo, len(defs))
	for i, def := range defs {
		res[i] = def.Info()
	}
	return res
}

// Start creates a run without waiting on it. Unknown workflows fail before
// any run exists
func (o *Orchestrator) Start(
	ctx context.Context, workflow string, data map[string]any,
) (api.RunID, api.Slug, error) {
	def, ok := o.registry.Get(workflow)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrWorkflowNotFound, workflow)
	}
	if err := o.validateInput(def, data); err != nil {
		return "", "", err
	}

	id, err := o.host.Create(ctx, relay.HandlerName, relay.Params{
		Workflow: def.Slug,
		Data:     data,
	})
	if err != nil {
		return "", "", err
	}

	slog.Info("Run started",
		log.RunID(id),
		log.Workflow(def.Slug))
	return id, def.Slug, nil
}

// StartRun creates a run and blocks until it first pauses or completes
func (o *Orchestrator) StartRun(
	ctx context.Context, workflow string, data map[string]any,
) (*api.CallResponseResult, error) {
	id, slug, err := o.Start(ctx, workflow, data)
	if err != nil {
		return nil, err
	}
	return o.consume(ctx, id, slug, "")
}

// Submit records the answer to the interaction the run waits on, then
// resumes the run. The answer is in the stream before any effect of the
// resumed execution
func (o *Orchestrator) Submit(
	ctx context.Context, runID api.RunID, event api.MessageID,
	data json.RawMessage,
) (api.Slug, error) {
	inst, slug, err := o.instance(ctx, runID)
	if err != nil {
		return "", err
	}
	if inst.Status.IsTerminal() {
		return "", fmt.Errorf("%w: run %s is %s",
			ErrInteractionNotPending, runID, inst.Status)
	}

	// a recorded answer must always reach the host
	ctx = context.WithoutCancel(ctx)

	var payload json.RawMessage
	err = o.hub.AppendFrom(ctx, runID,
		func(msgs []*api.Message) (*api.Message, error) {
			pending := pendingInteraction(msgs)
			if pending == nil || pending.ID != event {
				return nil, fmt.Errorf("%w: %s",
					ErrInteractionNotPending, event)
			}
			received, p, err := answer(pending, data)
			if err != nil {
				return nil, err
			}
			payload = p
			return received, nil
		},
	)
	if errors.Is(err, stream.ErrDuplicateMessage) {
		return "", fmt.Errorf("%w: %s", ErrInteractionNotPending, event)
	}
	if err != nil {
		return "", err
	}

	// only the caller whose answer was recorded resumes the run
	err = o.host.SendEvent(ctx, runID, string(event), payload)
	if err != nil {
		return "", err
	}

	slog.Info("Interaction answered",
		log.RunID(runID),
		log.MessageID(event))
	return slug, nil
}

// Respond answers the interaction and blocks until the run pauses again or
// completes. Messages up to and including the answer are not repeated
func (o *Orchestrator) Respond(
	ctx context.Context, runID api.RunID, event api.MessageID,
	data json.RawMessage,
) (*api.CallResponseResult, error) {
	slug, err := o.Submit(ctx, runID, event, data)
	if err != nil {
		return nil, err
	}
	return o.consume(ctx, runID, slug, event)
}

// GetRun reports the current state of a run, reading its stream from the
// beginning
func (o *Orchestrator) GetRun(
	ctx context.Context, runID api.RunID,
) (*api.CallResponseResult, error) {
	_, slug, err := o.instance(ctx, runID)
	if err != nil {
		return nil, err
	}
	return o.consume(ctx, runID, slug, "")
}

// RunWorkflow returns the slug of the workflow a run executes
func (o *Orchestrator) RunWorkflow(
	ctx context.Context, runID api.RunID,
) (api.Slug, error) {
	_, slug, err := o.instance(ctx, runID)
	return slug, err
}

func (o *Orchestrator) consume(
	ctx context.Context, runID api.RunID, slug api.Slug,
	afterID api.MessageID,
) (*api.CallResponseResult, error) {
	waitCtx, cancel := context.WithTimeout(ctx, o.wait)
	defer cancel()

	sub, err := o.hub.Subscribe(waitCtx, runID)
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return o.result(runID, slug, &Batch{}), nil
		}
		return nil, err
	}
	defer sub.Close()

	batch := ConsumeUntilInteraction(waitCtx, sub, afterID)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res := o.result(runID, slug, batch)
	slog.Debug("Call returned",
		log.RunID(runID),
		log.Status(res.Status),
		slog.Int("messages", len(res.Messages)))
	return res, nil
}

func (o *Orchestrator) result(
	runID api.RunID, slug api.Slug, batch *Batch,
) *api.CallResponseResult {
	msgs := make([]api.Message, len(batch.Messages))
	for i, m := range batch.Messages {
		msgs[i] = *m
	}
	return &api.CallResponseResult{
		RunID:        runID,
		WorkflowSlug: slug,
		RunURL:       o.runURL(slug, runID),
		Status:       api.StatusFor(batch.Interaction, batch.Terminal),
		Messages:     msgs,
		Interaction:  batch.Interaction,
	}
}

func (o *Orchestrator) runURL(slug api.Slug, runID api.RunID) *string {
	if o.appURL == "" || slug == "" {
		return nil
	}
	url := fmt.Sprintf("%s/%s/%s", o.appURL, slug, runID)
	return &url
}

func (o *Orchestrator) instance(
	ctx context.Context, runID api.RunID,
) (*durable.Instance, api.Slug, error) {
	inst, err := o.host.Instance(ctx, runID)
	if errors.Is(err, durable.ErrInstanceNotFound) {
		return nil, "", fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, "", err
	}
	var params relay.Params
	if err := json.Unmarshal(inst.Params, &params); err != nil {
		return nil, "", fmt.Errorf("run %s params: %w", runID, err)
	}
	return inst, params.Workflow, nil
}

// pendingInteraction finds the request at the end of the log that has not
// been answered yet
func pendingInteraction(msgs []*api.Message) *api.Message {
	var pending *api.Message
	for _, msg := range msgs {
		switch {
		case msg.IsRequest():
			pending = msg
		case pending != nil && msg.Answers(pending):
			pending = nil
		case msg.Type == api.MessageWorkflowComplete:
			return nil
		}
	}
	return pending
}

// answer builds the received message and the event payload for pending.
// The type of the pending interaction decides how data is read; the shape
// of data is only checked against it
func answer(
	pending *api.Message, data json.RawMessage,
) (*api.Message, json.RawMessage, error) {
	kind := api.ClassifyResponse(data)

	if pending.Type == api.MessageConfirmRequest {
		approved, err := api.DecodeApproved(data)
		if err != nil {
			return nil, nil, err
		}
		payload, err := json.Marshal(map[string]bool{
			api.ApprovedKey: approved,
		})
		if err != nil {
			return nil, nil, err
		}
		return api.NewConfirmReceived(pending.ID, approved), payload, nil
	}

	if kind == api.ResponseConfirm {
		slog.Warn("Approval-shaped answer to an input request",
			log.MessageID(pending.ID))
	}
	value, err := api.DecodeInputValue(data)
	if err != nil {
		return nil, nil, err
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, nil, err
	}
	return api.NewInputReceived(pending.ID, value), payload, nil
}

// validateInput checks upfront data against the workflow's input schema.
// Definitions never change once registered, so their capabilities are
// cached by slug
func (o *Orchestrator) validateInput(
	def *relay.Definition, data map[string]any,
) error {
	if len(def.Input) == 0 {
		return nil
	}
	capability, err := o.tools.Get(def.Slug,
		func() (*agent.Capability, error) {
			return agent.NewCapability(def.Info())
		},
	)
	if err != nil {
		return err
	}
	if err := capability.Validate(data); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return nil
}
