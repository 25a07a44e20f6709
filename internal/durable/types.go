package durable

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/danphilibin/relay/pkg/api"
)

type (
	// Status is the execution state of an instance
	Status string

	// StepKind distinguishes the recorded step variants
	StepKind string

	// Instance is one execution of a registered handler
	Instance struct {
		ID        api.RunID       `json:"id"`
		Name      string          `json:"name"`
		Params    json.RawMessage `json:"params,omitempty"`
		Status    Status          `json:"status"`
		Error     string          `json:"error,omitempty"`
		CreatedAt time.Time       `json:"created_at"`
		UpdatedAt time.Time       `json:"updated_at"`
	}

	// StepRecord is one completed (or, for waits, started) step in an
	// instance's history
	StepRecord struct {
		Position int             `json:"position"`
		Name     string          `json:"name"`
		Kind     StepKind        `json:"kind"`
		Result   json.RawMessage `json:"result,omitempty"`
		Deadline time.Time       `json:"deadline,omitzero"`
	}

	// EventRecord is an event delivered to an instance
	EventRecord struct {
		Name    string          `json:"name"`
		Payload json.RawMessage `json:"payload,omitempty"`
	}

	// HandlerFunc is the body of a durable workflow
	HandlerFunc func(
		ctx context.Context, step *Step, params json.RawMessage,
	) error

	// HistoryStore persists instances, their step histories, and their
	// delivered events
	HistoryStore interface {
		CreateInstance(ctx context.Context, inst *Instance) error
		GetInstance(ctx context.Context, id api.RunID) (*Instance, error)
		UpdateInstance(ctx context.Context, inst *Instance) error
		ListInstances(ctx context.Context, status Status) ([]*Instance, error)
		AppendStep(ctx context.Context, id api.RunID, rec *StepRecord) error
		Steps(ctx context.Context, id api.RunID) ([]*StepRecord, error)
		AppendEvent(ctx context.Context, id api.RunID, ev *EventRecord) error
		Events(ctx context.Context, id api.RunID) ([]*EventRecord, error)
		Close() error
	}
)

const (
	StatusRunning  Status = "running"
	StatusComplete Status = "complete"
	StatusFailed   Status = "failed"

	KindDo    StepKind = "do"
	KindWait  StepKind = "wait"
	KindSleep StepKind = "sleep"
)

var (
	ErrInstanceNotFound   = errors.New("instance not found")
	ErrInstanceExists     = errors.New("instance already exists")
	ErrInstanceNotRunning = errors.New("instance not running")
	ErrHandlerNotFound    = errors.New("handler not found")
	ErrHandlerExists      = errors.New("handler already registered")
	ErrNondeterministic   = errors.New("step history mismatch")
	ErrEventTimeout       = errors.New("timed out waiting for event")
	ErrHostClosed         = errors.New("durable host closed")
)

// IsTerminal reports whether the instance has finished executing
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusFailed
}
