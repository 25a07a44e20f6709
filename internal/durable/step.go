package durable

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/danphilibin/relay/pkg/api"
	"github.com/danphilibin/relay/pkg/log"
)

// Step is the handle a handler uses to perform durable work. It is not safe
// for concurrent use; a handler issues its steps one at a time
type Step struct {
	exec    *execution
	history []*StepRecord
	pos     int
}

// RunID returns the instance this step handle belongs to
func (s *Step) RunID() api.RunID {
	return s.exec.id
}

// Position returns the index of the next step in the instance history. It
// is identical on every execution of the same instance, which makes it a
// stable source of step names
func (s *Step) Position() int {
	return s.pos
}

// Replaying reports whether the next step will be served from history
func (s *Step) Replaying() bool {
	return s.pos < len(s.history)
}

// Do runs fn once per instance under name and records its JSON result. On
// replay the recorded result is returned and fn is not called
func (s *Step) Do(
	ctx context.Context, name string, fn func(context.Context) (any, error),
) (json.RawMessage, error) {
	if rec, ok, err := s.replay(name, KindDo); err != nil || ok {
		if err != nil {
			return nil, err
		}
		return rec.Result, nil
	}

	res, err := fn(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("step %s result: %w", name, err)
	}
	rec := &StepRecord{Name: name, Kind: KindDo, Result: data}
	if err := s.record(ctx, rec); err != nil {
		return nil, err
	}
	return data, nil
}

// WaitForEvent suspends until an event called name is delivered to the
// instance, or until timeout elapses. Events delivered before the wait
// begins are kept and satisfy it immediately. The deadline is recorded, so
// a restarted instance keeps the original one
func (s *Step) WaitForEvent(
	ctx context.Context, name string, timeout time.Duration,
) (json.RawMessage, error) {
	deadline, err := s.deadline(ctx, name, KindWait, timeout)
	if err != nil {
		return nil, err
	}

	slog.Debug("Waiting for event",
		log.RunID(s.exec.id),
		log.EventName(name))

	payload, err := s.exec.awaitEvent(ctx, name, deadline)
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// Sleep suspends the handler for d. The wake-up time is recorded, so a
// restarted instance does not sleep again from the beginning
func (s *Step) Sleep(ctx context.Context, name string, d time.Duration) error {
	deadline, err := s.deadline(ctx, name, KindSleep, d)
	if err != nil {
		return err
	}
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Step) deadline(
	ctx context.Context, name string, kind StepKind, d time.Duration,
) (time.Time, error) {
	if rec, ok, err := s.replay(name, kind); err != nil || ok {
		return rec.deadline(), err
	}
	rec := &StepRecord{
		Name:     name,
		Kind:     kind,
		Deadline: time.Now().Add(d),
	}
	if err := s.record(ctx, rec); err != nil {
		return time.Time{}, err
	}
	return rec.Deadline, nil
}

func (s *Step) replay(name string, kind StepKind) (*StepRecord, bool, error) {
	if s.pos >= len(s.history) {
		return nil, false, nil
	}
	rec := s.history[s.pos]
	if rec.Name != name || rec.Kind != kind {
		return nil, false, fmt.Errorf(
			"%w: position %d recorded %s %q, replay requested %s %q",
			ErrNondeterministic, s.pos, rec.Kind, rec.Name, kind, name,
		)
	}
	s.pos++
	return rec, true, nil
}

func (s *Step) record(ctx context.Context, rec *StepRecord) error {
	rec.Position = s.pos
	if err := s.exec.host.store.AppendStep(ctx, s.exec.id, rec); err != nil {
		return fmt.Errorf("record step %s: %w", rec.Name, err)
	}
	s.history = append(s.history, rec)
	s.pos++
	slog.Debug("Step recorded",
		log.RunID(s.exec.id),
		log.StepName(rec.Name))
	return nil
}

func (r *StepRecord) deadline() time.Time {
	if r == nil {
		return time.Time{}
	}
	return r.Deadline
}

// DoValue runs a typed step through s.Do and decodes its result
func DoValue[T any](
	ctx context.Context, s *Step, name string,
	fn func(context.Context) (T, error),
) (T, error) {
	var zero T
	raw, err := s.Do(ctx, name, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	var res T
	if err := json.Unmarshal(raw, &res); err != nil {
		return zero, fmt.Errorf("step %s result: %w", name, err)
	}
	return res, nil
}
