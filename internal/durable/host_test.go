package durable_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danphilibin/relay/internal/assert"
	"github.com/danphilibin/relay/internal/durable"
	"github.com/danphilibin/relay/pkg/api"
)

const testTimeout = 2 * time.Second

func TestDoRecordsAndReplays(t *testing.T) {
	as := assert.New(t)
	store := durable.NewMemoryHistory()
	var calls atomic.Int32

	handler := func(
		ctx context.Context, step *durable.Step, _ json.RawMessage,
	) error {
		v, err := durable.DoValue(ctx, step, "first",
			func(context.Context) (int, error) {
				calls.Add(1)
				return 42, nil
			},
		)
		if err != nil {
			return err
		}
		if v != 42 {
			return errors.New("unexpected value")
		}
		_, err = step.WaitForEvent(ctx, "go", time.Minute)
		return err
	}

	host := durable.NewHost(store)
	as.NoError(host.Register("wf", handler))
	id, err := host.Create(context.Background(), "wf", nil)
	as.NoError(err)

	as.Eventually(func() bool {
		steps, _ := store.Steps(context.Background(), id)
		return len(steps) == 2
	}, testTimeout, "handler should reach the wait")
	as.NoError(host.Close())

	inst, err := store.GetInstance(context.Background(), id)
	as.NoError(err)
	as.Equal(durable.StatusRunning, inst.Status)

	host = durable.NewHost(store)
	as.NoError(host.Register("wf", handler))
	n, err := host.Recover(context.Background())
	as.NoError(err)
	as.Equal(1, n)

	as.NoError(host.SendEvent(context.Background(), id, "go", nil))
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	as.NoError(host.Wait(ctx, id))

	inst, err = host.Instance(ctx, id)
	as.NoError(err)
	as.Equal(durable.StatusComplete, inst.Status)
	as.Equal(int32(1), calls.Load())
}

func TestNondeterministicReplayFails(t *testing.T) {
	as := assert.New(t)
	store := durable.NewMemoryHistory()
	ctx := context.Background()

	as.NoError(store.CreateInstance(ctx, &durable.Instance{
		ID: "run", Name: "wf", Status: durable.StatusRunning,
	}))
	as.NoError(store.AppendStep(ctx, "run", &durable.StepRecord{
		Position: 0, Name: "original", Kind: durable.KindDo,
		Result: json.RawMessage(`null`),
	}))

	host := durable.NewHost(store)
	defer func() { _ = host.Close() }()
	as.NoError(host.Register("wf",
		func(ctx context.Context, step *durable.Step, _ json.RawMessage) error {
			_, err := step.Do(ctx, "renamed",
				func(context.Context) (any, error) { return nil, nil },
			)
			return err
		},
	))
	_, err := host.Recover(ctx)
	as.NoError(err)

	waitCtx, cancel := context.WithTimeout(ctx, testTimeout)
	defer cancel()
	as.NoError(host.Wait(waitCtx, "run"))

	inst, err := host.Instance(ctx, "run")
	as.NoError(err)
	as.Equal(durable.StatusFailed, inst.Status)
	as.Contains(inst.Error, durable.ErrNondeterministic.Error())
}

func TestEventBeforeWaitIsKept(t *testing.T) {
	as := assert.New(t)
	ready := make(chan struct{})
	got := make(chan string, 1)

	host := durable.NewHost(durable.NewMemoryHistory())
	defer func() { _ = host.Close() }()
	as.NoError(host.Register("wf",
		func(ctx context.Context, step *durable.Step, _ json.RawMessage) error {
			<-ready
			p, err := step.WaitForEvent(ctx, "answer", time.Minute)
			if err != nil {
				return err
			}
			got <- string(p)
			return nil
		},
	))

	ctx := context.Background()
	id, err := host.Create(ctx, "wf", nil)
	as.NoError(err)
	as.NoError(host.SendEvent(ctx, id, "answer", json.RawMessage(`"early"`)))
	close(ready)

	select {
	case p := <-got:
		as.Equal(`"early"`, p)
	case <-time.After(testTimeout):
		as.Fail("event was lost")
	}
}

func TestWaitForEventTimeout(t *testing.T) {
	as := assert.New(t)
	host := durable.NewHost(durable.NewMemoryHistory())
	defer func() { _ = host.Close() }()
	as.NoError(host.Register("wf",
		func(ctx context.Context, step *durable.Step, _ json.RawMessage) error {
			_, err := step.WaitForEvent(ctx, "never", 20*time.Millisecond)
			return err
		},
	))

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	id, err := host.Create(ctx, "wf", nil)
	as.NoError(err)
	as.NoError(host.Wait(ctx, id))

	inst, err := host.Instance(ctx, id)
	as.NoError(err)
	as.Equal(durable.StatusFailed, inst.Status)
	as.Contains(inst.Error, durable.ErrEventTimeout.Error())

	err = host.SendEvent(ctx, id, "never", nil)
	as.ErrorIs(err, durable.ErrInstanceNotRunning)
}

func TestHandlerPanicFailsInstance(t *testing.T) {
	as := assert.New(t)
	host := durable.NewHost(durable.NewMemoryHistory())
	defer func() { _ = host.Close() }()
	as.NoError(host.Register("wf",
		func(context.Context, *durable.Step, json.RawMessage) error {
			panic("boom")
		},
	))

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()
	id, err := host.Create(ctx, "wf", nil)
	as.NoError(err)
	as.NoError(host.Wait(ctx, id))

	inst, err := host.Instance(ctx, id)
	as.NoError(err)
	as.Equal(durable.StatusFailed, inst.Status)
	as.Contains(inst.Error, "boom")
}

func TestHostErrors(t *testing.T) {
	as := assert.New(t)
	host := durable.NewHost(durable.NewMemoryHistory())
	defer func() { _ = host.Close() }()

	noop := func(context.Context, *durable.Step, json.RawMessage) error {
		return nil
	}
	as.NoError(host.Register("wf", noop))
	as.ErrorIs(host.Register("wf", noop), durable.ErrHandlerExists)

	ctx := context.Background()
	_, err := host.Create(ctx, "missing", nil)
	as.ErrorIs(err, durable.ErrHandlerNotFound)

	err = host.SendEvent(ctx, api.RunID("nope"), "e", nil)
	as.ErrorIs(err, durable.ErrInstanceNotFound)

	_, err = host.Instance(ctx, "nope")
	as.ErrorIs(err, durable.ErrInstanceNotFound)
}

func TestPositionAdvancesPerStep(t *testing.T) {
	as := assert.New(t)
	positions := make(chan []int, 1)

	host := durable.NewHost(durable.NewMemoryHistory())
	defer func() { _ = host.Close() }()
	as.NoError(host.Register("wf",
		func(ctx context.Context, step *durable.Step, _ json.RawMessage) error {
			var seen []int
			seen = append(seen, step.Position())
			_, _ = step.Do(ctx, "a",
				func(context.Context) (any, error) { return 1, nil },
			)
			seen = append(seen, step.Position())
			_ = step.Sleep(ctx, "nap", time.Millisecond)
			seen = append(seen, step.Position())
			positions <- seen
			return nil
		},
	))

	_, err := host.Create(context.Background(), "wf", nil)
	as.NoError(err)

	select {
	case seen := <-positions:
		as.Equal([]int{0, 1, 2}, seen)
	case <-time.After(testTimeout):
		as.Fail("handler did not finish")
	}
}
