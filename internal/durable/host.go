package durable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/danphilibin/relay/pkg/api"
	"github.com/danphilibin/relay/pkg/log"
)

type (
	// Host executes registered handlers as durable instances
	Host struct {
		store  HistoryStore
		ctx    context.Context
		cancel context.CancelFunc
		wg     sync.WaitGroup

		mu       sync.Mutex
		handlers map[string]HandlerFunc
		live     map[api.RunID]*execution
		closed   bool
	}

	execution struct {
		host   *Host
		id     api.RunID
		done   chan struct{}
		notify chan struct{}

		mu     sync.Mutex
		events map[string]json.RawMessage
	}
)

// NewHost creates a host persisting to store
func NewHost(store HistoryStore) *Host {
	ctx, cancel := context.WithCancel(context.Background())
	return &Host{
		store:    store,
		ctx:      ctx,
		cancel:   cancel,
		handlers: map[string]HandlerFunc{},
		live:     map[api.RunID]*execution{},
	}
}

// Register binds a handler to name
func (h *Host) Register(name string, fn HandlerFunc) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.handlers[name]; ok {
		return fmt.Errorf("%w: %s", ErrHandlerExists, name)
	}
	h.handlers[name] = fn
	return nil
}

// Create starts a new instance of the named handler
func (h *Host) Create(
	ctx context.Context, name string, params any,
) (api.RunID, error) {
	return h.CreateWithID(ctx, api.RunID(uuid.NewString()), name, params)
}

// CreateWithID starts a new instance with a caller-chosen id
func (h *Host) CreateWithID(
	ctx context.Context, id api.RunID, name string, params any,
) (api.RunID, error) {
	if _, err := h.handler(name); err != nil {
		return "", err
	}
	data, err := json.Marshal(params)
	if err != nil {
		return "", fmt.Errorf("instance params: %w", err)
	}

	now := time.Now()
	inst := &Instance{
		ID:        id,
		Name:      name,
		Params:    data,
		Status:    StatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.store.CreateInstance(ctx, inst); err != nil {
		return "", err
	}

	slog.Info("Instance created",
		log.RunID(id),
		slog.String("handler", name))

	if err := h.start(inst); err != nil {
		return "", err
	}
	return id, nil
}

// SendEvent durably delivers an event to a running instance and wakes it
// if it is waiting
func (h *Host) SendEvent(
	ctx context.Context, id api.RunID, name string, payload json.RawMessage,
) error {
	inst, err := h.store.GetInstance(ctx, id)
	if err != nil {
		return err
	}
	if inst.Status.IsTerminal() {
		return fmt.Errorf("%w: %s is %s",
			ErrInstanceNotRunning, id, inst.Status)
	}

	ev := &EventRecord{Name: name, Payload: payload}
	if err := h.store.AppendEvent(ctx, id, ev); err != nil {
		return err
	}

	slog.Debug("Event delivered",
		log.RunID(id),
		log.EventName(name))

	h.mu.Lock()
	ex, ok := h.live[id]
	h.mu.Unlock()
	if ok {
		ex.deliver(ev)
	}
	return nil
}

// Instance returns the stored state of an instance
func (h *Host) Instance(ctx context.Context, id api.RunID) (*Instance, error) {
	return h.store.GetInstance(ctx, id)
}

// Recover re-executes every instance still marked running. Instances
// already executing in this process are skipped
func (h *Host) Recover(ctx context.Context) (int, error) {
	insts, err := h.store.ListInstances(ctx, StatusRunning)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, inst := range insts {
		if err := h.start(inst); err != nil {
			if errors.Is(err, errAlreadyLive) {
				continue
			}
			slog.Error("Failed to recover instance",
				log.RunID(inst.ID),
				log.Error(err))
			continue
		}
		count++
	}
	if count > 0 {
		slog.Info("Instances recovered",
			slog.Int("count", count))
	}
	return count, nil
}

// Wait blocks until the instance finishes executing in this process
func (h *Host) Wait(ctx context.Context, id api.RunID) error {
	h.mu.Lock()
	ex, ok := h.live[id]
	h.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case <-ex.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops every executing instance. Instances that were interrupted
// remain running in the store and resume on the next Recover
func (h *Host) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.mu.Unlock()

	h.cancel()
	h.wg.Wait()
	return h.store.Close()
}

var errAlreadyLive = errors.New("instance already executing")

func (h *Host) handler(name string) (HandlerFunc, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn, ok := h.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, name)
	}
	return fn, nil
}

func (h *Host) start(inst *Instance) error {
	fn, err := h.handler(inst.Name)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrHostClosed
	}
	if _, ok := h.live[inst.ID]; ok {
		return errAlreadyLive
	}

	ex := &execution{
		host:   h,
		id:     inst.ID,
		done:   make(chan struct{}),
		notify: make(chan struct{}, 1),
		events: map[string]json.RawMessage{},
	}
	h.live[inst.ID] = ex

	h.wg.Add(1)
	go ex.run(inst, fn)
	return nil
}

func (ex *execution) run(inst *Instance, fn HandlerFunc) {
	h := ex.host
	defer h.wg.Done()
	defer func() {
		h.mu.Lock()
		delete(h.live, ex.id)
		h.mu.Unlock()
		close(ex.done)
	}()

	// Events sent before this execution was registered are only in the
	// store; later ones arrive through deliver
	events, err := h.store.Events(h.ctx, ex.id)
	if err != nil {
		slog.Error("Failed to load events",
			log.RunID(ex.id),
			log.Error(err))
		return
	}
	for _, ev := range events {
		ex.deliver(ev)
	}

	history, err := h.store.Steps(h.ctx, ex.id)
	if err != nil {
		slog.Error("Failed to load step history",
			log.RunID(ex.id),
			log.Error(err))
		return
	}

	step := &Step{exec: ex, history: history}
	err = ex.invoke(fn, step, inst.Params)

	if h.ctx.Err() != nil {
		slog.Info("Instance suspended",
			log.RunID(ex.id))
		return
	}

	inst.Status = StatusComplete
	inst.Error = ""
	if err != nil {
		inst.Status = StatusFailed
		inst.Error = err.Error()
	}
	inst.UpdatedAt = time.Now()

	if err := h.store.UpdateInstance(h.ctx, inst); err != nil {
		slog.Error("Failed to update instance",
			log.RunID(ex.id),
			log.Error(err))
		return
	}

	if inst.Status == StatusFailed {
		slog.Warn("Instance failed",
			log.RunID(ex.id),
			log.ErrorString(inst.Error))
		return
	}
	slog.Info("Instance completed",
		log.RunID(ex.id))
}

func (ex *execution) invoke(
	fn HandlerFunc, step *Step, params json.RawMessage,
) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn(ex.host.ctx, step, params)
}

func (ex *execution) deliver(ev *EventRecord) {
	ex.mu.Lock()
	ex.addEvent(ev)
	ex.mu.Unlock()
	select {
	case ex.notify <- struct{}{}:
	default:
	}
}

// addEvent keeps the first delivery of each event name
func (ex *execution) addEvent(ev *EventRecord) {
	if _, ok := ex.events[ev.Name]; ok {
		return
	}
	ex.events[ev.Name] = ev.Payload
}

func (ex *execution) event(name string) (json.RawMessage, bool) {
	ex.mu.Lock()
	defer ex.mu.Unlock()
	p, ok := ex.events[name]
	return p, ok
}

func (ex *execution) awaitEvent(
	ctx context.Context, name string, deadline time.Time,
) (json.RawMessage, error) {
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	for {
		if p, ok := ex.event(name); ok {
			return p, nil
		}
		select {
		case <-ex.notify:
		case <-timer.C:
			if p, ok := ex.event(name); ok {
				return p, nil
			}
			return nil, fmt.Errorf("%w: %s", ErrEventTimeout, name)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
