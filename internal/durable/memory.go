package durable

import (
	"context"
	"fmt"
	"sync"

	"github.com/danphilibin/relay/pkg/api"
)

// MemoryHistory keeps instances and their histories in process memory
type MemoryHistory struct {
	mu        sync.RWMutex
	instances map[api.RunID]*Instance
	steps     map[api.RunID][]*StepRecord
	events    map[api.RunID][]*EventRecord
}

var _ HistoryStore = (*MemoryHistory)(nil)

// NewMemoryHistory creates an empty in-memory history store
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{
		instances: map[api.RunID]*Instance{},
		steps:     map[api.RunID][]*StepRecord{},
		events:    map[api.RunID][]*EventRecord{},
	}
}

func (m *MemoryHistory) CreateInstance(
	_ context.Context, inst *Instance,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.instances[inst.ID]; ok {
		return fmt.Errorf("%w: %s", ErrInstanceExists, inst.ID)
	}
	cpy := *inst
	m.instances[inst.ID] = &cpy
	return nil
}

func (m *MemoryHistory) GetInstance(
	_ context.Context, id api.RunID,
) (*Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInstanceNotFound, id)
	}
	cpy := *inst
	return &cpy, nil
}

func (m *MemoryHistory) UpdateInstance(
	_ context.Context, inst *Instance,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.instances[inst.ID]; !ok {
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, inst.ID)
	}
	cpy := *inst
	m.instances[inst.ID] = &cpy
	return nil
}

func (m *MemoryHistory) ListInstances(
	_ context.Context, status Status,
) ([]*Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []*Instance
	for _, inst := range m.instances {
		if status == "" || inst.Status == status {
			cpy := *inst
			res = append(res, &cpy)
		}
	}
	return res, nil
}

func (m *MemoryHistory) AppendStep(
	_ context.Context, id api.RunID, rec *StepRecord,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps[id] = append(m.steps[id], rec)
	return nil
}

func (m *MemoryHistory) Steps(
	_ context.Context, id api.RunID,
) ([]*StepRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]*StepRecord, len(m.steps[id]))
	copy(res, m.steps[id])
	return res, nil
}

func (m *MemoryHistory) AppendEvent(
	_ context.Context, id api.RunID, ev *EventRecord,
) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[id] = append(m.events[id], ev)
	return nil
}

func (m *MemoryHistory) Events(
	_ context.Context, id api.RunID,
) ([]*EventRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]*EventRecord, len(m.events[id]))
	copy(res, m.events[id])
	return res, nil
}

func (m *MemoryHistory) Close() error {
	return nil
}
