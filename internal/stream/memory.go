package stream

import (
	"context"
	"sync"

	"github.com/danphilibin/relay/pkg/api"
)

// MemoryStore keeps run logs in process memory
type MemoryStore struct {
	mu   sync.RWMutex
	runs map[api.RunID][]*api.Message
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs: map[api.RunID][]*api.Message{},
	}
}

func (s *MemoryStore) Load(
	_ context.Context, runID api.RunID,
) ([]*api.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.runs[runID]
	res := make([]*api.Message, len(msgs))
	copy(res, msgs)
	return res, nil
}

func (s *MemoryStore) Append(
	_ context.Context, runID api.RunID, msg *api.Message,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[runID] = append(s.runs[runID], msg)
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
