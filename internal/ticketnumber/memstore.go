package ticketnumber

import (
	"context"
	"sync"
)

// MemoryStore is a process-local CounterStore for tests and single-node
// development setups.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]int64)}
}

// Next implements CounterStore.
func (s *MemoryStore) Next(_ context.Context, scope string, seed int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.counters[scope]
	if !ok && seed > 0 {
		c = seed
	}
	c++
	s.counters[scope] = c
	return c, nil
}
