package memory

import (
	"context"
	"sync"
)

// StateStore is an in-memory implementation of app.StateStore, the
// default when no external store is configured.
type StateStore struct {
	mu      sync.RWMutex
	records map[string][]byte
}

func NewStateStore() *StateStore {
	return &StateStore{records: make(map[string][]byte)}
}

func (s *StateStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[key] = append([]byte(nil), value...)
	return nil
}

func (s *StateStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.records[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (s *StateStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}
