package state

import (
	"context"
	"encoding/json"
	"sync"
)

type memoryStore struct {
	mu   sync.RWMutex
	blob []byte
}

// NewMemoryStore returns an in-memory store intended for local development
// and tests. It round-trips through JSON so tests exercise the same
// serialization as the durable stores.
func NewMemoryStore() Store {
	return &memoryStore{}
}

func (s *memoryStore) Load(_ context.Context) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.blob == nil {
		return Snapshot{}, ErrNotFound
	}

	var snapshot Snapshot
	if err := json.Unmarshal(s.blob, &snapshot); err != nil {
		return Snapshot{}, err
	}
	return snapshot, nil
}

func (s *memoryStore) Save(_ context.Context, snapshot Snapshot) error {
	blob, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.blob = blob
	s.mu.Unlock()
	return nil
}
