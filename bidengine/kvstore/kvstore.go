// Package kvstore defines the key-addressed durable store the engine persists
// its ledger snapshot into, plus in-memory and file-backed implementations.
// A Postgres-backed implementation lives in the postgresstore subpackage.
package kvstore

import (
	"context"
	"sync"
)

// Store is a generic key-value blob store. The engine writes its full ledger
// snapshot as one opaque blob under one well-known key.
//
// Get reports found=false (not an error) when no value exists for the key,
// so first runs with no prior snapshot work without special-casing.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
}

// MemoryStore is a Store backed by an in-process map, safe for concurrent use.
// It is intended for tests and demos.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

// Get returns a copy of the stored value for the key.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, found := s.values[key]
	if !found {
		return nil, false, nil
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	return valueCopy, true, nil
}

// Set stores a copy of the value under the key.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = valueCopy

	return nil
}
