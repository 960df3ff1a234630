// Package kvstore is the persistence collaborator of the proving pipeline: a
// small key-value surface with an in-memory implementation for tests and a
// badger-backed one for real deployments.
package kvstore

import "sync"

// Store is a byte-oriented key-value store. Get returns (nil, nil) for a
// missing key; absence is not an error.
type Store interface {
	Put(key, value []byte) error
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	Close() error
}

// MemStore is a Store held entirely in memory. Safe for concurrent use.
type MemStore struct {
	mu      sync.RWMutex
	entries map[string][]byte
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string][]byte)}
}

// Put stores a copy of value under key.
func (s *MemStore) Put(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := make([]byte, len(value))
	copy(v, value)
	s.entries[string(key)] = v
	return nil
}

// Get returns a copy of the value under key, or (nil, nil) when absent.
func (s *MemStore) Get(key []byte) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.entries[string(key)]
	if !ok {
		return nil, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Delete removes key. Deleting a missing key is a no-op.
func (s *MemStore) Delete(key []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, string(key))
	return nil
}

// Close releases the store's memory.
func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}
