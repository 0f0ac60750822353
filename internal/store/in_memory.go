package store

import (
	"context"
	"sync"

	carterrors "github.com/abgdnv/gocart/internal/errors"
)

// InMemory implements KV using an in-memory map. Values do not survive a restart.
type InMemory struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewInMemoryStore creates a new, empty in-memory store.
func NewInMemoryStore() *InMemory {
	return &InMemory{
		values: make(map[string]string),
	}
}

func (s *InMemory) Get(_ context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return "", carterrors.ErrKeyNotFound
	}
	return v, nil
}

func (s *InMemory) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[key] = value
	return nil
}

func (s *InMemory) Ping(_ context.Context) error {
	return nil
}

func (s *InMemory) Close() error {
	return nil
}
