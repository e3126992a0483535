package securestore

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]string)}
}

func (s *MemoryStore) GetItem(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.items[key]
	return value, ok, nil
}

func (s *MemoryStore) SetItem(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	return nil
}

func (s *MemoryStore) DeleteItem(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

func (s *MemoryStore) SetItems(_ context.Context, items map[string]*string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	applyItems(s.items, items)
	return nil
}

func applyItems(dst map[string]string, items map[string]*string) {
	for key, value := range items {
		if value == nil {
			delete(dst, key)
			continue
		}
		dst[key] = *value
	}
}

var _ BatchStore = (*MemoryStore)(nil)
