package storage

import (
	"context"
	"sort"
	"sync"
)

type memoryStore struct {
	mu    sync.RWMutex
	items map[string]string
}

func init() {
	Register("memory", func(args interface{}) (Adapter, error) {
		return NewMemory(), nil
	})
}

// NewMemory returns a process local adapter, mostly for tests and demos.
func NewMemory() Adapter {
	return &memoryStore{items: make(map[string]string)}
}

func (s *memoryStore) Type() string {
	return "memory"
}

func (s *memoryStore) Save(ctx context.Context, key string, text string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	s.items[key] = text
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) Load(ctx context.Context, key string) (string, bool, error) {
	if err := checkKey(key); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	text, ok := s.items[key]
	s.mu.RUnlock()
	return text, ok, nil
}

func (s *memoryStore) Delete(ctx context.Context, key string) error {
	if err := checkKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
	return nil
}

func (s *memoryStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.items))
	for key := range s.items {
		keys = append(keys, key)
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys, nil
}
