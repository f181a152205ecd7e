package store

import (
	"context"
	"sync"
)

type memoryStore struct {
	items map[string]string
	mutex sync.RWMutex
}

// NewMemory builds a process-lifetime store.
func NewMemory() Store {
	return &memoryStore{items: make(map[string]string)}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	v, ok := s.items[key]
	return v, ok, nil
}

func (s *memoryStore) Set(_ context.Context, key, value string) error {
	s.mutex.Lock()
	s.items[key] = value
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Remove(_ context.Context, key string) error {
	s.mutex.Lock()
	delete(s.items, key)
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) SetAll(_ context.Context, entries map[string]string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for k, v := range entries {
		s.items[k] = v
	}
	return nil
}

func (s *memoryStore) GetAll(context.Context) (map[string]string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return copyEntries(s.items), nil
}

func (s *memoryStore) ClearAll(context.Context) error {
	s.mutex.Lock()
	s.items = make(map[string]string)
	s.mutex.Unlock()
	return nil
}

func (s *memoryStore) Close(context.Context) error {
	return nil
}
