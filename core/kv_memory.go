package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type MemoryKeyValueStore struct {
	mu     sync.RWMutex
	values map[string]string
}

func NewMemoryKeyValueStore() *MemoryKeyValueStore {
	return &MemoryKeyValueStore{values: make(map[string]string)}
}

func (s *MemoryKeyValueStore) Get(_ context.Context, key string) (string, bool, error) {
	if s == nil {
		return "", false, fmt.Errorf("core: memory store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", false, fmt.Errorf("core: store key is required")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *MemoryKeyValueStore) Set(_ context.Context, key string, value string) error {
	if s == nil {
		return fmt.Errorf("core: memory store is not configured")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("core: store key is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *MemoryKeyValueStore) Remove(_ context.Context, key string) error {
	if s == nil {
		return fmt.Errorf("core: memory store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, strings.TrimSpace(key))
	return nil
}

func (s *MemoryKeyValueStore) MultiSet(_ context.Context, values map[string]string) error {
	if s == nil {
		return fmt.Errorf("core: memory store is not configured")
	}
	for key := range values {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("core: store key is required")
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, value := range values {
		s.values[strings.TrimSpace(key)] = value
	}
	return nil
}

func (s *MemoryKeyValueStore) MultiRemove(_ context.Context, keys ...string) error {
	if s == nil {
		return fmt.Errorf("core: memory store is not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.values, strings.TrimSpace(key))
	}
	return nil
}

// Len reports the number of stored keys.
func (s *MemoryKeyValueStore) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
