package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is a process-local KV used by tests and ephemeral runs.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[Key][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[Key][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, scope, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[Key{Scope: scope, Name: key}]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *MemoryStore) Put(_ context.Context, scope, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[Key{Scope: scope, Name: key}] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, Key{Scope: scope, Name: key})
	return nil
}

func (s *MemoryStore) ListKeysWithPrefix(_ context.Context, prefix string) ([]Key, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var keys []Key
	for k := range s.data {
		if strings.HasPrefix(k.Name, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Name != keys[j].Name {
			return keys[i].Name < keys[j].Name
		}
		return keys[i].Scope < keys[j].Scope
	})
	return keys, nil
}

func (s *MemoryStore) Close() error {
	return nil
}
