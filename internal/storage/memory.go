package storage

import (
	"context"
	"strings"
	"sync"
)

type memoryStore struct {
	mu     sync.Mutex
	ids    map[string]struct{}
	closed bool
}

// NewMemory returns a store that lives only as long as the process.
func NewMemory(ids ...string) SeenStore {
	m := &memoryStore{ids: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			m.ids[id] = struct{}{}
		}
	}
	return m
}

func (m *memoryStore) Exists(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, wrap("exists", id, ErrClosed)
	}
	_, ok := m.ids[id]
	return ok, nil
}

func (m *memoryStore) Insert(_ context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return wrap("insert", id, ErrEmptyID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return wrap("insert", id, ErrClosed)
	}
	m.ids[id] = struct{}{}
	return nil
}

func (m *memoryStore) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, wrap("count", "", ErrClosed)
	}
	return int64(len(m.ids)), nil
}

func (m *memoryStore) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}
