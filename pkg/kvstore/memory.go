package kvstore

import (
	"context"
	"sync"
)

// MemoryStore keeps values in process memory. Nothing survives a restart.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]string
	notify *notifier
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data:   make(map[string]string),
		notify: newNotifier(),
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.data[key] = value
	m.mu.Unlock()

	m.notify.publish(Change{Key: key, Value: value})
	return nil
}

func (m *MemoryStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	_, existed := m.data[key]
	delete(m.data, key)
	m.mu.Unlock()

	if existed {
		m.notify.publish(Change{Key: key, Removed: true})
	}
	return nil
}

// Watch reports every Set and Remove on key until ctx is cancelled.
func (m *MemoryStore) Watch(ctx context.Context, key string) (<-chan Change, error) {
	return m.notify.watch(ctx, key), nil
}
