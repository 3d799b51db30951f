package cart

import (
	"context"
	"sync"
)

type memorySlot struct {
	mu   sync.RWMutex
	data map[string]string
}

func newMemorySlot() *memorySlot {
	return &memorySlot{data: make(map[string]string)}
}

func (m *memorySlot) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[key]
	if !ok {
		return "", ErrSlotEmpty
	}
	return value, nil
}

func (m *memorySlot) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *memorySlot) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}
