package knowledge

import (
	"context"
	"sync"
)

// MemoryBackend keeps documents in process memory. Used for tests and the
// "memory" store backend.
type MemoryBackend struct {
	mu   sync.RWMutex
	docs map[Kind][]Document
}

// NewMemoryBackend returns an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{docs: make(map[Kind][]Document)}
}

func (m *MemoryBackend) Add(_ context.Context, docs ...Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		m.docs[d.Kind] = append(m.docs[d.Kind], d)
	}
	return nil
}

func (m *MemoryBackend) Has(_ context.Context, kind Kind, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, d := range m.docs[kind] {
		if d.ID == id {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryBackend) List(_ context.Context, kind Kind) ([]Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Document, len(m.docs[kind]))
	copy(out, m.docs[kind])
	return out, nil
}

func (m *MemoryBackend) Count(_ context.Context, kind Kind) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs[kind]), nil
}

func (m *MemoryBackend) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs = make(map[Kind][]Document)
	return nil
}

func (m *MemoryBackend) Close() error { return nil }
