package store

import (
	"slices"
	"sync"
)

// KV is the synchronous key-value collaborator used for local persistence.
// Implementations must be safe for concurrent use.
type KV interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
}

var (
	_ KV = (*SQLiteKV)(nil)
	_ KV = (*MemoryKV)(nil)
)

// MemoryKV is a map-backed KV for tests and for running without a data
// directory. FailWith makes every call return the given error.
type MemoryKV struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

// NewMemoryKV returns an empty in-memory store.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

// Get implements KV.
func (m *MemoryKV) Get(key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

// Set implements KV.
func (m *MemoryKV) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = value
	return nil
}

// FailWith makes subsequent calls fail with err; nil restores normal
// operation.
func (m *MemoryKV) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Keys lists stored keys in ascending order.
func (m *MemoryKV) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
