package docstore

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/wedplan/internal/entity"
)

// Backend persists documents. Records passed in and returned exclude the
// "id" key; the id travels separately.
type Backend interface {
	// Load returns every document of collection keyed by id.
	Load(ctx context.Context, collection string) (map[string]entity.Record, error)
	Put(ctx context.Context, collection, id string, doc entity.Record) error
	Remove(ctx context.Context, collection, id string) error
	Close() error
}

// MemoryBackend keeps documents in process memory.
type MemoryBackend struct {
	mu   sync.Mutex
	data map[string]map[string]entity.Record
}

var _ Backend = (*MemoryBackend)(nil)

// NewMemoryBackend returns an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{data: make(map[string]map[string]entity.Record)}
}

// Load implements Backend.
func (m *MemoryBackend) Load(_ context.Context, collection string) (map[string]entity.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]entity.Record, len(m.data[collection]))
	for id, doc := range m.data[collection] {
		out[id] = doc.Clone()
	}
	return out, nil
}

// Put implements Backend.
func (m *MemoryBackend) Put(_ context.Context, collection, id string, doc entity.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[collection] == nil {
		m.data[collection] = make(map[string]entity.Record)
	}
	m.data[collection][id] = doc.Clone()
	return nil
}

// Remove implements Backend.
func (m *MemoryBackend) Remove(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[collection], id)
	return nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error { return nil }

// Collections lists the collections holding at least one document.
func (m *MemoryBackend) Collections() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for name, docs := range m.data {
		if len(docs) > 0 {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

func sortedIDs(docs map[string]entity.Record) []string {
	return slices.Sorted(maps.Keys(docs))
}
