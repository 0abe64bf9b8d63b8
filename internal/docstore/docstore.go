// Package docstore is a real-time document store: named collections of
// JSON documents with change listeners, persisted through a Backend.
//
// A Store is itself a remote.Collaborator, so it can back the planner
// in-process, and it is what the hub serves over websocket.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/roach88/wedplan/internal/entity"
	"github.com/roach88/wedplan/internal/remote"
)

var (
	// ErrNotFound is returned by Update for a missing document.
	ErrNotFound = errors.New("document not found")

	// ErrReadOnly is returned by writes while the store is in maintenance
	// mode. It matches remote.ErrSyncDisabled.
	ErrReadOnly = fmt.Errorf("document store is read-only: %w", remote.ErrSyncDisabled)

	// ErrUnknownCollection is returned for collections the store does not
	// serve.
	ErrUnknownCollection = errors.New("unknown collection")
)

// Store serves a fixed set of collections.
type Store struct {
	backend Backend
	logger  *slog.Logger

	readOnly atomic.Bool

	mu          sync.Mutex
	collections map[string]*Collection

	// notifyMu keeps snapshot delivery in write order across collections.
	notifyMu sync.Mutex
}

var _ remote.Collaborator = (*Store)(nil)

// New serves names from backend. A nil logger uses slog.Default().
func New(backend Backend, logger *slog.Logger, names ...string) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		backend:     backend,
		logger:      logger,
		collections: make(map[string]*Collection, len(names)),
	}
	for _, name := range names {
		s.collections[name] = &Collection{
			store:     s,
			name:      name,
			listeners: make(map[int]func([]entity.Record)),
		}
	}
	return s
}

// Collection implements remote.Collaborator.
func (s *Store) Collection(name string) (remote.Collection, bool) {
	c, ok := s.Lookup(name)
	if !ok {
		return nil, false
	}
	return c, true
}

// Lookup returns the concrete collection.
func (s *Store) Lookup(name string) (*Collection, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	return c, ok
}

// Names lists the served collections.
func (s *Store) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.collections))
	for name := range s.collections {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// SetReadOnly toggles maintenance mode. Reads and listeners keep working.
func (s *Store) SetReadOnly(readOnly bool) {
	s.readOnly.Store(readOnly)
	s.logger.Info("document store mode changed", "read_only", readOnly)
}

// ReadOnly reports whether writes are refused.
func (s *Store) ReadOnly() bool {
	return s.readOnly.Load()
}

// Close closes the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}

// Collection is one served collection. Documents are cached after the
// first load from the backend.
type Collection struct {
	store *Store
	name  string

	mu        sync.Mutex
	docs      map[string]entity.Record
	listeners map[int]func([]entity.Record)
	nextID    int
}

var _ remote.Collection = (*Collection)(nil)

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.name
}

func (c *Collection) loadLocked(ctx context.Context) error {
	if c.docs != nil {
		return nil
	}
	docs, err := c.store.backend.Load(ctx, c.name)
	if err != nil {
		return fmt.Errorf("load %s: %w", c.name, err)
	}
	c.docs = docs
	return nil
}

// snapshotLocked returns the documents sorted by id, each with its "id".
func (c *Collection) snapshotLocked() []entity.Record {
	out := make([]entity.Record, 0, len(c.docs))
	for _, id := range sortedIDs(c.docs) {
		doc := c.docs[id].Clone()
		if doc == nil {
			doc = entity.Record{}
		}
		doc["id"] = id
		out = append(out, doc)
	}
	return out
}

// Listen implements remote.Collection. The current documents are delivered
// before Listen returns.
func (c *Collection) Listen(ctx context.Context, onRecords func([]entity.Record)) (func(), error) {
	c.mu.Lock()
	if err := c.loadLocked(ctx); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	id := c.nextID
	c.nextID++
	c.listeners[id] = onRecords
	snapshot := c.snapshotLocked()

	c.store.notifyMu.Lock()
	c.mu.Unlock()
	onRecords(snapshot)
	c.store.notifyMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}, nil
}

// ListenerCount returns the number of attached listeners.
func (c *Collection) ListenerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}

// Fetch implements remote.Collection.
func (c *Collection) Fetch(ctx context.Context) ([]entity.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.loadLocked(ctx); err != nil {
		return nil, err
	}
	return c.snapshotLocked(), nil
}

// Add implements remote.Collection: it creates or replaces id.
func (c *Collection) Add(ctx context.Context, id string, payload entity.Record) error {
	return c.write(ctx, "add", id, func(current entity.Record, exists bool) (entity.Record, error) {
		doc := payload.Clone()
		if doc == nil {
			doc = entity.Record{}
		}
		delete(doc, "id")
		return doc, nil
	})
}

// Update implements remote.Collection: it shallow-merges changes into an
// existing document.
func (c *Collection) Update(ctx context.Context, id string, changes entity.Record) error {
	return c.write(ctx, "update", id, func(current entity.Record, exists bool) (entity.Record, error) {
		if !exists {
			return nil, ErrNotFound
		}
		doc := current.Merge(changes)
		delete(doc, "id")
		return doc, nil
	})
}

// Delete implements remote.Collection. Deleting a missing document is not
// an error.
func (c *Collection) Delete(ctx context.Context, id string) error {
	return c.write(ctx, "delete", id, func(entity.Record, bool) (entity.Record, error) {
		return nil, nil
	})
}

// write applies next to the document id, persists the result (nil
// removes it) and notifies listeners.
func (c *Collection) write(ctx context.Context, op, id string, next func(current entity.Record, exists bool) (entity.Record, error)) error {
	if id == "" {
		return fmt.Errorf("%s %s: empty document id", op, c.name)
	}
	if c.store.ReadOnly() {
		return ErrReadOnly
	}

	c.mu.Lock()
	if err := c.loadLocked(ctx); err != nil {
		c.mu.Unlock()
		return err
	}
	current, exists := c.docs[id]
	doc, err := next(current, exists)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	if doc == nil {
		if err := c.store.backend.Remove(ctx, c.name, id); err != nil {
			c.mu.Unlock()
			return err
		}
		delete(c.docs, id)
	} else {
		if err := c.store.backend.Put(ctx, c.name, id, doc); err != nil {
			c.mu.Unlock()
			return err
		}
		c.docs[id] = doc
	}

	snapshot := c.snapshotLocked()
	listeners := make([]func([]entity.Record), 0, len(c.listeners))
	for _, k := range slices.Sorted(maps.Keys(c.listeners)) {
		listeners = append(listeners, c.listeners[k])
	}

	c.store.notifyMu.Lock()
	c.mu.Unlock()
	defer c.store.notifyMu.Unlock()

	c.store.logger.Debug("document written", "collection", c.name, "op", op, "id", id, "listeners", len(listeners))
	for _, l := range listeners {
		copies := make([]entity.Record, len(snapshot))
		for i, r := range snapshot {
			copies[i] = r.Clone()
		}
		l(copies)
	}
	return nil
}
