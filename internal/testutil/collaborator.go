package testutil

import (
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/roach88/wedplan/internal/entity"
	"github.com/roach88/wedplan/internal/remote"
)

// Call records one operation received by a ScriptedCollection.
type Call struct {
	Op      string
	ID      string
	Payload entity.Record
}

// ScriptedCollaborator is an in-memory remote.Collaborator with failure
// injection. Only the collections it was created with exist.
type ScriptedCollaborator struct {
	mu          sync.Mutex
	collections map[string]*ScriptedCollection
}

var _ remote.Collaborator = (*ScriptedCollaborator)(nil)

// NewScriptedCollaborator creates a collaborator exposing names.
func NewScriptedCollaborator(names ...string) *ScriptedCollaborator {
	c := &ScriptedCollaborator{collections: make(map[string]*ScriptedCollection)}
	for _, name := range names {
		c.collections[name] = NewScriptedCollection(name)
	}
	return c
}

// Collection implements remote.Collaborator.
func (c *ScriptedCollaborator) Collection(name string) (remote.Collection, bool) {
	coll := c.Get(name)
	if coll == nil {
		return nil, false
	}
	return coll, true
}

// Get returns the scripted collection, or nil.
func (c *ScriptedCollaborator) Get(name string) *ScriptedCollection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.collections[name]
}

// ScriptedCollection keeps documents in memory. By default every
// successful write is echoed to listeners as a full snapshot, the way a
// real-time store confirms writes. Listen delivers the current contents
// synchronously before returning.
type ScriptedCollection struct {
	mu        sync.Mutex
	name      string
	docs      map[string]entity.Record
	order     []string
	listeners map[int]func([]entity.Record)
	nextID    int
	failures  map[string][]error
	calls     []Call
	echo      bool
}

var _ remote.Collection = (*ScriptedCollection)(nil)

// NewScriptedCollection creates an empty echoing collection.
func NewScriptedCollection(name string) *ScriptedCollection {
	return &ScriptedCollection{
		name:      name,
		docs:      make(map[string]entity.Record),
		listeners: make(map[int]func([]entity.Record)),
		failures:  make(map[string][]error),
		echo:      true,
	}
}

// SetEcho controls whether writes are echoed to listeners.
func (c *ScriptedCollection) SetEcho(echo bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.echo = echo
}

// FailNext queues err for the next call of op ("listen", "fetch", "add",
// "update", "delete"). Queued errors are consumed in order.
func (c *ScriptedCollection) FailNext(op string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures[op] = append(c.failures[op], err)
}

// Seed replaces the documents without notifying listeners.
func (c *ScriptedCollection) Seed(records ...entity.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replaceLocked(records)
}

// Push replaces the documents and notifies listeners, simulating a change
// made by another client.
func (c *ScriptedCollection) Push(records ...entity.Record) {
	c.mu.Lock()
	c.replaceLocked(records)
	snapshot, listeners := c.snapshotLocked()
	c.mu.Unlock()
	deliver(listeners, snapshot)
}

// Calls returns the operations received so far.
func (c *ScriptedCollection) Calls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.calls)
}

// Records returns the current documents in insertion order.
func (c *ScriptedCollection) Records() []entity.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	snapshot, _ := c.snapshotLocked()
	return snapshot
}

// ListenerCount returns the number of attached listeners.
func (c *ScriptedCollection) ListenerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners)
}

// Listen implements remote.Collection.
func (c *ScriptedCollection) Listen(_ context.Context, onRecords func([]entity.Record)) (func(), error) {
	c.mu.Lock()
	c.calls = append(c.calls, Call{Op: "listen"})
	if err := c.failureLocked("listen"); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	id := c.nextID
	c.nextID++
	c.listeners[id] = onRecords
	snapshot, _ := c.snapshotLocked()
	c.mu.Unlock()

	onRecords(snapshot)

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}, nil
}

// Fetch implements remote.Collection.
func (c *ScriptedCollection) Fetch(context.Context) ([]entity.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, Call{Op: "fetch"})
	if err := c.failureLocked("fetch"); err != nil {
		return nil, err
	}
	snapshot, _ := c.snapshotLocked()
	return snapshot, nil
}

// Add implements remote.Collection.
func (c *ScriptedCollection) Add(_ context.Context, id string, payload entity.Record) error {
	return c.write(Call{Op: "add", ID: id, Payload: payload.Clone()}, func() error {
		if _, ok := c.docs[id]; !ok {
			c.order = append(c.order, id)
		}
		c.docs[id] = payload.Clone()
		return nil
	})
}

// Update implements remote.Collection.
func (c *ScriptedCollection) Update(_ context.Context, id string, changes entity.Record) error {
	return c.write(Call{Op: "update", ID: id, Payload: changes.Clone()}, func() error {
		doc, ok := c.docs[id]
		if !ok {
			return remote.Wrap("update", c.name, errNotFound)
		}
		c.docs[id] = doc.Merge(changes)
		return nil
	})
}

// Delete implements remote.Collection.
func (c *ScriptedCollection) Delete(_ context.Context, id string) error {
	return c.write(Call{Op: "delete", ID: id}, func() error {
		delete(c.docs, id)
		c.order = slices.DeleteFunc(c.order, func(o string) bool { return o == id })
		return nil
	})
}

func (c *ScriptedCollection) write(call Call, apply func() error) error {
	c.mu.Lock()
	c.calls = append(c.calls, call)
	if err := c.failureLocked(call.Op); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := apply(); err != nil {
		c.mu.Unlock()
		return err
	}
	if !c.echo {
		c.mu.Unlock()
		return nil
	}
	snapshot, listeners := c.snapshotLocked()
	c.mu.Unlock()
	deliver(listeners, snapshot)
	return nil
}

func (c *ScriptedCollection) failureLocked(op string) error {
	queue := c.failures[op]
	if len(queue) == 0 {
		return nil
	}
	c.failures[op] = queue[1:]
	return queue[0]
}

func (c *ScriptedCollection) replaceLocked(records []entity.Record) {
	c.docs = make(map[string]entity.Record, len(records))
	c.order = c.order[:0]
	for _, r := range records {
		id, _ := r["id"].(string)
		doc := r.Clone()
		delete(doc, "id")
		if _, dup := c.docs[id]; !dup {
			c.order = append(c.order, id)
		}
		c.docs[id] = doc
	}
}

func (c *ScriptedCollection) snapshotLocked() ([]entity.Record, []func([]entity.Record)) {
	out := make([]entity.Record, 0, len(c.order))
	for _, id := range c.order {
		doc := c.docs[id].Clone()
		if doc == nil {
			doc = entity.Record{}
		}
		doc["id"] = id
		out = append(out, doc)
	}
	keys := slices.Sorted(maps.Keys(c.listeners))
	listeners := make([]func([]entity.Record), 0, len(keys))
	for _, k := range keys {
		listeners = append(listeners, c.listeners[k])
	}
	return out, listeners
}

func deliver(listeners []func([]entity.Record), snapshot []entity.Record) {
	for _, l := range listeners {
		copies := make([]entity.Record, len(snapshot))
		for i, r := range snapshot {
			copies[i] = r.Clone()
		}
		l(copies)
	}
}

var errNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "document not found" }
