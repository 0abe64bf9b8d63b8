package syncstore

import (
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/wedplan/internal/entity"
	"github.com/roach88/wedplan/internal/remote"
	"github.com/roach88/wedplan/internal/store"
)

// Listener receives the full sorted collection. Each call gets its own
// deep copy. Calls arrive in the order changes were applied and run with
// no store lock held, so a listener may call Snapshot, Get or State. It
// must not mutate the store that is notifying it: the nested emission
// waits for the current one and never runs.
type Listener[T any] func(items []T)

type listenerEntry[T any] struct {
	id int
	fn Listener[T]
}

// Store is the reconciling store for one entity kind.
type Store[T entity.Entity[T]] struct {
	kind       entity.Kind[T]
	local      *store.Collection[T]
	binding    *remote.Binding[T]
	logger     *slog.Logger
	clock      Clock
	metrics    Metrics
	seedRemote bool

	mu           sync.Mutex
	items        []T // replaced, never modified in place
	listeners    []listenerEntry[T]
	nextListener int
	state        State
	unsubscribe  func()
	generation   uint64 // bumped whenever the remote listener is replaced or stopped
	destroyed    bool

	emits Emitter
}

// New creates a store for kind and loads the persisted collection.
func New[T entity.Entity[T]](kind entity.Kind[T], opts ...Option) *Store[T] {
	o := options{
		logger:  slog.Default(),
		clock:   SystemClock{},
		metrics: noopMetrics{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With("kind", kind.Name)

	s := &Store[T]{
		kind:       kind,
		logger:     logger,
		clock:      o.clock,
		metrics:    o.metrics,
		seedRemote: o.seedRemote,
		state:      Uninitialized,
	}
	if o.kv != nil {
		s.local = store.NewCollection(o.kv, kind, logger)
	}
	if o.ready != nil {
		s.binding = remote.NewBinding(kind, o.ready,
			remote.WithNow(o.clock.NowMillis),
			remote.WithBindingLogger(logger))
	}

	s.items = s.local.Load()
	s.metrics.ObserveState(kind.Name, s.state.String())
	return s
}

// Kind returns the store's entity kind.
func (s *Store[T]) Kind() entity.Kind[T] {
	return s.kind
}

// State returns the remote synchronization state.
func (s *Store[T]) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Snapshot returns a deep copy of the current collection.
func (s *Store[T]) Snapshot() []T {
	s.mu.Lock()
	items := s.items
	s.mu.Unlock()
	return entity.CloneAll(items)
}

// Get returns a copy of the entity with id.
func (s *Store[T]) Get(id string) (T, bool) {
	s.mu.Lock()
	items := s.items
	s.mu.Unlock()
	for _, e := range items {
		if e.EntityID() == id {
			return e.Clone(), true
		}
	}
	var zero T
	return zero, false
}

// Subscribe registers fn and immediately delivers the current collection
// to it. The returned func removes the listener; calling it more than once
// is harmless.
func (s *Store[T]) Subscribe(fn Listener[T]) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners = append(s.listeners, listenerEntry[T]{id: id, fn: fn})
	items := s.items
	ticket := s.emits.Ticket()
	s.mu.Unlock()

	s.emits.Deliver(ticket, func() { fn(entity.CloneAll(items)) })

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.listeners = slices.DeleteFunc(s.listeners, func(l listenerEntry[T]) bool {
				return l.id == id
			})
		})
	}
}

// Destroy stops the remote listener and drops every subscriber. The store
// keeps working locally afterwards. Idempotent.
func (s *Store[T]) Destroy() {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return
	}
	s.destroyed = true
	s.generation++
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.listeners = nil
	if s.state == RemoteActive {
		s.setStateLocked(LocalOnly)
	}
	s.mu.Unlock()

	s.detach(unsubscribe)
	s.logger.Debug("store destroyed")
}

// replaceLocked installs items as the authoritative collection, persists
// and notifies listeners. It must be called with s.mu held and releases
// it; persistence and emission follow the order of replacement.
func (s *Store[T]) replaceLocked(items []T) {
	s.items = items
	listeners := slices.Clone(s.listeners)
	ticket := s.emits.Ticket()
	s.mu.Unlock()

	s.emits.Deliver(ticket, func() {
		s.local.Save(items)
		for _, l := range listeners {
			l.fn(entity.CloneAll(items))
		}
	})
}

// detach runs a remote unsubscribe func, logging instead of propagating a
// panic.
func (s *Store[T]) detach(unsubscribe func()) {
	if unsubscribe == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("remote unsubscribe panicked", "panic", r)
		}
	}()
	unsubscribe()
}
