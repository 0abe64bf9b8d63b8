package remote

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/wedplan/internal/entity"
)

// BindingOption configures a Binding.
type BindingOption func(*bindingConfig)

type bindingConfig struct {
	now    func() int64
	logger *slog.Logger
}

// WithNow overrides the epoch-millisecond clock used to stamp payloads.
func WithNow(now func() int64) BindingOption {
	return func(c *bindingConfig) {
		c.now = now
	}
}

// WithBindingLogger sets the binding's logger.
func WithBindingLogger(logger *slog.Logger) BindingOption {
	return func(c *bindingConfig) {
		c.logger = logger
	}
}

// Binding adapts one remote collection to an entity kind: records coming
// in go through the kind's normalizer and entities going out are shaped
// into remote payloads.
//
// The collection is resolved lazily from the Ready signal and cached.
type Binding[T entity.Entity[T]] struct {
	kind  entity.Kind[T]
	ready *Ready
	cfg   bindingConfig

	mu   sync.Mutex
	coll Collection
}

// NewBinding returns an unconnected binding for kind.
func NewBinding[T entity.Entity[T]](kind entity.Kind[T], ready *Ready, opts ...BindingOption) *Binding[T] {
	cfg := bindingConfig{
		now:    func() int64 { return time.Now().UnixMilli() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Binding[T]{kind: kind, ready: ready, cfg: cfg}
}

// Kind returns the bound entity kind.
func (b *Binding[T]) Kind() entity.Kind[T] {
	return b.kind
}

// Ready returns the signal the binding resolves its collaborator from.
func (b *Binding[T]) Ready() *Ready {
	return b.ready
}

// Connect resolves the collection without blocking. Before the ready
// signal it fails with ErrNotReady wrapped in SYNC_UNAVAILABLE; a missing
// collaborator or collection fails with SYNC_UNAVAILABLE.
func (b *Binding[T]) Connect() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.coll != nil {
		return nil
	}
	if b.ready == nil {
		return Unavailable("connect", b.kind.Name, nil)
	}
	select {
	case <-b.ready.Done():
	default:
		return Unavailable("connect", b.kind.Name, ErrNotReady)
	}
	collab, ok := b.ready.Current()
	if !ok {
		return Unavailable("connect", b.kind.Name, nil)
	}
	coll, ok := collab.Collection(b.kind.Name)
	if !ok || coll == nil {
		return Unavailable("connect", b.kind.Name, nil)
	}
	b.coll = coll
	return nil
}

// EnsureConnected waits for the ready signal, then connects.
func (b *Binding[T]) EnsureConnected(ctx context.Context) error {
	if b.ready == nil {
		return Unavailable("connect", b.kind.Name, nil)
	}
	if _, err := b.ready.Wait(ctx); err != nil {
		return err
	}
	return b.Connect()
}

func (b *Binding[T]) collection(op string) (Collection, error) {
	if err := b.Connect(); err != nil {
		var se *SyncError
		if errors.As(err, &se) {
			se.Op = op
		}
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.coll, nil
}

// Listen attaches onEntities to the remote collection. Each delivery is
// the normalized remote collection; invalid documents are dropped.
func (b *Binding[T]) Listen(ctx context.Context, onEntities func([]T)) (func(), error) {
	coll, err := b.collection("listen")
	if err != nil {
		return nil, err
	}
	unsubscribe, err := coll.Listen(ctx, func(records []entity.Record) {
		onEntities(b.kind.NormalizeAll(records))
	})
	if err != nil {
		return nil, Wrap("listen", b.kind.Name, err)
	}
	return unsubscribe, nil
}

// Fetch reads the remote collection once.
func (b *Binding[T]) Fetch(ctx context.Context) ([]T, error) {
	coll, err := b.collection("fetch")
	if err != nil {
		return nil, err
	}
	records, err := coll.Fetch(ctx)
	if err != nil {
		return nil, Wrap("fetch", b.kind.Name, err)
	}
	return b.kind.NormalizeAll(records), nil
}

// Add writes e under its id.
func (b *Binding[T]) Add(ctx context.Context, e T) error {
	coll, err := b.collection("add")
	if err != nil {
		return err
	}
	payload := b.kind.RemotePayload(e, b.cfg.now())
	return Wrap("add", b.kind.Name, coll.Add(ctx, e.EntityID(), payload))
}

// Update sends the sanitized change-set for id. An empty change-set sends
// nothing.
func (b *Binding[T]) Update(ctx context.Context, id string, changes entity.Record) error {
	payload := b.kind.RemoteChanges(changes, b.cfg.now())
	if payload == nil {
		b.cfg.logger.Debug("skipping empty remote update", "kind", b.kind.Name, "id", id)
		return nil
	}
	coll, err := b.collection("update")
	if err != nil {
		return err
	}
	return Wrap("update", b.kind.Name, coll.Update(ctx, id, payload))
}

// Delete removes id remotely.
func (b *Binding[T]) Delete(ctx context.Context, id string) error {
	coll, err := b.collection("delete")
	if err != nil {
		return err
	}
	return Wrap("delete", b.kind.Name, coll.Delete(ctx, id))
}

// Reset forgets the cached collection so the next call resolves it again.
func (b *Binding[T]) Reset() {
	b.mu.Lock()
	b.coll = nil
	b.mu.Unlock()
}
