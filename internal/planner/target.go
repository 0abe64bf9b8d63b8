package planner

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/roach88/wedplan/internal/entity"
	"github.com/roach88/wedplan/internal/remote"
	"github.com/roach88/wedplan/internal/store"
	"github.com/roach88/wedplan/internal/syncstore"
)

// TargetDocID is the budget target's document id in the settings
// collection.
const TargetDocID = "budget"

// Target holds the budget target. It follows the same protocol as the
// entity stores: optimistic local change, remote write, degrade on
// sync-disabled, roll back on hard failure, remote value wins.
type Target struct {
	kv     store.KV
	doc    *remote.Document
	clock  syncstore.Clock
	logger *slog.Logger

	mu          sync.Mutex
	value       entity.BudgetTarget
	listeners   map[int]func(entity.BudgetTarget)
	nextID      int
	active      bool
	unsubscribe func()
	generation  uint64 // bumped whenever the listener is replaced or stopped
	destroyed   bool

	emits syncstore.Emitter
}

func newTarget(kv store.KV, ready *remote.Ready, clock syncstore.Clock, logger *slog.Logger) *Target {
	t := &Target{
		kv:        kv,
		clock:     clock,
		logger:    logger.With("kind", "budget-target"),
		listeners: make(map[int]func(entity.BudgetTarget)),
	}
	if ready != nil {
		t.doc = remote.NewDocument(ready, remote.SettingsCollection, TargetDocID)
	}
	if r := store.LoadRecord(kv, entity.BudgetTargetKey, t.logger); r != nil {
		t.value = entity.NormalizeBudgetTarget(r)
	}
	return t
}

// Get returns the current target.
func (t *Target) Get() entity.BudgetTarget {
	t.mu.Lock()
	defer t.mu.Unlock()
	return cloneTarget(t.value)
}

// Active reports whether the target is synced with a collaborator.
func (t *Target) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Subscribe registers fn and delivers the current target to it.
func (t *Target) Subscribe(fn func(entity.BudgetTarget)) (unsubscribe func()) {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	value := t.value
	ticket := t.emits.Ticket()
	t.mu.Unlock()

	t.emits.Deliver(ticket, func() { fn(cloneTarget(value)) })

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.listeners, id)
			t.mu.Unlock()
		})
	}
}

// Init connects to the settings collection. An empty remote target is
// seeded from local data.
func (t *Target) Init(ctx context.Context) error {
	if t.doc == nil {
		return nil
	}
	t.mu.Lock()
	if t.active || t.destroyed {
		t.mu.Unlock()
		return nil
	}
	t.mu.Unlock()

	if _, err := t.doc.Ready().Wait(ctx); err != nil {
		return err
	}

	current, err := t.doc.Get(ctx)
	if err != nil {
		t.logger.Info("remote sync unavailable, working locally", "error", err)
		return nil
	}
	if current == nil {
		if local := t.Get(); local.Amount > 0 {
			if err := t.doc.Set(ctx, local.Record()); err != nil {
				t.logger.Info("could not seed remote target, working locally", "error", err)
				return nil
			}
		}
	}

	t.mu.Lock()
	t.generation++
	gen := t.generation
	previous := t.unsubscribe
	t.unsubscribe = nil
	t.mu.Unlock()
	t.detach(previous)

	unsubscribe, err := t.doc.Listen(ctx, func(r entity.Record) {
		if r == nil {
			return
		}
		t.mu.Lock()
		if gen != t.generation {
			t.mu.Unlock()
			return
		}
		t.replaceLocked(entity.NormalizeBudgetTarget(r))
	})
	if err != nil {
		t.logger.Info("remote sync unavailable, working locally", "error", err)
		return nil
	}

	t.mu.Lock()
	if t.destroyed || gen != t.generation {
		// A later Init or a stop replaced this listener while it attached.
		t.mu.Unlock()
		t.detach(unsubscribe)
		return nil
	}
	t.unsubscribe = unsubscribe
	t.active = true
	t.mu.Unlock()
	return nil
}

// Set changes the target amount. Invalid or negative amounts become 0.
func (t *Target) Set(ctx context.Context, amount any) error {
	now := t.clock.NowMillis()
	next := entity.BudgetTarget{Amount: entity.Amount(amount), UpdatedAt: &now}

	t.mu.Lock()
	before := t.value
	active := t.active
	t.replaceLocked(next)
	if !active {
		return nil
	}

	err := t.doc.Set(ctx, next.Record())
	switch {
	case err == nil:
		return nil
	case remote.IsSyncDisabled(err):
		t.logger.Warn("remote sync disabled, continuing locally", "op", "set", "error", err)
		t.stop()
		return nil
	}
	t.logger.Error("remote write failed, rolling back", "op", "set", "error", err)
	t.mu.Lock()
	t.replaceLocked(before)
	return err
}

// Destroy detaches the remote listener and drops every subscriber. A
// later Init does not reattach.
func (t *Target) Destroy() {
	t.mu.Lock()
	t.destroyed = true
	t.listeners = make(map[int]func(entity.BudgetTarget))
	t.mu.Unlock()
	t.stop()
}

func (t *Target) stop() {
	t.mu.Lock()
	t.generation++
	t.active = false
	unsubscribe := t.unsubscribe
	t.unsubscribe = nil
	t.mu.Unlock()
	t.detach(unsubscribe)
}

// detach runs a remote unsubscribe func, logging instead of propagating a
// panic.
func (t *Target) detach(unsubscribe func()) {
	if unsubscribe == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			t.logger.Warn("remote unsubscribe panicked", "panic", r)
		}
	}()
	unsubscribe()
}

// replaceLocked must be called with t.mu held and releases it.
func (t *Target) replaceLocked(value entity.BudgetTarget) {
	t.value = value
	keys := make([]int, 0, len(t.listeners))
	for k := range t.listeners {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	listeners := make([]func(entity.BudgetTarget), 0, len(keys))
	for _, k := range keys {
		listeners = append(listeners, t.listeners[k])
	}

	ticket := t.emits.Ticket()
	t.mu.Unlock()

	t.emits.Deliver(ticket, func() {
		store.SaveRecord(t.kv, entity.BudgetTargetKey, value.Record(), t.logger)
		for _, l := range listeners {
			l(cloneTarget(value))
		}
	})
}

func cloneTarget(v entity.BudgetTarget) entity.BudgetTarget {
	if v.UpdatedAt != nil {
		ts := *v.UpdatedAt
		v.UpdatedAt = &ts
	}
	return v
}
