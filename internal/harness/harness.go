package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/wedplan/internal/entity"
	"github.com/roach88/wedplan/internal/remote"
	"github.com/roach88/wedplan/internal/store"
	"github.com/roach88/wedplan/internal/syncstore"
	"github.com/roach88/wedplan/internal/testutil"
)

// errRejected is the hard failure queued by "fail" steps with error
// "failure".
var errRejected = errors.New("remote write rejected")

// runMu serializes runs: entity ids are generated through a package
// variable that each run pins to its own sequence.
var runMu sync.Mutex

// Harness holds the per-run fixtures of one scenario.
type Harness struct {
	scenario *Scenario
	driver   driver
	kv       *store.MemoryKV
	remote   *testutil.ScriptedCollection
	ready    *remote.Ready
	trace    *tracer
	logger   *slog.Logger
}

// Run executes a scenario and returns the result. Each run gets a fresh
// in-memory local store and remote, a deterministic clock and sequential
// ids. An error is returned only when the scenario cannot be set up;
// failed expectations are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	runMu.Lock()
	defer runMu.Unlock()

	prefix := scenario.IDPrefix
	if prefix == "" {
		prefix = "id"
	}
	ids := testutil.NewSequenceIDGenerator(prefix)
	prevID := entity.NewID
	entity.NewID = ids.Generate
	defer func() { entity.NewID = prevID }()

	h, err := newHarness(scenario)
	if err != nil {
		return nil, err
	}
	defer h.driver.Destroy()

	ctx := context.Background()
	result := NewResult()

	unsubscribe := h.driver.Subscribe(func(ids []string) {
		h.trace.add(TraceEvent{Type: EventEmit, IDs: ids})
	})
	defer unsubscribe()
	// The first delivery is the current collection, not a change.
	h.trace.reset()

	state := h.driver.State()
	for i, step := range scenario.Steps {
		if err := h.execute(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if next := h.driver.State(); next != state {
			h.trace.add(TraceEvent{Type: EventState, State: next.String()})
			state = next
		}
	}

	result.Trace = h.trace.snapshot()
	result.Final = h.driver.Records()

	actx := &AssertionContext{Driver: h.driver, Remote: h.remote}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(scenario *Scenario) (*Harness, error) {
	open, ok := drivers[scenario.Kind]
	if !ok {
		return nil, fmt.Errorf("unknown kind %q", scenario.Kind)
	}

	clockSpec := ClockSpec{Start: 1000, Step: 1}
	if scenario.Clock != nil {
		clockSpec = *scenario.Clock
	}

	h := &Harness{
		scenario: scenario,
		kv:       store.NewMemoryKV(),
		ready:    remote.NewReady(),
		trace:    &tracer{},
		logger:   testutil.DiscardLogger(),
	}

	if scenario.scripted() {
		collab := testutil.NewScriptedCollaborator(scenario.Kind)
		h.remote = collab.Get(scenario.Kind)
		h.remote.SetEcho(scenario.echo())
		h.remote.Seed(scenario.RemoteRecords...)
		h.ready.Provide(&recordingCollaborator{inner: collab, trace: h.trace})
	} else {
		h.ready.Provide(nil)
	}

	h.driver = open(h.kv, scenario.Local, h.logger,
		syncstore.WithKV(h.kv),
		syncstore.WithReady(h.ready),
		syncstore.WithLogger(h.logger),
		syncstore.WithClock(testutil.NewDeterministicClock(clockSpec.Start, clockSpec.Step)),
		syncstore.WithSeedRemote(scenario.SeedRemote),
	)
	return h, nil
}

// execute runs one step and checks its expect clause.
func (h *Harness) execute(ctx context.Context, index int, step Step, result *Result) error {
	ev := h.trace.add(TraceEvent{
		Type: EventStep,
		Op:   step.Op,
		ID:   step.ID,
		Args: stepArgs(step),
	})

	outcome := "ok"
	var assigned string
	switch step.Op {
	case OpInit:
		if err := h.driver.Init(ctx); err != nil {
			return err
		}
	case OpAdd:
		id, ok, err := h.driver.Add(ctx, step.Record)
		switch {
		case err != nil:
			outcome = outcomeOf(err)
		case !ok:
			outcome = "invalid"
		}
		if ok {
			assigned = id
		}
	case OpUpdate:
		outcome = outcomeOf(h.driver.Update(ctx, step.ID, step.Changes))
	case OpDelete:
		outcome = outcomeOf(h.driver.Delete(ctx, step.ID))
	case OpPush:
		h.remote.Push(step.Records...)
	case OpFail:
		h.remote.FailNext(step.RemoteOp, failure(step.Error))
	case OpDestroy:
		h.driver.Destroy()
	}

	h.trace.update(ev, func(e *TraceEvent) {
		e.Outcome = outcome
		if assigned != "" {
			e.ID = assigned
		}
	})

	if step.Expect == nil {
		return nil
	}
	if step.Expect.Outcome != outcome {
		result.AddError(fmt.Sprintf("steps[%d] %s: expected outcome %s, got %s",
			index, step.Op, step.Expect.Outcome, outcome))
	}
	if step.Expect.ID != "" && step.Expect.ID != assigned {
		result.AddError(fmt.Sprintf("steps[%d] %s: expected id %s, got %q",
			index, step.Op, step.Expect.ID, assigned))
	}
	h.logger.Debug("step validated", "step", index, "op", step.Op, "outcome", outcome)
	return nil
}

// stepArgs is the input recorded for a step in the trace.
func stepArgs(step Step) entity.Record {
	switch step.Op {
	case OpAdd:
		return step.Record
	case OpUpdate:
		return step.Changes
	case OpFail:
		return entity.Record{"remote_op": step.RemoteOp, "error": step.Error}
	case OpPush:
		ids := make([]any, 0, len(step.Records))
		for _, r := range step.Records {
			ids = append(ids, r["id"])
		}
		return entity.Record{"ids": ids}
	}
	return nil
}

// outcomeOf maps a store error to its trace outcome.
func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	var se *remote.SyncError
	if errors.As(err, &se) {
		return string(se.Code)
	}
	return "error: " + err.Error()
}

func failure(name string) error {
	switch name {
	case FailDisabled:
		return remote.ErrSyncDisabled
	case FailOffline:
		return remote.ErrOffline
	case FailUnavailable:
		return remote.ErrSyncUnavailable
	}
	return errRejected
}

// recordingCollaborator traces every remote call before passing it on.
type recordingCollaborator struct {
	inner remote.Collaborator
	trace *tracer
}

func (c *recordingCollaborator) Collection(name string) (remote.Collection, bool) {
	coll, ok := c.inner.Collection(name)
	if !ok {
		return nil, false
	}
	return &recordingCollection{name: name, inner: coll, trace: c.trace}, true
}

type recordingCollection struct {
	name  string
	inner remote.Collection
	trace *tracer
}

func (c *recordingCollection) call(op, id string, payload entity.Record, fn func() error) error {
	t := c.trace
	ev := t.add(TraceEvent{Type: EventCall, Op: op, ID: id, Payload: payload.Clone()})
	err := fn()
	if err != nil {
		var se *remote.SyncError
		if errors.As(remote.Wrap(op, c.name, err), &se) {
			t.update(ev, func(e *TraceEvent) { e.Error = string(se.Code) })
		}
	}
	return err
}

func (c *recordingCollection) Listen(ctx context.Context, onRecords func([]entity.Record)) (func(), error) {
	var unsubscribe func()
	err := c.call("listen", "", nil, func() error {
		var err error
		unsubscribe, err = c.inner.Listen(ctx, onRecords)
		return err
	})
	return unsubscribe, err
}

func (c *recordingCollection) Fetch(ctx context.Context) ([]entity.Record, error) {
	var records []entity.Record
	err := c.call("fetch", "", nil, func() error {
		var err error
		records, err = c.inner.Fetch(ctx)
		return err
	})
	return records, err
}

func (c *recordingCollection) Add(ctx context.Context, id string, payload entity.Record) error {
	return c.call("add", id, payload, func() error { return c.inner.Add(ctx, id, payload) })
}

func (c *recordingCollection) Update(ctx context.Context, id string, changes entity.Record) error {
	return c.call("update", id, changes, func() error { return c.inner.Update(ctx, id, changes) })
}

func (c *recordingCollection) Delete(ctx context.Context, id string) error {
	return c.call("delete", id, nil, func() error { return c.inner.Delete(ctx, id) })
}

// driver adapts a typed store to the record-level operations scenarios
// use.
type driver interface {
	Init(ctx context.Context) error
	Destroy()
	Add(ctx context.Context, rec entity.Record) (string, bool, error)
	Update(ctx context.Context, id string, changes entity.Record) error
	Delete(ctx context.Context, id string) error
	Subscribe(fn func(ids []string)) func()
	State() syncstore.State
	Records() []entity.Record
	Persisted() []entity.Record
}

type openDriver func(kv store.KV, local []entity.Record, logger *slog.Logger, opts ...syncstore.Option) driver

var drivers = map[string]openDriver{
	entity.Tasks.Name:      storeDriverFor(entity.Tasks),
	entity.Milestones.Name: storeDriverFor(entity.Milestones),
	entity.Guests.Name:     storeDriverFor(entity.Guests),
	entity.Ideas.Name:      storeDriverFor(entity.Ideas),
	entity.Venues.Name:     storeDriverFor(entity.Venues),
	entity.Budget.Name:     storeDriverFor(entity.Budget),
}

func storeDriverFor[T entity.Entity[T]](kind entity.Kind[T]) openDriver {
	return func(kv store.KV, local []entity.Record, logger *slog.Logger, opts ...syncstore.Option) driver {
		persisted := store.NewCollection(kv, kind, logger)
		if len(local) > 0 {
			persisted.Save(kind.Sort(kind.NormalizeAll(local)))
		}
		return &storeDriver[T]{store: syncstore.New(kind, opts...), persisted: persisted}
	}
}

type storeDriver[T entity.Entity[T]] struct {
	store     *syncstore.Store[T]
	persisted *store.Collection[T]
}

func (d *storeDriver[T]) Init(ctx context.Context) error { return d.store.Init(ctx) }
func (d *storeDriver[T]) Destroy()                       { d.store.Destroy() }
func (d *storeDriver[T]) State() syncstore.State         { return d.store.State() }

func (d *storeDriver[T]) Add(ctx context.Context, rec entity.Record) (string, bool, error) {
	e, ok, err := d.store.Add(ctx, rec)
	if !ok {
		return "", false, err
	}
	return e.EntityID(), true, err
}

func (d *storeDriver[T]) Update(ctx context.Context, id string, changes entity.Record) error {
	return d.store.Update(ctx, id, changes)
}

func (d *storeDriver[T]) Delete(ctx context.Context, id string) error {
	return d.store.Delete(ctx, id)
}

func (d *storeDriver[T]) Subscribe(fn func(ids []string)) func() {
	return d.store.Subscribe(func(items []T) {
		fn(entity.IDs(items))
	})
}

func (d *storeDriver[T]) Records() []entity.Record {
	return records(d.store.Snapshot())
}

func (d *storeDriver[T]) Persisted() []entity.Record {
	return records(d.persisted.Load())
}

func records[T entity.Entity[T]](items []T) []entity.Record {
	out := make([]entity.Record, len(items))
	for i, e := range items {
		out[i] = e.Record()
	}
	return out
}
