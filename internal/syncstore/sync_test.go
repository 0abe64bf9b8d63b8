package syncstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wedplan/internal/entity"
	"github.com/roach88/wedplan/internal/remote"
	"github.com/roach88/wedplan/internal/store"
	"github.com/roach88/wedplan/internal/testutil"
)

func TestInit_WithoutBindingStaysLocal(t *testing.T) {
	s := New(entity.Tasks)
	assert.Equal(t, Uninitialized, s.State())
	require.NoError(t, s.Init(context.Background()))
	assert.Equal(t, LocalOnly, s.State())
}

func TestInit_WaitsForReadySignal(t *testing.T) {
	ready := remote.NewReady()
	collab := testutil.NewScriptedCollaborator("tasks")
	collab.Get("tasks").Seed(taskA())

	s := New(entity.Tasks, WithReady(ready))
	t.Cleanup(s.Destroy)

	done := make(chan error, 1)
	go func() { done <- s.Init(context.Background()) }()

	ready.Provide(collab)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Init did not return after the ready signal")
	}
	assert.Equal(t, RemoteActive, s.State())
	assert.Equal(t, []string{"a"}, entity.IDs(s.Snapshot()))
}

func TestInit_ReturnsContextErrorWhileWaiting(t *testing.T) {
	s := New(entity.Tasks, WithReady(remote.NewReady()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.Init(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, LocalOnly, s.State())
}

func TestInit_MissingCollectionStaysLocal(t *testing.T) {
	ready := remote.NewReady()
	ready.Provide(testutil.NewScriptedCollaborator("guests"))

	s := New(entity.Tasks, WithReady(ready))
	require.NoError(t, s.Init(context.Background()))
	assert.Equal(t, LocalOnly, s.State())
}

func TestInit_ReadyWithoutCollaboratorStaysLocal(t *testing.T) {
	ready := remote.NewReady()
	ready.Provide(nil)

	s := New(entity.Tasks, WithReady(ready))
	require.NoError(t, s.Init(context.Background()))
	assert.Equal(t, LocalOnly, s.State())
}

func TestInit_ListenFailureStaysLocal(t *testing.T) {
	collab := testutil.NewScriptedCollaborator("tasks")
	collab.Get("tasks").FailNext("listen", errors.New("handshake failed"))
	ready := remote.NewReady()
	ready.Provide(collab)

	s := New(entity.Tasks, WithReady(ready))
	require.NoError(t, s.Init(context.Background()))
	assert.Equal(t, LocalOnly, s.State())

	// A later Init reconnects.
	require.NoError(t, s.Init(context.Background()))
	assert.Equal(t, RemoteActive, s.State())
}

func TestInit_IdempotentWhenActive(t *testing.T) {
	f := setupRemoteStore(t, taskA())
	require.NoError(t, f.store.Init(context.Background()))
	assert.Equal(t, 1, f.coll.ListenerCount())
}

func TestInit_ReconnectsAfterDegrade(t *testing.T) {
	f := setupRemoteStore(t, taskA())
	f.coll.FailNext("delete", remote.ErrOffline)
	require.NoError(t, f.store.Delete(context.Background(), "a"))
	require.Equal(t, LocalOnly, f.store.State())

	require.NoError(t, f.store.Init(context.Background()))
	assert.Equal(t, RemoteActive, f.store.State())
	assert.Equal(t, 1, f.coll.ListenerCount())
	// The remote still has "a" and wins.
	assert.Equal(t, []string{"a"}, entity.IDs(f.store.Snapshot()))
}

// leakyCollaborator hands out listeners whose unsubscribe does nothing, so
// the store must ignore their snapshots on its own.
type leakyCollaborator struct {
	coll *testutil.ScriptedCollection
}

func (l leakyCollaborator) Collection(string) (remote.Collection, bool) {
	return leakyCollection{l.coll}, true
}

type leakyCollection struct {
	*testutil.ScriptedCollection
}

func (l leakyCollection) Listen(ctx context.Context, fn func([]entity.Record)) (func(), error) {
	_, err := l.ScriptedCollection.Listen(ctx, fn)
	return func() {}, err
}

func TestStaleListenerSnapshotsAreIgnored(t *testing.T) {
	coll := testutil.NewScriptedCollection("tasks")
	coll.Seed(taskA())
	ready := remote.NewReady()
	ready.Provide(leakyCollaborator{coll: coll})

	s := New(entity.Tasks, WithReady(ready))
	require.NoError(t, s.Init(context.Background()))
	require.Equal(t, []string{"a"}, entity.IDs(s.Snapshot()))

	coll.FailNext("update", remote.ErrSyncDisabled)
	require.NoError(t, s.Update(context.Background(), "a", entity.Record{"completed": true}))
	require.Equal(t, LocalOnly, s.State())

	coll.Push(taskB())
	assert.Equal(t, []string{"a"}, entity.IDs(s.Snapshot()))

	s.Destroy()
	coll.Push(entity.Record{"id": "z", "description": "Z"})
	assert.Equal(t, []string{"a"}, entity.IDs(s.Snapshot()))
}

type panickyCollaborator struct{}

func (panickyCollaborator) Collection(string) (remote.Collection, bool) {
	return panickyCollection{testutil.NewScriptedCollection("tasks")}, true
}

type panickyCollection struct {
	*testutil.ScriptedCollection
}

func (p panickyCollection) Listen(ctx context.Context, fn func([]entity.Record)) (func(), error) {
	_, err := p.ScriptedCollection.Listen(ctx, fn)
	return func() { panic("listener already closed") }, err
}

func TestDestroy_RecoversAndIsIdempotent(t *testing.T) {
	ready := remote.NewReady()
	ready.Provide(panickyCollaborator{})
	s := New(entity.Tasks, WithReady(ready))
	require.NoError(t, s.Init(context.Background()))

	rec := &recorder[entity.Task]{}
	s.Subscribe(rec.listen)
	rec.reset()

	assert.NotPanics(t, s.Destroy)
	assert.NotPanics(t, s.Destroy)
	assert.Equal(t, LocalOnly, s.State())

	_, _, err := s.Add(context.Background(), entity.Record{"description": "after destroy"})
	require.NoError(t, err)
	assert.Empty(t, rec.emissions(), "listeners are cleared")
}

func TestSeedRemote(t *testing.T) {
	kv := store.NewMemoryKV()
	local := New(entity.Tasks, WithKV(kv))
	_, _, err := local.Add(context.Background(), taskA())
	require.NoError(t, err)
	_, _, err = local.Add(context.Background(), taskB())
	require.NoError(t, err)

	collab := testutil.NewScriptedCollaborator("tasks")
	coll := collab.Get("tasks")
	ready := remote.NewReady()
	ready.Provide(collab)

	s := New(entity.Tasks, WithKV(kv), WithReady(ready), WithSeedRemote(true))
	require.NoError(t, s.Init(context.Background()))

	assert.Len(t, coll.Records(), 2)
	assert.Equal(t, []string{"a", "b"}, entity.IDs(s.Snapshot()))

	var ops []string
	for _, c := range coll.Calls() {
		ops = append(ops, c.Op)
	}
	assert.Equal(t, []string{"fetch", "add", "add", "listen"}, ops)
}

func TestSeedRemote_SkipsWhenRemoteHasData(t *testing.T) {
	kv := store.NewMemoryKV()
	local := New(entity.Tasks, WithKV(kv))
	_, _, err := local.Add(context.Background(), taskA())
	require.NoError(t, err)

	collab := testutil.NewScriptedCollaborator("tasks")
	coll := collab.Get("tasks")
	coll.Seed(taskB())
	ready := remote.NewReady()
	ready.Provide(collab)

	s := New(entity.Tasks, WithKV(kv), WithReady(ready), WithSeedRemote(true))
	require.NoError(t, s.Init(context.Background()))

	assert.Len(t, coll.Records(), 1)
	assert.Equal(t, []string{"b"}, entity.IDs(s.Snapshot()), "remote snapshot wins")
}

// gatedCollection blocks updates until released, then fails them.
type gatedCollection struct {
	*testutil.ScriptedCollection
	entered chan struct{}
	release chan struct{}
}

func (g gatedCollection) Update(context.Context, string, entity.Record) error {
	close(g.entered)
	<-g.release
	return errors.New("rejected")
}

type gatedCollaborator struct{ coll gatedCollection }

func (g gatedCollaborator) Collection(string) (remote.Collection, bool) { return g.coll, true }

func TestRollbackCanUndoConcurrentAdd(t *testing.T) {
	inner := testutil.NewScriptedCollection("tasks")
	inner.Seed(taskA(), taskB())
	inner.SetEcho(false)
	gated := gatedCollection{
		ScriptedCollection: inner,
		entered:            make(chan struct{}),
		release:            make(chan struct{}),
	}
	ready := remote.NewReady()
	ready.Provide(gatedCollaborator{coll: gated})

	s := New(entity.Tasks, WithReady(ready))
	require.NoError(t, s.Init(context.Background()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Update(context.Background(), "a", entity.Record{"completed": true})
	}()
	<-gated.entered

	_, _, err := s.Add(context.Background(), entity.Record{"id": "c", "description": "C"})
	require.NoError(t, err)
	assert.Contains(t, entity.IDs(s.Snapshot()), "c")

	close(gated.release)
	require.Error(t, <-errCh)

	// The rollback restored the collection captured before the update,
	// dropping the concurrent local add. The remote still has it and the
	// next snapshot brings it back.
	assert.Equal(t, []string{"a", "b"}, entity.IDs(s.Snapshot()))
	assert.Len(t, inner.Records(), 3)
}

type recordingMetrics struct {
	mu        sync.Mutex
	mutations []string
	states    []string
	snapshots []int
}

func (m *recordingMetrics) ObserveMutation(kind, op, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutations = append(m.mutations, op+":"+outcome)
}

func (m *recordingMetrics) ObserveSnapshot(kind string, size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots = append(m.snapshots, size)
}

func (m *recordingMetrics) ObserveState(kind, state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, state)
}

func TestMetricsObserveOutcomes(t *testing.T) {
	collab := testutil.NewScriptedCollaborator("tasks")
	coll := collab.Get("tasks")
	ready := remote.NewReady()
	ready.Provide(collab)
	m := &recordingMetrics{}

	s := New(entity.Tasks, WithReady(ready), WithMetrics(m))
	require.NoError(t, s.Init(context.Background()))

	ctx := context.Background()
	_, _, err := s.Add(ctx, entity.Record{"id": "a", "description": "A"})
	require.NoError(t, err)
	_, _, err = s.Add(ctx, entity.Record{"description": ""})
	require.NoError(t, err)
	coll.FailNext("update", errors.New("boom"))
	require.Error(t, s.Update(ctx, "a", entity.Record{"completed": true}))
	coll.FailNext("delete", remote.ErrSyncDisabled)
	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"))

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Equal(t, []string{
		"add:synced",
		"add:rejected",
		"update:rolled_back",
		"delete:degraded",
		"delete:local",
	}, m.mutations)
	assert.Equal(t, []string{"uninitialized", "local-only", "remote-active", "local-only"}, m.states)
	assert.Equal(t, []int{0, 1}, m.snapshots)
}
