package syncstore

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/wedplan/internal/entity"
	"github.com/roach88/wedplan/internal/remote"
	"github.com/roach88/wedplan/internal/store"
	"github.com/roach88/wedplan/internal/testutil"
)

// recorder collects every collection delivered to a listener.
type recorder[T any] struct {
	mu    sync.Mutex
	calls [][]T
}

func (r *recorder[T]) listen(items []T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, items)
}

func (r *recorder[T]) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func (r *recorder[T]) emissions() [][]T {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]T(nil), r.calls...)
}

func descriptions(tasks []entity.Task) []string {
	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = t.Description
	}
	return out
}

// taskA and taskB sort as [A, B] (newest first).
func taskA() entity.Record {
	return entity.Record{"id": "a", "description": "A", "createdAt": int64(2), "updatedAt": int64(2)}
}

func taskB() entity.Record {
	return entity.Record{"id": "b", "description": "B", "createdAt": int64(1), "updatedAt": int64(1)}
}

type fixture struct {
	store *Store[entity.Task]
	coll  *testutil.ScriptedCollection
	kv    *store.MemoryKV
	rec   *recorder[entity.Task]
}

// setupRemoteStore returns a RemoteActive task store whose remote holds
// records. The recorder is subscribed and reset.
func setupRemoteStore(t *testing.T, records ...entity.Record) fixture {
	t.Helper()
	collab := testutil.NewScriptedCollaborator("tasks", remote.SettingsCollection)
	coll := collab.Get("tasks")
	coll.Seed(records...)

	ready := remote.NewReady()
	ready.Provide(collab)

	kv := store.NewMemoryKV()
	s := New(entity.Tasks,
		WithKV(kv),
		WithReady(ready),
		WithClock(testutil.NewDeterministicClock(1000, 1)))
	t.Cleanup(s.Destroy)

	require.NoError(t, s.Init(context.Background()))
	require.Equal(t, RemoteActive, s.State())

	rec := &recorder[entity.Task]{}
	s.Subscribe(rec.listen)
	rec.reset()
	return fixture{store: s, coll: coll, kv: kv, rec: rec}
}
