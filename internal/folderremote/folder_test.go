package folderremote

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wedplan/internal/entity"
	"github.com/roach88/wedplan/internal/remote"
)

func setupFolder(t *testing.T) *Folder {
	t.Helper()
	f, err := Open(t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

type recorder struct {
	mu  sync.Mutex
	got [][]entity.Record
}

func (r *recorder) add(records []entity.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, records)
}

func (r *recorder) snapshots() [][]entity.Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]entity.Record(nil), r.got...)
}

func (r *recorder) last() []entity.Record {
	s := r.snapshots()
	if len(s) == 0 {
		return nil
	}
	return s[len(s)-1]
}

func TestOpen_CreatesCollectionDirs(t *testing.T) {
	f := setupFolder(t)
	for _, name := range append(entity.CollectionNames(), remote.SettingsCollection) {
		info, err := os.Stat(filepath.Join(f.Dir(), name))
		require.NoError(t, err, name)
		assert.True(t, info.IsDir())
		_, ok := f.Collection(name)
		assert.True(t, ok)
	}
	_, ok := f.Collection("photos")
	assert.False(t, ok)
}

func TestCollection_Writes(t *testing.T) {
	ctx := context.Background()
	f := setupFolder(t)
	coll, _ := f.Collection("tasks")

	var rec recorder
	unsubscribe, err := coll.Listen(ctx, rec.add)
	require.NoError(t, err)
	defer unsubscribe()
	require.Len(t, rec.snapshots(), 1)
	assert.Empty(t, rec.last())

	require.NoError(t, coll.Add(ctx, "t1", entity.Record{"id": "ignored", "description": "Flores"}))
	require.NoError(t, coll.Update(ctx, "t1", entity.Record{"completed": true}))
	assert.Equal(t, []entity.Record{{"id": "t1", "description": "Flores", "completed": true}}, rec.last())

	data, err := os.ReadFile(filepath.Join(f.Dir(), "tasks", "t1.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(data), "ignored")

	require.NoError(t, coll.Delete(ctx, "t1"))
	require.NoError(t, coll.Delete(ctx, "t1"))
	records, err := coll.Fetch(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCollection_UpdateMissing(t *testing.T) {
	f := setupFolder(t)
	coll, _ := f.Collection("tasks")
	err := coll.Update(context.Background(), "nope", entity.Record{"completed": true})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.False(t, remote.IsSyncDisabled(remote.Wrap("update", "tasks", err)), "a missing document is a remote failure")
}

func TestCollection_InvalidIDs(t *testing.T) {
	f := setupFolder(t)
	coll, _ := f.Collection("tasks")
	for _, id := range []string{"", ".hidden", "../escape", `a\b`} {
		assert.Error(t, coll.Add(context.Background(), id, entity.Record{"description": "x"}), id)
	}
}

func TestCollection_ExternalChanges(t *testing.T) {
	ctx := context.Background()
	f := setupFolder(t)
	coll, _ := f.Collection("guests")

	var rec recorder
	unsubscribe, err := coll.Listen(ctx, rec.add)
	require.NoError(t, err)
	defer unsubscribe()

	path := filepath.Join(f.Dir(), "guests", "g1.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"Lucía","rsvp":"confirmado"}`), 0o644))

	require.Eventually(t, func() bool { return len(rec.last()) == 1 }, 3*time.Second, 20*time.Millisecond)
	assert.Equal(t, entity.Record{"id": "g1", "name": "Lucía", "rsvp": "confirmado"}, rec.last()[0])

	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool { return len(rec.last()) == 0 }, 3*time.Second, 20*time.Millisecond)
}

func TestCollection_SkipsUnreadableFiles(t *testing.T) {
	f := setupFolder(t)
	dir := filepath.Join(f.Dir(), "ideas")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hola"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "i1.json"), []byte(`{"title":"Arco floral"}`), 0o644))

	coll, _ := f.Collection("ideas")
	records, err := coll.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []entity.Record{{"id": "i1", "title": "Arco floral"}}, records)
}

func TestCollection_RepeatedSnapshotsDropped(t *testing.T) {
	ctx := context.Background()
	f := setupFolder(t)
	coll, _ := f.Collection("tasks")

	var rec recorder
	unsubscribe, err := coll.Listen(ctx, rec.add)
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, coll.Add(ctx, "t1", entity.Record{"description": "x"}))
	require.NoError(t, coll.Delete(ctx, "missing"))

	// Give the watcher time to report the writes it saw.
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, rec.snapshots(), 2)
}

func TestClose_Idempotent(t *testing.T) {
	f, err := Open(t.TempDir(), nil, "tasks")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, f.Close())
}
