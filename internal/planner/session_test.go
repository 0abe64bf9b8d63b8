package planner

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wedplan/internal/config"
	"github.com/roach88/wedplan/internal/docstore"
	"github.com/roach88/wedplan/internal/entity"
	"github.com/roach88/wedplan/internal/hub"
	"github.com/roach88/wedplan/internal/syncstore"
	"github.com/roach88/wedplan/internal/testutil"
)

func testConfig(t *testing.T, mutate func(*config.Config)) *config.Config {
	t.Helper()
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.DataDir = t.TempDir()
	cfg.Blob.Dir = filepath.Join(cfg.DataDir, "blobs")
	if mutate != nil {
		mutate(cfg)
	}
	require.NoError(t, cfg.Validate())
	return cfg
}

func openSession(t *testing.T, cfg *config.Config) *Session {
	t.Helper()
	s, err := Open(context.Background(), cfg, testutil.DiscardLogger(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Init(context.Background()))
	return s
}

func TestSession_LocalOnly(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, nil)
	s := openSession(t, cfg)

	assert.Equal(t, syncstore.LocalOnly, s.Tasks.State())
	_, ok, err := s.Tasks.Add(ctx, entity.Record{"description": "Invitaciones"})
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, s.Close())

	reopened := openSession(t, cfg)
	assert.Len(t, reopened.Tasks.Snapshot(), 1, "persisted in the local database")
}

func TestSession_Embedded(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, func(c *config.Config) { c.Remote.Mode = config.RemoteEmbedded })
	s := openSession(t, cfg)

	for kind, state := range s.States() {
		assert.Equal(t, syncstore.RemoteActive, state, kind)
	}
	_, _, err := s.Guests.Add(ctx, entity.Record{"name": "Carmen"})
	require.NoError(t, err)
	require.NoError(t, s.Target.Set(ctx, 20000))
	assert.Equal(t, 20000.0, s.Target.Get().Amount)
}

func TestSession_Folder(t *testing.T) {
	ctx := context.Background()
	shared := t.TempDir()
	cfgA := testConfig(t, func(c *config.Config) {
		c.Remote.Mode = config.RemoteFolder
		c.Remote.Dir = shared
	})
	a := openSession(t, cfgA)

	task, _, err := a.Tasks.Add(ctx, entity.Record{"description": "Elegir música"})
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(shared, "tasks", task.ID+".json"))
}

func TestSession_Hub(t *testing.T) {
	ctx := context.Background()
	docs := docstore.New(docstore.NewMemoryBackend(), nil, DocumentNames()...)
	ts := httptest.NewServer(hub.New(docs, hub.Config{Project: "boda"}).Handler())
	defer ts.Close()

	cfg := testConfig(t, func(c *config.Config) {
		c.Remote.Mode = config.RemoteHub
		c.Remote.URL = ts.URL
		c.Remote.Project = "boda"
	})
	s := openSession(t, cfg)
	assert.Equal(t, syncstore.RemoteActive, s.Venues.State())

	_, _, err := s.Venues.Add(ctx, entity.Record{"name": "Finca El Olivar"})
	require.NoError(t, err)

	coll, _ := docs.Lookup("venues")
	records, err := coll.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Finca El Olivar", records[0]["name"])
}

func TestSession_UnreachableHubFallsBackLocal(t *testing.T) {
	cfg := testConfig(t, func(c *config.Config) {
		c.Remote.Mode = config.RemoteHub
		c.Remote.URL = "ws://127.0.0.1:1"
		c.Remote.Project = "boda"
	})
	s := openSession(t, cfg)
	assert.Equal(t, syncstore.LocalOnly, s.Tasks.State())
}

func TestOpenDocuments(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, func(c *config.Config) { c.Hub.ReadOnly = true })

	docs, err := OpenDocuments(ctx, cfg, testutil.DiscardLogger())
	require.NoError(t, err)
	defer docs.Close()
	assert.True(t, docs.ReadOnly())
	assert.ElementsMatch(t, DocumentNames(), docs.Names())

	cfg.Hub.Backend = "memory"
	mem, err := OpenDocuments(ctx, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, mem.Close())

	cfg.Hub.Backend = "postgres"
	cfg.Hub.DSN = ""
	_, err = OpenDocuments(ctx, cfg, nil)
	assert.Error(t, err)
}
