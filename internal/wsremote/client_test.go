package wsremote

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wedplan/internal/docstore"
	"github.com/roach88/wedplan/internal/entity"
	"github.com/roach88/wedplan/internal/hub"
	"github.com/roach88/wedplan/internal/remote"
)

func setupHub(t *testing.T) (*docstore.Store, *httptest.Server) {
	docs, ts, _ := setupHubServer(t)
	return docs, ts
}

func setupHubServer(t *testing.T) (*docstore.Store, *httptest.Server, *hub.Server) {
	t.Helper()
	docs := docstore.New(docstore.NewMemoryBackend(), nil, append(entity.CollectionNames(), remote.SettingsCollection)...)
	srv := hub.New(docs, hub.Config{Project: "boda"})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = docs.Close()
	})
	return docs, ts, srv
}

func dialHub(t *testing.T, url string) *Client {
	t.Helper()
	c, err := Dial(context.Background(), Config{URL: url, Project: "boda"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

type snapshots struct {
	mu  sync.Mutex
	got [][]entity.Record
}

func (s *snapshots) add(r []entity.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, r)
}

func (s *snapshots) last() []entity.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.got) == 0 {
		return nil
	}
	return s.got[len(s.got)-1]
}

func (s *snapshots) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"ok", Config{URL: "ws://localhost:8787", Project: "boda"}, ""},
		{"http converts", Config{URL: "https://hub.example.com", Project: "boda"}, ""},
		{"missing url", Config{Project: "boda"}, "url is required"},
		{"bad scheme", Config{URL: "ftp://x", Project: "boda"}, "scheme"},
		{"missing host", Config{URL: "ws://", Project: "boda"}, "missing host"},
		{"missing project", Config{URL: "ws://localhost"}, "project is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_Endpoint(t *testing.T) {
	got, err := Config{URL: "http://localhost:8787", Project: "boda ana"}.endpoint()
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8787/ws?project=boda+ana", got)

	got, err = Config{URL: "wss://hub.example.com/custom", Project: "p"}.endpoint()
	require.NoError(t, err)
	assert.Equal(t, "wss://hub.example.com/custom?project=p", got)
}

func TestDial_Unreachable(t *testing.T) {
	_, err := Dial(context.Background(), Config{URL: "ws://127.0.0.1:1", Project: "boda", DialTimeout: time.Second}, nil)
	require.Error(t, err)
	assert.True(t, remote.IsSyncDisabled(err), "unreachable hub is offline: %v", err)
}

func TestDial_InvalidConfig(t *testing.T) {
	_, err := Dial(context.Background(), Config{}, nil)
	assert.True(t, remote.IsSyncUnavailable(err))
}

func TestDial_WrongProject(t *testing.T) {
	_, ts := setupHub(t)
	_, err := Dial(context.Background(), Config{URL: ts.URL, Project: "otra"}, nil)
	assert.ErrorIs(t, err, remote.ErrOffline)
}

func TestClient_Collections(t *testing.T) {
	_, ts := setupHub(t)
	c := dialHub(t, ts.URL)

	for _, name := range append(entity.CollectionNames(), remote.SettingsCollection) {
		_, ok := c.Collection(name)
		assert.True(t, ok, name)
	}
	_, ok := c.Collection("photos")
	assert.False(t, ok)
}

func TestClient_ListenAndWrite(t *testing.T) {
	ctx := context.Background()
	_, ts := setupHub(t)
	c := dialHub(t, ts.URL)
	coll, _ := c.Collection("tasks")

	var got snapshots
	unsubscribe, err := coll.Listen(ctx, got.add)
	require.NoError(t, err)
	defer unsubscribe()
	assert.Equal(t, 1, got.count(), "initial snapshot arrives before Listen returns")

	require.NoError(t, coll.Add(ctx, "t1", entity.Record{"description": "Flores"}))
	require.NoError(t, coll.Update(ctx, "t1", entity.Record{"completed": true}))

	assert.Eventually(t, func() bool { return got.count() == 3 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []entity.Record{{"id": "t1", "description": "Flores", "completed": true}}, got.last())

	records, err := coll.Fetch(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	require.NoError(t, coll.Delete(ctx, "t1"))
	records, err = coll.Fetch(ctx)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestClient_SharedBetweenClients(t *testing.T) {
	ctx := context.Background()
	_, ts := setupHub(t)
	a := dialHub(t, ts.URL)
	b := dialHub(t, ts.URL)

	collA, _ := a.Collection("guests")
	collB, _ := b.Collection("guests")

	var got snapshots
	unsubscribe, err := collA.Listen(ctx, got.add)
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, collB.Add(ctx, "g1", entity.Record{"name": "Carmen"}))
	assert.Eventually(t, func() bool { return len(got.last()) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestClient_ErrorMapping(t *testing.T) {
	ctx := context.Background()
	docs, ts := setupHub(t)
	c := dialHub(t, ts.URL)
	coll, _ := c.Collection("tasks")

	err := coll.Update(ctx, "missing", entity.Record{"completed": true})
	var se *remote.SyncError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, remote.CodeRemoteFailure, se.Code)

	docs.SetReadOnly(true)
	err = coll.Add(ctx, "t1", entity.Record{"description": "x"})
	assert.True(t, remote.IsSyncDisabled(err))
}

func TestClient_UnlistenStopsDelivery(t *testing.T) {
	ctx := context.Background()
	docs, ts := setupHub(t)
	c := dialHub(t, ts.URL)
	coll, _ := c.Collection("tasks")

	var got snapshots
	unsubscribe, err := coll.Listen(ctx, got.add)
	require.NoError(t, err)
	unsubscribe()
	unsubscribe()

	hubColl, _ := docs.Lookup("tasks")
	assert.Eventually(t, func() bool { return hubColl.ListenerCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, coll.Add(ctx, "t1", entity.Record{"description": "x"}))
	assert.Equal(t, 1, got.count())
}

func TestClient_HubGoneIsOffline(t *testing.T) {
	ctx := context.Background()
	_, ts, srv := setupHubServer(t)
	c := dialHub(t, ts.URL)
	coll, _ := c.Collection("tasks")

	require.NoError(t, srv.Stop(ctx))
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("client did not notice the closed connection")
	}

	err := coll.Add(ctx, "t1", entity.Record{"description": "x"})
	assert.ErrorIs(t, err, remote.ErrOffline)
	_, err = coll.Listen(ctx, func([]entity.Record) {})
	assert.True(t, remote.IsSyncDisabled(err))
}
