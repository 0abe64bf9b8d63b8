package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/wedplan/internal/entity"
	"github.com/roach88/wedplan/internal/remote"
)

func TestScriptedCollection_EchoesWrites(t *testing.T) {
	ctx := context.Background()
	collab := NewScriptedCollaborator("tasks")
	coll := collab.Get("tasks")

	var snapshots [][]entity.Record
	unsubscribe, err := coll.Listen(ctx, func(r []entity.Record) { snapshots = append(snapshots, r) })
	require.NoError(t, err)

	require.NoError(t, coll.Add(ctx, "t1", entity.Record{"description": "A"}))
	require.NoError(t, coll.Update(ctx, "t1", entity.Record{"completed": true}))
	require.NoError(t, coll.Delete(ctx, "t1"))

	require.Len(t, snapshots, 4)
	assert.Empty(t, snapshots[0])
	assert.Equal(t, []entity.Record{{"id": "t1", "description": "A", "completed": true}}, snapshots[2])
	assert.Empty(t, snapshots[3])

	unsubscribe()
	unsubscribe()
	assert.Equal(t, 0, coll.ListenerCount())
}

func TestScriptedCollection_FailNext(t *testing.T) {
	ctx := context.Background()
	coll := NewScriptedCollection("tasks")
	boom := errors.New("boom")
	coll.FailNext("add", boom)

	assert.ErrorIs(t, coll.Add(ctx, "a", entity.Record{}), boom)
	assert.NoError(t, coll.Add(ctx, "a", entity.Record{}))
	assert.Len(t, coll.Records(), 1)
}

func TestScriptedCollection_UpdateMissingIsHardFailure(t *testing.T) {
	err := NewScriptedCollection("guests").Update(context.Background(), "nope", entity.Record{"rsvp": "confirmado"})
	require.Error(t, err)
	assert.False(t, remote.IsSyncDisabled(err))
}

func TestScriptedCollaborator_MissingCollection(t *testing.T) {
	_, ok := NewScriptedCollaborator("tasks").Collection("ideas")
	assert.False(t, ok)
}
