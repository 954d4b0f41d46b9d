// ABOUTME: Tests for the in-process remote store.
// ABOUTME: Covers CRUD, queries, reachability, failure injection and copies.
package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/liftlog/internal/remote"
)

func TestUpsertGetDelete(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Upsert(ctx, remote.CollectionLogs, "a", remote.Document{"id": "a", "uid": "u1"}))
	doc, err := s.Get(ctx, remote.CollectionLogs, "a")
	require.NoError(t, err)
	assert.Equal(t, "u1", doc["uid"])

	require.NoError(t, s.Delete(ctx, remote.CollectionLogs, "a"))
	_, err = s.Get(ctx, remote.CollectionLogs, "a")
	assert.True(t, remote.IsNotFound(err))

	err = s.Delete(ctx, remote.CollectionLogs, "a")
	assert.True(t, remote.IsNotFound(err))
}

func TestInsertAssignsID(t *testing.T) {
	s := New()
	id, err := s.Insert(context.Background(), remote.CollectionNotes, remote.Document{"text": "hi"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	doc, err := s.Get(context.Background(), remote.CollectionNotes, id)
	require.NoError(t, err)
	assert.Equal(t, id, doc["id"])
}

func TestQueryByFieldWithOrder(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Seed(remote.CollectionRoutines, "r1", remote.Document{"uid": "u1", "updatedAt": 100})
	s.Seed(remote.CollectionRoutines, "r2", remote.Document{"uid": "u1", "updatedAt": 300})
	s.Seed(remote.CollectionRoutines, "r3", remote.Document{"uid": "u2", "updatedAt": 200})

	docs, err := s.QueryByField(ctx, remote.CollectionRoutines, "uid", "u1", remote.OrderBy("updatedAt", true))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.EqualValues(t, 300, docs[0]["updatedAt"])
	assert.EqualValues(t, 100, docs[1]["updatedAt"])
}

func TestUnreachable(t *testing.T) {
	s := New()
	s.SetReachable(false)

	_, err := s.All(context.Background(), remote.CollectionExercises)
	assert.True(t, remote.IsUnavailable(err))
	assert.Equal(t, 1, s.Calls(OpAll))

	s.SetReachable(true)
	_, err = s.All(context.Background(), remote.CollectionExercises)
	assert.NoError(t, err)
}

func TestFailNextIsConsumedOnce(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")
	s.FailNext(OpUpsert, boom)

	err := s.Upsert(ctx, remote.CollectionLogs, "a", remote.Document{})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, s.Upsert(ctx, remote.CollectionLogs, "a", remote.Document{}))
	assert.Equal(t, 2, s.Calls(OpUpsert))
	assert.Equal(t, 1, s.Len(remote.CollectionLogs))
}

func TestReturnedDocumentsAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()
	s.Seed(remote.CollectionLogs, "a", remote.Document{"uid": "u1"})

	doc, err := s.Get(ctx, remote.CollectionLogs, "a")
	require.NoError(t, err)
	doc["uid"] = "mutated"

	again, err := s.Get(ctx, remote.CollectionLogs, "a")
	require.NoError(t, err)
	assert.Equal(t, "u1", again["uid"])
}

func TestCopyBetweenStores(t *testing.T) {
	ctx := context.Background()
	src, dst := New(), New()
	src.Seed(remote.CollectionLogs, "l1", remote.Document{"id": "l1", "uid": "u1"})
	src.Seed(remote.CollectionExercises, "bench", remote.Document{"exerciseId": "bench"})
	src.Seed(remote.CollectionNotes, "n1", remote.Document{"text": "no id"})

	res, err := remote.Copy(ctx, dst, src, true)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Copied[remote.CollectionLogs])
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, dst.Len(remote.CollectionLogs), "dry run writes nothing")

	_, err = remote.Copy(ctx, dst, src, false)
	require.NoError(t, err)
	assert.Equal(t, 1, dst.Len(remote.CollectionLogs))
	assert.Equal(t, 1, dst.Len(remote.CollectionExercises))

	doc, err := dst.Get(ctx, remote.CollectionExercises, "bench")
	require.NoError(t, err)
	assert.Equal(t, "bench", doc["exerciseId"])
}
