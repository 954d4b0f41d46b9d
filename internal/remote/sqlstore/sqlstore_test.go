// ABOUTME: Tests for the SQLite-backed remote document store.
// ABOUTME: Uses a temp database per test.
package sqlstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/liftlog/internal/remote"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "remote.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestUpsertReplacesDocument(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)

	require.NoError(t, s.Upsert(ctx, remote.CollectionLogs, "a", remote.Document{"uid": "u1", "note": "first"}))
	require.NoError(t, s.Upsert(ctx, remote.CollectionLogs, "a", remote.Document{"uid": "u1"}))

	doc, err := s.Get(ctx, remote.CollectionLogs, "a")
	require.NoError(t, err)
	_, hasNote := doc["note"]
	assert.False(t, hasNote)

	all, err := s.All(ctx, remote.CollectionLogs)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDeleteMissing(t *testing.T) {
	s := setupTestStore(t)
	err := s.Delete(context.Background(), remote.CollectionLogs, "ghost")
	assert.True(t, remote.IsNotFound(err))

	_, err = s.Get(context.Background(), remote.CollectionLogs, "ghost")
	assert.True(t, remote.IsNotFound(err))
}

func TestQueryByFieldOrdersNumerically(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	require.NoError(t, s.Upsert(ctx, remote.CollectionRoutines, "r1", remote.Document{"uid": "u1", "updatedAt": 9}))
	require.NoError(t, s.Upsert(ctx, remote.CollectionRoutines, "r2", remote.Document{"uid": "u1", "updatedAt": 100}))
	require.NoError(t, s.Upsert(ctx, remote.CollectionRoutines, "r3", remote.Document{"uid": "u2", "updatedAt": 50}))

	docs, err := s.QueryByField(ctx, remote.CollectionRoutines, "uid", "u1", remote.OrderBy("updatedAt", true))
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.EqualValues(t, 100, docs[0]["updatedAt"])
	assert.EqualValues(t, 9, docs[1]["updatedAt"])
}

func TestQueryByNumericField(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	require.NoError(t, s.Upsert(ctx, remote.CollectionLogs, "a", remote.Document{"reps": 5}))
	require.NoError(t, s.Upsert(ctx, remote.CollectionLogs, "b", remote.Document{"reps": 8}))

	docs, err := s.QueryByField(ctx, remote.CollectionLogs, "reps", 5)
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestInsertGeneratesID(t *testing.T) {
	ctx := context.Background()
	s := setupTestStore(t)
	id, err := s.Insert(ctx, remote.CollectionNotes, remote.Document{"text": "deload week"})
	require.NoError(t, err)

	doc, err := s.Get(ctx, remote.CollectionNotes, id)
	require.NoError(t, err)
	assert.Equal(t, id, doc["id"])
}

func TestCancelledContextIsUnavailable(t *testing.T) {
	s := setupTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.All(ctx, remote.CollectionLogs)
	assert.True(t, remote.IsUnavailable(err))
}
