// ABOUTME: Tests for the exercise loader fallback order and lookups.
// ABOUTME: Uses the in-process remote and a counting static source.
package exercises

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/liftlog/internal/connectivity"
	"github.com/harperreed/liftlog/internal/identity"
	"github.com/harperreed/liftlog/internal/models"
	"github.com/harperreed/liftlog/internal/queue"
	"github.com/harperreed/liftlog/internal/remote"
	"github.com/harperreed/liftlog/internal/remote/memstore"
	"github.com/harperreed/liftlog/internal/storage"
)

type countingSource struct {
	calls int
	ex    []*models.Exercise
	err   error
}

func (s *countingSource) Exercises(ctx context.Context) ([]*models.Exercise, error) {
	s.calls++
	return s.ex, s.err
}

func setupTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedRemote(t *testing.T, r *memstore.Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		doc, err := remote.Encode(&models.Exercise{ExerciseID: id, Name: id, TargetMuscles: []string{"Quads"}})
		require.NoError(t, err)
		r.Seed(remote.CollectionExercises, id, doc)
	}
}

func TestLocalCacheAnswersWithoutNetwork(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Exercises.Put(&models.Exercise{ExerciseID: "squat", Name: "Squat"}))
	r := memstore.New()
	static := &countingSource{}
	l := NewLoader(db, r, connectivity.NewManual(true), static, nil, nil)

	ex, tier, err := l.LoadWithTier(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TierLocal, tier)
	assert.Len(t, ex, 1)
	assert.Zero(t, r.Calls(memstore.OpAll))
	assert.Zero(t, static.calls)
}

func TestRemoteThenWriteBack(t *testing.T) {
	db := setupTestDB(t)
	r := memstore.New()
	seedRemote(t, r, "squat", "bench")
	static := &countingSource{}
	l := NewLoader(db, r, connectivity.NewManual(true), static, nil, nil)

	ex, tier, err := l.LoadWithTier(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TierRemote, tier)
	assert.Len(t, ex, 2)
	assert.Zero(t, static.calls)

	n, err := db.Exercises.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, tier, err = l.LoadWithTier(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TierLocal, tier)
	assert.Equal(t, 1, r.Calls(memstore.OpAll))
}

func TestOfflineSkipsRemote(t *testing.T) {
	db := setupTestDB(t)
	r := memstore.New()
	seedRemote(t, r, "squat")
	l := NewLoader(db, r, connectivity.NewManual(false), EmbeddedSource{}, nil, nil)

	ex, tier, err := l.LoadWithTier(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TierStatic, tier)
	assert.NotEmpty(t, ex)
	assert.Zero(t, r.Calls(memstore.OpAll))
}

func TestRemoteFailureFallsBackToStatic(t *testing.T) {
	db := setupTestDB(t)
	r := memstore.New()
	r.FailNext(memstore.OpAll, errors.New("503"))
	static := &countingSource{ex: []*models.Exercise{{ExerciseID: "plank", Name: "Plank"}}}
	l := NewLoader(db, r, connectivity.NewManual(true), static, nil, nil)

	ex, tier, err := l.LoadWithTier(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TierStatic, tier)
	assert.Len(t, ex, 1)

	cached, err := l.Get("plank")
	require.NoError(t, err)
	assert.Equal(t, "Plank", cached.Name)
}

func TestEmptyRemoteFallsBackToStatic(t *testing.T) {
	db := setupTestDB(t)
	static := &countingSource{ex: []*models.Exercise{{ExerciseID: "plank"}}}
	l := NewLoader(db, memstore.New(), connectivity.NewManual(true), static, nil, nil)

	_, tier, err := l.LoadWithTier(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TierStatic, tier)
	assert.Equal(t, 1, static.calls)
}

func TestStaticFailurePropagates(t *testing.T) {
	db := setupTestDB(t)
	static := &countingSource{err: errors.New("bundle missing")}
	l := NewLoader(db, memstore.New(), connectivity.NewManual(false), static, nil, nil)

	_, err := l.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bundle missing")
}

func TestResyncReplacesCache(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Exercises.Put(&models.Exercise{ExerciseID: "stale"}))
	r := memstore.New()
	seedRemote(t, r, "fresh")
	l := NewLoader(db, r, connectivity.NewManual(true), nil, nil, nil)

	_, tier, err := l.Resync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TierRemote, tier)

	_, err = l.Get("stale")
	assert.True(t, storage.IsNotFound(err))
	_, err = l.Get("fresh")
	assert.NoError(t, err)
}

func TestResyncOfflineKeepsCache(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Exercises.Put(&models.Exercise{ExerciseID: "from-remote"}))
	static := &countingSource{ex: []*models.Exercise{{ExerciseID: "bundled"}}}
	l := NewLoader(db, memstore.New(), connectivity.NewManual(false), static, nil, nil)

	ex, tier, err := l.Resync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TierLocal, tier)
	require.Len(t, ex, 1)

	_, err = l.Get("from-remote")
	assert.NoError(t, err)
	_, err = l.Get("bundled")
	assert.True(t, storage.IsNotFound(err))
}

func TestResyncStaticFailureKeepsCache(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Exercises.Put(&models.Exercise{ExerciseID: "cached"}))
	static := &countingSource{err: errors.New("bundle missing")}
	l := NewLoader(db, nil, connectivity.NewManual(false), static, nil, nil)

	_, _, err := l.Resync(context.Background())
	require.Error(t, err)
	_, err = l.Get("cached")
	assert.NoError(t, err)
}

func TestResyncEmptyRemoteUsesStatic(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Exercises.Put(&models.Exercise{ExerciseID: "stale"}))
	static := &countingSource{ex: []*models.Exercise{{ExerciseID: "bundled"}}}
	l := NewLoader(db, memstore.New(), connectivity.NewManual(true), static, nil, nil)

	_, tier, err := l.Resync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TierStatic, tier)
	_, err = l.Get("stale")
	assert.True(t, storage.IsNotFound(err))
	_, err = l.Get("bundled")
	assert.NoError(t, err)
}

func TestLookups(t *testing.T) {
	db := setupTestDB(t)
	l := NewLoader(db, nil, connectivity.NewManual(false), EmbeddedSource{}, nil, nil)
	_, err := l.Load(context.Background())
	require.NoError(t, err)

	quads, err := l.ByTargetMuscle("Quads")
	require.NoError(t, err)
	assert.NotEmpty(t, quads)
	for _, e := range quads {
		assert.Contains(t, e.TargetMuscles, "quads")
	}

	barbell, err := l.ByEquipment("barbell")
	require.NoError(t, err)
	assert.NotEmpty(t, barbell)

	chest, err := l.ByBodyPart("CHEST")
	require.NoError(t, err)
	assert.NotEmpty(t, chest)

	found, err := l.Search("squat")
	require.NoError(t, err)
	require.NotEmpty(t, found)
	for _, e := range found {
		assert.True(t, e.MatchesName("squat"))
	}
}

func TestPublishEnqueuesCatalog(t *testing.T) {
	db := setupTestDB(t)
	m := connectivity.NewManual(false)
	r := memstore.New()
	q := queue.New(db, queue.NewRemoteHandler(r, identity.NewStatic("admin")), m, queue.Options{})
	t.Cleanup(q.Close)
	l := NewLoader(db, r, m, EmbeddedSource{}, q, nil)

	_, err := l.Publish(context.Background())
	assert.ErrorIs(t, err, ErrEmptyCatalog)

	_, err = l.Load(context.Background())
	require.NoError(t, err)
	item, err := l.Publish(context.Background())
	require.NoError(t, err)
	assert.Equal(t, models.OpSyncExercises, item.Type)

	m.Set(true)
	_, err = q.ProcessQueue(context.Background())
	require.NoError(t, err)
	n, err := db.Exercises.Count()
	require.NoError(t, err)
	assert.Equal(t, n, r.Len(remote.CollectionExercises))
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"exerciseId":"row","name":"Row","targetMuscles":["lats"]},{"name":"no id"}]`))
	}))
	defer srv.Close()

	ex, err := NewHTTPSource(srv.URL).Exercises(context.Background())
	require.NoError(t, err)
	require.Len(t, ex, 1)
	assert.Equal(t, "row", ex[0].ExerciseID)
}

func TestHTTPSourceBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewHTTPSource(srv.URL).Exercises(context.Background())
	assert.Error(t, err)
}

func TestChainSourceFallsThrough(t *testing.T) {
	bad := &countingSource{err: errors.New("offline")}
	chain := ChainSource{bad, EmbeddedSource{}}
	ex, err := chain.Exercises(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, ex)
	assert.Equal(t, 1, bad.calls)
}
