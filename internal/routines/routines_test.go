// ABOUTME: Tests for the routine cache and the active session tracker.
// ABOUTME: Remote-first writes, offline fallback and duplicate semantics.
package routines

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/liftlog/internal/connectivity"
	"github.com/harperreed/liftlog/internal/identity"
	"github.com/harperreed/liftlog/internal/models"
	"github.com/harperreed/liftlog/internal/remote"
	"github.com/harperreed/liftlog/internal/remote/memstore"
	"github.com/harperreed/liftlog/internal/storage"
)

type fixture struct {
	db      *storage.DB
	remote  *memstore.Store
	monitor *connectivity.Manual
	cache   *Cache
	clock   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	f := &fixture{
		db:      db,
		remote:  memstore.New(),
		monitor: connectivity.NewManual(true),
		clock:   time.UnixMilli(1_700_000_000_000),
	}
	f.cache = NewCache(db, f.remote, f.monitor, identity.NewStatic("u1"), nil)
	f.cache.now = func() time.Time {
		f.clock = f.clock.Add(time.Minute)
		return f.clock
	}
	return f
}

func TestCreateWritesRemoteThenCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := models.NewRoutine("Push Day", "bench", "ohp", "dips")
	in.Exercises[0].Order = 7

	r, err := f.cache.Create(ctx, in)
	require.NoError(t, err)
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, "u1", r.UID)
	assert.Equal(t, r.CreatedAt, r.UpdatedAt)
	assert.Nil(t, r.LastUsed)
	for i, ex := range r.Exercises {
		assert.Equal(t, i, ex.Order)
	}

	_, err = f.remote.Get(ctx, remote.CollectionRoutines, r.ID)
	require.NoError(t, err)
	cached, err := f.cache.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Push Day", cached.Name)
}

func TestCreateRemoteFailureLeavesCacheUntouched(t *testing.T) {
	f := newFixture(t)
	f.remote.FailNext(memstore.OpUpsert, errors.New("quota"))

	_, err := f.cache.Create(context.Background(), models.NewRoutine("Legs", "squat"))
	require.Error(t, err)
	n, err := f.db.Routines.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCreateOfflineFails(t *testing.T) {
	f := newFixture(t)
	f.monitor.Set(false)
	_, err := f.cache.Create(context.Background(), models.NewRoutine("Legs", "squat"))
	assert.True(t, remote.IsUnavailable(err))
	assert.Zero(t, f.remote.Calls(memstore.OpUpsert))
}

func TestFetchUserRoutinesOnlineCaches(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i, name := range []string{"A", "B", "C"} {
		r := models.NewRoutine(name, "bench")
		r.ID = name
		r.UID = "u1"
		r.UpdatedAt = int64(100 * (i + 1))
		doc, err := remote.Encode(r)
		require.NoError(t, err)
		f.remote.Seed(remote.CollectionRoutines, r.ID, doc)
	}

	got, src, err := f.cache.FetchUserRoutines(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, SourceRemote, src)
	require.Len(t, got, 3)
	assert.Equal(t, "C", got[0].ID)

	f.monitor.Set(false)
	cached, src, err := f.cache.FetchUserRoutines(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, SourceCache, src)
	require.Len(t, cached, 3)
	assert.Equal(t, []string{"C", "B", "A"}, []string{cached[0].ID, cached[1].ID, cached[2].ID})
}

func TestFetchUserRoutinesRemoteFailureUsesCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.cache.Create(ctx, models.NewRoutine("Pull", "row"))
	require.NoError(t, err)

	f.remote.FailNext(memstore.OpQuery, remote.Unavailable("query", errors.New("timeout")))
	got, src, err := f.cache.FetchUserRoutines(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, SourceCache, src)
	assert.Len(t, got, 1)
}

func TestUpdateMergesIntoCachedCopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, err := f.cache.Create(ctx, models.NewRoutine("Push", "bench", "ohp").WithDescription("heavy"))
	require.NoError(t, err)

	name := "Push (Heavy)"
	updated, err := f.cache.Update(ctx, r.ID, Update{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Push (Heavy)", updated.Name)
	require.NotNil(t, updated.Description)
	assert.Equal(t, "heavy", *updated.Description)
	assert.Len(t, updated.Exercises, 2)
	assert.Greater(t, updated.UpdatedAt, r.UpdatedAt)
	assert.Equal(t, r.CreatedAt, updated.CreatedAt)

	doc, err := f.remote.Get(ctx, remote.CollectionRoutines, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "Push (Heavy)", doc["name"])
}

func TestUpdateFallsBackToRemoteCopy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := models.NewRoutine("Remote Only", "squat")
	r.ID, r.UID = "remote-1", "u1"
	doc, err := remote.Encode(r)
	require.NoError(t, err)
	f.remote.Seed(remote.CollectionRoutines, r.ID, doc)

	updated, err := f.cache.Update(ctx, r.ID, Update{Exercises: []models.RoutineExercise{
		{ExerciseID: "squat"}, {ExerciseID: "lunge"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Exercises[1].Order)

	_, err = f.cache.Get(r.ID)
	assert.NoError(t, err)
}

func TestDeleteRemoteFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, err := f.cache.Create(ctx, models.NewRoutine("Arms", "curl"))
	require.NoError(t, err)

	f.remote.FailNext(memstore.OpDelete, errors.New("503"))
	require.Error(t, f.cache.Delete(ctx, r.ID))
	_, err = f.cache.Get(r.ID)
	assert.NoError(t, err, "cache keeps the routine when the remote delete fails")

	require.NoError(t, f.cache.Delete(ctx, r.ID))
	_, err = f.cache.Get(r.ID)
	assert.True(t, storage.IsNotFound(err))
}

func TestDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, err := f.cache.Create(ctx, models.NewRoutine("Legs", "squat", "rdl"))
	require.NoError(t, err)
	_, err = f.cache.MarkUsed(ctx, r.ID)
	require.NoError(t, err)

	dup, err := f.cache.Duplicate(ctx, r.ID)
	require.NoError(t, err)
	assert.NotEqual(t, r.ID, dup.ID)
	assert.Equal(t, "Legs (Copy)", dup.Name)
	assert.Nil(t, dup.LastUsed)
	assert.Greater(t, dup.CreatedAt, r.CreatedAt)
	assert.Equal(t, r.Exercises, dup.Exercises)

	_, err = f.cache.Duplicate(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestMarkUsedFallsBackToCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, err := f.cache.Create(ctx, models.NewRoutine("Core", "plank"))
	require.NoError(t, err)

	f.remote.SetReachable(false)
	used, err := f.cache.MarkUsed(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, used.LastUsed)
	assert.Equal(t, r.UpdatedAt, used.UpdatedAt)

	cached, err := f.cache.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, *used.LastUsed, *cached.LastUsed)
}

type fakeLogs struct {
	logged []*models.WorkoutLog
	err    error
}

func (f *fakeLogs) LogWorkout(ctx context.Context, l *models.WorkoutLog) (*models.WorkoutLog, error) {
	if f.err != nil {
		return nil, f.err
	}
	c := l.Clone()
	c.ID = models.NewLogID()
	c.UID = "u1"
	f.logged = append(f.logged, c)
	return c, nil
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, err := f.cache.Create(ctx, models.NewRoutine("Full Body", "squat", "bench"))
	require.NoError(t, err)

	logs := &fakeLogs{}
	tr := NewSessionTracker(f.cache, logs)

	_, _, err = tr.Current()
	assert.ErrorIs(t, err, ErrNoSession)

	s, err := tr.Start(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, s.RoutineID)
	_, err = tr.Start(ctx, r.ID)
	assert.ErrorIs(t, err, ErrSessionActive)

	cached, err := f.cache.Get(r.ID)
	require.NoError(t, err)
	assert.NotNil(t, cached.LastUsed)

	_, ex, err := tr.Current()
	require.NoError(t, err)
	assert.Equal(t, "squat", ex.ExerciseID)

	l, err := tr.RecordLog(ctx, models.WorkoutSet{Weight: 140, Reps: 5})
	require.NoError(t, err)
	assert.Equal(t, "squat", l.ExerciseID)

	next, err := tr.Advance()
	require.NoError(t, err)
	assert.Equal(t, "bench", next.ExerciseID)

	_, err = tr.Advance()
	assert.ErrorIs(t, err, ErrSessionComplete)
	_, err = tr.RecordLog(ctx, models.WorkoutSet{Weight: 100, Reps: 5})
	assert.ErrorIs(t, err, ErrSessionComplete)

	done, err := tr.Finish()
	require.NoError(t, err)
	assert.Len(t, done.Logs, 1)
	assert.True(t, done.CompletedExercises["squat"])
	assert.False(t, done.CompletedExercises["bench"])

	_, _, err = tr.Current()
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestSessionRecordLogFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r, err := f.cache.Create(ctx, models.NewRoutine("Pull", "row"))
	require.NoError(t, err)

	tr := NewSessionTracker(f.cache, &fakeLogs{err: identity.ErrAuthRequired})
	_, err = tr.Start(ctx, r.ID)
	require.NoError(t, err)

	_, err = tr.RecordLog(ctx, models.WorkoutSet{Weight: 80, Reps: 8})
	assert.ErrorIs(t, err, identity.ErrAuthRequired)

	s, _, err := tr.Current()
	require.NoError(t, err)
	assert.Empty(t, s.CompletedExercises)

	tr.Abandon()
	_, _, err = tr.Current()
	assert.ErrorIs(t, err, ErrNoSession)
}
