// ABOUTME: Tests for workout mutations, delete semantics and reconciliation.
// ABOUTME: Uses an in-memory store, the in-process remote and a manual link.
package workouts

import (
	"context"
	"errors"
	"sync"
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

type recorder struct {
	mu      sync.Mutex
	created []string
	changed []string
}

func (r *recorder) LogCreated(l *models.WorkoutLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, l.ID)
}

func (r *recorder) LogsChanged(uid, exerciseID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changed = append(r.changed, uid+"/"+exerciseID)
}

type fixture struct {
	db       *storage.DB
	remote   *memstore.Store
	monitor  *connectivity.Manual
	identity *identity.Static
	queue    *queue.Queue
	svc      *Service
	events   *recorder
}

func newFixture(t *testing.T, online bool) *fixture {
	t.Helper()
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{
		db:       db,
		remote:   memstore.New(),
		monitor:  connectivity.NewManual(online),
		identity: identity.NewStatic("u1"),
		events:   &recorder{},
	}
	f.queue = queue.New(db, queue.NewRemoteHandler(f.remote, f.identity), f.monitor, queue.Options{})
	t.Cleanup(f.queue.Close)
	f.svc = NewService(db, f.remote, f.monitor, f.identity, f.queue, nil)
	f.svc.AddListener(f.events)
	return f
}

func bench(weight float64, reps int) *models.WorkoutLog {
	return models.NewWorkoutLog("bench", models.WorkoutSet{Weight: weight, Reps: reps})
}

func seedRemoteLog(t *testing.T, r *memstore.Store, l *models.WorkoutLog) {
	t.Helper()
	doc, err := remote.Encode(l)
	require.NoError(t, err)
	r.Seed(remote.CollectionLogs, l.ID, doc)
}

func TestLogWorkoutRequiresAuth(t *testing.T) {
	f := newFixture(t, false)
	f.identity.SignOut()

	_, err := f.svc.LogWorkout(context.Background(), bench(100, 5))
	assert.ErrorIs(t, err, identity.ErrAuthRequired)
}

func TestLogWorkoutWritesAndQueues(t *testing.T) {
	f := newFixture(t, false)
	in := bench(100, 5)
	in.ID = "caller-supplied"

	l, err := f.svc.LogWorkout(context.Background(), in)
	require.NoError(t, err)
	assert.NotEqual(t, "caller-supplied", l.ID)
	assert.Equal(t, "u1", l.UID)
	assert.NotZero(t, l.Timestamp)

	stored, err := f.svc.Get(l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.Sets, stored.Sets)

	pending, err := f.queue.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, models.OpLogWorkout, pending[0].Type)
	assert.Equal(t, l.ID, pending[0].EntityID)

	assert.Equal(t, []string{l.ID}, f.events.created)
}

func TestLogWorkoutRejectsInvalid(t *testing.T) {
	f := newFixture(t, false)
	_, err := f.svc.LogWorkout(context.Background(), bench(-5, 5))
	assert.Error(t, err)
	n, err := f.db.Logs.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestUpdateWorkoutReplaces(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	l, err := f.svc.LogWorkout(ctx, bench(100, 5))
	require.NoError(t, err)

	edit := l.Clone()
	edit.Sets = []models.WorkoutSet{{Weight: 105, Reps: 3}}
	edit.ExerciseID = "incline"
	_, err = f.svc.UpdateWorkout(ctx, edit)
	require.NoError(t, err)

	got, err := f.svc.Get(l.ID)
	require.NoError(t, err)
	assert.Equal(t, 105.0, got.Sets[0].Weight)
	assert.Contains(t, f.events.changed, "u1/incline")
	assert.Contains(t, f.events.changed, "u1/bench")

	pending, err := f.queue.Pending()
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	_, err = f.svc.UpdateWorkout(ctx, &models.WorkoutLog{ID: "missing", ExerciseID: "x"})
	assert.True(t, storage.IsNotFound(err))
}

func TestDeleteOnlineSuccess(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	l, err := f.svc.LogWorkout(ctx, bench(100, 5))
	require.NoError(t, err)
	f.queue.Wait()
	require.Equal(t, 1, f.remote.Len(remote.CollectionLogs))

	res, err := f.svc.DeleteWorkout(ctx, l.ID)
	require.NoError(t, err)
	assert.True(t, res.Local)
	assert.False(t, res.Queued)

	_, err = f.svc.Get(l.ID)
	assert.True(t, storage.IsNotFound(err))
	assert.Zero(t, f.remote.Len(remote.CollectionLogs))
}

func TestDeleteWhileOnlineFailureKeepsLocal(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	l, err := f.svc.LogWorkout(ctx, bench(100, 5))
	require.NoError(t, err)
	f.queue.Wait()

	// One failure for the direct call, one for the drain the enqueue starts.
	f.remote.FailNext(memstore.OpDelete, errors.New("500 internal"))
	f.remote.FailNext(memstore.OpDelete, errors.New("500 internal"))

	res, err := f.svc.DeleteWorkout(ctx, l.ID)
	require.NoError(t, err)
	assert.False(t, res.Local)
	assert.True(t, res.Queued)
	f.queue.Wait()

	_, err = f.svc.Get(l.ID)
	assert.NoError(t, err, "log must survive a failed online delete")

	items, err := f.queue.List()
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, models.OpDeleteWorkout, items[0].Type)
	assert.Equal(t, l.ID, items[0].EntityID)
}

func TestDeleteOfflineIsOptimistic(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	l, err := f.svc.LogWorkout(ctx, bench(100, 5))
	require.NoError(t, err)

	res, err := f.svc.DeleteWorkout(ctx, l.ID)
	require.NoError(t, err)
	assert.True(t, res.Local)
	assert.True(t, res.Queued)

	_, err = f.svc.Get(l.ID)
	assert.True(t, storage.IsNotFound(err))
	assert.Zero(t, f.remote.Calls(memstore.OpDelete))

	f.monitor.Set(true)
	_, err = f.queue.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Zero(t, f.remote.Len(remote.CollectionLogs))
	stats, err := f.queue.Stats()
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestDeleteOnlineWhileUploadPending(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	f.remote.FailNext(memstore.OpUpsert, errors.New("503"))
	l, err := f.svc.LogWorkout(ctx, bench(100, 5))
	require.NoError(t, err)
	f.queue.Wait()
	stats, err := f.queue.Stats()
	require.NoError(t, err)
	require.Equal(t, 1, stats.Pending)

	res, err := f.svc.DeleteWorkout(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, DeleteResult{Local: true, Queued: true}, res)
	assert.Zero(t, f.remote.Calls(memstore.OpDelete), "delete is ordered behind the pending upload")

	f.queue.Wait()
	_, err = f.queue.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Zero(t, f.remote.Len(remote.CollectionLogs))

	_, err = f.svc.Reconcile(ctx)
	require.NoError(t, err)
	_, err = f.svc.Get(l.ID)
	assert.True(t, storage.IsNotFound(err))
}

func TestReconcileInsertsAndRemoves(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	remoteOnly := bench(120, 3)
	remoteOnly.ID, remoteOnly.UID = "remote-only", "u1"
	seedRemoteLog(t, f.remote, remoteOnly)

	both := bench(100, 5)
	both.ID, both.UID = "both", "u1"
	seedRemoteLog(t, f.remote, both)
	require.NoError(t, f.db.Logs.Put(both))

	stale := bench(90, 8)
	stale.ID, stale.UID = "stale", "u1"
	require.NoError(t, f.db.Logs.Put(stale))

	otherUser := bench(50, 10)
	otherUser.ID, otherUser.UID = "other", "u2"
	require.NoError(t, f.db.Logs.Put(otherUser))

	res, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Inserted: 1, Removed: 1}, res)

	_, err = f.svc.Get("remote-only")
	assert.NoError(t, err)
	_, err = f.svc.Get("stale")
	assert.True(t, storage.IsNotFound(err))
	_, err = f.svc.Get("other")
	assert.NoError(t, err, "another user's logs are never touched")
}

func TestReconcileProtectsQueuedLogs(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	l, err := f.svc.LogWorkout(ctx, bench(100, 5))
	require.NoError(t, err)

	f.monitor.Set(true)
	res, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Protected)
	assert.Zero(t, res.Removed)

	_, err = f.svc.Get(l.ID)
	assert.NoError(t, err)
}

func TestReconcileDoesNotRestoreQueuedDelete(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	l := bench(100, 5)
	l.ID, l.UID = "x1", "u1"
	seedRemoteLog(t, f.remote, l)
	res, err := f.svc.Reconcile(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Inserted)

	f.monitor.Set(false)
	del, err := f.svc.DeleteWorkout(ctx, "x1")
	require.NoError(t, err)
	require.Equal(t, DeleteResult{Local: true, Queued: true}, del)

	f.monitor.Set(true)
	res, err = f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{Protected: 1}, res)
	_, err = f.svc.Get("x1")
	assert.True(t, storage.IsNotFound(err), "deleted log must not come back")

	_, err = f.queue.ProcessQueue(ctx)
	require.NoError(t, err)
	assert.Zero(t, f.remote.Len(remote.CollectionLogs))

	res, err = f.svc.Reconcile(ctx)
	require.NoError(t, err)
	assert.Equal(t, ReconcileResult{}, res)
}

func TestReconcileProtectsFailedQueueItems(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	l, err := f.svc.LogWorkout(ctx, bench(100, 5))
	require.NoError(t, err)

	items, err := f.queue.List()
	require.NoError(t, err)
	items[0].Status = models.StatusFailed
	require.NoError(t, f.db.Queue.Put(items[0]))

	f.monitor.Set(true)
	_, err = f.svc.Reconcile(ctx)
	require.NoError(t, err)
	_, err = f.svc.Get(l.ID)
	assert.NoError(t, err)
}

func TestReconcileRemoteFailureChangesNothing(t *testing.T) {
	f := newFixture(t, true)
	stale := bench(90, 8)
	stale.ID, stale.UID = "stale", "u1"
	require.NoError(t, f.db.Logs.Put(stale))
	f.remote.SetReachable(false)

	_, err := f.svc.Reconcile(context.Background())
	require.Error(t, err)
	assert.True(t, remote.IsUnavailable(err))

	_, err = f.svc.Get("stale")
	assert.NoError(t, err)
}

func TestSyncOnMountRunsOncePerUser(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	_, ran, err := f.svc.SyncOnMount(ctx)
	require.NoError(t, err)
	assert.True(t, ran)

	_, ran, err = f.svc.SyncOnMount(ctx)
	require.NoError(t, err)
	assert.False(t, ran)

	f.identity.SignIn("u2")
	_, ran, err = f.svc.SyncOnMount(ctx)
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 2, f.remote.Calls(memstore.OpQuery))
}

func TestSyncOnMountRetriesAfterFailure(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	f.remote.SetReachable(false)

	_, ran, err := f.svc.SyncOnMount(ctx)
	assert.True(t, ran)
	require.Error(t, err)

	f.remote.SetReachable(true)
	_, ran, err = f.svc.SyncOnMount(ctx)
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestListOrdering(t *testing.T) {
	f := newFixture(t, false)
	for i, ts := range []int64{300, 100, 200} {
		l := bench(100, 5)
		l.ID = string(rune('a' + i))
		l.UID = "u1"
		l.Timestamp = ts
		require.NoError(t, f.db.Logs.Put(l))
	}
	squat := models.NewWorkoutLog("squat", models.WorkoutSet{Weight: 140, Reps: 5})
	squat.ID, squat.UID, squat.Timestamp = "s", "u1", 50
	require.NoError(t, f.db.Logs.Put(squat))

	all, err := f.svc.List("u1")
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, "s", all[0].ID)

	benchLogs, err := f.svc.ListForExercise("u1", "bench")
	require.NoError(t, err)
	require.Len(t, benchLogs, 3)
	assert.Equal(t, []int64{100, 200, 300}, []int64{benchLogs[0].Timestamp, benchLogs[1].Timestamp, benchLogs[2].Timestamp})
}

func TestRestoreKeepsIDs(t *testing.T) {
	f := newFixture(t, false)
	l := bench(100, 5)
	l.ID = "imported"
	l.UID = "someone-else"
	l.Timestamp = 1700000000000

	n, err := f.svc.Restore(context.Background(), []*models.WorkoutLog{l})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.svc.Get("imported")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UID)
	assert.Equal(t, int64(1700000000000), got.Timestamp)
}
