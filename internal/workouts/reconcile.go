// ABOUTME: Reconciles the signed-in user's cached logs with the remote copy.
// ABOUTME: Never removes logs with no id or logs still referenced by the queue.
package workouts

import (
	"context"
	"fmt"

	"github.com/harperreed/liftlog/internal/identity"
	"github.com/harperreed/liftlog/internal/models"
	"github.com/harperreed/liftlog/internal/remote"
	"github.com/harperreed/liftlog/internal/storage"
)

// ReconcileResult counts what a reconciliation pass did.
type ReconcileResult struct {
	Inserted  int `json:"inserted"`
	Removed   int `json:"removed"`
	Protected int `json:"protected"`
}

// SyncOnMount reconciles once per signed-in user for the life of the
// process. ran is false when the user was already reconciled. A failed
// pass does not count, so the next mount tries again.
func (s *Service) SyncOnMount(ctx context.Context) (res ReconcileResult, ran bool, err error) {
	uid, err := identity.Require(s.identity)
	if err != nil {
		return res, false, err
	}

	s.mountMu.Lock()
	defer s.mountMu.Unlock()
	if s.mounted[uid] {
		return res, false, nil
	}
	res, err = s.reconcile(ctx, uid)
	if err != nil {
		return res, true, err
	}
	s.mounted[uid] = true
	return res, true, nil
}

// Reconcile runs a pass for the signed-in user regardless of earlier passes.
func (s *Service) Reconcile(ctx context.Context) (ReconcileResult, error) {
	uid, err := identity.Require(s.identity)
	if err != nil {
		return ReconcileResult{}, err
	}
	return s.reconcile(ctx, uid)
}

// reconcile inserts remote logs missing locally and removes local logs the
// remote no longer has. Logs referenced by the queue are left alone in both
// directions. Any remote failure aborts before local changes.
func (s *Service) reconcile(ctx context.Context, uid string) (ReconcileResult, error) {
	var res ReconcileResult

	docs, err := s.remote.QueryByField(ctx, remote.CollectionLogs, "uid", uid)
	if err != nil {
		return res, fmt.Errorf("fetch remote logs: %w", err)
	}
	remoteLogs, err := remote.DecodeAll[models.WorkoutLog](docs)
	if err != nil {
		return res, fmt.Errorf("decode remote logs: %w", err)
	}

	local, err := s.db.Logs.QueryByIndex(storage.IndexUID, uid)
	if err != nil {
		return res, err
	}
	protected, err := s.queue.ProtectedEntityIDs()
	if err != nil {
		return res, err
	}

	localIDs := make(map[string]bool, len(local))
	for _, l := range local {
		localIDs[l.ID] = true
	}
	remoteIDs := make(map[string]bool, len(remoteLogs))
	for _, r := range remoteLogs {
		if r.ID != "" {
			remoteIDs[r.ID] = true
		}
	}

	changed := make(map[string]bool)

	var inserts []*models.WorkoutLog
	for _, r := range remoteLogs {
		if r.ID == "" || localIDs[r.ID] {
			continue
		}
		// A queued op for a log missing locally is a pending delete.
		if protected[r.ID] {
			res.Protected++
			continue
		}
		if r.UID == "" {
			r.UID = uid
		}
		inserts = append(inserts, r)
	}
	if len(inserts) > 0 {
		n, err := s.db.Logs.BulkPut(inserts)
		res.Inserted = n
		for _, r := range inserts[:n] {
			changed[r.ExerciseID] = true
		}
		if err != nil {
			s.notifyAll(uid, changed)
			return res, fmt.Errorf("insert remote logs: %w", err)
		}
	}

	for _, l := range local {
		if l.ID != "" && remoteIDs[l.ID] {
			continue
		}
		if !l.IsPersisted() || protected[l.ID] {
			res.Protected++
			continue
		}
		if err := s.db.Logs.Delete(l.ID); err != nil {
			s.notifyAll(uid, changed)
			return res, fmt.Errorf("remove stale log %s: %w", l.ID, err)
		}
		res.Removed++
		changed[l.ExerciseID] = true
	}

	s.notifyAll(uid, changed)
	s.logger.Info("reconciled logs", "uid", uid,
		"inserted", res.Inserted, "removed", res.Removed, "protected", res.Protected)
	return res, nil
}

func (s *Service) notifyAll(uid string, exercises map[string]bool) {
	for ex := range exercises {
		s.notifyChanged(uid, ex)
	}
}
