// ABOUTME: Handler that applies queued operations to the remote store.
// ABOUTME: Not-found deletes count as success so redelivery stays idempotent.
package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/harperreed/liftlog/internal/identity"
	"github.com/harperreed/liftlog/internal/remote"
)

// RemoteHandler writes operations to a remote.Store. Identity fills in the
// owner of logs and profiles that were queued without one.
type RemoteHandler struct {
	Remote   remote.Store
	Identity identity.Provider
}

// NewRemoteHandler returns a RemoteHandler.
func NewRemoteHandler(r remote.Store, id identity.Provider) *RemoteHandler {
	return &RemoteHandler{Remote: r, Identity: id}
}

func (h *RemoteHandler) LogWorkout(ctx context.Context, op LogWorkout) error {
	if op.Log == nil || op.Log.ID == "" {
		return errors.New("log workout: missing log id")
	}
	l := op.Log.Clone()
	if l.UID == "" {
		uid, err := identity.Require(h.Identity)
		if err != nil {
			return fmt.Errorf("log workout %s: %w", l.ID, err)
		}
		l.UID = uid
	}
	doc, err := remote.Encode(l)
	if err != nil {
		return err
	}
	if err := h.Remote.Upsert(ctx, remote.CollectionLogs, l.ID, doc); err != nil {
		return fmt.Errorf("log workout %s: %w", l.ID, err)
	}
	return nil
}

// DeleteWorkout treats a missing remote log as already deleted.
func (h *RemoteHandler) DeleteWorkout(ctx context.Context, op DeleteWorkout) error {
	if op.ID == "" {
		return errors.New("delete workout: missing log id")
	}
	err := h.Remote.Delete(ctx, remote.CollectionLogs, op.ID)
	if err != nil && !remote.IsNotFound(err) {
		return fmt.Errorf("delete workout %s: %w", op.ID, err)
	}
	return nil
}

func (h *RemoteHandler) SyncExercises(ctx context.Context, op SyncExercises) error {
	for _, ex := range op.Exercises {
		if ex == nil || ex.ExerciseID == "" {
			continue
		}
		doc, err := remote.Encode(ex)
		if err != nil {
			return err
		}
		if err := h.Remote.Upsert(ctx, remote.CollectionExercises, ex.ExerciseID, doc); err != nil {
			return fmt.Errorf("sync exercise %s: %w", ex.ExerciseID, err)
		}
	}
	return nil
}

func (h *RemoteHandler) UpdateProfile(ctx context.Context, op UpdateProfile) error {
	if op.Profile == nil {
		return errors.New("update profile: missing profile")
	}
	p := *op.Profile
	if p.UID == "" {
		uid, err := identity.Require(h.Identity)
		if err != nil {
			return fmt.Errorf("update profile: %w", err)
		}
		p.UID = uid
	}
	doc, err := remote.Encode(&p)
	if err != nil {
		return err
	}
	if err := h.Remote.Upsert(ctx, remote.CollectionProfiles, p.UID, doc); err != nil {
		return fmt.Errorf("update profile %s: %w", p.UID, err)
	}
	return nil
}

var _ Handler = (*RemoteHandler)(nil)
