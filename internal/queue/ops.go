// ABOUTME: Queue operation variants and their persisted payload encoding.
// ABOUTME: Each variant dispatches to its own Handler method.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/harperreed/liftlog/internal/models"
)

// ErrUnknownOp is returned when a persisted item names no known operation.
var ErrUnknownOp = errors.New("unknown operation type")

// Op is a remote mutation waiting in the queue. The set of variants is
// closed: LogWorkout, DeleteWorkout, SyncExercises and UpdateProfile.
type Op interface {
	Type() models.OpType
	// EntityID names the local record the operation touches, if any.
	EntityID() string
	payload() any
	apply(ctx context.Context, h Handler) error
}

// Handler applies operations to the remote side.
type Handler interface {
	LogWorkout(ctx context.Context, op LogWorkout) error
	DeleteWorkout(ctx context.Context, op DeleteWorkout) error
	SyncExercises(ctx context.Context, op SyncExercises) error
	UpdateProfile(ctx context.Context, op UpdateProfile) error
}

// LogWorkout upserts a workout log remotely.
type LogWorkout struct {
	Log *models.WorkoutLog
}

func (o LogWorkout) Type() models.OpType { return models.OpLogWorkout }
func (o LogWorkout) EntityID() string {
	if o.Log == nil {
		return ""
	}
	return o.Log.ID
}
func (o LogWorkout) payload() any                               { return o.Log }
func (o LogWorkout) apply(ctx context.Context, h Handler) error { return h.LogWorkout(ctx, o) }

// DeleteWorkout removes a workout log remotely.
type DeleteWorkout struct {
	ID string `json:"id"`
}

func (o DeleteWorkout) Type() models.OpType                        { return models.OpDeleteWorkout }
func (o DeleteWorkout) EntityID() string                           { return o.ID }
func (o DeleteWorkout) payload() any                               { return o }
func (o DeleteWorkout) apply(ctx context.Context, h Handler) error { return h.DeleteWorkout(ctx, o) }

// SyncExercises publishes the exercise catalog.
type SyncExercises struct {
	Exercises []*models.Exercise
}

func (o SyncExercises) Type() models.OpType                        { return models.OpSyncExercises }
func (o SyncExercises) EntityID() string                           { return "" }
func (o SyncExercises) payload() any                               { return o.Exercises }
func (o SyncExercises) apply(ctx context.Context, h Handler) error { return h.SyncExercises(ctx, o) }

// UpdateProfile upserts the user's profile.
type UpdateProfile struct {
	Profile *models.Profile
}

func (o UpdateProfile) Type() models.OpType { return models.OpUpdateProfile }
func (o UpdateProfile) EntityID() string {
	if o.Profile == nil {
		return ""
	}
	return o.Profile.UID
}
func (o UpdateProfile) payload() any                               { return o.Profile }
func (o UpdateProfile) apply(ctx context.Context, h Handler) error { return h.UpdateProfile(ctx, o) }

func encodeOp(op Op) (json.RawMessage, error) {
	data, err := json.Marshal(op.payload())
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", op.Type(), err)
	}
	return data, nil
}

// DecodeOp rebuilds the operation stored in item.
func DecodeOp(item *models.QueueItem) (Op, error) {
	switch item.Type {
	case models.OpLogWorkout:
		var l models.WorkoutLog
		if err := json.Unmarshal(item.Payload, &l); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", item.Type, err)
		}
		return LogWorkout{Log: &l}, nil
	case models.OpDeleteWorkout:
		var d DeleteWorkout
		if err := json.Unmarshal(item.Payload, &d); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", item.Type, err)
		}
		return d, nil
	case models.OpSyncExercises:
		var ex []*models.Exercise
		if err := json.Unmarshal(item.Payload, &ex); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", item.Type, err)
		}
		return SyncExercises{Exercises: ex}, nil
	case models.OpUpdateProfile:
		var p models.Profile
		if err := json.Unmarshal(item.Payload, &p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", item.Type, err)
		}
		return UpdateProfile{Profile: &p}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, item.Type)
	}
}
