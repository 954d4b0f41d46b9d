// ABOUTME: QueueItem model for the persisted outbound operation queue.
// ABOUTME: Defines operation types and the pending/processing/failed lifecycle.
package models

import "encoding/json"

// OpType names the kind of remote operation a queue item carries.
type OpType string

const (
	OpLogWorkout    OpType = "LOG_WORKOUT"
	OpDeleteWorkout OpType = "DELETE_WORKOUT"
	OpSyncExercises OpType = "SYNC_EXERCISES"
	OpUpdateProfile OpType = "UPDATE_PROFILE"
)

// QueueStatus is the lifecycle state of a queue item.
type QueueStatus string

const (
	StatusPending    QueueStatus = "pending"
	StatusProcessing QueueStatus = "processing"
	StatusFailed     QueueStatus = "failed"
)

// QueueItem is one pending outbound mutation. Items are removed only after
// their remote operation succeeds.
type QueueItem struct {
	ID         uint64          `json:"id" yaml:"id"`
	Type       OpType          `json:"type" yaml:"type"`
	EntityID   string          `json:"entityId,omitempty" yaml:"entity_id,omitempty"`
	Payload    json.RawMessage `json:"payload" yaml:"-"`
	Timestamp  int64           `json:"timestamp" yaml:"timestamp"`
	RetryCount int             `json:"retryCount" yaml:"retry_count"`
	Status     QueueStatus     `json:"status" yaml:"status"`
	Error      string          `json:"error,omitempty" yaml:"error,omitempty"`
	UpdatedAt  int64           `json:"updatedAt,omitempty" yaml:"updated_at,omitempty"`
}

// Drainable reports whether a drain should attempt the item. Items stuck in
// processing were interrupted mid-drain and are attempted again.
func (q *QueueItem) Drainable() bool {
	return q.Status == StatusPending || q.Status == StatusProcessing
}
