// ABOUTME: Workout log service: local-first mutations queued for the remote.
// ABOUTME: Also reconciles the local log cache against the remote on mount.
package workouts

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/harperreed/liftlog/internal/connectivity"
	"github.com/harperreed/liftlog/internal/identity"
	"github.com/harperreed/liftlog/internal/models"
	"github.com/harperreed/liftlog/internal/queue"
	"github.com/harperreed/liftlog/internal/remote"
	"github.com/harperreed/liftlog/internal/storage"
)

// ChangeListener hears about local log changes.
type ChangeListener interface {
	// LogCreated fires after a new log is written locally.
	LogCreated(log *models.WorkoutLog)
	// LogsChanged fires after any other change touching uid's logs for an exercise.
	LogsChanged(uid, exerciseID string)
}

// DeleteResult says how a delete was applied.
type DeleteResult struct {
	// Local is true when the log was removed from the local store.
	Local bool
	// Queued is true when a DELETE_WORKOUT operation was queued.
	Queued bool
}

// Service owns workout log mutations and reconciliation.
type Service struct {
	db       *storage.DB
	remote   remote.Store
	monitor  connectivity.Monitor
	identity identity.Provider
	queue    *queue.Queue
	logger   *slog.Logger
	now      func() time.Time

	listenersMu sync.RWMutex
	listeners   []ChangeListener

	mountMu sync.Mutex
	mounted map[string]bool
}

// NewService builds a Service.
func NewService(db *storage.DB, r remote.Store, m connectivity.Monitor, id identity.Provider, q *queue.Queue, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		db:       db,
		remote:   r,
		monitor:  m,
		identity: id,
		queue:    q,
		logger:   logger.With("component", "workouts"),
		now:      time.Now,
		mounted:  make(map[string]bool),
	}
}

// AddListener registers l for change notifications.
func (s *Service) AddListener(l ChangeListener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Service) notifyCreated(l *models.WorkoutLog) {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	for _, ln := range s.listeners {
		ln.LogCreated(l.Clone())
	}
}

func (s *Service) notifyChanged(uid, exerciseID string) {
	s.listenersMu.RLock()
	defer s.listenersMu.RUnlock()
	for _, ln := range s.listeners {
		ln.LogsChanged(uid, exerciseID)
	}
}

// LogWorkout records a new log for the signed-in user. The log gets a fresh
// id and owner, is written locally and queued for upload.
func (s *Service) LogWorkout(ctx context.Context, in *models.WorkoutLog) (*models.WorkoutLog, error) {
	uid, err := identity.Require(s.identity)
	if err != nil {
		return nil, err
	}
	l := in.Clone()
	l.ID = models.NewLogID()
	l.UID = uid
	if l.Timestamp == 0 {
		l.Timestamp = s.now().UnixMilli()
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}

	if err := s.db.Logs.Put(l); err != nil {
		return nil, fmt.Errorf("save log: %w", err)
	}
	if _, err := s.queue.Enqueue(ctx, queue.LogWorkout{Log: l}); err != nil {
		return l, fmt.Errorf("queue log %s: %w", l.ID, err)
	}
	s.logger.Info("logged workout", "id", l.ID, "exercise", l.ExerciseID, "sets", len(l.Sets))
	s.notifyCreated(l)
	return l, nil
}

// UpdateWorkout replaces an existing log wholesale and queues the upload.
func (s *Service) UpdateWorkout(ctx context.Context, in *models.WorkoutLog) (*models.WorkoutLog, error) {
	uid, err := identity.Require(s.identity)
	if err != nil {
		return nil, err
	}
	if in.ID == "" {
		return nil, fmt.Errorf("update log: %w", storage.ErrNotFound)
	}
	old, err := s.db.Logs.Get(in.ID)
	if err != nil {
		return nil, err
	}

	l := in.Clone()
	l.UID = uid
	if l.Timestamp == 0 {
		l.Timestamp = old.Timestamp
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	if err := s.db.Logs.Put(l); err != nil {
		return nil, fmt.Errorf("save log: %w", err)
	}
	if _, err := s.queue.Enqueue(ctx, queue.LogWorkout{Log: l}); err != nil {
		return l, fmt.Errorf("queue log %s: %w", l.ID, err)
	}

	s.notifyChanged(uid, l.ExerciseID)
	if old.ExerciseID != l.ExerciseID {
		s.notifyChanged(old.UID, old.ExerciseID)
	}
	return l, nil
}

// DeleteWorkout removes a log. Online, the remote delete goes first and
// the local copy is kept if it fails, with the delete queued instead.
// Offline, or while the queue still holds an upload for the log, the local
// copy goes at once and the delete is queued behind the upload.
func (s *Service) DeleteWorkout(ctx context.Context, id string) (DeleteResult, error) {
	var res DeleteResult
	if _, err := identity.Require(s.identity); err != nil {
		return res, err
	}
	existing, err := s.db.Logs.Get(id)
	if err != nil {
		return res, err
	}

	pending, err := s.queue.ProtectedEntityIDs()
	if err != nil {
		return res, err
	}

	if s.monitor.Online() && !pending[id] {
		err := s.remote.Delete(ctx, remote.CollectionLogs, id)
		if err == nil || remote.IsNotFound(err) {
			if err := s.deleteLocal(existing); err != nil {
				return res, err
			}
			res.Local = true
			return res, nil
		}
		s.logger.Warn("remote delete failed, queueing", "id", id, "error", err)
		if _, err := s.queue.Enqueue(ctx, queue.DeleteWorkout{ID: id}); err != nil {
			return res, fmt.Errorf("queue delete %s: %w", id, err)
		}
		res.Queued = true
		return res, nil
	}

	if err := s.deleteLocal(existing); err != nil {
		return res, err
	}
	res.Local = true
	if _, err := s.queue.Enqueue(ctx, queue.DeleteWorkout{ID: id}); err != nil {
		return res, fmt.Errorf("queue delete %s: %w", id, err)
	}
	res.Queued = true
	return res, nil
}

func (s *Service) deleteLocal(l *models.WorkoutLog) error {
	if err := s.db.Logs.Delete(l.ID); err != nil {
		return fmt.Errorf("delete log: %w", err)
	}
	s.notifyChanged(l.UID, l.ExerciseID)
	return nil
}

// Restore writes logs that already carry ids (an import) for the signed-in
// user and queues each for upload. It returns how many were written.
func (s *Service) Restore(ctx context.Context, logs []*models.WorkoutLog) (int, error) {
	uid, err := identity.Require(s.identity)
	if err != nil {
		return 0, err
	}
	touched := make(map[string]bool)
	n := 0
	for _, in := range logs {
		l := in.Clone()
		if l.ID == "" {
			l.ID = models.NewLogID()
		}
		l.UID = uid
		if err := l.Validate(); err != nil {
			return n, fmt.Errorf("restore log %s: %w", l.ID, err)
		}
		if err := s.db.Logs.Put(l); err != nil {
			return n, fmt.Errorf("restore log %s: %w", l.ID, err)
		}
		if _, err := s.queue.Enqueue(ctx, queue.LogWorkout{Log: l}); err != nil {
			return n, fmt.Errorf("queue log %s: %w", l.ID, err)
		}
		touched[l.ExerciseID] = true
		n++
	}
	for ex := range touched {
		s.notifyChanged(uid, ex)
	}
	return n, nil
}

// Get returns one log.
func (s *Service) Get(id string) (*models.WorkoutLog, error) {
	return s.db.Logs.Get(id)
}

// List returns uid's logs, oldest first.
func (s *Service) List(uid string) ([]*models.WorkoutLog, error) {
	logs, err := s.db.Logs.QueryByIndex(storage.IndexUID, uid)
	if err != nil {
		return nil, err
	}
	SortByTime(logs)
	return logs, nil
}

// ListForExercise returns uid's logs for one exercise, oldest first.
func (s *Service) ListForExercise(uid, exerciseID string) ([]*models.WorkoutLog, error) {
	logs, err := s.db.Logs.QueryByIndex(storage.IndexUIDExercise, storage.UIDExerciseKey(uid, exerciseID))
	if err != nil {
		return nil, err
	}
	SortByTime(logs)
	return logs, nil
}

// SortByTime orders logs by timestamp, then id.
func SortByTime(logs []*models.WorkoutLog) {
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].Timestamp != logs[j].Timestamp {
			return logs[i].Timestamp < logs[j].Timestamp
		}
		return logs[i].ID < logs[j].ID
	})
}
