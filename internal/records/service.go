// ABOUTME: Personal-record service: recompute from stored logs, persist, push.
// ABOUTME: The remote push is best effort; local records never depend on it.
package records

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/harperreed/liftlog/internal/connectivity"
	"github.com/harperreed/liftlog/internal/models"
	"github.com/harperreed/liftlog/internal/remote"
	"github.com/harperreed/liftlog/internal/storage"
)

// Service maintains the personal-record cache.
type Service struct {
	db      *storage.DB
	remote  remote.Store
	monitor connectivity.Monitor
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds a Service. r may be nil to keep records local.
func NewService(db *storage.DB, r remote.Store, m connectivity.Monitor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		db:      db,
		remote:  r,
		monitor: m,
		logger:  logger.With("component", "records"),
		now:     time.Now,
	}
}

// Update recalculates the record for exerciseID and uid from logs, stores
// it and pushes it to the remote when possible.
func (s *Service) Update(ctx context.Context, exerciseID, uid string, logs []*models.WorkoutLog) (*models.PersonalRecord, error) {
	rec := Calculate(exerciseID, uid, logs)
	rec.LastUpdated = s.now().UnixMilli()
	if err := s.db.Records.Put(rec); err != nil {
		return nil, fmt.Errorf("save personal record %s: %w", rec.ID, err)
	}
	s.push(ctx, rec)
	return rec, nil
}

func (s *Service) push(ctx context.Context, rec *models.PersonalRecord) {
	if s.remote == nil || s.monitor == nil || !s.monitor.Online() {
		return
	}
	doc, err := remote.Encode(rec)
	if err != nil {
		s.logger.Warn("encode personal record", "id", rec.ID, "error", err)
		return
	}
	if err := s.remote.Upsert(ctx, remote.CollectionRecords, rec.ID, doc); err != nil {
		s.logger.Warn("push personal record", "id", rec.ID, "error", err)
	}
}

// Recompute rebuilds one record from the logs in the local store.
func (s *Service) Recompute(ctx context.Context, uid, exerciseID string) (*models.PersonalRecord, error) {
	logs, err := s.logsFor(uid, exerciseID)
	if err != nil {
		return nil, err
	}
	return s.Update(ctx, exerciseID, uid, logs)
}

// RecomputeAll rebuilds every record for uid, including records whose
// exercise no longer has any logs.
func (s *Service) RecomputeAll(ctx context.Context, uid string) ([]*models.PersonalRecord, error) {
	logs, err := s.db.Logs.QueryByIndex(storage.IndexUID, uid)
	if err != nil {
		return nil, err
	}
	byExercise := make(map[string][]*models.WorkoutLog)
	for _, l := range logs {
		byExercise[l.ExerciseID] = append(byExercise[l.ExerciseID], l)
	}
	existing, err := s.db.Records.QueryByIndex(storage.IndexUID, uid)
	if err != nil {
		return nil, err
	}
	for _, r := range existing {
		if _, ok := byExercise[r.ExerciseID]; !ok {
			byExercise[r.ExerciseID] = nil
		}
	}

	ids := make([]string, 0, len(byExercise))
	for ex := range byExercise {
		ids = append(ids, ex)
	}
	sort.Strings(ids)

	out := make([]*models.PersonalRecord, 0, len(ids))
	for _, ex := range ids {
		rec, err := s.Update(ctx, ex, uid, byExercise[ex])
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// Get returns the cached record for an exercise and user.
func (s *Service) Get(exerciseID, uid string) (*models.PersonalRecord, error) {
	return s.db.Records.Get(models.PersonalRecordKey(exerciseID, uid))
}

// ListForUser returns uid's non-empty records sorted by exercise.
func (s *Service) ListForUser(uid string) ([]*models.PersonalRecord, error) {
	recs, err := s.db.Records.QueryByIndex(storage.IndexUID, uid)
	if err != nil {
		return nil, err
	}
	out := recs[:0]
	for _, r := range recs {
		if !r.IsEmpty() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExerciseID < out[j].ExerciseID })
	return out, nil
}

func (s *Service) logsFor(uid, exerciseID string) ([]*models.WorkoutLog, error) {
	return s.db.Logs.QueryByIndex(storage.IndexUIDExercise, storage.UIDExerciseKey(uid, exerciseID))
}
