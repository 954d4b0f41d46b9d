// ABOUTME: Three-tier exercise catalog loader: local cache, remote, static bundle.
// ABOUTME: Whatever tier answers is written back to the local cache.
package exercises

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/harperreed/liftlog/internal/connectivity"
	"github.com/harperreed/liftlog/internal/models"
	"github.com/harperreed/liftlog/internal/queue"
	"github.com/harperreed/liftlog/internal/remote"
	"github.com/harperreed/liftlog/internal/storage"
)

// ErrEmptyCatalog is returned when a source holds no exercises.
var ErrEmptyCatalog = errors.New("exercise catalog is empty")

// Tier names the source a load was served from.
type Tier string

const (
	TierLocal  Tier = "local"
	TierRemote Tier = "remote"
	TierStatic Tier = "static"
)

// Loader serves the exercise catalog.
type Loader struct {
	db      *storage.DB
	remote  remote.Store
	monitor connectivity.Monitor
	static  StaticSource
	queue   *queue.Queue
	logger  *slog.Logger
}

// NewLoader builds a Loader. q may be nil when publishing is not needed.
func NewLoader(db *storage.DB, r remote.Store, m connectivity.Monitor, static StaticSource, q *queue.Queue, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if static == nil {
		static = EmbeddedSource{}
	}
	return &Loader{
		db:      db,
		remote:  r,
		monitor: m,
		static:  static,
		queue:   q,
		logger:  logger.With("component", "exercises"),
	}
}

// Load returns the catalog. A non-empty local cache answers without any
// network access. Otherwise the remote is tried when online, then the
// static source. Only a static failure is returned to the caller.
func (l *Loader) Load(ctx context.Context) ([]*models.Exercise, error) {
	ex, _, err := l.LoadWithTier(ctx)
	return ex, err
}

// LoadWithTier is Load that also reports which tier answered.
func (l *Loader) LoadWithTier(ctx context.Context) ([]*models.Exercise, Tier, error) {
	local, err := l.db.Exercises.All()
	if err != nil {
		l.logger.Warn("read cached exercises", "error", err)
	} else if len(local) > 0 {
		return local, TierLocal, nil
	}
	return l.fetch(ctx)
}

// Resync reloads from remote or the static source and replaces the cache.
// The cache is only cleared once a tier has answered. When the remote
// cannot be reached a non-empty cache is kept rather than replaced by the
// static bundle.
func (l *Loader) Resync(ctx context.Context) ([]*models.Exercise, Tier, error) {
	ex, tier, reached, err := l.fetchTiers(ctx)
	if err != nil {
		return nil, "", err
	}
	if tier == TierStatic && !reached {
		cached, cerr := l.db.Exercises.All()
		if cerr == nil && len(cached) > 0 {
			l.logger.Info("remote unreachable; keeping cached exercises", "count", len(cached))
			return cached, TierLocal, nil
		}
	}
	if err := l.db.Exercises.Clear(); err != nil {
		return nil, "", fmt.Errorf("clear exercise cache: %w", err)
	}
	l.writeBack(ex)
	return ex, tier, nil
}

func (l *Loader) fetch(ctx context.Context) ([]*models.Exercise, Tier, error) {
	ex, tier, _, err := l.fetchTiers(ctx)
	if err != nil {
		return nil, "", err
	}
	l.writeBack(ex)
	return ex, tier, nil
}

// fetchTiers asks the remote, then the static source, without touching the
// cache. reached reports whether the remote answered at all.
func (l *Loader) fetchTiers(ctx context.Context) (ex []*models.Exercise, tier Tier, reached bool, err error) {
	if l.remote != nil && l.monitor.Online() {
		rex, rerr := l.fromRemote(ctx)
		switch {
		case rerr != nil:
			l.logger.Warn("fetch exercises from remote", "error", rerr)
		case len(rex) > 0:
			return rex, TierRemote, true, nil
		default:
			reached = true
			l.logger.Info("remote exercise catalog is empty")
		}
	}

	ex, err = l.static.Exercises(ctx)
	if err != nil {
		return nil, "", reached, fmt.Errorf("load static exercises: %w", err)
	}
	return ex, TierStatic, reached, nil
}

func (l *Loader) fromRemote(ctx context.Context) ([]*models.Exercise, error) {
	docs, err := l.remote.All(ctx, remote.CollectionExercises)
	if err != nil {
		return nil, err
	}
	ex, err := remote.DecodeAll[models.Exercise](docs)
	if err != nil {
		return nil, err
	}
	out := ex[:0]
	for _, e := range ex {
		if e.ExerciseID != "" {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExerciseID < out[j].ExerciseID })
	return out, nil
}

// writeBack caches ex. A failed write is logged; the caller still gets data.
func (l *Loader) writeBack(ex []*models.Exercise) {
	n, err := l.db.Exercises.BulkPut(ex)
	if err != nil {
		l.logger.Warn("cache exercises", "written", n, "total", len(ex), "error", err)
		return
	}
	l.logger.Debug("cached exercises", "count", n)
}

// Publish queues the cached catalog for upload to the remote.
func (l *Loader) Publish(ctx context.Context) (*models.QueueItem, error) {
	if l.queue == nil {
		return nil, errors.New("publish exercises: no queue configured")
	}
	ex, err := l.db.Exercises.All()
	if err != nil {
		return nil, fmt.Errorf("publish exercises: %w", err)
	}
	if len(ex) == 0 {
		return nil, fmt.Errorf("publish exercises: %w", ErrEmptyCatalog)
	}
	return l.queue.Enqueue(ctx, queue.SyncExercises{Exercises: ex})
}

// Get returns one cached exercise.
func (l *Loader) Get(id string) (*models.Exercise, error) {
	return l.db.Exercises.Get(id)
}

// ByTargetMuscle returns cached exercises targeting muscle.
func (l *Loader) ByTargetMuscle(muscle string) ([]*models.Exercise, error) {
	return l.db.Exercises.QueryByIndex(storage.IndexTargetMuscles, models.NormalizeTag(muscle))
}

// ByBodyPart returns cached exercises for a body part.
func (l *Loader) ByBodyPart(part string) ([]*models.Exercise, error) {
	return l.db.Exercises.QueryByIndex(storage.IndexBodyParts, models.NormalizeTag(part))
}

// ByEquipment returns cached exercises using a piece of equipment.
func (l *Loader) ByEquipment(equipment string) ([]*models.Exercise, error) {
	return l.db.Exercises.QueryByIndex(storage.IndexEquipments, models.NormalizeTag(equipment))
}

// Search returns cached exercises whose name contains q, sorted by name.
func (l *Loader) Search(q string) ([]*models.Exercise, error) {
	all, err := l.db.Exercises.All()
	if err != nil {
		return nil, err
	}
	var out []*models.Exercise
	for _, e := range all {
		if e.MatchesName(q) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
