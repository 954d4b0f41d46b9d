// ABOUTME: Routine cache: remote-first writes mirrored into the local store.
// ABOUTME: Reads fall back to the cache when offline or the remote fails.
package routines

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/harperreed/liftlog/internal/connectivity"
	"github.com/harperreed/liftlog/internal/identity"
	"github.com/harperreed/liftlog/internal/models"
	"github.com/harperreed/liftlog/internal/remote"
	"github.com/harperreed/liftlog/internal/storage"
)

// CopySuffix is appended to the name of a duplicated routine.
const CopySuffix = " (Copy)"

// errOffline is wrapped into the UnavailableError for writes attempted offline.
var errOffline = errors.New("offline")

// Source names where a routine list came from.
type Source string

const (
	SourceRemote Source = "remote"
	SourceCache  Source = "cache"
)

// Update holds the fields to change on a routine. Nil fields are left alone.
type Update struct {
	Name        *string
	Description *string
	Exercises   []models.RoutineExercise
}

// Cache manages user routines.
type Cache struct {
	db       *storage.DB
	remote   remote.Store
	monitor  connectivity.Monitor
	identity identity.Provider
	logger   *slog.Logger
	now      func() time.Time
}

// NewCache builds a Cache.
func NewCache(db *storage.DB, r remote.Store, m connectivity.Monitor, id identity.Provider, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{
		db:       db,
		remote:   r,
		monitor:  m,
		identity: id,
		logger:   logger.With("component", "routines"),
		now:      time.Now,
	}
}

// FetchUserRoutines returns uid's routines, most recently updated first.
// Online it reads the remote and refreshes the cache; offline, or when the
// remote fails, it serves the cache.
func (c *Cache) FetchUserRoutines(ctx context.Context, uid string) ([]*models.WorkoutRoutine, Source, error) {
	if c.monitor.Online() {
		docs, err := c.remote.QueryByField(ctx, remote.CollectionRoutines, "uid", uid, remote.OrderBy("updatedAt", true))
		if err == nil {
			routines, derr := remote.DecodeAll[models.WorkoutRoutine](docs)
			if derr == nil {
				if n, err := c.db.Routines.BulkPut(routines); err != nil {
					c.logger.Warn("cache routines", "written", n, "total", len(routines), "error", err)
				}
				sortByUpdated(routines)
				return routines, SourceRemote, nil
			}
			err = derr
		}
		c.logger.Warn("fetch routines from remote, using cache", "uid", uid, "error", err)
	}
	routines, err := c.GetRoutinesFromCache(uid)
	return routines, SourceCache, err
}

// GetRoutinesFromCache returns uid's cached routines, most recently updated first.
func (c *Cache) GetRoutinesFromCache(uid string) ([]*models.WorkoutRoutine, error) {
	routines, err := c.db.Routines.QueryByIndex(storage.IndexUID, uid)
	if err != nil {
		return nil, err
	}
	sortByUpdated(routines)
	return routines, nil
}

// Get returns a cached routine.
func (c *Cache) Get(id string) (*models.WorkoutRoutine, error) {
	return c.db.Routines.Get(id)
}

func (c *Cache) requireOnline(op string) error {
	if !c.monitor.Online() {
		return remote.Unavailable(op, errOffline)
	}
	return nil
}

// Create stores a new routine for the signed-in user. It gets a fresh id,
// owner and timestamps, and exercise order follows slice order.
func (c *Cache) Create(ctx context.Context, in *models.WorkoutRoutine) (*models.WorkoutRoutine, error) {
	uid, err := identity.Require(c.identity)
	if err != nil {
		return nil, err
	}
	if in.Name == "" {
		return nil, errors.New("routine name is required")
	}
	if err := c.requireOnline("create routine"); err != nil {
		return nil, err
	}

	r := in.Clone()
	now := c.now().UnixMilli()
	r.ID = models.NewRoutineID()
	r.UID = uid
	r.CreatedAt = now
	r.UpdatedAt = now
	r.LastUsed = nil
	normalizeOrder(r)

	if err := c.pushAndCache(ctx, r); err != nil {
		return nil, err
	}
	c.logger.Info("created routine", "id", r.ID, "name", r.Name)
	return r, nil
}

// Update applies changes to a routine. The cached copy is the merge base
// when present, otherwise the remote copy.
func (c *Cache) Update(ctx context.Context, id string, changes Update) (*models.WorkoutRoutine, error) {
	if _, err := identity.Require(c.identity); err != nil {
		return nil, err
	}
	if err := c.requireOnline("update routine"); err != nil {
		return nil, err
	}

	base, err := c.db.Routines.Get(id)
	if storage.IsNotFound(err) {
		doc, rerr := c.remote.Get(ctx, remote.CollectionRoutines, id)
		if rerr != nil {
			return nil, fmt.Errorf("load routine %s: %w", id, rerr)
		}
		base, err = remote.Decode[models.WorkoutRoutine](doc)
	}
	if err != nil {
		return nil, err
	}

	r := base.Clone()
	if changes.Name != nil {
		r.Name = *changes.Name
	}
	if changes.Description != nil {
		d := *changes.Description
		r.Description = &d
	}
	if changes.Exercises != nil {
		r.Exercises = append([]models.RoutineExercise(nil), changes.Exercises...)
		normalizeOrder(r)
	}
	r.UpdatedAt = c.now().UnixMilli()

	if err := c.pushAndCache(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Delete removes a routine remotely, then from the cache. A routine the
// remote no longer has is still removed locally.
func (c *Cache) Delete(ctx context.Context, id string) error {
	if _, err := identity.Require(c.identity); err != nil {
		return err
	}
	if err := c.requireOnline("delete routine"); err != nil {
		return err
	}
	if err := c.remote.Delete(ctx, remote.CollectionRoutines, id); err != nil && !remote.IsNotFound(err) {
		return fmt.Errorf("delete routine %s: %w", id, err)
	}
	return c.db.Routines.Delete(id)
}

// Duplicate copies a cached routine through the create path.
func (c *Cache) Duplicate(ctx context.Context, id string) (*models.WorkoutRoutine, error) {
	src, err := c.db.Routines.Get(id)
	if err != nil {
		return nil, err
	}
	cp := src.Clone()
	cp.Name = src.Name + CopySuffix
	cp.LastUsed = nil
	return c.Create(ctx, cp)
}

// MarkUsed stamps lastUsed. The remote is tried first; if it cannot be
// reached only the cache is updated.
func (c *Cache) MarkUsed(ctx context.Context, id string) (*models.WorkoutRoutine, error) {
	r, err := c.db.Routines.Get(id)
	if err != nil {
		return nil, err
	}
	r = r.Clone()
	now := c.now().UnixMilli()
	r.LastUsed = &now

	if c.monitor.Online() {
		doc, err := remote.Encode(r)
		if err == nil {
			err = c.remote.Upsert(ctx, remote.CollectionRoutines, r.ID, doc)
		}
		if err != nil {
			c.logger.Warn("push lastUsed, keeping it local", "id", id, "error", err)
		}
	}
	if err := c.db.Routines.Put(r); err != nil {
		return nil, err
	}
	return r, nil
}

func (c *Cache) pushAndCache(ctx context.Context, r *models.WorkoutRoutine) error {
	doc, err := remote.Encode(r)
	if err != nil {
		return err
	}
	if err := c.remote.Upsert(ctx, remote.CollectionRoutines, r.ID, doc); err != nil {
		return fmt.Errorf("save routine %s: %w", r.ID, err)
	}
	if err := c.db.Routines.Put(r); err != nil {
		return fmt.Errorf("cache routine %s: %w", r.ID, err)
	}
	return nil
}

func normalizeOrder(r *models.WorkoutRoutine) {
	for i := range r.Exercises {
		r.Exercises[i].Order = i
	}
}

func sortByUpdated(rs []*models.WorkoutRoutine) {
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].UpdatedAt != rs[j].UpdatedAt {
			return rs[i].UpdatedAt > rs[j].UpdatedAt
		}
		return rs[i].ID < rs[j].ID
	})
}
