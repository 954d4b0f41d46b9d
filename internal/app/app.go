// ABOUTME: Wires the local store, remote, queue and domain services together.
// ABOUTME: Owns process lifecycle: mount, background loops and shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/harperreed/liftlog/internal/config"
	"github.com/harperreed/liftlog/internal/connectivity"
	"github.com/harperreed/liftlog/internal/exercises"
	"github.com/harperreed/liftlog/internal/identity"
	"github.com/harperreed/liftlog/internal/models"
	"github.com/harperreed/liftlog/internal/queue"
	"github.com/harperreed/liftlog/internal/records"
	"github.com/harperreed/liftlog/internal/remote"
	"github.com/harperreed/liftlog/internal/remote/charmstore"
	"github.com/harperreed/liftlog/internal/routines"
	"github.com/harperreed/liftlog/internal/storage"
	"github.com/harperreed/liftlog/internal/workouts"
)

// DefaultProbeInterval is how often the remote is probed for reachability.
const DefaultProbeInterval = 30 * time.Second

// probeDocID is looked up to test reachability; not-found counts as online.
const probeDocID = "_probe"

// Options configures New. Zero values fall back to the config.
type Options struct {
	Config *config.Config
	Logger *slog.Logger

	// Offline forces the connectivity monitor offline.
	Offline bool
	// InMemory keeps the local store in memory.
	InMemory bool

	Remote        remote.Store
	Monitor       connectivity.Monitor
	Identity      identity.Provider
	Static        exercises.StaticSource
	ProbeInterval time.Duration

	// OnNewPRs is called when a freshly logged workout sets a record.
	OnNewPRs func(records.NewPRs)
}

// App is a fully wired liftlog instance.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	DB       *storage.DB
	Remote   remote.Store
	Monitor  connectivity.Monitor
	Identity identity.Provider

	Queue     *queue.Queue
	Exercises *exercises.Loader
	Workouts  *workouts.Service
	Records   *records.Service
	PRs       *records.Scheduler
	Routines  *routines.Cache
	Sessions  *routines.SessionTracker

	prober  *connectivity.Prober
	cancel  context.CancelFunc
	closers []func() error

	closeOnce sync.Once
	closeErr  error
}

// MountResult reports what Mount loaded.
type MountResult struct {
	Exercises     int                      `json:"exercises"`
	ExerciseTier  exercises.Tier           `json:"exerciseTier"`
	Drained       queue.DrainResult        `json:"drained"`
	Reconciled    bool                     `json:"reconciled"`
	Reconcile     workouts.ReconcileResult `json:"reconcile"`
	Routines      int                      `json:"routines"`
	RoutineSource routines.Source          `json:"routineSource,omitempty"`
}

// Status is a point-in-time summary for the signed-in user.
type Status struct {
	UID      string      `json:"uid"`
	SignedIn bool        `json:"signedIn"`
	Online   bool        `json:"online"`
	Queue    queue.Stats `json:"queue"`
	Logs     int         `json:"logs"`
	Records  int         `json:"records"`
	Routines int         `json:"routines"`
}

// New opens storage and the remote, then builds every service.
func New(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	a := &App{Config: cfg, Logger: logger}
	ok := false
	defer func() {
		if !ok {
			_ = a.release()
		}
	}()

	var err error
	if opts.InMemory {
		a.DB, err = storage.OpenInMemory()
	} else {
		a.DB, err = storage.Open(cfg.GetStoreDir(), logger)
	}
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	a.closers = append(a.closers, a.DB.Close)

	a.Remote = opts.Remote
	if a.Remote == nil {
		r, closeFn, err := cfg.OpenRemote()
		if err != nil {
			return nil, fmt.Errorf("open remote: %w", err)
		}
		a.Remote = r
		a.closers = append(a.closers, closeFn)
	}

	a.Monitor = opts.Monitor
	switch {
	case a.Monitor != nil:
	case opts.Offline:
		a.Monitor = connectivity.NewManual(false)
	case cfg.GetRemote() == config.RemoteMemory:
		a.Monitor = connectivity.NewManual(true)
	default:
		interval := opts.ProbeInterval
		if interval <= 0 {
			interval = DefaultProbeInterval
		}
		a.prober = connectivity.NewProber(a.probe, interval, logger)
		a.prober.Check(ctx)
		a.Monitor = a.prober
	}

	a.Identity = opts.Identity
	if a.Identity == nil {
		a.Identity = identityFor(cfg, logger)
	}

	a.Queue = queue.New(a.DB, queue.NewRemoteHandler(a.Remote, a.Identity), a.Monitor, queue.Options{
		BackoffBase: cfg.GetQueueBackoffBase(),
		BackoffMax:  cfg.GetQueueBackoffMax(),
		Logger:      logger,
	})

	static := opts.Static
	if static == nil {
		static = exercises.EmbeddedSource{}
		if cfg.ExercisesURL != "" {
			static = exercises.ChainSource{exercises.NewHTTPSource(cfg.ExercisesURL), exercises.EmbeddedSource{}}
		}
	}
	a.Exercises = exercises.NewLoader(a.DB, a.Remote, a.Monitor, static, a.Queue, logger)

	a.Workouts = workouts.NewService(a.DB, a.Remote, a.Monitor, a.Identity, a.Queue, logger)
	a.Records = records.NewService(a.DB, a.Remote, a.Monitor, logger)

	bg, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	a.PRs = records.NewScheduler(bg, a.Records, cfg.GetPRDebounce(), opts.OnNewPRs, logger)
	a.Workouts.AddListener(a.PRs)

	a.Routines = routines.NewCache(a.DB, a.Remote, a.Monitor, a.Identity, logger)
	a.Sessions = routines.NewSessionTracker(a.Routines, a.Workouts)

	ok = true
	return a, nil
}

// identityFor resolves the signed-in user: the configured user id first,
// then the Charm account when the charm remote is in use.
func identityFor(cfg *config.Config, logger *slog.Logger) identity.Provider {
	if cfg.UserID != "" {
		return identity.NewStatic(cfg.UserID)
	}
	if cfg.GetRemote() != config.RemoteCharm {
		return identity.NewStatic("")
	}

	var (
		once sync.Once
		uid  string
	)
	return identity.Func(func() (string, bool) {
		once.Do(func() {
			id, err := charmstore.UserID()
			if err != nil {
				logger.Warn("resolve charm account", "error", err)
				return
			}
			uid = id
		})
		return uid, uid != ""
	})
}

func (a *App) probe(ctx context.Context) error {
	_, err := a.Remote.Get(ctx, remote.CollectionProfiles, probeDocID)
	if err == nil || remote.IsNotFound(err) {
		return nil
	}
	return err
}

// Mount loads reference data, drains the queue when online, reconciles logs
// once for the signed-in user and refreshes the routine cache. Only a
// reference-data failure is fatal.
func (a *App) Mount(ctx context.Context) (MountResult, error) {
	var res MountResult

	ex, tier, err := a.Exercises.LoadWithTier(ctx)
	if err != nil {
		return res, fmt.Errorf("load exercises: %w", err)
	}
	res.Exercises, res.ExerciseTier = len(ex), tier

	if a.Monitor.Online() {
		drained, err := a.Queue.ProcessQueue(ctx)
		if err != nil {
			a.Logger.Warn("drain queue on mount", "error", err)
		}
		res.Drained = drained
	}

	uid, signedIn := a.Identity.UserID()
	if !signedIn {
		a.Logger.Info("not signed in; skipping log sync")
		return res, nil
	}

	if a.Monitor.Online() {
		rec, ran, err := a.Workouts.SyncOnMount(ctx)
		switch {
		case err != nil:
			a.Logger.Warn("reconcile logs", "uid", uid, "error", err)
		case ran:
			res.Reconciled, res.Reconcile = true, rec
		}
	}

	rs, src, err := a.Routines.FetchUserRoutines(ctx, uid)
	if err != nil {
		a.Logger.Warn("fetch routines", "uid", uid, "error", err)
	} else {
		res.Routines, res.RoutineSource = len(rs), src
	}
	return res, nil
}

// Run drives the background loops until ctx ends: queue draining, the
// reachability prober, and a reconcile on reconnect if mount missed it.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.Queue.Run(ctx)
	})
	if a.prober != nil {
		g.Go(func() error {
			a.prober.Run(ctx)
			return nil
		})
	}
	g.Go(func() error {
		events, cancel := a.Monitor.Subscribe()
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-events:
				if _, ran, err := a.Workouts.SyncOnMount(ctx); err != nil && !errors.Is(err, identity.ErrAuthRequired) {
					a.Logger.Warn("reconcile on reconnect", "error", err)
				} else if ran {
					a.Logger.Info("reconciled logs after reconnect")
				}
			}
		}
	})

	return g.Wait()
}

// SyncNow drains the queue and runs a fresh reconcile pass.
func (a *App) SyncNow(ctx context.Context) (queue.DrainResult, workouts.ReconcileResult, error) {
	if !a.Monitor.Online() {
		return queue.DrainResult{}, workouts.ReconcileResult{}, remote.Unavailable("sync", errors.New("offline"))
	}
	drained, err := a.Queue.ProcessQueue(ctx)
	if err != nil {
		return drained, workouts.ReconcileResult{}, fmt.Errorf("drain queue: %w", err)
	}
	rec, err := a.Workouts.Reconcile(ctx)
	if err != nil {
		return drained, rec, err
	}
	return drained, rec, nil
}

// UpdateProfile stamps the profile for the signed-in user and queues it
// for upload.
func (a *App) UpdateProfile(ctx context.Context, p *models.Profile) (*models.QueueItem, error) {
	uid, err := identity.Require(a.Identity)
	if err != nil {
		return nil, err
	}
	out := *p
	out.UID = uid
	out.UpdatedAt = time.Now().UnixMilli()
	if out.Unit == "" {
		out.Unit = "kg"
	}
	return a.Queue.Enqueue(ctx, queue.UpdateProfile{Profile: &out})
}

// Status summarizes local state for the signed-in user.
func (a *App) Status() (Status, error) {
	st := Status{Online: a.Monitor.Online()}
	qs, err := a.Queue.Stats()
	if err != nil {
		return st, err
	}
	st.Queue = qs

	uid, ok := a.Identity.UserID()
	if !ok {
		return st, nil
	}
	st.UID, st.SignedIn = uid, true

	logs, err := a.Workouts.List(uid)
	if err != nil {
		return st, err
	}
	st.Logs = len(logs)
	recs, err := a.Records.ListForUser(uid)
	if err != nil {
		return st, err
	}
	st.Records = len(recs)
	rs, err := a.Routines.GetRoutinesFromCache(uid)
	if err != nil {
		return st, err
	}
	st.Routines = len(rs)
	return st, nil
}

// Close flushes pending record recomputes, waits for background drains
// and releases the stores. Safe to call more than once.
func (a *App) Close(ctx context.Context) error {
	a.closeOnce.Do(func() {
		if a.PRs != nil {
			a.PRs.Flush(ctx)
			a.PRs.Close()
		}
		if a.Queue != nil {
			a.Queue.Wait()
			a.Queue.Close()
		}
		a.closeErr = a.release()
	})
	return a.closeErr
}

func (a *App) release() error {
	if a.cancel != nil {
		a.cancel()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
