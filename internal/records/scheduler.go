// ABOUTME: Debounced personal-record recompute driven by log changes.
// ABOUTME: Reports metrics broken by newly created logs through a callback.
package records

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/harperreed/liftlog/internal/models"
)

// DefaultDebounce is the recompute delay after a log change.
const DefaultDebounce = time.Second

// NewPRs describes a log that set one or more personal records.
type NewPRs struct {
	Log    *models.WorkoutLog
	Broken []models.PRMetric
	Record *models.PersonalRecord
}

type pairKey struct {
	uid        string
	exerciseID string
}

type pendingRecompute struct {
	timer   *time.Timer
	created []*models.WorkoutLog
}

// Scheduler coalesces recomputes per user and exercise. It satisfies the
// workout service's change listener.
type Scheduler struct {
	svc      *Service
	delay    time.Duration
	onNewPRs func(NewPRs)
	logger   *slog.Logger
	ctx      context.Context

	mu      sync.Mutex
	pending map[pairKey]*pendingRecompute
	closed  bool
	wg      sync.WaitGroup
}

// NewScheduler builds a Scheduler. onNewPRs may be nil.
func NewScheduler(ctx context.Context, svc *Service, delay time.Duration, onNewPRs func(NewPRs), logger *slog.Logger) *Scheduler {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{
		svc:      svc,
		delay:    delay,
		onNewPRs: onNewPRs,
		logger:   logger.With("component", "pr-scheduler"),
		ctx:      ctx,
		pending:  make(map[pairKey]*pendingRecompute),
	}
}

// LogCreated schedules a recompute and a new-PR check for l.
func (s *Scheduler) LogCreated(l *models.WorkoutLog) {
	s.schedule(pairKey{uid: l.UID, exerciseID: l.ExerciseID}, l)
}

// LogsChanged schedules a recompute for the pair.
func (s *Scheduler) LogsChanged(uid, exerciseID string) {
	s.schedule(pairKey{uid: uid, exerciseID: exerciseID}, nil)
}

func (s *Scheduler) schedule(k pairKey, created *models.WorkoutLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	p := s.pending[k]
	if p == nil {
		p = &pendingRecompute{}
		s.pending[k] = p
	}
	if created != nil {
		p.created = append(p.created, created)
	}
	// A stopped timer hands its WaitGroup slot to the replacement.
	if p.timer == nil || !p.timer.Stop() {
		s.wg.Add(1)
	}
	p.timer = time.AfterFunc(s.delay, func() {
		defer s.wg.Done()
		s.fire(k)
	})
}

func (s *Scheduler) fire(k pairKey) {
	s.mu.Lock()
	p := s.pending[k]
	delete(s.pending, k)
	s.mu.Unlock()
	if p == nil {
		return
	}
	s.run(s.ctx, k, p.created)
}

// Flush runs every pending recompute now.
func (s *Scheduler) Flush(ctx context.Context) {
	s.mu.Lock()
	due := make(map[pairKey]*pendingRecompute, len(s.pending))
	for k, p := range s.pending {
		if p.timer.Stop() {
			s.wg.Done()
		}
		due[k] = p
		delete(s.pending, k)
	}
	s.mu.Unlock()

	for k, p := range due {
		s.run(ctx, k, p.created)
	}
}

// Close drops pending recomputes and waits for running ones.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	for k, p := range s.pending {
		if p.timer.Stop() {
			s.wg.Done()
		}
		delete(s.pending, k)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context, k pairKey, created []*models.WorkoutLog) {
	logs, err := s.svc.logsFor(k.uid, k.exerciseID)
	if err != nil {
		s.logger.Warn("load logs for recompute", "uid", k.uid, "exercise", k.exerciseID, "error", err)
		return
	}
	rec, err := s.svc.Update(ctx, k.exerciseID, k.uid, logs)
	if err != nil {
		s.logger.Warn("recompute personal records", "uid", k.uid, "exercise", k.exerciseID, "error", err)
		return
	}
	s.logger.Debug("recomputed personal records", "uid", k.uid, "exercise", k.exerciseID)

	if s.onNewPRs == nil {
		return
	}
	for _, l := range created {
		baseline := Calculate(k.exerciseID, k.uid, without(logs, l.ID))
		if broken := DetectNewPRs(l, baseline); len(broken) > 0 {
			s.onNewPRs(NewPRs{Log: l, Broken: broken, Record: rec})
		}
	}
}

func without(logs []*models.WorkoutLog, id string) []*models.WorkoutLog {
	out := make([]*models.WorkoutLog, 0, len(logs))
	for _, l := range logs {
		if l.ID != id {
			out = append(out, l)
		}
	}
	return out
}
