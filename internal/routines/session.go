// ABOUTME: Tracks the single active routine session in memory.
// ABOUTME: Logs recorded in a session go through the workout service.
package routines

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/harperreed/liftlog/internal/models"
)

var (
	// ErrSessionActive is returned when starting a session while one runs.
	ErrSessionActive = errors.New("a routine session is already active")
	// ErrNoSession is returned when no session is active.
	ErrNoSession = errors.New("no active routine session")
	// ErrSessionComplete is returned when every exercise has been passed.
	ErrSessionComplete = errors.New("routine session has no more exercises")
)

// LogRecorder writes workout logs.
type LogRecorder interface {
	LogWorkout(ctx context.Context, l *models.WorkoutLog) (*models.WorkoutLog, error)
}

// SessionTracker owns at most one ActiveRoutineSession.
type SessionTracker struct {
	cache *Cache
	logs  LogRecorder
	now   func() time.Time

	mu      sync.Mutex
	session *models.ActiveRoutineSession
	routine *models.WorkoutRoutine
}

// NewSessionTracker builds a SessionTracker.
func NewSessionTracker(cache *Cache, logs LogRecorder) *SessionTracker {
	return &SessionTracker{cache: cache, logs: logs, now: time.Now}
}

// Start begins a session over a cached routine and marks it used.
func (t *SessionTracker) Start(ctx context.Context, routineID string) (*models.ActiveRoutineSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session != nil {
		return nil, ErrSessionActive
	}
	r, err := t.cache.MarkUsed(ctx, routineID)
	if err != nil {
		return nil, err
	}
	s := models.NewActiveRoutineSession(routineID)
	s.StartedAt = t.now()
	t.session = s
	t.routine = r
	return snapshot(s), nil
}

// Current returns a copy of the session and the exercise it points at.
// The exercise is nil once the session has moved past the last one.
func (t *SessionTracker) Current() (*models.ActiveRoutineSession, *models.RoutineExercise, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return nil, nil, ErrNoSession
	}
	return snapshot(t.session), t.currentExercise(), nil
}

func (t *SessionTracker) currentExercise() *models.RoutineExercise {
	i := t.session.CurrentExerciseIndex
	if i < 0 || i >= len(t.routine.Exercises) {
		return nil
	}
	ex := t.routine.Exercises[i]
	return &ex
}

// RecordLog logs sets for the current exercise and marks it complete.
func (t *SessionTracker) RecordLog(ctx context.Context, sets ...models.WorkoutSet) (*models.WorkoutLog, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return nil, ErrNoSession
	}
	ex := t.currentExercise()
	if ex == nil {
		return nil, ErrSessionComplete
	}
	saved, err := t.logs.LogWorkout(ctx, models.NewWorkoutLog(ex.ExerciseID, sets...))
	if err != nil {
		return nil, err
	}
	t.session.Logs = append(t.session.Logs, saved)
	t.session.CompletedExercises[ex.ExerciseID] = true
	return saved, nil
}

// Advance moves to the next exercise. It returns nil and
// ErrSessionComplete after the last one.
func (t *SessionTracker) Advance() (*models.RoutineExercise, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return nil, ErrNoSession
	}
	if t.session.CurrentExerciseIndex < len(t.routine.Exercises) {
		t.session.CurrentExerciseIndex++
	}
	ex := t.currentExercise()
	if ex == nil {
		return nil, ErrSessionComplete
	}
	return ex, nil
}

// Finish ends the session and returns its final state.
func (t *SessionTracker) Finish() (*models.ActiveRoutineSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return nil, ErrNoSession
	}
	s := t.session
	t.session, t.routine = nil, nil
	return s, nil
}

// Abandon discards the session. Logs already recorded are kept.
func (t *SessionTracker) Abandon() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.session, t.routine = nil, nil
}

func snapshot(s *models.ActiveRoutineSession) *models.ActiveRoutineSession {
	c := *s
	c.CompletedExercises = make(map[string]bool, len(s.CompletedExercises))
	for k, v := range s.CompletedExercises {
		c.CompletedExercises[k] = v
	}
	c.Logs = append([]*models.WorkoutLog(nil), s.Logs...)
	return &c
}
