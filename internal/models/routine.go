// ABOUTME: WorkoutRoutine templates and the in-memory active session cursor.
// ABOUTME: Routines are user-owned; sessions are never persisted.
package models

import (
	"time"

	"github.com/google/uuid"
)

// RoutineExercise is one ordered entry in a routine.
type RoutineExercise struct {
	ExerciseID      string   `json:"exerciseId" yaml:"exercise_id"`
	Order           int      `json:"order" yaml:"order"`
	SuggestedSets   *int     `json:"suggestedSets,omitempty" yaml:"suggested_sets,omitempty"`
	SuggestedReps   *int     `json:"suggestedReps,omitempty" yaml:"suggested_reps,omitempty"`
	SuggestedWeight *float64 `json:"suggestedWeight,omitempty" yaml:"suggested_weight,omitempty"`
}

// WorkoutRoutine is a named, reusable list of exercises.
type WorkoutRoutine struct {
	ID          string            `json:"id" yaml:"id"`
	UID         string            `json:"uid" yaml:"uid"`
	Name        string            `json:"name" yaml:"name"`
	Description *string           `json:"description,omitempty" yaml:"description,omitempty"`
	Exercises   []RoutineExercise `json:"exercises" yaml:"exercises"`
	CreatedAt   int64             `json:"createdAt" yaml:"created_at"`
	UpdatedAt   int64             `json:"updatedAt" yaml:"updated_at"`
	LastUsed    *int64            `json:"lastUsed,omitempty" yaml:"last_used,omitempty"`
}

// NewRoutine creates an unsaved routine with the given exercises in order.
func NewRoutine(name string, exerciseIDs ...string) *WorkoutRoutine {
	r := &WorkoutRoutine{Name: name}
	for i, id := range exerciseIDs {
		r.Exercises = append(r.Exercises, RoutineExercise{ExerciseID: id, Order: i})
	}
	return r
}

// NewRoutineID returns a fresh routine identifier.
func NewRoutineID() string {
	return uuid.NewString()
}

// WithDescription sets the description.
func (r *WorkoutRoutine) WithDescription(d string) *WorkoutRoutine {
	r.Description = &d
	return r
}

// Clone returns a deep copy of the routine.
func (r *WorkoutRoutine) Clone() *WorkoutRoutine {
	c := *r
	c.Exercises = append([]RoutineExercise(nil), r.Exercises...)
	if r.Description != nil {
		d := *r.Description
		c.Description = &d
	}
	if r.LastUsed != nil {
		lu := *r.LastUsed
		c.LastUsed = &lu
	}
	return &c
}

// ActiveRoutineSession is the in-memory progress cursor over a routine.
type ActiveRoutineSession struct {
	RoutineID            string
	StartedAt            time.Time
	CurrentExerciseIndex int
	CompletedExercises   map[string]bool
	Logs                 []*WorkoutLog
}

// NewActiveRoutineSession starts a session at the first exercise.
func NewActiveRoutineSession(routineID string) *ActiveRoutineSession {
	return &ActiveRoutineSession{
		RoutineID:          routineID,
		StartedAt:          time.Now(),
		CompletedExercises: make(map[string]bool),
	}
}
