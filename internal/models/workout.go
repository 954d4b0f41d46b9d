// ABOUTME: WorkoutLog and WorkoutSet models for strength-training sessions.
// ABOUTME: A log is one exercise performed in one session, replaced wholesale on edit.
package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// WorkoutSet is a single set within a workout log.
type WorkoutSet struct {
	Weight float64  `json:"weight" yaml:"weight"`
	Reps   int      `json:"reps" yaml:"reps"`
	RPE    *float64 `json:"rpe,omitempty" yaml:"rpe,omitempty"`
}

// Volume returns weight times reps for the set.
func (s WorkoutSet) Volume() float64 {
	return s.Weight * float64(s.Reps)
}

// WorkoutLog records one exercise performed during a workout session.
// Timestamp is epoch milliseconds and is the logical ordering key.
type WorkoutLog struct {
	ID         string       `json:"id" yaml:"id"`
	UID        string       `json:"uid" yaml:"uid"`
	ExerciseID string       `json:"exerciseId" yaml:"exercise_id"`
	Timestamp  int64        `json:"timestamp" yaml:"timestamp"`
	Sets       []WorkoutSet `json:"sets" yaml:"sets"`
	Note       *string      `json:"note,omitempty" yaml:"note,omitempty"`
}

// NewWorkoutLog creates an unsaved log for the exercise stamped with the current time.
// The ID and UID are assigned when the log is saved.
func NewWorkoutLog(exerciseID string, sets ...WorkoutSet) *WorkoutLog {
	return &WorkoutLog{
		ExerciseID: exerciseID,
		Timestamp:  time.Now().UnixMilli(),
		Sets:       sets,
	}
}

// NewLogID returns a fresh random log identifier.
func NewLogID() string {
	return uuid.NewString()
}

// WithNote sets the free-text note.
func (l *WorkoutLog) WithNote(note string) *WorkoutLog {
	l.Note = &note
	return l
}

// WithTime sets a custom timestamp.
func (l *WorkoutLog) WithTime(t time.Time) *WorkoutLog {
	l.Timestamp = t.UnixMilli()
	return l
}

// Time returns the timestamp as a time.Time.
func (l *WorkoutLog) Time() time.Time {
	return time.UnixMilli(l.Timestamp)
}

// Volume returns the total volume across all sets.
func (l *WorkoutLog) Volume() float64 {
	var total float64
	for _, s := range l.Sets {
		total += s.Volume()
	}
	return total
}

// IsPersisted reports whether the log has been assigned an id.
func (l *WorkoutLog) IsPersisted() bool {
	return l.ID != ""
}

// Clone returns a deep copy of the log.
func (l *WorkoutLog) Clone() *WorkoutLog {
	c := *l
	c.Sets = make([]WorkoutSet, len(l.Sets))
	for i, s := range l.Sets {
		c.Sets[i] = s
		if s.RPE != nil {
			rpe := *s.RPE
			c.Sets[i].RPE = &rpe
		}
	}
	if l.Note != nil {
		note := *l.Note
		c.Note = &note
	}
	return &c
}

// Validate checks the invariants every stored log must satisfy.
func (l *WorkoutLog) Validate() error {
	if l.UID == "" {
		return errors.New("log has no owner uid")
	}
	if l.ExerciseID == "" {
		return errors.New("log has no exercise id")
	}
	for i, s := range l.Sets {
		if s.Weight < 0 {
			return fmt.Errorf("set %d: negative weight", i)
		}
		if s.Reps < 0 {
			return fmt.Errorf("set %d: negative reps", i)
		}
	}
	return nil
}
