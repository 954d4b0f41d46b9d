// ABOUTME: Tests for WorkoutLog, routine and record models.
// ABOUTME: Validates constructors, builders, cloning and validation.
package models

import (
	"testing"
	"time"
)

func TestNewWorkoutLog(t *testing.T) {
	l := NewWorkoutLog("bench", WorkoutSet{Weight: 100, Reps: 5})

	if l.ID != "" {
		t.Error("expected unsaved log to have no ID")
	}
	if l.IsPersisted() {
		t.Error("expected IsPersisted to be false")
	}
	if l.ExerciseID != "bench" {
		t.Errorf("ExerciseID = %s, want bench", l.ExerciseID)
	}
	if l.Timestamp == 0 {
		t.Error("expected Timestamp to be set")
	}
}

func TestWorkoutLogWithTime(t *testing.T) {
	at := time.Date(2024, 3, 1, 7, 30, 0, 0, time.UTC)
	l := NewWorkoutLog("squat").WithTime(at)

	if !l.Time().Equal(at) {
		t.Errorf("Time() = %v, want %v", l.Time(), at)
	}
}

func TestWorkoutLogVolume(t *testing.T) {
	l := NewWorkoutLog("bench",
		WorkoutSet{Weight: 100, Reps: 5},
		WorkoutSet{Weight: 110, Reps: 3},
	)
	if got := l.Volume(); got != 830 {
		t.Errorf("Volume() = %v, want 830", got)
	}
}

func TestWorkoutLogCloneIsDeep(t *testing.T) {
	rpe := 8.0
	l := NewWorkoutLog("bench", WorkoutSet{Weight: 100, Reps: 5, RPE: &rpe}).WithNote("easy")

	c := l.Clone()
	c.Sets[0].Weight = 200
	*c.Sets[0].RPE = 9
	*c.Note = "hard"

	if l.Sets[0].Weight != 100 {
		t.Error("clone shares sets with original")
	}
	if *l.Sets[0].RPE != 8 {
		t.Error("clone shares rpe with original")
	}
	if *l.Note != "easy" {
		t.Error("clone shares note with original")
	}
}

func TestWorkoutLogValidate(t *testing.T) {
	tests := []struct {
		name    string
		log     WorkoutLog
		wantErr bool
	}{
		{"valid", WorkoutLog{UID: "u1", ExerciseID: "bench", Sets: []WorkoutSet{{Weight: 100, Reps: 5}}}, false},
		{"missing uid", WorkoutLog{ExerciseID: "bench"}, true},
		{"missing exercise", WorkoutLog{UID: "u1"}, true},
		{"negative weight", WorkoutLog{UID: "u1", ExerciseID: "bench", Sets: []WorkoutSet{{Weight: -1, Reps: 5}}}, true},
		{"negative reps", WorkoutLog{UID: "u1", ExerciseID: "bench", Sets: []WorkoutSet{{Weight: 1, Reps: -5}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.log.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewRoutineOrdersExercises(t *testing.T) {
	r := NewRoutine("Push", "bench", "ohp", "dips")

	if len(r.Exercises) != 3 {
		t.Fatalf("expected 3 exercises, got %d", len(r.Exercises))
	}
	for i, ex := range r.Exercises {
		if ex.Order != i {
			t.Errorf("Exercises[%d].Order = %d, want %d", i, ex.Order, i)
		}
	}
}

func TestRoutineCloneIsDeep(t *testing.T) {
	lu := int64(42)
	r := NewRoutine("Pull", "row").WithDescription("back day")
	r.LastUsed = &lu

	c := r.Clone()
	c.Exercises[0].ExerciseID = "chinup"
	*c.Description = "arms"
	*c.LastUsed = 7

	if r.Exercises[0].ExerciseID != "row" || *r.Description != "back day" || *r.LastUsed != 42 {
		t.Error("clone shares state with original")
	}
}

func TestPersonalRecordKeyAndSlots(t *testing.T) {
	if got := PersonalRecordKey("bench", "u1"); got != "bench_u1" {
		t.Errorf("PersonalRecordKey = %s, want bench_u1", got)
	}

	pr := &PersonalRecord{}
	if !pr.IsEmpty() {
		t.Error("expected empty record")
	}
	pr.MaxReps = &PRRecord{Value: 10}
	if pr.IsEmpty() {
		t.Error("expected non-empty record")
	}
	if pr.Slot(PRMaxReps).Value != 10 {
		t.Error("Slot(maxReps) returned wrong record")
	}
	if pr.Slot(PRMaxWeight) != nil {
		t.Error("Slot(maxWeight) should be nil")
	}
}

func TestQueueItemDrainable(t *testing.T) {
	for status, want := range map[QueueStatus]bool{
		StatusPending:    true,
		StatusProcessing: true,
		StatusFailed:     false,
	} {
		item := QueueItem{Status: status}
		if got := item.Drainable(); got != want {
			t.Errorf("Drainable() for %s = %v, want %v", status, got, want)
		}
	}
}
