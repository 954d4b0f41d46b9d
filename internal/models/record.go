// ABOUTME: PersonalRecord model, a derived cache of best-ever set metrics.
// ABOUTME: One record per exercise and user, keyed by their concatenation.
package models

// PRMetric names one of the four tracked personal-record metrics.
type PRMetric string

const (
	PRMaxWeight          PRMetric = "maxWeight"
	PRMaxReps            PRMetric = "maxReps"
	PRMaxVolume          PRMetric = "maxVolume"
	PREstimatedOneRepMax PRMetric = "estimatedOneRepMax"
)

// AllPRMetrics lists the metrics in display order.
var AllPRMetrics = []PRMetric{PRMaxWeight, PRMaxReps, PRMaxVolume, PREstimatedOneRepMax}

// PRRecord is the best value of one metric and the set that produced it.
type PRRecord struct {
	Value        float64 `json:"value" yaml:"value"`
	AchievedAt   int64   `json:"achievedAt" yaml:"achieved_at"`
	WorkoutLogID string  `json:"workoutLogId" yaml:"workout_log_id"`
	SetIndex     int     `json:"setIndex" yaml:"set_index"`
	Weight       float64 `json:"weight" yaml:"weight"`
	Reps         int     `json:"reps" yaml:"reps"`
}

// PersonalRecord holds the four PR slots for one exercise and user.
type PersonalRecord struct {
	ID                 string    `json:"id" yaml:"id"`
	ExerciseID         string    `json:"exerciseId" yaml:"exercise_id"`
	UID                string    `json:"uid" yaml:"uid"`
	MaxWeight          *PRRecord `json:"maxWeight,omitempty" yaml:"max_weight,omitempty"`
	MaxReps            *PRRecord `json:"maxReps,omitempty" yaml:"max_reps,omitempty"`
	MaxVolume          *PRRecord `json:"maxVolume,omitempty" yaml:"max_volume,omitempty"`
	EstimatedOneRepMax *PRRecord `json:"estimatedOneRepMax,omitempty" yaml:"estimated_one_rep_max,omitempty"`
	LastUpdated        int64     `json:"lastUpdated" yaml:"last_updated"`
}

// PersonalRecordKey returns the storage key for an exercise and user.
func PersonalRecordKey(exerciseID, uid string) string {
	return exerciseID + "_" + uid
}

// Slot returns the record held for the metric, or nil.
func (p *PersonalRecord) Slot(m PRMetric) *PRRecord {
	switch m {
	case PRMaxWeight:
		return p.MaxWeight
	case PRMaxReps:
		return p.MaxReps
	case PRMaxVolume:
		return p.MaxVolume
	case PREstimatedOneRepMax:
		return p.EstimatedOneRepMax
	}
	return nil
}

// IsEmpty reports whether no slot holds a value.
func (p *PersonalRecord) IsEmpty() bool {
	return p.MaxWeight == nil && p.MaxReps == nil && p.MaxVolume == nil && p.EstimatedOneRepMax == nil
}
