// ABOUTME: Pure personal-record aggregation over workout logs.
// ABOUTME: Folds every set into four best-ever metrics with provenance.
package records

import (
	"sort"

	"github.com/harperreed/liftlog/internal/models"
)

// EstimatedOneRepMax applies Epley's formula. A single rep is its own max.
func EstimatedOneRepMax(weight float64, reps int) float64 {
	if reps == 1 {
		return weight
	}
	return weight * (1 + float64(reps)/30)
}

func metricValue(m models.PRMetric, s models.WorkoutSet) float64 {
	switch m {
	case models.PRMaxWeight:
		return s.Weight
	case models.PRMaxReps:
		return float64(s.Reps)
	case models.PRMaxVolume:
		return s.Volume()
	case models.PREstimatedOneRepMax:
		return EstimatedOneRepMax(s.Weight, s.Reps)
	}
	return 0
}

// Calculate folds the logs belonging to exerciseID and uid into a
// PersonalRecord. Logs are visited oldest first (ties by id) and sets in
// order, so on equal values the earliest set keeps the record. With no
// matching sets every slot is nil. Calculate does no I/O.
func Calculate(exerciseID, uid string, logs []*models.WorkoutLog) *models.PersonalRecord {
	rec := &models.PersonalRecord{
		ID:         models.PersonalRecordKey(exerciseID, uid),
		ExerciseID: exerciseID,
		UID:        uid,
	}

	var matching []*models.WorkoutLog
	for _, l := range logs {
		if l != nil && l.ExerciseID == exerciseID && l.UID == uid {
			matching = append(matching, l)
		}
	}
	sort.SliceStable(matching, func(i, j int) bool {
		if matching[i].Timestamp != matching[j].Timestamp {
			return matching[i].Timestamp < matching[j].Timestamp
		}
		return matching[i].ID < matching[j].ID
	})

	for _, l := range matching {
		for idx, s := range l.Sets {
			for _, m := range models.AllPRMetrics {
				v := metricValue(m, s)
				cur := rec.Slot(m)
				if cur != nil && v <= cur.Value {
					continue
				}
				setSlot(rec, m, &models.PRRecord{
					Value:        v,
					AchievedAt:   l.Timestamp,
					WorkoutLogID: l.ID,
					SetIndex:     idx,
					Weight:       s.Weight,
					Reps:         s.Reps,
				})
			}
		}
	}
	return rec
}

func setSlot(rec *models.PersonalRecord, m models.PRMetric, r *models.PRRecord) {
	switch m {
	case models.PRMaxWeight:
		rec.MaxWeight = r
	case models.PRMaxReps:
		rec.MaxReps = r
	case models.PRMaxVolume:
		rec.MaxVolume = r
	case models.PREstimatedOneRepMax:
		rec.EstimatedOneRepMax = r
	}
}

// DetectNewPRs returns the metrics newLog strictly beats in current. With
// no baseline (nil or empty current) nothing counts as a new record.
func DetectNewPRs(newLog *models.WorkoutLog, current *models.PersonalRecord) []models.PRMetric {
	if newLog == nil || len(newLog.Sets) == 0 || current == nil || current.IsEmpty() {
		return nil
	}
	var broken []models.PRMetric
	for _, m := range models.AllPRMetrics {
		best := 0.0
		for _, s := range newLog.Sets {
			if v := metricValue(m, s); v > best {
				best = v
			}
		}
		slot := current.Slot(m)
		if slot == nil || best > slot.Value {
			broken = append(broken, m)
		}
	}
	return broken
}
