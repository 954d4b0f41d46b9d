// ABOUTME: Table definitions, secondary indexes and forward-only schema migrations.
// ABOUTME: Declares exercises, logs, queue, personalRecords and routines tables.
package storage

import (
	"fmt"
	"strconv"

	"github.com/dgraph-io/badger/v3"
	"github.com/harperreed/liftlog/internal/models"
)

// SchemaVersion is the schema version this binary writes.
const SchemaVersion = 3

const schemaVersionKey = "m/schema_version"

// Table names.
const (
	TableExercises = "exercises"
	TableLogs      = "logs"
	TableQueue     = "queue"
	TableRecords   = "personalRecords"
	TableRoutines  = "routines"
)

// Index names.
const (
	IndexTargetMuscles = "targetMuscles"
	IndexBodyParts     = "bodyParts"
	IndexEquipments    = "equipments"
	IndexUID           = "uid"
	IndexExerciseID    = "exerciseId"
	IndexUIDExercise   = "uid_exercise"
	IndexStatus        = "status"
	IndexEntityID      = "entityId"
)

var exercisesTable = tableDef[models.Exercise]{
	name: TableExercises,
	key:  func(e *models.Exercise) string { return e.ExerciseID },
	indexes: map[string]IndexFunc[models.Exercise]{
		IndexTargetMuscles: func(e *models.Exercise) []string { return normalizeTags(e.TargetMuscles) },
		IndexBodyParts:     func(e *models.Exercise) []string { return normalizeTags(e.BodyParts) },
		IndexEquipments:    func(e *models.Exercise) []string { return normalizeTags(e.Equipments) },
	},
}

var logsTable = tableDef[models.WorkoutLog]{
	name: TableLogs,
	key:  func(l *models.WorkoutLog) string { return l.ID },
	indexes: map[string]IndexFunc[models.WorkoutLog]{
		IndexUID:         func(l *models.WorkoutLog) []string { return []string{l.UID} },
		IndexExerciseID:  func(l *models.WorkoutLog) []string { return []string{l.ExerciseID} },
		IndexUIDExercise: func(l *models.WorkoutLog) []string { return []string{UIDExerciseKey(l.UID, l.ExerciseID)} },
	},
}

var queueTable = tableDef[models.QueueItem]{
	name: TableQueue,
	key:  func(q *models.QueueItem) string { return QueueKey(q.ID) },
	indexes: map[string]IndexFunc[models.QueueItem]{
		IndexStatus:   func(q *models.QueueItem) []string { return []string{string(q.Status)} },
		IndexEntityID: func(q *models.QueueItem) []string { return []string{q.EntityID} },
	},
}

var recordsTable = tableDef[models.PersonalRecord]{
	name: TableRecords,
	key:  func(p *models.PersonalRecord) string { return models.PersonalRecordKey(p.ExerciseID, p.UID) },
	indexes: map[string]IndexFunc[models.PersonalRecord]{
		IndexUID: func(p *models.PersonalRecord) []string { return []string{p.UID} },
	},
}

var routinesTable = tableDef[models.WorkoutRoutine]{
	name: TableRoutines,
	key:  func(r *models.WorkoutRoutine) string { return r.ID },
	indexes: map[string]IndexFunc[models.WorkoutRoutine]{
		IndexUID: func(r *models.WorkoutRoutine) []string { return []string{r.UID} },
	},
}

// QueueKey returns the primary key for a queue item. Zero padding keeps
// key order equal to numeric order.
func QueueKey(id uint64) string {
	return fmt.Sprintf("%020d", id)
}

// UIDExerciseKey returns the compound index value for a user and exercise.
func UIDExerciseKey(uid, exerciseID string) string {
	return uid + "|" + exerciseID
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if n := models.NormalizeTag(t); n != "" {
			out = append(out, n)
		}
	}
	return out
}

type migration struct {
	version int
	name    string
	apply   func(d *DB) error
}

// migrations run in order; each is applied once and never reverted.
var migrations = []migration{
	{1, "initial layout", func(*DB) error { return nil }},
	{2, "index logs by uid and exercise", func(d *DB) error { return d.Logs.Reindex() }},
	{3, "index queue by entity", func(d *DB) error { return d.Queue.Reindex() }},
}

// migrate brings the store up to SchemaVersion.
func (d *DB) migrate() error {
	current, err := d.SchemaVersion()
	if err != nil {
		return err
	}
	if current > SchemaVersion {
		return fmt.Errorf("%w: store is v%d, binary supports v%d", ErrSchemaTooNew, current, SchemaVersion)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		d.logger.Info("applying store migration", "version", m.version, "name", m.name)
		if err := m.apply(d); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
		if err := d.setSchemaVersion(m.version); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) setSchemaVersion(v int) error {
	err := d.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(schemaVersionKey), []byte(strconv.Itoa(v)))
	})
	return storageErr("", "set schema version", err)
}
