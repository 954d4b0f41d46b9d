// ABOUTME: Tests for store lifecycle, schema migrations and queue autonumbering.
// ABOUTME: Uses on-disk stores where persistence across reopen matters.
package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/dgraph-io/badger/v3"
	"github.com/harperreed/liftlog/internal/models"
)

func TestOpenAppliesAllMigrations(t *testing.T) {
	db := setupTestDB(t)

	v, err := db.SchemaVersion()
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if v != SchemaVersion {
		t.Errorf("SchemaVersion = %d, want %d", v, SchemaVersion)
	}
}

func TestDataSurvivesReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")

	db, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := db.Logs.Put(&models.WorkoutLog{ID: "log-1", UID: "u1", ExerciseID: "bench"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	first, err := db.NextQueueID()
	if err != nil {
		t.Fatalf("NextQueueID failed: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	db, err = Open(dir, nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	if _, err := db.Logs.Get("log-1"); err != nil {
		t.Errorf("log lost across reopen: %v", err)
	}
	next, err := db.NextQueueID()
	if err != nil {
		t.Fatalf("NextQueueID failed: %v", err)
	}
	if next <= first {
		t.Errorf("queue id went backwards across reopen: %d then %d", first, next)
	}
}

func TestNextQueueIDIsMonotonic(t *testing.T) {
	db := setupTestDB(t)

	prev, err := db.NextQueueID()
	if err != nil {
		t.Fatalf("NextQueueID failed: %v", err)
	}
	if prev < 1 {
		t.Errorf("first queue id = %d, want >= 1", prev)
	}
	for i := 0; i < 200; i++ {
		n, err := db.NextQueueID()
		if err != nil {
			t.Fatalf("NextQueueID failed: %v", err)
		}
		if n <= prev {
			t.Fatalf("queue id %d not greater than %d", n, prev)
		}
		prev = n
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")

	db, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := db.setSchemaVersion(SchemaVersion + 1); err != nil {
		t.Fatalf("setSchemaVersion failed: %v", err)
	}
	db.Close()

	_, err = Open(dir, nil)
	if !errors.Is(err, ErrSchemaTooNew) {
		t.Errorf("expected ErrSchemaTooNew, got %v", err)
	}
}

func TestMigrationRebuildsCompoundIndex(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "store")

	db, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := db.Logs.Put(&models.WorkoutLog{ID: "log-1", UID: "u1", ExerciseID: "bench"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Simulate a v1 store: drop the log indexes and rewind the version
	if err := db.db.DropPrefix(tableIndexPrefix(TableLogs)); err != nil {
		t.Fatalf("DropPrefix failed: %v", err)
	}
	if err := db.setSchemaVersion(1); err != nil {
		t.Fatalf("setSchemaVersion failed: %v", err)
	}
	db.Close()

	db, err = Open(dir, nil)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	hits, err := db.Logs.QueryByIndex(IndexUIDExercise, UIDExerciseKey("u1", "bench"))
	if err != nil {
		t.Fatalf("QueryByIndex failed: %v", err)
	}
	if len(hits) != 1 {
		t.Errorf("expected migration to rebuild index, got %d hits", len(hits))
	}
}

func TestStorageErrorWrapsCause(t *testing.T) {
	err := storageErr(TableLogs, "put", badger.ErrTxnTooBig)

	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("expected StorageError, got %T", err)
	}
	if !errors.Is(err, badger.ErrTxnTooBig) {
		t.Error("StorageError should unwrap to its cause")
	}
	if storageErr(TableLogs, "put", nil) != nil {
		t.Error("storageErr(nil) should be nil")
	}
}
