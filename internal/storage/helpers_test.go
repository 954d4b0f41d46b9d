// ABOUTME: Shared test helpers for local store tests.
// ABOUTME: Provides setupTestDB backed by an in-memory badger instance.
package storage

import (
	"testing"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenInMemory()
	if err != nil {
		t.Fatalf("failed to open in-memory store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
