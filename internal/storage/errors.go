// ABOUTME: Error taxonomy for the local store.
// ABOUTME: StorageError wraps engine failures; ErrNotFound marks absent records.
package storage

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a record does not exist in a table.
	ErrNotFound = errors.New("not found")

	// ErrUnknownIndex is returned when querying an index the table does not declare.
	ErrUnknownIndex = errors.New("unknown index")

	// ErrSchemaTooNew is returned when the on-disk schema is newer than this binary.
	ErrSchemaTooNew = errors.New("store schema is newer than this version of liftlog")
)

// StorageError reports a failed local store operation.
type StorageError struct {
	Table string
	Op    string
	Err   error
}

func (e *StorageError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Table, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err marks a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func storageErr(table, op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Table: table, Op: op, Err: err}
}
