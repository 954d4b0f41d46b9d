// ABOUTME: Remote error taxonomy: unreachable backend and missing documents.
// ABOUTME: UnavailableError is retryable; ErrNotFound is terminal for reads.
package remote

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a document does not exist.
var ErrNotFound = errors.New("document not found")

// UnavailableError reports that the remote store could not be reached or
// did not answer in time. Callers treat it as retryable.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("remote unavailable during %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Unavailable wraps err as an *UnavailableError for op.
func Unavailable(op string, err error) error {
	return &UnavailableError{Op: op, Err: err}
}

// IsUnavailable reports whether err means the remote could not be reached.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue) || errors.Is(err, context.DeadlineExceeded)
}

// IsNotFound reports whether err marks a missing remote document.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
