// ABOUTME: Identity port exposing the signed-in user's id.
// ABOUTME: Static and func-backed providers plus the Require auth guard.
package identity

import (
	"errors"
	"sync"
)

// ErrAuthRequired is returned when an operation needs a signed-in user.
var ErrAuthRequired = errors.New("authentication required")

// Provider reports the current user id, if any.
type Provider interface {
	UserID() (string, bool)
}

// Static is a Provider with a fixed, changeable uid.
type Static struct {
	mu  sync.RWMutex
	uid string
}

// NewStatic returns a Static for uid. An empty uid means signed out.
func NewStatic(uid string) *Static {
	return &Static{uid: uid}
}

func (s *Static) UserID() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.uid, s.uid != ""
}

// SignIn replaces the current uid.
func (s *Static) SignIn(uid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uid = uid
}

// SignOut clears the current uid.
func (s *Static) SignOut() {
	s.SignIn("")
}

// Func adapts a function to Provider.
type Func func() (string, bool)

func (f Func) UserID() (string, bool) {
	return f()
}

// Require returns the uid or ErrAuthRequired.
func Require(p Provider) (string, error) {
	if p == nil {
		return "", ErrAuthRequired
	}
	uid, ok := p.UserID()
	if !ok || uid == "" {
		return "", ErrAuthRequired
	}
	return uid, nil
}
