// ABOUTME: Tests for identity providers and the auth guard.
// ABOUTME: Covers static sign-in/out, func adapters and Require.
package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequire(t *testing.T) {
	s := NewStatic("")
	_, err := Require(s)
	assert.ErrorIs(t, err, ErrAuthRequired)

	s.SignIn("u1")
	uid, err := Require(s)
	assert.NoError(t, err)
	assert.Equal(t, "u1", uid)

	s.SignOut()
	_, err = Require(s)
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestRequireNilProvider(t *testing.T) {
	_, err := Require(nil)
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestFuncProvider(t *testing.T) {
	p := Func(func() (string, bool) { return "charm-123", true })
	uid, err := Require(p)
	assert.NoError(t, err)
	assert.Equal(t, "charm-123", uid)
}
