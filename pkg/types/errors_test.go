package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKindOf(t *testing.T) {
	err := New(KindNoSuchProject, "p1")
	assert.Equal(t, KindNoSuchProject, KindOf(err))
	assert.True(t, Is(err, KindNoSuchProject))
	assert.False(t, Is(err, KindIDConflict))
}

func TestErrorKindOfPlainError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
}

func TestErrorIsMatchesByKindNotMessage(t *testing.T) {
	a := New(KindIDConflict, "entity alice already exists")
	b := New(KindIDConflict, "policy foo already exists")
	assert.True(t, errors.Is(a, b))
}

func TestErrorWrapUnwrap(t *testing.T) {
	cause := errors.New("parse failure")
	err := Wrap(KindInvalidPolicy, "policy p1", cause)
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "parse failure")
	assert.Contains(t, err.Error(), "policy p1")
}

func TestErrorAsTarget(t *testing.T) {
	err := Wrap(KindBackendUnavailable, "load project", errors.New("timeout"))
	var target *Error
	require.True(t, errors.As(err, &target))
	assert.Equal(t, KindBackendUnavailable, target.Kind)
}
