package dte

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntimeError(t *testing.T) {
	inner := errors.New("manifest not found")
	err := NewRuntimeError(inner)

	assert.True(t, IsRuntimeError(err))
	assert.False(t, IsTestFailureError(err))
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "runtime error")

	wrapped := fmt.Errorf("startup failed: %w", err)
	assert.True(t, IsRuntimeError(wrapped))
}

func TestTestFailureError(t *testing.T) {
	err := NewTestFailureError("3 of 10 tests failed")

	assert.True(t, IsTestFailureError(err))
	assert.False(t, IsRuntimeError(err))
	assert.Contains(t, err.Error(), "3 of 10 tests failed")

	wrapped := fmt.Errorf("run finished: %w", err)
	assert.True(t, IsTestFailureError(wrapped))
}

func TestErrorCheckersOnNil(t *testing.T) {
	require.False(t, IsRuntimeError(nil))
	require.False(t, IsTestFailureError(nil))
}
