package krakenerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndIs(t *testing.T) {
	err := New(NotFound, CodeInvalidUUID, "no such host")
	assert.True(t, Is(err, NotFound))
	assert.False(t, Is(err, Storage))
	assert.Contains(t, err.Error(), "no such host")
	assert.Contains(t, err.Error(), CodeInvalidUUID)
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(Storage, "DbDown", cause)
	require.NotNil(t, err)
	assert.True(t, errors.Is(err, cause))
	assert.True(t, Is(err, Storage))
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(Storage, "DbDown", nil))
}

func TestIsThroughWrapping(t *testing.T) {
	inner := New(Conflict, CodeAlreadyExists, "name taken")
	outer := fmt.Errorf("creating workspace: %w", inner)
	assert.True(t, Is(outer, Conflict))

	var e *Error
	require.True(t, errors.As(outer, &e))
	assert.Equal(t, CodeAlreadyExists, e.Code)
}

func TestIsOnForeignError(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), Internal))
}
