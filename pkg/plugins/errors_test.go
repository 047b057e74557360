package plugins

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Is(t *testing.T) {
	err := fmt.Errorf("loading: %w", Errorf(KindConflict, "a", "conflicts with %s", "c"))

	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrMissingDependency)

	var pErr *Error
	assert.True(t, errors.As(err, &pErr))
	assert.Equal(t, "a", pErr.Plugin)
	assert.Equal(t, "plugin a: conflict: conflicts with c", pErr.Error())
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(KindInitFailed, "magic", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrInitFailed)
	assert.Equal(t, "plugin magic: init failed: boom", err.Error())
}
