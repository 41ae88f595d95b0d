package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("strategy", "Bogus", "unsupported strategy")

	assert.Equal(t, "invalid strategy (Bogus): unsupported strategy", err.Error())
	assert.True(t, Is(err, ErrInvalidInput))
	assert.False(t, Is(err, ErrDependency))

	wrapped := fmt.Errorf("construct controller: %w", err)
	var verr *ValidationError
	if assert.True(t, As(wrapped, &verr)) {
		assert.Equal(t, "strategy", verr.Field)
	}

	noValue := NewValidationError("metric_variable", nil, "list is empty")
	assert.Equal(t, "invalid metric_variable: list is empty", noValue.Error())
}

func TestDependencyError(t *testing.T) {
	err := NewDependencyError("superconvergent_patch_recovery", "an error estimator")
	assert.True(t, Is(err, ErrDependency))
	assert.Contains(t, err.Error(), "requires an error estimator")
}

func TestStageError(t *testing.T) {
	assert.Nil(t, NewStageError("metric", 3, nil))

	cause := NewValidationError("field", "PRESSURE", "not found on mesh")
	err := NewStageError("metric", 3, cause)
	assert.Equal(t, "step 3, metric: invalid field (PRESSURE): not found on mesh", err.Error())
	assert.True(t, Is(err, ErrInvalidInput))
	assert.False(t, IsFatal(err))
}

func TestNative(t *testing.T) {
	assert.Nil(t, Native(nil))

	cause := New("mmg returned status 1")
	err := Native(cause)
	assert.True(t, Is(err, ErrNative))
	assert.True(t, Is(err, cause))
	assert.True(t, IsFatal(err))

	// Wrapping twice must not stack the sentinel
	assert.Equal(t, err, Native(err))
}
