// Package errors defines the error taxonomy of the remeshing controller.
//
// Four classes of failure exist:
//   - ErrInvalidInput: malformed or missing configuration, raised while the
//     controller is constructed.
//   - ErrDependency: a requested strategy needs an optional capability (for
//     example an error estimator) that was not supplied.
//   - ErrNative: the remesh kernel itself failed. Never recovered.
//   - ErrConvergenceExceeded: the error-driven loop ran out of iterations.
//     Reported and logged, never returned as a failure.
//
// Callers classify errors with Is/As, which are re-exported so that only this
// package needs importing:
//
//	var verr *errors.ValidationError
//	if errors.As(err, &verr) { ... }
//	if errors.Is(err, errors.ErrDependency) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Sentinel errors
var (
	// ErrInvalidInput indicates a malformed or missing configuration entry.
	ErrInvalidInput = New("invalid input")
	// ErrDependency indicates that an optional external capability is missing.
	ErrDependency = New("missing dependency")
	// ErrNative indicates a failure inside the remesh kernel.
	ErrNative = New("native remesher failed")
	// ErrConvergenceExceeded indicates that the error-driven loop reached its
	// iteration limit before the error estimate met the threshold.
	ErrConvergenceExceeded = New("convergence iterations exceeded")
)

// ValidationError reports a configuration entry that failed validation.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value any, reason string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Reason: reason}
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("invalid %s (%v): %s", e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Unwrap ties every validation failure to ErrInvalidInput.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// DependencyError reports a strategy whose external capability is absent.
type DependencyError struct {
	Strategy   string
	Capability string
}

// NewDependencyError creates a new DependencyError.
func NewDependencyError(strategy, capability string) *DependencyError {
	return &DependencyError{Strategy: strategy, Capability: capability}
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("strategy %s requires %s", e.Strategy, e.Capability)
}

// Unwrap ties every dependency failure to ErrDependency.
func (e *DependencyError) Unwrap() error {
	return ErrDependency
}

// StageError wraps a failure with the refinement stage and solution step in
// which it happened.
type StageError struct {
	Stage string
	Step  int
	Err   error
}

// NewStageError creates a new StageError. A nil err yields nil.
func NewStageError(stage string, step int, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Step: step, Err: err}
}

func (e *StageError) Error() string {
	return fmt.Sprintf("step %d, %s: %v", e.Step, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Native wraps an error returned by the remesh kernel so that it matches
// ErrNative while keeping the original cause reachable.
func Native(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNative) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrNative, err)
}

// IsFatal reports whether err must stop the enclosing simulation. Only native
// failures are fatal; configuration and dependency errors are raised before
// a simulation starts, and convergence overruns are never fatal.
func IsFatal(err error) bool {
	return errors.Is(err, ErrNative)
}
