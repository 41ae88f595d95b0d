package config

import (
	"fmt"
	"strings"

	rerrors "github.com/notargets/remesh/errors"
)

// ValidationErrors collects every problem found while resolving settings.
// It matches errors.ErrInvalidInput.
type ValidationErrors []*rerrors.ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (e ValidationErrors) Unwrap() []error {
	out := make([]error, len(e))
	for i, err := range e {
		out[i] = err
	}
	return out
}

// Fields returns the names of the offending settings in order.
func (e ValidationErrors) Fields() []string {
	out := make([]string, len(e))
	for i, err := range e {
		out[i] = err.Field
	}
	return out
}

func newValidationError(field string, value any, reason string) *rerrors.ValidationError {
	return rerrors.NewValidationError(field, value, reason)
}
