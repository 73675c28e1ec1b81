// Package validation provides input validation and the typed errors surfaced
// by the dosage calculator and the risk classifier.
package validation

import (
	"errors"
	"fmt"
)

// InvalidParameterError reports a missing, malformed or out-of-domain input.
// It is the caller's contract violation and is never retried.
type InvalidParameterError struct {
	Field  string
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Reason)
}

// PhysiologicallyImplausibleError reports a numerically valid value that makes
// no clinical sense (glucose outside the plausible range, negative carbs).
type PhysiologicallyImplausibleError struct {
	Field  string
	Value  float64
	Reason string
}

func (e *PhysiologicallyImplausibleError) Error() string {
	return fmt.Sprintf("physiologically implausible %s (%g): %s", e.Field, e.Value, e.Reason)
}

// NewInvalidParameter creates an InvalidParameterError
func NewInvalidParameter(field, format string, args ...any) *InvalidParameterError {
	return &InvalidParameterError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NewImplausible creates a PhysiologicallyImplausibleError
func NewImplausible(field string, value float64, format string, args ...any) *PhysiologicallyImplausibleError {
	return &PhysiologicallyImplausibleError{Field: field, Value: value, Reason: fmt.Sprintf(format, args...)}
}

// IsInvalidParameter reports whether err wraps an InvalidParameterError
func IsInvalidParameter(err error) bool {
	var target *InvalidParameterError
	return errors.As(err, &target)
}

// IsImplausible reports whether err wraps a PhysiologicallyImplausibleError
func IsImplausible(err error) bool {
	var target *PhysiologicallyImplausibleError
	return errors.As(err, &target)
}
