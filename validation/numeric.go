package validation

import "math"

// Range is an inclusive numeric interval
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Contains reports whether v lies within the range, bounds included
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Finite fails when v is NaN or infinite
func Finite(field string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NewInvalidParameter(field, "must be a finite number, got %v", v)
	}
	return nil
}

// Positive fails when v is not finite or not strictly greater than zero
func Positive(field string, v float64) error {
	if err := Finite(field, v); err != nil {
		return err
	}
	if v <= 0 {
		return NewInvalidParameter(field, "must be greater than 0, got %g", v)
	}
	return nil
}

// NonNegative fails when v is not finite or below zero. Negative values are
// reported as implausible rather than invalid.
func NonNegative(field string, v float64) error {
	if err := Finite(field, v); err != nil {
		return err
	}
	if v < 0 {
		return NewImplausible(field, v, "cannot be negative")
	}
	return nil
}

// Glucose validates a glucose reading in mg/dL against the plausible range
func Glucose(field string, v float64, plausible Range) error {
	if err := Positive(field, v); err != nil {
		return err
	}
	if !plausible.Contains(v) {
		return NewImplausible(field, v, "outside plausible range %g-%g mg/dL", plausible.Min, plausible.Max)
	}
	return nil
}
