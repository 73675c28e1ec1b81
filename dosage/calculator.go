// Package dosage computes insulin bolus doses: a correction component for
// glucose above target, a meal component for carbohydrates, an active-insulin
// offset applied to the correction only, rounding to a fixed increment and an
// optional safety cap. Every result carries the explanation trail that
// produced it.
package dosage

import (
	"fmt"
	"math"

	"github.com/giygas/glycemia-api/validation"
)

// Warning is a flag attached to a result that did not fail but needs attention
type Warning string

const (
	// WarningCapExceeded means the rounded dose was clamped to the safety cap
	WarningCapExceeded Warning = "dose_exceeds_safety_cap"
	// WarningActiveInsulinExceedsCorrection means insulin on board covered the
	// whole correction; the surplus is not taken from the meal dose.
	WarningActiveInsulinExceedsCorrection Warning = "active_insulin_exceeds_correction"
	// WarningBelowTarget means current glucose is under target and no
	// correction was given
	WarningBelowTarget Warning = "below_target_glucose"
)

// Policy holds the calculator settings
type Policy struct {
	// RoundingIncrement is the dose step in units, 0.5 by default
	RoundingIncrement float64
	// SafetyCapUnits clamps every dose when positive; 0 disables it. The
	// clamped dose is the largest multiple of RoundingIncrement not above the
	// cap, so a 4.7 U cap on 0.5 U steps yields 4.5 U. A request cap follows
	// the same rule.
	SafetyCapUnits float64
	// PlausibleGlucose bounds current and target glucose (mg/dL)
	PlausibleGlucose validation.Range
}

// MaxPlausibleCarbGrams bounds carb_grams for a single bolus
const MaxPlausibleCarbGrams = 1000

// DefaultPolicy returns half-unit rounding, no global cap and a 20-600 mg/dL
// plausible glucose range
func DefaultPolicy() Policy {
	return Policy{
		RoundingIncrement: 0.5,
		PlausibleGlucose:  validation.Range{Min: 20, Max: 600},
	}
}

func (p Policy) validate() error {
	if p.RoundingIncrement <= 0 || math.IsNaN(p.RoundingIncrement) || math.IsInf(p.RoundingIncrement, 0) {
		return fmt.Errorf("rounding increment must be a positive number, got %g", p.RoundingIncrement)
	}
	if p.SafetyCapUnits < 0 || math.IsNaN(p.SafetyCapUnits) {
		return fmt.Errorf("safety cap cannot be negative, got %g", p.SafetyCapUnits)
	}
	if p.PlausibleGlucose.Min <= 0 || p.PlausibleGlucose.Min >= p.PlausibleGlucose.Max {
		return fmt.Errorf("plausible glucose range must satisfy 0 < min < max, got %+v", p.PlausibleGlucose)
	}
	return nil
}

// Step is one line of the explanation trail
type Step struct {
	Name    string  `json:"name"`
	Formula string  `json:"formula"`
	Value   float64 `json:"value"`
}

// Result is the outcome of a dose calculation. CorrectionUnits is the
// correction before the active-insulin offset; the offset actually applied
// is ActiveInsulinOffsetUnits and never exceeds it.
type Result struct {
	CorrectionUnits          float64   `json:"correction_units"`
	ActiveInsulinOffsetUnits float64   `json:"active_insulin_offset_units"`
	NetCorrectionUnits       float64   `json:"net_correction_units"`
	MealUnits                float64   `json:"meal_units"`
	TotalUnits               float64   `json:"total_units"`
	CapUnits                 *float64  `json:"cap_units,omitempty"`
	RoundingIncrement        float64   `json:"rounding_increment"`
	Explanation              []Step    `json:"explanation"`
	Warnings                 []Warning `json:"warnings"`
}

// HasWarning reports whether w was raised
func (r Result) HasWarning(w Warning) bool {
	for _, got := range r.Warnings {
		if got == w {
			return true
		}
	}
	return false
}

// Calculator computes doses under a fixed Policy. It holds no mutable state
// and may be shared between goroutines.
type Calculator struct {
	policy Policy
}

// NewCalculator creates a Calculator after validating the policy
func NewCalculator(policy Policy) (*Calculator, error) {
	if err := policy.validate(); err != nil {
		return nil, fmt.Errorf("invalid dosing policy: %w", err)
	}
	return &Calculator{policy: policy}, nil
}

// Policy returns the settings the calculator was built with
func (c *Calculator) Policy() Policy {
	return c.policy
}

var defaultCalculator = &Calculator{policy: DefaultPolicy()}

// Calculate runs req through a calculator using DefaultPolicy
func Calculate(req Request) (Result, error) {
	return defaultCalculator.Calculate(req)
}

// Calculate computes the dose for req.
//
// The total is rounded half up to the policy increment. The quotient is
// first snapped to 1e-9 so floating-point noise cannot move a value across
// a half step: 7.25 and 7.6 give 7.5, 7.75 gives 8.0.
func (c *Calculator) Calculate(req Request) (Result, error) {
	if err := c.validateRequest(req); err != nil {
		return Result{}, err
	}

	inc := c.policy.RoundingIncrement
	res := Result{
		RoundingIncrement: inc,
		Warnings:          []Warning{},
	}

	delta := math.Max(0, req.CurrentGlucose-req.TargetGlucose)
	res.CorrectionUnits = delta / req.CorrectionFactor
	res.addStep("correction",
		fmt.Sprintf("max(0, %g - %g) / %g", req.CurrentGlucose, req.TargetGlucose, req.CorrectionFactor),
		res.CorrectionUnits)
	if req.CurrentGlucose < req.TargetGlucose {
		res.Warnings = append(res.Warnings, WarningBelowTarget)
	}

	res.MealUnits = req.CarbGrams / req.CarbRatio
	res.addStep("meal", fmt.Sprintf("%g / %g", req.CarbGrams, req.CarbRatio), res.MealUnits)

	res.ActiveInsulinOffsetUnits = math.Min(req.ActiveInsulinUnits, res.CorrectionUnits)
	res.NetCorrectionUnits = res.CorrectionUnits - res.ActiveInsulinOffsetUnits
	res.addStep("active_insulin_offset",
		fmt.Sprintf("%.2f - min(%g, %.2f)", res.CorrectionUnits, req.ActiveInsulinUnits, res.CorrectionUnits),
		res.NetCorrectionUnits)
	if req.ActiveInsulinUnits > res.CorrectionUnits {
		res.Warnings = append(res.Warnings, WarningActiveInsulinExceedsCorrection)
	}

	raw := res.NetCorrectionUnits + res.MealUnits
	res.addStep("unrounded_total", fmt.Sprintf("%.2f + %.2f", res.NetCorrectionUnits, res.MealUnits), raw)

	res.TotalUnits = RoundToIncrement(raw, inc)
	for _, part := range []struct {
		field string
		value float64
	}{
		{"correction_units", res.CorrectionUnits},
		{"meal_units", res.MealUnits},
		{"total_units", res.TotalUnits},
	} {
		if !isFinite(part.value) {
			return Result{}, validation.NewImplausible(part.field, part.value, "dose is not a finite number")
		}
	}
	res.addStep("rounded_total", fmt.Sprintf("round half up %.2f to %g U", raw, inc), res.TotalUnits)

	if limit, ok := c.capFor(req); ok {
		res.CapUnits = &limit
		if res.TotalUnits > limit {
			clamped := floorToIncrement(limit, inc)
			res.addStep("safety_cap", fmt.Sprintf("min(%g, cap %g) on %g U steps", res.TotalUnits, limit, inc), clamped)
			res.TotalUnits = clamped
			res.Warnings = append(res.Warnings, WarningCapExceeded)
		}
	}

	return res, nil
}

// capFor returns the tighter of the request cap and the policy cap
func (c *Calculator) capFor(req Request) (float64, bool) {
	limit, ok := 0.0, false
	if c.policy.SafetyCapUnits > 0 {
		limit, ok = c.policy.SafetyCapUnits, true
	}
	if req.MaxDoseUnits != nil && (!ok || *req.MaxDoseUnits < limit) {
		limit, ok = *req.MaxDoseUnits, true
	}
	return limit, ok
}

func (c *Calculator) validateRequest(req Request) error {
	plausible := c.policy.PlausibleGlucose

	if err := validation.Glucose("current_glucose", req.CurrentGlucose, plausible); err != nil {
		return err
	}
	if err := validation.Glucose("target_glucose", req.TargetGlucose, plausible); err != nil {
		return err
	}
	if err := validation.Positive("correction_factor", req.CorrectionFactor); err != nil {
		return err
	}
	if err := validation.Positive("carb_ratio", req.CarbRatio); err != nil {
		return err
	}
	if err := validation.NonNegative("carb_grams", req.CarbGrams); err != nil {
		return err
	}
	if req.CarbGrams > MaxPlausibleCarbGrams {
		return validation.NewImplausible("carb_grams", req.CarbGrams, "above %d g for a single meal", MaxPlausibleCarbGrams)
	}
	if err := validation.NonNegative("active_insulin_units", req.ActiveInsulinUnits); err != nil {
		return err
	}
	if req.MaxDoseUnits != nil {
		if err := validation.Positive("max_dose_units", *req.MaxDoseUnits); err != nil {
			return err
		}
	}
	return nil
}

func (r *Result) addStep(name, formula string, value float64) {
	r.Explanation = append(r.Explanation, Step{
		Name:    name,
		Formula: formula,
		Value:   math.Round(value*100) / 100,
	})
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// snap removes floating-point noise below 1e-9
func snap(v float64) float64 {
	return math.Round(v*1e9) / 1e9
}

// RoundToIncrement rounds units half up to the nearest multiple of increment
func RoundToIncrement(units, increment float64) float64 {
	steps := math.Floor(snap(units/increment) + 0.5)
	return snap(steps * increment)
}

func floorToIncrement(units, increment float64) float64 {
	steps := math.Floor(snap(units / increment))
	return snap(steps * increment)
}
