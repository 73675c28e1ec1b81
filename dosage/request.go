package dosage

import (
	"encoding/json"
	"errors"

	"github.com/giygas/glycemia-api/validation"
)

// Request is a single dose calculation. Glucose values are mg/dL,
// CorrectionFactor is the insulin sensitivity factor (mg/dL per unit) and
// CarbRatio the grams of carbohydrate covered by one unit.
type Request struct {
	CurrentGlucose     float64  `json:"current_glucose"`
	TargetGlucose      float64  `json:"target_glucose"`
	CarbGrams          float64  `json:"carb_grams"`
	CorrectionFactor   float64  `json:"correction_factor"`
	CarbRatio          float64  `json:"carb_ratio"`
	ActiveInsulinUnits float64  `json:"active_insulin_units"`
	MaxDoseUnits       *float64 `json:"max_dose_units,omitempty"`
}

type requestJSON struct {
	CurrentGlucose     *float64 `json:"current_glucose"`
	TargetGlucose      *float64 `json:"target_glucose"`
	CarbGrams          *float64 `json:"carb_grams"`
	CorrectionFactor   *float64 `json:"correction_factor"`
	CarbRatio          *float64 `json:"carb_ratio"`
	ActiveInsulinUnits *float64 `json:"active_insulin_units"`
	MaxDoseUnits       *float64 `json:"max_dose_units"`
}

// UnmarshalJSON decodes a request and reports missing or non-numeric
// required fields as *validation.InvalidParameterError. carb_grams and
// active_insulin_units default to 0.
func (r *Request) UnmarshalJSON(data []byte) error {
	var raw requestJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return validation.NewInvalidParameter(typeErr.Field, "must be a number")
		}
		return err
	}

	required := []struct {
		field string
		value *float64
	}{
		{"current_glucose", raw.CurrentGlucose},
		{"target_glucose", raw.TargetGlucose},
		{"correction_factor", raw.CorrectionFactor},
		{"carb_ratio", raw.CarbRatio},
	}
	for _, f := range required {
		if f.value == nil {
			return validation.NewInvalidParameter(f.field, "is required")
		}
	}

	*r = Request{
		CurrentGlucose:   *raw.CurrentGlucose,
		TargetGlucose:    *raw.TargetGlucose,
		CorrectionFactor: *raw.CorrectionFactor,
		CarbRatio:        *raw.CarbRatio,
		MaxDoseUnits:     raw.MaxDoseUnits,
	}
	if raw.CarbGrams != nil {
		r.CarbGrams = *raw.CarbGrams
	}
	if raw.ActiveInsulinUnits != nil {
		r.ActiveInsulinUnits = *raw.ActiveInsulinUnits
	}

	return nil
}
