package dosage

import (
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/giygas/glycemia-api/validation"
)

func scenarioA() Request {
	return Request{
		CurrentGlucose:     250,
		TargetGlucose:      120,
		CarbGrams:          60,
		CorrectionFactor:   50,
		CarbRatio:          10,
		ActiveInsulinUnits: 1,
	}
}

func TestCalculateScenarioA(t *testing.T) {
	res, err := Calculate(scenarioA())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if math.Abs(res.CorrectionUnits-2.6) > 1e-9 {
		t.Errorf("Expected correction 2.6, got %g", res.CorrectionUnits)
	}
	if res.ActiveInsulinOffsetUnits != 1 {
		t.Errorf("Expected offset 1, got %g", res.ActiveInsulinOffsetUnits)
	}
	if math.Abs(res.NetCorrectionUnits-1.6) > 1e-9 {
		t.Errorf("Expected net correction 1.6, got %g", res.NetCorrectionUnits)
	}
	if res.MealUnits != 6 {
		t.Errorf("Expected meal 6, got %g", res.MealUnits)
	}
	if res.TotalUnits != 7.5 {
		t.Errorf("Expected total 7.5, got %g", res.TotalUnits)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", res.Warnings)
	}
	if res.CapUnits != nil {
		t.Errorf("Expected no cap, got %g", *res.CapUnits)
	}
}

func TestCalculateScenarioDCap(t *testing.T) {
	req := scenarioA()
	limit := 5.0
	req.MaxDoseUnits = &limit

	res, err := Calculate(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.TotalUnits != 5.0 {
		t.Errorf("Expected total clamped to 5.0, got %g", res.TotalUnits)
	}
	if !res.HasWarning(WarningCapExceeded) {
		t.Errorf("Expected %s warning, got %v", WarningCapExceeded, res.Warnings)
	}

	last := res.Explanation[len(res.Explanation)-1]
	if last.Name != "safety_cap" || last.Value != 5 {
		t.Errorf("Expected safety_cap as last explanation step, got %+v", last)
	}
}

func TestCalculateExplanationOrder(t *testing.T) {
	res, err := Calculate(scenarioA())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []struct {
		name  string
		value float64
	}{
		{"correction", 2.6},
		{"meal", 6},
		{"active_insulin_offset", 1.6},
		{"unrounded_total", 7.6},
		{"rounded_total", 7.5},
	}

	if len(res.Explanation) != len(want) {
		t.Fatalf("Expected %d steps, got %d: %+v", len(want), len(res.Explanation), res.Explanation)
	}
	for i, w := range want {
		got := res.Explanation[i]
		if got.Name != w.name || got.Value != w.value {
			t.Errorf("step %d = %s/%g, want %s/%g", i, got.Name, got.Value, w.name, w.value)
		}
		if got.Formula == "" {
			t.Errorf("step %d has no formula", i)
		}
	}
}

func TestPolicyCapIsTighterOfBoth(t *testing.T) {
	calc, err := NewCalculator(Policy{
		RoundingIncrement: 0.5,
		SafetyCapUnits:    6,
		PlausibleGlucose:  validation.Range{Min: 20, Max: 600},
	})
	if err != nil {
		t.Fatalf("NewCalculator failed: %v", err)
	}

	tests := []struct {
		name     string
		maxDose  *float64
		expected float64
	}{
		{"policy cap only", nil, 6},
		{"request cap tighter", ptr(4), 4},
		{"policy cap tighter", ptr(10), 6},
		{"cap off increment floors", ptr(5.3), 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := scenarioA()
			req.MaxDoseUnits = tt.maxDose

			res, err := calc.Calculate(req)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.TotalUnits != tt.expected {
				t.Errorf("Expected %g, got %g", tt.expected, res.TotalUnits)
			}
			if !res.HasWarning(WarningCapExceeded) {
				t.Error("Expected cap warning")
			}
		})
	}
}

func TestCapNotExceededHasNoWarning(t *testing.T) {
	req := scenarioA()
	req.MaxDoseUnits = ptr(7.5)

	res, err := Calculate(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalUnits != 7.5 || res.HasWarning(WarningCapExceeded) {
		t.Errorf("dose equal to cap should pass unchanged, got %g %v", res.TotalUnits, res.Warnings)
	}
}

func TestRoundToIncrement(t *testing.T) {
	tests := []struct {
		units     float64
		increment float64
		expected  float64
	}{
		{7.6, 0.5, 7.5},
		{7.25, 0.5, 7.5},
		{7.74, 0.5, 7.5},
		{7.75, 0.5, 8.0},
		{0.24, 0.5, 0},
		{0.25, 0.5, 0.5},
		{0, 0.5, 0},
		{1.6 + 6, 0.5, 7.5},
		{7.65, 0.1, 7.7},
		{7.64, 0.1, 7.6},
		{0.1 + 0.2, 0.1, 0.3},
		{3.5, 1, 4},
		{2.5, 1, 3},
	}

	for _, tt := range tests {
		if got := RoundToIncrement(tt.units, tt.increment); got != tt.expected {
			t.Errorf("RoundToIncrement(%g, %g) = %g, want %g", tt.units, tt.increment, got, tt.expected)
		}
	}
}

func TestNoCorrectionAtOrBelowTarget(t *testing.T) {
	for _, current := range []float64{60, 100, 119, 120} {
		req := Request{
			CurrentGlucose:     current,
			TargetGlucose:      120,
			CarbGrams:          30,
			CorrectionFactor:   40,
			CarbRatio:          15,
			ActiveInsulinUnits: 0.5,
		}

		res, err := Calculate(req)
		if err != nil {
			t.Fatalf("current=%g: unexpected error: %v", current, err)
		}
		if res.CorrectionUnits != 0 || res.NetCorrectionUnits != 0 {
			t.Errorf("current=%g: expected zero correction, got %g/%g", current, res.CorrectionUnits, res.NetCorrectionUnits)
		}
		if res.MealUnits != 2 {
			t.Errorf("current=%g: active insulin must not reduce the meal dose, got %g", current, res.MealUnits)
		}
		if res.TotalUnits != 2 {
			t.Errorf("current=%g: expected total 2, got %g", current, res.TotalUnits)
		}
		if current < 120 && !res.HasWarning(WarningBelowTarget) {
			t.Errorf("current=%g: expected below-target warning", current)
		}
	}
}

func TestActiveInsulinOnlyOffsetsCorrection(t *testing.T) {
	req := Request{
		CurrentGlucose:     180,
		TargetGlucose:      120,
		CarbGrams:          45,
		CorrectionFactor:   60,
		CarbRatio:          15,
		ActiveInsulinUnits: 4,
	}

	res, err := Calculate(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.ActiveInsulinOffsetUnits != 1 {
		t.Errorf("offset should be limited to the correction, got %g", res.ActiveInsulinOffsetUnits)
	}
	if res.TotalUnits != 3 {
		t.Errorf("Expected meal-only total 3, got %g", res.TotalUnits)
	}
	if !res.HasWarning(WarningActiveInsulinExceedsCorrection) {
		t.Errorf("Expected %s warning", WarningActiveInsulinExceedsCorrection)
	}
}

func TestTotalMatchesComponents(t *testing.T) {
	for current := 40.0; current <= 400; current += 17 {
		for carbs := 0.0; carbs <= 120; carbs += 13 {
			for _, active := range []float64{0, 0.7, 2, 9} {
				req := Request{
					CurrentGlucose:     current,
					TargetGlucose:      110,
					CarbGrams:          carbs,
					CorrectionFactor:   45,
					CarbRatio:          12,
					ActiveInsulinUnits: active,
				}

				res, err := Calculate(req)
				if err != nil {
					t.Fatalf("%+v: unexpected error: %v", req, err)
				}

				want := RoundToIncrement(res.CorrectionUnits-res.ActiveInsulinOffsetUnits+res.MealUnits, 0.5)
				if res.TotalUnits != want {
					t.Errorf("%+v: total %g, want %g", req, res.TotalUnits, want)
				}
				if res.TotalUnits < 0 {
					t.Errorf("%+v: negative total %g", req, res.TotalUnits)
				}
			}
		}
	}
}

func TestCarbMonotonicity(t *testing.T) {
	prev := -1.0
	for carbs := 0.0; carbs <= 200; carbs += 2.5 {
		req := scenarioA()
		req.CarbGrams = carbs

		res, err := Calculate(req)
		if err != nil {
			t.Fatalf("carbs=%g: unexpected error: %v", carbs, err)
		}
		if res.TotalUnits < prev {
			t.Fatalf("total decreased from %g to %g at carbs=%g", prev, res.TotalUnits, carbs)
		}
		prev = res.TotalUnits
	}
}

func TestCalculateIsIdempotent(t *testing.T) {
	req := scenarioA()
	req.MaxDoseUnits = ptr(5)

	first, err := Calculate(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			again, err := Calculate(req)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			a, _ := json.Marshal(first)
			b, _ := json.Marshal(again)
			if string(a) != string(b) {
				t.Errorf("results differ:\n%s\n%s", a, b)
			}
		}()
	}
	wg.Wait()
}

func TestCalculateErrors(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(r *Request)
		field       string
		implausible bool
	}{
		{"zero ISF", func(r *Request) { r.CorrectionFactor = 0 }, "correction_factor", false},
		{"negative ISF", func(r *Request) { r.CorrectionFactor = -10 }, "correction_factor", false},
		{"zero ICR", func(r *Request) { r.CarbRatio = 0 }, "carb_ratio", false},
		{"NaN glucose", func(r *Request) { r.CurrentGlucose = math.NaN() }, "current_glucose", false},
		{"zero glucose", func(r *Request) { r.CurrentGlucose = 0 }, "current_glucose", false},
		{"infinite carbs", func(r *Request) { r.CarbGrams = math.Inf(1) }, "carb_grams", false},
		{"zero cap", func(r *Request) { r.MaxDoseUnits = ptr(0) }, "max_dose_units", false},
		{"glucose too high", func(r *Request) { r.CurrentGlucose = 700 }, "current_glucose", true},
		{"glucose too low", func(r *Request) { r.CurrentGlucose = 10 }, "current_glucose", true},
		{"target out of range", func(r *Request) { r.TargetGlucose = 900 }, "target_glucose", true},
		{"negative carbs", func(r *Request) { r.CarbGrams = -20 }, "carb_grams", true},
		{"negative active insulin", func(r *Request) { r.ActiveInsulinUnits = -1 }, "active_insulin_units", true},
		{"carbs above plausible", func(r *Request) { r.CarbGrams = 1500 }, "carb_grams", true},
		{"correction overflows", func(r *Request) { r.CorrectionFactor = 1e-320 }, "correction_units", true},
		{"meal overflows", func(r *Request) { r.CarbRatio = 1e-310 }, "meal_units", true},
		{"rounding overflows", func(r *Request) { r.CarbRatio = 1e-299 }, "total_units", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := scenarioA()
			tt.mutate(&req)

			_, err := Calculate(req)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}

			if tt.implausible {
				var target *validation.PhysiologicallyImplausibleError
				if !errors.As(err, &target) {
					t.Fatalf("Expected PhysiologicallyImplausibleError, got %T: %v", err, err)
				}
				if target.Field != tt.field {
					t.Errorf("Expected field %s, got %s", tt.field, target.Field)
				}
				return
			}

			var target *validation.InvalidParameterError
			if !errors.As(err, &target) {
				t.Fatalf("Expected InvalidParameterError, got %T: %v", err, err)
			}
			if target.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, target.Field)
			}
		})
	}
}

func TestCalculateAtCarbBound(t *testing.T) {
	req := scenarioA()
	req.CarbGrams = MaxPlausibleCarbGrams
	req.CarbRatio = 0.001

	res, err := Calculate(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.IsInf(res.TotalUnits, 0) || res.TotalUnits != 1000001.5 {
		t.Errorf("Expected a finite 1000001.5 U, got %g", res.TotalUnits)
	}
	if _, err := json.Marshal(res); err != nil {
		t.Errorf("Expected result to marshal, got %v", err)
	}
}

func TestCapNotOnIncrementRoundsDown(t *testing.T) {
	req := scenarioA()
	req.MaxDoseUnits = ptr(4.7)

	res, err := Calculate(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalUnits != 4.5 || !res.HasWarning(WarningCapExceeded) {
		t.Errorf("Expected 4.5 U with cap warning, got %g %v", res.TotalUnits, res.Warnings)
	}
}

func TestNewCalculatorRejectsBadPolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
	}{
		{"zero increment", Policy{RoundingIncrement: 0, PlausibleGlucose: validation.Range{Min: 20, Max: 600}}},
		{"negative cap", Policy{RoundingIncrement: 0.5, SafetyCapUnits: -2, PlausibleGlucose: validation.Range{Min: 20, Max: 600}}},
		{"inverted range", Policy{RoundingIncrement: 0.5, PlausibleGlucose: validation.Range{Min: 600, Max: 20}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewCalculator(tt.policy); err == nil {
				t.Error("Expected error, got nil")
			}
		})
	}

	calc, err := NewCalculator(DefaultPolicy())
	if err != nil {
		t.Fatalf("default policy should be valid: %v", err)
	}
	if calc.Policy().RoundingIncrement != 0.5 {
		t.Errorf("Expected increment 0.5, got %g", calc.Policy().RoundingIncrement)
	}
}

func TestTenthUnitPolicy(t *testing.T) {
	calc, err := NewCalculator(Policy{
		RoundingIncrement: 0.1,
		PlausibleGlucose:  validation.Range{Min: 20, Max: 600},
	})
	if err != nil {
		t.Fatalf("NewCalculator failed: %v", err)
	}

	res, err := calc.Calculate(scenarioA())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalUnits != 7.6 {
		t.Errorf("Expected 7.6 with 0.1 U steps, got %g", res.TotalUnits)
	}
}

func TestRequestUnmarshalJSON(t *testing.T) {
	t.Run("complete", func(t *testing.T) {
		var req Request
		body := `{"current_glucose":250,"target_glucose":120,"carb_grams":60,"correction_factor":50,"carb_ratio":10,"active_insulin_units":1,"max_dose_units":5}`
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.MaxDoseUnits == nil || *req.MaxDoseUnits != 5 {
			t.Errorf("Expected max dose 5, got %v", req.MaxDoseUnits)
		}
		if req.CarbGrams != 60 || req.ActiveInsulinUnits != 1 {
			t.Errorf("unexpected request %+v", req)
		}
	})

	t.Run("optional fields default to zero", func(t *testing.T) {
		var req Request
		body := `{"current_glucose":200,"target_glucose":100,"correction_factor":50,"carb_ratio":10}`
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if req.CarbGrams != 0 || req.ActiveInsulinUnits != 0 || req.MaxDoseUnits != nil {
			t.Errorf("unexpected defaults %+v", req)
		}
	})

	errorCases := []struct {
		name  string
		body  string
		field string
	}{
		{"missing ISF", `{"current_glucose":200,"target_glucose":100,"carb_ratio":10}`, "correction_factor"},
		{"null glucose", `{"current_glucose":null,"target_glucose":100,"correction_factor":50,"carb_ratio":10}`, "current_glucose"},
		{"string ICR", `{"current_glucose":200,"target_glucose":100,"correction_factor":50,"carb_ratio":"ten"}`, "carb_ratio"},
	}

	for _, tt := range errorCases {
		t.Run(tt.name, func(t *testing.T) {
			var req Request
			err := json.Unmarshal([]byte(tt.body), &req)

			var target *validation.InvalidParameterError
			if !errors.As(err, &target) {
				t.Fatalf("Expected InvalidParameterError, got %T: %v", err, err)
			}
			if target.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, target.Field)
			}
		})
	}
}

func ptr(v float64) *float64 {
	return &v
}
