package dosage

import (
	"testing"
	"time"
)

func TestInsulinCurveRemaining(t *testing.T) {
	curve := DefaultCurve()

	if got := curve.remaining(0); got != 1 {
		t.Errorf("Expected full dose at t=0, got %g", got)
	}
	if got := curve.remaining(-10); got != 1 {
		t.Errorf("Expected full dose before t=0, got %g", got)
	}
	if got := curve.remaining(300); got != 0 {
		t.Errorf("Expected nothing left at DIA, got %g", got)
	}

	prev := 1.0
	for m := 5.0; m < 300; m += 5 {
		got := curve.remaining(m)
		if got > prev {
			t.Fatalf("remaining increased at %g min: %g > %g", m, got, prev)
		}
		if got < 0 || got > 1 {
			t.Fatalf("remaining out of [0,1] at %g min: %g", m, got)
		}
		prev = got
	}

	// Roughly three quarters left an hour in, a third left at half DIA
	if got := curve.remaining(60); got < 0.7 || got > 0.82 {
		t.Errorf("remaining(60) = %g, expected about 0.76", got)
	}
	if got := curve.remaining(150); got < 0.2 || got > 0.35 {
		t.Errorf("remaining(150) = %g, expected about 0.27", got)
	}
}

func TestActiveInsulin(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		doses []PriorDose
		min   float64
		max   float64
	}{
		{"no doses", nil, 0, 0},
		{"just taken", []PriorDose{{Units: 4, TakenAt: now}}, 4, 4},
		{"one hour ago", []PriorDose{{Units: 2, TakenAt: now.Add(-time.Hour)}}, 1.4, 1.64},
		{"expired", []PriorDose{{Units: 6, TakenAt: now.Add(-6 * time.Hour)}}, 0, 0},
		{"future dose ignored", []PriorDose{{Units: 3, TakenAt: now.Add(time.Hour)}}, 0, 0},
		{"negative units ignored", []PriorDose{{Units: -3, TakenAt: now}}, 0, 0},
		{
			"sum of doses",
			[]PriorDose{
				{Units: 2, TakenAt: now},
				{Units: 2, TakenAt: now.Add(-time.Hour)},
				{Units: 5, TakenAt: now.Add(-8 * time.Hour)},
			},
			3.4, 3.64,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ActiveInsulin(tt.doses, now, DefaultCurve())
			if got < tt.min || got > tt.max {
				t.Errorf("ActiveInsulin() = %g, want within [%g, %g]", got, tt.min, tt.max)
			}
		})
	}
}

func TestActiveInsulinCurveFallback(t *testing.T) {
	now := time.Now()
	doses := []PriorDose{{Units: 2, TakenAt: now.Add(-90 * time.Minute)}}

	zero := ActiveInsulin(doses, now, InsulinCurve{})
	def := ActiveInsulin(doses, now, DefaultCurve())
	if zero != def {
		t.Errorf("zero curve should fall back to defaults: %g != %g", zero, def)
	}

	// A shorter duration leaves less insulin on board
	short := ActiveInsulin(doses, now, InsulinCurve{PeakMinutes: 55, DurationHours: 4})
	if short >= def {
		t.Errorf("Expected less IOB with a 4h curve, got %g >= %g", short, def)
	}
}
