package dosage

import (
	"math"
	"time"
)

// PriorDose is a rapid-acting bolus already taken
type PriorDose struct {
	Units   float64   `json:"units"`
	TakenAt time.Time `json:"taken_at"`
}

// InsulinCurve describes rapid-acting insulin action. Zero fields fall back
// to DefaultCurve.
type InsulinCurve struct {
	PeakMinutes   float64 `json:"peak_minutes"`
	DurationHours float64 `json:"duration_hours"`
}

// DefaultCurve is a rapid-acting analog peaking at 75 minutes with a 5 hour
// duration of action
func DefaultCurve() InsulinCurve {
	return InsulinCurve{PeakMinutes: 75, DurationHours: 5}
}

func (c InsulinCurve) normalized() InsulinCurve {
	def := DefaultCurve()
	if !(c.DurationHours > 0) || math.IsInf(c.DurationHours, 0) {
		c.DurationHours = def.DurationHours
	}
	if !(c.PeakMinutes > 0) || c.PeakMinutes >= c.DurationHours*60 {
		c.PeakMinutes = math.Min(def.PeakMinutes, c.DurationHours*60/2)
	}
	return c
}

// remaining returns the fraction of a dose still active after minutes,
// using the exponential insulin action curve.
func (c InsulinCurve) remaining(minutes float64) float64 {
	if minutes <= 0 {
		return 1
	}

	dia := c.DurationHours * 60
	if minutes >= dia {
		return 0
	}

	peak := c.PeakMinutes
	tau := peak * (1 - peak/dia) / (1 - 2*peak/dia)
	if tau <= 0 || math.IsInf(tau, 0) || math.IsNaN(tau) {
		tau = peak * 0.75
	}
	a := 2 * tau / dia
	s := 1 / (1 - a + (1+a)*math.Exp(-dia/tau))

	left := 1 - s*(1-a)*((minutes*minutes/(tau*dia*(1-a))-minutes/tau-1)*math.Exp(-minutes/tau)+1)
	return math.Max(0, math.Min(1, left))
}

// ActiveInsulin returns the insulin on board at now from prior boluses,
// rounded to 0.01 units. Doses in the future or older than the duration of
// action contribute nothing.
func ActiveInsulin(doses []PriorDose, now time.Time, curve InsulinCurve) float64 {
	curve = curve.normalized()

	var total float64
	for _, d := range doses {
		if d.Units <= 0 || d.TakenAt.After(now) {
			continue
		}
		total += d.Units * curve.remaining(now.Sub(d.TakenAt).Minutes())
	}

	return math.Round(total*100) / 100
}
