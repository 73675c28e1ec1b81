package knowledgebase

import (
	"fmt"
)

// Facts is the normalized view of a risk input that rule conditions are
// evaluated against.
type Facts struct {
	Glucose               float64
	Ketones               KetoneLevel
	Symptoms              SymptomSet
	HoursSinceLastInsulin *float64
}

// Condition is a conjunction of clauses over Facts. Unset clauses are
// ignored; a rule fires only when every set clause holds. Glucose clauses
// resolve band limit names against the bands passed to Matches.
type Condition struct {
	GlucoseBelow           *GlucoseThreshold `yaml:"glucose_below,omitempty" json:"glucose_below,omitempty"`
	GlucoseAbove           *GlucoseThreshold `yaml:"glucose_above,omitempty" json:"glucose_above,omitempty"`
	GlucoseFrom            *GlucoseThreshold `yaml:"glucose_from,omitempty" json:"glucose_from,omitempty"`
	GlucoseTo              *GlucoseThreshold `yaml:"glucose_to,omitempty" json:"glucose_to,omitempty"`
	KetonesAtLeast         *KetoneLevel      `yaml:"ketones_at_least,omitempty" json:"ketones_at_least,omitempty"`
	KetonesAtMost          *KetoneLevel      `yaml:"ketones_at_most,omitempty" json:"ketones_at_most,omitempty"`
	SymptomsAll            []Symptom         `yaml:"symptoms_all,omitempty" json:"symptoms_all,omitempty"`
	SymptomsAny            []Symptom         `yaml:"symptoms_any,omitempty" json:"symptoms_any,omitempty"`
	NoSymptoms             bool              `yaml:"no_symptoms,omitempty" json:"no_symptoms,omitempty"`
	HoursSinceInsulinAbove *float64          `yaml:"hours_since_insulin_above,omitempty" json:"hours_since_insulin_above,omitempty"`
}

// IsEmpty reports whether no clause is set
func (c Condition) IsEmpty() bool {
	return c.GlucoseBelow == nil && c.GlucoseAbove == nil &&
		c.GlucoseFrom == nil && c.GlucoseTo == nil &&
		c.KetonesAtLeast == nil && c.KetonesAtMost == nil &&
		len(c.SymptomsAll) == 0 && len(c.SymptomsAny) == 0 &&
		!c.NoSymptoms && c.HoursSinceInsulinAbove == nil
}

// Matches evaluates the condition against f
func (c Condition) Matches(f Facts, bands Bands) bool {
	if c.GlucoseBelow != nil && !(f.Glucose < c.GlucoseBelow.Resolve(bands)) {
		return false
	}
	if c.GlucoseAbove != nil && !(f.Glucose > c.GlucoseAbove.Resolve(bands)) {
		return false
	}
	if c.GlucoseFrom != nil && f.Glucose < c.GlucoseFrom.Resolve(bands) {
		return false
	}
	if c.GlucoseTo != nil && f.Glucose > c.GlucoseTo.Resolve(bands) {
		return false
	}
	if c.KetonesAtLeast != nil && f.Ketones < *c.KetonesAtLeast {
		return false
	}
	if c.KetonesAtMost != nil && f.Ketones > *c.KetonesAtMost {
		return false
	}
	if len(c.SymptomsAll) > 0 && !f.Symptoms.HasAll(c.SymptomsAll) {
		return false
	}
	if len(c.SymptomsAny) > 0 && !f.Symptoms.HasAny(c.SymptomsAny) {
		return false
	}
	if c.NoSymptoms && len(f.Symptoms) > 0 {
		return false
	}
	if c.HoursSinceInsulinAbove != nil {
		// Unknown timing never satisfies the clause
		if f.HoursSinceLastInsulin == nil || !(*f.HoursSinceLastInsulin > *c.HoursSinceInsulinAbove) {
			return false
		}
	}
	return true
}

func (c Condition) validate(bands Bands) error {
	if c.IsEmpty() {
		return fmt.Errorf("condition has no clauses")
	}
	for _, g := range []struct {
		name string
		t    *GlucoseThreshold
	}{
		{"glucose_below", c.GlucoseBelow},
		{"glucose_above", c.GlucoseAbove},
		{"glucose_from", c.GlucoseFrom},
		{"glucose_to", c.GlucoseTo},
	} {
		if g.t == nil {
			continue
		}
		if err := g.t.validate(); err != nil {
			return fmt.Errorf("%s: %w", g.name, err)
		}
	}
	for _, s := range append(append([]Symptom{}, c.SymptomsAll...), c.SymptomsAny...) {
		if !s.Known() {
			return fmt.Errorf("unknown symptom %q", s)
		}
	}
	if c.KetonesAtLeast != nil && !c.KetonesAtLeast.Valid() {
		return fmt.Errorf("invalid ketones_at_least %d", int(*c.KetonesAtLeast))
	}
	if c.KetonesAtMost != nil && !c.KetonesAtMost.Valid() {
		return fmt.Errorf("invalid ketones_at_most %d", int(*c.KetonesAtMost))
	}
	if c.GlucoseFrom != nil && c.GlucoseTo != nil && c.GlucoseFrom.Resolve(bands) > c.GlucoseTo.Resolve(bands) {
		return fmt.Errorf("glucose_from %s is above glucose_to %s", c.GlucoseFrom, c.GlucoseTo)
	}
	return nil
}

// Rule is one guideline entry: when its condition holds, the input is at
// least Tier severe and the actions apply.
type Rule struct {
	ID          string    `yaml:"id" json:"id"`
	Priority    int       `yaml:"priority" json:"priority"`
	Tier        Tier      `yaml:"tier" json:"tier"`
	Description string    `yaml:"description" json:"description"`
	When        Condition `yaml:"when" json:"when"`
	Actions     []string  `yaml:"actions" json:"actions"`
	Source      string    `yaml:"source,omitempty" json:"source,omitempty"`
}

// Matches reports whether the rule fires for f
func (r Rule) Matches(f Facts, bands Bands) bool {
	return r.When.Matches(f, bands)
}

func (r Rule) validate(bands Bands) error {
	if r.ID == "" {
		return fmt.Errorf("rule id cannot be empty")
	}
	if !r.Tier.Valid() {
		return fmt.Errorf("rule %s: invalid tier %d", r.ID, int(r.Tier))
	}
	if len(r.Actions) == 0 {
		return fmt.Errorf("rule %s: at least one action is required", r.ID)
	}
	if err := r.When.validate(bands); err != nil {
		return fmt.Errorf("rule %s: %w", r.ID, err)
	}
	return nil
}

// Warning is an emergency criterion reported next to the tier. Every
// warning whose condition holds is listed, independent of the rules.
type Warning struct {
	ID      string    `yaml:"id" json:"id"`
	When    Condition `yaml:"when" json:"when"`
	Message string    `yaml:"message" json:"message"`
}

func (w Warning) validate(bands Bands) error {
	if w.ID == "" {
		return fmt.Errorf("warning id cannot be empty")
	}
	if w.Message == "" {
		return fmt.Errorf("warning %s: message cannot be empty", w.ID)
	}
	if err := w.When.validate(bands); err != nil {
		return fmt.Errorf("warning %s: %w", w.ID, err)
	}
	return nil
}

// SymptomGuide is the advice and warning signs for one symptom
type SymptomGuide struct {
	Symptom      Symptom  `yaml:"symptom" json:"symptom"`
	Advice       []string `yaml:"advice" json:"advice"`
	WarningSigns []string `yaml:"warning_signs" json:"warning_signs"`
	Source       string   `yaml:"source,omitempty" json:"source,omitempty"`
}

func (g SymptomGuide) validate() error {
	if !g.Symptom.Known() {
		return fmt.Errorf("unknown symptom %q", g.Symptom)
	}
	if len(g.Advice) == 0 {
		return fmt.Errorf("symptom %s: at least one advice line is required", g.Symptom)
	}
	return nil
}
