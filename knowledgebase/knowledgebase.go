// Package knowledgebase holds the versioned clinical guideline table used by
// the risk classifier: glucose bands, ketone cut points, tier definitions,
// action texts and the ordered rule list. A KnowledgeBase is built once at
// startup and must not be modified afterwards; it is then safe to share
// between goroutines without locking.
package knowledgebase

import (
	"fmt"
	"strings"

	"github.com/giygas/glycemia-api/validation"
)

// Bands are the glucose boundaries (mg/dL) shared by the full rule table and
// the quick check. Rules name them through GlucoseThreshold, so changing a
// band moves every rule that uses it.
type Bands struct {
	SevereLow  float64 `yaml:"severe_low" json:"severe_low"`
	Low        float64 `yaml:"low" json:"low"`
	TargetHigh float64 `yaml:"target_high" json:"target_high"`
	High       float64 `yaml:"high" json:"high"`
	VeryHigh   float64 `yaml:"very_high" json:"very_high"`
}

// Band is the coarse glucose position used by the quick check
type Band int

const (
	BandLow Band = iota
	BandInRange
	BandHigh
)

func (b Band) String() string {
	switch b {
	case BandLow:
		return "low"
	case BandInRange:
		return "in_range"
	default:
		return "high"
	}
}

// Classify places glucose into one of the three quick-check bands:
// below Low, Low..High inclusive, above High.
func (b Bands) Classify(glucose float64) Band {
	switch {
	case glucose < b.Low:
		return BandLow
	case glucose > b.High:
		return BandHigh
	default:
		return BandInRange
	}
}

func (b Bands) validate() error {
	if !(0 < b.SevereLow && b.SevereLow < b.Low && b.Low < b.TargetHigh && b.TargetHigh < b.High && b.High <= b.VeryHigh) {
		return fmt.Errorf("bands must satisfy 0 < severe_low < low < target_high < high <= very_high, got %+v", b)
	}
	return nil
}

// DosingPolicy carries the dosage calculator settings that may be supplied
// alongside the guideline table.
type DosingPolicy struct {
	RoundingIncrement float64 `yaml:"rounding_increment" json:"rounding_increment"`
	// SafetyCapUnits of 0 disables the global cap
	SafetyCapUnits float64 `yaml:"safety_cap_units" json:"safety_cap_units"`
}

// TierDefinition is the per-tier text and follow-up cadence
type TierDefinition struct {
	Tier         Tier     `yaml:"tier" json:"tier"`
	Label        string   `yaml:"label" json:"label"`
	Summary      string   `yaml:"summary" json:"summary"`
	Actions      []string `yaml:"actions" json:"actions"`
	RecheckHours float64  `yaml:"recheck_hours" json:"recheck_hours"`
}

// Hydration is the fluid advice keyed on glucose
type Hydration struct {
	General        string           `yaml:"general" json:"general"`
	SugarFreeAbove GlucoseThreshold `yaml:"sugar_free_above" json:"sugar_free_above"`
	SugarFree      []string         `yaml:"sugar_free" json:"sugar_free"`
	WithSugarBelow GlucoseThreshold `yaml:"with_sugar_below" json:"with_sugar_below"`
	WithSugar      []string         `yaml:"with_sugar" json:"with_sugar"`
}

// KnowledgeBase is the complete guideline table
type KnowledgeBase struct {
	Version          string           `yaml:"version" json:"version"`
	Sources          []string         `yaml:"sources" json:"sources"`
	Bands            Bands            `yaml:"bands" json:"bands"`
	KetoneCutPoints  KetoneCutPoints  `yaml:"ketone_cut_points" json:"ketone_cut_points"`
	PlausibleGlucose validation.Range `yaml:"plausible_glucose" json:"plausible_glucose"`
	Dosing           DosingPolicy     `yaml:"dosing" json:"dosing"`
	DefaultAction    string           `yaml:"default_action" json:"default_action"`
	Tiers            []TierDefinition `yaml:"tiers" json:"tiers"`
	EssentialRules   []string         `yaml:"essential_rules" json:"essential_rules"`
	Hydration        Hydration        `yaml:"hydration" json:"hydration"`
	Rules            []Rule           `yaml:"rules" json:"rules"`
	Warnings         []Warning        `yaml:"warnings" json:"warnings"`
	SymptomGuides    []SymptomGuide   `yaml:"symptom_guides" json:"symptom_guides"`
}

// TierDefinition returns the definition for t. Validate guarantees every
// tier is defined.
func (kb *KnowledgeBase) TierDefinition(t Tier) TierDefinition {
	for _, def := range kb.Tiers {
		if def.Tier == t {
			return def
		}
	}
	return TierDefinition{Tier: t, Label: t.String()}
}

// Rule returns the rule with the given id
func (kb *KnowledgeBase) Rule(id string) (Rule, bool) {
	for _, r := range kb.Rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// SymptomGuide returns the guide for s
func (kb *KnowledgeBase) SymptomGuide(s Symptom) (SymptomGuide, bool) {
	for _, g := range kb.SymptomGuides {
		if g.Symptom == s {
			return g, true
		}
	}
	return SymptomGuide{}, false
}

// HydrationAdvice returns fluid guidance for the given glucose
func (kb *KnowledgeBase) HydrationAdvice(glucose float64) string {
	h := kb.Hydration
	switch {
	case glucose > h.SugarFreeAbove.Resolve(kb.Bands) && len(h.SugarFree) > 0:
		return fmt.Sprintf("%s; prefer sugar-free fluids: %s", h.General, strings.Join(h.SugarFree, ", "))
	case glucose < h.WithSugarBelow.Resolve(kb.Bands) && len(h.WithSugar) > 0:
		return fmt.Sprintf("%s; sugar-containing fluids are fine: %s", h.General, strings.Join(h.WithSugar, ", "))
	default:
		return h.General
	}
}

// Validate checks the table for internal consistency
func (kb *KnowledgeBase) Validate() error {
	if kb.Version == "" {
		return fmt.Errorf("version cannot be empty")
	}

	if err := kb.Bands.validate(); err != nil {
		return fmt.Errorf("invalid bands: %w", err)
	}

	if err := kb.KetoneCutPoints.validate(); err != nil {
		return fmt.Errorf("invalid ketone_cut_points: %w", err)
	}

	if kb.PlausibleGlucose.Min <= 0 || kb.PlausibleGlucose.Min >= kb.PlausibleGlucose.Max {
		return fmt.Errorf("invalid plausible_glucose: need 0 < min < max, got %+v", kb.PlausibleGlucose)
	}

	if kb.Dosing.RoundingIncrement <= 0 || kb.Dosing.RoundingIncrement > 5 {
		return fmt.Errorf("invalid dosing.rounding_increment: must be in (0, 5], got %g", kb.Dosing.RoundingIncrement)
	}
	if kb.Dosing.SafetyCapUnits < 0 {
		return fmt.Errorf("invalid dosing.safety_cap_units: cannot be negative, got %g", kb.Dosing.SafetyCapUnits)
	}

	if err := kb.Hydration.SugarFreeAbove.validate(); err != nil {
		return fmt.Errorf("invalid hydration.sugar_free_above: %w", err)
	}
	if err := kb.Hydration.WithSugarBelow.validate(); err != nil {
		return fmt.Errorf("invalid hydration.with_sugar_below: %w", err)
	}

	if kb.DefaultAction == "" {
		return fmt.Errorf("default_action cannot be empty")
	}

	defined := make(map[Tier]bool, len(kb.Tiers))
	for _, def := range kb.Tiers {
		if !def.Tier.Valid() {
			return fmt.Errorf("invalid tier definition %d", int(def.Tier))
		}
		if defined[def.Tier] {
			return fmt.Errorf("tier %s defined twice", def.Tier)
		}
		defined[def.Tier] = true
	}
	for _, t := range AllTiers() {
		if !defined[t] {
			return fmt.Errorf("missing definition for tier %s", t)
		}
	}

	if len(kb.Rules) == 0 {
		return fmt.Errorf("rules cannot be empty")
	}
	ids := make(map[string]bool, len(kb.Rules))
	for _, r := range kb.Rules {
		if err := r.validate(kb.Bands); err != nil {
			return fmt.Errorf("invalid rule: %w", err)
		}
		if ids[r.ID] {
			return fmt.Errorf("duplicate rule id %s", r.ID)
		}
		ids[r.ID] = true
	}

	warningIDs := make(map[string]bool, len(kb.Warnings))
	for _, w := range kb.Warnings {
		if err := w.validate(kb.Bands); err != nil {
			return fmt.Errorf("invalid warning: %w", err)
		}
		if warningIDs[w.ID] {
			return fmt.Errorf("duplicate warning id %s", w.ID)
		}
		warningIDs[w.ID] = true
	}

	guided := make(map[Symptom]bool, len(kb.SymptomGuides))
	for _, g := range kb.SymptomGuides {
		if err := g.validate(); err != nil {
			return fmt.Errorf("invalid symptom guide: %w", err)
		}
		if guided[g.Symptom] {
			return fmt.Errorf("symptom %s guided twice", g.Symptom)
		}
		guided[g.Symptom] = true
	}

	return nil
}
