// Package risk classifies sick-day risk. Analyze evaluates every rule of a
// knowledge base against an input and reports the most severe tier among the
// rules that fired, together with their merged action checklist. QuickCheck
// is a two-input triage that only looks at glucose bands and the presence of
// symptoms and therefore never reports an emergency.
package risk

import (
	"fmt"
	"slices"
	"strings"

	"github.com/giygas/glycemia-api/knowledgebase"
)

// Assessment is the result of a full analysis
type Assessment struct {
	Tier                  knowledgebase.Tier           `json:"tier"`
	TierLabel             string                       `json:"tier_label"`
	TriggeredRules        []string                     `json:"triggered_rules"`
	Actions               []string                     `json:"actions"`
	Rationale             string                       `json:"rationale"`
	NeedsMedicalAttention bool                         `json:"needs_medical_attention"`
	EmergencyWarnings     []string                     `json:"emergency_warnings"`
	SymptomAdvice         []knowledgebase.SymptomGuide `json:"symptom_advice"`
	KetoneLevel           knowledgebase.KetoneLevel    `json:"ketone_level"`
	Hydration             string                       `json:"hydration"`
	RecheckIntervalHours  float64                      `json:"recheck_interval_hours"`
	Sources               []string                     `json:"sources"`
	GuidelineVersion      string                       `json:"guideline_version"`
}

// Classifier evaluates inputs against one knowledge base. The knowledge base
// is never modified, so a Classifier may be shared between goroutines.
type Classifier struct {
	kb *knowledgebase.KnowledgeBase
}

// NewClassifier creates a Classifier over a validated knowledge base
func NewClassifier(kb *knowledgebase.KnowledgeBase) (*Classifier, error) {
	if kb == nil {
		return nil, fmt.Errorf("knowledge base is nil")
	}
	if err := kb.Validate(); err != nil {
		return nil, fmt.Errorf("invalid knowledge base: %w", err)
	}
	return &Classifier{kb: kb}, nil
}

// KnowledgeBase returns the table the classifier evaluates
func (c *Classifier) KnowledgeBase() *knowledgebase.KnowledgeBase {
	return c.kb
}

var defaultClassifier = &Classifier{kb: knowledgebase.Default()}

// Analyze classifies in against the built-in knowledge base
func Analyze(in Input) (Assessment, error) {
	return defaultClassifier.Analyze(in)
}

// symptomActionsPerGuide is how many advice lines of each present symptom are
// merged into the action list; the full guide is in SymptomAdvice.
const symptomActionsPerGuide = 2

// Analyze evaluates every rule against in. The tier is the maximum over the
// fired rules, SAFE when none fired. Actions come from the fired rules sorted
// by tier (most severe first) then declared priority, then the leading advice
// of each present symptom, the tier's own actions and, from CAUTION up, the
// essential sick-day rules; duplicates keep their first position. Emergency
// warnings are listed independently of the tier. The only errors are
// *validation.InvalidParameterError for missing or malformed input.
func (c *Classifier) Analyze(in Input) (Assessment, error) {
	facts, err := in.facts(c.kb)
	if err != nil {
		return Assessment{}, err
	}

	type fired struct {
		index int
		rule  knowledgebase.Rule
	}

	var matched []fired
	tier := knowledgebase.TierSafe
	for i, rule := range c.kb.Rules {
		if rule.Matches(facts, c.kb.Bands) {
			matched = append(matched, fired{index: i, rule: rule})
			tier = knowledgebase.MaxTier(tier, rule.Tier)
		}
	}

	slices.SortStableFunc(matched, func(a, b fired) int {
		if a.rule.Tier != b.rule.Tier {
			return int(b.rule.Tier) - int(a.rule.Tier)
		}
		if a.rule.Priority != b.rule.Priority {
			return a.rule.Priority - b.rule.Priority
		}
		return a.index - b.index
	})

	def := c.kb.TierDefinition(tier)
	actions := newActionList()
	result := Assessment{
		Tier:                  tier,
		TierLabel:             def.Label,
		TriggeredRules:        make([]string, 0, len(matched)),
		NeedsMedicalAttention: tier.AtLeast(knowledgebase.TierUrgent),
		KetoneLevel:           facts.Ketones,
		Hydration:             c.kb.HydrationAdvice(facts.Glucose),
		EmergencyWarnings:     []string{},
		SymptomAdvice:         []knowledgebase.SymptomGuide{},
		RecheckIntervalHours:  def.RecheckHours,
		Sources:               []string{},
		GuidelineVersion:      c.kb.Version,
	}

	if len(matched) == 0 {
		actions.add(c.kb.DefaultAction)
	}

	descriptions := make([]string, 0, len(matched))
	sources := newActionList()
	for _, m := range matched {
		result.TriggeredRules = append(result.TriggeredRules, m.rule.ID)
		descriptions = append(descriptions, m.rule.Description)
		actions.add(m.rule.Actions...)
		if m.rule.Source != "" {
			sources.add(m.rule.Source)
		}
	}

	for _, guide := range c.kb.SymptomGuides {
		if !facts.Symptoms.Has(guide.Symptom) {
			continue
		}
		actions.add(guide.Advice[:min(len(guide.Advice), symptomActionsPerGuide)]...)
		if guide.Source != "" {
			sources.add(guide.Source)
		}
		// the table is shared between requests
		guide.Advice = slices.Clone(guide.Advice)
		guide.WarningSigns = slices.Clone(guide.WarningSigns)
		result.SymptomAdvice = append(result.SymptomAdvice, guide)
	}

	for _, w := range c.kb.Warnings {
		if w.When.Matches(facts, c.kb.Bands) {
			result.EmergencyWarnings = append(result.EmergencyWarnings, w.Message)
		}
	}

	actions.add(def.Actions...)
	if tier.AtLeast(knowledgebase.TierCaution) {
		actions.add(c.kb.EssentialRules...)
	}

	result.Actions = actions.items
	result.Sources = append(result.Sources, sources.items...)
	result.Rationale = rationale(def, descriptions)

	return result, nil
}

func rationale(def knowledgebase.TierDefinition, descriptions []string) string {
	if len(descriptions) == 0 {
		return fmt.Sprintf("%s: no guideline rule matched. %s.", def.Label, def.Summary)
	}
	return fmt.Sprintf("%s: %s. %s.", def.Label, strings.Join(descriptions, "; "), def.Summary)
}

// actionList keeps insertion order and drops repeats
type actionList struct {
	items []string
	seen  map[string]struct{}
}

func newActionList() *actionList {
	return &actionList{items: []string{}, seen: make(map[string]struct{})}
}

func (l *actionList) add(items ...string) {
	for _, item := range items {
		if item == "" {
			continue
		}
		if _, ok := l.seen[item]; ok {
			continue
		}
		l.seen[item] = struct{}{}
		l.items = append(l.items, item)
	}
}
