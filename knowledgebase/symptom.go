package knowledgebase

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Symptom is a sick-day symptom flag
type Symptom string

const (
	SymptomVomiting          Symptom = "vomiting"
	SymptomFever             Symptom = "fever"
	SymptomReducedOralIntake Symptom = "reduced_oral_intake"
	SymptomLethargy          Symptom = "lethargy"
	SymptomRapidBreathing    Symptom = "rapid_breathing"
)

// KnownSymptoms lists the recognized symptoms in canonical order
func KnownSymptoms() []Symptom {
	return []Symptom{
		SymptomVomiting,
		SymptomFever,
		SymptomReducedOralIntake,
		SymptomLethargy,
		SymptomRapidBreathing,
	}
}

// Known reports whether s is a recognized symptom
func (s Symptom) Known() bool {
	for _, k := range KnownSymptoms() {
		if s == k {
			return true
		}
	}
	return false
}

// SymptomSet is a set of present symptoms
type SymptomSet map[Symptom]struct{}

// NewSymptomSet builds a set from a list, ignoring duplicates
func NewSymptomSet(symptoms []Symptom) SymptomSet {
	set := make(SymptomSet, len(symptoms))
	for _, s := range symptoms {
		set[s] = struct{}{}
	}
	return set
}

// Has reports whether s is present
func (set SymptomSet) Has(s Symptom) bool {
	_, ok := set[s]
	return ok
}

// HasAll reports whether every listed symptom is present
func (set SymptomSet) HasAll(symptoms []Symptom) bool {
	for _, s := range symptoms {
		if !set.Has(s) {
			return false
		}
	}
	return true
}

// HasAny reports whether at least one listed symptom is present
func (set SymptomSet) HasAny(symptoms []Symptom) bool {
	for _, s := range symptoms {
		if set.Has(s) {
			return true
		}
	}
	return false
}

// symptomFragments maps normalized words and word fragments, English and
// Korean, to a symptom. Exact matches are tried before fragment matches.
var symptomFragments = []struct {
	fragment string
	symptom  Symptom
}{
	{"vomiting", SymptomVomiting},
	{"vomit", SymptomVomiting},
	{"throwing up", SymptomVomiting},
	{"구토", SymptomVomiting},
	{"토함", SymptomVomiting},
	{"토해", SymptomVomiting},
	{"fever", SymptomFever},
	{"febrile", SymptomFever},
	{"발열", SymptomFever},
	{"고열", SymptomFever},
	{"열나", SymptomFever},
	{"열이", SymptomFever},
	{"reduced_oral_intake", SymptomReducedOralIntake},
	{"reduced oral intake", SymptomReducedOralIntake},
	{"not eating", SymptomReducedOralIntake},
	{"not drinking", SymptomReducedOralIntake},
	{"poor intake", SymptomReducedOralIntake},
	{"no appetite", SymptomReducedOralIntake},
	{"식욕", SymptomReducedOralIntake},
	{"못 먹", SymptomReducedOralIntake},
	{"못먹", SymptomReducedOralIntake},
	{"lethargy", SymptomLethargy},
	{"lethargic", SymptomLethargy},
	{"drowsy", SymptomLethargy},
	{"무기력", SymptomLethargy},
	{"처짐", SymptomLethargy},
	{"졸림", SymptomLethargy},
	{"rapid_breathing", SymptomRapidBreathing},
	{"rapid breathing", SymptomRapidBreathing},
	{"fast breathing", SymptomRapidBreathing},
	{"kussmaul", SymptomRapidBreathing},
	{"빠른 호흡", SymptomRapidBreathing},
	{"숨이 가빠", SymptomRapidBreathing},
}

// normalizeSymptomText applies NFKC and Unicode case folding so full-width
// and mixed-case input match the fragment table.
func normalizeSymptomText(s string) string {
	folded := cases.Fold().String(norm.NFKC.String(s))
	return strings.Join(strings.Fields(folded), " ")
}

// ParseSymptoms splits free-text symptom input on commas, semicolons and the
// ideographic comma, and maps each part to known symptoms. Recognized
// symptoms are returned in first-seen order without duplicates; parts that
// matched nothing are returned as unknown.
func ParseSymptoms(input string) (symptoms []Symptom, unknown []string) {
	parts := strings.FieldsFunc(input, func(r rune) bool {
		return r == ',' || r == ';' || r == '、' || r == '\n'
	})

	seen := make(SymptomSet)
	add := func(s Symptom) {
		if !seen.Has(s) {
			seen[s] = struct{}{}
			symptoms = append(symptoms, s)
		}
	}

	for _, part := range parts {
		token := normalizeSymptomText(part)
		if token == "" {
			continue
		}

		if s := Symptom(token); s.Known() {
			add(s)
			continue
		}

		matched := false
		for _, f := range symptomFragments {
			if strings.Contains(token, f.fragment) {
				add(f.symptom)
				matched = true
			}
		}
		if !matched {
			unknown = append(unknown, strings.TrimSpace(part))
		}
	}

	return symptoms, unknown
}
