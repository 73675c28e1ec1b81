package risk

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/giygas/glycemia-api/knowledgebase"
	"github.com/giygas/glycemia-api/validation"
)

// KetoneReading is either a strip level or a measured blood value in mmol/L.
// When both are present the more severe of the two is used.
type KetoneReading struct {
	Level *knowledgebase.KetoneLevel `json:"level,omitempty"`
	MmolL *float64                   `json:"mmol_l,omitempty"`
}

// KetoneLevelOf is a convenience constructor for a strip reading
func KetoneLevelOf(level knowledgebase.KetoneLevel) *KetoneReading {
	return &KetoneReading{Level: &level}
}

// KetoneMmolL is a convenience constructor for a measured reading
func KetoneMmolL(v float64) *KetoneReading {
	return &KetoneReading{MmolL: &v}
}

// UnmarshalJSON accepts "moderate", 1.8 or {"level": "moderate", "mmol_l": 1.8}
func (k *KetoneReading) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return validation.NewInvalidParameter("ketones", "is required")
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		level, err := knowledgebase.ParseKetoneLevel(s)
		if err != nil {
			return validation.NewInvalidParameter("ketones", "%v", err)
		}
		*k = KetoneReading{Level: &level}
		return nil

	case '{':
		var obj struct {
			Level *string  `json:"level"`
			MmolL *float64 `json:"mmol_l"`
		}
		if err := json.Unmarshal(trimmed, &obj); err != nil {
			return validation.NewInvalidParameter("ketones", "must be a level or a mmol/L value")
		}
		reading := KetoneReading{MmolL: obj.MmolL}
		if obj.Level != nil {
			level, err := knowledgebase.ParseKetoneLevel(*obj.Level)
			if err != nil {
				return validation.NewInvalidParameter("ketones.level", "%v", err)
			}
			reading.Level = &level
		}
		*k = reading
		return nil

	default:
		var v float64
		if err := json.Unmarshal(trimmed, &v); err != nil {
			return validation.NewInvalidParameter("ketones", "must be a level or a mmol/L value")
		}
		*k = KetoneReading{MmolL: &v}
		return nil
	}
}

// resolve maps the reading onto the ordered ketone scale
func (k *KetoneReading) resolve(cuts knowledgebase.KetoneCutPoints) (knowledgebase.KetoneLevel, error) {
	if k == nil || (k.Level == nil && k.MmolL == nil) {
		return knowledgebase.KetonesNone, validation.NewInvalidParameter("ketones", "is required")
	}

	level := knowledgebase.KetonesNone
	if k.Level != nil {
		if !k.Level.Valid() {
			return level, validation.NewInvalidParameter("ketones.level", "unknown level %d", int(*k.Level))
		}
		level = *k.Level
	}
	if k.MmolL != nil {
		if err := validation.Finite("ketones.mmol_l", *k.MmolL); err != nil {
			return level, err
		}
		if *k.MmolL < 0 {
			return level, validation.NewInvalidParameter("ketones.mmol_l", "cannot be negative, got %g", *k.MmolL)
		}
		if measured := cuts.Level(*k.MmolL); measured > level {
			level = measured
		}
	}

	return level, nil
}

// SymptomList is the symptom set of an input. In JSON it may be an array of
// symptom names or a single comma separated string; free text in English or
// Korean is mapped onto the known symptoms.
type SymptomList []knowledgebase.Symptom

// UnmarshalJSON accepts ["vomiting", "fever"] or "vomiting, fever"
func (s *SymptomList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*s = nil
		return nil
	}

	var parts []string
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return err
		}
		parts = []string{text}
	} else if err := json.Unmarshal(trimmed, &parts); err != nil {
		return validation.NewInvalidParameter("symptoms", "must be a list of symptoms or a comma separated string")
	}

	var out SymptomList
	seen := make(knowledgebase.SymptomSet)
	for _, part := range parts {
		found, unknown := knowledgebase.ParseSymptoms(part)
		if len(unknown) > 0 {
			return validation.NewInvalidParameter("symptoms", "unknown symptom %q", strings.Join(unknown, ", "))
		}
		for _, sym := range found {
			if !seen.Has(sym) {
				seen[sym] = struct{}{}
				out = append(out, sym)
			}
		}
	}

	*s = out
	return nil
}

// Input is a sick-day risk query. Glucose (mg/dL) and Ketones are required.
type Input struct {
	Glucose               *float64       `json:"glucose"`
	Ketones               *KetoneReading `json:"ketones"`
	Symptoms              SymptomList    `json:"symptoms,omitempty"`
	HoursSinceLastInsulin *float64       `json:"hours_since_last_insulin,omitempty"`
}

// facts validates the input and normalizes it for rule evaluation
func (in Input) facts(kb *knowledgebase.KnowledgeBase) (knowledgebase.Facts, error) {
	if in.Glucose == nil {
		return knowledgebase.Facts{}, validation.NewInvalidParameter("glucose", "is required")
	}
	if err := validation.Positive("glucose", *in.Glucose); err != nil {
		return knowledgebase.Facts{}, err
	}

	level, err := in.Ketones.resolve(kb.KetoneCutPoints)
	if err != nil {
		return knowledgebase.Facts{}, err
	}

	for _, sym := range in.Symptoms {
		if !sym.Known() {
			return knowledgebase.Facts{}, validation.NewInvalidParameter("symptoms", "unknown symptom %q", string(sym))
		}
	}

	if in.HoursSinceLastInsulin != nil {
		h := *in.HoursSinceLastInsulin
		if err := validation.Finite("hours_since_last_insulin", h); err != nil {
			return knowledgebase.Facts{}, err
		}
		if h < 0 {
			return knowledgebase.Facts{}, validation.NewInvalidParameter("hours_since_last_insulin", "cannot be negative, got %g", h)
		}
	}

	return knowledgebase.Facts{
		Glucose:               *in.Glucose,
		Ketones:               level,
		Symptoms:              knowledgebase.NewSymptomSet(in.Symptoms),
		HoursSinceLastInsulin: in.HoursSinceLastInsulin,
	}, nil
}

func (in Input) String() string {
	var b strings.Builder
	if in.Glucose != nil {
		fmt.Fprintf(&b, "glucose=%g", *in.Glucose)
	} else {
		b.WriteString("glucose=<nil>")
	}
	if in.Ketones != nil && in.Ketones.Level != nil {
		fmt.Fprintf(&b, " ketones=%s", *in.Ketones.Level)
	}
	if in.Ketones != nil && in.Ketones.MmolL != nil {
		fmt.Fprintf(&b, " ketones_mmol_l=%g", *in.Ketones.MmolL)
	}
	fmt.Fprintf(&b, " symptoms=%v", []knowledgebase.Symptom(in.Symptoms))
	return b.String()
}
