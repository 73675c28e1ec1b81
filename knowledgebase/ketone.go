package knowledgebase

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// KetoneLevel is the ordered strip-style ketone reading
type KetoneLevel int

const (
	KetonesNone KetoneLevel = iota
	KetonesTrace
	KetonesSmall
	KetonesModerate
	KetonesLarge
)

var ketoneNames = [...]string{"none", "trace", "small", "moderate", "large"}

func (k KetoneLevel) String() string {
	if !k.Valid() {
		return fmt.Sprintf("ketones(%d)", int(k))
	}
	return ketoneNames[k]
}

// Valid reports whether k is a defined level
func (k KetoneLevel) Valid() bool {
	return k >= KetonesNone && k <= KetonesLarge
}

// ParseKetoneLevel parses a level name, case-insensitive. "negative" is
// accepted as a synonym of none.
func ParseKetoneLevel(s string) (KetoneLevel, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "negative" {
		return KetonesNone, nil
	}
	for i, n := range ketoneNames {
		if n == name {
			return KetoneLevel(i), nil
		}
	}
	return KetonesNone, fmt.Errorf("unknown ketone level %q, must be one of %v", s, ketoneNames)
}

func (k KetoneLevel) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid ketone level %d", int(k))
	}
	return []byte(k.String()), nil
}

func (k *KetoneLevel) UnmarshalText(text []byte) error {
	parsed, err := ParseKetoneLevel(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (k *KetoneLevel) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return k.UnmarshalText([]byte(s))
}

// KetoneCutPoints maps a measured blood beta-hydroxybutyrate value (mmol/L)
// onto a KetoneLevel. Each field is the lowest value of its level.
type KetoneCutPoints struct {
	Trace    float64 `yaml:"trace" json:"trace"`
	Small    float64 `yaml:"small" json:"small"`
	Moderate float64 `yaml:"moderate" json:"moderate"`
	Large    float64 `yaml:"large" json:"large"`
}

// Level returns the level a measured mmol/L value falls into
func (c KetoneCutPoints) Level(mmolL float64) KetoneLevel {
	switch {
	case mmolL >= c.Large:
		return KetonesLarge
	case mmolL >= c.Moderate:
		return KetonesModerate
	case mmolL >= c.Small:
		return KetonesSmall
	case mmolL >= c.Trace:
		return KetonesTrace
	default:
		return KetonesNone
	}
}

func (c KetoneCutPoints) validate() error {
	if c.Trace <= 0 {
		return fmt.Errorf("trace cut point must be positive, got %g", c.Trace)
	}
	if !(c.Trace < c.Small && c.Small < c.Moderate && c.Moderate < c.Large) {
		return fmt.Errorf("cut points must be strictly ascending, got %+v", c)
	}
	return nil
}
