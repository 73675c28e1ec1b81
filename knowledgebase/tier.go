package knowledgebase

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tier is the ordered risk classification. Higher values are more severe.
type Tier int

const (
	TierSafe Tier = iota
	TierCaution
	TierUrgent
	TierEmergency
)

var tierNames = [...]string{"safe", "caution", "urgent", "emergency"}

// AllTiers lists every tier from least to most severe
func AllTiers() []Tier {
	return []Tier{TierSafe, TierCaution, TierUrgent, TierEmergency}
}

func (t Tier) String() string {
	if t < TierSafe || t > TierEmergency {
		return fmt.Sprintf("tier(%d)", int(t))
	}
	return tierNames[t]
}

// Valid reports whether t is one of the four defined tiers
func (t Tier) Valid() bool {
	return t >= TierSafe && t <= TierEmergency
}

// AtLeast reports whether t is as severe as other or more
func (t Tier) AtLeast(other Tier) bool {
	return t >= other
}

// MaxTier returns the more severe of a and b
func MaxTier(a, b Tier) Tier {
	if a > b {
		return a
	}
	return b
}

// ParseTier parses a tier name, case-insensitive
func ParseTier(s string) (Tier, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range tierNames {
		if n == name {
			return Tier(i), nil
		}
	}
	return TierSafe, fmt.Errorf("unknown tier %q, must be one of %v", s, tierNames)
}

func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid tier %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t *Tier) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return t.UnmarshalText([]byte(s))
}
