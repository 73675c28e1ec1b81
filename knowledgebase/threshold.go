package knowledgebase

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Boundary names one of the glucose band limits
type Boundary string

const (
	BoundarySevereLow  Boundary = "severe_low"
	BoundaryLow        Boundary = "low"
	BoundaryTargetHigh Boundary = "target_high"
	BoundaryHigh       Boundary = "high"
	BoundaryVeryHigh   Boundary = "very_high"
)

// Known reports whether b names a band limit
func (b Boundary) Known() bool {
	_, ok := Bands{}.Value(b)
	return ok
}

// Value returns the mg/dL value of the named limit
func (b Bands) Value(name Boundary) (float64, bool) {
	switch name {
	case BoundarySevereLow:
		return b.SevereLow, true
	case BoundaryLow:
		return b.Low, true
	case BoundaryTargetHigh:
		return b.TargetHigh, true
	case BoundaryHigh:
		return b.High, true
	case BoundaryVeryHigh:
		return b.VeryHigh, true
	default:
		return 0, false
	}
}

// GlucoseThreshold is a glucose limit written either as a band limit name,
// resolved against the table's bands whenever it is evaluated, or as a
// literal mg/dL value. In YAML and JSON it is a string or a number.
type GlucoseThreshold struct {
	Boundary Boundary
	MgDL     float64
}

// AtBoundary returns a threshold that follows the named band limit
func AtBoundary(b Boundary) *GlucoseThreshold {
	return &GlucoseThreshold{Boundary: b}
}

// AtMgDL returns a fixed threshold
func AtMgDL(v float64) *GlucoseThreshold {
	return &GlucoseThreshold{MgDL: v}
}

// Resolve returns the threshold in mg/dL for the given bands
func (t GlucoseThreshold) Resolve(b Bands) float64 {
	if t.Boundary != "" {
		v, _ := b.Value(t.Boundary)
		return v
	}
	return t.MgDL
}

func (t GlucoseThreshold) String() string {
	if t.Boundary != "" {
		return string(t.Boundary)
	}
	return strconv.FormatFloat(t.MgDL, 'g', -1, 64)
}

func (t GlucoseThreshold) validate() error {
	if t.Boundary != "" {
		if !t.Boundary.Known() {
			return fmt.Errorf("unknown band limit %q", t.Boundary)
		}
		return nil
	}
	if math.IsNaN(t.MgDL) || math.IsInf(t.MgDL, 0) || t.MgDL <= 0 {
		return fmt.Errorf("glucose threshold must be a positive number, got %g", t.MgDL)
	}
	return nil
}

func (t *GlucoseThreshold) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: glucose threshold must be a band limit name or a number", value.Line)
	}
	switch value.ShortTag() {
	case "!!int", "!!float":
		var v float64
		if err := value.Decode(&v); err != nil {
			return err
		}
		*t = GlucoseThreshold{MgDL: v}
	default:
		*t = GlucoseThreshold{Boundary: Boundary(value.Value)}
	}
	return nil
}

func (t GlucoseThreshold) MarshalYAML() (any, error) {
	if t.Boundary != "" {
		return string(t.Boundary), nil
	}
	return t.MgDL, nil
}

func (t GlucoseThreshold) MarshalJSON() ([]byte, error) {
	if t.Boundary != "" {
		return json.Marshal(string(t.Boundary))
	}
	return json.Marshal(t.MgDL)
}

func (t *GlucoseThreshold) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*t = GlucoseThreshold{Boundary: Boundary(name)}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("glucose threshold must be a band limit name or a number")
	}
	*t = GlucoseThreshold{MgDL: v}
	return nil
}
