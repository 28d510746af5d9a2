// Package feedback turns scorer output into correction hints, per-joint
// severity colors and a skeleton overlay.
package feedback

import (
	"image/color"
	"math"

	"github.com/ayusman/posecoach/internal/pose"
)

// Severity classifies how far a joint is from its reference.
type Severity int

const (
	SeverityGood Severity = iota
	SeverityCaution
	SeverityPoor
)

// Severity bounds in tolerance units, inclusive.
const (
	goodLimit    = 1.0
	cautionLimit = 2.0
)

var severityNames = [...]string{"good", "caution", "poor"}

func (s Severity) String() string {
	if s < SeverityGood || s > SeverityPoor {
		return "unknown"
	}
	return severityNames[s]
}

// MarshalText lets severities serialize as their names, including as map
// values in JSON.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Color returns the overlay color for the severity.
func (s Severity) Color() color.RGBA {
	switch s {
	case SeverityGood:
		return color.RGBA{R: 40, G: 200, B: 80, A: 255}
	case SeverityCaution:
		return color.RGBA{R: 255, G: 176, B: 0, A: 255}
	default:
		return color.RGBA{R: 230, G: 40, B: 40, A: 255}
	}
}

// Classify maps an uncapped error in tolerance units to a severity. NaN is
// treated as poor.
func Classify(units float64) Severity {
	switch {
	case math.IsNaN(units):
		return SeverityPoor
	case units <= goodLimit:
		return SeverityGood
	case units <= cautionLimit:
		return SeverityCaution
	default:
		return SeverityPoor
	}
}

// JointColors classifies every joint in units.
func JointColors(units map[pose.Joint]float64) map[pose.Joint]Severity {
	out := make(map[pose.Joint]Severity, len(units))
	for j, u := range units {
		out[j] = Classify(u)
	}
	return out
}
