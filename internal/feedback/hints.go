package feedback

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ayusman/posecoach/internal/pose"
)

const (
	// DefaultMaterialThreshold is the normalized error a joint needs before
	// it is worth a hint.
	DefaultMaterialThreshold = 0.6
	// DefaultMaxHints bounds the hints shown at once.
	DefaultMaxHints = 2
)

// Reason explains why a frame has no score or a discounted one.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonNoTemplate         Reason = "no_template"
	ReasonNoPerson           Reason = "no_person"
	ReasonMissingAnchors     Reason = "missing_anchors"
	ReasonInsufficientJoints Reason = "insufficient_joints"
	// ReasonLowCoverage marks a scored frame discounted for hidden joints.
	ReasonLowCoverage Reason = "low_coverage"
)

// Hint is one correction directive.
type Hint struct {
	Joint pose.Joint `json:"joint"`
	Text  string     `json:"text"`
	Error float64    `json:"error"`
	// Delta is the reference minus user angle in degrees.
	Delta float64 `json:"delta"`
}

// Synthesizer builds hints with a fixed threshold and limit.
type Synthesizer struct {
	Threshold float64
	Max       int
}

// NewSynthesizer returns a Synthesizer. Non-positive values use defaults.
func NewSynthesizer(threshold float64, max int) *Synthesizer {
	if threshold <= 0 {
		threshold = DefaultMaterialThreshold
	}
	if max <= 0 {
		max = DefaultMaxHints
	}
	return &Synthesizer{Threshold: threshold, Max: max}
}

// Hints returns the worst joints at or above the threshold, worst first,
// at most s.Max of them.
func (s *Synthesizer) Hints(errs, deltas map[pose.Joint]float64) []Hint {
	var hints []Hint
	for j, e := range errs {
		if math.IsNaN(e) || e < s.Threshold {
			continue
		}
		d, ok := deltas[j]
		if !ok || math.IsNaN(d) {
			continue
		}
		hints = append(hints, Hint{Joint: j, Text: Directive(j, d), Error: e, Delta: d})
	}

	sort.Slice(hints, func(a, b int) bool {
		if hints[a].Error != hints[b].Error {
			return hints[a].Error > hints[b].Error
		}
		if math.Abs(hints[a].Delta) != math.Abs(hints[b].Delta) {
			return math.Abs(hints[a].Delta) > math.Abs(hints[b].Delta)
		}
		return hints[a].Joint < hints[b].Joint
	})

	if len(hints) > s.Max {
		hints = hints[:s.Max]
	}
	return hints
}

// Hints ranks hints with the default threshold and the given limit.
func Hints(errs, deltas map[pose.Joint]float64, max int) []Hint {
	return NewSynthesizer(DefaultMaterialThreshold, max).Hints(errs, deltas)
}

// Directive renders the correction for a joint given reference minus user
// angle. A positive delta means the user's angle is too small.
func Directive(j pose.Joint, delta float64) string {
	deg := int(math.Round(math.Abs(delta)))
	name := strings.ReplaceAll(string(j), "_", " ")

	switch j {
	case pose.LeftElbow, pose.RightElbow, pose.LeftKnee, pose.RightKnee:
		if delta > 0 {
			return fmt.Sprintf("straighten %s ~%d°", name, deg)
		}
		return fmt.Sprintf("bend %s ~%d°", name, deg)
	case pose.SpineTilt:
		if delta > 0 {
			return fmt.Sprintf("lean forward ~%d°", deg)
		}
		return "stand more upright"
	default:
		if delta > 0 {
			return fmt.Sprintf("increase %s angle ~%d°", name, deg)
		}
		return fmt.Sprintf("decrease %s angle ~%d°", name, deg)
	}
}

// Text joins hints into one feedback line.
func Text(hints []Hint) string {
	parts := make([]string, len(hints))
	for i, h := range hints {
		parts[i] = h.Text
	}
	return strings.Join(parts, "; ")
}

// Positioning returns guidance for a frame without a score.
func Positioning(r Reason) string {
	switch r {
	case ReasonNoTemplate:
		return "Choose an exercise to begin"
	case ReasonNoPerson, ReasonMissingAnchors:
		return "Move back into frame"
	case ReasonInsufficientJoints, ReasonLowCoverage:
		return "Show your full body"
	default:
		return ""
	}
}
