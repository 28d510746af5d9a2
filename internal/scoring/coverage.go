package scoring

// CoveragePolicy scales the final score by how much of the template was
// actually visible. The factor ramps linearly from 0 at Floor to 1 at Full.
type CoveragePolicy struct {
	Enabled bool
	Floor   float64
	Full    float64
}

// DefaultCoveragePolicy ramps from 75% to 100% coverage.
func DefaultCoveragePolicy() CoveragePolicy {
	return CoveragePolicy{
		Enabled: true,
		Floor:   0.75,
		Full:    1.0,
	}
}

// Factor returns the score multiplier for the given coverage.
func (p CoveragePolicy) Factor(coverage float64) float64 {
	if !p.Enabled || coverage >= p.Full {
		return 1
	}
	if coverage <= p.Floor || p.Full <= p.Floor {
		return 0
	}
	return (coverage - p.Floor) / (p.Full - p.Floor)
}
