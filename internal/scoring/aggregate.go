package scoring

import (
	"math"
	"sort"
)

// AggregatorConfig controls how per-frame scores become a step score.
type AggregatorConfig struct {
	// Capacity bounds the number of buffered frame scores.
	Capacity int
	// MinCoverage is the coverage a frame needs to be buffered.
	MinCoverage float64
	// TopFraction is the share of best scores the stable score is taken from.
	TopFraction float64
}

// DefaultAggregatorConfig returns the default aggregation parameters.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		Capacity:    600,
		MinCoverage: 0.85,
		TopFraction: 0.30,
	}
}

// StepAggregator buffers high-coverage frame scores of one exercise step and
// reports the median of the best-sustained slice.
type StepAggregator struct {
	cfg    AggregatorConfig
	scores []int
}

// NewStepAggregator creates a StepAggregator. Zero fields use defaults.
func NewStepAggregator(cfg AggregatorConfig) *StepAggregator {
	def := DefaultAggregatorConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.TopFraction <= 0 || cfg.TopFraction > 1 {
		cfg.TopFraction = def.TopFraction
	}
	return &StepAggregator{
		cfg:    cfg,
		scores: make([]int, 0, cfg.Capacity),
	}
}

// Add buffers a frame score. nil scores and frames below MinCoverage are
// ignored. The oldest score is dropped once Capacity is reached.
func (a *StepAggregator) Add(score *int, coverage float64) bool {
	if score == nil || coverage < a.cfg.MinCoverage {
		return false
	}
	if len(a.scores) >= a.cfg.Capacity {
		copy(a.scores, a.scores[1:])
		a.scores = a.scores[:a.cfg.Capacity-1]
	}
	a.scores = append(a.scores, *score)
	return true
}

// Stable returns the median of the top TopFraction of buffered scores,
// falling back to the median of the whole buffer when that slice rounds to
// nothing. ok is false when nothing was buffered.
func (a *StepAggregator) Stable() (score int, ok bool) {
	n := len(a.scores)
	if n == 0 {
		return 0, false
	}

	sorted := make([]int, n)
	copy(sorted, a.scores)
	sort.Ints(sorted)

	k := int(math.Round(float64(n) * a.cfg.TopFraction))
	if k == 0 {
		return medianInt(sorted), true
	}
	return medianInt(sorted[n-k:]), true
}

// Len returns the number of buffered scores.
func (a *StepAggregator) Len() int {
	return len(a.scores)
}

// Scores returns a copy of the buffered scores in arrival order.
func (a *StepAggregator) Scores() []int {
	out := make([]int, len(a.scores))
	copy(out, a.scores)
	return out
}

// Reset discards every buffered score.
func (a *StepAggregator) Reset() {
	a.scores = make([]int, 0, a.cfg.Capacity)
}

// medianInt returns the median of sorted values; on even sizes the two
// middle values are averaged and rounded half away from zero.
func medianInt(sorted []int) int {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return int(math.Round(float64(sorted[n/2-1]+sorted[n/2]) / 2))
}
