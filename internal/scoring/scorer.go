package scoring

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/posecoach/internal/detector"
	"github.com/ayusman/posecoach/internal/pose"
)

const (
	// liftExponent compresses the near-perfect region of the score curve.
	liftExponent = 0.6

	toleranceEpsilon = 1e-6
)

// Config holds the scorer tuning.
type Config struct {
	VisibilityThreshold float64
	Coverage            CoveragePolicy
}

// DefaultConfig returns the default scorer tuning.
func DefaultConfig() Config {
	return Config{
		VisibilityThreshold: DefaultVisibilityThreshold,
		Coverage:            DefaultCoveragePolicy(),
	}
}

// Result is the outcome of scoring one frame.
type Result struct {
	// Score is nil when there was not enough signal to judge.
	Score *int

	// AngleScore, BoneScore and EmbedScore are the blend components.
	AngleScore *int
	BoneScore  *float64
	EmbedScore *float64

	// PerJointError is the capped normalized error of every scored joint.
	PerJointError map[pose.Joint]float64
	// ToleranceUnits is the uncapped deviation in multiples of tolerance.
	ToleranceUnits map[pose.Joint]float64
	// Deltas is the signed reference minus user angle in degrees.
	Deltas map[pose.Joint]float64

	Coverage float64
	// CoverageFactor is the multiplier the coverage policy applied.
	CoverageFactor float64

	// Trimmed is the joint dropped by trim-worst, empty if none.
	Trimmed pose.Joint
	MAE     float64
}

// Scorer compares smoothed user features against a template.
type Scorer struct {
	cfg Config
}

// NewScorer creates a Scorer. A zero threshold uses the default.
func NewScorer(cfg Config) *Scorer {
	if cfg.VisibilityThreshold <= 0 {
		cfg.VisibilityThreshold = DefaultVisibilityThreshold
	}
	return &Scorer{cfg: cfg}
}

// Config returns the scorer tuning.
func (s *Scorer) Config() Config {
	return s.cfg
}

// Score gates the smoothed angles against the raw landmark visibility and
// scores them against tpl. np may be nil, in which case only the angle
// component is available.
func (s *Scorer) Score(smoothed pose.AngleSet, tpl *pose.Template, lm *detector.PoseLandmarks, np *detector.NormalizedPose) Result {
	if tpl == nil {
		return Result{}
	}

	gated := Gate(smoothed, lm, s.cfg.VisibilityThreshold)
	res := ScoreAngles(gated, tpl)

	if tpl.Reference() != nil && np != nil {
		res.BoneScore = BoneScore(np, lm, tpl, s.cfg.VisibilityThreshold)
		res.EmbedScore = EmbedScore(np, tpl)
	}

	blended := Blend(res.AngleScore, res.BoneScore, res.EmbedScore)
	// The bone and embedding fallback is judged on bone visibility, not on
	// angle joints that were gated out or never defined.
	if res.AngleScore == nil && (blended != nil || len(tpl.AnglesDeg) == 0) && tpl.Reference() != nil && np != nil {
		res.Coverage = boneCoverage(lm, s.cfg.VisibilityThreshold)
	}
	res.CoverageFactor = s.cfg.Coverage.Factor(res.Coverage)
	if blended != nil {
		v := int(math.Round(float64(*blended) * res.CoverageFactor))
		res.Score = &v
	}

	return res
}

// WrapDiff returns the absolute angular difference folded into [0, 180].
func WrapDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// LiftScore maps a mean error in [0,1] to a 0-100 score.
func LiftScore(mae float64) int {
	v := math.Round(100 * math.Pow(math.Max(0, 1-mae), liftExponent))
	return int(math.Max(0, math.Min(100, v)))
}

type jointError struct {
	joint pose.Joint
	err   float64
}

// ScoreAngles scores gated user angles against the template's expected
// angles. Joints outside tpl.AnglesDeg are ignored. When two or more joints
// survive, the single worst one is dropped before averaging; a lone joint
// is used as is.
func ScoreAngles(gated pose.AngleSet, tpl *pose.Template) Result {
	res := Result{
		PerJointError:  make(map[pose.Joint]float64),
		ToleranceUnits: make(map[pose.Joint]float64),
		Deltas:         make(map[pose.Joint]float64),
		CoverageFactor: 1,
	}

	var errs []jointError
	for _, j := range tpl.Joints() {
		user, ok := gated[j]
		if !ok {
			continue
		}
		ref := tpl.AnglesDeg[j]
		tol := math.Max(toleranceEpsilon, tpl.Tolerance(j))
		units := WrapDiff(user, ref) / tol
		if math.IsNaN(units) {
			continue
		}
		ne := math.Min(units, 1)

		res.PerJointError[j] = ne
		res.ToleranceUnits[j] = units
		res.Deltas[j] = ref - user
		errs = append(errs, jointError{joint: j, err: ne})
	}

	if expected := len(tpl.AnglesDeg); expected > 0 {
		res.Coverage = float64(len(errs)) / float64(expected)
	}
	if len(errs) == 0 {
		return res
	}

	sort.SliceStable(errs, func(i, k int) bool { return errs[i].err > errs[k].err })
	if len(errs) >= 2 {
		res.Trimmed = errs[0].joint
		errs = errs[1:]
	}

	values := make([]float64, len(errs))
	weights := make([]float64, len(errs))
	var total float64
	for i, e := range errs {
		values[i] = e.err
		weights[i] = math.Max(0, tpl.Weight(e.joint))
		total += weights[i]
	}
	if total <= 0 {
		weights = nil
	}

	res.MAE = stat.Mean(values, weights)
	if math.IsNaN(res.MAE) {
		return res
	}
	score := LiftScore(res.MAE)
	res.AngleScore = &score

	return res
}
