package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/posecoach/internal/detector"
	"github.com/ayusman/posecoach/internal/pose"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func visibleLandmarks() *detector.PoseLandmarks {
	lm := detector.StandingLandmarks()
	return &lm
}

// elbowKneeTemplate is the two-joint template used by the end-to-end cases.
func elbowKneeTemplate() *pose.Template {
	return &pose.Template{
		PoseID:       "elbow-knee",
		AnglesDeg:    map[pose.Joint]float64{pose.LeftElbow: 90, pose.LeftKnee: 170},
		ToleranceDeg: map[pose.Joint]float64{pose.LeftElbow: 15, pose.LeftKnee: 20},
		Weights:      map[pose.Joint]float64{pose.LeftElbow: 1, pose.LeftKnee: 1},
	}
}

func TestWrapDiff(t *testing.T) {
	t.Run("wraps around 360", func(t *testing.T) {
		assert.InDelta(t, 20, WrapDiff(350, 10), 1e-9)
		assert.InDelta(t, 20, WrapDiff(-10, 10), 1e-9)
		assert.InDelta(t, 180, WrapDiff(0, 180), 1e-9)
		assert.InDelta(t, 0, WrapDiff(720, 0), 1e-9)
	})

	t.Run("symmetric, zero on identity, bounded", func(t *testing.T) {
		for a := -400.0; a <= 400; a += 37.5 {
			assert.Equal(t, 0.0, WrapDiff(a, a))
			for b := -400.0; b <= 400; b += 23.25 {
				d := WrapDiff(a, b)
				assert.InDelta(t, d, WrapDiff(b, a), 1e-9)
				assert.GreaterOrEqual(t, d, 0.0)
				assert.LessOrEqual(t, d, 180.0)
			}
		}
	})
}

func TestLiftScore(t *testing.T) {
	assert.Equal(t, 100, LiftScore(0))
	assert.Equal(t, 0, LiftScore(1))
	assert.Equal(t, 66, LiftScore(0.5))
	assert.Equal(t, 0, LiftScore(1.5), "clamped at zero")
	assert.Equal(t, 100, LiftScore(-0.2), "clamped at 100")
}

func TestScoreAngles(t *testing.T) {
	t.Run("exact match scores 100", func(t *testing.T) {
		res := ScoreAngles(pose.AngleSet{pose.LeftElbow: 90, pose.LeftKnee: 170}, elbowKneeTemplate())

		require.NotNil(t, res.AngleScore)
		assert.Equal(t, 100, *res.AngleScore)
		assert.Equal(t, 0.0, res.PerJointError[pose.LeftElbow])
		assert.Equal(t, 0.0, res.PerJointError[pose.LeftKnee])
		assert.Equal(t, 1.0, res.Coverage)
	})

	// Trim-worst hides one badly wrong joint entirely. Intended: one
	// misdetected joint must not sink the score, at the cost of also hiding
	// one genuinely wrong joint.
	t.Run("trim-worst masks a single bad joint", func(t *testing.T) {
		res := ScoreAngles(pose.AngleSet{pose.LeftElbow: 120, pose.LeftKnee: 170}, elbowKneeTemplate())

		require.NotNil(t, res.AngleScore)
		assert.Equal(t, 100, *res.AngleScore)
		assert.Equal(t, pose.LeftElbow, res.Trimmed)
		assert.Equal(t, 1.0, res.PerJointError[pose.LeftElbow], "error is capped at 1")
		assert.InDelta(t, 2.0, res.ToleranceUnits[pose.LeftElbow], 1e-9)
		assert.InDelta(t, -30, res.Deltas[pose.LeftElbow], 1e-9)
	})

	t.Run("single joint is not trimmed", func(t *testing.T) {
		tpl := &pose.Template{
			PoseID:       "single",
			AnglesDeg:    map[pose.Joint]float64{pose.LeftElbow: 90},
			ToleranceDeg: map[pose.Joint]float64{pose.LeftElbow: 15},
		}

		res := ScoreAngles(pose.AngleSet{pose.LeftElbow: 105}, tpl)

		require.NotNil(t, res.AngleScore)
		assert.Equal(t, pose.Joint(""), res.Trimmed)
		assert.InDelta(t, 1.0, res.MAE, 1e-9)
		assert.Equal(t, 0, *res.AngleScore)
	})

	t.Run("worst joint never contributes", func(t *testing.T) {
		tpl := &pose.Template{
			PoseID: "three",
			AnglesDeg: map[pose.Joint]float64{
				pose.LeftElbow: 90, pose.LeftKnee: 170, pose.RightKnee: 170,
			},
			ToleranceDeg: map[pose.Joint]float64{
				pose.LeftElbow: 10, pose.LeftKnee: 10, pose.RightKnee: 10,
			},
			Weights: map[pose.Joint]float64{pose.LeftElbow: 1, pose.LeftKnee: 3},
		}

		var first *int
		for _, worst := range []float64{150, 120, 100, 0} {
			res := ScoreAngles(pose.AngleSet{
				pose.LeftElbow: 90, pose.LeftKnee: 165, pose.RightKnee: worst,
			}, tpl)
			require.NotNil(t, res.AngleScore)
			assert.Equal(t, pose.RightKnee, res.Trimmed)
			if first == nil {
				first = res.AngleScore
			}
			assert.Equal(t, *first, *res.AngleScore)
		}

		// (0*1 + 0.5*3) / 4 = 0.375 -> round(100 * 0.625^0.6)
		assert.Equal(t, 75, *first)
	})

	t.Run("ignores joints outside the template", func(t *testing.T) {
		res := ScoreAngles(pose.AngleSet{
			pose.LeftElbow: 90, pose.LeftKnee: 170, pose.RightElbow: 10,
		}, elbowKneeTemplate())

		assert.NotContains(t, res.PerJointError, pose.RightElbow)
		assert.Equal(t, 100, *res.AngleScore)
	})

	t.Run("no surviving joints yields nil, not zero", func(t *testing.T) {
		res := ScoreAngles(pose.AngleSet{pose.RightElbow: 90}, elbowKneeTemplate())

		assert.Nil(t, res.AngleScore)
		assert.Equal(t, 0.0, res.Coverage)
	})

	t.Run("NaN angle is skipped", func(t *testing.T) {
		res := ScoreAngles(pose.AngleSet{pose.LeftElbow: math.NaN(), pose.LeftKnee: 170}, elbowKneeTemplate())

		require.NotNil(t, res.AngleScore)
		assert.NotContains(t, res.PerJointError, pose.LeftElbow)
		assert.Equal(t, 0.5, res.Coverage)
	})

	t.Run("zero tolerance does not divide by zero", func(t *testing.T) {
		tpl := elbowKneeTemplate()
		tpl.ToleranceDeg[pose.LeftKnee] = 0

		res := ScoreAngles(pose.AngleSet{pose.LeftElbow: 90, pose.LeftKnee: 170}, tpl)
		assert.Equal(t, 0.0, res.PerJointError[pose.LeftKnee])
	})

	t.Run("zero weights fall back to unweighted mean", func(t *testing.T) {
		tpl := elbowKneeTemplate()
		tpl.AnglesDeg[pose.RightKnee] = 170
		tpl.Weights = map[pose.Joint]float64{pose.LeftElbow: 0, pose.LeftKnee: 0, pose.RightKnee: 0}

		res := ScoreAngles(pose.AngleSet{pose.LeftElbow: 90, pose.LeftKnee: 170, pose.RightKnee: 170}, tpl)
		require.NotNil(t, res.AngleScore)
		assert.Equal(t, 100, *res.AngleScore)
	})
}

func TestGate(t *testing.T) {
	t.Run("low visibility removes the joint", func(t *testing.T) {
		lm := visibleLandmarks()
		lm.Points[detector.LeftWrist].Visibility = 0.3

		gated := Gate(pose.AngleSet{pose.LeftElbow: 90, pose.RightElbow: 90}, lm, DefaultVisibilityThreshold)

		assert.NotContains(t, gated, pose.LeftElbow)
		assert.Contains(t, gated, pose.RightElbow)
	})

	t.Run("NaN visibility counts as hidden", func(t *testing.T) {
		lm := visibleLandmarks()
		lm.Points[detector.LeftWrist].Visibility = math.NaN()

		assert.False(t, JointVisible(pose.LeftElbow, lm, DefaultVisibilityThreshold))
		gated := Gate(pose.AngleSet{pose.LeftElbow: 90}, lm, DefaultVisibilityThreshold)
		assert.NotContains(t, gated, pose.LeftElbow)
	})

	t.Run("threshold is inclusive", func(t *testing.T) {
		lm := visibleLandmarks()
		lm.Points[detector.LeftWrist].Visibility = 0.5

		gated := Gate(pose.AngleSet{pose.LeftElbow: 90}, lm, DefaultVisibilityThreshold)
		assert.Contains(t, gated, pose.LeftElbow)
	})

	t.Run("spine needs all four anchors", func(t *testing.T) {
		lm := visibleLandmarks()
		lm.Points[detector.RightHip].Visibility = 0.1

		gated := Gate(pose.AngleSet{pose.SpineTilt: 3}, lm, DefaultVisibilityThreshold)
		assert.Empty(t, gated)
	})

	t.Run("lowering visibility never adds joints", func(t *testing.T) {
		base := visibleLandmarks()
		angles := pose.ExtractAngles(base.Normalize())
		lm := visibleLandmarks()

		prev := Gate(angles, lm, DefaultVisibilityThreshold)
		for i := 0; i < detector.NumLandmarks; i += 2 {
			lm.Points[i].Visibility = 0.2
			next := Gate(angles, lm, DefaultVisibilityThreshold)
			for j := range next {
				assert.Contains(t, prev, j, "joint %s reappeared", j)
			}
			prev = next
		}
	})
}

func TestScorer_Score(t *testing.T) {
	standing := detector.StandingLandmarks()
	np := standing.Normalize()
	ref := pose.ExtractAngles(np)

	templateFrom := func(lm detector.PoseLandmarks) *pose.Template {
		tpl := &pose.Template{
			PoseID:    "standing",
			AnglesDeg: map[pose.Joint]float64(ref.Clone()),
			Landmarks: &lm,
		}
		tpl.Prepare()
		return tpl
	}

	t.Run("identical pose scores 100 on every component", func(t *testing.T) {
		s := NewScorer(DefaultConfig())
		tpl := templateFrom(standing)

		res := s.Score(ref, tpl, &standing, np)

		require.NotNil(t, res.Score)
		assert.Equal(t, 100, *res.Score)
		require.NotNil(t, res.BoneScore)
		require.NotNil(t, res.EmbedScore)
		assert.InDelta(t, 100, *res.BoneScore, 0.5)
		assert.InDelta(t, 100, *res.EmbedScore, 0.5)
		for j, e := range res.PerJointError {
			assert.InDelta(t, 0, e, 1e-9, j)
		}
	})

	t.Run("invariant under translation, scale and rotation", func(t *testing.T) {
		s := NewScorer(DefaultConfig())
		tpl := templateFrom(detector.ArmsRaisedLandmarks())

		score := func(lm detector.PoseLandmarks) int {
			n := lm.Normalize()
			res := s.Score(pose.ExtractAngles(n), tpl, &lm, n)
			require.NotNil(t, res.Score)
			return *res.Score
		}

		base := detector.SquatLandmarks()
		moved := base
		cos, sin := math.Cos(0.5), math.Sin(0.5)
		for i := range moved.Points {
			x, y := moved.Points[i].X, moved.Points[i].Y
			moved.Points[i].X = 3*(x*cos-y*sin) + 0.2
			moved.Points[i].Y = 3*(x*sin+y*cos) - 0.4
		}

		assert.Equal(t, score(base), score(moved))
	})

	t.Run("different pose scores lower", func(t *testing.T) {
		s := NewScorer(DefaultConfig())
		tpl := templateFrom(standing)
		squat := detector.SquatLandmarks()
		n := squat.Normalize()

		res := s.Score(pose.ExtractAngles(n), tpl, &squat, n)

		require.NotNil(t, res.Score)
		assert.Less(t, *res.Score, 90)
	})

	t.Run("coverage policy on and off", func(t *testing.T) {
		tpl := &pose.Template{
			PoseID: "limbs",
			AnglesDeg: map[pose.Joint]float64{
				pose.LeftElbow: ref[pose.LeftElbow], pose.RightElbow: ref[pose.RightElbow],
				pose.LeftKnee: ref[pose.LeftKnee], pose.RightKnee: ref[pose.RightKnee],
			},
		}
		lm := standing
		lm.Points[detector.LeftWrist].Visibility = 0.1

		withPolicy := NewScorer(DefaultConfig())
		res := withPolicy.Score(ref, tpl, &lm, nil)
		assert.Equal(t, 0.75, res.Coverage)
		require.NotNil(t, res.AngleScore)
		assert.Equal(t, 100, *res.AngleScore)
		require.NotNil(t, res.Score)
		assert.Equal(t, 0, *res.Score)

		cfg := DefaultConfig()
		cfg.Coverage.Enabled = false
		without := NewScorer(cfg)
		res = without.Score(ref, tpl, &lm, nil)
		require.NotNil(t, res.Score)
		assert.Equal(t, 100, *res.Score)
	})

	t.Run("all joints gated yields nil", func(t *testing.T) {
		s := NewScorer(DefaultConfig())
		lm := standing
		for i := range lm.Points {
			lm.Points[i].Visibility = 0.1
		}

		res := s.Score(ref, elbowKneeTemplate(), &lm, nil)
		assert.Nil(t, res.Score)
	})

	t.Run("landmark-only template uses bone and embedding fallback", func(t *testing.T) {
		s := NewScorer(DefaultConfig())
		tpl := &pose.Template{PoseID: "ref-only", Landmarks: &standing}
		tpl.Prepare()

		res := s.Score(ref, tpl, &standing, np)

		assert.Nil(t, res.AngleScore)
		require.NotNil(t, res.Score)
		assert.Equal(t, 100, *res.Score)
		assert.Equal(t, 1.0, res.Coverage)
	})

	t.Run("gated angle joints fall back to bone coverage", func(t *testing.T) {
		tpl := &pose.Template{
			PoseID:    "elbow",
			AnglesDeg: map[pose.Joint]float64{pose.LeftElbow: 180},
			Landmarks: &standing,
		}
		tpl.Prepare()
		lm := standing
		lm.Points[detector.LeftWrist].Visibility = 0.2

		cfg := DefaultConfig()
		cfg.Coverage.Enabled = false
		res := NewScorer(cfg).Score(ref, tpl, &lm, np)
		assert.Nil(t, res.AngleScore)
		require.NotNil(t, res.BoneScore)
		require.NotNil(t, res.EmbedScore)
		require.NotNil(t, res.Score)
		assert.Equal(t, 100, *res.Score)
		assert.InDelta(t, 0.9, res.Coverage, 1e-9)

		// One of ten bones hidden puts the default ramp at 0.6, not 0.
		res = NewScorer(DefaultConfig()).Score(ref, tpl, &lm, np)
		require.NotNil(t, res.Score)
		assert.InDelta(t, 0.6, res.CoverageFactor, 1e-9)
		assert.Equal(t, 60, *res.Score)
	})

	t.Run("nil template", func(t *testing.T) {
		res := NewScorer(Config{}).Score(ref, nil, &standing, np)
		assert.Nil(t, res.Score)
	})
}

func TestBlend(t *testing.T) {
	tests := []struct {
		name  string
		angle *int
		bone  *float64
		embed *float64
		want  *int
	}{
		{"all three", intPtr(80), floatPtr(100), floatPtr(50), intPtr(81)},
		{"fallback without angle", nil, floatPtr(80), floatPtr(60), intPtr(73)},
		{"angle with one component", intPtr(64), floatPtr(10), nil, intPtr(64)},
		{"angle alone", intPtr(42), nil, nil, intPtr(42)},
		{"bone only", nil, floatPtr(90), nil, nil},
		{"nothing", nil, nil, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Blend(tt.angle, tt.bone, tt.embed)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestCoveragePolicy_Factor(t *testing.T) {
	p := DefaultCoveragePolicy()

	assert.Equal(t, 1.0, p.Factor(1.0))
	assert.InDelta(t, 0.5, p.Factor(0.875), 1e-9)
	assert.Equal(t, 0.0, p.Factor(0.75))
	assert.Equal(t, 0.0, p.Factor(0.2))

	p.Enabled = false
	assert.Equal(t, 1.0, p.Factor(0.2))
}
