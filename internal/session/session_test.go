package session

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/posecoach/internal/detector"
	"github.com/ayusman/posecoach/internal/feedback"
	"github.com/ayusman/posecoach/internal/pose"
)

func anglesOf(lm detector.PoseLandmarks) map[pose.Joint]float64 {
	return map[pose.Joint]float64(pose.ExtractAngles(lm.Normalize()))
}

func standingTemplate() *pose.Template {
	return &pose.Template{PoseID: "standing", AnglesDeg: anglesOf(detector.StandingLandmarks())}
}

func squatTemplate() *pose.Template {
	return &pose.Template{PoseID: "squat", AnglesDeg: anglesOf(detector.SquatLandmarks())}
}

func TestSession_NoTemplate(t *testing.T) {
	s := New(DefaultConfig())
	lm := detector.StandingLandmarks()

	res := s.Process(&lm)

	assert.Nil(t, res.Score)
	assert.Equal(t, feedback.ReasonNoTemplate, res.Reason)
	assert.NotEmpty(t, res.FeedbackText)
}

func TestSession_MatchingPose(t *testing.T) {
	s := New(DefaultConfig())
	s.SetTemplate(standingTemplate())
	lm := detector.StandingLandmarks()

	res := s.Process(&lm)

	require.NotNil(t, res.Score)
	assert.Equal(t, 100, *res.Score)
	assert.Equal(t, 1.0, res.Coverage)
	assert.Empty(t, res.FeedbackText)
	assert.Equal(t, "standing", res.PoseID)
	for j, c := range res.JointColors {
		assert.Equal(t, feedback.SeverityGood, c, j)
	}
}

func TestSession_WrongPoseGetsHints(t *testing.T) {
	s := New(DefaultConfig())
	s.SetTemplate(squatTemplate())
	lm := detector.StandingLandmarks()

	res := s.Process(&lm)

	require.NotNil(t, res.Score)
	assert.Less(t, *res.Score, 50)
	assert.NotEmpty(t, res.Hints)
	assert.LessOrEqual(t, len(res.Hints), feedback.DefaultMaxHints)
	assert.NotEmpty(t, res.FeedbackText)
}

func TestSession_MissingHips(t *testing.T) {
	s := New(DefaultConfig())
	s.SetTemplate(standingTemplate())
	lm := detector.StandingLandmarks()
	lm.Points[detector.LeftHip] = detector.Landmark{Absent: true}
	lm.Points[detector.RightHip] = detector.Landmark{Absent: true}

	var res FrameResult
	require.NotPanics(t, func() { res = s.Process(&lm) })

	assert.Nil(t, res.Score)
	assert.Equal(t, feedback.ReasonMissingAnchors, res.Reason)
	assert.Equal(t, "Move back into frame", res.FeedbackText)
}

func TestSession_NaNLandmarks(t *testing.T) {
	s := New(DefaultConfig())
	s.SetTemplate(standingTemplate())
	lm := detector.StandingLandmarks()
	lm.Points[detector.LeftShoulder].X = math.NaN()

	res := s.Process(&lm)
	assert.Nil(t, res.Score)
	assert.Equal(t, feedback.ReasonMissingAnchors, res.Reason)
}

func TestSession_NoPerson(t *testing.T) {
	s := New(DefaultConfig())
	s.SetTemplate(standingTemplate())

	res := s.Process(nil)
	assert.Nil(t, res.Score)
	assert.Equal(t, feedback.ReasonNoPerson, res.Reason)
}

func TestSession_InsufficientJoints(t *testing.T) {
	s := New(DefaultConfig())
	s.SetTemplate(standingTemplate())
	lm := detector.StandingLandmarks()
	for i := range lm.Points {
		lm.Points[i].Visibility = 0.2
	}

	res := s.Process(&lm)

	assert.Nil(t, res.Score)
	assert.Equal(t, feedback.ReasonInsufficientJoints, res.Reason)
	assert.Equal(t, "Show your full body", res.FeedbackText)
}

func TestSession_LowCoverageIsFlagged(t *testing.T) {
	ref := anglesOf(detector.StandingLandmarks())
	s := New(DefaultConfig())
	s.SetTemplate(&pose.Template{
		PoseID: "limbs",
		AnglesDeg: map[pose.Joint]float64{
			pose.LeftElbow: ref[pose.LeftElbow], pose.RightElbow: ref[pose.RightElbow],
			pose.LeftKnee: ref[pose.LeftKnee], pose.RightKnee: ref[pose.RightKnee],
		},
	})
	lm := detector.StandingLandmarks()
	lm.Points[detector.LeftWrist].Visibility = 0.1

	res := s.Process(&lm)

	require.NotNil(t, res.Score)
	assert.Equal(t, 0, *res.Score)
	assert.Equal(t, 0.75, res.Coverage)
	assert.Equal(t, feedback.ReasonLowCoverage, res.Reason)
	assert.Equal(t, "Show your full body", res.FeedbackText)
}

func TestSession_FullCoverageHasNoReason(t *testing.T) {
	s := New(DefaultConfig())
	s.SetTemplate(standingTemplate())
	lm := detector.StandingLandmarks()

	res := s.Process(&lm)

	require.NotNil(t, res.Score)
	assert.Equal(t, feedback.ReasonNone, res.Reason)
}

func TestConfig_WithDefaults(t *testing.T) {
	def := DefaultConfig()
	assert.Equal(t, def, Config{}.WithDefaults())

	cfg := Config{SmoothingWindow: 3}
	cfg.Scoring.Coverage.Enabled = false
	got := cfg.WithDefaults()
	assert.False(t, got.Scoring.Coverage.Enabled)
	assert.Equal(t, 3, got.SmoothingWindow)
	assert.Equal(t, def.Scoring.VisibilityThreshold, got.Scoring.VisibilityThreshold)
	assert.Equal(t, def.Aggregator, got.Aggregator)
	assert.Equal(t, def.MaxHints, got.MaxHints)

	cfg = Config{MaxHints: 1}
	cfg.Scoring.Coverage.Enabled = true
	got = cfg.WithDefaults()
	assert.Equal(t, def.Scoring.Coverage, got.Scoring.Coverage)
}

func TestSession_DegenerateTemplate(t *testing.T) {
	s := New(DefaultConfig())
	s.SetTemplate(&pose.Template{PoseID: "empty"})
	lm := detector.StandingLandmarks()

	for i := 0; i < 3; i++ {
		res := s.Process(&lm)
		assert.Nil(t, res.Score)
	}
	assert.True(t, s.degenerateReported)
}

func TestSession_SmoothingRejectsSpike(t *testing.T) {
	s := New(DefaultConfig())
	s.SetTemplate(standingTemplate())
	standing := detector.StandingLandmarks()
	raised := detector.ArmsRaisedLandmarks()

	for i := 0; i < 4; i++ {
		s.Process(&standing)
	}
	res := s.Process(&raised)

	require.NotNil(t, res.Score)
	assert.Equal(t, 100, *res.Score)
}

func TestSession_TemplateChangeResets(t *testing.T) {
	s := New(DefaultConfig())
	s.SetTemplate(standingTemplate())
	standing := detector.StandingLandmarks()
	squat := detector.SquatLandmarks()

	for i := 0; i < 6; i++ {
		s.Process(&standing)
	}

	s.SetTemplate(squatTemplate())
	res := s.Process(&squat)

	// A stale standing history would keep the smoothed knees straight.
	require.NotNil(t, res.Score)
	assert.Equal(t, 100, *res.Score)

	step := s.CompleteStep()
	assert.Equal(t, "squat", step.PoseID)
	assert.Equal(t, 1, step.Frames)
}

func TestSession_CompleteStep(t *testing.T) {
	s := New(DefaultConfig())
	s.SetTemplate(standingTemplate())
	lm := detector.StandingLandmarks()

	for i := 0; i < 10; i++ {
		s.Process(&lm)
	}

	step := s.CompleteStep()
	require.NotNil(t, step.StableScore)
	assert.Equal(t, 100, *step.StableScore)
	assert.Equal(t, 10, step.Frames)
	assert.Len(t, step.Scores, 10)
	assert.Equal(t, 1, s.Step())

	empty := s.CompleteStep()
	assert.Nil(t, empty.StableScore)
	assert.Zero(t, empty.Frames)
}

func TestSession_CompleteStepAfterSwap(t *testing.T) {
	s := New(DefaultConfig())
	s.SetTemplate(standingTemplate())
	lm := detector.StandingLandmarks()
	for i := 0; i < 5; i++ {
		s.Process(&lm)
	}

	s.SetTemplate(squatTemplate())
	step := s.CompleteStep()

	assert.Equal(t, "squat", step.PoseID)
	assert.Zero(t, step.Frames, "frames of the previous template must not leak")
	assert.Nil(t, step.StableScore)
}

func TestProcessFrame_Invariance(t *testing.T) {
	tpl := squatTemplate()
	base := detector.ArmsRaisedLandmarks()
	moved := base
	for i := range moved.Points {
		moved.Points[i].X = 0.5*moved.Points[i].X + 0.25
		moved.Points[i].Y = 0.5*moved.Points[i].Y + 0.1
	}

	a := ProcessFrame(&base, tpl, NewState(DefaultConfig()))
	b := ProcessFrame(&moved, tpl, NewState(DefaultConfig()))

	require.NotNil(t, a.Score)
	require.NotNil(t, b.Score)
	assert.Equal(t, *a.Score, *b.Score)
}

func TestSession_ConcurrentTemplateSwap(t *testing.T) {
	s := New(DefaultConfig())
	lm := detector.StandingLandmarks()
	templates := []*pose.Template{standingTemplate(), squatTemplate()}
	for _, tpl := range templates {
		tpl.Prepare()
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s.SetTemplate(templates[i%2])
		}
	}()

	for i := 0; i < 200; i++ {
		res := s.Process(&lm)
		if res.Score != nil {
			assert.Contains(t, []string{"standing", "squat"}, res.PoseID)
		}
	}
	wg.Wait()
}
