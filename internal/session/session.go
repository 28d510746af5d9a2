// Package session sequences the per-frame scoring pipeline for one user
// working through exercise steps.
package session

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/ayusman/posecoach/internal/detector"
	"github.com/ayusman/posecoach/internal/feedback"
	"github.com/ayusman/posecoach/internal/pose"
	"github.com/ayusman/posecoach/internal/scoring"
)

// Config holds the tuning for every pipeline stage.
type Config struct {
	Scoring           scoring.Config
	SmoothingWindow   int
	Aggregator        scoring.AggregatorConfig
	MaterialThreshold float64
	MaxHints          int
}

// DefaultConfig returns the default pipeline tuning.
func DefaultConfig() Config {
	return Config{
		Scoring:           scoring.DefaultConfig(),
		SmoothingWindow:   pose.DefaultSmoothingWindow,
		Aggregator:        scoring.DefaultAggregatorConfig(),
		MaterialThreshold: feedback.DefaultMaterialThreshold,
		MaxHints:          feedback.DefaultMaxHints,
	}
}

// WithDefaults returns c with unset fields filled from DefaultConfig. A zero
// Config becomes DefaultConfig. Otherwise the coverage policy is kept as
// given, including a disabled one, and only an enabled policy without a
// usable ramp gets the default Floor and Full.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if c == (Config{}) {
		return def
	}

	if c.Scoring.VisibilityThreshold <= 0 {
		c.Scoring.VisibilityThreshold = def.Scoring.VisibilityThreshold
	}
	if cov := c.Scoring.Coverage; cov.Enabled && cov.Full <= cov.Floor {
		c.Scoring.Coverage.Floor = def.Scoring.Coverage.Floor
		c.Scoring.Coverage.Full = def.Scoring.Coverage.Full
	}
	if c.SmoothingWindow <= 0 {
		c.SmoothingWindow = def.SmoothingWindow
	}
	if c.Aggregator.Capacity <= 0 {
		c.Aggregator.Capacity = def.Aggregator.Capacity
	}
	if c.Aggregator.MinCoverage <= 0 {
		c.Aggregator.MinCoverage = def.Aggregator.MinCoverage
	}
	if c.Aggregator.TopFraction <= 0 {
		c.Aggregator.TopFraction = def.Aggregator.TopFraction
	}
	if c.MaterialThreshold <= 0 {
		c.MaterialThreshold = def.MaterialThreshold
	}
	if c.MaxHints <= 0 {
		c.MaxHints = def.MaxHints
	}
	return c
}

// FrameResult is the per-frame output of the pipeline.
type FrameResult struct {
	PoseID        string                           `json:"pose_id,omitempty"`
	Score         *int                             `json:"score"`
	PerJointError map[pose.Joint]float64           `json:"per_joint_error"`
	Coverage      float64                          `json:"coverage"`
	FeedbackText  string                           `json:"feedback_text"`
	JointColors   map[pose.Joint]feedback.Severity `json:"joint_colors"`
	Hints         []feedback.Hint                  `json:"hints,omitempty"`
	Reason        feedback.Reason                  `json:"reason,omitempty"`
}

// StepResult is the stable outcome of one completed exercise step.
type StepResult struct {
	PoseID string `json:"pose_id"`
	// StableScore is nil when no frame qualified for aggregation.
	StableScore *int `json:"stable_score"`
	// Frames is the number of frame scores the stable score was taken from.
	Frames int `json:"frames"`
	// Scores are the buffered frame scores in arrival order.
	Scores []int `json:"scores,omitempty"`
}

// State is the per-step mutable pipeline state.
type State struct {
	Smoother   *pose.Smoother
	Aggregator *scoring.StepAggregator
	Scorer     *scoring.Scorer
	Hints      *feedback.Synthesizer
}

// NewState creates fresh pipeline state.
func NewState(cfg Config) *State {
	return &State{
		Smoother:   pose.NewSmoother(cfg.SmoothingWindow),
		Aggregator: scoring.NewStepAggregator(cfg.Aggregator),
		Scorer:     scoring.NewScorer(cfg.Scoring),
		Hints:      feedback.NewSynthesizer(cfg.MaterialThreshold, cfg.MaxHints),
	}
}

// Reset clears smoothing history and buffered scores.
func (st *State) Reset() {
	st.Smoother.Reset()
	st.Aggregator.Reset()
}

// ProcessFrame runs normalize, extract, smooth, gate, score and feedback
// for one frame. lm nil means no person was detected. It never panics on
// malformed landmarks; frames without a score carry a Reason and
// positioning guidance instead. Frames discounted by the coverage policy
// keep their score but are flagged the same way.
func ProcessFrame(lm *detector.PoseLandmarks, tpl *pose.Template, st *State) FrameResult {
	switch {
	case tpl == nil:
		return noScore(nil, feedback.ReasonNoTemplate)
	case lm == nil:
		return noScore(tpl, feedback.ReasonNoPerson)
	}

	np := lm.Normalize()
	if np == nil {
		return noScore(tpl, feedback.ReasonMissingAnchors)
	}

	smoothed := st.Smoother.PushAll(pose.ExtractAngles(np))
	res := st.Scorer.Score(smoothed, tpl, lm, np)
	if res.Score == nil {
		out := noScore(tpl, feedback.ReasonInsufficientJoints)
		out.Coverage = res.Coverage
		return out
	}

	st.Aggregator.Add(res.Score, res.Coverage)

	hints := st.Hints.Hints(res.PerJointError, res.Deltas)
	out := FrameResult{
		PoseID:        tpl.PoseID,
		Score:         res.Score,
		PerJointError: res.PerJointError,
		Coverage:      res.Coverage,
		FeedbackText:  feedback.Text(hints),
		JointColors:   feedback.JointColors(res.ToleranceUnits),
		Hints:         hints,
	}
	if res.CoverageFactor < 1 {
		out.Reason = feedback.ReasonLowCoverage
		text := feedback.Positioning(feedback.ReasonLowCoverage)
		if out.FeedbackText != "" {
			text += "; " + out.FeedbackText
		}
		out.FeedbackText = text
	}
	return out
}

func noScore(tpl *pose.Template, reason feedback.Reason) FrameResult {
	out := FrameResult{
		PerJointError: map[pose.Joint]float64{},
		JointColors:   map[pose.Joint]feedback.Severity{},
		FeedbackText:  feedback.Positioning(reason),
		Reason:        reason,
	}
	if tpl != nil {
		out.PoseID = tpl.PoseID
	}
	return out
}

// Session owns the pipeline state for one user. The current template may be
// swapped from any goroutine; Process notices the swap on the next frame and
// starts the new step from clean buffers.
type Session struct {
	cfg     Config
	pending atomic.Pointer[pose.Template]

	mu                 sync.Mutex
	active             *pose.Template
	state              *State
	degenerateReported bool
	step               int
}

// New creates a Session without a template.
func New(cfg Config) *Session {
	return &Session{
		cfg:   cfg,
		state: NewState(cfg),
	}
}

// SetTemplate makes tpl the current template. Passing nil clears it. tpl
// should already be prepared and must not be modified afterwards.
func (s *Session) SetTemplate(tpl *pose.Template) {
	s.pending.Store(tpl)
}

// Template returns the current template, or nil.
func (s *Session) Template() *pose.Template {
	return s.pending.Load()
}

// Step returns how many steps have been completed.
func (s *Session) Step() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Process scores one frame against the current template.
func (s *Session) Process(lm *detector.PoseLandmarks) FrameResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	tpl := s.adoptLocked()
	if tpl != nil && tpl.Degenerate() && !s.degenerateReported {
		log.Printf("Template %q cannot be scored: %v", tpl.PoseID, pose.ErrDegenerateTemplate)
		s.degenerateReported = true
	}

	return ProcessFrame(lm, tpl, s.state)
}

// CompleteStep reports the stable score of the current step and clears
// the buffers for the next one.
func (s *Session) CompleteStep() StepResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.adoptLocked()

	var out StepResult
	if s.active != nil {
		out.PoseID = s.active.PoseID
	}
	out.Frames = s.state.Aggregator.Len()
	out.Scores = s.state.Aggregator.Scores()
	if v, ok := s.state.Aggregator.Stable(); ok {
		out.StableScore = &v
	}

	s.state.Reset()
	s.step++
	return out
}

// adoptLocked makes the pending template active, starting from clean
// buffers when it changed. s.mu must be held.
func (s *Session) adoptLocked() *pose.Template {
	tpl := s.pending.Load()
	if tpl != s.active {
		s.state.Reset()
		s.active = tpl
		s.degenerateReported = false
	}
	return tpl
}

// Reset discards all buffered state, as when the camera stops.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Reset()
}
