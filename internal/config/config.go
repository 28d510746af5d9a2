// Package config loads the posecoach YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ayusman/posecoach/internal/detector"
	"github.com/ayusman/posecoach/internal/scoring"
	"github.com/ayusman/posecoach/internal/session"
)

// Config is the complete posecoach configuration.
type Config struct {
	DataDir      string         `yaml:"data_dir"`      // database location, default ~/.posecoach
	PluginDir    string         `yaml:"plugin_dir"`    // step hook plugins
	TemplatesDir string         `yaml:"templates_dir"` // JSON templates imported at startup
	Server       ServerConfig   `yaml:"server"`
	Capture      CaptureConfig  `yaml:"capture"`
	Detector     DetectorConfig `yaml:"detector"`
	Scoring      ScoringConfig  `yaml:"scoring"`
}

// ServerConfig contains HTTP settings.
type ServerConfig struct {
	Addr      string `yaml:"addr"`
	StaticDir string `yaml:"static_dir"`
}

// CaptureConfig contains camera and motion settings.
type CaptureConfig struct {
	CameraID        int     `yaml:"camera_id"`
	IdleFPS         int     `yaml:"idle_fps"`
	ActiveFPS       int     `yaml:"active_fps"`
	IdleTimeoutMs   int     `yaml:"idle_timeout_ms"`
	MotionThreshold float64 `yaml:"motion_threshold"` // percent of changed pixels
}

// DetectorConfig contains pose model settings.
type DetectorConfig struct {
	ModelComplexity        int     `yaml:"model_complexity"`
	MinDetectionConfidence float64 `yaml:"min_detection_confidence"`
	MinTrackingConfidence  float64 `yaml:"min_tracking_confidence"`
}

// ScoringConfig contains the pipeline tuning.
type ScoringConfig struct {
	VisibilityThreshold float64           `yaml:"visibility_threshold"`
	SmoothingWindow     int               `yaml:"smoothing_window"`
	MaterialThreshold   float64           `yaml:"material_threshold"`
	MaxHints            int               `yaml:"max_hints"`
	Coverage            CoverageConfig    `yaml:"coverage"`
	Aggregation         AggregationConfig `yaml:"aggregation"`
}

// CoverageConfig is the coverage multiplier policy.
type CoverageConfig struct {
	Enabled bool    `yaml:"enabled"`
	Floor   float64 `yaml:"floor"`
	Full    float64 `yaml:"full"`
}

// AggregationConfig is the stable step score policy.
type AggregationConfig struct {
	Capacity    int     `yaml:"capacity"`
	MinCoverage float64 `yaml:"min_coverage"`
	TopFraction float64 `yaml:"top_fraction"`
}

// Default returns the built-in configuration.
func Default() *Config {
	det := detector.DefaultConfig()
	sess := session.DefaultConfig()

	return &Config{
		PluginDir: "plugins",
		Server: ServerConfig{
			Addr: ":8080",
		},
		Capture: CaptureConfig{
			CameraID:        0,
			IdleFPS:         5,
			ActiveFPS:       15,
			IdleTimeoutMs:   2000,
			MotionThreshold: 1.0,
		},
		Detector: DetectorConfig{
			ModelComplexity:        det.ModelComplexity,
			MinDetectionConfidence: det.MinConfidence,
			MinTrackingConfidence:  det.MinTrackingConf,
		},
		Scoring: ScoringConfig{
			VisibilityThreshold: sess.Scoring.VisibilityThreshold,
			SmoothingWindow:     sess.SmoothingWindow,
			MaterialThreshold:   sess.MaterialThreshold,
			MaxHints:            sess.MaxHints,
			Coverage: CoverageConfig{
				Enabled: sess.Scoring.Coverage.Enabled,
				Floor:   sess.Scoring.Coverage.Floor,
				Full:    sess.Scoring.Coverage.Full,
			},
			Aggregation: AggregationConfig{
				Capacity:    sess.Aggregator.Capacity,
				MinCoverage: sess.Aggregator.MinCoverage,
				TopFraction: sess.Aggregator.TopFraction,
			},
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Capture.IdleFPS <= 0 || c.Capture.ActiveFPS <= 0 {
		return fmt.Errorf("capture fps must be > 0")
	}
	if c.Capture.IdleFPS > c.Capture.ActiveFPS {
		return fmt.Errorf("capture.idle_fps must not exceed capture.active_fps")
	}
	if c.Detector.ModelComplexity < 0 || c.Detector.ModelComplexity > 2 {
		return fmt.Errorf("detector.model_complexity must be 0, 1 or 2")
	}

	s := c.Scoring
	if err := unit("scoring.visibility_threshold", s.VisibilityThreshold); err != nil {
		return err
	}
	if s.SmoothingWindow <= 0 {
		return fmt.Errorf("scoring.smoothing_window must be > 0")
	}
	if err := unit("scoring.material_threshold", s.MaterialThreshold); err != nil {
		return err
	}
	if s.MaxHints <= 0 {
		return fmt.Errorf("scoring.max_hints must be > 0")
	}
	if s.Coverage.Enabled && (s.Coverage.Floor < 0 || s.Coverage.Full > 1 || s.Coverage.Floor >= s.Coverage.Full) {
		return fmt.Errorf("scoring.coverage must satisfy 0 <= floor < full <= 1")
	}
	if s.Aggregation.Capacity <= 0 {
		return fmt.Errorf("scoring.aggregation.capacity must be > 0")
	}
	if err := unit("scoring.aggregation.min_coverage", s.Aggregation.MinCoverage); err != nil {
		return err
	}
	if s.Aggregation.TopFraction <= 0 || s.Aggregation.TopFraction > 1 {
		return fmt.Errorf("scoring.aggregation.top_fraction must be in (0, 1]")
	}
	return nil
}

func unit(name string, v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("%s must be in [0, 1], got %v", name, v)
	}
	return nil
}

// SessionConfig converts the scoring section into pipeline tuning.
func (c *Config) SessionConfig() session.Config {
	s := c.Scoring
	return session.Config{
		Scoring: scoring.Config{
			VisibilityThreshold: s.VisibilityThreshold,
			Coverage: scoring.CoveragePolicy{
				Enabled: s.Coverage.Enabled,
				Floor:   s.Coverage.Floor,
				Full:    s.Coverage.Full,
			},
		},
		SmoothingWindow: s.SmoothingWindow,
		Aggregator: scoring.AggregatorConfig{
			Capacity:    s.Aggregation.Capacity,
			MinCoverage: s.Aggregation.MinCoverage,
			TopFraction: s.Aggregation.TopFraction,
		},
		MaterialThreshold: s.MaterialThreshold,
		MaxHints:          s.MaxHints,
	}
}

// DetectorConfig converts the detector section.
func (c *Config) DetectorConfig() detector.Config {
	return detector.Config{
		ModelComplexity: c.Detector.ModelComplexity,
		MinConfidence:   c.Detector.MinDetectionConfidence,
		MinTrackingConf: c.Detector.MinTrackingConfidence,
	}
}
