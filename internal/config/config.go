// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Flat koanf tags so env vars map one-to-one onto fields; the scoring
//   block nests under `scoring` and is file-configurable.
// - Provide New() to build a Config with defaults; Load() layers file/env.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"github.com/okian/powerscan/internal/domain/scoring"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DataDir, when set, prefixes the ranking, asset and frame-log paths.
	DataDir string `koanf:"data_dir"`

	// StaticDir serves the kiosk page. Empty disables static serving.
	StaticDir string `koanf:"static_dir"`

	// RankingFile is the CSV file holding ranked results.
	RankingFile string `koanf:"ranking_file"`

	// AssetDir stores snapshot images referenced by the ranking.
	AssetDir string `koanf:"asset_dir"`

	// FrameLogFile receives per-frame scoring telemetry.
	FrameLogFile string `koanf:"frame_log_file"`

	// TopNLimit caps GET /api/get_ranking.
	TopNLimit int `koanf:"top_n_limit"`

	// MeasureSeconds is the length of the measurement window.
	MeasureSeconds int `koanf:"measure_seconds"`

	// SessionTTLMinutes prunes sessions idle longer than this.
	SessionTTLMinutes int `koanf:"session_ttl_minutes"`

	// QueueSize bounds the in-memory telemetry queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of frame-log workers.
	WorkerCount int `koanf:"worker_count"`

	// WSReadLimit bounds a single websocket message in bytes.
	WSReadLimit int64 `koanf:"ws_read_limit"`

	// Scoring overrides the engine tuning. Zero fields keep the defaults.
	Scoring ScoringConfig `koanf:"scoring"`
}

// ScoringConfig mirrors the engine constants for file-based tuning. Any zero
// field falls back to the built-in value.
type ScoringConfig struct {
	Baseline             int64              `koanf:"baseline"`
	MaxTotal             int64              `koanf:"max_total"`
	ClipFeature          float64            `koanf:"clip_feature"`
	ClipSpeed            float64            `koanf:"clip_speed"`
	WeightBase           float64            `koanf:"weight_base"`
	WeightStyle          float64            `koanf:"weight_style"`
	WeightMotion         float64            `koanf:"weight_motion"`
	WeightPoseInStyle    float64            `koanf:"weight_pose_in_style"`
	WeightExprInStyle    float64            `koanf:"weight_expr_in_style"`
	WeightReachInBase    float64            `koanf:"weight_reach_in_base"`
	WeightShoulderInBase float64            `koanf:"weight_shoulder_in_base"`
	WeightLegInBase      float64            `koanf:"weight_leg_in_base"`
	ExpReach             float64            `koanf:"exp_reach"`
	ExpShoulder          float64            `koanf:"exp_shoulder"`
	ExpLeg               float64            `koanf:"exp_leg"`
	PoseSpan             float64            `koanf:"pose_span"`
	ExprSpan             float64            `koanf:"expr_span"`
	SpeedAlpha           float64            `koanf:"speed_alpha"`
	GenderMultipliers    map[string]float64 `koanf:"gender_multipliers"`
}

// Constants overlays the configured values onto the engine defaults.
func (s ScoringConfig) Constants() scoring.Constants {
	c := scoring.DefaultConstants()
	if s.Baseline > 0 {
		c.Baseline = s.Baseline
	}
	if s.MaxTotal > 0 {
		c.MaxTotal = s.MaxTotal
	}
	if s.ClipFeature > 0 {
		c.ClipFeature = s.ClipFeature
	}
	if s.ClipSpeed > 0 {
		c.ClipSpeed = s.ClipSpeed
	}
	if s.WeightBase > 0 {
		c.WeightBase = s.WeightBase
	}
	if s.WeightStyle > 0 {
		c.WeightStyle = s.WeightStyle
	}
	if s.WeightMotion > 0 {
		c.WeightMotion = s.WeightMotion
	}
	if s.WeightPoseInStyle > 0 {
		c.WeightPoseInStyle = s.WeightPoseInStyle
	}
	if s.WeightExprInStyle > 0 {
		c.WeightExprInStyle = s.WeightExprInStyle
	}
	if s.WeightReachInBase > 0 {
		c.WeightReachInBase = s.WeightReachInBase
	}
	if s.WeightShoulderInBase > 0 {
		c.WeightShoulderInBase = s.WeightShoulderInBase
	}
	if s.WeightLegInBase > 0 {
		c.WeightLegInBase = s.WeightLegInBase
	}
	if s.ExpReach > 0 {
		c.ExpReach = s.ExpReach
	}
	if s.ExpShoulder > 0 {
		c.ExpShoulder = s.ExpShoulder
	}
	if s.ExpLeg > 0 {
		c.ExpLeg = s.ExpLeg
	}
	if s.PoseSpan > 0 {
		c.PoseSpan = s.PoseSpan
	}
	if s.ExprSpan > 0 {
		c.ExprSpan = s.ExprSpan
	}
	if s.SpeedAlpha > 0 {
		c.SpeedAlpha = s.SpeedAlpha
	}
	if len(s.GenderMultipliers) > 0 {
		c.GenderMultiplier = s.GenderMultipliers
	}
	return c
}

// New creates a Config with sensible kiosk defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":9080",
		StaticDir:         "site",
		RankingFile:       "ranking.csv",
		AssetDir:          "assets",
		FrameLogFile:      "power_scan_log.csv",
		TopNLimit:         100,
		MeasureSeconds:    10,
		SessionTTLMinutes: 30,
		QueueSize:         10_000,
		WorkerCount:       2,
		WSReadLimit:       4 << 20,
	}
}
