// Package scoring computes the combat-power breakdown for a keypoint frame.
//
// The engine is deterministic and total: any input, including frames with no
// detection, yields a valid breakdown. The only carried state is the motion
// smoothing (previous frame, previous timestamp, speed EMA); everything else
// is recomputed per frame.
package scoring

import (
	"math"
	"time"

	"github.com/okian/powerscan/internal/domain/landmark"
)

// epsHeight guards the height normalization against division by near-zero.
const epsHeight = 1e-6

// minMotionDT floors the frame-to-frame elapsed time used by the motion
// feature, mirroring the 1ms floor of the reference implementation.
const minMotionDT = 0.001

// Constants bound every scoring output to [Baseline, MaxTotal] regardless of
// how the individual weights are tuned.
type Constants struct {
	Baseline int64
	MaxTotal int64

	// Clip ceilings applied before exponentiation.
	ClipFeature float64 // reach/shoulder/leg ratio ceiling
	ClipSpeed   float64 // height-normalized velocity ceiling

	// Mix weights; the three sum to 1.
	WeightBase   float64
	WeightStyle  float64
	WeightMotion float64

	// Style internals.
	WeightPoseInStyle float64
	WeightExprInStyle float64

	// Base internals; the three sum to 1.
	WeightReachInBase    float64
	WeightShoulderInBase float64
	WeightLegInBase      float64

	// Diminishing-returns exponents per base feature.
	ExpReach    float64
	ExpShoulder float64
	ExpLeg      float64

	// Normalization spans for the style features.
	PoseSpan float64
	ExprSpan float64

	// Speed EMA blend factor.
	SpeedAlpha float64

	// Per-gender multiplier; unknown selections score neutral (1.0).
	GenderMultiplier map[string]float64
}

// DefaultConstants returns the tuned kiosk constants (100k baseline, 500k cap).
func DefaultConstants() Constants {
	return Constants{
		Baseline:             100_000,
		MaxTotal:             500_000,
		ClipFeature:          1.6,
		ClipSpeed:            2.0,
		WeightBase:           0.60,
		WeightStyle:          0.25,
		WeightMotion:         0.15,
		WeightPoseInStyle:    0.60,
		WeightExprInStyle:    0.40,
		WeightReachInBase:    0.40,
		WeightShoulderInBase: 0.35,
		WeightLegInBase:      0.25,
		ExpReach:             0.90,
		ExpShoulder:          0.85,
		ExpLeg:               0.80,
		PoseSpan:             0.5,
		ExprSpan:             0.05,
		SpeedAlpha:           0.4,
		GenderMultiplier: map[string]float64{
			"male":   1.00,
			"female": 1.09,
		},
	}
}

// Breakdown is one scored frame. The integer fields are the point
// allocations shown on the kiosk; the float fields are the raw measurements
// behind them.
type Breakdown struct {
	BasePower       int64 `json:"base_power"`
	PoseBonus       int64 `json:"pose_bonus"`
	ExpressionBonus int64 `json:"expression_bonus"`
	SpeedBonus      int64 `json:"speed_bonus"`
	TotalPower      int64 `json:"total_power"`

	Height     float64 `json:"height"`
	Reach      float64 `json:"reach"`
	Shoulder   float64 `json:"shoulder"`
	Expression float64 `json:"expression"`
	Pose       float64 `json:"pose"`
}

// Engine scores frames. One engine per measurement stream: the smoothing
// state must not be shared across connections or players.
type Engine struct {
	c      Constants
	gender string

	prev    landmark.Frame
	prevAt  time.Time
	hasPrev bool
	ema     float64
}

// NewEngine creates an engine with configuration options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		c: DefaultConstants(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetGender records the player's gender selection for the multiplier.
// An empty or unknown value scores neutral.
func (e *Engine) SetGender(gender string) {
	e.gender = gender
}

// Reset clears the motion smoothing state between measurement windows.
func (e *Engine) Reset() {
	e.prev = nil
	e.hasPrev = false
	e.ema = 0
}

// SmoothingState exposes the current speed EMA.
func (e *Engine) SmoothingState() float64 {
	return e.ema
}

// Baseline returns the degraded breakdown used when no detection is
// available: all bonuses zero, total pinned at the baseline constant.
func (e *Engine) Baseline() Breakdown {
	return Breakdown{TotalPower: e.c.Baseline}
}

// Score computes the breakdown for one frame. It never fails: a frame with
// fewer than the required keypoints yields the baseline breakdown and leaves
// the smoothing state untouched.
func (e *Engine) Score(f landmark.Frame, at time.Time) Breakdown {
	if !f.Detected() {
		return e.Baseline()
	}

	top := f[landmark.Nose]
	ankleMidY := (f[landmark.LeftAnkle].Y + f[landmark.RightAnkle].Y) / 2
	height := math.Abs(top.Y - ankleMidY)
	reach := landmark.Dist(f[landmark.LeftWrist], f[landmark.RightWrist])
	shoulder := landmark.Dist(f[landmark.LeftShoulder], f[landmark.RightShoulder])
	leg := landmark.Dist(f[landmark.LeftHip], f[landmark.LeftAnkle]) +
		landmark.Dist(f[landmark.RightHip], f[landmark.RightAnkle])

	// Every spatial feature is normalized by the subject's own height so the
	// score stays independent of distance to camera.
	h := math.Max(height, epsHeight)
	rN := clip01((reach / h) / e.c.ClipFeature)
	sN := clip01((shoulder / h) / e.c.ClipFeature)
	lN := clip01(((leg / h) / 2) / e.c.ClipFeature)

	spineMid := landmark.Mid(f[landmark.LeftHip], f[landmark.RightHip])
	poseN := clip01(landmark.Dist(top, spineMid) / e.c.PoseSpan)
	exprN := clip01(faceStd(f) / e.c.ExprSpan)

	motionN := e.updateMotion(f, h, at)

	baseRaw := e.c.WeightReachInBase*math.Pow(rN, e.c.ExpReach) +
		e.c.WeightShoulderInBase*math.Pow(sN, e.c.ExpShoulder) +
		e.c.WeightLegInBase*math.Pow(lN, e.c.ExpLeg)

	gmul := 1.0
	if m, ok := e.c.GenderMultiplier[e.gender]; ok {
		gmul = m
	}

	// Map each raw component onto its share of the span, then rescale
	// proportionally when the gender multiplier pushes the sum past the
	// span. The rescale is what makes MaxTotal a hard ceiling.
	span := float64(e.c.MaxTotal - e.c.Baseline)
	baseAmount := span * e.c.WeightBase * baseRaw * gmul
	poseAmount := span * e.c.WeightStyle * e.c.WeightPoseInStyle * poseN * gmul
	exprAmount := span * e.c.WeightStyle * e.c.WeightExprInStyle * exprN * gmul
	speedAmount := span * e.c.WeightMotion * motionN * gmul

	sum := baseAmount + poseAmount + exprAmount + speedAmount
	if sum > span {
		scale := span / sum
		baseAmount *= scale
		poseAmount *= scale
		exprAmount *= scale
		speedAmount *= scale
		sum = span
	}

	return Breakdown{
		BasePower:       int64(math.Round(baseAmount)),
		PoseBonus:       int64(math.Round(poseAmount)),
		ExpressionBonus: int64(math.Round(exprAmount)),
		SpeedBonus:      int64(math.Round(speedAmount)),
		TotalPower:      int64(math.Round(float64(e.c.Baseline) + sum)),
		Height:          height,
		Reach:           reach,
		Shoulder:        shoulder,
		Expression:      exprN,
		Pose:            poseN,
	}
}

// updateMotion folds the mean joint displacement since the previous frame
// into the speed EMA and returns the new smoothed value.
func (e *Engine) updateMotion(f landmark.Frame, h float64, at time.Time) float64 {
	vRaw := 0.0
	if e.hasPrev && len(e.prev) >= landmark.MinPoints {
		dt := at.Sub(e.prevAt).Seconds()
		if dt < minMotionDT {
			dt = minMotionDT
		}
		total := 0.0
		for _, i := range landmark.MotionJoints {
			total += landmark.Dist(f[i], e.prev[i])
		}
		avg := total / float64(len(landmark.MotionJoints))
		vRaw = avg / (h * dt)
	}

	prev := make(landmark.Frame, len(f))
	copy(prev, f)
	e.prev = prev
	e.prevAt = at
	e.hasPrev = true

	vN := clip01(vRaw / e.c.ClipSpeed)
	e.ema = e.c.SpeedAlpha*vN + (1-e.c.SpeedAlpha)*e.ema
	return e.ema
}

// faceStd is the standard deviation of the facial keypoint coordinates,
// x and y pooled, used as a crude expression-liveliness measure.
func faceStd(f landmark.Frame) float64 {
	vals := make([]float64, 0, landmark.FacePoints*2)
	for i := 0; i < landmark.FacePoints; i++ {
		vals = append(vals, f[i].X, f[i].Y)
	}
	mean := 0.0
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	variance := 0.0
	for _, v := range vals {
		d := v - mean
		variance += d * d
	}
	variance /= float64(len(vals))
	return math.Sqrt(variance)
}

func clip01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}
