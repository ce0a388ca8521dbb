package scoring_test

import (
	"testing"
	"time"

	"github.com/okian/powerscan/internal/domain/landmark"
	scoring "github.com/okian/powerscan/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

// standingFrame builds a plausible upright 33-point pose.
func standingFrame() landmark.Frame {
	f := make(landmark.Frame, landmark.MinPoints)
	for i := range f {
		f[i] = landmark.Point{X: 0.5, Y: 0.5, Visibility: 1}
	}
	f[landmark.Nose] = landmark.Point{X: 0.50, Y: 0.20, Visibility: 1}
	f[1] = landmark.Point{X: 0.48, Y: 0.19, Visibility: 1}
	f[2] = landmark.Point{X: 0.47, Y: 0.19, Visibility: 1}
	f[3] = landmark.Point{X: 0.52, Y: 0.19, Visibility: 1}
	f[4] = landmark.Point{X: 0.53, Y: 0.19, Visibility: 1}
	f[landmark.LeftShoulder] = landmark.Point{X: 0.40, Y: 0.35, Visibility: 1}
	f[landmark.RightShoulder] = landmark.Point{X: 0.60, Y: 0.35, Visibility: 1}
	f[landmark.LeftElbow] = landmark.Point{X: 0.35, Y: 0.45, Visibility: 1}
	f[landmark.RightElbow] = landmark.Point{X: 0.65, Y: 0.45, Visibility: 1}
	f[landmark.LeftWrist] = landmark.Point{X: 0.30, Y: 0.52, Visibility: 1}
	f[landmark.RightWrist] = landmark.Point{X: 0.70, Y: 0.52, Visibility: 1}
	f[landmark.LeftHip] = landmark.Point{X: 0.45, Y: 0.55, Visibility: 1}
	f[landmark.RightHip] = landmark.Point{X: 0.55, Y: 0.55, Visibility: 1}
	f[landmark.LeftKnee] = landmark.Point{X: 0.45, Y: 0.72, Visibility: 1}
	f[landmark.RightKnee] = landmark.Point{X: 0.55, Y: 0.72, Visibility: 1}
	f[landmark.LeftAnkle] = landmark.Point{X: 0.45, Y: 0.90, Visibility: 1}
	f[landmark.RightAnkle] = landmark.Point{X: 0.55, Y: 0.90, Visibility: 1}
	return f
}

func TestEngineScore(t *testing.T) {
	c := scoring.DefaultConstants()

	Convey("Given a fresh scoring engine", t, func() {
		engine := scoring.NewEngine()
		now := time.Now()

		Convey("When scoring a plausible standing frame", func() {
			bd := engine.Score(standingFrame(), now)

			Convey("Then the total stays within the configured bounds", func() {
				So(bd.TotalPower, ShouldBeGreaterThanOrEqualTo, c.Baseline)
				So(bd.TotalPower, ShouldBeLessThanOrEqualTo, c.MaxTotal)
			})

			Convey("And the total equals baseline plus the allocations", func() {
				sum := bd.BasePower + bd.PoseBonus + bd.ExpressionBonus + bd.SpeedBonus
				So(bd.TotalPower, ShouldAlmostEqual, c.Baseline+sum, 2)
			})

			Convey("And the raw measurements are populated", func() {
				So(bd.Height, ShouldAlmostEqual, 0.70, 1e-9)
				So(bd.Reach, ShouldBeGreaterThan, 0)
				So(bd.Shoulder, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When the frame is below the minimum keypoint count", func() {
			short := make(landmark.Frame, 10)
			bd := engine.Score(short, now)

			Convey("Then it degrades to exactly the baseline", func() {
				So(bd.TotalPower, ShouldEqual, c.Baseline)
				So(bd.BasePower, ShouldEqual, 0)
				So(bd.PoseBonus, ShouldEqual, 0)
				So(bd.ExpressionBonus, ShouldEqual, 0)
				So(bd.SpeedBonus, ShouldEqual, 0)
			})

			Convey("And the smoothing state is untouched", func() {
				So(engine.SmoothingState(), ShouldEqual, 0)
			})
		})

		Convey("When the frame is nil", func() {
			bd := engine.Score(nil, now)

			Convey("Then it still returns the baseline breakdown", func() {
				So(bd.TotalPower, ShouldEqual, c.Baseline)
			})
		})

		Convey("When every landmark sits at the origin", func() {
			zero := make(landmark.Frame, landmark.MinPoints)
			bd := engine.Score(zero, now)

			Convey("Then the epsilon floor keeps the result at baseline", func() {
				So(bd.TotalPower, ShouldEqual, c.Baseline)
			})
		})
	})

	Convey("Given the reach ratio sits at the clip ceiling", t, func() {
		atCeiling := standingFrame()
		// height 0.7, ceiling 1.6 -> reach 1.12
		atCeiling[landmark.LeftWrist] = landmark.Point{X: 0.0, Y: 0.52, Visibility: 1}
		atCeiling[landmark.RightWrist] = landmark.Point{X: 1.12, Y: 0.52, Visibility: 1}

		beyond := standingFrame()
		beyond[landmark.LeftWrist] = landmark.Point{X: -0.5, Y: 0.52, Visibility: 1}
		beyond[landmark.RightWrist] = landmark.Point{X: 1.62, Y: 0.52, Visibility: 1}

		Convey("When scoring a frame past the ceiling", func() {
			a := scoring.NewEngine().Score(atCeiling, time.Now())
			b := scoring.NewEngine().Score(beyond, time.Now())

			Convey("Then clipping caps the base contribution at the ceiling value", func() {
				So(b.BasePower, ShouldEqual, a.BasePower)
			})
		})
	})

	Convey("Given sustained constant displacement between frames", t, func() {
		engine := scoring.NewEngine()
		base := standingFrame()
		shifted := standingFrame()
		for i := range shifted {
			shifted[i].X += 0.05
		}

		now := time.Now()
		engine.Score(base, now)

		Convey("When the same delta repeats", func() {
			var states []float64
			frames := []landmark.Frame{shifted, base, shifted, base, shifted, base}
			for i, f := range frames {
				engine.Score(f, now.Add(time.Duration(i+1)*100*time.Millisecond))
				states = append(states, engine.SmoothingState())
			}

			Convey("Then the EMA approaches the clipped input monotonically", func() {
				for i := 1; i < len(states); i++ {
					So(states[i], ShouldBeGreaterThanOrEqualTo, states[i-1])
				}
				So(states[len(states)-1], ShouldBeLessThanOrEqualTo, 1.0)
			})
		})

		Convey("When the engine is reset", func() {
			engine.Reset()

			Convey("Then the smoothing state is cleared", func() {
				So(engine.SmoothingState(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a gender multiplier", t, func() {
		frame := standingFrame()

		Convey("When the same frame is scored as female and as male", func() {
			male := scoring.NewEngine(scoring.WithGender("male")).Score(frame, time.Now())
			female := scoring.NewEngine(scoring.WithGender("female")).Score(frame, time.Now())

			Convey("Then the female multiplier lifts the total without breaking the cap", func() {
				So(female.TotalPower, ShouldBeGreaterThanOrEqualTo, male.TotalPower)
				So(female.TotalPower, ShouldBeLessThanOrEqualTo, c.MaxTotal)
			})
		})

		Convey("When the selection is unknown", func() {
			neutral := scoring.NewEngine(scoring.WithGender("other")).Score(frame, time.Now())
			male := scoring.NewEngine(scoring.WithGender("male")).Score(frame, time.Now())

			Convey("Then it scores neutral", func() {
				So(neutral.TotalPower, ShouldEqual, male.TotalPower)
			})
		})
	})

	Convey("Given a deliberately over-tuned multiplier", t, func() {
		hot := scoring.DefaultConstants()
		hot.GenderMultiplier = map[string]float64{"female": 10.0}
		engine := scoring.NewEngine(scoring.WithConstants(hot), scoring.WithGender("female"))

		wide := standingFrame()
		wide[landmark.LeftWrist] = landmark.Point{X: -0.5, Y: 0.52, Visibility: 1}
		wide[landmark.RightWrist] = landmark.Point{X: 1.62, Y: 0.52, Visibility: 1}

		Convey("When the allocations overflow the span", func() {
			bd := engine.Score(wide, time.Now())

			Convey("Then the proportional rescale pins the total at the cap", func() {
				So(bd.TotalPower, ShouldBeLessThanOrEqualTo, hot.MaxTotal)
				sum := bd.BasePower + bd.PoseBonus + bd.ExpressionBonus + bd.SpeedBonus
				So(sum, ShouldAlmostEqual, hot.MaxTotal-hot.Baseline, 2)
			})
		})
	})
}

func TestEngineDeterminism(t *testing.T) {
	Convey("Given two engines with identical configuration", t, func() {
		a := scoring.NewEngine()
		b := scoring.NewEngine()
		at := time.Unix(1_700_000_000, 0)

		Convey("When they score the same frame sequence", func() {
			frames := []landmark.Frame{standingFrame(), standingFrame(), standingFrame()}
			var last [2]scoring.Breakdown
			for i, f := range frames {
				ts := at.Add(time.Duration(i) * 33 * time.Millisecond)
				last[0] = a.Score(f, ts)
				last[1] = b.Score(f, ts)
			}

			Convey("Then the breakdowns are identical", func() {
				So(last[0], ShouldResemble, last[1])
			})
		})
	})
}
