package landmark_test

import (
	"testing"

	"github.com/okian/powerscan/internal/domain/landmark"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFrameDetected(t *testing.T) {
	Convey("Given detector output of varying length", t, func() {
		Convey("Then a full frame counts as a detection", func() {
			So(make(landmark.Frame, landmark.MinPoints).Detected(), ShouldBeTrue)
			So(make(landmark.Frame, landmark.MinPoints+10).Detected(), ShouldBeTrue)
		})

		Convey("And a short or empty frame does not", func() {
			So(landmark.Frame(nil).Detected(), ShouldBeFalse)
			So(make(landmark.Frame, landmark.MinPoints-1).Detected(), ShouldBeFalse)
		})
	})
}

func TestGeometry(t *testing.T) {
	Convey("Given two keypoints", t, func() {
		a := landmark.Point{X: 0, Y: 0}
		b := landmark.Point{X: 3, Y: 4}

		Convey("Then Dist is the Euclidean distance", func() {
			So(landmark.Dist(a, b), ShouldEqual, 5)
			So(landmark.Dist(a, a), ShouldEqual, 0)
		})

		Convey("And Mid is the midpoint", func() {
			m := landmark.Mid(a, b)
			So(m.X, ShouldEqual, 1.5)
			So(m.Y, ShouldEqual, 2)
		})
	})
}

func TestMotionJoints(t *testing.T) {
	Convey("Given the tracked joint subset", t, func() {
		Convey("Then every index fits inside a detected frame", func() {
			for _, idx := range landmark.MotionJoints {
				So(idx, ShouldBeLessThan, landmark.MinPoints)
			}
		})

		Convey("And the facial points are not tracked except the nose", func() {
			for _, idx := range landmark.MotionJoints {
				if idx != landmark.Nose {
					So(idx, ShouldBeGreaterThanOrEqualTo, landmark.FacePoints)
				}
			}
		})
	})
}
