// Package landmark contains the keypoint frame types produced by the
// external pose detector. The detector itself is a black box; this package
// only fixes the anatomical index layout and a few geometry helpers.
package landmark

import "math"

// Indices into a Frame, following the standard 33-point full-body layout.
// The first five points are facial landmarks. Ankles are 27/28; 29/30 are
// heels and must not be used for height or leg measurements.
const (
	Nose          = 0
	LeftShoulder  = 11
	RightShoulder = 12
	LeftElbow     = 13
	RightElbow    = 14
	LeftWrist     = 15
	RightWrist    = 16
	LeftHip       = 23
	RightHip      = 24
	LeftKnee      = 25
	RightKnee     = 26
	LeftAnkle     = 27
	RightAnkle    = 28
)

// FacePoints is the number of leading facial landmarks used for the
// expression measure.
const FacePoints = 5

// MinPoints is the minimum number of keypoints a frame must carry to be
// considered a detection.
const MinPoints = 33

// MotionJoints is the joint subset tracked for the frame-to-frame motion
// feature.
var MotionJoints = []int{
	Nose,
	LeftShoulder, RightShoulder,
	LeftElbow, RightElbow,
	LeftWrist, RightWrist,
	LeftHip, RightHip,
	LeftKnee, RightKnee,
	LeftAnkle, RightAnkle,
}

// Point is a single normalized 2D keypoint. Coordinates are in [0,1]
// relative to the camera frame. Visibility is the detector's confidence and
// may be zero when the detector does not report it.
type Point struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Visibility float64 `json:"visibility,omitempty"`
}

// Frame is one detector output: an ordered sequence of keypoints, or a
// short/empty slice when nothing was detected.
type Frame []Point

// Detected reports whether the frame carries enough keypoints to score.
func (f Frame) Detected() bool {
	return len(f) >= MinPoints
}

// Dist returns the Euclidean distance between two keypoints.
func Dist(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// Mid returns the midpoint of two keypoints.
func Mid(a, b Point) Point {
	return Point{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}
