package session

import (
	"time"

	"github.com/okian/powerscan/internal/domain/scoring"
)

// Option applies a configuration option to a Session.
type Option func(*Session)

// WithMeasureDuration sets the measurement window length.
func WithMeasureDuration(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.measureDur = d
		}
	}
}

// WithCameraRelease registers the hook invoked when the camera is released.
// It fires at most once per acquisition.
func WithCameraRelease(fn func()) Option {
	return func(s *Session) {
		s.releaseCamera = fn
	}
}

// WithTransitionHook registers an observer for phase changes.
func WithTransitionHook(fn TransitionHook) Option {
	return func(s *Session) {
		s.onTransition = fn
	}
}

// WithBaseline sets the breakdown used when a measurement window elapses
// without any detector frames.
func WithBaseline(bd scoring.Breakdown) Option {
	return func(s *Session) {
		s.baseline = bd
	}
}
