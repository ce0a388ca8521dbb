// Package scoring computes the combat-power breakdown for a keypoint frame.
package scoring

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithConstants replaces the default scoring constants.
func WithConstants(c Constants) Option {
	return func(e *Engine) {
		if c.MaxTotal > c.Baseline {
			e.c = c
		}
	}
}

// WithGender sets the initial gender selection for the multiplier.
func WithGender(gender string) Option {
	return func(e *Engine) {
		e.gender = gender
	}
}
