package ws

import (
	"github.com/okian/powerscan/internal/domain/scoring"
	"github.com/okian/powerscan/pkg/logger"
)

// Option applies a configuration option to the Handler.
type Option func(*Handler)

// WithEngineFactory sets the per-connection scoring engine constructor.
func WithEngineFactory(fn func() *scoring.Engine) Option {
	return func(h *Handler) {
		if fn != nil {
			h.newEngine = fn
		}
	}
}

// WithSessionBinder wires frames carrying a session id to their session.
func WithSessionBinder(b SessionBinder) Option {
	return func(h *Handler) {
		h.sessions = b
	}
}

// WithFrameSink wires scored frames to the telemetry queue.
func WithFrameSink(s FrameSink) Option {
	return func(h *Handler) {
		h.frames = s
	}
}

// WithReadLimit bounds a single websocket message in bytes.
func WithReadLimit(limit int64) Option {
	return func(h *Handler) {
		if limit > 0 {
			h.readLimit = limit
		}
	}
}

// WithLogger sets a custom logger for the handler.
func WithLogger(l logger.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.log = l
		}
	}
}
