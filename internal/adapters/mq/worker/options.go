// Package worker drains the frame telemetry queue into the frame log.
package worker

import (
	"github.com/okian/powerscan/pkg/logger"
)

// Option applies a configuration option to the LogWorker.
type Option func(*LogWorker)

// WithName sets the worker name for identification and logging.
func WithName(name string) Option {
	return func(w *LogWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(logger logger.Logger) Option {
	return func(w *LogWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}
