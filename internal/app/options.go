package app

import (
	"time"

	"github.com/okian/powerscan/internal/domain/scoring"
	"github.com/okian/powerscan/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithRankingPath sets the CSV file holding the ranked results.
func WithRankingPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.rankingPath = path
		}
	}
}

// WithAssetDir sets the directory for snapshot images.
func WithAssetDir(dir string) Option {
	return func(s *Service) {
		if dir != "" {
			s.assetDir = dir
		}
	}
}

// WithFrameLogPath sets the CSV file receiving frame telemetry.
func WithFrameLogPath(path string) Option {
	return func(s *Service) {
		if path != "" {
			s.frameLogPath = path
		}
	}
}

// WithTopNLimit caps how many records a ranking query may return.
func WithTopNLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.topNLimit = n
		}
	}
}

// WithQueueSize sets the telemetry queue capacity.
func WithQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.queueSize = n
		}
	}
}

// WithWorkerCount sets how many log workers drain the telemetry queue.
func WithWorkerCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workerCount = n
		}
	}
}

// WithMeasureDuration sets the measurement window length for new sessions.
func WithMeasureDuration(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.measureDur = d
		}
	}
}

// WithSessionTTL sets how long an untouched session survives before pruning.
func WithSessionTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.sessionTTL = d
		}
	}
}

// WithScoringConstants overrides the scoring tuning for every engine the
// service hands out.
func WithScoringConstants(c scoring.Constants) Option {
	return func(s *Service) {
		s.constants = c
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
