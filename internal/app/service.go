// Package app provides the core kiosk service that implements the
// dependencies required by the HTTP API and the landmark stream.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/okian/powerscan/internal/adapters/assets"
	framequeue "github.com/okian/powerscan/internal/adapters/mq/queue"
	workerpool "github.com/okian/powerscan/internal/adapters/mq/worker"
	"github.com/okian/powerscan/internal/adapters/repository"
	"github.com/okian/powerscan/internal/domain/scoring"
	"github.com/okian/powerscan/internal/domain/session"
	"github.com/okian/powerscan/internal/framelog"
	"github.com/okian/powerscan/pkg/logger"
	"github.com/okian/powerscan/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultTopNLimit     = 100
	defaultQueueSize     = 10000
	defaultWorkerCount   = 2
	defaultSessionTTL    = 30 * time.Minute
	pruneInterval        = time.Minute
	poolShutdownTimeout  = 10 * time.Second
	defaultRankingFile   = "ranking.csv"
	defaultAssetDir      = "assets"
	defaultFrameLogFile  = "power_scan_log.csv"
	defaultMeasureWindow = 10 * time.Second
)

// Command is one session command arriving over the API.
type Command struct {
	Name       string // select_gender, begin_measurement, confirm_name, cancel_name, exit, consume_results
	Gender     string
	PlayerName string
}

// CommandOutcome is what a session command produced: the new state, plus the
// finalized player (confirm_name) or the full result set (consume_results).
type CommandOutcome struct {
	State   session.Snapshot
	Player  *session.PlayerResult
	Results []session.PlayerResult
}

// ErrUnknownCommand rejects commands the session surface does not know.
var ErrUnknownCommand = errors.New("unknown session command")

// Service wires the result store, asset store, session manager and the
// telemetry pipeline behind one facade.
type Service struct {
	mu sync.RWMutex

	// saveMu serializes mutations that span the record store and the asset
	// directory, so collision probing and delete cascades never interleave.
	saveMu sync.Mutex

	store    *repository.CSVStore
	assets   *assets.Store
	sessions *session.Manager
	queue    framequeue.Queue
	pool     *workerpool.Pool
	frameLog *framelog.Log

	// Configuration
	rankingPath  string
	assetDir     string
	frameLogPath string
	topNLimit    int
	queueSize    int
	workerCount  int
	measureDur   time.Duration
	sessionTTL   time.Duration
	constants    scoring.Constants

	// State
	started bool
	stopCh  chan struct{}

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		rankingPath:  defaultRankingFile,
		assetDir:     defaultAssetDir,
		frameLogPath: defaultFrameLogFile,
		topNLimit:    defaultTopNLimit,
		queueSize:    defaultQueueSize,
		workerCount:  defaultWorkerCount,
		measureDur:   defaultMeasureWindow,
		sessionTTL:   defaultSessionTTL,
		constants:    scoring.DefaultConstants(),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("app")
	}

	s.logger.Info(ctx, "starting kiosk service...")

	store, err := repository.NewCSVStore(repository.WithPath(s.rankingPath))
	if err != nil {
		return fmt.Errorf("open result store: %w", err)
	}
	s.store = store

	assetStore, err := assets.NewStore(assets.WithDir(s.assetDir))
	if err != nil {
		return fmt.Errorf("open asset store: %w", err)
	}
	s.assets = assetStore

	frameLog, err := framelog.New(framelog.WithPath(s.frameLogPath))
	if err != nil {
		return fmt.Errorf("open frame log: %w", err)
	}
	s.frameLog = frameLog

	s.queue = framequeue.NewInMemoryQueue(
		framequeue.WithCapacity(s.queueSize),
		framequeue.WithBufferSize(s.queueSize),
	)
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.frameLog)
	s.pool.Start(ctx)

	s.sessions = session.NewManager(
		session.WithMeasureDuration(s.measureDur),
		session.WithBaseline(scoring.Breakdown{TotalPower: s.constants.Baseline}),
		session.WithTransitionHook(func(from, to session.Phase) {
			metrics.RecordSessionTransition(string(from), string(to))
		}),
	)
	go s.pruneLoop(ctx)

	s.started = true
	metrics.UpdateRecordCount(s.store.Count(ctx))
	s.logger.Info(ctx, "kiosk service started",
		logger.String("ranking", s.rankingPath),
		logger.String("assets", s.assetDir),
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping kiosk service...")

	if s.queue != nil {
		_ = s.queue.Close()
	}
	if s.pool != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
		_ = s.pool.Shutdown(shutdownCtx)
		cancel()
	}
	if s.frameLog != nil {
		_ = s.frameLog.Close()
	}

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}

	s.started = false
	s.logger.Info(ctx, "kiosk service stopped")
}

// pruneLoop drops sessions whose player walked away.
func (s *Service) pruneLoop(ctx context.Context) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if n := s.sessions.PruneIdle(s.sessionTTL); n > 0 {
				metrics.RecordSessionsPruned(n)
				s.logger.Info(ctx, "pruned idle sessions", logger.Int("count", n))
			}
			metrics.UpdateActiveSessions(s.sessions.Count())
		}
	}
}

// EngineFactory returns a constructor for per-connection scoring engines
// carrying the configured constants.
func (s *Service) EngineFactory() func() *scoring.Engine {
	constants := s.constants
	return func() *scoring.Engine {
		return scoring.NewEngine(scoring.WithConstants(constants))
	}
}

// SaveResult persists a finalized result. The image is optional: an empty
// data URL stores no snapshot, and an undecodable one is logged and dropped
// while the record is still saved. The saved image filename comes back with
// the record.
func (s *Service) SaveResult(ctx context.Context, name string, score int64, imageDataURL string) (repository.Record, string, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	return s.saveResultLocked(ctx, name, score, imageDataURL)
}

// saveResultLocked is SaveResult without the lock, for callers already
// holding saveMu.
func (s *Service) saveResultLocked(ctx context.Context, name string, score int64, imageDataURL string) (repository.Record, string, error) {
	imageFile := ""
	if imageDataURL != "" {
		saved, err := s.assets.SaveDataURL(imageDataURL, name)
		switch {
		case err == nil:
			imageFile = saved
			metrics.RecordAssetWrite()
		case errors.Is(err, assets.ErrDecode):
			// The record still matters even when the snapshot is garbage.
			metrics.RecordAssetError()
			s.logger.Warn(ctx, "snapshot decode failed; saving without image",
				logger.String("name", name), logger.Error(err))
		default:
			metrics.RecordAssetError()
			metrics.RecordSaveError()
			return repository.Record{}, "", err
		}
	}

	rec, err := s.store.Insert(ctx, name, score, imageFile)
	if err != nil {
		metrics.RecordSaveError()
		if imageFile != "" {
			// The record never existed, so the asset must not either.
			if rmErr := s.assets.Remove(imageFile); rmErr != nil {
				s.logger.Warn(ctx, "orphaned snapshot cleanup failed",
					logger.String("image", imageFile), logger.Error(rmErr))
			}
		}
		return repository.Record{}, "", err
	}

	metrics.RecordResultSaved()
	metrics.UpdateRecordCount(s.store.Count(ctx))
	s.logger.Info(ctx, "result saved",
		logger.Int64("id", rec.ID),
		logger.String("name", rec.Name),
		logger.Int64("score", rec.Score),
		logger.String("image", imageFile),
	)
	return rec, imageFile, nil
}

// Ranking returns the top-N records. n <= 0 or anything above the configured
// limit collapses to the limit.
func (s *Service) Ranking(ctx context.Context, n int) ([]repository.Record, error) {
	if n <= 0 || n > s.topNLimit {
		n = s.topNLimit
	}
	return s.store.TopN(ctx, n)
}

// DeleteResult removes a record and cascades to its snapshot image. Deleting
// an unknown id reports ok=false with no error. An asset removal failure is
// logged; the record deletion stands.
func (s *Service) DeleteResult(ctx context.Context, id int64) (bool, error) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	rec, ok, err := s.store.Delete(ctx, id)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if rec.ImageFile != "" {
		if rmErr := s.assets.Remove(rec.ImageFile); rmErr != nil {
			s.logger.Warn(ctx, "snapshot cleanup failed after delete",
				logger.Int64("id", id), logger.String("image", rec.ImageFile), logger.Error(rmErr))
		}
	}
	metrics.RecordResultDeleted()
	metrics.UpdateRecordCount(s.store.Count(ctx))
	return true, nil
}

// CreateSession starts a play-through and returns its initial state.
func (s *Service) CreateSession(mode session.Mode) (session.Snapshot, error) {
	sess, err := s.sessions.Create(mode)
	if err != nil {
		return session.Snapshot{}, err
	}
	metrics.UpdateActiveSessions(s.sessions.Count())
	return sess.Snapshot(), nil
}

// RestoreSession validates and registers a serialized session state.
func (s *Service) RestoreSession(snap session.Snapshot) (session.Snapshot, error) {
	sess, err := s.sessions.Restore(snap)
	if err != nil {
		return session.Snapshot{}, err
	}
	metrics.UpdateActiveSessions(s.sessions.Count())
	return sess.Snapshot(), nil
}

// SessionSnapshot returns the live state of a session.
func (s *Service) SessionSnapshot(id string) (session.Snapshot, bool) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return session.Snapshot{}, false
	}
	return sess.Snapshot(), true
}

// SessionCommand applies one command to a live session.
func (s *Service) SessionCommand(ctx context.Context, id string, cmd Command) (CommandOutcome, error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return CommandOutcome{}, session.ErrNotFound
	}

	var outcome CommandOutcome
	var err error
	switch cmd.Name {
	case "select_gender":
		err = sess.SelectGender(cmd.Gender)
	case "begin_measurement":
		err = sess.BeginMeasurement()
	case "confirm_name":
		var player session.PlayerResult
		player, err = sess.ConfirmName(cmd.PlayerName, func(name string, score int64, snapshot string) (string, error) {
			_, imageFile, saveErr := s.SaveResult(ctx, name, score, snapshot)
			return imageFile, saveErr
		})
		if err == nil {
			outcome.Player = &player
		}
	case "cancel_name":
		err = sess.CancelName()
	case "exit":
		err = sess.Exit()
		if err == nil {
			s.sessions.Remove(id)
			metrics.UpdateActiveSessions(s.sessions.Count())
		}
	case "consume_results":
		outcome.Results, err = sess.ConsumeResults()
		if err == nil {
			s.sessions.Remove(id)
			metrics.UpdateActiveSessions(s.sessions.Count())
		}
	default:
		return CommandOutcome{}, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Name)
	}
	if err != nil {
		return CommandOutcome{}, err
	}

	outcome.State = sess.Snapshot()
	return outcome, nil
}

// ObserveStats forwards a scored frame to a measuring session. Implements
// the landmark stream's session binder.
func (s *Service) ObserveStats(sessionID string, stats scoring.Breakdown, snapshot string) error {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return session.ErrNotFound
	}
	return sess.ObserveStats(stats, snapshot)
}

// GenderFor returns a live session's gender selection.
func (s *Service) GenderFor(sessionID string) (string, bool) {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return "", false
	}
	return sess.Gender(), true
}

// Enqueue pushes frame telemetry toward the log workers. Implements the
// landmark stream's frame sink; drops are acceptable.
func (s *Service) Enqueue(ctx context.Context, e framelog.Entry) bool {
	s.mu.RLock()
	q := s.queue
	s.mu.RUnlock()
	if q == nil {
		return false
	}
	return q.Enqueue(ctx, e)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"topNLimit":   s.topNLimit,
	}
	if s.started {
		records := s.store.Count(ctx)
		queueLen := s.queue.Len(ctx)
		liveSessions := s.sessions.Count()

		stats["records"] = records
		stats["queueLength"] = queueLen
		stats["activeSessions"] = liveSessions

		metrics.UpdateRecordCount(records)
		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateActiveSessions(liveSessions)
	}
	return stats
}
