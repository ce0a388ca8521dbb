// Package worker drains the frame telemetry queue into the frame log.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"time"

	"github.com/okian/powerscan/internal/framelog"
	"github.com/okian/powerscan/pkg/logger"
	"github.com/okian/powerscan/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount = 2
	poolMaxMultiplier  = 4 // cap worker count at NumCPU * multiplier
)

// Entry abstracts what workers read off the queue.
type Entry = framelog.Entry

// Appender receives drained telemetry entries.
type Appender interface {
	Append(ctx context.Context, e Entry) error
}

// Queue defines how workers receive entries.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Entry
}

// Worker processes telemetry entries from the queue.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// LogWorker implements Worker by appending entries to the frame log.
// Append failures are logged and the entry is dropped; telemetry never
// takes the service down.
type LogWorker struct {
	queue    Queue
	appender Appender
	name     string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewLogWorker creates a new worker with configuration options.
func NewLogWorker(queue Queue, appender Appender, opts ...Option) *LogWorker {
	w := &LogWorker{
		queue:    queue,
		appender: appender,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *LogWorker) Run(ctx context.Context) {
	defer close(w.done)

	entryChan := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case e, ok := <-entryChan:
			if !ok {
				return
			}
			w.process(ctx, e)
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *LogWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// process appends a single entry.
func (w *LogWorker) process(ctx context.Context, e Entry) {
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	if err := w.appender.Append(ctx, e); err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "append_error")
		w.logger.Error(ctx, "frame log append failed", logger.Error(err))
	}
}

// Pool manages multiple workers.
type Pool struct {
	workers []*LogWorker

	logger logger.Logger
}

// NewPool creates a pool of workerCount workers. A non-positive count falls
// back to the default, capped by the machine size.
func NewPool(workerCount int, queue Queue, appender Appender) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}
	if limit := runtime.NumCPU() * poolMaxMultiplier; workerCount > limit {
		workerCount = limit
	}

	p := &Pool{
		workers: make([]*LogWorker, workerCount),
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		p.workers[i] = NewLogWorker(queue, appender, WithName("worker-"+strconv.Itoa(i)))
	}

	metrics.UpdateWorkerActiveCount(workerCount)

	return p
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Shutdown stops every worker, waiting up to the context deadline.
func (p *Pool) Shutdown(ctx context.Context) error {
	var firstErr error
	for _, w := range p.workers {
		if err := w.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	metrics.UpdateWorkerActiveCount(0)
	if firstErr != nil {
		p.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(firstErr))
	}
	return firstErr
}
