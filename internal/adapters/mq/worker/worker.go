// Package worker drains queued match submissions into the rating pipeline.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/vibo/internal/adapters/mq/queue"
	"github.com/okian/vibo/internal/domain/model"
	"github.com/okian/vibo/pkg/logger"
	"github.com/okian/vibo/pkg/metrics"
)

const (
	metricsUpdateInterval = 5 * time.Second
	poolShutdownTimeout   = 30 * time.Second
)

// Recorder rates and persists one match.
type Recorder interface {
	RecordMatch(ctx context.Context, m model.Match) (model.EloChanges, error)
}

// Queue defines how workers receive items.
type Queue interface {
	Dequeue(ctx context.Context) <-chan queue.Item
	Len(ctx context.Context) int
	Close() error
}

// FailureHandler is told about items the recorder rejected.
type FailureHandler func(ctx context.Context, it queue.Item, err error)

// Worker processes queued matches.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue drains
	// after Close.
	Run(ctx context.Context)

	// Shutdown waits for Run to return.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue     Queue
	recorder  Recorder
	onFailure FailureHandler
	name      string
	processed *atomic.Int64

	done   chan struct{}
	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, recorder Recorder, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		recorder:  recorder,
		name:      "worker",
		processed: new(atomic.Int64),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	items := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case it, ok := <-items:
			if !ok {
				return
			}
			metrics.RecordQueueDequeue()
			w.queue.Len(ctx)
			_ = w.process(ctx, it)
		}
	}
}

// Shutdown waits for the worker loop to finish or ctx to expire. Callers
// stop the loop by closing the queue or canceling the Run context.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

func (w *InMemoryWorker) process(ctx context.Context, it queue.Item) error { //nolint:gocritic // hugeParam: items travel by value
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	changes, err := w.recorder.RecordMatch(ctx, it.Match)
	if err != nil {
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "record_error")
		w.logger.Error(ctx, "recording match failed",
			logger.String("match_id", it.Match.ID),
			logger.Error(err),
		)
		if w.onFailure != nil {
			w.onFailure(ctx, it, err)
		}
		return fmt.Errorf("record match %s: %w", it.Match.ID, err)
	}

	w.processed.Add(1)
	w.logger.Debug(ctx, "match rated",
		logger.String("match_id", it.Match.ID),
		logger.Int("team1_delta", changes.Player1.Change),
		logger.Int("team2_delta", changes.Player3.Change),
		logger.Duration("queued_for", start.Sub(it.EnqueuedAt)),
	)
	return nil
}

// Pool manages multiple workers.
type Pool struct {
	workers   []*InMemoryWorker
	queue     Queue
	processed *atomic.Int64
	stop      chan struct{}
	stopOnce  sync.Once
	logger    logger.Logger
}

// NewPool creates a pool of workerCount workers; workerCount < 1 means one
// per CPU.
func NewPool(workerCount int, q Queue, recorder Recorder, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	p := &Pool{
		workers:   make([]*InMemoryWorker, workerCount),
		queue:     q,
		processed: new(atomic.Int64),
		stop:      make(chan struct{}),
		logger:    logger.Get().Named("worker-pool"),
	}
	for i := range p.workers {
		wopts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		p.workers[i] = NewInMemoryWorker(q, recorder, wopts...)
		p.workers[i].processed = p.processed
	}

	metrics.UpdateWorkerCount(workerCount)
	metrics.UpdateWorkerThroughput(0)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Processed returns how many matches the pool has rated.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	go p.reportThroughput(ctx)
}

func (p *Pool) reportThroughput(ctx context.Context) {
	ticker := time.NewTicker(metricsUpdateInterval)
	defer ticker.Stop()

	last, lastAt := p.processed.Load(), time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case now := <-ticker.C:
			cur := p.processed.Load()
			if secs := now.Sub(lastAt).Seconds(); secs > 0 {
				metrics.UpdateWorkerThroughput(float64(cur-last) / secs)
			}
			last, lastAt = cur, now
		}
	}
}

// Shutdown closes the queue and waits for the workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if err := p.queue.Close(); err != nil {
		p.logger.Error(ctx, "error closing queue", logger.Error(err))
	}
	p.stopOnce.Do(func() { close(p.stop) })

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		if err := w.Shutdown(shutdownCtx); err != nil {
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			timedOut = true
		}
	}
	metrics.UpdateWorkerCount(0)
	if timedOut {
		return fmt.Errorf("worker pool: %w", shutdownCtx.Err())
	}
	return nil
}
