// Package service wires the rating engine to storage, the match queue and
// the worker pool. It is the imperative shell around the pure engine: it
// loads player state, calls the engine and persists what comes back.
package service

import (
	"context"
	"runtime"
	"sync"
	"time"

	eventqueue "github.com/okian/vibo/internal/adapters/mq/queue"
	workerpool "github.com/okian/vibo/internal/adapters/mq/worker"
	"github.com/okian/vibo/internal/adapters/repository"
	"github.com/okian/vibo/internal/domain/dedupe"
	"github.com/okian/vibo/internal/domain/rating"
	"github.com/okian/vibo/pkg/logger"
	"github.com/okian/vibo/pkg/metrics"
)

const (
	defaultQueueSize       = 10_000
	defaultDedupeSize      = 100_000
	defaultLockStripes     = 256
	defaultMaxRankingLimit = 100
	defaultMaxBackdateDays = 30
	stopTimeout            = 30 * time.Second
)

// Service implements the API dependencies of the rating service.
type Service struct {
	mu sync.RWMutex // guards started, queue and pool

	engine  *rating.Engine
	store   repository.Store
	index   *repository.RankingIndex
	deduper dedupe.Deduper
	queue   *eventqueue.InMemoryQueue
	pool    *workerpool.Pool

	locks *stripedLocks
	// gate is held shared by live match updates and exclusively while a
	// recomputation rewrites history.
	gate sync.RWMutex

	workerCount     int
	queueSize       int
	dedupeSize      int
	lockStripes     int
	maxRankingLimit int
	maxBackdate     time.Duration
	autoRecompute   bool
	now             func() time.Time

	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithEngine sets the rating engine.
func WithEngine(e *rating.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithStore sets the persistence backend. The caller keeps ownership and
// closes it.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithWorkerCount sets the number of rating workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the match queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many submission keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLockStripes sets the number of player lock stripes.
func WithLockStripes(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.lockStripes = n
		}
	}
}

// WithMaxRankingLimit caps the number of ranking entries returned at once.
func WithMaxRankingLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRankingLimit = n
		}
	}
}

// WithMaxBackdateDays rejects submissions played more than days ago.
// 0 disables the check.
func WithMaxBackdateDays(days int) Option {
	return func(s *Service) {
		if days >= 0 {
			s.maxBackdate = time.Duration(days) * 24 * time.Hour
		}
	}
}

// WithAutoRecompute controls whether recording a match played before the
// latest match of one of its players replays history from that point.
func WithAutoRecompute(enabled bool) Option {
	return func(s *Service) {
		s.autoRecompute = enabled
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
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

// New constructs a Service. Without WithStore it keeps everything in memory.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:     runtime.NumCPU(),
		queueSize:       defaultQueueSize,
		dedupeSize:      defaultDedupeSize,
		lockStripes:     defaultLockStripes,
		maxRankingLimit: defaultMaxRankingLimit,
		maxBackdate:     defaultMaxBackdateDays * 24 * time.Hour,
		autoRecompute:   true,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.engine == nil {
		s.engine = rating.New()
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.index = repository.NewRankingIndex()
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.locks = newStripedLocks(s.lockStripes)
	return s
}

// Start loads the ranking index from the store and starts the queue and the
// worker pool.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting rating service...")

	players, err := s.store.Players(ctx)
	if err != nil {
		return err
	}
	ratings := make(map[string]int, len(players))
	for _, p := range players {
		ratings[p.ID] = p.Rating
	}
	s.index.SetMany(ratings)
	metrics.UpdatePlayersTotal(s.index.Len())

	// workers outlive the caller's context; Stop ends them
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s,
		workerpool.WithFailureHandler(s.forgetFailed),
	)
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "rating service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("players", len(players)),
		logger.String("policy", s.engine.Policy().String()),
	)
	return nil
}

// Stop drains the queue and stops the workers. The store stays open.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping rating service...")
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker pool did not drain", logger.Error(err))
	}
	s.cancel()

	s.started = false
	s.logger.Info(ctx, "rating service stopped", logger.Int64("rated", s.pool.Processed()))
}

// Started reports whether Start has completed and Stop has not been called.
func (s *Service) Started() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"queueSize":     s.queueSize,
		"dedupeSize":    s.dedupeSize,
		"dedupeEntries": s.deduper.Size(),
		"players":       s.index.Len(),
		"policy":        s.engine.Policy().String(),
		"ratingFloor":   s.engine.Floor(),
	}
	if s.started {
		stats["queueLength"] = s.queue.Len(context.Background())
		stats["processed"] = s.pool.Processed()
		metrics.UpdateWorkerCount(s.workerCount)
	}
	metrics.UpdatePlayersTotal(s.index.Len())
	return stats
}
