// Package service wires the balancer, job runner, player store and stats
// aggregation behind the operations the HTTP API and CLI call.
package service

import (
	"context"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/okian/fulbito/internal/adapters/mq/queue"
	"github.com/okian/fulbito/internal/adapters/mq/worker"
	"github.com/okian/fulbito/internal/adapters/repository"
	"github.com/okian/fulbito/internal/domain/balance"
	"github.com/okian/fulbito/internal/domain/dedupe"
	"github.com/okian/fulbito/internal/domain/model"
	"github.com/okian/fulbito/internal/domain/stats"
	"github.com/okian/fulbito/pkg/logger"
	"github.com/okian/fulbito/pkg/metrics"
)

const (
	defaultQueueSize           = 1_024
	defaultDedupeSize          = 10_000
	defaultJobTTL              = 10 * time.Minute
	defaultMaxLeaderboardLimit = 100
)

// Service implements the dependencies of the HTTP API.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	jobs     *repository.JobStore
	deduper  dedupe.Deduper
	queue    *queue.InMemoryQueue
	balancer *balance.Balancer
	pool     *worker.Pool

	// Configuration
	workerCount         int
	queueSize           int
	dedupeSize          int
	maxCombinations     int
	teamSizes           []int
	topN                int
	jobTTL              time.Duration
	minDuoGames         int
	maxLeaderboardLimit int

	// State
	started bool
	cancel  context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum number of queued balance jobs.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many idempotency keys are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithMaxCombinations sets the balancer's combination ceiling; <= 0 disables it.
func WithMaxCombinations(n int) Option {
	return func(s *Service) {
		s.maxCombinations = n
	}
}

// WithTeamSizes sets the accepted players-per-team values.
func WithTeamSizes(sizes ...int) Option {
	return func(s *Service) {
		if len(sizes) > 0 {
			s.teamSizes = slices.Clone(sizes)
		}
	}
}

// WithTopN sets how many options are returned when a request does not say.
func WithTopN(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.topN = n
		}
	}
}

// WithJobTTL sets how long finished jobs remain retrievable.
func WithJobTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.jobTTL = ttl
		}
	}
}

// WithMinDuoGames sets the default games-together threshold for duos.
func WithMinDuoGames(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.minDuoGames = n
		}
	}
}

// WithMaxLeaderboardLimit caps the leaderboard page size.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLeaderboardLimit = n
		}
	}
}

// WithStore sets the player and match store. The service closes it on Stop.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
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

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:         runtime.NumCPU(),
		queueSize:           defaultQueueSize,
		dedupeSize:          defaultDedupeSize,
		maxCombinations:     balance.DefaultMaxCombinations,
		teamSizes:           slices.Clone(balance.DefaultTeamSizes),
		topN:                balance.DefaultTopN,
		jobTTL:              defaultJobTTL,
		minDuoGames:         stats.DefaultMinDuoGames,
		maxLeaderboardLimit: defaultMaxLeaderboardLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	return s
}

// Start creates the job runner and starts the worker pool. The pool runs
// until Stop is called; ctx only bounds startup.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting fulbito service...")

	runCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.balancer = balance.New(
		balance.WithMaxCombinations(s.maxCombinations),
		balance.WithTeamSizes(s.teamSizes...),
		balance.WithLogger(s.logger.Named("balancer")),
	)
	s.jobs = repository.NewJobStore(runCtx, repository.WithJobTTL(s.jobTTL))
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(s.queueSize))

	s.pool = worker.NewPool(s.workerCount, s.queue, s.balancer, s.jobs)
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "fulbito service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("maxCombinations", s.maxCombinations),
		logger.Any("teamSizes", s.balancer.TeamSizes()),
		logger.Bool("store", s.store != nil),
	)
	return nil
}

// Stop drains the job queue, stops the workers and closes the store.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping fulbito service...")

	var firstErr error
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Error(ctx, "worker pool shutdown", logger.Error(err))
		firstErr = err
	}
	_ = s.jobs.Close()
	s.cancel()

	if s.store != nil {
		if err := s.store.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close store: %w", err)
		}
	}

	s.started = false
	s.logger.Info(ctx, "fulbito service stopped")
	return firstErr
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	out := map[string]interface{}{
		"started":         s.started,
		"workerCount":     s.workerCount,
		"queueSize":       s.queueSize,
		"dedupeSize":      s.dedupeSize,
		"maxCombinations": s.maxCombinations,
		"teamSizes":       s.teamSizes,
		"defaultTopN":     s.topN,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		counts := s.jobs.Counts()
		jobs := make(map[string]int, len(counts))
		for status, n := range counts {
			jobs[string(status)] = n
		}

		out["queueLength"] = queueLen
		out["jobsProcessed"] = s.pool.Processed()
		out["jobs"] = jobs
		out["idempotencyKeys"] = s.deduper.Size()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateJobsTracked(s.jobs.Len())
		metrics.UpdateWorkerCount(s.pool.Size())
	}
	return out
}

// TeamSizes returns the accepted players-per-team values.
func (s *Service) TeamSizes() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.teamSizes)
}

// components returns the running components or ErrNotStarted.
func (s *Service) components() (*balance.Balancer, *repository.JobStore, *queue.InMemoryQueue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, nil, nil, ErrNotStarted
	}
	return s.balancer, s.jobs, s.queue, nil
}

func (s *Service) playerStore() (repository.Store, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	return s.store, nil
}

// jobFromRequest copies the roster so later caller mutations do not race
// with the worker.
func jobFromRequest(id string, req balance.Request) model.BalanceJob {
	return model.BalanceJob{
		ID:          id,
		Roster:      slices.Clone(req.Roster),
		TeamSize:    req.TeamSize,
		TopN:        req.TopN,
		SubmittedAt: time.Now().UTC(),
	}
}
