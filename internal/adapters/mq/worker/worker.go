// Package worker runs queued balance jobs off the request path.
package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/fulbito/internal/adapters/mq/queue"
	"github.com/okian/fulbito/internal/domain/balance"
	"github.com/okian/fulbito/pkg/logger"
	"github.com/okian/fulbito/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Job abstracts what workers read off the queue.
type Job = queue.Job

// Balancer computes the splits for a job.
type Balancer interface {
	Balance(ctx context.Context, req balance.Request) (balance.Result, error)
}

// Tracker records job state transitions.
type Tracker interface {
	// Begin marks the job running and returns the context it must run under.
	Begin(ctx context.Context, id string) (context.Context, error)
	// Finish stores the outcome.
	Finish(ctx context.Context, id string, res balance.Result, err error) error
}

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// Worker processes jobs until its context ends or it is shut down.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the job in progress.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	balancer Balancer
	tracker  Tracker
	name     string

	processed *atomic.Int64

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, b Balancer, t Tracker, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		balancer:  b,
		tracker:   t,
		name:      "worker",
		processed: new(atomic.Int64),
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Get().Named("worker"),
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
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case j, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, j); err != nil {
				w.logger.Error(ctx, "error processing job", logger.String("job_id", j.ID), logger.Error(err))
			}
		}
	}
}

// Shutdown gracefully stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

func (w *InMemoryWorker) process(ctx context.Context, j Job) error { //nolint:gocritic // hugeParam: Job is passed by value for channel semantics
	jobCtx, err := w.tracker.Begin(ctx, j.ID)
	if err != nil {
		// cancelled while queued or already swept
		metrics.RecordBalanceJob("skipped")
		w.logger.Debug(ctx, "skipping job", logger.String("job_id", j.ID), logger.Error(err))
		return nil
	}

	metrics.IncWorkerBusy()
	defer metrics.DecWorkerBusy()

	start := time.Now()
	res, err := w.balancer.Balance(jobCtx, balance.Request{Roster: j.Roster, TeamSize: j.TeamSize, TopN: j.TopN})
	w.processed.Add(1)

	outcome := "done"
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		outcome = "cancelled"
	case err != nil:
		outcome = "failed"
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "balance_error")
	case res.Partial:
		outcome = "partial"
	}
	metrics.RecordBalanceJob(outcome)

	w.logger.Debug(ctx, "job finished",
		logger.String("job_id", j.ID),
		logger.String("outcome", outcome),
		logger.Int("examined", res.Examined),
		logger.Duration("took", time.Since(start)),
	)

	if ferr := w.tracker.Finish(ctx, j.ID, res, err); ferr != nil {
		return fmt.Errorf("record job %s: %w", j.ID, ferr)
	}
	return nil
}

// Pool manages multiple workers sharing one queue.
type Pool struct {
	workers   []*InMemoryWorker
	queue     Queue
	processed atomic.Int64

	logger logger.Logger
}

// NewPool creates a new worker pool. A workerCount below one uses NumCPU.
func NewPool(workerCount int, q Queue, b Balancer, t Tracker) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		pool.workers[i] = NewInMemoryWorker(q, b, t,
			WithName("worker-"+strconv.Itoa(i)),
			withCounter(&pool.processed),
		)
	}

	metrics.UpdateWorkerCount(workerCount)
	return pool
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Processed returns how many jobs the pool has run.
func (p *Pool) Processed() int64 {
	return p.processed.Load()
}

// Shutdown closes the queue, lets workers drain it and waits for them.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
		}
	}
	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
