package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/fulbito/internal/domain/balance"
	"github.com/okian/fulbito/internal/domain/model"
	"github.com/okian/fulbito/pkg/metrics"
)

const (
	defaultJobTTL        = 10 * time.Minute
	defaultSweepInterval = 30 * time.Second
)

// Job is a read-only snapshot of a balance job.
type Job struct {
	ID          string
	Status      model.JobStatus
	TeamSize    int
	TopN        int
	RosterSize  int
	SubmittedAt time.Time
	StartedAt   time.Time
	FinishedAt  time.Time
	Result      balance.Result
	Err         error
}

type jobEntry struct {
	Job
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// JobStore tracks balance jobs from submission until their TTL expires.
// Every job owns a context that Cancel aborts.
type JobStore struct {
	mu            sync.RWMutex
	jobs          map[string]*jobEntry
	ttl           time.Duration
	sweepInterval time.Duration
	now           func() time.Time

	wg       sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
}

// NewJobStore constructs a job store and starts the expiry sweeper, which
// runs until ctx is done or Close is called.
func NewJobStore(ctx context.Context, opts ...JobOption) *JobStore {
	s := &JobStore{
		jobs:          make(map[string]*jobEntry),
		ttl:           defaultJobTTL,
		sweepInterval: defaultSweepInterval,
		now:           time.Now,
		stopChan:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()

	return s
}

// Close stops the sweeper and cancels every unfinished job.
func (s *JobStore) Close() error {
	s.stopOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()

		s.mu.Lock()
		defer s.mu.Unlock()
		for _, e := range s.jobs {
			e.cancel()
		}
	})
	return nil
}

// Create registers a pending job.
func (s *JobStore) Create(_ context.Context, j model.BalanceJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[j.ID]; exists {
		return fmt.Errorf("job %s: %w", j.ID, ErrAlreadyExists)
	}
	// jobs outlive the request that submitted them
	ctx, cancel := context.WithCancel(context.Background())
	s.jobs[j.ID] = &jobEntry{
		Job: Job{
			ID:          j.ID,
			Status:      model.JobPending,
			TeamSize:    j.TeamSize,
			TopN:        j.TopN,
			RosterSize:  len(j.Roster),
			SubmittedAt: j.SubmittedAt,
		},
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	metrics.UpdateJobsTracked(len(s.jobs))
	return nil
}

// Begin marks a pending job as running and returns the job's context.
// It returns ErrJobCancelled if the job was cancelled while queued.
func (s *JobStore) Begin(_ context.Context, id string) (context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if e.Status != model.JobPending {
		return nil, fmt.Errorf("job %s is %s: %w", id, e.Status, ErrJobCancelled)
	}
	e.Status = model.JobRunning
	e.StartedAt = s.now()
	return e.ctx, nil
}

// Finish records the outcome of a running job. A job whose context was
// cancelled is stored as cancelled regardless of err.
func (s *JobStore) Finish(_ context.Context, id string, res balance.Result, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	if e.Status.Terminal() {
		return nil
	}

	switch {
	case e.ctx.Err() != nil:
		e.Status = model.JobCancelled
		e.Err = ErrJobCancelled
	case err != nil:
		e.Status = model.JobFailed
		e.Err = err
	default:
		e.Status = model.JobDone
		e.Result = res
	}
	s.finishLocked(e)
	return nil
}

// Cancel aborts a job. A pending job becomes cancelled at once; a running
// job stops at its next cancellation check. Finished jobs are unchanged.
func (s *JobStore) Cancel(_ context.Context, id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	switch e.Status {
	case model.JobPending:
		e.Status = model.JobCancelled
		e.Err = ErrJobCancelled
		s.finishLocked(e)
	case model.JobRunning:
		e.cancel()
	}
	return e.Job, nil
}

// Get returns a snapshot of the job.
func (s *JobStore) Get(_ context.Context, id string) (Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return e.Job, nil
}

// Wait blocks until the job reaches a terminal state or ctx is done.
func (s *JobStore) Wait(ctx context.Context, id string) (Job, error) {
	s.mu.RLock()
	e, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return Job{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}

	select {
	case <-e.done:
		return s.Get(ctx, id)
	case <-ctx.Done():
		return Job{}, fmt.Errorf("wait for job %s: %w", id, ctx.Err())
	}
}

// Sweep removes finished jobs older than the TTL and returns how many
// were dropped.
func (s *JobStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, e := range s.jobs {
		if e.Status.Terminal() && e.FinishedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	metrics.UpdateJobsTracked(len(s.jobs))
	return removed
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

// Counts returns the number of tracked jobs per status.
func (s *JobStore) Counts() map[model.JobStatus]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[model.JobStatus]int)
	for _, e := range s.jobs {
		out[e.Status]++
	}
	return out
}

// must hold s.mu
func (s *JobStore) finishLocked(e *jobEntry) {
	e.FinishedAt = s.now()
	e.cancel()
	close(e.done)
}
