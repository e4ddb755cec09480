package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"
	"github.com/okian/fulbito/internal/adapters/mq/queue"
	"github.com/okian/fulbito/internal/adapters/repository"
	"github.com/okian/fulbito/internal/domain/balance"
	"github.com/okian/fulbito/internal/domain/model"
	"github.com/okian/fulbito/pkg/logger"
)

// SubmitBalance validates req and queues it for the worker pool. A zero
// TopN uses the configured default. Validation errors are returned before
// anything is queued.
func (s *Service) SubmitBalance(ctx context.Context, req balance.Request) (string, error) {
	id, _, err := s.submit(ctx, req)
	return id, err
}

// submit queues req and returns the job store tracking it.
func (s *Service) submit(ctx context.Context, req balance.Request) (string, *repository.JobStore, error) {
	b, jobs, q, err := s.components()
	if err != nil {
		return "", nil, err
	}
	if req.TopN == 0 {
		req.TopN = s.topN
	}
	if err := b.Validate(req); err != nil {
		return "", nil, err
	}

	j := jobFromRequest(uuid.NewString(), req)
	if err := jobs.Create(ctx, j); err != nil {
		return "", nil, fmt.Errorf("submit balance: %w", err)
	}
	if err := q.Enqueue(ctx, j); err != nil {
		_, _ = jobs.Cancel(ctx, j.ID)
		switch {
		case errors.Is(err, queue.ErrFull):
			return "", nil, fmt.Errorf("submit balance: %w", ErrBackpressure)
		case errors.Is(err, queue.ErrClosed):
			return "", nil, fmt.Errorf("submit balance: %w", ErrNotStarted)
		default:
			return "", nil, fmt.Errorf("submit balance: %w", err)
		}
	}

	s.logger.Debug(ctx, "balance job queued",
		logger.String("job_id", j.ID),
		logger.Int("team_size", j.TeamSize),
		logger.Int("top_n", j.TopN),
	)
	return j.ID, jobs, nil
}

// Balance runs req on the worker pool and waits for the result. If ctx ends
// first the job is cancelled.
func (s *Service) Balance(ctx context.Context, req balance.Request) (balance.Result, error) {
	id, jobs, err := s.submit(ctx, req)
	if err != nil {
		return balance.Result{}, err
	}

	job, err := jobs.Wait(ctx, id)
	if err != nil {
		// detached: the caller's ctx is already done
		_, _ = jobs.Cancel(context.WithoutCancel(ctx), id)
		return balance.Result{}, err
	}
	if job.Err != nil {
		return balance.Result{}, job.Err
	}
	return job.Result, nil
}

// Job returns a snapshot of a balance job.
func (s *Service) Job(ctx context.Context, id string) (repository.Job, error) {
	_, jobs, _, err := s.components()
	if err != nil {
		return repository.Job{}, err
	}
	return jobs.Get(ctx, id)
}

// CancelJob aborts a queued or running balance job.
func (s *Service) CancelJob(ctx context.Context, id string) (repository.Job, error) {
	_, jobs, _, err := s.components()
	if err != nil {
		return repository.Job{}, err
	}
	job, err := jobs.Cancel(ctx, id)
	if err != nil {
		return repository.Job{}, err
	}
	s.logger.Debug(ctx, "balance job cancel requested",
		logger.String("job_id", id),
		logger.String("status", string(job.Status)),
	)
	return job, nil
}

// BalancePlayers loads the roster from the store and balances it.
func (s *Service) BalancePlayers(ctx context.Context, playerIDs []int64, teamSize, topN int) (balance.Result, error) {
	roster, err := s.Roster(ctx, playerIDs)
	if err != nil {
		return balance.Result{}, err
	}
	return s.Balance(ctx, balance.Request{Roster: roster, TeamSize: teamSize, TopN: topN})
}

// Roster loads players in the order given. Unknown IDs are reported
// together as a *MissingPlayersError. Repeated IDs are kept so the
// balancer can reject them.
func (s *Service) Roster(ctx context.Context, playerIDs []int64) ([]model.Player, error) {
	store, err := s.playerStore()
	if err != nil {
		return nil, err
	}

	unique := slices.Clone(playerIDs)
	slices.Sort(unique)
	unique = slices.Compact(unique)

	players, err := store.ListPlayers(ctx, unique...)
	if err != nil {
		return nil, fmt.Errorf("load roster: %w", err)
	}
	byID := make(map[int64]model.Player, len(players))
	for _, p := range players {
		byID[p.ID] = p
	}

	var missing []int64
	for _, id := range unique {
		if _, ok := byID[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingPlayersError{IDs: missing}
	}

	roster := make([]model.Player, len(playerIDs))
	for i, id := range playerIDs {
		roster[i] = byID[id]
	}
	return roster, nil
}
