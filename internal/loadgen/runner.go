package loadgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/fulbito/internal/domain/types"
	"github.com/okian/fulbito/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// File permission constants.
const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// playerPoolExtra is added to the largest roster when seeding stored players.
const playerPoolExtra = 8

type runner struct {
	cfg    Config
	client *Client
	logger logger.Logger

	mu    sync.Mutex
	stats Stats
	gen   *Generator
}

// Run executes a complete load test and returns its statistics. It fails
// with ErrVerification if any job result broke a balancing invariant.
func Run(ctx context.Context, config *Config) (*Stats, error) {
	cfg := config.withDefaults()
	r := &runner{
		cfg:    cfg,
		client: NewClient(cfg.BaseURL, cfg.Timeout),
		logger: logger.Get().Named("loadgen"),
		gen:    NewGenerator(cfg.Seed),
	}
	r.stats.StartTime = time.Now()

	r.logger.Info(ctx, "starting fulbito load test",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("requests", cfg.Requests),
		logger.Int("workers", cfg.Workers),
		logger.Any("teamSizes", cfg.TeamSizes),
		logger.Bool("saveMatches", cfg.SaveMatches),
		logger.Any("seed", cfg.Seed),
	)

	if err := r.client.Health(ctx); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	var pool []types.Player
	if cfg.SaveMatches {
		var err error
		if pool, err = r.seedPlayers(ctx); err != nil {
			return nil, fmt.Errorf("seed players: %w", err)
		}
	}

	requests := make([]types.BalanceRequest, cfg.Requests)
	for i := range requests {
		requests[i] = r.gen.Request(cfg.TeamSizes, cfg.TopN, pool)
	}
	r.stats.Generated = len(requests)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := range requests {
		req := requests[i]
		g.Go(func() error {
			return r.runOne(gctx, req)
		})
	}
	if err := g.Wait(); err != nil {
		return r.finish(ctx), err
	}

	if cfg.OutputFile != "" {
		if err := saveRequests(cfg.OutputFile, requests); err != nil {
			r.logger.Warn(ctx, "failed to save requests to file", logger.Error(err))
		}
	}

	stats := r.finish(ctx)
	if stats.Violations > 0 {
		return stats, fmt.Errorf("%w: %d of %d results", ErrVerification, stats.Violations, stats.Completed)
	}
	return stats, nil
}

// runOne submits, polls and verifies a single job. Only context errors
// abort the run; everything else is counted.
func (r *runner) runOne(ctx context.Context, req types.BalanceRequest) error {
	job, status, err := r.client.SubmitBalance(ctx, req)
	r.count(func(s *Stats) { s.Submitted++ })
	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		r.count(func(s *Stats) { s.Failed++ })
		r.logger.Debug(ctx, "submit failed", logger.Error(err))
		return nil
	case status == http.StatusTooManyRequests:
		r.count(func(s *Stats) { s.Rejected++ })
		return nil
	case status != http.StatusAccepted:
		r.count(func(s *Stats) { s.Failed++ })
		r.logger.Debug(ctx, "submit rejected", logger.Int("status", status))
		return nil
	}

	done, err := r.await(ctx, job.JobID)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.count(func(s *Stats) { s.Failed++ })
		return nil
	}
	if done.Status != "done" || done.Result == nil {
		r.count(func(s *Stats) { s.Failed++ })
		r.logger.Debug(ctx, "job did not complete", logger.String("job_id", done.JobID), logger.String("status", done.Status))
		return nil
	}

	r.count(func(s *Stats) {
		s.Completed++
		if done.Result.Partial {
			s.Partial++
		}
	})
	if err := Verify(req, *done.Result); err != nil {
		r.count(func(s *Stats) { s.Violations++ })
		r.logger.Error(ctx, "invariant violated", logger.String("job_id", done.JobID), logger.Error(err))
		return nil
	}
	r.count(func(s *Stats) { s.Verified++ })
	if r.cfg.Verbose {
		r.logger.Info(ctx, "job verified",
			logger.String("job_id", done.JobID),
			logger.Int("team_size", req.TeamSize),
			logger.Float64("best_diff", done.Result.Options[0].Diff),
		)
	}

	if r.cfg.SaveMatches && len(done.Result.Options) > 0 {
		r.saveBest(ctx, done.Result.Options[0])
	}
	return nil
}

func (r *runner) await(ctx context.Context, id string) (types.JobResponse, error) {
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		job, err := r.client.Job(ctx, id)
		if err != nil {
			return job, err
		}
		switch job.Status {
		case "done", "failed", "cancelled":
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

// saveBest stores the split as a match and replays the request to check
// that the second attempt is reported as a duplicate of the first.
func (r *runner) saveBest(ctx context.Context, opt types.SplitOption) {
	r.mu.Lock()
	scoreA, scoreB := r.gen.Score()
	r.mu.Unlock()

	req := types.SaveMatchRequest{
		PlayedAt: time.Now().UTC(),
		TeamA:    ids(opt.TeamA.Players),
		TeamB:    ids(opt.TeamB.Players),
		ScoreA:   scoreA,
		ScoreB:   scoreB,
	}
	key := uuid.NewString()

	first, status, err := r.client.SaveMatch(ctx, key, req)
	if err != nil || status != http.StatusCreated {
		r.count(func(s *Stats) { s.Failed++ })
		return
	}
	r.count(func(s *Stats) { s.MatchesSent++ })

	replay, status, err := r.client.SaveMatch(ctx, key, req)
	if err != nil || status != http.StatusOK || !replay.Duplicate || replay.MatchID != first.MatchID {
		r.count(func(s *Stats) { s.Violations++ })
		r.logger.Error(ctx, "idempotent replay not honoured",
			logger.String("key", key),
			logger.Int("status", status),
			logger.Int64("first", first.MatchID),
			logger.Int64("replay", replay.MatchID),
		)
		return
	}
	r.count(func(s *Stats) { s.Duplicates++ })
}

func (r *runner) seedPlayers(ctx context.Context) ([]types.Player, error) {
	largest := 0
	for _, k := range r.cfg.TeamSizes {
		largest = max(largest, 2*k)
	}
	pool := make([]types.Player, 0, largest+playerPoolExtra)
	for i := 0; i < largest+playerPoolExtra; i++ {
		p := r.gen.Player()
		stored, err := r.client.CreatePlayer(ctx, p.Name, p.Rating)
		if err != nil {
			return nil, err
		}
		pool = append(pool, stored)
	}
	r.logger.Info(ctx, "player pool created", logger.Int("players", len(pool)))
	return pool, nil
}

func (r *runner) count(fn func(*Stats)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.stats)
}

func (r *runner) finish(ctx context.Context) *Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stats.EndTime = time.Now()
	r.stats.Duration = r.stats.EndTime.Sub(r.stats.StartTime)
	stats := r.stats

	var jobsPerSecond float64
	if stats.Duration > 0 {
		jobsPerSecond = float64(stats.Completed) / stats.Duration.Seconds()
	}
	r.logger.Info(ctx, "final statistics",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("rejected", stats.Rejected),
		logger.Int("failed", stats.Failed),
		logger.Int("completed", stats.Completed),
		logger.Int("partial", stats.Partial),
		logger.Int("verified", stats.Verified),
		logger.Int("violations", stats.Violations),
		logger.Int("matchesSent", stats.MatchesSent),
		logger.Int("duplicates", stats.Duplicates),
		logger.Duration("duration", stats.Duration),
		logger.Float64("jobsPerSecond", jobsPerSecond),
	)
	return &stats
}

func ids(team []types.Player) []int64 {
	out := make([]int64, len(team))
	for i, p := range team {
		out[i] = p.ID
	}
	return out
}

// saveRequests writes the generated requests as a JSON array.
func saveRequests(filename string, requests []types.BalanceRequest) error {
	if len(requests) == 0 {
		return errors.New("no requests to save")
	}
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(requests, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal requests: %w", err)
	}
	if err := os.WriteFile(filename, data, filePermission); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
