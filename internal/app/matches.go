package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/okian/fulbito/internal/domain/dedupe"
	"github.com/okian/fulbito/internal/domain/model"
	"github.com/okian/fulbito/internal/domain/stats"
	"github.com/okian/fulbito/internal/domain/types"
	"github.com/okian/fulbito/pkg/logger"
	"github.com/okian/fulbito/pkg/metrics"
)

// SaveMatch stores a played split. A non-empty key makes the call
// idempotent: replays return the first match's ID with Duplicate set.
func (s *Service) SaveMatch(ctx context.Context, key string, req types.SaveMatchRequest) (types.SaveMatchResponse, error) {
	store, err := s.playerStore()
	if err != nil {
		return types.SaveMatchResponse{}, err
	}
	deduper, err := s.idempotency()
	if err != nil {
		return types.SaveMatchResponse{}, err
	}

	if deduper.SeenAndRecord(ctx, key) {
		metrics.RecordMatchDuplicate()
		if id, ok := deduper.Lookup(ctx, key); ok {
			return types.SaveMatchResponse{MatchID: id, Duplicate: true}, nil
		}
		return types.SaveMatchResponse{}, ErrInFlight
	}

	playedAt := req.PlayedAt
	if playedAt.IsZero() {
		playedAt = time.Now()
	}
	m, err := store.CreateMatch(ctx, model.Match{
		PlayedAt:  playedAt.UTC(),
		ScoreA:    req.ScoreA,
		ScoreB:    req.ScoreB,
		ReplayURL: strings.TrimSpace(req.ReplayURL),
	}, req.TeamA, req.TeamB)
	if err != nil {
		// allow the client to retry with the same key
		deduper.Unrecord(ctx, key)
		return types.SaveMatchResponse{}, err
	}
	deduper.Resolve(ctx, key, m.ID)
	metrics.RecordMatchSaved()

	s.logger.Info(ctx, "match saved",
		logger.Int64("match_id", m.ID),
		logger.Int("score_a", m.ScoreA),
		logger.Int("score_b", m.ScoreB),
	)
	return types.SaveMatchResponse{MatchID: m.ID}, nil
}

// ListMatches returns stored matches newest first.
func (s *Service) ListMatches(ctx context.Context) ([]types.Match, error) {
	store, err := s.playerStore()
	if err != nil {
		return nil, err
	}
	records, err := store.ListMatches(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.Match, len(records))
	for i, r := range records {
		out[i] = toMatch(r.Match, r.TeamA, r.TeamB)
	}
	return out, nil
}

// UpdateMatch replaces a stored match's date, scores, replay link and
// rosters. Unlike SaveMatch a zero PlayedAt is rejected.
func (s *Service) UpdateMatch(ctx context.Context, id int64, req types.SaveMatchRequest) (types.Match, error) {
	store, err := s.playerStore()
	if err != nil {
		return types.Match{}, err
	}
	m, err := store.UpdateMatch(ctx, model.Match{
		ID:        id,
		PlayedAt:  req.PlayedAt.UTC(),
		ScoreA:    req.ScoreA,
		ScoreB:    req.ScoreB,
		ReplayURL: strings.TrimSpace(req.ReplayURL),
	}, req.TeamA, req.TeamB)
	if err != nil {
		return types.Match{}, err
	}
	s.logger.Info(ctx, "match updated", logger.Int64("match_id", m.ID))
	return toMatch(m, slices.Sorted(slices.Values(req.TeamA)), slices.Sorted(slices.Values(req.TeamB))), nil
}

// DeleteMatch removes a match and its participations.
func (s *Service) DeleteMatch(ctx context.Context, id int64) error {
	store, err := s.playerStore()
	if err != nil {
		return err
	}
	return store.DeleteMatch(ctx, id)
}

// DeleteMatches removes several matches and reports how many existed.
func (s *Service) DeleteMatches(ctx context.Context, ids []int64) (int, error) {
	store, err := s.playerStore()
	if err != nil {
		return 0, err
	}
	n, err := store.DeleteMatches(ctx, ids...)
	if err != nil {
		return 0, err
	}
	s.logger.Info(ctx, "matches deleted", logger.Int("requested", len(ids)), logger.Int("deleted", n))
	return n, nil
}

// Leaderboard aggregates per-player results. Players with fewer than
// minGames games are left out. limit <= 0 returns every remaining player;
// a limit above the configured maximum is rejected.
func (s *Service) Leaderboard(ctx context.Context, sortBy string, desc bool, limit, minGames int) ([]types.LeaderboardEntry, error) {
	if limit > s.maxLeaderboardLimit {
		return nil, fmt.Errorf("%w: %d exceeds %d", ErrInvalidLimit, limit, s.maxLeaderboardLimit)
	}
	key, err := stats.ParseSortKey(sortBy)
	if err != nil {
		return nil, err
	}
	players, matches, parts, err := s.history(ctx)
	if err != nil {
		return nil, err
	}

	rows := stats.FilterMinGames(stats.Aggregate(players, matches, parts), minGames)
	if err := stats.SortLeaderboard(rows, key, desc); err != nil {
		return nil, err
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return types.FromPlayerStats(rows), nil
}

// Duos returns same-side pair chemistry. minGames <= 0 uses the configured
// default; playerID > 0 keeps only pairs containing that player. Best is
// chosen among the returned pairs.
func (s *Service) Duos(ctx context.Context, minGames int, playerID int64, sortBy string, desc bool) (types.DuosResponse, error) {
	key, err := stats.ParseSortKey(sortBy)
	if err != nil {
		return types.DuosResponse{}, err
	}
	if minGames <= 0 {
		minGames = s.minDuoGames
	}
	players, matches, parts, err := s.history(ctx)
	if err != nil {
		return types.DuosResponse{}, err
	}

	duos := stats.Duos(players, matches, parts, minGames)
	if playerID > 0 {
		duos = stats.FilterDuos(duos, playerID)
	}
	best, ok := stats.BestDuo(duos)
	if err := stats.SortDuos(duos, key, desc); err != nil {
		return types.DuosResponse{}, err
	}

	out := types.DuosResponse{Duos: make([]types.Duo, len(duos))}
	for i, d := range duos {
		out.Duos[i] = types.FromDuoStats(d)
	}
	if ok {
		b := types.FromDuoStats(best)
		out.Best = &b
	}
	return out, nil
}

func toMatch(m model.Match, teamA, teamB []int64) types.Match {
	return types.Match{
		ID:        m.ID,
		PlayedAt:  m.PlayedAt,
		ScoreA:    m.ScoreA,
		ScoreB:    m.ScoreB,
		TeamA:     teamA,
		TeamB:     teamB,
		ReplayURL: m.ReplayURL,
	}
}

func (s *Service) history(ctx context.Context) ([]model.Player, []model.Match, []model.Participation, error) {
	store, err := s.playerStore()
	if err != nil {
		return nil, nil, nil, err
	}
	players, err := store.ListPlayers(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	records, err := store.ListMatches(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	parts, err := store.ListParticipations(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	matches := make([]model.Match, len(records))
	for i, r := range records {
		matches[i] = r.Match
	}
	return players, matches, parts, nil
}

func (s *Service) idempotency() (dedupe.Deduper, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.deduper, nil
}
