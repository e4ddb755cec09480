// Package balance splits a roster of rated players into two teams of equal
// size with the smallest possible rating difference.
//
// Every k-subset of the 2k roster is a candidate Team A and its complement
// is Team B. Mirror splits are collapsed through a canonical key, candidates
// are ranked by ascending difference and the best TopN are returned.
package balance

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/okian/fulbito/internal/domain/model"
	"github.com/okian/fulbito/pkg/logger"
	"github.com/okian/fulbito/pkg/metrics"
)

// Default balancer configuration constants.
const (
	DefaultMaxCombinations = 50_000
	DefaultTopN            = 3

	// a uint64 membership mask holds at most 64 players
	maxTeamSize = 32

	// how often the enumeration loop polls ctx
	cancelCheckInterval = 1_024

	maxPrealloc = 1 << 16
)

// DefaultTeamSizes are the players-per-team values accepted out of the box.
var DefaultTeamSizes = []int{5, 6, 8, 11}

// Request holds the parameters of one balancing call.
type Request struct {
	Roster   []model.Player
	TeamSize int
	TopN     int
}

// Split is one partition of the roster. Both teams are ordered by
// ascending player ID.
type Split struct {
	TeamA []model.Player
	TeamB []model.Player
	SumA  float64
	SumB  float64
	Diff  float64
}

// IDs returns the player IDs of both teams.
func (s Split) IDs() (a, b []int64) {
	a = make([]int64, len(s.TeamA))
	for i, p := range s.TeamA {
		a[i] = p.ID
	}
	b = make([]int64, len(s.TeamB))
	for i, p := range s.TeamB {
		b[i] = p.ID
	}
	return a, b
}

// Result carries the ranked splits and enumeration bookkeeping.
// Partial is set when the combination ceiling stopped enumeration early.
type Result struct {
	Splits   []Split
	Examined int
	Unique   int
	Partial  bool
}

// candidate is a retained split before materialization.
type candidate struct {
	mask       uint64
	sumA, sumB float64
	diff       float64
}

// Balancer enumerates and ranks roster splits. It holds no per-call state
// and is safe for concurrent use.
type Balancer struct {
	maxCombinations int
	teamSizes       []int
	logger          logger.Logger
}

// New creates a Balancer with configuration options.
func New(opts ...Option) *Balancer {
	b := &Balancer{
		maxCombinations: DefaultMaxCombinations,
		teamSizes:       slices.Clone(DefaultTeamSizes),
		logger:          logger.Get().Named("balancer"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// TeamSizes returns a copy of the supported team sizes.
func (b *Balancer) TeamSizes() []int {
	return slices.Clone(b.teamSizes)
}

// MaxCombinations returns the configured ceiling; <= 0 means unlimited.
func (b *Balancer) MaxCombinations() int {
	return b.maxCombinations
}

// Validate checks a request without enumerating anything.
func (b *Balancer) Validate(req Request) error {
	if len(req.Roster) != 2*req.TeamSize {
		return &RosterSizeError{Expected: 2 * req.TeamSize, Actual: len(req.Roster)}
	}

	var unrated []model.Player
	for _, p := range req.Roster {
		if !p.HasValidRating() {
			unrated = append(unrated, p)
		}
	}
	if len(unrated) > 0 {
		return &PlayerRatingError{Players: unrated}
	}

	// every team sum and diff is bounded by the total magnitude
	var magnitude float64
	for _, p := range req.Roster {
		magnitude += math.Abs(*p.Rating)
	}
	if math.IsInf(magnitude, 0) {
		return &PlayerRatingError{Overflow: true}
	}

	if !slices.Contains(b.teamSizes, req.TeamSize) {
		return &TeamSizeError{TeamSize: req.TeamSize, Supported: b.TeamSizes()}
	}

	if req.TopN < 1 {
		return ErrInvalidTopN
	}

	seen := make(map[int64]struct{}, len(req.Roster))
	for _, p := range req.Roster {
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: id %d", ErrDuplicatePlayer, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

// Balance returns the TopN most balanced splits of req.Roster.
//
// Validation failures are returned before any enumeration. Reaching the
// combination ceiling is not an error: the best splits found so far are
// returned with Partial set.
func (b *Balancer) Balance(ctx context.Context, req Request) (Result, error) {
	if err := b.Validate(req); err != nil {
		return Result{}, err
	}

	start := time.Now()
	roster := slices.Clone(req.Roster)
	slices.SortFunc(roster, func(x, y model.Player) int { return cmp.Compare(x.ID, y.ID) })

	n, k := len(roster), req.TeamSize
	ids := make([]int64, n)
	ratings := make([]float64, n)
	for i, p := range roster {
		ids[i] = p.ID
		ratings[i] = *p.Rating
	}

	capacity := min(binomial(n, k)/2, maxPrealloc)
	if b.maxCombinations > 0 {
		capacity = min(capacity, b.maxCombinations)
	}
	candidates := make([]candidate, 0, capacity)
	seen := make(map[string]struct{}, capacity)
	keys := newKeyBuilder(ids)

	var (
		examined int
		partial  bool
	)
	comb := newCombinations(n, k)
	for comb.next() {
		if b.maxCombinations > 0 && examined >= b.maxCombinations {
			partial = true
			break
		}
		examined++
		if examined%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				metrics.RecordCombinationsExamined(examined)
				return Result{}, fmt.Errorf("balance: %w", err)
			}
		}

		var mask uint64
		for _, i := range comb.idx {
			mask |= 1 << uint(i)
		}

		key := keys.build(mask)
		if _, dup := seen[string(key)]; dup {
			continue
		}
		seen[string(key)] = struct{}{}

		var sumA, sumB float64
		for i, r := range ratings {
			if mask&(1<<uint(i)) != 0 {
				sumA += r
			} else {
				sumB += r
			}
		}
		candidates = append(candidates, candidate{
			mask: mask,
			sumA: sumA,
			sumB: sumB,
			diff: math.Abs(sumA - sumB),
		})
	}

	// stable: equal diffs keep enumeration order
	slices.SortStableFunc(candidates, func(x, y candidate) int { return cmp.Compare(x.diff, y.diff) })

	top := min(req.TopN, len(candidates))
	splits := make([]Split, top)
	for i, c := range candidates[:top] {
		splits[i] = materialize(roster, c, k)
	}

	metrics.RecordRosterSize(n)
	metrics.RecordCombinationsExamined(examined)
	metrics.RecordBalanceLatency(float64(time.Since(start).Milliseconds()))
	if partial {
		metrics.RecordBalanceTruncated()
		b.logger.Warn(ctx, "combination ceiling reached, results may be incomplete",
			logger.Int("limit", b.maxCombinations),
			logger.Int("team_size", k),
			logger.Int("unique", len(candidates)),
		)
	}

	return Result{
		Splits:   splits,
		Examined: examined,
		Unique:   len(candidates),
		Partial:  partial,
	}, nil
}

func materialize(roster []model.Player, c candidate, k int) Split {
	s := Split{
		TeamA: make([]model.Player, 0, k),
		TeamB: make([]model.Player, 0, k),
		SumA:  c.sumA,
		SumB:  c.sumB,
		Diff:  c.diff,
	}
	for i, p := range roster {
		if c.mask&(1<<uint(i)) != 0 {
			s.TeamA = append(s.TeamA, p)
		} else {
			s.TeamB = append(s.TeamB, p)
		}
	}
	return s
}
