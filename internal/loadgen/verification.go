package loadgen

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/okian/fulbito/internal/domain/types"
)

const sumTolerance = 1e-6

// Verify checks a balance response against its request: every option is
// a partition into two teams of TeamSize, sums and diff match the ratings,
// options are ordered by ascending diff, no two options are mirrors of each
// other, and a complete result holds min(TopN, C(2k,k)/2) options.
func Verify(req types.BalanceRequest, res types.BalanceResponse) error {
	ratings := make(map[int64]float64, len(req.Players))
	for _, p := range req.Players {
		if p.Rating == nil {
			return fmt.Errorf("%w: request player %d is unrated", ErrVerification, p.ID)
		}
		ratings[p.ID] = *p.Rating
	}

	seen := make(map[string]int, len(res.Options))
	for i, opt := range res.Options {
		if opt.Rank != i+1 {
			return fmt.Errorf("%w: option %d has rank %d", ErrVerification, i, opt.Rank)
		}
		if err := verifyPartition(req, opt, ratings); err != nil {
			return fmt.Errorf("%w: option %d: %w", ErrVerification, opt.Rank, err)
		}
		if i > 0 && opt.Diff < res.Options[i-1].Diff {
			return fmt.Errorf("%w: option %d diff %.3f below previous %.3f",
				ErrVerification, opt.Rank, opt.Diff, res.Options[i-1].Diff)
		}
		key := canonicalKey(opt)
		if prev, dup := seen[key]; dup {
			return fmt.Errorf("%w: options %d and %d are the same split", ErrVerification, prev, opt.Rank)
		}
		seen[key] = opt.Rank
	}

	if !res.Partial {
		want := min(req.TopN, halfBinomial(2*req.TeamSize, req.TeamSize))
		if len(res.Options) != want {
			return fmt.Errorf("%w: got %d options, want %d", ErrVerification, len(res.Options), want)
		}
	}
	return nil
}

func verifyPartition(req types.BalanceRequest, opt types.SplitOption, ratings map[int64]float64) error {
	k := req.TeamSize
	if len(opt.TeamA.Players) != k || len(opt.TeamB.Players) != k {
		return fmt.Errorf("team sizes %d/%d, want %d", len(opt.TeamA.Players), len(opt.TeamB.Players), k)
	}

	used := make(map[int64]bool, 2*k)
	sum := func(team []types.Player) (float64, error) {
		var s float64
		for _, p := range team {
			r, ok := ratings[p.ID]
			if !ok {
				return 0, fmt.Errorf("player %d not in roster", p.ID)
			}
			if used[p.ID] {
				return 0, fmt.Errorf("player %d appears twice", p.ID)
			}
			used[p.ID] = true
			s += r
		}
		return s, nil
	}

	sumA, err := sum(opt.TeamA.Players)
	if err != nil {
		return err
	}
	sumB, err := sum(opt.TeamB.Players)
	if err != nil {
		return err
	}
	if len(used) != len(ratings) {
		return fmt.Errorf("%d of %d roster players placed", len(used), len(ratings))
	}
	if math.Abs(sumA-opt.TeamA.Sum) > sumTolerance || math.Abs(sumB-opt.TeamB.Sum) > sumTolerance {
		return fmt.Errorf("sums %.3f/%.3f, want %.3f/%.3f", opt.TeamA.Sum, opt.TeamB.Sum, sumA, sumB)
	}
	if math.Abs(math.Abs(sumA-sumB)-opt.Diff) > sumTolerance {
		return fmt.Errorf("diff %.3f, want %.3f", opt.Diff, math.Abs(sumA-sumB))
	}
	return nil
}

// canonicalKey identifies a split regardless of which side is called A.
func canonicalKey(opt types.SplitOption) string {
	a, b := teamKey(opt.TeamA.Players), teamKey(opt.TeamB.Players)
	if b < a {
		a, b = b, a
	}
	return a + "|" + b
}

func teamKey(team []types.Player) string {
	ids := make([]int64, len(team))
	for i, p := range team {
		ids[i] = p.ID
	}
	slices.SortFunc(ids, cmp.Compare[int64])
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// halfBinomial returns C(n,k)/2, the number of distinct splits of n=2k.
func halfBinomial(n, k int) int {
	c := 1
	for i := 1; i <= k; i++ {
		c = c * (n - k + i) / i
	}
	return c / 2
}
