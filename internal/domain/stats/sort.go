package stats

import (
	"cmp"
	"fmt"
	"math"
	"slices"
)

// SortKey names a column to order statistics by.
type SortKey string

// Supported sort keys. Duos accept only SortByWinRate and SortByGames.
const (
	SortByWinRate SortKey = "win_rate"
	SortByGames   SortKey = "games"
	SortByWins    SortKey = "wins"
	SortByName    SortKey = "name"
)

// ParseSortKey validates s; an empty string selects SortByWinRate.
func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(s); k {
	case "":
		return SortByWinRate, nil
	case SortByWinRate, SortByGames, SortByWins, SortByName:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownSortKey, s)
}

// SortLeaderboard orders stats in place. A nil win rate ranks below every
// value. Ties fall back to player ID ascending.
func SortLeaderboard(stats []PlayerStats, by SortKey, desc bool) error {
	var compare func(x, y PlayerStats) int
	switch by {
	case SortByWinRate, "":
		compare = func(x, y PlayerStats) int { return cmp.Compare(rateOrLowest(x.WinRate), rateOrLowest(y.WinRate)) }
	case SortByGames:
		compare = func(x, y PlayerStats) int { return cmp.Compare(x.GamesPlayed, y.GamesPlayed) }
	case SortByWins:
		compare = func(x, y PlayerStats) int { return cmp.Compare(x.Wins, y.Wins) }
	case SortByName:
		compare = func(x, y PlayerStats) int { return cmp.Compare(x.Name, y.Name) }
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSortKey, by)
	}
	slices.SortStableFunc(stats, func(x, y PlayerStats) int {
		c := compare(x, y)
		if desc {
			c = -c
		}
		return cmp.Or(c, cmp.Compare(x.PlayerID, y.PlayerID))
	})
	return nil
}

// SortDuos orders duos in place by win rate or games together.
func SortDuos(duos []DuoStats, by SortKey, desc bool) error {
	var compare func(x, y DuoStats) int
	switch by {
	case SortByWinRate, "":
		compare = func(x, y DuoStats) int { return cmp.Compare(x.WinRate, y.WinRate) }
	case SortByGames:
		compare = func(x, y DuoStats) int { return cmp.Compare(x.GamesTogether, y.GamesTogether) }
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSortKey, by)
	}
	slices.SortStableFunc(duos, func(x, y DuoStats) int {
		c := compare(x, y)
		if desc {
			c = -c
		}
		return cmp.Or(c, cmp.Compare(x.PlayerA, y.PlayerA), cmp.Compare(x.PlayerB, y.PlayerB))
	})
	return nil
}

// BestDuo returns the pair with the highest win rate, preferring more
// games together on ties. ok is false when duos is empty.
func BestDuo(duos []DuoStats) (best DuoStats, ok bool) {
	for _, d := range duos {
		if !ok || d.WinRate > best.WinRate || (d.WinRate == best.WinRate && d.GamesTogether > best.GamesTogether) {
			best, ok = d, true
		}
	}
	return best, ok
}

// FilterDuos keeps the pairs that include playerID.
func FilterDuos(duos []DuoStats, playerID int64) []DuoStats {
	out := make([]DuoStats, 0, len(duos))
	for _, d := range duos {
		if d.Has(playerID) {
			out = append(out, d)
		}
	}
	return out
}

// FilterMinGames keeps players with at least minGames games played.
// minGames <= 0 keeps everyone.
func FilterMinGames(stats []PlayerStats, minGames int) []PlayerStats {
	if minGames <= 0 {
		return stats
	}
	out := make([]PlayerStats, 0, len(stats))
	for _, s := range stats {
		if s.GamesPlayed >= minGames {
			out = append(out, s)
		}
	}
	return out
}

func rateOrLowest(r *float64) float64 {
	if r == nil {
		return math.Inf(-1)
	}
	return *r
}
