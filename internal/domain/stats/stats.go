// Package stats reduces match and participation records into per-player
// and per-pair statistics.
package stats

import (
	"cmp"
	"math"
	"slices"

	"github.com/okian/fulbito/internal/domain/model"
)

// DefaultMinDuoGames is the games-together threshold for duo reporting.
const DefaultMinDuoGames = 5

// PlayerStats aggregates one player's results.
// WinRate is nil when the player has no decided games.
type PlayerStats struct {
	PlayerID    int64
	Name        string
	GamesPlayed int
	Wins        int
	Losses      int
	Draws       int
	Streak      int
	WinRate     *float64
}

// DuoStats aggregates results of two players on the same side.
// PlayerA always holds the lower ID.
type DuoStats struct {
	PlayerA       int64
	PlayerB       int64
	NameA         string
	NameB         string
	GamesTogether int
	WinsTogether  int
	WinRate       float64
}

// Has reports whether the pair includes the player.
func (d DuoStats) Has(playerID int64) bool {
	return d.PlayerA == playerID || d.PlayerB == playerID
}

// Aggregate computes PlayerStats for every given player, in input order.
// Participations whose match or player is unknown are skipped.
func Aggregate(players []model.Player, matches []model.Match, participations []model.Participation) []PlayerStats {
	byMatch := indexMatches(matches)
	out := make([]PlayerStats, len(players))
	index := make(map[int64]int, len(players))
	for i, p := range players {
		out[i] = PlayerStats{PlayerID: p.ID, Name: p.Name}
		index[p.ID] = i
	}

	// per player history for streaks
	history := make(map[int64][]played, len(players))
	for _, part := range participations {
		m, ok := byMatch[part.MatchID]
		if !ok {
			continue
		}
		i, ok := index[part.PlayerID]
		if !ok {
			continue
		}
		s := &out[i]
		s.GamesPlayed++
		res := outcome(m, part.Side)
		switch res {
		case win:
			s.Wins++
		case loss:
			s.Losses++
		default:
			s.Draws++
		}
		history[part.PlayerID] = append(history[part.PlayerID], played{match: m, result: res})
	}

	for i := range out {
		s := &out[i]
		if decided := s.Wins + s.Losses; decided > 0 {
			rate := percent(s.Wins, decided)
			s.WinRate = &rate
		}
		s.Streak = streak(history[s.PlayerID])
	}
	return out
}

// Duos computes statistics for every pair that shared a side at least
// minGames times. Values of minGames below one are treated as one.
func Duos(players []model.Player, matches []model.Match, participations []model.Participation, minGames int) []DuoStats {
	minGames = max(minGames, 1)
	byMatch := indexMatches(matches)
	names := make(map[int64]string, len(players))
	for _, p := range players {
		names[p.ID] = p.Name
	}

	type sideKey struct {
		match int64
		side  model.Side
	}
	sides := make(map[sideKey][]int64)
	var order []sideKey
	for _, part := range participations {
		if _, ok := byMatch[part.MatchID]; !ok {
			continue
		}
		if _, ok := names[part.PlayerID]; !ok {
			continue
		}
		k := sideKey{part.MatchID, part.Side}
		if _, ok := sides[k]; !ok {
			order = append(order, k)
		}
		if !slices.Contains(sides[k], part.PlayerID) {
			sides[k] = append(sides[k], part.PlayerID)
		}
	}

	type pair struct{ a, b int64 }
	acc := make(map[pair]*DuoStats)
	for _, k := range order {
		won := outcome(byMatch[k.match], k.side) == win
		members := sides[k]
		slices.Sort(members)
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				p := pair{members[i], members[j]}
				d, ok := acc[p]
				if !ok {
					d = &DuoStats{PlayerA: p.a, PlayerB: p.b, NameA: names[p.a], NameB: names[p.b]}
					acc[p] = d
				}
				d.GamesTogether++
				if won {
					d.WinsTogether++
				}
			}
		}
	}

	out := make([]DuoStats, 0, len(acc))
	for _, d := range acc {
		if d.GamesTogether < minGames {
			continue
		}
		d.WinRate = percent(d.WinsTogether, d.GamesTogether)
		out = append(out, *d)
	}
	slices.SortFunc(out, func(x, y DuoStats) int {
		return cmp.Or(cmp.Compare(x.PlayerA, y.PlayerA), cmp.Compare(x.PlayerB, y.PlayerB))
	})
	return out
}

type result int

const (
	draw result = iota
	win
	loss
)

type played struct {
	match  model.Match
	result result
}

func outcome(m model.Match, side model.Side) result {
	switch m.Winner() {
	case "":
		return draw
	case side:
		return win
	}
	return loss
}

// streak counts consecutive wins back from the most recent match.
func streak(history []played) int {
	slices.SortFunc(history, func(x, y played) int {
		// newest first; same instant falls back to the higher match id
		if c := y.match.PlayedAt.Compare(x.match.PlayedAt); c != 0 {
			return c
		}
		return cmp.Compare(y.match.ID, x.match.ID)
	})
	n := 0
	for _, h := range history {
		if h.result != win {
			break
		}
		n++
	}
	return n
}

func indexMatches(matches []model.Match) map[int64]model.Match {
	byID := make(map[int64]model.Match, len(matches))
	for _, m := range matches {
		byID[m.ID] = m
	}
	return byID
}

// percent returns part/total as a percentage rounded to one decimal.
func percent(part, total int) float64 {
	return math.Round(float64(part)/float64(total)*1000) / 10
}
