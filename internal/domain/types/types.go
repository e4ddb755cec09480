// Package types contains the JSON shapes exchanged over HTTP and read by the CLI
package types

import (
	"time"

	"github.com/okian/fulbito/internal/domain/balance"
	"github.com/okian/fulbito/internal/domain/model"
	"github.com/okian/fulbito/internal/domain/stats"
)

// Player is a roster member. A null rating is rejected by the balancer.
type Player struct {
	ID     int64    `json:"id"`
	Name   string   `json:"name"`
	Rating *float64 `json:"rating"`
}

// BalanceRequest balances an inline roster.
type BalanceRequest struct {
	Players  []Player `json:"players"`
	TeamSize int      `json:"team_size"`
	TopN     int      `json:"top_n,omitempty"`
}

// BalancePlayersRequest balances stored players by id.
type BalancePlayersRequest struct {
	PlayerIDs []int64 `json:"player_ids"`
	TeamSize  int     `json:"team_size"`
	TopN      int     `json:"top_n,omitempty"`
}

// Team is one side of a split.
type Team struct {
	Players []Player `json:"players"`
	Sum     float64  `json:"sum"`
}

// SplitOption is a ranked split. Rank starts at 1.
type SplitOption struct {
	Rank  int     `json:"rank"`
	TeamA Team    `json:"team_a"`
	TeamB Team    `json:"team_b"`
	Diff  float64 `json:"diff"`
}

// BalanceResponse carries the ranked options. Partial means the
// combination ceiling was reached and better splits may exist.
type BalanceResponse struct {
	Options  []SplitOption `json:"options"`
	Examined int           `json:"examined"`
	Unique   int           `json:"unique"`
	Partial  bool          `json:"partial"`
}

// JobResponse describes an asynchronous balance job.
type JobResponse struct {
	JobID       string           `json:"job_id"`
	Status      string           `json:"status"`
	SubmittedAt time.Time        `json:"submitted_at"`
	FinishedAt  *time.Time       `json:"finished_at,omitempty"`
	Result      *BalanceResponse `json:"result,omitempty"`
	Error       *ErrorResponse   `json:"error,omitempty"`
}

// CreatePlayerRequest registers a player.
type CreatePlayerRequest struct {
	Name   string   `json:"name"`
	Rating *float64 `json:"rating"`
}

// SaveMatchRequest persists a chosen split as a played match. The same
// shape replaces a stored match on edit.
type SaveMatchRequest struct {
	PlayedAt  time.Time `json:"played_at"`
	TeamA     []int64   `json:"team_a"`
	TeamB     []int64   `json:"team_b"`
	ScoreA    int       `json:"score_a"`
	ScoreB    int       `json:"score_b"`
	ReplayURL string    `json:"replay_url,omitempty"`
}

// DeleteMatchesRequest removes several matches at once.
type DeleteMatchesRequest struct {
	IDs []int64 `json:"ids"`
}

// DeleteMatchesResponse reports how many of the requested matches existed.
type DeleteMatchesResponse struct {
	Deleted int `json:"deleted"`
}

// Match is a stored match with its rosters.
type Match struct {
	ID        int64     `json:"id"`
	PlayedAt  time.Time `json:"played_at"`
	ScoreA    int       `json:"score_a"`
	ScoreB    int       `json:"score_b"`
	TeamA     []int64   `json:"team_a"`
	TeamB     []int64   `json:"team_b"`
	ReplayURL string    `json:"replay_url,omitempty"`
}

// SaveMatchResponse reports the stored match id. Duplicate is set when the
// idempotency key had already been used.
type SaveMatchResponse struct {
	MatchID   int64 `json:"match_id"`
	Duplicate bool  `json:"duplicate"`
}

// LeaderboardEntry is one leaderboard row. WinRate is null with no decided games.
type LeaderboardEntry struct {
	Rank        int      `json:"rank"`
	PlayerID    int64    `json:"player_id"`
	Name        string   `json:"name"`
	GamesPlayed int      `json:"games_played"`
	Wins        int      `json:"wins"`
	Losses      int      `json:"losses"`
	Draws       int      `json:"draws"`
	Streak      int      `json:"streak"`
	WinRate     *float64 `json:"win_rate"`
}

// Duo is pairwise chemistry for two players on the same side.
type Duo struct {
	Player1ID     int64   `json:"player1_id"`
	Player1Name   string  `json:"player1_name"`
	Player2ID     int64   `json:"player2_id"`
	Player2Name   string  `json:"player2_name"`
	GamesTogether int     `json:"games_together"`
	WinsTogether  int     `json:"wins_together"`
	WinRate       float64 `json:"win_rate"`
}

// DuosResponse lists duos plus the best one, if any.
type DuosResponse struct {
	Duos []Duo `json:"duos"`
	Best *Duo  `json:"best,omitempty"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Code    string  `json:"code"`
	Message string  `json:"message"`
	Players []int64 `json:"players,omitempty"`
}

// ToModelPlayers converts wire players to domain players.
func ToModelPlayers(in []Player) []model.Player {
	out := make([]model.Player, len(in))
	for i, p := range in {
		out[i] = model.Player{ID: p.ID, Name: p.Name, Rating: p.Rating}
	}
	return out
}

// FromModelPlayers converts domain players to wire players.
func FromModelPlayers(in []model.Player) []Player {
	out := make([]Player, len(in))
	for i, p := range in {
		out[i] = Player{ID: p.ID, Name: p.Name, Rating: p.Rating}
	}
	return out
}

// FromResult converts a balance result, ranking options from 1.
func FromResult(res balance.Result) BalanceResponse {
	out := BalanceResponse{
		Options:  make([]SplitOption, len(res.Splits)),
		Examined: res.Examined,
		Unique:   res.Unique,
		Partial:  res.Partial,
	}
	for i, s := range res.Splits {
		out.Options[i] = SplitOption{
			Rank:  i + 1,
			TeamA: Team{Players: FromModelPlayers(s.TeamA), Sum: s.SumA},
			TeamB: Team{Players: FromModelPlayers(s.TeamB), Sum: s.SumB},
			Diff:  s.Diff,
		}
	}
	return out
}

// FromPlayerStats converts leaderboard rows, ranking them in order.
func FromPlayerStats(in []stats.PlayerStats) []LeaderboardEntry {
	out := make([]LeaderboardEntry, len(in))
	for i, s := range in {
		out[i] = LeaderboardEntry{
			Rank:        i + 1,
			PlayerID:    s.PlayerID,
			Name:        s.Name,
			GamesPlayed: s.GamesPlayed,
			Wins:        s.Wins,
			Losses:      s.Losses,
			Draws:       s.Draws,
			Streak:      s.Streak,
			WinRate:     s.WinRate,
		}
	}
	return out
}

// FromDuoStats converts a duo aggregate.
func FromDuoStats(d stats.DuoStats) Duo {
	return Duo{
		Player1ID:     d.PlayerA,
		Player1Name:   d.NameA,
		Player2ID:     d.PlayerB,
		Player2Name:   d.NameB,
		GamesTogether: d.GamesTogether,
		WinsTogether:  d.WinsTogether,
		WinRate:       d.WinRate,
	}
}
