// Package repository stores balance jobs in memory and players and matches
// in SQL.
package repository

import (
	"context"

	"github.com/okian/fulbito/internal/domain/model"
)

// MatchRecord is a match with the players on each side.
type MatchRecord struct {
	Match model.Match
	TeamA []int64
	TeamB []int64
}

// Store provides read/write access to players and matches.
type Store interface {
	// CreatePlayer inserts a player and returns it with its new ID.
	CreatePlayer(ctx context.Context, name string, rating *float64) (model.Player, error)

	// UpdatePlayerRating sets or clears a player's rating.
	// Returns ErrNotFound if the player is unknown.
	UpdatePlayerRating(ctx context.Context, id int64, rating *float64) error

	// RenamePlayer changes a player's name. Returns ErrNotFound if unknown.
	RenamePlayer(ctx context.Context, id int64, name string) error

	// DeletePlayer removes a player together with their participations.
	// Returns ErrNotFound if the player is unknown.
	DeletePlayer(ctx context.Context, id int64) error

	// GetPlayer returns one player or ErrNotFound.
	GetPlayer(ctx context.Context, id int64) (model.Player, error)

	// ListPlayers returns the given players, or all players when ids is empty,
	// ordered by ID. Unknown ids are skipped.
	ListPlayers(ctx context.Context, ids ...int64) ([]model.Player, error)

	// CreateMatch stores a match and its participations atomically.
	CreateMatch(ctx context.Context, m model.Match, teamA, teamB []int64) (model.Match, error)

	// UpdateMatch replaces the match identified by m.ID and both rosters
	// atomically. Returns ErrNotFound if the match is unknown.
	UpdateMatch(ctx context.Context, m model.Match, teamA, teamB []int64) (model.Match, error)

	// ListMatches returns matches newest first with their rosters.
	ListMatches(ctx context.Context) ([]MatchRecord, error)

	// ListParticipations returns every participation row.
	ListParticipations(ctx context.Context) ([]model.Participation, error)

	// DeleteMatch removes a match and its participations.
	// Returns ErrNotFound if the match is unknown.
	DeleteMatch(ctx context.Context, id int64) error

	// DeleteMatches removes several matches and reports how many existed.
	DeleteMatches(ctx context.Context, ids ...int64) (int, error)

	Close() error
}
