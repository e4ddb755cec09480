package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/okian/fulbito/internal/domain/types"
)

// LeaderboardDependencies defines the stats operations.
type LeaderboardDependencies interface {
	Leaderboard(ctx context.Context, sortBy string, desc bool, limit, minGames int) ([]types.LeaderboardEntry, error)
	Duos(ctx context.Context, minGames int, playerID int64, sortBy string, desc bool) (types.DuosResponse, error)
}

// LeaderboardHandler handles leaderboard and duo requests.
type LeaderboardHandler struct {
	deps LeaderboardDependencies
}

// NewLeaderboardHandler creates a new leaderboard handler.
func NewLeaderboardHandler(deps LeaderboardDependencies) *LeaderboardHandler {
	return &LeaderboardHandler{deps: deps}
}

// HandleGetLeaderboard handles GET /leaderboard?sort=&order=&limit=&min_games=.
func (h *LeaderboardHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_leaderboard"
	limit, err := queryInt(r, "limit", 0)
	if err != nil || limit < 0 {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	minGames, err := queryInt(r, "min_games", 0)
	if err != nil || minGames < 0 {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	desc, err := queryDesc(r)
	if err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	entries, err := h.deps.Leaderboard(r.Context(), r.URL.Query().Get("sort"), desc, limit, minGames)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// HandleGetDuos handles GET /duos?min_games=&player_id=&sort=&order=.
func (h *LeaderboardHandler) HandleGetDuos(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_duos"
	minGames, err := queryInt(r, "min_games", 0)
	if err != nil || minGames < 0 {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	var playerID int64
	if raw := r.URL.Query().Get("player_id"); raw != "" {
		playerID, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || playerID < 1 {
			writeError(w, r, WrapKind(op, ErrBadRequest, err))
			return
		}
	}
	desc, err := queryDesc(r)
	if err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.Duos(r.Context(), minGames, playerID, r.URL.Query().Get("sort"), desc)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}
