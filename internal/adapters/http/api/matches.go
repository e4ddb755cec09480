package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/fulbito/internal/domain/types"
)

// IdempotencyHeader carries the client's key for POST /matches.
const IdempotencyHeader = "Idempotency-Key"

// MatchDependencies defines the match operations.
type MatchDependencies interface {
	SaveMatch(ctx context.Context, key string, req types.SaveMatchRequest) (types.SaveMatchResponse, error)
	ListMatches(ctx context.Context) ([]types.Match, error)
	UpdateMatch(ctx context.Context, id int64, req types.SaveMatchRequest) (types.Match, error)
	DeleteMatch(ctx context.Context, id int64) error
	DeleteMatches(ctx context.Context, ids []int64) (int, error)
}

// MatchesHandler handles match requests.
type MatchesHandler struct {
	deps MatchDependencies
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(deps MatchDependencies) *MatchesHandler {
	return &MatchesHandler{deps: deps}
}

// HandleListMatches handles GET /matches.
func (h *MatchesHandler) HandleListMatches(w http.ResponseWriter, r *http.Request) {
	matches, err := h.deps.ListMatches(r.Context())
	if err != nil {
		writeError(w, r, Wrap("api.list_matches", err))
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

// HandleSaveMatch handles POST /matches. A replayed Idempotency-Key gets
// 200 with the original match id instead of 201.
func (h *MatchesHandler) HandleSaveMatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.save_match"
	var req types.SaveMatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	res, err := h.deps.SaveMatch(r.Context(), key, req)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	status := http.StatusCreated
	if res.Duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

// HandleDeleteMatch handles DELETE /matches/{id}.
func (h *MatchesHandler) HandleDeleteMatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_match"
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.DeleteMatch(r.Context(), id); err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleUpdateMatch handles PUT /matches/{id}. The body replaces the stored
// date, score, replay link and both rosters.
func (h *MatchesHandler) HandleUpdateMatch(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_match"
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	var req types.SaveMatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	m, err := h.deps.UpdateMatch(r.Context(), id, req)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// HandleDeleteMatches handles POST /matches/bulk-delete.
func (h *MatchesHandler) HandleDeleteMatches(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_matches"
	var req types.DeleteMatchesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	n, err := h.deps.DeleteMatches(r.Context(), req.IDs)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.DeleteMatchesResponse{Deleted: n})
}
