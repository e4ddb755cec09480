package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	service "github.com/okian/fulbito/internal/app"
	"github.com/okian/fulbito/internal/domain/model"
	"github.com/okian/fulbito/internal/domain/types"
)

// PlayerDependencies defines the player registry operations.
type PlayerDependencies interface {
	CreatePlayer(ctx context.Context, name string, rating *float64) (model.Player, error)
	UpdatePlayer(ctx context.Context, id int64, u service.PlayerUpdate) (model.Player, error)
	DeletePlayer(ctx context.Context, id int64) error
	ListPlayers(ctx context.Context) ([]model.Player, error)
}

// PlayersHandler handles player requests.
type PlayersHandler struct {
	deps PlayerDependencies
}

// NewPlayersHandler creates a new players handler.
func NewPlayersHandler(deps PlayerDependencies) *PlayersHandler {
	return &PlayersHandler{deps: deps}
}

// updatePlayerRequest keeps rating raw so an absent field and an explicit
// null stay distinguishable.
type updatePlayerRequest struct {
	Name   *string         `json:"name"`
	Rating json.RawMessage `json:"rating"`
}

func (req updatePlayerRequest) update() (service.PlayerUpdate, error) {
	u := service.PlayerUpdate{Name: req.Name}
	if len(req.Rating) == 0 {
		return u, nil
	}
	u.SetRating = true
	if err := json.Unmarshal(req.Rating, &u.Rating); err != nil {
		return u, errors.New("rating must be a number or null")
	}
	return u, nil
}

// HandleListPlayers handles GET /players.
func (h *PlayersHandler) HandleListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := h.deps.ListPlayers(r.Context())
	if err != nil {
		writeError(w, r, Wrap("api.list_players", err))
		return
	}
	writeJSON(w, http.StatusOK, types.FromModelPlayers(players))
}

// HandleCreatePlayer handles POST /players.
func (h *PlayersHandler) HandleCreatePlayer(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_player"
	var req types.CreatePlayerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	p, err := h.deps.CreatePlayer(r.Context(), req.Name, req.Rating)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, types.FromModelPlayers([]model.Player{p})[0])
}

// HandleUpdatePlayer handles PATCH /players/{id}. Either field may be
// omitted; a null rating clears it.
func (h *PlayersHandler) HandleUpdatePlayer(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_player"
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	var req updatePlayerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	u, err := req.update()
	if err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	p, err := h.deps.UpdatePlayer(r.Context(), id, u)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.FromModelPlayers([]model.Player{p})[0])
}

// HandleDeletePlayer handles DELETE /players/{id}.
func (h *PlayersHandler) HandleDeletePlayer(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_player"
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.deps.DeletePlayer(r.Context(), id); err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
