package api

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/okian/fulbito/internal/adapters/repository"
	"github.com/okian/fulbito/internal/domain/balance"
	"github.com/okian/fulbito/internal/domain/model"
	"github.com/okian/fulbito/internal/domain/types"
)

// BalanceDependencies defines the operations behind the balance endpoints.
type BalanceDependencies interface {
	SubmitBalance(ctx context.Context, req balance.Request) (string, error)
	Balance(ctx context.Context, req balance.Request) (balance.Result, error)
	BalancePlayers(ctx context.Context, playerIDs []int64, teamSize, topN int) (balance.Result, error)
	Roster(ctx context.Context, playerIDs []int64) ([]model.Player, error)
	Job(ctx context.Context, id string) (repository.Job, error)
	CancelJob(ctx context.Context, id string) (repository.Job, error)
}

// BalanceHandler handles team balancing requests.
type BalanceHandler struct {
	deps BalanceDependencies
}

// NewBalanceHandler creates a new balance handler.
func NewBalanceHandler(deps BalanceDependencies) *BalanceHandler {
	return &BalanceHandler{deps: deps}
}

// HandleBalance handles POST /balance. With ?async=true the job is queued
// and 202 is returned with its id.
func (h *BalanceHandler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	const op = "api.balance"
	var req types.BalanceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	h.run(w, r, op, balance.Request{
		Roster:   types.ToModelPlayers(req.Players),
		TeamSize: req.TeamSize,
		TopN:     req.TopN,
	})
}

// HandleBalancePlayers handles POST /balance/players.
func (h *BalanceHandler) HandleBalancePlayers(w http.ResponseWriter, r *http.Request) {
	const op = "api.balance_players"
	var req types.BalancePlayersRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	if isAsync(r) {
		roster, err := h.deps.Roster(r.Context(), req.PlayerIDs)
		if err != nil {
			writeError(w, r, Wrap(op, err))
			return
		}
		h.run(w, r, op, balance.Request{Roster: roster, TeamSize: req.TeamSize, TopN: req.TopN})
		return
	}
	res, err := h.deps.BalancePlayers(r.Context(), req.PlayerIDs, req.TeamSize, req.TopN)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.FromResult(res))
}

// HandleGetJob handles GET /balance/jobs/{id}.
func (h *BalanceHandler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_job"
	job, err := h.deps.Job(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, jobResponse(job))
}

// HandleCancelJob handles DELETE /balance/jobs/{id}.
func (h *BalanceHandler) HandleCancelJob(w http.ResponseWriter, r *http.Request) {
	const op = "api.cancel_job"
	job, err := h.deps.CancelJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusAccepted, jobResponse(job))
}

func (h *BalanceHandler) run(w http.ResponseWriter, r *http.Request, op string, req balance.Request) {
	if isAsync(r) {
		id, err := h.deps.SubmitBalance(r.Context(), req)
		if err != nil {
			writeError(w, r, Wrap(op, err))
			return
		}
		job, err := h.deps.Job(r.Context(), id)
		if err != nil {
			writeError(w, r, Wrap(op, err))
			return
		}
		w.Header().Set("Location", "/balance/jobs/"+id)
		writeJSON(w, http.StatusAccepted, jobResponse(job))
		return
	}

	res, err := h.deps.Balance(r.Context(), req)
	if err != nil {
		writeError(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, types.FromResult(res))
}

func isAsync(r *http.Request) bool {
	async, _ := strconv.ParseBool(r.URL.Query().Get("async"))
	return async
}

func jobResponse(job repository.Job) types.JobResponse {
	out := types.JobResponse{
		JobID:       job.ID,
		Status:      string(job.Status),
		SubmittedAt: job.SubmittedAt,
	}
	if !job.FinishedAt.IsZero() {
		finished := job.FinishedAt
		out.FinishedAt = &finished
	}
	switch job.Status {
	case model.JobDone:
		res := types.FromResult(job.Result)
		out.Result = &res
	case model.JobFailed, model.JobCancelled:
		if job.Err != nil {
			_, body := classify(job.Err)
			out.Error = &body
		}
	}
	return out
}
