package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/fulbito/internal/adapters/repository"
	service "github.com/okian/fulbito/internal/app"
	"github.com/okian/fulbito/internal/domain/balance"
	"github.com/okian/fulbito/internal/domain/stats"
	"github.com/okian/fulbito/internal/domain/types"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrNotFound     = errors.New("not found")
)

// opError tags an error with the handler operation that produced it.
type opError struct {
	op   string
	kind error
	err  error
}

func (e *opError) Error() string {
	switch {
	case e.kind != nil && e.err != nil:
		return e.op + ": " + e.kind.Error() + ": " + e.err.Error()
	case e.kind != nil:
		return e.op + ": " + e.kind.Error()
	default:
		return e.op + ": " + e.err.Error()
	}
}

func (e *opError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.kind != nil {
		out = append(out, e.kind)
	}
	if e.err != nil {
		out = append(out, e.err)
	}
	return out
}

// Wrap annotates err with op. It returns nil for a nil err.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &opError{op: op, err: err}
}

// NewKind returns an error of the given kind raised by op.
func NewKind(op string, kind error) error {
	return &opError{op: op, kind: kind}
}

// WrapKind classifies err as kind and annotates it with op.
func WrapKind(op string, kind, err error) error {
	return &opError{op: op, kind: kind, err: err}
}

// classify maps a service error onto a status code and error body.
func classify(err error) (int, types.ErrorResponse) {
	var (
		rse *balance.RosterSizeError
		pre *balance.PlayerRatingError
		tse *balance.TeamSizeError
		mpe *service.MissingPlayersError
	)
	resp := types.ErrorResponse{Message: err.Error()}

	switch {
	case errors.As(err, &rse):
		resp.Code = "invalid_roster_size"
		return http.StatusBadRequest, resp
	case errors.As(err, &pre):
		resp.Code = "invalid_player_rating"
		for _, p := range pre.Players {
			resp.Players = append(resp.Players, p.ID)
		}
		return http.StatusBadRequest, resp
	case errors.As(err, &tse):
		resp.Code = "unsupported_team_size"
		return http.StatusBadRequest, resp
	case errors.Is(err, balance.ErrInvalidTopN):
		resp.Code = "invalid_top_n"
		return http.StatusBadRequest, resp
	case errors.Is(err, balance.ErrDuplicatePlayer):
		resp.Code = "duplicate_player"
		return http.StatusBadRequest, resp
	case errors.As(err, &mpe):
		resp.Code = "unknown_players"
		resp.Players = mpe.IDs
		return http.StatusBadRequest, resp
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, repository.ErrInvalidMatch),
		errors.Is(err, service.ErrInvalidPlayer),
		errors.Is(err, service.ErrInvalidLimit),
		errors.Is(err, stats.ErrUnknownSortKey):
		resp.Code = "bad_request"
		return http.StatusBadRequest, resp
	case errors.Is(err, ErrNotFound), errors.Is(err, repository.ErrNotFound):
		resp.Code = "not_found"
		return http.StatusNotFound, resp
	case errors.Is(err, service.ErrInFlight):
		resp.Code = "conflict"
		return http.StatusConflict, resp
	case errors.Is(err, ErrBackpressure), errors.Is(err, service.ErrBackpressure):
		resp.Code = "backpressure"
		return http.StatusTooManyRequests, resp
	case errors.Is(err, repository.ErrJobCancelled):
		resp.Code = "cancelled"
		return http.StatusConflict, resp
	case errors.Is(err, service.ErrNotStarted),
		errors.Is(err, service.ErrNoStore),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		resp.Code = "unavailable"
		return http.StatusServiceUnavailable, resp
	default:
		resp.Code = "internal_error"
		return http.StatusInternalServerError, resp
	}
}
