package service

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Sentinel kinds for service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrBackpressure   = errors.New("job queue full")
	ErrNoStore        = errors.New("no player store configured")
	ErrMissingPlayers = errors.New("unknown players")
	ErrInFlight       = errors.New("request with this idempotency key is in progress")
	ErrInvalidLimit   = errors.New("invalid limit")
	ErrInvalidPlayer  = errors.New("invalid player")
)

// MissingPlayersError lists requested player IDs that are not stored.
type MissingPlayersError struct {
	IDs []int64
}

func (e *MissingPlayersError) Error() string {
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("%s: %s", ErrMissingPlayers, strings.Join(ids, ", "))
}

func (e *MissingPlayersError) Unwrap() error { return ErrMissingPlayers }
