package balance

import (
	"errors"
	"fmt"
	"strings"

	"github.com/okian/fulbito/internal/domain/model"
)

// Sentinel kinds for balance validation errors.
var (
	ErrInvalidRosterSize   = errors.New("invalid roster size")
	ErrInvalidPlayerRating = errors.New("invalid player rating")
	ErrUnsupportedTeamSize = errors.New("unsupported team size")
	ErrInvalidTopN         = errors.New("top n must be at least 1")
	ErrDuplicatePlayer     = errors.New("duplicate player in roster")
)

// RosterSizeError reports a roster that is not exactly twice the team size.
type RosterSizeError struct {
	Expected int
	Actual   int
}

func (e *RosterSizeError) Error() string {
	return fmt.Sprintf("%s: expected %d players, got %d", ErrInvalidRosterSize, e.Expected, e.Actual)
}

func (e *RosterSizeError) Unwrap() error { return ErrInvalidRosterSize }

// PlayerRatingError lists every roster player without a usable rating.
// Overflow is set instead when every rating is finite but their total
// magnitude does not fit a float64.
type PlayerRatingError struct {
	Players  []model.Player
	Overflow bool
}

func (e *PlayerRatingError) Error() string {
	if e.Overflow {
		return fmt.Sprintf("%s: rating total overflows", ErrInvalidPlayerRating)
	}
	names := make([]string, 0, len(e.Players))
	for _, p := range e.Players {
		names = append(names, fmt.Sprintf("%s (id %d)", p.Name, p.ID))
	}
	return fmt.Sprintf("%s: %s", ErrInvalidPlayerRating, strings.Join(names, ", "))
}

func (e *PlayerRatingError) Unwrap() error { return ErrInvalidPlayerRating }

// TeamSizeError reports a team size outside the supported set.
type TeamSizeError struct {
	TeamSize  int
	Supported []int
}

func (e *TeamSizeError) Error() string {
	return fmt.Sprintf("%s: %d (supported: %v)", ErrUnsupportedTeamSize, e.TeamSize, e.Supported)
}

func (e *TeamSizeError) Unwrap() error { return ErrUnsupportedTeamSize }
