package model

import (
	"fmt"
	"strings"
	"time"
)

// Side identifies which team a player played for.
type Side string

// Known sides.
const (
	SideA Side = "A"
	SideB Side = "B"
)

// ParseSide accepts "A"/"B" in any case.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideA:
		return SideA, nil
	case SideB:
		return SideB, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

// Match is a played game with its final score. ReplayURL is empty when no
// recording was attached.
type Match struct {
	ID        int64
	PlayedAt  time.Time
	ScoreA    int
	ScoreB    int
	ReplayURL string
}

// Winner returns the winning side, or "" for a draw.
func (m Match) Winner() Side {
	switch {
	case m.ScoreA > m.ScoreB:
		return SideA
	case m.ScoreB > m.ScoreA:
		return SideB
	}
	return ""
}

// Participation records that a player took part in a match on a side.
type Participation struct {
	MatchID  int64
	PlayerID int64
	Side     Side
}
