// Package model contains domain models passed between layers.
package model

import "math"

// Player is a rated member of a roster.
// Rating is nil when the player has not been rated yet.
type Player struct {
	ID     int64
	Name   string
	Rating *float64
}

// Rated returns a copy of p with the given rating.
func (p Player) Rated(r float64) Player {
	p.Rating = &r
	return p
}

// HasValidRating reports whether the rating is present and finite.
func (p Player) HasValidRating() bool {
	return p.Rating != nil && !math.IsNaN(*p.Rating) && !math.IsInf(*p.Rating, 0)
}

// RatingValue returns the rating or zero when unset.
func (p Player) RatingValue() float64 {
	if p.Rating == nil {
		return 0
	}
	return *p.Rating
}
