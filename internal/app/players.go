package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/fulbito/internal/domain/model"
	"github.com/okian/fulbito/pkg/logger"
)

// PlayerUpdate lists the fields to change on a player. A nil Name keeps
// the name; SetRating applies Rating, where nil clears the rating.
type PlayerUpdate struct {
	Name      *string
	Rating    *float64
	SetRating bool
}

// CreatePlayer registers a player. A nil rating leaves the player unrated.
func (s *Service) CreatePlayer(ctx context.Context, name string, rating *float64) (model.Player, error) {
	store, err := s.playerStore()
	if err != nil {
		return model.Player{}, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Player{}, fmt.Errorf("create player: %w: empty name", ErrInvalidPlayer)
	}
	if err := checkRating(rating); err != nil {
		return model.Player{}, fmt.Errorf("create player: %w", err)
	}
	return store.CreatePlayer(ctx, name, rating)
}

// UpdatePlayer renames a player and/or sets their manual rating. Every
// field is validated before anything is written.
func (s *Service) UpdatePlayer(ctx context.Context, id int64, u PlayerUpdate) (model.Player, error) {
	store, err := s.playerStore()
	if err != nil {
		return model.Player{}, err
	}

	var name string
	switch {
	case u.Name == nil && !u.SetRating:
		return model.Player{}, fmt.Errorf("update player: %w: nothing to change", ErrInvalidPlayer)
	case u.Name != nil:
		if name = strings.TrimSpace(*u.Name); name == "" {
			return model.Player{}, fmt.Errorf("update player: %w: empty name", ErrInvalidPlayer)
		}
	}
	if u.SetRating {
		if err := checkRating(u.Rating); err != nil {
			return model.Player{}, fmt.Errorf("update player: %w", err)
		}
	}

	if u.Name != nil {
		if err := store.RenamePlayer(ctx, id, name); err != nil {
			return model.Player{}, err
		}
	}
	if u.SetRating {
		if err := store.UpdatePlayerRating(ctx, id, u.Rating); err != nil {
			return model.Player{}, err
		}
	}
	return store.GetPlayer(ctx, id)
}

// DeletePlayer removes a player and their appearances in stored matches.
func (s *Service) DeletePlayer(ctx context.Context, id int64) error {
	store, err := s.playerStore()
	if err != nil {
		return err
	}
	if err := store.DeletePlayer(ctx, id); err != nil {
		return err
	}
	s.logger.Info(ctx, "player deleted", logger.Int64("player_id", id))
	return nil
}

// ListPlayers returns every stored player ordered by ID.
func (s *Service) ListPlayers(ctx context.Context) ([]model.Player, error) {
	store, err := s.playerStore()
	if err != nil {
		return nil, err
	}
	return store.ListPlayers(ctx)
}

func checkRating(rating *float64) error {
	if rating != nil && !(model.Player{Rating: rating}).HasValidRating() {
		return fmt.Errorf("%w: rating must be finite", ErrInvalidPlayer)
	}
	return nil
}
