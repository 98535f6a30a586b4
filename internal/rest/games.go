package rest

import (
	"context"
	"fmt"
	"net/url"

	"github.com/arcade-live/tablesync/internal/model"
)

// ListGamesOptions filters the games listing.
type ListGamesOptions struct {
	Status string // Filter by lifecycle state, empty for all
}

// ListGames fetches the game listing.
func (c *Client) ListGames(ctx context.Context, opts ListGamesOptions) ([]model.Game, error) {
	query := url.Values{}
	if opts.Status != "" {
		query.Set("status", opts.Status)
	}

	var resp GamesResponse
	if err := c.get(ctx, "/games", query, &resp); err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}

	games := make([]model.Game, 0, len(resp.Games))
	for _, g := range resp.Games {
		games = append(games, g.ToModel())
	}
	return games, nil
}

// GetGame fetches a single game by ID.
func (c *Client) GetGame(ctx context.Context, id string) (model.Game, error) {
	var resp SingleGameResponse
	if err := c.get(ctx, "/games/"+id, nil, &resp); err != nil {
		return model.Game{}, fmt.Errorf("get game %s: %w", id, err)
	}
	return resp.Game.ToModel(), nil
}

// GetProfile fetches the authenticated player's profile.
func (c *Client) GetProfile(ctx context.Context) (model.Profile, error) {
	var resp ProfileResponse
	if err := c.get(ctx, "/profile", nil, &resp); err != nil {
		return model.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return resp.Profile.ToModel(), nil
}

// ListReservations fetches the player's seat holds.
func (c *Client) ListReservations(ctx context.Context) ([]model.Reservation, error) {
	var resp ReservationsResponse
	if err := c.get(ctx, "/reservations", nil, &resp); err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}

	holds := make([]model.Reservation, 0, len(resp.Reservations))
	for _, r := range resp.Reservations {
		holds = append(holds, r.ToModel())
	}
	return holds, nil
}
