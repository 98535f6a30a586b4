package rest

import (
	"time"

	"github.com/arcade-live/tablesync/internal/model"
)

// APIGame is a game record as the REST API returns it.
type APIGame struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	Stake      int64     `json:"stake"`
	MaxSeats   int       `json:"max_seats"`
	SeatsTaken int       `json:"seats_taken"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ToModel converts an APIGame to the internal model.
func (g APIGame) ToModel() model.Game {
	return model.Game{
		ID:         g.ID,
		Title:      g.Title,
		Status:     model.GameStatus(g.Status),
		Stake:      g.Stake,
		MaxSeats:   g.MaxSeats,
		SeatsTaken: g.SeatsTaken,
		CreatedAt:  g.CreatedAt,
		UpdatedAt:  g.UpdatedAt,
	}
}

// APIReservation is a seat hold as the REST API returns it.
type APIReservation struct {
	GameID    string    `json:"game_id"`
	Holder    string    `json:"holder"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ToModel converts an APIReservation to the internal model. A missing
// status means the hold is live.
func (r APIReservation) ToModel() model.Reservation {
	status := model.ReservationStatus(r.Status)
	if status == "" {
		status = model.ReservationActive
	}
	return model.Reservation{
		GameID:    r.GameID,
		Holder:    r.Holder,
		Status:    status,
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
	}
}

// APIProfile is the player record as the REST API returns it.
type APIProfile struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// ToModel converts an APIProfile to the internal model.
func (p APIProfile) ToModel() model.Profile {
	return model.Profile{
		ID:        p.ID,
		Username:  p.Username,
		CreatedAt: p.CreatedAt,
	}
}

// GamesResponse is the payload of GET /games.
type GamesResponse struct {
	Games []APIGame `json:"games"`
}

// SingleGameResponse is the payload of GET /games/{id}.
type SingleGameResponse struct {
	Game APIGame `json:"game"`
}

// ProfileResponse is the payload of GET /profile.
type ProfileResponse struct {
	Profile APIProfile `json:"profile"`
}

// ReservationsResponse is the payload of GET /reservations.
type ReservationsResponse struct {
	Reservations []APIReservation `json:"reservations"`
}
