package model

import "time"

// -----------------------------------------------------------------------------
// Games
// -----------------------------------------------------------------------------

// GameStatus is the lifecycle state of a game table as reported by the server.
type GameStatus string

const (
	GameWaiting   GameStatus = "waiting"   // Table open, gathering players
	GameActive    GameStatus = "active"    // Hand in progress
	GameFinished  GameStatus = "finished"  // Table played out
	GameCancelled GameStatus = "cancelled" // Closed by the host before play
)

// Open reports whether the table can still be joined or reserved.
func (s GameStatus) Open() bool {
	return s == GameWaiting || s == GameActive
}

// Game represents one game table on the platform.
type Game struct {
	ID         string     // Primary key
	Title      string     // Display title
	Status     GameStatus // Lifecycle state
	Stake      int64      // Entry stake (minor currency units)
	MaxSeats   int        // Total seats at the table
	SeatsTaken int        // Seats currently occupied
	CreatedAt  time.Time  // Server creation time
	UpdatedAt  time.Time  // Server time of the last mutation
}

// ApplyFields merges a partial field map from a state update into the game.
// Only known keys are applied; unknown keys and mistyped values are ignored
// so that newer server payloads cannot corrupt the local record.
func (g *Game) ApplyFields(fields map[string]any) {
	for key, raw := range fields {
		switch key {
		case "title":
			if v, ok := raw.(string); ok {
				g.Title = v
			}
		case "stake":
			if v, ok := raw.(float64); ok {
				g.Stake = int64(v)
			}
		case "max_seats":
			if v, ok := raw.(float64); ok {
				g.MaxSeats = int(v)
			}
		case "seats_taken":
			if v, ok := raw.(float64); ok {
				g.SeatsTaken = int(v)
			}
		}
	}
}

// -----------------------------------------------------------------------------
// Reservations
// -----------------------------------------------------------------------------

// ReservationStatus is the lifecycle state of a seat reservation.
type ReservationStatus string

const (
	ReservationActive   ReservationStatus = "active"   // Seat held
	ReservationReleased ReservationStatus = "released" // Explicitly released
	ReservationExpired  ReservationStatus = "expired"  // Hold window lapsed
)

// ReleaseReason explains why a reservation was released.
type ReleaseReason string

const (
	ReleaseExpired   ReleaseReason = "expired"   // Hold window lapsed server-side
	ReleaseCancelled ReleaseReason = "cancelled" // Holder backed out
	ReleaseJoined    ReleaseReason = "joined"    // Converted into a seat
)

// Reservation represents a temporary seat hold on a game table.
type Reservation struct {
	GameID    string            // Table the hold is against
	Holder    string            // Client identity holding the seat
	Status    ReservationStatus // Lifecycle state
	CreatedAt time.Time         // Server time the hold was placed
	ExpiresAt time.Time         // Server time the hold lapses
}

// ActiveAt reports whether the hold is live at the given instant.
func (r Reservation) ActiveAt(now time.Time) bool {
	return r.Status == ReservationActive && r.ExpiresAt.After(now)
}

// -----------------------------------------------------------------------------
// Profiles
// -----------------------------------------------------------------------------

// Profile represents the authenticated player behind this client.
type Profile struct {
	ID        string    // Primary key
	Username  string    // Unique handle
	CreatedAt time.Time // Account creation time
}
