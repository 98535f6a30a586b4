package protocol

import (
	"time"

	"github.com/arcade-live/tablesync/internal/model"
)

// Kind identifies a wire message variant.
type Kind string

const (
	KindGameStateUpdate     Kind = "game_state_update"
	KindReservationCreated  Kind = "reservation_created"
	KindReservationReleased Kind = "reservation_released"
	KindSyncResponse        Kind = "sync_response"
	KindError               Kind = "error"
	KindSyncRequest         Kind = "sync_request"
)

// Inbound is one decoded server-to-client message. The set of
// implementations is closed: consumers switch on the concrete type and
// can rely on never seeing anything else.
type Inbound interface {
	Kind() Kind
	// OccurredAt returns the server envelope timestamp.
	OccurredAt() time.Time

	isInbound()
}

// GameStateUpdate mutates a subset of one game's fields.
type GameStateUpdate struct {
	GameID string
	Status model.GameStatus // Empty when the update does not change status
	Fields map[string]any   // Partial field map, see model.Game.ApplyFields
	At     time.Time
}

func (m GameStateUpdate) Kind() Kind            { return KindGameStateUpdate }
func (m GameStateUpdate) OccurredAt() time.Time { return m.At }
func (GameStateUpdate) isInbound()              {}

// ReservationCreated announces a new seat hold on a game.
type ReservationCreated struct {
	GameID    string
	Holder    string
	ExpiresAt time.Time
	At        time.Time
}

func (m ReservationCreated) Kind() Kind            { return KindReservationCreated }
func (m ReservationCreated) OccurredAt() time.Time { return m.At }
func (ReservationCreated) isInbound()              {}

// ReservationReleased announces that a seat hold ended.
type ReservationReleased struct {
	GameID string
	Reason model.ReleaseReason
	At     time.Time
}

func (m ReservationReleased) Kind() Kind            { return KindReservationReleased }
func (m ReservationReleased) OccurredAt() time.Time { return m.At }
func (ReservationReleased) isInbound()              {}

// SyncResponse is the authoritative snapshot answering a sync_request.
type SyncResponse struct {
	Game        model.Game
	Reservation *model.Reservation // nil when no hold is active
	At          time.Time
}

func (m SyncResponse) Kind() Kind            { return KindSyncResponse }
func (m SyncResponse) OccurredAt() time.Time { return m.At }
func (SyncResponse) isInbound()              {}

// ServerError is an in-band fault report from the gateway. It never
// mutates client state; subscribers decide whether to surface it.
type ServerError struct {
	Code    string
	Message string
	At      time.Time
}

func (m ServerError) Kind() Kind            { return KindError }
func (m ServerError) OccurredAt() time.Time { return m.At }
func (ServerError) isInbound()              {}

// SyncRequest asks the gateway for an authoritative snapshot. A zero
// Since requests the full state; otherwise the gateway replays every
// event after that cursor.
type SyncRequest struct {
	Since time.Time
}
