package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/arcade-live/tablesync/internal/model"
)

var (
	// ErrUnknownKind indicates a frame whose type tag is not part of the protocol.
	ErrUnknownKind = errors.New("unknown message kind")
	// ErrMissingTimestamp indicates a frame without a server envelope timestamp.
	ErrMissingTimestamp = errors.New("missing envelope timestamp")
)

// envelope holds the two fields every inbound frame must carry.
type envelope struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

type gameStateUpdateWire struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	GameID    string         `json:"game_id"`
	Status    string         `json:"status,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

type reservationCreatedWire struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	GameID    string    `json:"game_id"`
	Holder    string    `json:"holder"`
	ExpiresAt time.Time `json:"expires_at"`
}

type reservationReleasedWire struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	GameID    string    `json:"game_id"`
	Reason    string    `json:"reason"`
}

type syncResponseWire struct {
	Type        string           `json:"type"`
	Timestamp   time.Time        `json:"timestamp"`
	Game        gameWire         `json:"game"`
	Reservation *reservationWire `json:"reservation,omitempty"`
}

type serverErrorWire struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
}

type syncRequestWire struct {
	Type               string     `json:"type"`
	LastEventTimestamp *time.Time `json:"last_event_timestamp,omitempty"`
}

type gameWire struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Status     string    `json:"status"`
	Stake      int64     `json:"stake"`
	MaxSeats   int       `json:"max_seats"`
	SeatsTaken int       `json:"seats_taken"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type reservationWire struct {
	GameID    string    `json:"game_id"`
	Holder    string    `json:"holder"`
	Status    string    `json:"status,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (w gameWire) toModel() model.Game {
	return model.Game{
		ID:         w.ID,
		Title:      w.Title,
		Status:     model.GameStatus(w.Status),
		Stake:      w.Stake,
		MaxSeats:   w.MaxSeats,
		SeatsTaken: w.SeatsTaken,
		CreatedAt:  w.CreatedAt,
		UpdatedAt:  w.UpdatedAt,
	}
}

func gameToWire(g model.Game) gameWire {
	return gameWire{
		ID:         g.ID,
		Title:      g.Title,
		Status:     string(g.Status),
		Stake:      g.Stake,
		MaxSeats:   g.MaxSeats,
		SeatsTaken: g.SeatsTaken,
		CreatedAt:  g.CreatedAt,
		UpdatedAt:  g.UpdatedAt,
	}
}

func (w reservationWire) toModel() model.Reservation {
	status := model.ReservationStatus(w.Status)
	if status == "" {
		status = model.ReservationActive
	}
	return model.Reservation{
		GameID:    w.GameID,
		Holder:    w.Holder,
		Status:    status,
		CreatedAt: w.CreatedAt,
		ExpiresAt: w.ExpiresAt,
	}
}

func reservationToWire(r model.Reservation) reservationWire {
	return reservationWire{
		GameID:    r.GameID,
		Holder:    r.Holder,
		Status:    string(r.Status),
		CreatedAt: r.CreatedAt,
		ExpiresAt: r.ExpiresAt,
	}
}

// Decode parses one inbound frame into its protocol variant.
//
// A failed decode reports the frame as unusable; it says nothing about
// the health of the connection it arrived on.
func Decode(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Timestamp.IsZero() {
		return nil, fmt.Errorf("%w in %q frame", ErrMissingTimestamp, env.Type)
	}

	switch Kind(env.Type) {
	case KindGameStateUpdate:
		var w gameStateUpdateWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		if w.GameID == "" {
			return nil, fmt.Errorf("decode %s: missing game_id", env.Type)
		}
		return GameStateUpdate{
			GameID: w.GameID,
			Status: model.GameStatus(w.Status),
			Fields: w.Fields,
			At:     env.Timestamp,
		}, nil

	case KindReservationCreated:
		var w reservationCreatedWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		if w.GameID == "" {
			return nil, fmt.Errorf("decode %s: missing game_id", env.Type)
		}
		return ReservationCreated{
			GameID:    w.GameID,
			Holder:    w.Holder,
			ExpiresAt: w.ExpiresAt,
			At:        env.Timestamp,
		}, nil

	case KindReservationReleased:
		var w reservationReleasedWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		if w.GameID == "" {
			return nil, fmt.Errorf("decode %s: missing game_id", env.Type)
		}
		return ReservationReleased{
			GameID: w.GameID,
			Reason: model.ReleaseReason(w.Reason),
			At:     env.Timestamp,
		}, nil

	case KindSyncResponse:
		var w syncResponseWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		if w.Game.ID == "" {
			return nil, fmt.Errorf("decode %s: missing game.id", env.Type)
		}
		msg := SyncResponse{Game: w.Game.toModel(), At: env.Timestamp}
		if w.Reservation != nil {
			r := w.Reservation.toModel()
			msg.Reservation = &r
		}
		return msg, nil

	case KindError:
		var w serverErrorWire
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
		return ServerError{Code: w.Code, Message: w.Message, At: env.Timestamp}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}
}

// Marshal serializes an inbound variant back to its wire form. The
// client itself never sends these; test fixtures and the replay tooling
// in cmd/streamwatch do.
func Marshal(m Inbound) ([]byte, error) {
	switch v := m.(type) {
	case GameStateUpdate:
		return json.Marshal(gameStateUpdateWire{
			Type:      string(KindGameStateUpdate),
			Timestamp: v.At,
			GameID:    v.GameID,
			Status:    string(v.Status),
			Fields:    v.Fields,
		})
	case ReservationCreated:
		return json.Marshal(reservationCreatedWire{
			Type:      string(KindReservationCreated),
			Timestamp: v.At,
			GameID:    v.GameID,
			Holder:    v.Holder,
			ExpiresAt: v.ExpiresAt,
		})
	case ReservationReleased:
		return json.Marshal(reservationReleasedWire{
			Type:      string(KindReservationReleased),
			Timestamp: v.At,
			GameID:    v.GameID,
			Reason:    string(v.Reason),
		})
	case SyncResponse:
		w := syncResponseWire{
			Type:      string(KindSyncResponse),
			Timestamp: v.At,
			Game:      gameToWire(v.Game),
		}
		if v.Reservation != nil {
			rw := reservationToWire(*v.Reservation)
			w.Reservation = &rw
		}
		return json.Marshal(w)
	case ServerError:
		return json.Marshal(serverErrorWire{
			Type:      string(KindError),
			Timestamp: v.At,
			Code:      v.Code,
			Message:   v.Message,
		})
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownKind, m)
	}
}

// EncodeSyncRequest serializes the client-to-server snapshot request.
// A zero Since omits last_event_timestamp, which asks for full state.
func EncodeSyncRequest(req SyncRequest) ([]byte, error) {
	w := syncRequestWire{Type: string(KindSyncRequest)}
	if !req.Since.IsZero() {
		ts := req.Since
		w.LastEventTimestamp = &ts
	}
	return json.Marshal(w)
}
