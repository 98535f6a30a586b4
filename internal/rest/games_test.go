package rest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arcade-live/tablesync/internal/model"
)

const gamesPayload = `{
	"games": [
		{
			"id": "game-1",
			"title": "Friday Hold'em",
			"status": "waiting",
			"stake": 500,
			"max_seats": 6,
			"seats_taken": 2,
			"created_at": "2025-06-01T11:00:00Z",
			"updated_at": "2025-06-01T12:00:00Z"
		},
		{
			"id": "game-2",
			"title": "High Stakes",
			"status": "active",
			"stake": 2000,
			"max_seats": 8,
			"seats_taken": 8,
			"created_at": "2025-06-01T10:00:00Z",
			"updated_at": "2025-06-01T12:01:00Z"
		}
	]
}`

func TestListGames(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/games" {
			t.Errorf("path = %q, want /games", r.URL.Path)
		}
		if got := r.Header.Get("X-Client-Id"); got != "client-1" {
			t.Errorf("X-Client-Id = %q, want client-1", got)
		}
		if got := r.Header.Get("X-Init-Data"); got != "signed-blob" {
			t.Errorf("X-Init-Data = %q, want signed-blob", got)
		}
		w.Write([]byte(gamesPayload))
	}))
	defer server.Close()

	c := NewClient(server.URL, testID)
	games, err := c.ListGames(context.Background(), ListGamesOptions{})
	if err != nil {
		t.Fatalf("ListGames failed: %v", err)
	}

	if len(games) != 2 {
		t.Fatalf("got %d games, want 2", len(games))
	}
	if games[0].ID != "game-1" {
		t.Errorf("games[0].ID = %q, want game-1", games[0].ID)
	}
	if games[0].Status != model.GameWaiting {
		t.Errorf("games[0].Status = %q, want waiting", games[0].Status)
	}
	if games[1].Stake != 2000 {
		t.Errorf("games[1].Stake = %d, want 2000", games[1].Stake)
	}
	want := time.Date(2025, 6, 1, 12, 1, 0, 0, time.UTC)
	if !games[1].UpdatedAt.Equal(want) {
		t.Errorf("games[1].UpdatedAt = %v, want %v", games[1].UpdatedAt, want)
	}
}

func TestListGames_StatusFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("status"); got != "waiting" {
			t.Errorf("status query = %q, want waiting", got)
		}
		w.Write([]byte(`{"games": []}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, testID)
	if _, err := c.ListGames(context.Background(), ListGamesOptions{Status: "waiting"}); err != nil {
		t.Fatalf("ListGames failed: %v", err)
	}
}

func TestGetGame(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/games/game-7" {
			t.Errorf("path = %q, want /games/game-7", r.URL.Path)
		}
		w.Write([]byte(`{
			"game": {
				"id": "game-7",
				"title": "Turbo",
				"status": "active",
				"stake": 100,
				"max_seats": 4,
				"seats_taken": 3,
				"created_at": "2025-06-01T11:00:00Z",
				"updated_at": "2025-06-01T11:30:00Z"
			}
		}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, testID)
	game, err := c.GetGame(context.Background(), "game-7")
	if err != nil {
		t.Fatalf("GetGame failed: %v", err)
	}
	if game.Title != "Turbo" {
		t.Errorf("Title = %q, want Turbo", game.Title)
	}
	if game.SeatsTaken != 3 {
		t.Errorf("SeatsTaken = %d, want 3", game.SeatsTaken)
	}
}

func TestGetProfile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/profile" {
			t.Errorf("path = %q, want /profile", r.URL.Path)
		}
		w.Write([]byte(`{"profile": {"id": "user-9", "username": "nightowl", "created_at": "2024-01-15T00:00:00Z"}}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, testID)
	profile, err := c.GetProfile(context.Background())
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if profile.Username != "nightowl" {
		t.Errorf("Username = %q, want nightowl", profile.Username)
	}
}

func TestListReservations(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/reservations" {
			t.Errorf("path = %q, want /reservations", r.URL.Path)
		}
		w.Write([]byte(`{
			"reservations": [
				{
					"game_id": "game-1",
					"holder": "client-1",
					"created_at": "2025-06-01T12:00:00Z",
					"expires_at": "2025-06-01T12:01:30Z"
				}
			]
		}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, testID)
	holds, err := c.ListReservations(context.Background())
	if err != nil {
		t.Fatalf("ListReservations failed: %v", err)
	}
	if len(holds) != 1 {
		t.Fatalf("got %d reservations, want 1", len(holds))
	}
	// Status omitted on the wire means the hold is live.
	if holds[0].Status != model.ReservationActive {
		t.Errorf("Status = %q, want active", holds[0].Status)
	}
}

func TestRetry_ServerFaultThenSuccess(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"games": []}`))
	}))
	defer server.Close()

	c := NewClient(server.URL, testID, WithRetries(3, 5*time.Millisecond))
	if _, err := c.ListGames(context.Background(), ListGamesOptions{}); err != nil {
		t.Fatalf("ListGames failed after retries: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("requests = %d, want 3", got)
	}
}

func TestRetry_ClientErrorFailsFast(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := NewClient(server.URL, testID, WithRetries(3, 5*time.Millisecond))
	_, err := c.GetGame(context.Background(), "game-x")
	if err == nil {
		t.Fatal("GetGame succeeded, want error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != 404 {
		t.Errorf("StatusCode = %d, want 404", apiErr.StatusCode)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("requests = %d, want 1 (no retries on 404)", got)
	}
}

func TestRetry_Exhausted(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := NewClient(server.URL, testID, WithRetries(2, 5*time.Millisecond))
	_, err := c.ListGames(context.Background(), ListGamesOptions{})
	if err == nil {
		t.Fatal("ListGames succeeded, want error")
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("requests = %d, want 3 (1 initial + 2 retries)", got)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(server.URL, testID, WithRetries(3, 50*time.Millisecond))
	_, err := c.ListGames(ctx, ListGamesOptions{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}
