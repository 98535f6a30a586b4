package refresh

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/arcade-live/tablesync/internal/identity"
	"github.com/arcade-live/tablesync/internal/rest"
	"github.com/arcade-live/tablesync/internal/store"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func at(sec int) time.Time {
	return base.Add(time.Duration(sec) * time.Second)
}

func testIdentity() identity.Identity {
	return identity.Identity{ClientID: "client-1", InitData: "init-token"}
}

func TestRefresher_RefreshAll(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/profile":
			json.NewEncoder(w).Encode(rest.ProfileResponse{Profile: rest.APIProfile{
				ID: "user-1", Username: "nightowl", CreatedAt: at(0),
			}})
		case r.URL.Path == "/games":
			json.NewEncoder(w).Encode(rest.GamesResponse{Games: []rest.APIGame{
				{ID: "game-a", Title: "Table A", Status: "waiting", Stake: 500, MaxSeats: 6, SeatsTaken: 1, CreatedAt: at(0), UpdatedAt: at(10)},
				{ID: "game-b", Title: "Table B", Status: "active", Stake: 1000, MaxSeats: 4, SeatsTaken: 2, CreatedAt: at(5), UpdatedAt: at(10)},
			}})
		case r.URL.Path == "/reservations":
			json.NewEncoder(w).Encode(rest.ReservationsResponse{Reservations: []rest.APIReservation{
				{GameID: "game-a", Holder: "client-2", CreatedAt: at(20), ExpiresAt: at(120)},
			}})
		case strings.HasPrefix(r.URL.Path, "/games/"):
			id := strings.TrimPrefix(r.URL.Path, "/games/")
			json.NewEncoder(w).Encode(rest.SingleGameResponse{Game: rest.APIGame{
				ID: id, Title: "Table B", Status: "active", Stake: 1000, MaxSeats: 4, SeatsTaken: 3, CreatedAt: at(5), UpdatedAt: at(60),
			}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := rest.NewClient(server.URL, testIdentity())
	st := store.New(clockwork.NewFakeClockAt(base))
	watched := WatchSourceFunc(func() []string { return []string{"game-b"} })

	cfg := Config{Interval: time.Hour, Concurrency: 4, Timeout: 5 * time.Second}
	r := New(cfg, client, st, watched, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	r.ctx = ctx

	r.refreshAll()

	if got := len(st.Games()); got != 2 {
		t.Fatalf("Games = %d, want 2", got)
	}

	// The per-game fetch carried a newer record and wins over the listing.
	g, ok := st.Game("game-b")
	if !ok {
		t.Fatal("Game(game-b) missing")
	}
	if g.SeatsTaken != 3 {
		t.Errorf("SeatsTaken = %d, want 3 from the per-game fetch", g.SeatsTaken)
	}

	p, ok := st.Profile()
	if !ok || p.Username != "nightowl" {
		t.Errorf("Profile = %+v, %v", p, ok)
	}

	res, ok := st.Reservation("game-a")
	if !ok || res.Holder != "client-2" {
		t.Errorf("Reservation(game-a) = %+v, %v", res, ok)
	}

	if got := st.LastSyncAt(); !got.Equal(base) {
		t.Errorf("LastSyncAt = %v, want %v", got, base)
	}
}

func TestRefresher_StartStop(t *testing.T) {
	var listings atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/profile":
			json.NewEncoder(w).Encode(rest.ProfileResponse{Profile: rest.APIProfile{ID: "user-1"}})
		case r.URL.Path == "/games":
			listings.Add(1)
			json.NewEncoder(w).Encode(rest.GamesResponse{Games: []rest.APIGame{
				{ID: "game-a", Title: "Table A", Status: "waiting", CreatedAt: at(0), UpdatedAt: at(0)},
			}})
		case r.URL.Path == "/reservations":
			json.NewEncoder(w).Encode(rest.ReservationsResponse{})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := rest.NewClient(server.URL, testIdentity())
	st := store.New(clockwork.NewFakeClockAt(base))

	cfg := Config{Interval: 50 * time.Millisecond, Concurrency: 4, Timeout: 5 * time.Second}
	r := New(cfg, client, st, nil, nil)

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Wait for the initial load plus at least one tick.
	time.Sleep(130 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := r.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if got := listings.Load(); got < 2 {
		t.Errorf("listings = %d, want at least 2", got)
	}
	if got := len(st.Games()); got != 1 {
		t.Errorf("Games = %d, want 1", got)
	}
}

func TestRefresher_FailedListingSkipsMarkSynced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/profile":
			json.NewEncoder(w).Encode(rest.ProfileResponse{Profile: rest.APIProfile{ID: "user-1", Username: "nightowl"}})
		default:
			http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := rest.NewClient(server.URL, testIdentity(), rest.WithRetries(0, 0))
	st := store.New(clockwork.NewFakeClockAt(base))

	cfg := Config{Interval: time.Hour, Concurrency: 4, Timeout: 5 * time.Second}
	r := New(cfg, client, st, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	r.ctx = ctx

	r.refreshAll()

	if got := st.LastSyncAt(); !got.IsZero() {
		t.Errorf("LastSyncAt = %v, want zero after failed listing", got)
	}
	if got := len(st.Games()); got != 0 {
		t.Errorf("Games = %d, want 0", got)
	}

	// The profile fetch preceded the failure and still landed.
	if _, ok := st.Profile(); !ok {
		t.Error("Profile missing, want it cached despite the failed listing")
	}
}

func TestRefresher_MarkedGameFetchedOnce(t *testing.T) {
	var gameFetches atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/profile":
			json.NewEncoder(w).Encode(rest.ProfileResponse{Profile: rest.APIProfile{ID: "user-1"}})
		case r.URL.Path == "/games":
			json.NewEncoder(w).Encode(rest.GamesResponse{Games: []rest.APIGame{
				{ID: "game-b", Title: "Table B", Status: "active", MaxSeats: 4, SeatsTaken: 2, CreatedAt: at(5), UpdatedAt: at(10)},
			}})
		case r.URL.Path == "/reservations":
			json.NewEncoder(w).Encode(rest.ReservationsResponse{})
		case r.URL.Path == "/games/game-b":
			gameFetches.Add(1)
			json.NewEncoder(w).Encode(rest.SingleGameResponse{Game: rest.APIGame{
				ID: "game-b", Title: "Table B", Status: "active", MaxSeats: 4, SeatsTaken: 3, CreatedAt: at(5), UpdatedAt: at(60),
			}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := rest.NewClient(server.URL, testIdentity())
	st := store.New(clockwork.NewFakeClockAt(base))
	st.MarkRefresh("game-b")

	// game-b is both flagged and watched; it must be fetched once.
	watched := WatchSourceFunc(func() []string { return []string{"game-b"} })

	cfg := Config{Interval: time.Hour, Concurrency: 4, Timeout: 5 * time.Second}
	r := New(cfg, client, st, watched, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	r.ctx = ctx

	r.refreshAll()

	if got := gameFetches.Load(); got != 1 {
		t.Errorf("per-game fetches = %d, want 1", got)
	}
	g, _ := st.Game("game-b")
	if g.SeatsTaken != 3 {
		t.Errorf("SeatsTaken = %d, want 3 from the per-game fetch", g.SeatsTaken)
	}
	if ids := st.TakeRefresh(); ids != nil {
		t.Errorf("TakeRefresh = %v, want nil after a clean cycle", ids)
	}
}

func TestRefresher_FailedGameFetchRemarks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/profile":
			json.NewEncoder(w).Encode(rest.ProfileResponse{Profile: rest.APIProfile{ID: "user-1"}})
		case r.URL.Path == "/games":
			json.NewEncoder(w).Encode(rest.GamesResponse{})
		case r.URL.Path == "/reservations":
			json.NewEncoder(w).Encode(rest.ReservationsResponse{})
		default:
			http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	client := rest.NewClient(server.URL, testIdentity(), rest.WithRetries(0, 0))
	st := store.New(clockwork.NewFakeClockAt(base))
	st.MarkRefresh("game-bad")

	cfg := Config{Interval: time.Hour, Concurrency: 4, Timeout: 5 * time.Second}
	r := New(cfg, client, st, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	r.ctx = ctx

	r.refreshAll()

	// The failed fetch puts the flag back for the next cycle.
	if ids := st.TakeRefresh(); len(ids) != 1 || ids[0] != "game-bad" {
		t.Errorf("TakeRefresh = %v, want [game-bad]", ids)
	}
}

func TestRefresher_BoundedConcurrency(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/profile":
			json.NewEncoder(w).Encode(rest.ProfileResponse{Profile: rest.APIProfile{ID: "user-1"}})
		case r.URL.Path == "/games":
			json.NewEncoder(w).Encode(rest.GamesResponse{})
		case r.URL.Path == "/reservations":
			json.NewEncoder(w).Encode(rest.ReservationsResponse{})
		case strings.HasPrefix(r.URL.Path, "/games/"):
			current := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				old := maxInFlight.Load()
				if current <= old || maxInFlight.CompareAndSwap(old, current) {
					break
				}
			}
			time.Sleep(30 * time.Millisecond)
			id := strings.TrimPrefix(r.URL.Path, "/games/")
			json.NewEncoder(w).Encode(rest.SingleGameResponse{Game: rest.APIGame{
				ID: id, Status: "active", CreatedAt: at(0), UpdatedAt: at(0),
			}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := rest.NewClient(server.URL, testIdentity())
	st := store.New(clockwork.NewFakeClockAt(base))

	ids := make([]string, 12)
	for i := range ids {
		ids[i] = "game-" + string(rune('a'+i))
	}
	watched := WatchSourceFunc(func() []string { return ids })

	cfg := Config{Interval: time.Hour, Concurrency: 3, Timeout: 5 * time.Second}
	r := New(cfg, client, st, watched, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	r.ctx = ctx

	r.refreshAll()

	if got := maxInFlight.Load(); got > 3 {
		t.Errorf("maxInFlight = %d, want <= 3", got)
	}
	if got := len(st.Games()); got != 12 {
		t.Errorf("Games = %d, want 12", got)
	}
}
