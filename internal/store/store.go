// Package store holds the client's synchronized view of platform state.
//
// The store is the single cache behind every state query. Writers feed
// it from three directions: the initial REST load, pushed deltas, and
// post-reconnect snapshots. Every write is merged last-writer-wins on
// the server timestamp, so the order frames happen to arrive in can
// never regress a record.
package store

import (
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/arcade-live/tablesync/internal/model"
	"github.com/arcade-live/tablesync/internal/protocol"
)

// Store is the thread-safe entity cache.
type Store struct {
	clock clockwork.Clock

	mu           sync.RWMutex
	games        map[string]*model.Game
	reservations map[string]*model.Reservation
	refresh      map[string]struct{}
	profile      *model.Profile
	lastSyncAt   time.Time
}

// Stats summarizes cache contents for the debug endpoints.
type Stats struct {
	Games              int       `json:"games"`
	OpenGames          int       `json:"open_games"`
	ActiveReservations int       `json:"active_reservations"`
	PendingRefresh     int       `json:"pending_refresh"`
	LastSyncAt         time.Time `json:"last_sync_at"`
}

// New creates an empty store. A nil clock falls back to the wall clock;
// tests inject a fake one to drive reservation expiry.
func New(clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{
		clock:        clock,
		games:        make(map[string]*model.Game),
		reservations: make(map[string]*model.Reservation),
		refresh:      make(map[string]struct{}),
	}
}

// -----------------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------------

// Game returns a copy of one game by ID.
func (s *Store) Game(id string) (model.Game, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.games[id]
	if !ok {
		return model.Game{}, false
	}
	return *g, true
}

// Games returns a copy of every known game, ordered by creation time
// and then ID so list renders are stable.
func (s *Store) Games() []model.Game {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Game, 0, len(s.games))
	for _, g := range s.games {
		result = append(result, *g)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.Before(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// OpenGames returns only the games that can still be joined.
func (s *Store) OpenGames() []model.Game {
	all := s.Games()
	result := all[:0]
	for _, g := range all {
		if g.Status.Open() {
			result = append(result, g)
		}
	}
	return result
}

// Reservation returns the live hold on a game, if any. Holds whose
// expiry has passed are not reported even before the server confirms
// the release.
func (s *Store) Reservation(gameID string) (model.Reservation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reservations[gameID]
	if !ok || !r.ActiveAt(s.clock.Now()) {
		return model.Reservation{}, false
	}
	return *r, true
}

// Reservations returns every reservation record, live or not, for the
// debug endpoints.
func (s *Store) Reservations() []model.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Reservation, 0, len(s.reservations))
	for _, r := range s.reservations {
		result = append(result, *r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].GameID < result[j].GameID })
	return result
}

// ActiveReservations returns only the holds that are live right now.
func (s *Store) ActiveReservations() []model.Reservation {
	all := s.Reservations()
	now := s.clock.Now()
	result := all[:0]
	for _, r := range all {
		if r.ActiveAt(now) {
			result = append(result, r)
		}
	}
	return result
}

// Profile returns the cached player profile.
func (s *Store) Profile() (model.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.profile == nil {
		return model.Profile{}, false
	}
	return *s.profile, true
}

// LastSyncAt returns the time of the last authoritative reconcile.
func (s *Store) LastSyncAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastSyncAt
}

// Stats returns cache counters for the debug endpoints.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Games:          len(s.games),
		PendingRefresh: len(s.refresh),
		LastSyncAt:     s.lastSyncAt,
	}
	now := s.clock.Now()
	for _, g := range s.games {
		if g.Status.Open() {
			stats.OpenGames++
		}
	}
	for _, r := range s.reservations {
		if r.ActiveAt(now) {
			stats.ActiveReservations++
		}
	}
	return stats
}

// -----------------------------------------------------------------------------
// Writes
// -----------------------------------------------------------------------------

// SetProfile replaces the cached player profile.
func (s *Store) SetProfile(p model.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profile = &p
}

// Seed loads a REST game listing into the cache. Records that already
// carry a newer server timestamp are kept; the listing never clobbers a
// delta that beat it here. Returns how many records were taken.
func (s *Store) Seed(games []model.Game) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	applied := 0
	for _, g := range games {
		if cur, ok := s.games[g.ID]; ok && cur.UpdatedAt.After(g.UpdatedAt) {
			continue
		}
		cp := g
		s.games[cp.ID] = &cp
		applied++
	}
	return applied
}

// SeedReservations loads a REST reservation listing into the cache.
// As with Seed, a cached hold minted after the listed one is kept.
// Returns how many records were taken.
func (s *Store) SeedReservations(rs []model.Reservation) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	applied := 0
	for _, r := range rs {
		if cur, ok := s.reservations[r.GameID]; ok && cur.CreatedAt.After(r.CreatedAt) {
			continue
		}
		cp := r
		s.reservations[cp.GameID] = &cp
		applied++
	}
	return applied
}

// MarkSynced records a completed authoritative reconcile.
func (s *Store) MarkSynced() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSyncAt = s.clock.Now()
}

// MarkRefresh flags a game whose cached record is suspect and should be
// re-fetched from REST on the next refresh cycle.
func (s *Store) MarkRefresh(gameID string) {
	if gameID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh[gameID] = struct{}{}
}

// TakeRefresh drains the set of games flagged for re-fetch. Callers own
// the returned IDs; a fetch that fails should MarkRefresh the ID again.
func (s *Store) TakeRefresh() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.refresh) == 0 {
		return nil
	}
	ids := make([]string, 0, len(s.refresh))
	for id := range s.refresh {
		ids = append(ids, id)
	}
	s.refresh = make(map[string]struct{})
	sort.Strings(ids)
	return ids
}

// ApplyUpdate merges a pushed field update. Updates carrying a server
// timestamp before the cached record's are stale and ignored; a tie
// favors the incoming update, so a redelivered frame lands idempotently.
// Updates for unknown games open a skeleton record that the next
// snapshot or listing fills in.
//
// Returns the record after the merge and whether anything changed.
func (s *Store) ApplyUpdate(u protocol.GameStateUpdate) (model.Game, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.games[u.GameID]
	if !ok {
		g = &model.Game{ID: u.GameID}
		s.games[u.GameID] = g
	} else if u.At.Before(g.UpdatedAt) {
		return *g, false
	}

	if u.Status != "" {
		g.Status = u.Status
	}
	g.ApplyFields(u.Fields)
	g.UpdatedAt = u.At
	return *g, true
}

// ApplyReservationCreated merges a pushed seat hold. A hold older than
// the one already cached is stale and ignored.
func (s *Store) ApplyReservationCreated(m protocol.ReservationCreated) (model.Reservation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cur, ok := s.reservations[m.GameID]; ok && cur.CreatedAt.After(m.At) {
		return *cur, false
	}

	r := &model.Reservation{
		GameID:    m.GameID,
		Holder:    m.Holder,
		Status:    model.ReservationActive,
		CreatedAt: m.At,
		ExpiresAt: m.ExpiresAt,
	}
	s.reservations[m.GameID] = r
	return *r, true
}

// ApplyReservationReleased resolves a seat hold. Releases for unknown
// holds, or ones minted before the cached hold was, are ignored. A hold
// released because its holder joined also flags the game for a REST
// re-fetch, since the join changed seat counts this frame does not carry.
func (s *Store) ApplyReservationReleased(m protocol.ReservationReleased) (model.Reservation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reservations[m.GameID]
	if !ok || m.At.Before(r.CreatedAt) {
		return model.Reservation{}, false
	}
	if r.Status != model.ReservationActive {
		return *r, false
	}

	if m.Reason == model.ReleaseExpired {
		r.Status = model.ReservationExpired
	} else {
		r.Status = model.ReservationReleased
	}
	if m.Reason == model.ReleaseJoined {
		s.refresh[m.GameID] = struct{}{}
	}
	return *r, true
}

// ApplySnapshot merges an authoritative sync response. The snapshot
// wins unless the cached record carries a newer server timestamp,
// which happens when a delta raced ahead of the snapshot being cut.
func (s *Store) ApplySnapshot(resp protocol.SyncResponse) (model.Game, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	applied := false
	if cur, ok := s.games[resp.Game.ID]; !ok || !cur.UpdatedAt.After(resp.Game.UpdatedAt) {
		cp := resp.Game
		s.games[cp.ID] = &cp
		applied = true
	}

	if resp.Reservation != nil {
		r := *resp.Reservation
		if cur, ok := s.reservations[r.GameID]; !ok || !cur.CreatedAt.After(r.CreatedAt) {
			s.reservations[r.GameID] = &r
		}
	} else if cur, ok := s.reservations[resp.Game.ID]; ok && cur.CreatedAt.Before(resp.At) {
		// The authoritative view has no hold; drop ours unless it was
		// minted after the snapshot was cut.
		delete(s.reservations, resp.Game.ID)
	}

	s.lastSyncAt = s.clock.Now()

	g := s.games[resp.Game.ID]
	return *g, applied
}
