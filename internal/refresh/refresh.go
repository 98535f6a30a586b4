package refresh

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arcade-live/tablesync/internal/model"
	"github.com/arcade-live/tablesync/internal/rest"
	"github.com/arcade-live/tablesync/internal/store"
)

// WatchSource reports which games deserve a per-game reconcile.
// dispatch.Dispatcher satisfies it with its subscribed game IDs.
type WatchSource interface {
	WatchedGames() []string
}

// WatchSourceFunc is a function adapter for WatchSource.
type WatchSourceFunc func() []string

func (f WatchSourceFunc) WatchedGames() []string {
	return f()
}

// Config holds refresher configuration.
type Config struct {
	Interval    time.Duration // Refresh cadence (default: 5m)
	Concurrency int           // Max concurrent per-game requests (default: 4)
	Timeout     time.Duration // Per-request timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    5 * time.Minute,
		Concurrency: 4,
		Timeout:     10 * time.Second,
	}
}

// Refresher periodically reloads platform state over REST.
type Refresher struct {
	cfg     Config
	client  *rest.Client
	store   *store.Store
	watched WatchSource
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Refresher. A nil watched source means only the
// listings and the profile are refreshed.
func New(cfg Config, client *rest.Client, st *store.Store, watched WatchSource, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{
		cfg:     cfg,
		client:  client,
		store:   st,
		watched: watched,
		logger:  logger,
	}
}

// Start begins the refresh loop.
func (r *Refresher) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.run()

	r.logger.Info("refresher started", "interval", r.cfg.Interval)
	return nil
}

// Stop gracefully shuts down the refresher.
func (r *Refresher) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("refresher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main refresh loop.
func (r *Refresher) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	// Load immediately on start.
	r.refreshAll()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			r.refreshAll()
		}
	}
}

// refreshAll runs one reconcile cycle: profile, listings, then every
// game that is flagged for re-fetch or has subscribers. A failed
// listing aborts the cycle without marking it synced and leaves the
// flags in place; everything else degrades to a warning.
func (r *Refresher) refreshAll() {
	start := time.Now()

	if err := r.refreshProfile(); err != nil {
		r.logger.Warn("profile refresh failed", "err", err)
	}

	games, err := r.listGames()
	if err != nil {
		r.logger.Warn("listing refresh failed", "err", err)
		return
	}
	applied := r.store.Seed(games)

	if rs, err := r.listReservations(); err != nil {
		r.logger.Warn("reservation refresh failed", "err", err)
	} else {
		r.store.SeedReservations(rs)
	}

	marked := r.store.TakeRefresh()

	var watched []string
	if r.watched != nil {
		watched = r.watched.WatchedGames()
	}

	// A game can be both flagged and watched; fetch it once.
	targets := make(map[string]struct{}, len(marked)+len(watched))
	for _, id := range marked {
		targets[id] = struct{}{}
	}
	for _, id := range watched {
		targets[id] = struct{}{}
	}

	// Semaphore for bounded concurrency.
	sem := make(chan struct{}, r.cfg.Concurrency)
	var wg sync.WaitGroup
	var refreshed, errors atomic.Int64

	for id := range targets {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-r.ctx.Done():
				r.store.MarkRefresh(id)
				return
			}

			if err := r.refreshGame(id); err != nil {
				r.logger.Warn("game refresh failed", "game_id", id, "err", err)
				r.store.MarkRefresh(id)
				errors.Add(1)
				return
			}
			refreshed.Add(1)
		}(id)
	}
	wg.Wait()

	r.store.MarkSynced()

	r.logger.Info("refresh cycle complete",
		"games", len(games),
		"applied", applied,
		"marked", len(marked),
		"watched", len(watched),
		"refreshed", refreshed.Load(),
		"errors", errors.Load(),
		"duration", time.Since(start),
	)
}

func (r *Refresher) refreshProfile() error {
	ctx, cancel := context.WithTimeout(r.ctx, r.cfg.Timeout)
	defer cancel()

	p, err := r.client.GetProfile(ctx)
	if err != nil {
		return err
	}
	r.store.SetProfile(p)
	return nil
}

func (r *Refresher) listGames() ([]model.Game, error) {
	ctx, cancel := context.WithTimeout(r.ctx, r.cfg.Timeout)
	defer cancel()

	return r.client.ListGames(ctx, rest.ListGamesOptions{})
}

func (r *Refresher) listReservations() ([]model.Reservation, error) {
	ctx, cancel := context.WithTimeout(r.ctx, r.cfg.Timeout)
	defer cancel()

	return r.client.ListReservations(ctx)
}

// refreshGame fetches one game and merges it into the store.
func (r *Refresher) refreshGame(id string) error {
	ctx, cancel := context.WithTimeout(r.ctx, r.cfg.Timeout)
	defer cancel()

	g, err := r.client.GetGame(ctx, id)
	if err != nil {
		return err
	}
	r.store.Seed([]model.Game{g})
	return nil
}
