package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"github.com/arcade-live/tablesync/internal/backoff"
	"github.com/arcade-live/tablesync/internal/config"
	"github.com/arcade-live/tablesync/internal/dispatch"
	"github.com/arcade-live/tablesync/internal/identity"
	"github.com/arcade-live/tablesync/internal/realtime"
	"github.com/arcade-live/tablesync/internal/refresh"
	"github.com/arcade-live/tablesync/internal/rest"
	"github.com/arcade-live/tablesync/internal/store"
	"github.com/arcade-live/tablesync/internal/transport"
	"github.com/arcade-live/tablesync/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/syncd.local.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting syncd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load .env before the config so ${VAR} references in the yaml resolve
	if err := godotenv.Load(); err == nil {
		logger.Info("loaded .env file")
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance", cfg.Instance.Name,
		"rest_url", cfg.API.RestURL,
		"gateway_url", cfg.API.GatewayURL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Load (or mint) the stable client ID. A broken credential db
	// degrades to an ephemeral identity rather than refusing to start.
	ids := identity.OpenOrEphemeral(cfg.Identity.Path, logger)
	defer ids.Close()

	clientID, err := ids.ClientID()
	if err != nil {
		logger.Error("failed to load client id", "error", err)
		os.Exit(1)
	}
	id := identity.Identity{ClientID: clientID, InitData: cfg.API.InitData}
	logger.Info("identity ready", "client_id", clientID)

	// Create REST client
	restClient := rest.NewClient(
		cfg.API.RestURL,
		id,
		rest.WithLogger(logger),
		rest.WithTimeout(cfg.API.Timeout),
		rest.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	// Shared state cache and message fan-out
	st := store.New(clockwork.NewRealClock())
	dispatcher := dispatch.New(logger)

	// Realtime engine
	engine := realtime.New(
		realtime.Config{
			Backoff: backoff.Policy{
				Initial:     cfg.Stream.ReconnectBaseDelay,
				Max:         cfg.Stream.ReconnectMaxDelay,
				MaxAttempts: cfg.Stream.MaxAttempts,
			},
			Dial: transport.DialConfig{
				HandshakeTimeout: cfg.Stream.HandshakeTimeout,
				PingInterval:     cfg.Stream.PingInterval,
				PingTimeout:      cfg.Stream.PingTimeout,
				WriteTimeout:     cfg.Stream.WriteTimeout,
				BufferSize:       cfg.Stream.FrameBuffer,
			},
		},
		realtime.Deps{Store: st, Dispatcher: dispatcher},
		logger,
	)

	if err := engine.SetTarget(realtime.Target{
		BaseURL:  cfg.API.GatewayURL,
		GameID:   cfg.Stream.GameID,
		Identity: id,
	}); err != nil {
		logger.Error("invalid stream target", "error", err)
		os.Exit(1)
	}

	// Log every connection state transition
	engine.OnStateChange(func(sc realtime.StateChange) {
		if sc.Err != nil {
			logger.Warn("connection state changed",
				"from", sc.From, "to", sc.To, "attempt", sc.Attempt, "error", sc.Err)
			return
		}
		logger.Info("connection state changed", "from", sc.From, "to", sc.To)
	})

	// Periodic REST refresh backstopping the push stream
	refresher := refresh.New(
		refresh.Config{
			Interval:    cfg.Refresh.Interval,
			Concurrency: cfg.Refresh.Concurrency,
			Timeout:     cfg.Refresh.Timeout,
		},
		restClient, st, dispatcher, logger,
	)
	if err := refresher.Start(ctx); err != nil {
		logger.Error("failed to start refresher", "error", err)
		os.Exit(1)
	}

	// Debug server
	var debugServer *http.Server
	if cfg.Debug.Enabled {
		debugServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Debug.Port),
			Handler: debugRoutes(engine, st, dispatcher),
		}
		go func() {
			logger.Info("starting debug server", "port", cfg.Debug.Port)
			if err := debugServer.ListenAndServe(); err != http.ErrServerClosed {
				logger.Error("debug server error", "error", err)
			}
		}()
	}

	// Open the gateway connection
	if err := engine.Connect(); err != nil {
		logger.Error("failed to start connection", "error", err)
		os.Exit(1)
	}

	logger.Info("syncd running",
		"instance", cfg.Instance.Name,
		"game_id", cfg.Stream.GameID,
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	engine.Disconnect()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := refresher.Stop(shutdownCtx); err != nil {
		logger.Warn("refresher did not stop cleanly", "error", err)
	}
	if debugServer != nil {
		debugServer.Shutdown(shutdownCtx)
	}

	logger.Info("syncd stopped")
}

// debugRoutes creates the HTTP handler for health checks and debug
// endpoints.
func debugRoutes(engine *realtime.Engine, st *store.Store, dispatcher *dispatch.Dispatcher) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		es := engine.Stats()
		ss := st.Stats()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		health.Components["connection"] = map[string]interface{}{
			"status":  string(es.Status),
			"attempt": es.Attempt,
		}
		switch es.Status {
		case realtime.StatusConnected:
		case realtime.StatusFailed:
			health.Status = "unhealthy"
		default:
			health.Status = "degraded"
		}

		health.Components["store"] = map[string]interface{}{
			"games":        ss.Games,
			"open_games":   ss.OpenGames,
			"last_sync_at": ss.LastSyncAt,
		}
		if ss.LastSyncAt.IsZero() && health.Status == "healthy" {
			// Connected but the initial listing has not landed yet
			health.Status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	r.Get("/debug/games", func(w http.ResponseWriter, req *http.Request) {
		games := st.Games()

		// Limit to first 100 for debugging
		limit := 100
		total := len(games)
		if total > limit {
			games = games[:limit]
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"count":   total,
			"showing": len(games),
			"games":   games,
		})
	})

	r.Get("/debug/games/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		game, ok := st.Game(id)
		if !ok {
			http.NotFound(w, req)
			return
		}

		resp := map[string]interface{}{"game": game}
		if res, ok := st.Reservation(id); ok {
			resp["reservation"] = res
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	})

	r.Get("/debug/reservations", func(w http.ResponseWriter, req *http.Request) {
		active := st.ActiveReservations()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"count":        len(active),
			"reservations": active,
		})
	})

	r.Get("/debug/stats", func(w http.ResponseWriter, req *http.Request) {
		es := engine.Stats()
		lastErr := ""
		if es.LastError != nil {
			lastErr = es.LastError.Error()
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			// Target identity is deliberately omitted; it carries the
			// session token.
			"connection": map[string]interface{}{
				"status":            es.Status,
				"game_id":           es.Target.GameID,
				"attempt":           es.Attempt,
				"last_connected_at": es.LastConnectedAt,
				"last_event_at":     es.LastEventAt,
				"last_error":        lastErr,
				"frames_processed":  es.FramesProcessed,
				"decode_errors":     es.DecodeErrors,
				"reconciles":        es.Reconciles,
			},
			"store":    st.Stats(),
			"dispatch": dispatcher.Stats(),
		})
	})

	r.Post("/debug/resync", func(w http.ResponseWriter, req *http.Request) {
		sent := engine.Resync()

		w.Header().Set("Content-Type", "application/json")
		if !sent {
			w.WriteHeader(http.StatusConflict)
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"requested": sent,
			"status":    engine.Status(),
		})
	})

	return r
}
