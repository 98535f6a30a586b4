// streamwatch connects to the Arcade Live gateway and prints every
// decoded message to the console. It can record the stream to a file
// as JSON lines and replay a recording later without a network.
//
// Usage: go run ./cmd/streamwatch --config configs/syncd.local.yaml
//
// Required environment variables:
//
//	ARCADE_INIT_DATA - signed session token issued by the platform
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/arcade-live/tablesync/internal/backoff"
	"github.com/arcade-live/tablesync/internal/config"
	"github.com/arcade-live/tablesync/internal/identity"
	"github.com/arcade-live/tablesync/internal/protocol"
	"github.com/arcade-live/tablesync/internal/realtime"
	"github.com/arcade-live/tablesync/internal/transport"
)

func main() {
	configPath := flag.String("config", "configs/syncd.example.yaml", "path to config file")
	gameID := flag.String("game", "", "watch a single game instead of the whole list")
	verbose := flag.Bool("verbose", false, "print full message JSON")
	recordPath := flag.String("record", "", "append received messages to this file as JSON lines")
	replayPath := flag.String("replay", "", "print messages from a recording instead of connecting")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	if *replayPath != "" {
		if err := replay(*replayPath, *verbose); err != nil {
			logger.Error("replay failed", "error", err)
			os.Exit(1)
		}
		return
	}

	// Load .env before the config so ${VAR} references resolve
	_ = godotenv.Load()

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if cfg.API.InitData == "" {
		logger.Error("init data required for the gateway connection")
		logger.Info("Set ARCADE_INIT_DATA or api.init_data in the config")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	// A watch session is not an install; mint a throwaway client ID
	ids := identity.NewMemoryStore()
	clientID, err := ids.ClientID()
	if err != nil {
		logger.Error("failed to mint client id", "error", err)
		os.Exit(1)
	}
	id := identity.Identity{ClientID: clientID, InitData: cfg.API.InitData}

	var recorder *os.File
	if *recordPath != "" {
		recorder, err = os.OpenFile(*recordPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			logger.Error("failed to open recording file", "error", err)
			os.Exit(1)
		}
		defer recorder.Close()
		logger.Info("recording stream", "path", *recordPath)
	}

	engine := realtime.New(
		realtime.Config{
			Backoff: backoff.Policy{
				Initial: cfg.Stream.ReconnectBaseDelay,
				Max:     cfg.Stream.ReconnectMaxDelay,
				// Keep retrying for as long as the watch runs
				MaxAttempts: 0,
			},
			Dial: transport.DialConfig{
				HandshakeTimeout: cfg.Stream.HandshakeTimeout,
				PingInterval:     cfg.Stream.PingInterval,
				PingTimeout:      cfg.Stream.PingTimeout,
				WriteTimeout:     cfg.Stream.WriteTimeout,
				BufferSize:       cfg.Stream.FrameBuffer,
			},
		},
		realtime.Deps{},
		logger,
	)

	watchGame := cfg.Stream.GameID
	if *gameID != "" {
		watchGame = *gameID
	}
	if err := engine.SetTarget(realtime.Target{
		BaseURL:  cfg.API.GatewayURL,
		GameID:   watchGame,
		Identity: id,
	}); err != nil {
		logger.Error("invalid stream target", "error", err)
		os.Exit(1)
	}

	engine.OnStateChange(func(sc realtime.StateChange) {
		if sc.Err != nil {
			fmt.Printf("[STATE] %s -> %s attempt=%d err=%v\n", sc.From, sc.To, sc.Attempt, sc.Err)
			return
		}
		fmt.Printf("[STATE] %s -> %s\n", sc.From, sc.To)
	})

	engine.SubscribeAll(func(msg protocol.Inbound) {
		printMessage(msg, *verbose)

		if recorder != nil {
			data, err := protocol.Marshal(msg)
			if err != nil {
				logger.Warn("could not record message", "error", err)
				return
			}
			recorder.Write(append(data, '\n'))
		}
	})

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s := engine.Stats()
				logger.Info("stats",
					"status", s.Status,
					"frames_processed", s.FramesProcessed,
					"decode_errors", s.DecodeErrors,
					"reconciles", s.Reconciles,
					"last_event_at", s.LastEventAt,
				)
			}
		}
	}()

	if err := engine.Connect(); err != nil {
		logger.Error("failed to start connection", "error", err)
		os.Exit(1)
	}

	logger.Info("streaming started - press Ctrl+C to stop", "game", watchGame)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")
	engine.Disconnect()

	logger.Info("shutdown complete")
}

func printMessage(msg protocol.Inbound, verbose bool) {
	if verbose {
		data, _ := json.MarshalIndent(msg, "", "  ")
		fmt.Printf("[%s] %s\n", strings.ToUpper(string(msg.Kind())), data)
		return
	}

	switch m := msg.(type) {
	case protocol.GameStateUpdate:
		fmt.Printf("[UPDATE] game=%s status=%s fields=%d at=%s\n",
			m.GameID, m.Status, len(m.Fields), m.At.Format(time.RFC3339))
	case protocol.ReservationCreated:
		fmt.Printf("[RESERVED] game=%s holder=%s expires=%s\n",
			m.GameID, m.Holder, m.ExpiresAt.Format(time.RFC3339))
	case protocol.ReservationReleased:
		fmt.Printf("[RELEASED] game=%s reason=%s\n", m.GameID, m.Reason)
	case protocol.SyncResponse:
		hold := "none"
		if m.Reservation != nil {
			hold = m.Reservation.Holder
		}
		fmt.Printf("[SNAPSHOT] game=%s status=%s seats=%d/%d hold=%s\n",
			m.Game.ID, m.Game.Status, m.Game.SeatsTaken, m.Game.MaxSeats, hold)
	case protocol.ServerError:
		fmt.Printf("[ERROR] code=%s message=%q\n", m.Code, m.Message)
	}
}

// replay prints every message in a recording without touching the
// network. Undecodable lines are counted and skipped.
func replay(path string, verbose bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var printed, bad int
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		msg, err := protocol.Decode(line)
		if err != nil {
			bad++
			continue
		}
		printMessage(msg, verbose)
		printed++
	}
	if err := sc.Err(); err != nil {
		return err
	}

	fmt.Printf("replayed %d messages (%d undecodable)\n", printed, bad)
	return nil
}
