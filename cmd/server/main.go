package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mathrumble/mathrumble/internal/admin"
	"github.com/mathrumble/mathrumble/internal/config"
	"github.com/mathrumble/mathrumble/internal/db"
	"github.com/mathrumble/mathrumble/internal/game"
	"github.com/mathrumble/mathrumble/internal/game/bus"
	"github.com/mathrumble/mathrumble/internal/game/events"
	"github.com/mathrumble/mathrumble/internal/gateway"
	"github.com/mathrumble/mathrumble/internal/leaderboard"
	"github.com/mathrumble/mathrumble/internal/questions"
	"github.com/mathrumble/mathrumble/internal/rooms"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg := config.FromEnv()
	gameCfg, err := config.LoadGameConfig(os.Getenv("GAME_CONFIG"))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load game config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := db.Connect(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	if err := db.EnsureSchema(ctx, pool); err != nil {
		log.Fatal().Err(err).Msg("failed to apply schema")
	}

	// Single-node runs use the in-process bus; set NATS_URL to fan events
	// out across instances.
	var (
		eventBus interface {
			bus.Publisher
			bus.Subscriber
		}
	)
	if cfg.NATSURL != "" {
		natsBus, err := bus.ConnectNATS(cfg.NATSURL, log.Logger)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		defer natsBus.Close()
		eventBus = natsBus
		log.Info().Str("nats_url", cfg.NATSURL).Msg("using NATS event bus")
	} else {
		eventBus = bus.NewLocalBus()
		log.Info().Msg("using in-process event bus")
	}

	engine := questions.NewEngine(time.Now().UnixNano(), questions.TimeLimits{
		Easy:    gameCfg.TimeLimits.Easy,
		Medium:  gameCfg.TimeLimits.Medium,
		Hard:    gameCfg.TimeLimits.Hard,
		Extreme: gameCfg.TimeLimits.Extreme,
	})
	statsRepo := leaderboard.NewRepository(pool)
	recorder := leaderboard.NewRecorder(statsRepo)

	manager := game.NewManager(eventBus, clockwork.NewRealClock(), engine, recorder, game.Defaults{
		WinThreshold:  gameCfg.WinThreshold,
		RoundDuration: gameCfg.RoundDuration,
	}, log.Logger)

	roomsRepo := rooms.NewRepository(pool)
	roomsService := rooms.NewService(roomsRepo, manager, time.Now().UnixNano(), log.Logger)

	// Mirror game lifecycle transitions into the rooms table so lookups by
	// code report the live status.
	unsubscribe, err := eventBus.Subscribe(func(env events.Envelope) {
		var status string
		switch env.Type {
		case events.TypeGameStarted:
			status = "in_progress"
		case events.TypeGameOver:
			status = "finished"
		default:
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := roomsService.SetRoomStatus(ctx, env.RoomID, status); err != nil {
			log.Warn().Err(err).Str("room_id", env.RoomID).Msg("failed to sync room status")
		}
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to subscribe for room status sync")
	}
	defer unsubscribe()

	gatewayService := gateway.NewService(manager, eventBus, gateway.DefaultConnectionConfig(), log.Logger)

	mux := http.NewServeMux()
	gatewayService.RegisterRoutes(mux)
	rooms.NewHandler(roomsService, log.Logger).RegisterRoutes(mux)
	leaderboard.NewHandler(leaderboard.NewService(statsRepo), log.Logger).RegisterRoutes(mux)
	admin.NewHandler(questions.NewRepository(pool), manager, log.Logger).RegisterRoutes(mux)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      corsHandler.Handler(mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		if err := gatewayService.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
	log.Info().Msg("server stopped")
}
