package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/clinicops/trainingdesk/internal/api"
	"github.com/clinicops/trainingdesk/internal/chat"
	"github.com/clinicops/trainingdesk/internal/config"
	"github.com/clinicops/trainingdesk/internal/guard"
	"github.com/clinicops/trainingdesk/internal/handlers"
	"github.com/clinicops/trainingdesk/internal/models"
	"github.com/clinicops/trainingdesk/internal/query"
	"github.com/clinicops/trainingdesk/internal/remote"
	"github.com/clinicops/trainingdesk/internal/room"
	"github.com/clinicops/trainingdesk/internal/stream"
	"github.com/clinicops/trainingdesk/internal/upload"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// Initialize logger
	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Guard markers
	store, pinger, closeStore, err := openGuardStore(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("store", cfg.GuardStore).Msg("guard store connection failed")
	}
	defer closeStore()
	logger.Info().Str("store", cfg.GuardStore).Msg("guard store ready")

	client := remote.NewClient(cfg.APIBaseURL, cfg.APIToken, cfg.RequestTimeout)
	cache := query.NewCache(0)
	cache.FetchTimeout = cfg.RequestTimeout

	rooms := room.NewResolver(client, cache, logger)
	rooms.OnResolve(func(roomID models.RoomID) {
		cache.OnInvalidate(upload.DocumentsKey(roomID), func() {
			logger.Info().Str("room_id", string(roomID)).Msg("document list refreshed after upload")
		})
	})

	reconciler := chat.NewReconciler(chat.ReconcilerOptions{Dedupe: cfg.DedupeMessages}, logger)
	typing := chat.NewTyping()
	typing.OnChange(func(from, to models.TypingState) {
		logger.Debug().Stringer("from", from).Stringer("to", to).Msg("typing state changed")
	})
	session := chat.NewSession(rooms, client, reconciler, typing, logger)

	streams := stream.NewManager(stream.NewWebSocketDialer(cfg.StreamURL, cfg.APIToken), session.HandleFrame, logger)
	streams.OnStateChange(func(state stream.State, roomID models.RoomID) {
		logger.Debug().Stringer("state", state).Str("room_id", string(roomID)).Msg("stream state changed")
	})

	uploads := upload.NewTracker(client, rooms, cache, logger)
	feedback := guard.NewFeedbackTrigger(guard.New(store, "dislike", logger), client, logger)

	h := handlers.NewHandler(handlers.Deps{
		Rooms:          rooms,
		Stream:         streams,
		Chat:           session,
		Uploads:        uploads,
		Feedback:       feedback,
		GuardStore:     pinger,
		MaxUploadBytes: cfg.MaxUploadBytes,
		Logger:         logger,
	})

	// Create router
	router := api.NewRouter(logger, h, api.RouterConfig{
		AllowedOrigins: cfg.AllowedOrigins,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Str("api", cfg.APIBaseURL).
			Msg("starting training console")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	// Resolve the room and open its stream up front; failures are retried
	// by POST /api/room.
	go func() {
		startCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
		defer cancel()
		roomID, err := rooms.Resolve(startCtx)
		if err != nil {
			logger.Warn().Err(err).Msg("training room unavailable at startup")
			return
		}
		if err := streams.Bind(startCtx, roomID); err != nil {
			logger.Warn().Err(err).Msg("stream unavailable at startup")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down console...")

	// Graceful shutdown with 30 second timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := streams.Close(); err != nil {
		logger.Error().Err(err).Msg("stream close failed")
	}

	logger.Info().Msg("console stopped")
}

// openGuardStore connects the configured marker backend. The returned pinger
// is nil for the in-memory store.
func openGuardStore(ctx context.Context, cfg *config.Config) (guard.Store, handlers.Pinger, func(), error) {
	switch cfg.GuardStore {
	case config.GuardStoreRedis:
		s, err := guard.NewRedisStore(ctx, cfg.RedisURL, cfg.GuardTTL)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, func() { s.Close() }, nil
	case config.GuardStoreSQLite:
		s, err := guard.NewSQLiteStore(ctx, cfg.SQLitePath, cfg.GuardTTL)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, s.Close, nil
	case config.GuardStorePostgres:
		s, err := guard.NewPostgresStore(ctx, cfg.DatabaseURL, cfg.GuardTTL)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, s, s.Close, nil
	default:
		return guard.NewMemoryStore(), nil, func() {}, nil
	}
}
