package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/eldtechnologies/whiteboard/internal/api"
	"github.com/eldtechnologies/whiteboard/internal/archive"
	"github.com/eldtechnologies/whiteboard/internal/canvas"
	"github.com/eldtechnologies/whiteboard/internal/config"
	"github.com/eldtechnologies/whiteboard/internal/discovery"
	"github.com/eldtechnologies/whiteboard/internal/gateway"
	"github.com/eldtechnologies/whiteboard/internal/handlers"
	"github.com/eldtechnologies/whiteboard/internal/raster"
	"github.com/eldtechnologies/whiteboard/internal/relay"
	"github.com/eldtechnologies/whiteboard/internal/store"
)

func main() {
	cfg := config.Load()

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

	// Postgres when configured, embedded SQLite otherwise
	var db store.DataStore
	if cfg.DatabaseURL != "" {
		logger.Info().Msg("running database migrations...")
		if err := store.RunMigrations(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migration failed")
		}
		logger.Info().Msg("migrations completed")

		pgStore, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		defer pgStore.Close()
		db = pgStore
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		sqliteStore, err := store.NewSQLiteStore(ctx, cfg.SQLiteDriver, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Str("path", cfg.SQLitePath).Msg("sqlite open failed")
		}
		defer sqliteStore.Close()
		db = sqliteStore
		logger.Info().Str("path", cfg.SQLitePath).Str("driver", cfg.SQLiteDriver).Msg("using SQLite")
	}

	var redisStore *store.RedisStore
	var cache gateway.SnapshotCache
	if cfg.RedisURL != "" {
		var err error
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		cache = redisStore
		logger.Info().Msg("connected to Redis")
	}

	// Relay
	opts := raster.Options{Width: cfg.CanvasWidth, Height: cfg.CanvasHeight, LineWidth: cfg.LineWidth}
	rooms := canvas.NewStore()
	archiver := archive.New(gateway.NewSessions(db, cache, logger), opts, logger)
	hub := relay.NewHub(rooms, archiver, logger, relay.Options{
		IdleTTL:        cfg.RoomIdleTTL,
		ReapInterval:   cfg.RoomReapInterval,
		MaxSegments:    cfg.RoomMaxSegments,
		SendBuffer:     cfg.SendBuffer,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	hubCtx, stopHub := context.WithCancel(ctx)
	hubDone := make(chan struct{})
	go func() {
		hub.Run(hubCtx)
		close(hubDone)
	}()

	if cfg.MDNSEnabled {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil {
			logger.Fatal().Err(err).Str("port", cfg.Port).Msg("mDNS needs a numeric port")
		}
		adv, err := discovery.Advertise(port, handlers.Version, logger)
		if err != nil {
			logger.Error().Err(err).Msg("mDNS advertisement failed")
		} else {
			defer adv.Shutdown()
		}
	}

	router := api.NewRouter(logger, cfg, db, redisStore, hub, rooms)

	// No WriteTimeout: it would cut long-lived websocket connections.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting whiteboard server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	// Hijacked websocket connections are not covered by Shutdown.
	stopHub()
	<-hubDone
	hub.Wait()

	logger.Info().Msg("server stopped")
}
