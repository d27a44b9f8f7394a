package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mossy-p/watchparty/config"
	"github.com/mossy-p/watchparty/internal/handlers"
	"github.com/mossy-p/watchparty/internal/metrics"
	"github.com/mossy-p/watchparty/internal/redis"
	"github.com/mossy-p/watchparty/internal/rooms"

	pkglog "github.com/mossy-p/watchparty/internal/log"
)

func main() {
	// Load local .env (dev only)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Pretty,
		ServiceName: "watchparty",
	})
	logger := pkglog.L()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	m := metrics.NewDefault()

	var mirror handlers.RoomMirror
	if cfg.Redis.Enabled {
		client, err := redis.Connect(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to Redis")
		}
		defer client.Close()

		roomMirror := redis.NewRoomMirror(client, cfg.Redis.KeyPrefix, cfg.Redis.TTL, logger)
		defer roomMirror.Close()
		mirror = roomMirror

		logger.Info().Str("addr", cfg.Redis.Addr()).Msg("redis room mirror enabled")
	}

	hub := handlers.NewHub(rooms.NewRegistry(), handlers.HubConfig{
		IdleTimeout:  cfg.Rooms.IdleTimeout,
		ReapInterval: cfg.Rooms.ReapInterval,
		Mirror:       mirror,
		Metrics:      m,
		Logger:       logger,
	})
	go hub.Run(ctx)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := handlers.NewRouter(cfg, hub, m, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Str("environment", cfg.Environment).Msg("starting watch party server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server failed")
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
	}
	<-hub.Done()

	logger.Info().Msg("shutdown complete")
}
