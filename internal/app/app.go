package app

import (
	"context"
	"ctchen222/tictactoe-rooms/internal/api/repository"
	"ctchen222/tictactoe-rooms/internal/api/service"
	"ctchen222/tictactoe-rooms/internal/config"
	"ctchen222/tictactoe-rooms/internal/db"
	"ctchen222/tictactoe-rooms/internal/events"
	"ctchen222/tictactoe-rooms/internal/hub"
	"ctchen222/tictactoe-rooms/internal/logger"
	"ctchen222/tictactoe-rooms/internal/monitor"
	resultrepo "ctchen222/tictactoe-rooms/internal/repository"
	"ctchen222/tictactoe-rooms/internal/server"
	"ctchen222/tictactoe-rooms/internal/telemetry"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 5 * time.Second
	metricsPrefix   = "tictactoe"
)

// Run starts the room server and blocks until ctx is cancelled or a
// component fails, then shuts everything down.
func Run(ctx context.Context, cfg *config.Config) error {
	logger.Init(cfg.LogLevel)
	if !logger.IsDebug(cfg.LogLevel) {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize telemetry
	shutdownOtel, err := telemetry.InitOtel(ctx, cfg.Otel)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := shutdownOtel(context.Background()); err != nil {
			slog.Error("Error shutting down telemetry", "error", err)
		}
	}()

	// Initialize SQLite DB
	conn, err := db.Connect(ctx, cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("failed to initialize sqlite db: %w", err)
	}
	defer conn.Close()

	// Initialize the Redis event feed
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Redis.Enabled {
		rdb, err := db.NewRedisClient(ctx, cfg.Redis.Addr)
		if err != nil {
			return fmt.Errorf("failed to initialize redis: %w", err)
		}
		defer rdb.Close()
		publisher = events.NewRedisPublisher(rdb)
		slog.InfoContext(ctx, "Publishing room events", "redis.addr", cfg.Redis.Addr, "channel", events.RoomsChannel)
	}

	// Create repositories and services
	results := resultrepo.NewResultRepository(conn)
	userService := service.NewUserService(repository.NewUserRepository(conn), cfg.JWTSecret, service.DefaultTokenTTL)
	resultService := service.NewResultService(results)
	metrics := monitor.NewMetrics(metricsPrefix, nil)

	// Create hub
	h := hub.NewHub(hub.Config{
		SweepInterval: cfg.Hub.SweepInterval,
		GameOverDelay: cfg.Hub.GameOverDelay,
		SendBuffer:    cfg.Hub.SendBuffer,
		BotThinkTime:  cfg.Hub.BotThinkTime,
	}, hub.WithPublisher(publisher), hub.WithResults(results), hub.WithMetrics(metrics))

	// Create the Gin-based server
	srv := server.NewServer(h,
		server.WithUsers(userService),
		server.WithResults(resultService),
		server.WithMetrics(metrics.Handler()),
		server.WithSendBuffer(cfg.Hub.SendBuffer),
	)
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		h.Run(gctx)
		return nil
	})
	g.Go(func() error {
		slog.InfoContext(gctx, "HTTP server started", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen and serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	slog.Info("Server exiting")
	return err
}
