package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rocketscienceinc/ultimatettt-backend/internal/config"
	"github.com/rocketscienceinc/ultimatettt-backend/internal/metrics"
	"github.com/rocketscienceinc/ultimatettt-backend/internal/registry"
	"github.com/rocketscienceinc/ultimatettt-backend/internal/repository"
	"github.com/rocketscienceinc/ultimatettt-backend/internal/repository/storage"
	"github.com/rocketscienceinc/ultimatettt-backend/internal/usecase"
	"github.com/rocketscienceinc/ultimatettt-backend/transport/rest"
	"github.com/rocketscienceinc/ultimatettt-backend/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	redisAddrString := conf.Redis.GetRedisAddr()
	if redisAddrString == "" {
		return ErrAddrNotFound
	}

	redisStorage, err := storage.New(ctx, redisAddrString)
	if err != nil {
		return fmt.Errorf("could not connect to redis storage: %w", err)
	}

	defer func() {
		if err = redisStorage.Close(); err != nil {
			log.Error("could not close redis storage", "error", err)
		}
	}()

	promRegistry := prometheus.NewRegistry()
	gameMetrics := metrics.New("ultimatettt", promRegistry)

	roomRegistry := registry.New(logger)
	sessionRepo := repository.NewSessionRepository(redisStorage.Connection)

	gameManager := usecase.NewGameManager(logger, roomRegistry, sessionRepo, gameMetrics, usecase.Options{
		IdleTimeout:     conf.Room.IdleTimeout,
		ReapInterval:    conf.Room.ReapInterval,
		DisconnectGrace: conf.Room.DisconnectGrace,
	})

	wsServer := websocket.New(logger, gameManager, gameMetrics)
	gameManager.SetNotifier(wsServer)

	go gameManager.Run(ctx)

	// run HTTP server (polling transport, ping, metrics)
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		restServer := rest.New(logger, gameManager, metrics.Handler(promRegistry))
		if httpErr := restServer.Start(ctx, conf.HTTPPort); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run WebSocket server (push transport)
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}
