package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/felixgeelhaar/cyberquest/internal/config"
	"github.com/felixgeelhaar/cyberquest/internal/daemon"
	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/felixgeelhaar/cyberquest/internal/engine"
	"github.com/felixgeelhaar/cyberquest/internal/queue"
	"github.com/felixgeelhaar/cyberquest/internal/storage"
)

const (
	pidFileName = "cyberquestd.pid"
)

func main() {
	if err := run(); err != nil {
		slog.Error("daemon error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	dir, err := config.EnsureDir()
	if err != nil {
		return fmt.Errorf("ensure config dir: %w", err)
	}

	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logFile, err := setupLogging(dir, parseLogLevel(cfg.Daemon.LogLevel))
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	pidPath := filepath.Join(dir, pidFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("close storage", "error", err)
		}
	}()

	engineCfg, err := engine.ConfigFromLocal(cfg)
	if err != nil {
		return fmt.Errorf("engine config: %w", err)
	}
	svc := engine.NewService(store.Store, engineCfg)

	events := domain.NewEventDispatcher()
	svc.SetEventDispatcher(events)

	if cfg.Queue.Enabled {
		stop, err := startQueue(ctx, cfg.Queue, svc, events)
		if err != nil {
			return err
		}
		defer stop()
	}

	server, err := daemon.NewServer(daemon.ServerConfig{
		Config: cfg,
		Engine: svc,
	})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		slog.Info("received signal, shutting down", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		close(done)
	}()

	if err := server.Start(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	slog.Info("daemon stopped")
	return nil
}

// startQueue publishes engine events and ingests queued actions. The returned
// func stops the consumer and closes the connection.
func startQueue(ctx context.Context, cfg config.QueueConfig, svc *engine.Service, events *domain.EventDispatcher) (func(), error) {
	conn, err := queue.NewConnection(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	queue.NewProducer(conn).Attach(events)

	consumer := queue.NewConsumer(conn, queue.IngestActions(svc), queue.ConsumerConfig{
		Workers:  cfg.Workers,
		Prefetch: cfg.Prefetch,
	})
	if err := consumer.Start(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("start action consumer: %w", err)
	}

	return func() {
		consumer.Stop()
		if err := conn.Close(); err != nil {
			slog.Warn("close rabbitmq connection", "error", err)
		}
	}, nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func writePIDFile(path string) error {
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}
