package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/felixgeelhaar/cyberquest/internal/config"
	"github.com/felixgeelhaar/cyberquest/internal/domain"
	"github.com/felixgeelhaar/cyberquest/internal/engine"
	mcpserver "github.com/felixgeelhaar/cyberquest/internal/mcp"
	"github.com/felixgeelhaar/cyberquest/internal/queue"
	"github.com/felixgeelhaar/cyberquest/internal/storage"
	"github.com/google/uuid"
)

// cmdMCP serves the engine over MCP on stdio, reading the configured store
// directly.
func cmdMCP() error {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// stdout carries the protocol; keep logs quiet on stderr.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	ctx, cancel := signalContext()
	defer cancel()

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer store.Close()

	engineCfg, err := engine.ConfigFromLocal(cfg)
	if err != nil {
		return fmt.Errorf("engine config: %w", err)
	}

	srv := mcpserver.NewServer(mcpserver.Config{
		Engine:  engine.NewService(store.Store, engineCfg),
		Version: Version,
	})
	return srv.ServeStdio(ctx)
}

// cmdWatch prints progress and achievement events as they are published.
func cmdWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	raw := fs.String("learner", os.Getenv(learnerEnvVar), "learner UUID")
	all := fs.Bool("all", false, "watch every learner")
	if err := fs.Parse(args); err != nil {
		return err
	}

	learner := uuid.Nil
	if !*all {
		id, err := uuid.Parse(*raw)
		if err != nil || id == uuid.Nil {
			return fmt.Errorf("a learner UUID is required (-learner, %s or -all)", learnerEnvVar)
		}
		learner = id
	}

	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.Queue.URL == "" {
		return errors.New("no RabbitMQ URL configured (set RABBITMQ_URL or secrets.yaml)")
	}

	conn, err := queue.NewConnection(cfg.Queue.URL)
	if err != nil {
		return fmt.Errorf("connect rabbitmq: %w", err)
	}
	defer conn.Close()

	ctx, cancel := signalContext()
	defer cancel()

	consumer := queue.NewEventConsumer(conn)
	consumer.Subscribe(learner, func(env *queue.Envelope) {
		printEvent(os.Stdout, env)
	})
	if err := consumer.Start(ctx); err != nil {
		return err
	}

	fmt.Println("Watching events (Ctrl+C to stop)...")
	<-ctx.Done()
	consumer.Stop()
	return nil
}

// printEvent writes one line per event.
func printEvent(w io.Writer, env *queue.Envelope) {
	ts := env.Timestamp.Local().Format("15:04:05")
	switch env.Type {
	case domain.EventProgressSubmitted:
		var ev domain.ProgressSubmittedEvent
		if json.Unmarshal(env.Body, &ev) == nil {
			fmt.Fprintf(w, "%s %s level %d %s score=%.0f +%d XP (total %d, %s)\n",
				ts, env.Learner, ev.ExerciseID, ev.Status, ev.Score, ev.XPEarned, ev.TotalXP, ev.Rank)
			return
		}
	case domain.EventAchievementUnlocked:
		var ev domain.AchievementUnlockedEvent
		if json.Unmarshal(env.Body, &ev) == nil {
			fmt.Fprintf(w, "%s %s unlocked %q +%d XP\n", ts, env.Learner, ev.Achievement.Name, ev.Achievement.XPBonus)
			return
		}
	}
	fmt.Fprintf(w, "%s %s %s\n", ts, env.Learner, env.Type)
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
