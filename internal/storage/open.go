// Package storage opens the Store selected by configuration.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/cyberquest/internal/config"
	"github.com/felixgeelhaar/cyberquest/internal/engine"
	"github.com/felixgeelhaar/cyberquest/internal/storage/memory"
	"github.com/felixgeelhaar/cyberquest/internal/storage/postgres"
	"github.com/felixgeelhaar/cyberquest/internal/storage/resilient"
	"github.com/felixgeelhaar/cyberquest/internal/storage/sqlite"
)

// Handle owns an open Store and releases it on Close.
type Handle struct {
	Store  engine.Store
	Driver string

	closers []func() error
}

// Open connects, migrates and optionally wraps the configured store.
func Open(ctx context.Context, cfg *config.LocalConfig) (*Handle, error) {
	h := &Handle{Driver: cfg.Storage.Driver}

	switch cfg.Storage.Driver {
	case config.DriverMemory:
		mem := memory.New()
		if path := cfg.Storage.SnapshotPath; path != "" {
			if err := mem.LoadSnapshot(path); err != nil {
				return nil, fmt.Errorf("load snapshot: %w", err)
			}
			h.closers = append(h.closers, func() error {
				slog.Info("saving memory snapshot", "path", path)
				return mem.SaveSnapshot(path)
			})
		}
		h.Store = mem

	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		h.Store = sqlite.NewStore(db)
		h.closers = append(h.closers, db.Close)

	case config.DriverPostgres:
		if err := postgres.Migrate(ctx, cfg.Storage.PostgresURL); err != nil {
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		pool, err := postgres.Open(ctx, cfg.Storage.PostgresURL)
		if err != nil {
			return nil, err
		}
		h.Store = postgres.NewStore(pool)
		h.closers = append(h.closers, func() error {
			pool.Close()
			return nil
		})

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	if cfg.Resilience.Enabled && cfg.Storage.Driver != config.DriverMemory {
		r := cfg.Resilience
		h.Store = resilient.New(h.Store, resilient.Config{
			MaxAttempts:      r.MaxAttempts,
			InitialDelay:     r.InitialDelay(),
			MaxDelay:         r.MaxDelay(),
			FailureThreshold: r.FailureThreshold,
			OpenTimeout:      r.OpenTimeout(),
			MaxConcurrent:    r.MaxConcurrent,
			QueueTimeout:     5 * time.Second,
			Logger:           slog.Default(),
		})
	}

	slog.Info("storage opened", "driver", h.Driver, "resilient", cfg.Resilience.Enabled)
	return h, nil
}

// Close releases the store in reverse order of acquisition.
func (h *Handle) Close() error {
	var errs []error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	h.closers = nil
	return errors.Join(errs...)
}
