package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"kanban/internal/config"
	"kanban/internal/storage"
	"kanban/internal/storage/memory"
	"kanban/internal/storage/redisstore"
	"kanban/internal/storage/sqlite"
)

// openBackend connects the storage backend named in cfg.
func openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage.Backend, error) {
	switch cfg.Backend {
	case config.BackendRedis:
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		b, err := redisstore.Open(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, logger)
		if err != nil {
			return nil, err
		}
		return b, nil
	case config.BackendSQLite:
		s, err := sqlite.Open(cfg.SQLite.Path, logger)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.BackendMemory:
		logger.Warn("using in-memory backend; tasks are lost on restart")
		return memory.New(), nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
