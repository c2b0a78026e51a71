package cache

import (
	"context"
	"fmt"
	"log/slog"

	"cookflow/internal/config"
)

// MakeCache opens the backend named by cfg.Store.Backend.
func MakeCache(ctx context.Context, cfg *config.Config) (Cache, error) {
	switch cfg.Store.Backend {
	case "memory":
		slog.InfoContext(ctx, "Using in-memory store")
		return NewInMemoryCache(), nil
	case "file":
		slog.InfoContext(ctx, "Using file store", "dir", cfg.Store.Path)
		return NewFileCache(cfg.Store.Path), nil
	case "sqlite":
		slog.InfoContext(ctx, "Using sqlite store", "path", cfg.Store.Path)
		return NewSQLiteCache(cfg.Store.Path)
	case "redis":
		if cfg.Store.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is required for the redis store")
		}
		slog.InfoContext(ctx, "Using redis store", "addr", cfg.Store.RedisAddr)
		return NewRedisCache(ctx, cfg.Store.RedisAddr, "cookflow:")
	case "azure":
		slog.InfoContext(ctx, "Using Azure Blob Storage for store", "container", cfg.Store.Container)
		return NewBlobCache(cfg.Azure.AccountName, cfg.Azure.AccountKey, cfg.Store.Container)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}
