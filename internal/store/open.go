package store

import (
	"context"
	"fmt"
	"time"

	"github.com/abgdnv/gocart/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Open creates the KV backend selected by cfg.Driver and checks it is reachable.
// For postgres the schema migrations are applied first.
func Open(ctx context.Context, cfg config.StorageConfig) (KV, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return NewInMemoryStore(), nil
	case config.DriverSQLite:
		return NewSQLiteStore(ctx, cfg.SQLite.Path)
	case config.DriverRedis:
		s := NewRedisStore(cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.Timeout)
		if err := ping(ctx, s, cfg.Redis.Timeout); err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		return s, nil
	case config.DriverPostgres:
		if err := MigrateUp(cfg.DB.URL); err != nil {
			return nil, err
		}
		dbPool, err := newDbPool(ctx, cfg.DB.URL, cfg.DB.Timeout)
		if err != nil {
			return nil, err
		}
		return NewPgStore(dbPool), nil
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Driver)
	}
}

func ping(ctx context.Context, kv KV, timeout time.Duration) error {
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return kv.Ping(pingCtx)
}

// newDbPool creates a new database connection pool with the provided context and configuration,
func newDbPool(ctx context.Context, url string, connectTimeout time.Duration) (*pgxpool.Pool, error) {
	// Create context with timeout for database connection
	poolCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	dbPool, errPool := pgxpool.New(poolCtx, url)
	if errPool != nil {
		return nil, fmt.Errorf("failed to create database connection pool: %w", errPool)
	}
	// Ping the database to ensure the connection is established (fail early if not)
	if err := dbPool.Ping(poolCtx); err != nil {
		dbPool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return dbPool, nil
}
