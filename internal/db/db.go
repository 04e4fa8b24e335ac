package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PoolSettings sizes the PostgreSQL pool. Zero fields keep the defaults.
type PoolSettings struct {
	MaxConns int32
	MinConns int32
}

const (
	defaultMaxConns = 25
	defaultMinConns = 2
)

// Connect opens a pool for dsn and checks that the server answers
func Connect(ctx context.Context, dsn string, settings PoolSettings) (*pgxpool.Pool, error) {
	config, err := poolConfig(dsn, settings)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

func poolConfig(dsn string, settings PoolSettings) (*pgxpool.Config, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	config.MaxConns = defaultMaxConns
	if settings.MaxConns > 0 {
		config.MaxConns = settings.MaxConns
	}
	config.MinConns = defaultMinConns
	if settings.MinConns > 0 {
		config.MinConns = settings.MinConns
	}
	if config.MinConns > config.MaxConns {
		return nil, fmt.Errorf("min connections (%d) exceed max connections (%d)", config.MinConns, config.MaxConns)
	}

	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute
	return config, nil
}
