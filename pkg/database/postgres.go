package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool sizing defaults. The engine's write bursts come from rebuilds
// (COPY of a full rule set per restaurant), so the pool stays modest.
const (
	defaultMaxConnections  = 25
	defaultMaxConnLifetime = time.Hour
	defaultMaxConnIdleTime = 30 * time.Minute
)

// DB wraps a pgxpool connection pool.
type DB struct {
	*pgxpool.Pool
}

// Config holds database connection configuration. Zero values fall back
// to the package defaults.
type Config struct {
	URL             string
	MaxConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

func (cfg *Config) maxConns() int32 {
	if cfg.MaxConnections > 0 {
		return cfg.MaxConnections
	}
	return defaultMaxConnections
}

func (cfg *Config) connLifetime() time.Duration {
	if cfg.MaxConnLifetime > 0 {
		return cfg.MaxConnLifetime
	}
	return defaultMaxConnLifetime
}

func (cfg *Config) connIdleTime() time.Duration {
	if cfg.MaxConnIdleTime > 0 {
		return cfg.MaxConnIdleTime
	}
	return defaultMaxConnIdleTime
}

// NewConnection creates a connection pool and verifies it with a ping.
func NewConnection(ctx context.Context, cfg *Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = cfg.maxConns()
	poolConfig.MaxConnLifetime = cfg.connLifetime()
	poolConfig.MaxConnIdleTime = cfg.connIdleTime()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
