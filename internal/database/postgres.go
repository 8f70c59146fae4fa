package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DB is the shared connection pool, set by ConnectDB.
var DB *pgxpool.Pool

// PoolSettings bounds the pgx pool. Zero values fall back to defaults
// sized for a single-instance deployment.
type PoolSettings struct {
	MaxConns       int32
	MinConns       int32
	ConnLifetime   time.Duration
	ConnIdleTime   time.Duration
	ConnectTimeout time.Duration
}

func (s PoolSettings) withDefaults() PoolSettings {
	if s.MaxConns <= 0 {
		s.MaxConns = 10
	}
	if s.MinConns <= 0 {
		s.MinConns = 2
	}
	if s.ConnLifetime <= 0 {
		s.ConnLifetime = time.Hour
	}
	if s.ConnIdleTime <= 0 {
		s.ConnIdleTime = 30 * time.Minute
	}
	if s.ConnectTimeout <= 0 {
		s.ConnectTimeout = 10 * time.Second
	}
	return s
}

// ConnectDB opens the shared pool and verifies connectivity before
// anything depends on it.
func ConnectDB(ctx context.Context, dbURL string, settings PoolSettings) error {
	settings = settings.withDefaults()

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return fmt.Errorf("unable to parse database config: %w", err)
	}
	config.MaxConns = settings.MaxConns
	config.MinConns = settings.MinConns
	config.MaxConnLifetime = settings.ConnLifetime
	config.MaxConnIdleTime = settings.ConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return fmt.Errorf("unable to create pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, settings.ConnectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return fmt.Errorf("unable to ping database: %w", err)
	}

	DB = pool
	log.Printf("Connected to PostgreSQL (max_conns=%d min_conns=%d)", settings.MaxConns, settings.MinConns)
	return nil
}

// Ping reports whether the pool is reachable, for health checks.
func Ping(ctx context.Context) error {
	if DB == nil {
		return fmt.Errorf("database not connected")
	}
	return DB.Ping(ctx)
}

func CloseDB() {
	if DB != nil {
		DB.Close()
		DB = nil
	}
}
