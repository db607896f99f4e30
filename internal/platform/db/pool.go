package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	applicationName  = "mediconnect"
	statementTimeout = 30 * time.Second
)

// PoolConfig parses databaseURL and applies the server's pool limits and
// session settings. Appointment dates and times are stored without zone, so
// every session runs in UTC.
func PoolConfig(databaseURL string, maxConns, minConns int32) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if maxConns < 1 {
		return nil, fmt.Errorf("max connections must be positive, got %d", maxConns)
	}
	if minConns < 0 || minConns > maxConns {
		return nil, fmt.Errorf("min connections %d outside [0, %d]", minConns, maxConns)
	}

	cfg.MaxConns = maxConns
	cfg.MinConns = minConns
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.HealthCheckPeriod = time.Minute

	rp := cfg.ConnConfig.RuntimeParams
	if _, ok := rp["application_name"]; !ok {
		rp["application_name"] = applicationName
	}
	rp["timezone"] = "UTC"
	rp["statement_timeout"] = fmt.Sprint(statementTimeout.Milliseconds())
	return cfg, nil
}

// NewPool opens a pool with PoolConfig and pings it once.
func NewPool(ctx context.Context, databaseURL string, maxConns, minConns int32) (*pgxpool.Pool, error) {
	cfg, err := PoolConfig(databaseURL, maxConns, minConns)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database %s: %w", cfg.ConnConfig.Host, err)
	}
	return pool, nil
}
