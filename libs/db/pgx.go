package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Pool struct {
	*pgxpool.Pool
}

// PoolOptions tunes the pool. Zero fields keep the defaults below.
type PoolOptions struct {
	// ApplicationName shows up in pg_stat_activity, which makes advisory
	// lock waiters easy to attribute.
	ApplicationName string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

const (
	defaultMaxConns        = 10
	defaultMinConns        = 1
	defaultMaxConnLifetime = 30 * time.Minute
	defaultMaxConnIdleTime = 5 * time.Minute
)

// Config parses databaseURL and applies opts on top of it.
func Config(databaseURL string, opts PoolOptions) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = orDefault(opts.MaxConns, defaultMaxConns)
	cfg.MinConns = orDefault(opts.MinConns, defaultMinConns)
	if cfg.MinConns > cfg.MaxConns {
		cfg.MinConns = cfg.MaxConns
	}
	cfg.MaxConnLifetime = orDefault(opts.MaxConnLifetime, defaultMaxConnLifetime)
	cfg.MaxConnIdleTime = orDefault(opts.MaxConnIdleTime, defaultMaxConnIdleTime)
	if opts.ApplicationName != "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = opts.ApplicationName
	}
	return cfg, nil
}

// Open connects and pings once so misconfiguration fails at startup.
func Open(ctx context.Context, databaseURL string, opts PoolOptions) (*Pool, error) {
	cfg, err := Config(databaseURL, opts)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Pool{Pool: pool}, nil
}

func (p *Pool) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}

func ReadyCheck(pool *Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		if pool == nil || pool.Pool == nil {
			return errors.New("db not configured")
		}
		return pool.Ping(ctx)
	}
}

func orDefault[T int32 | time.Duration](v, fallback T) T {
	if v <= 0 {
		return fallback
	}
	return v
}
