// Package db opens the Postgres pool shared by the repositories.
package db

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"coinflip_escrow/internal/logger"
)

const (
	connectAttempts = 5
	connectBackoff  = time.Second
)

// Open parses dsn, applies DB_MAX_CONNS if set and pings until the server answers
// or the attempts run out.
func Open(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "parse DATABASE_URL")
	}
	if v := os.Getenv("DB_MAX_CONNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, errors.Errorf("invalid DB_MAX_CONNS %q", v)
		}
		cfg.MaxConns = int32(n)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.Wrap(err, "create database pool")
	}

	for attempt := 1; ; attempt++ {
		err = pool.Ping(ctx)
		if err == nil {
			break
		}
		if attempt == connectAttempts {
			pool.Close()
			return nil, errors.Wrapf(err, "ping database after %d attempts", attempt)
		}
		logger.Warn("database not ready, retrying", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, ctx.Err()
		case <-time.After(connectBackoff * time.Duration(attempt)):
		}
	}

	logger.Info("database connected", "max_conns", cfg.MaxConns)
	return pool, nil
}

// Connect is Open for process startup: any failure is fatal.
func Connect(dsn string) *pgxpool.Pool {
	pool, err := Open(context.Background(), dsn)
	if err != nil {
		logger.Fatal("failed to connect database", "error", err)
	}
	return pool
}
