package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgExecutor is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func newBuilder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// NewPool opens a pgx pool and verifies connectivity.
func NewPool(ctx context.Context, dsn string, maxConns int32, connectTimeout time.Duration, log *zap.SugaredLogger) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pgx pool config: %w", err)
	}
	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}
	if connectTimeout > 0 {
		poolConfig.ConnConfig.ConnectTimeout = connectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if log != nil {
		log.Infow("connected to postgres",
			"host", poolConfig.ConnConfig.Host,
			"database", poolConfig.ConnConfig.Database,
			"max_conns", poolConfig.MaxConns,
		)
	}
	return pool, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		username          TEXT PRIMARY KEY,
		role              TEXT NOT NULL,
		is_venue_owner    BOOLEAN NOT NULL DEFAULT FALSE,
		password_hash     TEXT NOT NULL,
		current_ip        TEXT NOT NULL DEFAULT '',
		ip_history        TEXT[] NOT NULL DEFAULT '{}',
		ban_strike_count  INTEGER NOT NULL DEFAULT 0 CHECK (ban_strike_count >= 0),
		is_permanent_ban  BOOLEAN NOT NULL DEFAULT FALSE,
		is_globally_muted BOOLEAN NOT NULL DEFAULT FALSE,
		created_at        TIMESTAMPTZ NOT NULL,
		version           BIGINT NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS venues (
		name           TEXT PRIMARY KEY,
		owner_username TEXT NOT NULL REFERENCES users(username),
		is_open        BOOLEAN NOT NULL DEFAULT TRUE,
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id             UUID PRIMARY KEY,
		dj_username    TEXT NOT NULL,
		dj_name        TEXT NOT NULL,
		venue_name     TEXT NOT NULL,
		streaming_link TEXT NOT NULL DEFAULT '',
		weekday        SMALLINT NOT NULL CHECK (weekday BETWEEN 0 AND 6),
		hour           SMALLINT NOT NULL CHECK (hour BETWEEN 0 AND 23),
		minute         SMALLINT NOT NULL CHECK (minute BETWEEN 0 AND 59),
		status         TEXT NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS bookings_dj_idx ON bookings (dj_username)`,
	`CREATE INDEX IF NOT EXISTS bookings_venue_idx ON bookings (venue_name)`,
}

// Migrate creates the tables when they do not exist yet.
func Migrate(ctx context.Context, exec pgExecutor, log *zap.SugaredLogger) error {
	for i, stmt := range schema {
		if _, err := exec.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d: %w", i+1, err)
		}
	}
	if log != nil {
		log.Infow("postgres schema is up to date", "statements", len(schema))
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
