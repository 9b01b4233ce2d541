package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect is the SQL flavour behind a DB.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

type Config struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// DB is a database/sql handle plus the pgx pool behind it when the backend is PostgreSQL.
type DB struct {
	SQL     *sql.DB
	Pool    *pgxpool.Pool
	Dialect Dialect
}

// DialectOf picks the backend from the DSN: postgres:// and postgresql:// URLs use pgx,
// anything else is treated as a SQLite path or URI.
func DialectOf(dsn string) Dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return Postgres
	}
	return SQLite
}

// Open connects to the archive database.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 3 * time.Second
	}
	d := DialectOf(cfg.DSN)
	logger.Info("connecting to database", "dialect", d)

	if d == SQLite {
		db, err := sql.Open("sqlite", strings.TrimPrefix(cfg.DSN, "sqlite://"))
		if err != nil {
			logger.Error("failed to open database", "error", err)
			return nil, err
		}
		// One writer at a time; also keeps ":memory:" on a single shared connection.
		db.SetMaxOpenConns(1)
		pctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
		if err := db.PingContext(pctx); err != nil {
			_ = db.Close()
			logger.Error("failed to connect to database", "error", err)
			return nil, err
		}
		logger.Info("successfully connected to database")
		return &DB{SQL: db, Dialect: SQLite}, nil
	}

	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		pc.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "guideline-extractor"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}

	dctx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, err
	}

	logger.Info("successfully connected to database")
	return &DB{SQL: stdlib.OpenDBFromPool(pool), Pool: pool, Dialect: Postgres}, nil
}

// Close closes the database connections gracefully
func (db *DB) Close(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("closing database connections")
	if err := db.SQL.Close(); err != nil {
		logger.Error("failed to close database", "error", err)
	}
	if db.Pool != nil {
		db.Pool.Close()
	}
	logger.Info("database connections closed")
}

// HealthCheck pings the database.
func (db *DB) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if db.Pool != nil {
		return db.Pool.Ping(ctx)
	}
	return db.SQL.PingContext(ctx)
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (db *DB) rebind(q string) string {
	if db.Dialect != Postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS extraction_tasks (
		id               TEXT PRIMARY KEY,
		tag              TEXT NOT NULL,
		status           TEXT NOT NULL,
		message          TEXT NOT NULL,
		record_count     INTEGER NOT NULL,
		started_at       TEXT NOT NULL,
		ended_at         TEXT,
		duration_seconds DOUBLE PRECISION NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS extraction_records (
		task_id    TEXT NOT NULL REFERENCES extraction_tasks(id) ON DELETE CASCADE,
		position   INTEGER NOT NULL,
		entity     TEXT NOT NULL,
		property   TEXT NOT NULL,
		value      TEXT NOT NULL,
		entity_tag TEXT NOT NULL,
		value_tag  TEXT NOT NULL,
		level      TEXT NOT NULL,
		PRIMARY KEY (task_id, position)
	)`,
}

// Migrate creates the archive tables when missing.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.SQL.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
