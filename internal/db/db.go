// Package db opens the database backing the task store.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite" // SQLite driver

	"siteplan/pkg/task"
)

// Driver names accepted by OpenStore.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Connect opens a pgx pool and checks it is reachable.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return pool, nil
}

// OpenSQLite opens a SQLite database with WAL and a busy timeout.
// ":memory:" databases are pinned to one connection so every query sees
// the same data.
func OpenSQLite(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if dsn == ":memory:" {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(`
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}
	return db, nil
}

// OpenStore opens the configured store and ensures its table exists.
// The returned close function releases the connection.
func OpenStore(ctx context.Context, driver, dsn string) (task.Store, func(), error) {
	var (
		store   task.Store
		closeFn func()
	)
	switch driver {
	case DriverMemory:
		store, closeFn = task.NewMemStore(), func() {}
	case DriverSQLite:
		sqlDB, err := OpenSQLite(dsn)
		if err != nil {
			return nil, nil, err
		}
		store, closeFn = task.NewSQLiteStore(sqlDB), func() { _ = sqlDB.Close() }
	case DriverPostgres:
		pool, err := Connect(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		store, closeFn = task.NewPgStore(pool), pool.Close
	default:
		return nil, nil, fmt.Errorf("unsupported store driver: %s", driver)
	}

	if err := store.EnsureTable(ctx); err != nil {
		closeFn()
		return nil, nil, fmt.Errorf("ensure tasks table: %w", err)
	}
	return store, closeFn, nil
}
