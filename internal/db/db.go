// Copyright (c) 2024-2026 IT Help San Diego Inc.
// Licensed under BUSL-1.1 — See LICENSE for terms.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"familybudget/internal/config"
	"familybudget/internal/dbq"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

//go:embed schema/*.sql
var schemaFS embed.FS

type Database struct {
	SQL     *sql.DB
	Pool    *pgxpool.Pool
	Queries *dbq.Queries
	Dialect dbq.Dialect
}

// Open connects to the backend selected by cfg.Backend and applies the schema.
func Open(cfg *config.Config) (*Database, error) {
	var (
		database *Database
		err      error
	)
	switch cfg.Backend {
	case config.BackendPostgres:
		database, err = Connect(cfg.DatabaseURL)
	default:
		database, err = OpenSQLite(cfg.SQLitePath)
	}
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.Migrate(ctx); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// Connect opens the postgres backend through a tuned pgx pool.
func Connect(databaseURL string) (*Database, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 2 * time.Minute
	config.HealthCheckPeriod = 30 * time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)

	slog.Info("Database connected successfully", "backend", "postgres")
	return &Database{
		SQL:     sqlDB,
		Pool:    pool,
		Queries: dbq.New(sqlDB, dbq.Postgres),
		Dialect: dbq.Postgres,
	}, nil
}

// OpenSQLite opens (creating if needed) the embedded database file. An empty
// path or ":memory:" gives a private in-memory database.
func OpenSQLite(path string) (*Database, error) {
	dsn := "file::memory:?_pragma=foreign_keys(1)"
	if path != "" && path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = "file:" + path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite serializes writers; one connection keeps transactions and the
	// in-memory database coherent.
	sqlDB.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Database connected successfully", "backend", "sqlite", "path", path)
	return &Database{
		SQL:     sqlDB,
		Queries: dbq.New(sqlDB, dbq.SQLite),
		Dialect: dbq.SQLite,
	}, nil
}

// Migrate applies the idempotent schema for the active dialect.
func (d *Database) Migrate(ctx context.Context) error {
	schema, err := schemaFS.ReadFile("schema/" + string(d.Dialect) + ".sql")
	if err != nil {
		return fmt.Errorf("reading schema: %w", err)
	}
	if _, err := d.SQL.ExecContext(ctx, string(schema)); err != nil {
		return fmt.Errorf("applying schema: %w", err)
	}
	return nil
}

// WithTx runs fn inside one database transaction. fn's error rolls back.
func (d *Database) WithTx(ctx context.Context, fn func(q *dbq.Queries) error) error {
	tx, err := d.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(d.Queries.WithTx(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			slog.Error("Transaction rollback failed", "error", rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (d *Database) Close() {
	if d.SQL != nil {
		_ = d.SQL.Close()
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
	slog.Info("Database connection closed")
}

func (d *Database) HealthCheck(ctx context.Context) error {
	if d.Pool != nil {
		return d.Pool.Ping(ctx)
	}
	return d.SQL.PingContext(ctx)
}
