/**
 * Database Connection Management for MPTimer
 *
 * Features:
 * - SQLite connection with foreign keys and WAL journaling
 * - Embedded schema applied on open
 * - Transaction helpers
 *
 * Author: MPTimer Team
 * Update History:
 * - 2025-02-06: Journal database
 */

package state

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaFS embed.FS

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// DB represents the database connection manager.
type DB struct {
	*sqlx.DB
	path string
}

// DBConfig holds database configuration.
type DBConfig struct {
	Path         string
	MaxOpenConns int
	MaxIdleConns int
	MaxIdleTime  time.Duration
	BusyTimeout  time.Duration
}

// DefaultConfig returns default database configuration.
func DefaultConfig() DBConfig {
	return DBConfig{
		Path:         DefaultDatabasePath,
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		MaxIdleTime:  5 * time.Minute,
		BusyTimeout:  5 * time.Second,
	}
}

// NewDB opens the database and applies the schema.
func NewDB(cfg DBConfig) (*DB, error) {
	if cfg.Path == "" {
		cfg.Path = DefaultDatabasePath
	}

	// An in-memory database exists per connection.
	if cfg.Path == MemoryPath {
		cfg.MaxOpenConns = 1
		cfg.MaxIdleConns = 1
	} else if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=%d",
		cfg.Path, cfg.BusyTimeout.Milliseconds())

	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.MaxIdleTime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	wrapper := &DB{DB: db, path: cfg.Path}

	if err := wrapper.InitSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return wrapper, nil
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// InitSchema initializes the database schema.
func (db *DB) InitSchema(ctx context.Context) error {
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema: %w", err)
	}

	return db.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, string(schema)); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}
		return nil
	})
}

// WithTx executes a function within a transaction.
func (db *DB) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %w, rollback failed: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Vacuum performs database maintenance.
func (db *DB) Vacuum(ctx context.Context) error {
	_, err := db.ExecContext(ctx, "VACUUM")
	return err
}

// HealthCheck performs a database health check.
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var result int
	if err := db.GetContext(ctx, &result, "SELECT 1"); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}

	return nil
}
