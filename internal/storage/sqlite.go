package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// SQLiteBackend stores values in a single SQLite table.
type SQLiteBackend struct {
	conn *sql.DB
}

// OpenSQLite creates a new database connection and ensures the schema is up to date.
func OpenSQLite(dsn string) (*SQLiteBackend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer; one connection avoids SQLITE_BUSY under load.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteBackend{conn: db}, nil
}

// Close closes the database connection.
func (b *SQLiteBackend) Close() error {
	return b.conn.Close()
}

// Get retrieves the value and version stored under key.
func (b *SQLiteBackend) Get(ctx context.Context, key string) ([]byte, int64, error) {
	var data []byte
	var version int64
	row := b.conn.QueryRowContext(ctx, `SELECT value, version FROM kv WHERE key = ?`, key)
	if err := row.Scan(&data, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return data, version, nil
}

// Put writes data under key if the stored version equals expected.
func (b *SQLiteBackend) Put(ctx context.Context, key string, data []byte, expected int64) (int64, error) {
	var res sql.Result
	var err error
	next := expected + 1
	if expected == 0 {
		res, err = b.conn.ExecContext(ctx, `
			INSERT INTO kv (key, value, version, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO NOTHING
		`, key, data, next, time.Now())
	} else {
		res, err = b.conn.ExecContext(ctx, `
			UPDATE kv
			SET value = ?, version = ?, updated_at = ?
			WHERE key = ? AND version = ?
		`, data, next, time.Now(), key, expected)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to write key %s: %w", key, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check write for key %s: %w", key, err)
	}
	if n == 0 {
		return 0, ErrVersionConflict
	}
	return next, nil
}
