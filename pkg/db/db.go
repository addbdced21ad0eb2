package db

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// MemoryDSN keeps every table in process memory for the lifetime of the handle.
const MemoryDSN = ":memory:"

type DB struct {
	*sql.DB
	path string
}

// openDB opens a SQLite database at the given path
func openDB(dsn string) (*sql.DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An in-memory database lives and dies with its connection, so the pool
	// must never hand out a second one.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if _, err := sqlDB.Exec(pragmas); err != nil {
		_ = sqlDB.Close() // Close error less important than PRAGMA error
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	return sqlDB, nil
}

// Open opens the engine database. An empty dsn means MemoryDSN.
func Open(dsn string) (*DB, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = MemoryDSN
	}

	sqlDB, err := openDB(dsn)
	if err != nil {
		return nil, err
	}

	return &DB{
		DB:   sqlDB,
		path: dsn,
	}, nil
}

// Path returns the database DSN
func (db *DB) Path() string {
	return db.path
}

// QuoteIdent quotes a column or table name for use in SQL text.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
