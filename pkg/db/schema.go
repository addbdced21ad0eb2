package db

import (
	"context"
	"fmt"
	"strings"
)

const pragmas = `
PRAGMA foreign_keys = ON;
PRAGMA temp_store = MEMORY;
`

// ColumnType is the declared SQLite type of a registered column.
type ColumnType string

const (
	// TypeAny declares no type, so values keep whatever storage class they were inserted with.
	TypeAny     ColumnType = ""
	TypeInteger ColumnType = "INTEGER"
	TypeText    ColumnType = "TEXT"
	TypeReal    ColumnType = "REAL"
)

// Column describes one column of a registered table.
type Column struct {
	Name string
	Type ColumnType
}

// ColumnNames returns the names of cols in order.
func ColumnNames(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// createTableSQL renders the DDL for a table with the given columns.
func createTableSQL(name string, cols []Column) string {
	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	sb.WriteString(QuoteIdent(name))
	sb.WriteString(" (")
	for i, c := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(QuoteIdent(c.Name))
		if c.Type != TypeAny {
			sb.WriteString(" ")
			sb.WriteString(string(c.Type))
		}
	}
	sb.WriteString(")")
	return sb.String()
}

// CreateTable registers a new table. It fails if the name is already taken.
func (db *DB) CreateTable(ctx context.Context, name string, cols []Column) error {
	if len(cols) == 0 {
		return fmt.Errorf("table %s: no columns", name)
	}
	if _, err := db.ExecContext(ctx, createTableSQL(name, cols)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", name, err)
	}
	return nil
}
