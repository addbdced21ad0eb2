package db

import (
	"context"
	"fmt"
	"strings"
)

// InsertRows inserts rows into table name in a single transaction.
// Each row must hold one value per column in cols, in the same order.
func (db *DB) InsertRows(ctx context.Context, name string, cols []string, rows [][]any) (err error) {
	if len(rows) == 0 {
		return nil
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = QuoteIdent(c)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteIdent(name), strings.Join(quoted, ", "), placeholders)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin insert into %s: %w", name, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback() // Rollback error less important than the insert error
		}
	}()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare insert into %s: %w", name, err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if len(row) != len(cols) {
			return fmt.Errorf("row %d of %s has %d values, want %d", i, name, len(row), len(cols))
		}
		if _, err = stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("failed to insert row %d into %s: %w", i, name, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit insert into %s: %w", name, err)
	}
	return nil
}

// Tables lists the user tables currently registered, sorted by name.
func (db *DB) Tables(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
