package db

import (
	"context"
	"testing"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	database, err := Open(MemoryDSN)
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	return database
}

func TestOpen_DefaultsToMemory(t *testing.T) {
	database, err := Open("  ")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer database.Close()

	if database.Path() != MemoryDSN {
		t.Errorf("Path() = %q, want %q", database.Path(), MemoryDSN)
	}
}

func TestQuoteIdent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "state", want: `"state"`},
		{in: "_2020_01_22", want: `"_2020_01_22"`},
		{in: `we"ird`, want: `"we""ird"`},
	}

	for _, tt := range tests {
		if got := QuoteIdent(tt.in); got != tt.want {
			t.Errorf("QuoteIdent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestCreateTableAndInsertRows(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	cols := []Column{
		{Name: "county_fips_code"},
		{Name: "_2020_01_22", Type: TypeInteger},
	}
	if err := db.CreateTable(ctx, "cases_1", cols); err != nil {
		t.Fatalf("CreateTable() error = %v", err)
	}

	rows := [][]any{
		{"36061", int64(5)},
		{"06037", nil},
	}
	if err := db.InsertRows(ctx, "cases_1", ColumnNames(cols), rows); err != nil {
		t.Fatalf("InsertRows() error = %v", err)
	}

	var count, nulls int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*), SUM(CASE WHEN "_2020_01_22" IS NULL THEN 1 ELSE 0 END) FROM "cases_1"`).Scan(&count, &nulls)
	if err != nil {
		t.Fatalf("count query error = %v", err)
	}
	if count != 2 {
		t.Errorf("row count = %d, want 2", count)
	}
	if nulls != 1 {
		t.Errorf("null count = %d, want 1", nulls)
	}

	tables, err := db.Tables(ctx)
	if err != nil {
		t.Fatalf("Tables() error = %v", err)
	}
	if len(tables) != 1 || tables[0] != "cases_1" {
		t.Errorf("Tables() = %v, want [cases_1]", tables)
	}
}

func TestCreateTable_Duplicate(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	cols := []Column{{Name: "state"}}
	if err := db.CreateTable(ctx, "t", cols); err != nil {
		t.Fatalf("CreateTable() first call error = %v", err)
	}
	if err := db.CreateTable(ctx, "t", cols); err == nil {
		t.Error("CreateTable() second call error = nil, want error")
	}
}

func TestCreateTable_NoColumns(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	if err := db.CreateTable(context.Background(), "empty", nil); err == nil {
		t.Error("CreateTable() with no columns error = nil, want error")
	}
}

func TestInsertRows_WrongWidth(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	cols := []Column{{Name: "a"}, {Name: "b"}}
	if err := db.CreateTable(ctx, "t", cols); err != nil {
		t.Fatalf("CreateTable() error = %v", err)
	}

	err := db.InsertRows(ctx, "t", ColumnNames(cols), [][]any{{1, 2}, {3}})
	if err == nil {
		t.Fatal("InsertRows() error = nil, want error for short row")
	}

	// The transaction rolled back, so the first row is not visible either.
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM "t"`).Scan(&count); err != nil {
		t.Fatalf("count query error = %v", err)
	}
	if count != 0 {
		t.Errorf("row count after failed insert = %d, want 0", count)
	}
}
