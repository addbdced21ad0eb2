package common

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/dtnitsch/covid-agg/models"
	"github.com/dtnitsch/covid-agg/pkg/analytics"
	"github.com/dtnitsch/covid-agg/pkg/db"
	"github.com/dtnitsch/covid-agg/pkg/frame"
)

func setupFrame(t *testing.T) *frame.Frame {
	t.Helper()

	d, err := db.Open(db.MemoryDSN)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })

	ctx := context.Background()
	cols := []db.Column{{Name: "state", Type: db.TypeText}, {Name: "total", Type: db.TypeInteger}}
	if err := d.CreateTable(ctx, "totals", cols); err != nil {
		t.Fatalf("CreateTable() error = %v", err)
	}
	rows := [][]any{{"NY", int64(1234567)}, {"CA", int64(10)}, {"WA", nil}}
	if err := d.InsertRows(ctx, "totals", db.ColumnNames(cols), rows); err != nil {
		t.Fatalf("InsertRows() error = %v", err)
	}
	return frame.FromTable(d, "totals", db.ColumnNames(cols)).OrderBy(frame.Desc("total"))
}

func TestPrinter_Table(t *testing.T) {
	f := setupFrame(t)
	var buf bytes.Buffer

	p := NewPrinter(&buf, models.FormatTable, 2, "app", "run")
	if err := p.Frame(context.Background(), "Totals", f); err != nil {
		t.Fatalf("Frame() error = %v", err)
	}
	if err := p.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	want := `== Totals (3 rows) ==
+-----+-------+
|state|  total|
+-----+-------+
|   NY|1234567|
|   CA|     10|
+-----+-------+
only showing top 2 rows
`
	if buf.String() != want {
		t.Errorf("output =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestPrinter_Structured(t *testing.T) {
	tests := []struct {
		format string
		want   []string
	}{
		{format: models.FormatJSON, want: []string{`"title": "Totals"`, `"total_rows": 3`, `"run_id": "run"`, `"median": 0.5`}},
		{format: models.FormatYAML, want: []string{"title: Totals", "total_rows: 3", "run_id: run", "median: 0.5"}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			f := setupFrame(t)
			var buf bytes.Buffer

			p := NewPrinter(&buf, tt.format, 0, "app", "run")
			if err := p.Frame(context.Background(), "Totals", f); err != nil {
				t.Fatalf("Frame() error = %v", err)
			}
			p.Summary("Summary", analytics.Summary{Column: "total", Count: 1, Median: 0.5})
			if buf.Len() != 0 {
				t.Fatalf("output written before Flush: %s", buf.String())
			}
			if err := p.Flush(); err != nil {
				t.Fatalf("Flush() error = %v", err)
			}

			out := buf.String()
			for _, w := range tt.want {
				if !strings.Contains(out, w) {
					t.Errorf("output missing %q:\n%s", w, out)
				}
			}
			if got := len(p.Report().Sections[0].Rows); got != 3 {
				t.Errorf("len(Rows) = %d, want 3", got)
			}
		})
	}
}

func TestPrinter_Lines(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, models.FormatTable, 20, "app", "run")
	p.Lines("Plan", []string{"SCAN t"})

	if want := "== Plan (1 row) ==\nSCAN t\n\n"; buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}
