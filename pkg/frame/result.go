package frame

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/dtnitsch/covid-agg/pkg/db"
)

// Result is a materialized frame.
type Result struct {
	Columns []string
	Rows    [][]any
}

// Index returns the position of col, or -1.
func (r *Result) Index(col string) int {
	for i, c := range r.Columns {
		if c == col {
			return i
		}
	}
	return -1
}

// Column returns every value of col, or nil if there is no such column.
func (r *Result) Column(col string) []any {
	i := r.Index(col)
	if i < 0 {
		return nil
	}
	out := make([]any, len(r.Rows))
	for j, row := range r.Rows {
		out[j] = row[i]
	}
	return out
}

// Maps returns one map per row keyed by column name.
func (r *Result) Maps() []map[string]any {
	out := make([]map[string]any, len(r.Rows))
	for i, row := range r.Rows {
		m := make(map[string]any, len(r.Columns))
		for j, c := range r.Columns {
			m[c] = row[j]
		}
		out[i] = m
	}
	return out
}

// Collect runs the plan and returns every row.
func (f *Frame) Collect(ctx context.Context) (*Result, error) {
	if f.err != nil {
		return nil, f.err
	}

	rows, err := f.db.QueryContext(ctx, f.SQL())
	if err != nil {
		return nil, fmt.Errorf("failed to run plan: %w", err)
	}
	defer rows.Close()

	res := &Result{Columns: f.Columns()}
	for rows.Next() {
		vals := make([]any, len(res.Columns))
		ptrs := make([]any, len(vals))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rows: %w", err)
	}
	return res, nil
}

// Count runs the plan and returns its row count.
func (f *Frame) Count(ctx context.Context) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	var n int64
	if err := f.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+f.subquery("t")).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}

// Cache runs the plan once into a new table and returns a plan that reads
// it, keeping the pending order. Columns in index get an index on the table.
func (f *Frame) Cache(ctx context.Context, table string, index ...string) (*Frame, error) {
	if err := f.check(index...); err != nil {
		return nil, err
	}

	q := "CREATE TABLE " + db.QuoteIdent(table) + " AS SELECT " + selectList("", f.cols) + " FROM " + f.subquery("t")
	if _, err := f.db.ExecContext(ctx, q); err != nil {
		return nil, fmt.Errorf("failed to cache plan into %s: %w", table, err)
	}
	if len(index) > 0 {
		q = "CREATE INDEX " + db.QuoteIdent(table+"_idx") + " ON " + db.QuoteIdent(table) + " (" + selectList("", index) + ")"
		if _, err := f.db.ExecContext(ctx, q); err != nil {
			return nil, fmt.Errorf("failed to index %s: %w", table, err)
		}
	}

	out := FromTable(f.db, table, f.cols)
	out.order = append([]Sort(nil), f.order...)
	return out, nil
}

// Explain returns the engine's query plan for the frame, one step per line.
func (f *Frame) Explain(ctx context.Context) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}

	rows, err := f.db.QueryContext(ctx, "EXPLAIN QUERY PLAN "+f.SQL())
	if err != nil {
		return nil, fmt.Errorf("failed to explain plan: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read plan columns: %w", err)
	}

	var steps []string
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(vals))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan plan step: %w", err)
		}
		// The last column holds the human-readable detail.
		steps = append(steps, FormatValue(vals[len(vals)-1]))
	}
	return steps, rows.Err()
}

// Show prints the first n rows as a grid; n <= 0 prints every row.
func (f *Frame) Show(ctx context.Context, w io.Writer, n int) error {
	plan := f
	if n > 0 {
		plan = f.Limit(n + 1)
	}
	res, err := plan.Collect(ctx)
	if err != nil {
		return err
	}

	more := false
	if n > 0 && len(res.Rows) > n {
		res.Rows = res.Rows[:n]
		more = true
	}

	if _, err := io.WriteString(w, Grid(res)); err != nil {
		return err
	}
	if more {
		if _, err := fmt.Fprintf(w, "only showing top %d rows\n", n); err != nil {
			return err
		}
	}
	return nil
}

// Grid renders res as a bordered, right-aligned text table.
func Grid(res *Result) string {
	widths := make([]int, len(res.Columns))
	cells := make([][]string, len(res.Rows))
	for i, c := range res.Columns {
		widths[i] = utf8.RuneCountInString(c)
	}
	for r, row := range res.Rows {
		cells[r] = make([]string, len(row))
		for i, v := range row {
			s := FormatValue(v)
			cells[r][i] = s
			if n := utf8.RuneCountInString(s); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var sb strings.Builder
	sep := func() {
		sb.WriteString("+")
		for _, w := range widths {
			sb.WriteString(strings.Repeat("-", w))
			sb.WriteString("+")
		}
		sb.WriteString("\n")
	}
	line := func(vals []string) {
		sb.WriteString("|")
		for i, v := range vals {
			sb.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(v)))
			sb.WriteString(v)
			sb.WriteString("|")
		}
		sb.WriteString("\n")
	}

	sep()
	line(res.Columns)
	sep()
	for _, row := range cells {
		line(row)
	}
	sep()
	return sb.String()
}

// FormatValue renders one cell; missing values print as null.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}
