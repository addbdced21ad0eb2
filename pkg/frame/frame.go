// Package frame builds lazy table transforms that run on the embedded engine.
//
// A Frame is a query plan. Transforms (Select, Filter, Join, GroupBy, Melt,
// OrderBy, Limit) only extend the plan; the engine does no work until a
// terminal call (Collect, Count, Show, Explain, Cache) materializes it.
// Frames are immutable, so a plan can be reused as the input of several
// reports. Cache stores a result as a table so reuse does not recompute it.
//
// Plan-building mistakes such as unknown columns are recorded on the returned
// Frame and surface from Err and from every terminal call.
package frame

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dtnitsch/covid-agg/pkg/db"
)

var (
	ErrUnknownColumn   = errors.New("unknown column")
	ErrDuplicateColumn = errors.New("duplicate column")
	ErrForeignFrame    = errors.New("frames belong to different sessions")
)

// Frame is a lazy, immutable table plan.
type Frame struct {
	db    *db.DB
	from  string // plan without the pending order and limit
	cols  []string
	order []Sort
	limit int // negative means no limit
	err   error
}

// Sort is one ORDER BY term.
type Sort struct {
	Column string
	Desc   bool
}

// Asc sorts by col ascending, nulls first.
func Asc(col string) Sort { return Sort{Column: col} }

// Desc sorts by col descending, nulls last.
func Desc(col string) Sort { return Sort{Column: col, Desc: true} }

// FromTable starts a plan that reads every listed column of a registered table.
func FromTable(d *db.DB, table string, cols []string) *Frame {
	f := &Frame{db: d, cols: append([]string(nil), cols...), limit: -1}
	if len(cols) == 0 {
		f.err = fmt.Errorf("table %s: no columns", table)
		return f
	}
	if err := checkUnique(cols); err != nil {
		f.err = err
		return f
	}
	f.from = "SELECT " + selectList("", cols) + " FROM " + db.QuoteIdent(table)
	return f
}

// Columns returns the output column names in order.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.cols...)
}

// Has reports whether the frame has a column named col.
func (f *Frame) Has(col string) bool {
	for _, c := range f.cols {
		if c == col {
			return true
		}
	}
	return false
}

// Err returns the first plan-building error, if any.
func (f *Frame) Err() error {
	return f.err
}

// DB returns the engine the plan runs on.
func (f *Frame) DB() *db.DB {
	return f.db
}

// SQL renders the full plan.
func (f *Frame) SQL() string {
	var sb strings.Builder
	sb.WriteString(f.from)
	if len(f.order) > 0 {
		terms := make([]string, len(f.order))
		for i, s := range f.order {
			dir := "ASC"
			if s.Desc {
				dir = "DESC"
			}
			terms[i] = db.QuoteIdent(s.Column) + " " + dir
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(terms, ", "))
	}
	if f.limit >= 0 {
		fmt.Fprintf(&sb, " LIMIT %d", f.limit)
	}
	return sb.String()
}

func (f *Frame) subquery(alias string) string {
	return "(" + f.SQL() + ") AS " + db.QuoteIdent(alias)
}

// derive starts a new plan on top of f.
func (f *Frame) derive(from string, cols []string) *Frame {
	out := &Frame{db: f.db, from: from, cols: cols, limit: -1}
	if err := checkUnique(cols); err != nil {
		out.err = err
	}
	return out
}

func (f *Frame) failed(err error) *Frame {
	out := *f
	out.err = err
	return &out
}

func (f *Frame) check(refs ...string) error {
	if f.err != nil {
		return f.err
	}
	for _, r := range refs {
		if !f.Has(r) {
			return fmt.Errorf("%w: %q (have %s)", ErrUnknownColumn, r, strings.Join(f.cols, ", "))
		}
	}
	return nil
}

func checkUnique(cols []string) error {
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		if seen[c] {
			return fmt.Errorf("%w: %q", ErrDuplicateColumn, c)
		}
		seen[c] = true
	}
	return nil
}

func selectList(qualifier string, cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		if qualifier != "" {
			parts[i] = db.QuoteIdent(qualifier) + "." + db.QuoteIdent(c) + " AS " + db.QuoteIdent(c)
		} else {
			parts[i] = db.QuoteIdent(c)
		}
	}
	return strings.Join(parts, ", ")
}

func exprList(exprs []Expr) (string, []string, []string) {
	parts := make([]string, len(exprs))
	names := make([]string, len(exprs))
	var refs []string
	for i, e := range exprs {
		names[i] = e.Name()
		parts[i] = e.text + " AS " + db.QuoteIdent(names[i])
		refs = append(refs, e.refs...)
	}
	return strings.Join(parts, ", "), names, refs
}

// Select projects the frame onto exprs.
func (f *Frame) Select(exprs ...Expr) *Frame {
	list, names, refs := exprList(exprs)
	if err := f.check(refs...); err != nil {
		return f.failed(err)
	}
	if len(exprs) == 0 {
		return f.failed(errors.New("select: no columns"))
	}
	return f.derive("SELECT "+list+" FROM "+f.subquery("t"), names)
}

// Drop removes cols. Dropping a column the frame does not have is an error.
func (f *Frame) Drop(cols ...string) *Frame {
	if err := f.check(cols...); err != nil {
		return f.failed(err)
	}
	drop := make(map[string]bool, len(cols))
	for _, c := range cols {
		drop[c] = true
	}
	var keep []Expr
	for _, c := range f.cols {
		if !drop[c] {
			keep = append(keep, Col(c))
		}
	}
	return f.Select(keep...)
}

// Filter keeps the rows where pred is true. Null counts as false.
func (f *Frame) Filter(pred Expr) *Frame {
	if err := f.check(pred.refs...); err != nil {
		return f.failed(err)
	}
	return f.derive("SELECT "+selectList("", f.cols)+" FROM "+f.subquery("t")+" WHERE "+pred.text, f.Columns())
}

// Distinct removes duplicate rows.
func (f *Frame) Distinct() *Frame {
	if f.err != nil {
		return f
	}
	return f.derive("SELECT DISTINCT "+selectList("", f.cols)+" FROM "+f.subquery("t"), f.Columns())
}

// Join is an inner join on equal keys. Rows without a match on either side,
// and rows with a null key, are excluded. Right-side columns whose names
// already exist on the left are dropped, keeping the left copies.
func (f *Frame) Join(other *Frame, keys ...string) *Frame {
	if err := f.check(keys...); err != nil {
		return f.failed(err)
	}
	if err := other.check(keys...); err != nil {
		return f.failed(fmt.Errorf("join right side: %w", err))
	}
	if f.db != other.db {
		return f.failed(ErrForeignFrame)
	}
	if len(keys) == 0 {
		return f.failed(errors.New("join: no keys"))
	}

	cols := f.Columns()
	parts := []string{selectList("l", f.cols)}
	for _, c := range other.cols {
		if f.Has(c) {
			continue
		}
		cols = append(cols, c)
		parts = append(parts, db.QuoteIdent("r")+"."+db.QuoteIdent(c)+" AS "+db.QuoteIdent(c))
	}

	conds := make([]string, len(keys))
	for i, k := range keys {
		conds[i] = db.QuoteIdent("l") + "." + db.QuoteIdent(k) + " = " + db.QuoteIdent("r") + "." + db.QuoteIdent(k)
	}

	from := "SELECT " + strings.Join(parts, ", ") +
		" FROM " + f.subquery("l") +
		" JOIN " + other.subquery("r") +
		" ON " + strings.Join(conds, " AND ")
	return f.derive(from, cols)
}

// Grouped is a frame waiting for its aggregates.
type Grouped struct {
	f    *Frame
	keys []string
}

// GroupBy groups rows by keys. Call Agg to complete the plan.
func (f *Frame) GroupBy(keys ...string) *Grouped {
	return &Grouped{f: f, keys: keys}
}

// Agg computes aggregate exprs per group; output columns are the keys followed by exprs.
func (g *Grouped) Agg(exprs ...Expr) *Frame {
	f := g.f
	list, names, refs := exprList(exprs)
	if err := f.check(append(append([]string(nil), g.keys...), refs...)...); err != nil {
		return f.failed(err)
	}
	if len(exprs) == 0 {
		return f.failed(errors.New("agg: no aggregates"))
	}

	sel := list
	group := ""
	if len(g.keys) > 0 {
		sel = selectList("", g.keys) + ", " + list
		group = " GROUP BY " + selectList("", g.keys)
	}
	cols := append(append([]string(nil), g.keys...), names...)
	return f.derive("SELECT "+sel+" FROM "+f.subquery("t")+group, cols)
}

// OrderBy sorts the frame. A later OrderBy replaces an earlier one unless a
// Limit sits between them.
func (f *Frame) OrderBy(sorts ...Sort) *Frame {
	refs := make([]string, len(sorts))
	for i, s := range sorts {
		refs[i] = s.Column
	}
	if err := f.check(refs...); err != nil {
		return f.failed(err)
	}
	base := f
	if f.limit >= 0 {
		base = f.derive("SELECT "+selectList("", f.cols)+" FROM "+f.subquery("t"), f.Columns())
	}
	out := *base
	out.order = append([]Sort(nil), sorts...)
	return &out
}

// Limit keeps at most n rows, in the current order.
func (f *Frame) Limit(n int) *Frame {
	if n < 0 {
		return f.failed(fmt.Errorf("limit: negative count %d", n))
	}
	out := *f
	if out.limit < 0 || n < out.limit {
		out.limit = n
	}
	return &out
}

// MeltPair names one value column and the label it contributes to the long output.
type MeltPair struct {
	Column string
	Label  string
}

// meltChunk caps the branches of one compound select; SQLite allows at most
// 500 terms per compound.
const meltChunk = 200

// Melt turns value columns into rows: every input row yields one output row
// per pair, holding the id columns, the pair's label under labelCol and the
// pair's value under valueCol. Output rows = input rows × len(pairs).
//
// The input is evaluated once and each pair reads it in its own UNION ALL
// branch, so the work is linear in input rows × pairs.
func (f *Frame) Melt(ids []string, pairs []MeltPair, labelCol, valueCol string) *Frame {
	refs := append([]string(nil), ids...)
	for _, p := range pairs {
		refs = append(refs, p.Column)
	}
	if err := f.check(refs...); err != nil {
		return f.failed(err)
	}

	cols := append(append([]string(nil), ids...), labelCol, valueCol)
	idList := selectList("", ids)
	if idList != "" {
		idList += ", "
	}

	if len(pairs) == 0 {
		from := "SELECT " + idList + "NULL AS " + db.QuoteIdent(labelCol) + ", NULL AS " + db.QuoteIdent(valueCol) +
			" FROM " + f.subquery("w") + " WHERE 0"
		return f.derive(from, cols)
	}

	src := db.QuoteIdent("w")
	var chunks []string
	for start := 0; start < len(pairs); start += meltChunk {
		end := min(start+meltChunk, len(pairs))
		branches := make([]string, 0, end-start)
		for _, p := range pairs[start:end] {
			branches = append(branches, "SELECT "+idList+
				literal(p.Label)+" AS "+db.QuoteIdent(labelCol)+", "+
				db.QuoteIdent(p.Column)+" AS "+db.QuoteIdent(valueCol)+
				" FROM "+src)
		}
		chunks = append(chunks, "SELECT * FROM ("+strings.Join(branches, " UNION ALL ")+")")
	}

	from := "WITH " + src + " AS MATERIALIZED (" + f.SQL() + ") " + strings.Join(chunks, " UNION ALL ")
	return f.derive(from, cols)
}
