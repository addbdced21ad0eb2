// Package loader reads wide county datasets into the engine.
package loader

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dtnitsch/covid-agg/pkg/db"
	"github.com/dtnitsch/covid-agg/pkg/frame"
	"github.com/dtnitsch/covid-agg/pkg/session"
)

// DefaultPrefix marks date-valued columns, as in "_2020_01_22".
const DefaultPrefix = "_"

var ErrNoRecords = errors.New("no records")

// Load reads a JSON file holding one object per line, or a single array of
// objects, registers it as a table in sess and returns a plan over it.
// Columns starting with prefix are cast to integer counts (see CastCount);
// all other columns pass through unchanged.
func Load(ctx context.Context, sess *session.Session, path, prefix string) (*frame.Frame, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	records, err := ReadRecords(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return register(ctx, sess, base, records, prefix)
}

// FromRecords registers in-memory records the same way Load registers a file.
func FromRecords(ctx context.Context, sess *session.Session, name string, records []map[string]any, prefix string) (*frame.Frame, error) {
	return register(ctx, sess, name, records, prefix)
}

// ReadRecords decodes JSON lines or a JSON array of objects.
func ReadRecords(r io.Reader) ([]map[string]any, error) {
	br := bufio.NewReader(r)
	first, err := firstByte(br)
	if err == io.EOF {
		return nil, ErrNoRecords
	}
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(br)
	dec.UseNumber()

	var records []map[string]any
	if first == '[' {
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
		for dec.More() {
			var rec map[string]any
			if err := dec.Decode(&rec); err != nil {
				return nil, fmt.Errorf("parse json record %d: %w", len(records)+1, err)
			}
			records = append(records, rec)
		}
		if _, err := dec.Token(); err != nil {
			return nil, fmt.Errorf("parse json: %w", err)
		}
	} else {
		for {
			var rec map[string]any
			err := dec.Decode(&rec)
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, fmt.Errorf("parse json line %d: %w", len(records)+1, err)
			}
			records = append(records, rec)
		}
	}

	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}

// firstByte peeks the first non-whitespace byte without consuming it.
func firstByte(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}

func register(ctx context.Context, sess *session.Session, name string, records []map[string]any, prefix string) (*frame.Frame, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: %w", name, ErrNoRecords)
	}

	cols := Schema(records, prefix)
	if len(cols) == 0 {
		return nil, fmt.Errorf("%s: records have no fields", name)
	}
	names := db.ColumnNames(cols)

	rows := make([][]any, len(records))
	nulls := 0
	for i, rec := range records {
		row := make([]any, len(cols))
		for j, c := range cols {
			v, ok := rec[c.Name]
			if !ok {
				continue
			}
			if c.Type == db.TypeInteger {
				row[j] = CastCount(v)
				if row[j] == nil && v != nil {
					nulls++
				}
			} else {
				row[j] = passthrough(v)
			}
		}
		rows[i] = row
	}

	table := sess.NextTableName(name)
	if err := sess.DB().CreateTable(ctx, table, cols); err != nil {
		return nil, err
	}
	if err := sess.DB().InsertRows(ctx, table, names, rows); err != nil {
		return nil, err
	}

	sess.Logger().Info("dataset registered",
		"table", table,
		"rows", len(rows),
		"columns", len(cols),
		"date_columns", countTyped(cols),
		"cast_nulls", nulls,
	)
	return frame.FromTable(sess.DB(), table, names), nil
}

// Schema returns the union of record keys sorted lexically. Keys starting
// with prefix are typed INTEGER; the rest keep their values' own types.
func Schema(records []map[string]any, prefix string) []db.Column {
	seen := make(map[string]bool)
	for _, rec := range records {
		for k := range rec {
			seen[k] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cols := make([]db.Column, len(keys))
	for i, k := range keys {
		cols[i] = db.Column{Name: k}
		if IsDateColumn(k, prefix) {
			cols[i].Type = db.TypeInteger
		}
	}
	return cols
}

// IsDateColumn reports whether name is marked by prefix.
func IsDateColumn(name, prefix string) bool {
	return prefix != "" && strings.HasPrefix(name, prefix) && len(name) > len(prefix)
}

func countTyped(cols []db.Column) int {
	n := 0
	for _, c := range cols {
		if c.Type == db.TypeInteger {
			n++
		}
	}
	return n
}

// CastCount converts a raw cell to an integer count. Integral numbers and
// numeric strings convert; decimals truncate toward zero; anything else,
// including non-numeric strings, yields nil rather than an error.
func CastCount(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case json.Number:
		return parseCount(x.String())
	case string:
		return parseCount(x)
	case int:
		return int64(x)
	case int64:
		return x
	case float64:
		return truncate(x)
	default:
		return nil
	}
}

func parseCount(s string) any {
	s = strings.TrimSpace(s)
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return truncate(f)
	}
	return nil
}

func truncate(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) >= math.MaxInt64 {
		return nil
	}
	return int64(math.Trunc(f))
}

func passthrough(v any) any {
	switch x := v.(type) {
	case json.Number:
		if i, err := x.Int64(); err == nil {
			return i
		}
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case int:
		return int64(x)
	case nil, string, bool, int64, float64:
		return x
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return fmt.Sprint(x)
		}
		return string(b)
	}
}
