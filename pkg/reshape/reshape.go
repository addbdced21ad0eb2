// Package reshape converts county tables between wide format (one column per
// date) and long format (one row per county and date).
package reshape

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dtnitsch/covid-agg/pkg/frame"
)

const (
	// LabelLayout is the date encoded in a column name after its prefix.
	LabelLayout = "2006_01_02"
	// DateLayout is how dates are stored in long tables.
	DateLayout = "2006-01-02"
	// DateColumn names the date column of long tables.
	DateColumn = "date"
)

var ErrBadDateLabel = errors.New("malformed date column")

// DateColumns splits columns into prefix-marked date columns and the rest,
// keeping the input order within each group.
func DateColumns(cols []string, prefix string) (dates, others []string) {
	for _, c := range cols {
		if prefix != "" && strings.HasPrefix(c, prefix) && len(c) > len(prefix) {
			dates = append(dates, c)
		} else {
			others = append(others, c)
		}
	}
	return dates, others
}

// ParseLabel parses the date encoded in a date column name.
func ParseLabel(col, prefix string) (time.Time, error) {
	label := strings.TrimPrefix(col, prefix)
	t, err := time.Parse(LabelLayout, label)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not %s%s", ErrBadDateLabel, col, prefix, "YYYY_MM_DD")
	}
	return t, nil
}

// Normalize melts a wide table into long format: one row per input row and
// date column, carrying the non-date columns, the parsed date and the count
// under valueName. Every date column name must parse; a malformed one fails
// before any work reaches the engine.
func Normalize(f *frame.Frame, prefix, valueName string) (*frame.Frame, error) {
	if err := f.Err(); err != nil {
		return nil, err
	}

	dates, ids := DateColumns(f.Columns(), prefix)
	for _, c := range []string{DateColumn, valueName} {
		for _, id := range ids {
			if id == c {
				return nil, fmt.Errorf("normalize: identifier column %q collides with output column", c)
			}
		}
	}

	pairs := make([]frame.MeltPair, len(dates))
	for i, c := range dates {
		d, err := ParseLabel(c, prefix)
		if err != nil {
			return nil, err
		}
		pairs[i] = frame.MeltPair{Column: c, Label: d.Format(DateLayout)}
	}

	long := f.Melt(ids, pairs, DateColumn, valueName)
	if err := long.Err(); err != nil {
		return nil, err
	}
	return long, nil
}

// Widen is the inverse of Normalize: it groups long rows by ids and spreads
// each date back into its own prefixed column. The distinct dates are read
// from the engine first; the returned plan is lazy.
func Widen(ctx context.Context, long *frame.Frame, ids []string, valueName, prefix string) (*frame.Frame, error) {
	res, err := long.Select(frame.Col(DateColumn)).Distinct().Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("widen: failed to read dates: %w", err)
	}

	dates := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		s, ok := row[0].(string)
		if !ok {
			continue
		}
		dates = append(dates, s)
	}
	sort.Strings(dates)

	aggs := make([]frame.Expr, 0, len(dates))
	for _, d := range dates {
		t, err := time.Parse(DateLayout, d)
		if err != nil {
			return nil, fmt.Errorf("widen: %w: %q", ErrBadDateLabel, d)
		}
		col := prefix + t.Format(LabelLayout)
		cell := frame.When(frame.Col(DateColumn).Eq(frame.Lit(d)), frame.Col(valueName))
		aggs = append(aggs, frame.Max(cell).As(col))
	}
	if len(aggs) == 0 {
		return nil, errors.New("widen: no dates")
	}

	wide := long.GroupBy(ids...).Agg(aggs...)
	if err := wide.Err(); err != nil {
		return nil, err
	}
	return wide, nil
}
