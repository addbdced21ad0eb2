// Package covid joins the long cases and deaths tables and builds the
// county and state reports on top of them.
package covid

import (
	"errors"
	"fmt"

	"github.com/dtnitsch/covid-agg/pkg/frame"
	"github.com/dtnitsch/covid-agg/pkg/reshape"
)

// Column names of the county datasets.
const (
	CountyFIPS = "county_fips_code"
	CountyName = "county_name"
	State      = "state"
	StateFIPS  = "state_fips_code"
	Date       = reshape.DateColumn

	Total = "total"
	Ratio = "ratio"
)

// Kind selects which count a totals report sums.
type Kind string

const (
	Cases  Kind = "cases"
	Deaths Kind = "deaths"
)

var ErrInvalidKind = errors.New("invalid count kind")

// ParseKind accepts only "cases" and "deaths".
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case Cases, Deaths:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("%w: %q (want %q or %q)", ErrInvalidKind, s, Cases, Deaths)
	}
}

// JoinKeys identify one county on one day in both datasets.
var JoinKeys = []string{CountyFIPS, State, Date}

// Join inner-joins long cases and deaths tables on JoinKeys. County/date
// pairs present on only one side are dropped without notice. Descriptive
// columns repeated on the deaths side are dropped, keeping the cases copies.
func Join(cases, deaths *frame.Frame) (*frame.Frame, error) {
	if !cases.Has(string(Cases)) {
		return nil, fmt.Errorf("join: cases table has no %q column", Cases)
	}
	if !deaths.Has(string(Deaths)) {
		return nil, fmt.Errorf("join: deaths table has no %q column", Deaths)
	}

	joined := cases.Join(deaths, JoinKeys...)
	if err := joined.Err(); err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}
	return joined, nil
}

func order(col string, ascending bool) frame.Sort {
	if ascending {
		return frame.Asc(col)
	}
	return frame.Desc(col)
}

// CountyTotals sums kind per county and sorts by the total.
func CountyTotals(joined *frame.Frame, kind string, ascending bool) (*frame.Frame, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return nil, err
	}

	out := joined.
		GroupBy(CountyFIPS, CountyName, State).
		Agg(frame.Sum(frame.Col(string(k))).As(Total)).
		OrderBy(order(Total, ascending))
	if err := out.Err(); err != nil {
		return nil, fmt.Errorf("county totals: %w", err)
	}
	return out, nil
}

// StateTotals sums kind per state and sorts by the total.
func StateTotals(joined *frame.Frame, kind string, ascending bool) (*frame.Frame, error) {
	k, err := ParseKind(kind)
	if err != nil {
		return nil, err
	}

	out := joined.
		GroupBy(State).
		Agg(frame.Sum(frame.Col(string(k))).As(Total)).
		OrderBy(order(Total, ascending))
	if err := out.Err(); err != nil {
		return nil, fmt.Errorf("state totals: %w", err)
	}
	return out, nil
}

// DeathRatio computes total deaths over total cases per state. A state whose
// cases sum to zero, or are all missing, gets a null ratio.
func DeathRatio(joined *frame.Frame, ascending bool) (*frame.Frame, error) {
	out := joined.
		GroupBy(State).
		Agg(frame.Div(
			frame.Sum(frame.Col(string(Deaths))),
			frame.Sum(frame.Col(string(Cases))),
		).As(Ratio)).
		OrderBy(order(Ratio, ascending))
	if err := out.Err(); err != nil {
		return nil, fmt.Errorf("death ratio: %w", err)
	}
	return out, nil
}

// StatQuery describes the filtered county/day listing.
type StatQuery struct {
	State    string
	MinCases int64
	Columns  []string
	OrderBy  string
}

// DefaultStatQuery lists New York county days with at least 1000 cases, most deaths first.
func DefaultStatQuery() StatQuery {
	return StatQuery{
		State:    "NY",
		MinCases: 1000,
		Columns:  []string{CountyName, Date, string(Cases), string(Deaths)},
		OrderBy:  string(Deaths),
	}
}

// AdHocStat filters joined rows to one state with cases >= MinCases,
// projects Columns and sorts by OrderBy descending.
func AdHocStat(joined *frame.Frame, q StatQuery) (*frame.Frame, error) {
	def := DefaultStatQuery()
	if q.State == "" {
		q.State = def.State
	}
	if len(q.Columns) == 0 {
		q.Columns = def.Columns
	}
	if q.OrderBy == "" {
		q.OrderBy = def.OrderBy
	}

	found := false
	cols := make([]frame.Expr, len(q.Columns))
	for i, c := range q.Columns {
		cols[i] = frame.Col(c)
		if c == q.OrderBy {
			found = true
		}
	}
	if !found {
		return nil, fmt.Errorf("ad-hoc stat: order column %q is not among %v", q.OrderBy, q.Columns)
	}

	out := joined.
		Filter(frame.And(
			frame.Col(State).Eq(frame.Lit(q.State)),
			frame.Col(string(Cases)).Ge(frame.Lit(q.MinCases)),
		)).
		Select(cols...).
		OrderBy(frame.Desc(q.OrderBy))
	if err := out.Err(); err != nil {
		return nil, fmt.Errorf("ad-hoc stat: %w", err)
	}
	return out, nil
}
