// Package analytics summarizes numeric report columns.
package analytics

import (
	"fmt"
	"math"
	"sort"

	"github.com/dtnitsch/covid-agg/pkg/frame"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary describes the non-null values of one column.
type Summary struct {
	Column string  `json:"column" yaml:"column"`
	Count  int     `json:"count" yaml:"count"`
	Nulls  int     `json:"nulls" yaml:"nulls"`
	Mean   float64 `json:"mean" yaml:"mean"`
	StdDev float64 `json:"std_dev" yaml:"std_dev"`
	Min    float64 `json:"min" yaml:"min"`
	P10    float64 `json:"p10" yaml:"p10"`
	Median float64 `json:"median" yaml:"median"`
	P90    float64 `json:"p90" yaml:"p90"`
	Max    float64 `json:"max" yaml:"max"`
}

// Describe computes a Summary of column in res. Nulls and non-numeric cells
// are counted in Nulls and left out of every statistic.
func Describe(res *frame.Result, column string) (Summary, error) {
	if res.Index(column) < 0 {
		return Summary{}, fmt.Errorf("describe: %w: %q", frame.ErrUnknownColumn, column)
	}

	s := Summary{Column: column}
	xs := Values(res.Column(column))
	s.Nulls = len(res.Rows) - len(xs)
	s.Count = len(xs)
	if s.Count == 0 {
		return s, nil
	}

	sort.Float64s(xs)
	s.Mean = stat.Mean(xs, nil)
	if s.Count > 1 {
		s.StdDev = stat.StdDev(xs, nil)
	}
	s.Min = floats.Min(xs)
	s.Max = floats.Max(xs)
	s.P10 = stat.Quantile(0.1, stat.Empirical, xs, nil)
	s.Median = stat.Quantile(0.5, stat.Empirical, xs, nil)
	s.P90 = stat.Quantile(0.9, stat.Empirical, xs, nil)
	return s, nil
}

// Values extracts the finite numbers from cells.
func Values(cells []any) []float64 {
	xs := make([]float64, 0, len(cells))
	for _, c := range cells {
		var x float64
		switch v := c.(type) {
		case int64:
			x = float64(v)
		case int:
			x = float64(v)
		case float64:
			x = v
		default:
			continue
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			continue
		}
		xs = append(xs, x)
	}
	return xs
}
