package common

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dtnitsch/covid-agg/models"
	"github.com/dtnitsch/covid-agg/pkg/analytics"
	"github.com/dtnitsch/covid-agg/pkg/frame"
	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/floats/scalar"
	"gopkg.in/yaml.v3"
)

// NewLogger returns the JSON stderr logger every command uses.
func NewLogger(quiet bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if quiet {
		logLevel = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}

// Printer writes report sections in the configured format. Tables stream
// as they are produced; yaml and json are buffered and written by Flush.
type Printer struct {
	w      io.Writer
	format string
	limit  int
	report models.Report
}

func NewPrinter(w io.Writer, format string, limit int, app, runID string) *Printer {
	return &Printer{
		w:      w,
		format: format,
		limit:  limit,
		report: models.Report{App: app, RunID: runID},
	}
}

// Frame runs f and prints up to the row limit under title.
func (p *Printer) Frame(ctx context.Context, title string, f *frame.Frame) error {
	total, err := f.Count(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", title, err)
	}

	if p.format == models.FormatTable {
		p.banner(title, total)
		if err := f.Show(ctx, p.w, p.limit); err != nil {
			return fmt.Errorf("%s: %w", title, err)
		}
		return nil
	}

	plan := f
	if p.limit > 0 {
		plan = f.Limit(p.limit)
	}
	res, err := plan.Collect(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", title, err)
	}
	p.report.Sections = append(p.report.Sections, models.Section{
		Title:     title,
		Columns:   res.Columns,
		Rows:      res.Rows,
		TotalRows: total,
	})
	return nil
}

// Lines prints free-form text lines under title.
func (p *Printer) Lines(title string, lines []string) {
	if p.format == models.FormatTable {
		p.banner(title, int64(len(lines)))
		for _, l := range lines {
			fmt.Fprintln(p.w, l)
		}
		fmt.Fprintln(p.w)
		return
	}
	p.report.Sections = append(p.report.Sections, models.Section{
		Title:     title,
		TotalRows: int64(len(lines)),
		Lines:     lines,
	})
}

// Summary prints descriptive statistics of one column.
func (p *Printer) Summary(title string, s analytics.Summary) {
	if p.format != models.FormatTable {
		p.report.Stats = append(p.report.Stats, s)
		return
	}

	p.banner(title, int64(s.Count))
	res := &frame.Result{
		Columns: []string{"column", "count", "nulls", "mean", "std_dev", "min", "p10", "median", "p90", "max"},
		Rows: [][]any{{
			s.Column, int64(s.Count), int64(s.Nulls),
			round(s.Mean), round(s.StdDev), round(s.Min), round(s.P10), round(s.Median), round(s.P90), round(s.Max),
		}},
	}
	fmt.Fprint(p.w, frame.Grid(res))
	fmt.Fprintln(p.w)
}

// Flush writes buffered yaml or json output. It is a no-op for tables.
func (p *Printer) Flush() error {
	switch p.format {
	case models.FormatYAML:
		enc := yaml.NewEncoder(p.w)
		enc.SetIndent(2)
		if err := enc.Encode(&p.report); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case models.FormatJSON:
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(&p.report); err != nil {
			return fmt.Errorf("failed to encode json: %w", err)
		}
	}
	return nil
}

// Report returns what has been buffered so far.
func (p *Printer) Report() models.Report {
	return p.report
}

func (p *Printer) banner(title string, rows int64) {
	noun := "rows"
	if rows == 1 {
		noun = "row"
	}
	fmt.Fprintf(p.w, "== %s (%s %s) ==\n", title, humanize.Comma(rows), noun)
}

func round(x float64) float64 {
	return scalar.Round(x, 6)
}
