package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/dtnitsch/covid-agg/pkg/analytics"
	"github.com/dtnitsch/covid-agg/pkg/covid"
	"github.com/dtnitsch/covid-agg/pkg/frame"
	"github.com/urfave/cli/v2"
)

// run opens a pipeline, hands it to fn and flushes the output.
func run(c *cli.Context, name string, fn func(p *Pipeline) error) (err error) {
	p, err := Open(c)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := p.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	start := time.Now()
	if err := fn(p); err != nil {
		return err
	}
	if err := p.Printer.Flush(); err != nil {
		return err
	}
	p.Logger.Info("command finished", "command", name, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func direction(asc bool) string {
	if asc {
		return "asc"
	}
	return "desc"
}

// ReportAction runs the full fixed sequence of reports.
func ReportAction(c *cli.Context) error {
	return run(c, "report", func(p *Pipeline) error {
		ctx := c.Context
		joined, err := p.Joined(ctx)
		if err != nil {
			return err
		}

		counties := []struct {
			kind covid.Kind
			asc  bool
		}{
			{covid.Cases, false},
			{covid.Deaths, false},
			{covid.Cases, true},
		}
		for _, t := range counties {
			f, err := covid.CountyTotals(joined, string(t.kind), t.asc)
			if err != nil {
				return err
			}
			if err := p.Printer.Frame(ctx, fmt.Sprintf("County totals by %s (%s)", t.kind, direction(t.asc)), f); err != nil {
				return err
			}
		}

		for _, kind := range []covid.Kind{covid.Cases, covid.Deaths} {
			f, err := covid.StateTotals(joined, string(kind), false)
			if err != nil {
				return err
			}
			if err := p.Printer.Frame(ctx, fmt.Sprintf("State totals by %s (desc)", kind), f); err != nil {
				return err
			}
		}

		ratio, err := covid.DeathRatio(joined, false)
		if err != nil {
			return err
		}
		if err := p.Printer.Frame(ctx, "Death ratio by state (desc)", ratio); err != nil {
			return err
		}

		stat, err := covid.AdHocStat(joined, p.StatQuery(c))
		if err != nil {
			return err
		}
		if err := p.Printer.Frame(ctx, "Ad-hoc statistic", stat); err != nil {
			return err
		}

		return describeRatio(c, p, ratio)
	})
}

// CountyTotalsAction prints county totals for --kind.
func CountyTotalsAction(c *cli.Context) error {
	return totals(c, "county-totals", "County", covid.CountyTotals)
}

// StateTotalsAction prints state totals for --kind.
func StateTotalsAction(c *cli.Context) error {
	return totals(c, "state-totals", "State", covid.StateTotals)
}

func totals(c *cli.Context, name, level string, build func(*frame.Frame, string, bool) (*frame.Frame, error)) error {
	kind := c.String("kind")
	// Reject the kind before touching any input.
	if _, err := covid.ParseKind(kind); err != nil {
		return err
	}

	return run(c, name, func(p *Pipeline) error {
		joined, err := p.Joined(c.Context)
		if err != nil {
			return err
		}
		f, err := build(joined, kind, c.Bool("asc"))
		if err != nil {
			return err
		}
		return p.Printer.Frame(c.Context, fmt.Sprintf("%s totals by %s (%s)", level, kind, direction(c.Bool("asc"))), f)
	})
}

// RatioAction prints the per-state death ratio.
func RatioAction(c *cli.Context) error {
	return run(c, "ratio", func(p *Pipeline) error {
		joined, err := p.Joined(c.Context)
		if err != nil {
			return err
		}
		ratio, err := covid.DeathRatio(joined, c.Bool("asc"))
		if err != nil {
			return err
		}
		if err := p.Printer.Frame(c.Context, fmt.Sprintf("Death ratio by state (%s)", direction(c.Bool("asc"))), ratio); err != nil {
			return err
		}
		if c.Bool("describe") {
			return describeRatio(c, p, ratio)
		}
		return nil
	})
}

func describeRatio(c *cli.Context, p *Pipeline, ratio *frame.Frame) error {
	res, err := ratio.Collect(c.Context)
	if err != nil {
		return err
	}
	s, err := analytics.Describe(res, covid.Ratio)
	if err != nil {
		return err
	}
	p.Printer.Summary("Death ratio summary", s)
	return nil
}

// StatAction prints the ad-hoc statistic.
func StatAction(c *cli.Context) error {
	return run(c, "stat", func(p *Pipeline) error {
		joined, err := p.Joined(c.Context)
		if err != nil {
			return err
		}
		q := p.StatQuery(c)
		f, err := covid.AdHocStat(joined, q)
		if err != nil {
			return err
		}
		title := fmt.Sprintf("%s county days with cases >= %d by %s", q.State, q.MinCases, q.OrderBy)
		return p.Printer.Frame(c.Context, title, f)
	})
}

// NormalizeAction previews the long form of one dataset.
func NormalizeAction(c *cli.Context) error {
	dataset := c.String("dataset")
	return run(c, "normalize", func(p *Pipeline) error {
		long, err := p.Long(c.Context, dataset)
		if err != nil {
			return err
		}
		return p.Printer.Frame(c.Context, fmt.Sprintf("Normalized %s", dataset), long)
	})
}

// ExplainAction prints the query and engine plan of a normalized dataset.
func ExplainAction(c *cli.Context) error {
	dataset := c.String("dataset")
	return run(c, "explain", func(p *Pipeline) error {
		long, err := p.Normalized(c.Context, dataset)
		if err != nil {
			return err
		}
		steps, err := long.Explain(c.Context)
		if err != nil {
			return err
		}
		p.Printer.Lines(fmt.Sprintf("Query for normalized %s", dataset), []string{long.SQL()})
		p.Printer.Lines(fmt.Sprintf("Plan for normalized %s", dataset), indent(steps))
		return nil
	})
}

func indent(steps []string) []string {
	out := make([]string, len(steps))
	for i, s := range steps {
		out[i] = "  " + s
	}
	return out
}
