package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dtnitsch/covid-agg/internal/common"
	"github.com/dtnitsch/covid-agg/models"
	"github.com/dtnitsch/covid-agg/pkg/covid"
	"github.com/dtnitsch/covid-agg/pkg/frame"
	"github.com/dtnitsch/covid-agg/pkg/loader"
	"github.com/dtnitsch/covid-agg/pkg/reshape"
	"github.com/dtnitsch/covid-agg/pkg/session"
	"github.com/urfave/cli/v2"
)

// Pipeline carries what every command needs: config, the session and a printer.
type Pipeline struct {
	Config   *models.Config
	Registry *session.Registry
	Session  *session.Session
	Printer  *common.Printer
	Logger   *slog.Logger
}

// ConfigFromContext loads the config file and environment, then applies
// any flag set on the command line.
func ConfigFromContext(c *cli.Context) (*models.Config, error) {
	cfg, err := models.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}

	if c.IsSet("cases") {
		cfg.Cases = c.String("cases")
	}
	if c.IsSet("deaths") {
		cfg.Deaths = c.String("deaths")
	}
	if c.IsSet("prefix") {
		cfg.Prefix = c.String("prefix")
	}
	if c.IsSet("app-name") {
		cfg.AppName = c.String("app-name")
	}
	if c.IsSet("dsn") {
		cfg.DSN = c.String("dsn")
	}
	if c.IsSet("limit") {
		cfg.Limit = c.Int("limit")
	}
	if c.IsSet("format") {
		cfg.Format = c.String("format")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Open resolves config and starts the session for one command.
func Open(c *cli.Context) (*Pipeline, error) {
	cfg, err := ConfigFromContext(c)
	if err != nil {
		return nil, err
	}

	logger := common.NewLogger(c.Bool("quiet"))
	registry := session.NewRegistry(session.Options{DSN: cfg.DSN, Logger: logger})
	sess, err := registry.GetOrCreate(c.Context, cfg.AppName)
	if err != nil {
		return nil, err
	}

	return &Pipeline{
		Config:   cfg,
		Registry: registry,
		Session:  sess,
		Printer:  common.NewPrinter(c.App.Writer, cfg.Format, cfg.Limit, sess.AppName(), sess.ID()),
		Logger:   sess.Logger(),
	}, nil
}

// Close releases the session and its engine.
func (p *Pipeline) Close() error {
	return p.Registry.Close()
}

// Normalized loads dataset ("cases" or "deaths") and returns the lazy long
// plan over it, with the value column named after the dataset.
func (p *Pipeline) Normalized(ctx context.Context, dataset string) (*frame.Frame, error) {
	path, err := p.Config.InputPath(dataset)
	if err != nil {
		return nil, err
	}

	wide, err := loader.Load(ctx, p.Session, path, p.Config.Prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", dataset, err)
	}
	long, err := reshape.Normalize(wide, p.Config.Prefix, dataset)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize %s: %w", dataset, err)
	}
	return long, nil
}

// Long is Normalized stored once as an indexed table, so every report
// reading it scans the stored rows instead of reshaping again.
func (p *Pipeline) Long(ctx context.Context, dataset string) (*frame.Frame, error) {
	start := time.Now()
	long, err := p.Normalized(ctx, dataset)
	if err != nil {
		return nil, err
	}

	table := p.Session.NextTableName(dataset + "_long")
	cached, err := long.Cache(ctx, table, covid.JoinKeys...)
	if err != nil {
		return nil, fmt.Errorf("failed to store normalized %s: %w", dataset, err)
	}

	p.Logger.Info("dataset normalized",
		"dataset", dataset,
		"table", table,
		"columns", len(cached.Columns()),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return cached, nil
}

// Joined loads both datasets, joins them and stores the join once.
func (p *Pipeline) Joined(ctx context.Context) (*frame.Frame, error) {
	// Both paths are checked before any file is read.
	for _, d := range []string{string(covid.Cases), string(covid.Deaths)} {
		if _, err := p.Config.InputPath(d); err != nil {
			return nil, err
		}
	}

	cases, err := p.Long(ctx, string(covid.Cases))
	if err != nil {
		return nil, err
	}
	deaths, err := p.Long(ctx, string(covid.Deaths))
	if err != nil {
		return nil, err
	}
	joined, err := covid.Join(cases, deaths)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	table := p.Session.NextTableName("joined")
	cached, err := joined.Cache(ctx, table, covid.State)
	if err != nil {
		return nil, fmt.Errorf("failed to store join: %w", err)
	}
	p.Logger.Info("datasets joined", "table", table, "duration_ms", time.Since(start).Milliseconds())
	return cached, nil
}

// StatQuery merges the configured ad-hoc statistic with command flags.
func (p *Pipeline) StatQuery(c *cli.Context) covid.StatQuery {
	q := covid.StatQuery{
		State:    p.Config.Stat.State,
		MinCases: p.Config.Stat.MinCases,
		Columns:  p.Config.Stat.Columns,
		OrderBy:  p.Config.Stat.OrderBy,
	}
	if c.IsSet("state") {
		q.State = c.String("state")
	}
	if c.IsSet("min-cases") {
		q.MinCases = c.Int64("min-cases")
	}
	if c.IsSet("columns") {
		q.Columns = models.SplitList(c.String("columns"))
	}
	if c.IsSet("order-by") {
		q.OrderBy = c.String("order-by")
	}
	return q
}
