package report

import (
	"github.com/dtnitsch/covid-agg/models"
	"github.com/urfave/cli/v2"
)

// NewApp builds the covid-agg command line.
func NewApp() *cli.App {
	defaults := models.DefaultConfig()

	kindFlag := &cli.StringFlag{
		Name:     "kind",
		Aliases:  []string{"k"},
		Usage:    "Count to total: cases or deaths",
		Required: true,
	}
	ascFlag := &cli.BoolFlag{
		Name:  "asc",
		Usage: "Sort ascending (default is descending)",
	}
	datasetFlag := &cli.StringFlag{
		Name:  "dataset",
		Usage: "Dataset to inspect: cases or deaths",
		Value: "cases",
	}
	statFlags := []cli.Flag{
		&cli.StringFlag{Name: "state", Usage: "State to filter on", Value: defaults.Stat.State},
		&cli.Int64Flag{Name: "min-cases", Usage: "Minimum daily cases", Value: defaults.Stat.MinCases},
		&cli.StringFlag{Name: "columns", Usage: "Comma-separated columns to show"},
		&cli.StringFlag{Name: "order-by", Usage: "Column to sort by, descending", Value: defaults.Stat.OrderBy},
	}

	return &cli.App{
		Name:  "covid-agg",
		Usage: "Aggregate county-level COVID-19 case and death counts",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML config file (optional)",
				Value:   "config.yaml",
				EnvVars: []string{models.EnvPrefix + "CONFIG"},
			},
			&cli.StringFlag{
				Name:    "cases",
				Usage:   "Wide cases dataset (JSON lines or array)",
				EnvVars: []string{models.EnvPrefix + "CASES"},
			},
			&cli.StringFlag{
				Name:    "deaths",
				Usage:   "Wide deaths dataset (JSON lines or array)",
				EnvVars: []string{models.EnvPrefix + "DEATHS"},
			},
			&cli.StringFlag{Name: "prefix", Usage: "Prefix marking date columns", Value: defaults.Prefix},
			&cli.StringFlag{Name: "app-name", Usage: "Session name", Value: defaults.AppName},
			&cli.StringFlag{Name: "dsn", Usage: "Engine database (:memory: or a file path)", Value: defaults.DSN},
			&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Rows shown per table (0 = all)", Value: defaults.Limit},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Usage: "Output format: table, yaml or json", Value: defaults.Format},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Only log errors"},
		},
		Action: ReportAction,
		Commands: []*cli.Command{
			{
				Name:   "report",
				Usage:  "Run every report in sequence",
				Flags:  statFlags,
				Action: ReportAction,
			},
			{
				Name:   "county-totals",
				Usage:  "Total cases or deaths per county",
				Flags:  []cli.Flag{kindFlag, ascFlag},
				Action: CountyTotalsAction,
			},
			{
				Name:   "state-totals",
				Usage:  "Total cases or deaths per state",
				Flags:  []cli.Flag{kindFlag, ascFlag},
				Action: StateTotalsAction,
			},
			{
				Name:  "ratio",
				Usage: "Deaths over cases per state",
				Flags: []cli.Flag{
					ascFlag,
					&cli.BoolFlag{Name: "describe", Usage: "Also print summary statistics of the ratio"},
				},
				Action: RatioAction,
			},
			{
				Name:   "stat",
				Usage:  "County days in one state above a case threshold",
				Flags:  statFlags,
				Action: StatAction,
			},
			{
				Name:   "normalize",
				Usage:  "Preview a dataset in long format",
				Flags:  []cli.Flag{datasetFlag},
				Action: NormalizeAction,
			},
			{
				Name:   "explain",
				Usage:  "Show the query and engine plan of a normalized dataset",
				Flags:  []cli.Flag{datasetFlag},
				Action: ExplainAction,
			},
		},
	}
}
