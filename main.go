package main

import (
	"log/slog"
	"os"

	"github.com/dtnitsch/covid-agg/internal/report"
)

func main() {
	app := report.NewApp()
	if err := app.Run(os.Args); err != nil {
		slog.Error("covid-agg failed", "error", err)
		os.Exit(1)
	}
}
