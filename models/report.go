package models

import "github.com/dtnitsch/covid-agg/pkg/analytics"

// Report is the structured (yaml/json) form of a command's output.
type Report struct {
	App      string              `json:"app" yaml:"app"`
	RunID    string              `json:"run_id" yaml:"run_id"`
	Sections []Section           `json:"sections" yaml:"sections"`
	Stats    []analytics.Summary `json:"stats,omitempty" yaml:"stats,omitempty"`
}

// Section is one titled table. Rows may be truncated to the configured
// limit; TotalRows always counts the full result.
type Section struct {
	Title     string   `json:"title" yaml:"title"`
	Columns   []string `json:"columns,omitempty" yaml:"columns,omitempty"`
	Rows      [][]any  `json:"rows,omitempty" yaml:"rows,omitempty"`
	TotalRows int64    `json:"total_rows" yaml:"total_rows"`
	Lines     []string `json:"lines,omitempty" yaml:"lines,omitempty"`
}
