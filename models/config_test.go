package models

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("LoadConfig() = %+v, want defaults", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestLoadConfig_File(t *testing.T) {
	path := writeConfig(t, `
cases: data/cases.json
deaths: data/deaths.json
limit: 5
stat:
  state: CA
  min_cases: 10
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Cases != "data/cases.json" || cfg.Deaths != "data/deaths.json" {
		t.Errorf("inputs = %q, %q", cfg.Cases, cfg.Deaths)
	}
	if cfg.Limit != 5 {
		t.Errorf("Limit = %d, want 5", cfg.Limit)
	}
	if cfg.Stat.State != "CA" || cfg.Stat.MinCases != 10 {
		t.Errorf("Stat = %+v", cfg.Stat)
	}
	// Keys absent from the file keep their defaults.
	if cfg.Stat.OrderBy != "deaths" || cfg.Prefix != "_" {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "cases: from-file.json\nlimit: 5\n")
	t.Setenv("COVIDAGG_CASES", "from-env.json")
	t.Setenv("COVIDAGG_LIMIT", "0")
	t.Setenv("COVIDAGG_STAT_COLUMNS", "state, cases,,deaths")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Cases != "from-env.json" {
		t.Errorf("Cases = %q, want from-env.json", cfg.Cases)
	}
	if cfg.Limit != 0 {
		t.Errorf("Limit = %d, want 0", cfg.Limit)
	}
	if want := []string{"state", "cases", "deaths"}; !reflect.DeepEqual(cfg.Stat.Columns, want) {
		t.Errorf("Stat.Columns = %v, want %v", cfg.Stat.Columns, want)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "limit: [")); err == nil {
		t.Error("LoadConfig() bad yaml error = nil, want error")
	}

	t.Setenv("COVIDAGG_LIMIT", "lots")
	if _, err := LoadConfig(""); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("LoadConfig() bad env error = %v, want ErrInvalidConfig", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{name: "format", modify: func(c *Config) { c.Format = "csv" }},
		{name: "negative limit", modify: func(c *Config) { c.Limit = -1 }},
		{name: "empty prefix", modify: func(c *Config) { c.Prefix = "" }},
		{name: "blank app name", modify: func(c *Config) { c.AppName = "  " }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestInputPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Cases = "cases.json"

	if p, err := cfg.InputPath("cases"); err != nil || p != "cases.json" {
		t.Errorf("InputPath(cases) = %q, %v", p, err)
	}
	if _, err := cfg.InputPath("deaths"); !errors.Is(err, ErrMissingInput) {
		t.Errorf("InputPath(deaths) error = %v, want ErrMissingInput", err)
	}
	if _, err := cfg.InputPath("recovered"); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("InputPath(recovered) error = %v, want ErrInvalidConfig", err)
	}
}
