// Package models defines configuration and report data structures.
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces the environment variables read by LoadConfig.
const EnvPrefix = "COVIDAGG_"

var (
	ErrMissingInput  = errors.New("missing input path")
	ErrInvalidConfig = errors.New("invalid config")
)

// Output formats.
const (
	FormatTable = "table"
	FormatYAML  = "yaml"
	FormatJSON  = "json"
)

// Config holds runtime configuration. Values come from, in increasing order
// of precedence: defaults, the YAML file, .env, COVIDAGG_* environment
// variables and CLI flags.
type Config struct {
	Cases   string     `yaml:"cases"`
	Deaths  string     `yaml:"deaths"`
	Prefix  string     `yaml:"prefix"`
	AppName string     `yaml:"app_name"`
	DSN     string     `yaml:"dsn"`
	Limit   int        `yaml:"limit"`
	Format  string     `yaml:"format"`
	Stat    StatConfig `yaml:"stat"`
}

// StatConfig parameterizes the ad-hoc statistic.
type StatConfig struct {
	State    string   `yaml:"state"`
	MinCases int64    `yaml:"min_cases"`
	Columns  []string `yaml:"columns"`
	OrderBy  string   `yaml:"order_by"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Prefix:  "_",
		AppName: "covid-agg",
		DSN:     ":memory:",
		Limit:   20,
		Format:  FormatTable,
		Stat: StatConfig{
			State:    "NY",
			MinCases: 1000,
			Columns:  []string{"county_name", "date", "cases", "deaths"},
			OrderBy:  "deaths",
		},
	}
}

// LoadConfig builds a Config from defaults, the YAML file at path (a missing
// file is not an error), .env in the working directory and the environment.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		}
	}

	// .env never overrides variables already set in the environment.
	_ = godotenv.Load()

	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := getenv(EnvPrefix + name); v != "" {
			*dst = v
		}
	}
	str("CASES", &c.Cases)
	str("DEATHS", &c.Deaths)
	str("PREFIX", &c.Prefix)
	str("APP_NAME", &c.AppName)
	str("DSN", &c.DSN)
	str("FORMAT", &c.Format)
	str("STAT_STATE", &c.Stat.State)
	str("STAT_ORDER_BY", &c.Stat.OrderBy)

	if v := getenv(EnvPrefix + "LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %sLIMIT=%q", ErrInvalidConfig, EnvPrefix, v)
		}
		c.Limit = n
	}
	if v := getenv(EnvPrefix + "STAT_MIN_CASES"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("%w: %sSTAT_MIN_CASES=%q", ErrInvalidConfig, EnvPrefix, v)
		}
		c.Stat.MinCases = n
	}
	if v := getenv(EnvPrefix + "STAT_COLUMNS"); v != "" {
		c.Stat.Columns = SplitList(v)
	}
	return nil
}

// Validate checks values that do not depend on which command runs.
func (c *Config) Validate() error {
	switch c.Format {
	case FormatTable, FormatYAML, FormatJSON:
	default:
		return fmt.Errorf("%w: format %q (want table, yaml or json)", ErrInvalidConfig, c.Format)
	}
	if c.Limit < 0 {
		return fmt.Errorf("%w: limit %d is negative", ErrInvalidConfig, c.Limit)
	}
	if c.Prefix == "" {
		return fmt.Errorf("%w: empty date column prefix", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.AppName) == "" {
		return fmt.Errorf("%w: empty app name", ErrInvalidConfig)
	}
	return nil
}

// InputPath returns the configured path of dataset ("cases" or "deaths").
func (c *Config) InputPath(dataset string) (string, error) {
	var path string
	switch dataset {
	case "cases":
		path = c.Cases
	case "deaths":
		path = c.Deaths
	default:
		return "", fmt.Errorf("%w: unknown dataset %q (want cases or deaths)", ErrInvalidConfig, dataset)
	}
	if path == "" {
		return "", fmt.Errorf("%w: %s (use --%s or %s%s)", ErrMissingInput, dataset, dataset, EnvPrefix, strings.ToUpper(dataset))
	}
	return path, nil
}

// SplitList splits a comma-separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
