// Package config provides configuration for the changekit executor and CLI.
//
// Library users configure the executor programmatically with ExecutorOptions.
// The CLI additionally reads a configuration file (YAML, JSON or TOML, through
// viper) and lets CHANGEKIT_* environment variables override it.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/viper"
)

// DefaultHistoryTable is the name of the table that tracks applied change sets.
const DefaultHistoryTable = "databasechangelog"

// ExecutorOptions contains configuration options for applying change sets.
type ExecutorOptions struct {
	// HistoryTable is the tracking table, optionally schema-qualified.
	HistoryTable string
	// DryRun prints the statements instead of executing them.
	DryRun bool
}

// DefaultExecutorOptions returns the options used when none are given.
func DefaultExecutorOptions() *ExecutorOptions {
	return &ExecutorOptions{
		HistoryTable: DefaultHistoryTable,
	}
}

// WithHistoryTable returns default options using the given tracking table.
//
// Example:
//
//	opts := config.WithHistoryTable("audit.databasechangelog")
func WithHistoryTable(table string) *ExecutorOptions {
	opts := DefaultExecutorOptions()
	opts.HistoryTable = table
	return opts
}

// WithDryRun returns a copy of the options with dry-run mode switched on or off.
func (o *ExecutorOptions) WithDryRun(dryRun bool) *ExecutorOptions {
	tmp := *o
	tmp.DryRun = dryRun
	return &tmp
}

// Config is the CLI configuration.
type Config struct {
	ChangeLogFile string `mapstructure:"changelog"     env:"CHANGEKIT_CHANGELOG"`
	URL           string `mapstructure:"url"           env:"CHANGEKIT_URL"`
	HistoryTable  string `mapstructure:"history_table" env:"CHANGEKIT_HISTORY_TABLE"`
	DryRun        bool   `mapstructure:"dry_run"       env:"CHANGEKIT_DRY_RUN"`
	LogLevel      string `mapstructure:"log_level"     env:"CHANGEKIT_LOG_LEVEL"`
}

// Default returns the configuration used when nothing is configured.
func Default() Config {
	return Config{
		HistoryTable: DefaultHistoryTable,
		LogLevel:     "info",
	}
}

// Load reads the configuration file at path, if any, and applies environment
// overrides on top of it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := v.Unmarshal(&cfg); err != nil {
			return Config{}, fmt.Errorf("failed to decode config file %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// ExecutorOptions converts the CLI configuration into executor options.
func (c Config) ExecutorOptions() *ExecutorOptions {
	opts := DefaultExecutorOptions()
	if c.HistoryTable != "" {
		opts.HistoryTable = c.HistoryTable
	}
	opts.DryRun = c.DryRun
	return opts
}

// Level parses LogLevel. An empty level means info.
func (c Config) Level() (slog.Level, error) {
	var level slog.Level
	if strings.TrimSpace(c.LogLevel) == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}
