// Package cmdutil holds the flags and setup shared by the changekit commands.
package cmdutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/stokaro/changekit/changelog"
	"github.com/stokaro/changekit/config"
	"github.com/stokaro/changekit/dbschema"
	"github.com/stokaro/changekit/migration/executor"
)

// Shared flags
const (
	ChangeLogFlag    = "changelog"
	URLFlag          = "url"
	ConfigFlag       = "config"
	HistoryTableFlag = "history-table"
	LogLevelFlag     = "log-level"
)

// NewFlags returns a fresh set of the flags every command accepts. Empty
// values leave the configuration file and environment in charge.
func NewFlags() map[string]cobraflags.Flag {
	return map[string]cobraflags.Flag{
		ChangeLogFlag: &cobraflags.StringFlag{
			Name:  ChangeLogFlag,
			Value: "",
			Usage: "Path of the changelog file (XML or YAML)",
		},
		URLFlag: &cobraflags.StringFlag{
			Name:  URLFlag,
			Value: "",
			Usage: "Database URL (postgres://, mysql://, mariadb:// or sqlite:)",
		},
		ConfigFlag: &cobraflags.StringFlag{
			Name:  ConfigFlag,
			Value: "",
			Usage: "Configuration file (YAML, JSON or TOML)",
		},
		HistoryTableFlag: &cobraflags.StringFlag{
			Name:  HistoryTableFlag,
			Value: "",
			Usage: "Table tracking applied change sets (default databasechangelog)",
		},
		LogLevelFlag: &cobraflags.StringFlag{
			Name:  LogLevelFlag,
			Value: "",
			Usage: "Log level (debug, info, warn, error)",
		},
	}
}

// LoadConfig reads the configuration file named by --config, then the
// environment, then applies the flags that were given.
func LoadConfig(flags map[string]cobraflags.Flag) (config.Config, error) {
	cfg, err := config.Load(flags[ConfigFlag].GetString())
	if err != nil {
		return config.Config{}, err
	}
	override(&cfg.ChangeLogFile, flags[ChangeLogFlag].GetString())
	override(&cfg.URL, flags[URLFlag].GetString())
	override(&cfg.HistoryTable, flags[HistoryTableFlag].GetString())
	override(&cfg.LogLevel, flags[LogLevelFlag].GetString())
	return cfg, nil
}

func override(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

// NewLogger returns a text logger writing to w at the configured level.
func NewLogger(w io.Writer, cfg config.Config) (*slog.Logger, error) {
	level, err := cfg.Level()
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

// LoadChangeLog loads the configured changelog. Change set paths are recorded
// relative to the changelog's directory.
func LoadChangeLog(cfg config.Config, logger *slog.Logger) (*changelog.ChangeLog, error) {
	if cfg.ChangeLogFile == "" {
		return nil, fmt.Errorf("changelog file is required (use --%s flag)", ChangeLogFlag)
	}
	dir, file := filepath.Split(filepath.Clean(cfg.ChangeLogFile))
	if dir == "" {
		dir = "."
	}
	opts := changelog.DefaultLoadOptions()
	opts.Logger = logger
	cl, err := changelog.Load(os.DirFS(dir), file, opts)
	if err != nil {
		return nil, fmt.Errorf("error loading changelog: %w", err)
	}
	return cl, nil
}

// Session is everything a command needs to work on a database.
type Session struct {
	Config    config.Config
	Logger    *slog.Logger
	ChangeLog *changelog.ChangeLog
	Conn      *dbschema.DatabaseConnection
	Executor  *executor.Executor
}

// Open loads the configuration and changelog, connects to the database and
// creates the executor. Dry-run output goes to the command's output stream.
func Open(ctx context.Context, cmd *cobra.Command, flags map[string]cobraflags.Flag, dryRun bool) (*Session, error) {
	cfg, err := LoadConfig(flags)
	if err != nil {
		return nil, err
	}
	cfg.DryRun = cfg.DryRun || dryRun

	logger, err := NewLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return nil, err
	}
	cl, err := LoadChangeLog(cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is required (use --%s flag)", URLFlag)
	}

	conn, err := dbschema.ConnectToDatabase(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	conn.Writer().SetOutput(cmd.OutOrStdout())

	e, err := executor.NewExecutor(conn, cl, cfg.ExecutorOptions())
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	logger.Debug("Connected to database", "dialect", conn.Info().Dialect, "version", conn.Info().Version)
	return &Session{
		Config:    cfg,
		Logger:    logger,
		ChangeLog: cl,
		Conn:      conn,
		Executor:  e.WithLogger(logger),
	}, nil
}

// Close closes the database connection.
func (s *Session) Close() error {
	return s.Conn.Close()
}
