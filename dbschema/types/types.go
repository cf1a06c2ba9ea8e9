package types

import (
	"context"
)

// DBInfo contains connection and metadata information
type DBInfo struct {
	Dialect string `json:"dialect"` // postgres, mysql, mariadb, sqlite
	Version string `json:"version"`
	Schema  string `json:"schema"` // public, database name, main
	URL     string `json:"url"`    // database connection URL (for reference)
}

// DBTable represents a database table
type DBTable struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
	Type   string `json:"type"` // TABLE, VIEW
}

// SchemaReader interface for reading database schemas
type SchemaReader interface {
	ReadTables(ctx context.Context) ([]DBTable, error)
	TableExists(ctx context.Context, schema, table string) (bool, error)
}

// SchemaWriter interface for writing statements to databases
type SchemaWriter interface {
	ExecuteSQL(ctx context.Context, sql string) error
	BeginTransaction(ctx context.Context) error
	CommitTransaction() error
	RollbackTransaction() error
	SetDryRun(dryRun bool)
	IsDryRun() bool
}
