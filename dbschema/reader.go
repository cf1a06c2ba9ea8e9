package dbschema

import (
	"context"
	"fmt"
	"strings"

	"github.com/stokaro/changekit/core/platform"
	"github.com/stokaro/changekit/dbschema/types"
)

var (
	_ types.SchemaReader = (*Reader)(nil)
)

// Reader reads table metadata from the connected database
type Reader struct {
	conn *DatabaseConnection
}

// ReadTables lists the tables and views of the current schema
func (r *Reader) ReadTables(ctx context.Context) ([]types.DBTable, error) {
	return r.readTables(ctx, "")
}

// TableExists reports whether table exists in schema. An empty schema means the
// current one. Names are compared case-insensitively.
func (r *Reader) TableExists(ctx context.Context, schema, table string) (bool, error) {
	tables, err := r.readTables(ctx, schema)
	if err != nil {
		return false, err
	}
	for _, t := range tables {
		if strings.EqualFold(t.Name, table) {
			return true, nil
		}
	}
	return false, nil
}

func (r *Reader) readTables(ctx context.Context, schema string) ([]types.DBTable, error) {
	var query string
	args := []any{schema}
	switch r.conn.info.Dialect {
	case platform.Postgres:
		query = `
		SELECT table_schema, table_name, table_type
		FROM information_schema.tables
		WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema())
		ORDER BY table_name`
	case platform.MySQL, platform.MariaDB:
		query = `
		SELECT table_schema, table_name, table_type
		FROM information_schema.tables
		WHERE table_schema = COALESCE(NULLIF(?, ''), DATABASE())
		ORDER BY table_name`
	case platform.SQLite:
		query = `
		SELECT 'main', name, upper(type)
		FROM sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
		ORDER BY name`
		args = nil
	default:
		return nil, fmt.Errorf("reading tables is not supported for %s", r.conn.info.Dialect)
	}

	rows, err := r.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tables: %w", err)
	}
	defer rows.Close()

	var tables []types.DBTable
	for rows.Next() {
		var table types.DBTable
		if err := rows.Scan(&table.Schema, &table.Name, &table.Type); err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		table.Type = strings.TrimPrefix(table.Type, "BASE ")
		tables = append(tables, table)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating table rows: %w", err)
	}
	return tables, nil
}
