package executor

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"

	"github.com/stokaro/changekit/changelog"
	"github.com/stokaro/changekit/core/checksum"
	"github.com/stokaro/changekit/core/platform"
	"github.com/stokaro/changekit/dbschema"
)

//go:embed base/history.sql
var historySchemaSQL string

const timestampLayout = "2006-01-02 15:04:05"

// ExecType records how a change set was handled.
type ExecType string

const (
	ExecTypeExecuted ExecType = "EXECUTED"
	ExecTypeReran    ExecType = "RERAN"
	ExecTypeMarkRan  ExecType = "MARK_RAN"
)

// RanChangeSet is a row of the tracking table.
type RanChangeSet struct {
	ID            string
	Author        string
	FileName      string
	DateExecuted  time.Time
	OrderExecuted int
	ExecType      ExecType
	CheckSum      checksum.CheckSum
	Description   string
	Comments      string
	DeploymentID  string
}

// Key matches changelog.ChangeSet.Key.
func (r RanChangeSet) Key() string {
	return r.FileName + "::" + r.ID + "::" + r.Author
}

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// History reads and writes the tracking table. Writes go through the
// connection's writer so they join the change set's transaction and are
// printed in dry-run mode.
type History struct {
	conn    *dbschema.DatabaseConnection
	table   string
	dialect goqu.DialectWrapper
}

// NewHistory creates a history for the given table, optionally schema-qualified.
func NewHistory(conn *dbschema.DatabaseConnection, table string) (*History, error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid tracking table name %q", table)
	}
	return &History{conn: conn, table: table, dialect: goqu.Dialect(goquDialect(conn.Info().Dialect))}, nil
}

func goquDialect(dialect string) string {
	switch dialect {
	case platform.Postgres:
		return "postgres"
	case platform.MySQL, platform.MariaDB:
		return "mysql"
	case platform.SQLite:
		return "sqlite3"
	default:
		return "default"
	}
}

// Table returns the tracking table name.
func (h *History) Table() string {
	return h.table
}

// Exists reports whether the tracking table has been created.
func (h *History) Exists(ctx context.Context) (bool, error) {
	schema, table := "", h.table
	if i := strings.LastIndex(h.table, "."); i >= 0 {
		schema, table = h.table[:i], h.table[i+1:]
	}
	exists, err := h.conn.Reader().TableExists(ctx, schema, table)
	if err != nil {
		return false, fmt.Errorf("failed to check tracking table: %w", err)
	}
	return exists, nil
}

// Create creates the tracking table if it does not exist.
func (h *History) Create(ctx context.Context) error {
	if err := h.conn.Writer().ExecuteSQL(ctx, fmt.Sprintf(historySchemaSQL, h.table)); err != nil {
		return fmt.Errorf("failed to create tracking table: %w", err)
	}
	return nil
}

// RanChangeSets returns the recorded change sets in execution order. A missing
// table yields none.
func (h *History) RanChangeSets(ctx context.Context) ([]RanChangeSet, error) {
	exists, err := h.Exists(ctx)
	if err != nil || !exists {
		return nil, err
	}

	query, _, err := h.dialect.From(goqu.I(h.table)).
		Select("id", "author", "filename", "dateexecuted", "orderexecuted", "exectype",
			"md5sum", "description", "comments", "deployment_id").
		Order(goqu.C("orderexecuted").Asc(), goqu.C("dateexecuted").Asc()).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := h.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query ran change sets: %w", err)
	}
	defer rows.Close()

	var ran []RanChangeSet
	for rows.Next() {
		var r RanChangeSet
		var executed dbTime
		var execType string
		var sum, description, comments, deploymentID sql.NullString
		if err := rows.Scan(&r.ID, &r.Author, &r.FileName, &executed, &r.OrderExecuted, &execType,
			&sum, &description, &comments, &deploymentID); err != nil {
			return nil, fmt.Errorf("failed to scan ran change set: %w", err)
		}
		r.DateExecuted = time.Time(executed)
		r.ExecType = ExecType(execType)
		r.Description, r.Comments, r.DeploymentID = description.String, comments.String, deploymentID.String
		if sum.Valid && sum.String != "" {
			if r.CheckSum, err = checksum.Parse(sum.String); err != nil {
				return nil, fmt.Errorf("invalid checksum for %s: %w", r.Key(), err)
			}
		}
		ran = append(ran, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ran change sets: %w", err)
	}
	return ran, nil
}

// Record inserts a row for cs.
func (h *History) Record(ctx context.Context, r RanChangeSet) error {
	query, _, err := h.dialect.Insert(goqu.I(h.table)).Rows(goqu.Record{
		"id":            r.ID,
		"author":        r.Author,
		"filename":      r.FileName,
		"dateexecuted":  r.DateExecuted.UTC().Format(timestampLayout),
		"orderexecuted": r.OrderExecuted,
		"exectype":      string(r.ExecType),
		"md5sum":        r.CheckSum.String(),
		"description":   truncate(r.Description, 255),
		"comments":      truncate(r.Comments, 255),
		"deployment_id": r.DeploymentID,
	}).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}
	if err := h.conn.Writer().ExecuteSQL(ctx, query); err != nil {
		return fmt.Errorf("failed to record change set %s: %w", r.Key(), err)
	}
	return nil
}

// Rerecord updates the row of a change set that ran again.
func (h *History) Rerecord(ctx context.Context, r RanChangeSet) error {
	query, _, err := h.dialect.Update(goqu.I(h.table)).Set(goqu.Record{
		"dateexecuted":  r.DateExecuted.UTC().Format(timestampLayout),
		"exectype":      string(r.ExecType),
		"md5sum":        r.CheckSum.String(),
		"deployment_id": r.DeploymentID,
	}).Where(keyOf(r)).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}
	if err := h.conn.Writer().ExecuteSQL(ctx, query); err != nil {
		return fmt.Errorf("failed to update change set %s: %w", r.Key(), err)
	}
	return nil
}

// UpdateCheckSum stores a recomputed checksum without marking the change set as ran again.
func (h *History) UpdateCheckSum(ctx context.Context, r RanChangeSet) error {
	query, _, err := h.dialect.Update(goqu.I(h.table)).
		Set(goqu.Record{"md5sum": r.CheckSum.String()}).
		Where(keyOf(r)).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}
	if err := h.conn.Writer().ExecuteSQL(ctx, query); err != nil {
		return fmt.Errorf("failed to update checksum of %s: %w", r.Key(), err)
	}
	return nil
}

// Remove deletes the row of a rolled back change set.
func (h *History) Remove(ctx context.Context, r RanChangeSet) error {
	query, _, err := h.dialect.Delete(goqu.I(h.table)).Where(keyOf(r)).ToSQL()
	if err != nil {
		return fmt.Errorf("failed to build delete: %w", err)
	}
	if err := h.conn.Writer().ExecuteSQL(ctx, query); err != nil {
		return fmt.Errorf("failed to remove change set %s: %w", r.Key(), err)
	}
	return nil
}

func keyOf(r RanChangeSet) goqu.Ex {
	return goqu.Ex{"id": r.ID, "author": r.Author, "filename": r.FileName}
}

func ranFrom(cs *changelog.ChangeSet, execType ExecType, order int, deploymentID string, now time.Time) RanChangeSet {
	return RanChangeSet{
		ID:            cs.ID,
		Author:        cs.Author,
		FileName:      cs.FilePath,
		DateExecuted:  now,
		OrderExecuted: order,
		ExecType:      execType,
		CheckSum:      cs.CheckSum(),
		Description:   cs.Description(),
		Comments:      cs.Comments,
		DeploymentID:  deploymentID,
	}
}

// truncate keeps the first n characters of s.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// dbTime scans timestamps that drivers return either as time.Time or as text.
type dbTime time.Time

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*t = dbTime(v)
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("unsupported timestamp type %T", src)
	}
}

func (t *dbTime) parse(s string) error {
	for _, layout := range []string{timestampLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = dbTime(parsed)
			return nil
		}
	}
	return fmt.Errorf("cannot parse timestamp %q", s)
}
