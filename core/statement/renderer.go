package statement

import (
	"fmt"
	"strings"

	"github.com/stokaro/changekit/core/database"
	"github.com/stokaro/changekit/core/platform"
)

var (
	_ Visitor = (*Renderer)(nil)
)

// Renderer turns statements into SQL for one database.
// A single statement may render to more than one SQL string.
type Renderer struct {
	db       database.Database
	strategy database.ObjectQuotingStrategy
	out      []string
}

// NewRenderer creates a renderer for db quoting object names with the given strategy.
func NewRenderer(db database.Database, strategy database.ObjectQuotingStrategy) *Renderer {
	return &Renderer{db: db, strategy: strategy}
}

// Render renders the statement and returns the SQL strings in execution order.
func (r *Renderer) Render(stmt SQLStatement) ([]string, error) {
	r.out = nil
	if err := stmt.Accept(r); err != nil {
		return nil, fmt.Errorf("failed to render statement: %w", err)
	}
	return r.out, nil
}

// RenderAll renders every statement in order.
func (r *Renderer) RenderAll(stmts []SQLStatement) ([]string, error) {
	var all []string
	for _, stmt := range stmts {
		sqls, err := r.Render(stmt)
		if err != nil {
			return nil, err
		}
		all = append(all, sqls...)
	}
	return all, nil
}

func (r *Renderer) VisitRawSQL(node *RawSQL) error {
	r.out = append(r.out, node.SQL)
	return nil
}

func (r *Renderer) VisitCreateTable(node *CreateTable) error {
	if node.TableName == "" {
		return fmt.Errorf("create table: table name is required")
	}
	if len(node.Columns) == 0 {
		return fmt.Errorf("create table %s: at least one column is required", node.TableName)
	}

	table := r.tableName(node.CatalogName, node.SchemaName, node.TableName)
	pk := node.PrimaryKeyColumns()
	inlinePK := r.isSQLite() && len(pk) == 1

	var defs []string
	for _, col := range node.Columns {
		if col.Name == "" || col.Type == "" {
			return fmt.Errorf("create table %s: column name and type are required", node.TableName)
		}
		defs = append(defs, r.columnDef(col, inlinePK && col.PrimaryKey))
	}
	if len(pk) > 0 && !inlinePK {
		quoted := make([]string, len(pk))
		for i, name := range pk {
			quoted[i] = r.quote(name)
		}
		defs = append(defs, "PRIMARY KEY ("+strings.Join(quoted, ", ")+")")
	}

	var sb strings.Builder
	sb.WriteString("CREATE TABLE ")
	sb.WriteString(table)
	sb.WriteString(" (")
	sb.WriteString(strings.Join(defs, ", "))
	sb.WriteString(")")
	if node.Remarks != "" && database.Matches(r.db, platform.MySQL) {
		sb.WriteString(" COMMENT=")
		sb.WriteString(database.QuoteLiteral(r.db, node.Remarks))
	}
	r.out = append(r.out, sb.String())

	if node.Remarks != "" && database.MatchesAny(r.db, platform.Postgres, platform.Oracle) {
		r.out = append(r.out, fmt.Sprintf("COMMENT ON TABLE %s IS %s", table, database.QuoteLiteral(r.db, node.Remarks)))
	}
	return nil
}

func (r *Renderer) VisitDropTable(node *DropTable) error {
	if node.TableName == "" {
		return fmt.Errorf("drop table: table name is required")
	}
	sql := "DROP TABLE " + r.tableName(node.CatalogName, node.SchemaName, node.TableName)
	if node.CascadeConstraints {
		switch {
		case database.Matches(r.db, platform.Oracle):
			sql += " CASCADE CONSTRAINTS"
		case database.MatchesAny(r.db, platform.Postgres, platform.MySQL):
			sql += " CASCADE"
		}
	}
	r.out = append(r.out, sql)
	return nil
}

func (r *Renderer) columnDef(col *Column, inlinePK bool) string {
	parts := []string{r.quote(col.Name), col.Type}
	if inlinePK {
		parts = append(parts, "PRIMARY KEY")
		if col.AutoIncrement {
			parts = append(parts, "AUTOINCREMENT")
		}
	} else if col.AutoIncrement {
		switch {
		case database.Matches(r.db, platform.Postgres):
			parts = append(parts, "GENERATED BY DEFAULT AS IDENTITY")
		case database.Matches(r.db, platform.MySQL):
			parts = append(parts, "AUTO_INCREMENT")
		case database.Matches(r.db, platform.MSSQL):
			parts = append(parts, "IDENTITY(1,1)")
		}
	}
	if col.DefaultValue != "" {
		parts = append(parts, "DEFAULT "+col.DefaultValue)
	}
	if col.NotNull && !inlinePK {
		parts = append(parts, "NOT NULL")
	}
	if col.Unique && !col.PrimaryKey {
		parts = append(parts, "UNIQUE")
	}
	return strings.Join(parts, " ")
}

// tableName qualifies the table with its schema. MySQL has no schemas, so the
// catalog takes that place there.
func (r *Renderer) tableName(catalog, schema, table string) string {
	if schema == "" && database.Matches(r.db, platform.MySQL) {
		schema = catalog
	}
	if schema == "" {
		return r.quote(table)
	}
	return r.quote(schema) + "." + r.quote(table)
}

func (r *Renderer) quote(name string) string {
	return database.QuoteObjectName(r.db, name, r.strategy)
}

func (r *Renderer) isSQLite() bool {
	return database.Matches(r.db, platform.SQLite)
}
