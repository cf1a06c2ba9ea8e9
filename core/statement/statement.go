// Package statement defines the SQL statements changes generate and renders them per dialect.
//
// Statements are plain data nodes visited by a Visitor, so new renderers can be
// added without touching the changes producing them:
//
//	table := statement.NewCreateTable("users").
//		AddColumn(statement.NewColumn("id", "BIGINT").SetPrimaryKey()).
//		AddColumn(statement.NewColumn("email", "VARCHAR(255)").SetNotNull())
//
//	sqls, err := statement.NewRenderer(database.Postgres(), database.Legacy).Render(table)
package statement

// SQLStatement is a statement generated by a change.
type SQLStatement interface {
	Accept(visitor Visitor) error
}

// Visitor renders or inspects statements.
type Visitor interface {
	VisitRawSQL(node *RawSQL) error
	VisitCreateTable(node *CreateTable) error
	VisitDropTable(node *DropTable) error
}

// RawSQL is a statement executed exactly as written.
type RawSQL struct {
	// SQL is the statement text.
	SQL string
	// EndDelimiter is the delimiter the statement was split on, if a custom one was configured.
	EndDelimiter string
}

// NewRawSQL creates a raw SQL statement.
func NewRawSQL(sql, endDelimiter string) *RawSQL {
	return &RawSQL{SQL: sql, EndDelimiter: endDelimiter}
}

func (n *RawSQL) Accept(visitor Visitor) error {
	return visitor.VisitRawSQL(n)
}

// CreateTable creates a table with its columns and primary key.
type CreateTable struct {
	CatalogName string
	SchemaName  string
	TableName   string
	Remarks     string
	Columns     []*Column
}

// NewCreateTable creates a CREATE TABLE statement for the given table.
func NewCreateTable(name string) *CreateTable {
	return &CreateTable{TableName: name}
}

// AddColumn appends a column and returns the statement for chaining.
func (n *CreateTable) AddColumn(column *Column) *CreateTable {
	n.Columns = append(n.Columns, column)
	return n
}

func (n *CreateTable) Accept(visitor Visitor) error {
	return visitor.VisitCreateTable(n)
}

// PrimaryKeyColumns returns the names of the primary key columns in declaration order.
func (n *CreateTable) PrimaryKeyColumns() []string {
	var names []string
	for _, col := range n.Columns {
		if col.PrimaryKey {
			names = append(names, col.Name)
		}
	}
	return names
}

// Column is a column definition inside CreateTable.
type Column struct {
	Name          string
	Type          string
	DefaultValue  string
	PrimaryKey    bool
	NotNull       bool
	Unique        bool
	AutoIncrement bool
}

// NewColumn creates a nullable column of the given type.
func NewColumn(name, dataType string) *Column {
	return &Column{Name: name, Type: dataType}
}

// SetPrimaryKey marks the column as part of the primary key. Primary key columns are never null.
func (c *Column) SetPrimaryKey() *Column {
	c.PrimaryKey = true
	c.NotNull = true
	return c
}

func (c *Column) SetNotNull() *Column {
	c.NotNull = true
	return c
}

func (c *Column) SetUnique() *Column {
	c.Unique = true
	return c
}

func (c *Column) SetAutoIncrement() *Column {
	c.AutoIncrement = true
	return c
}

// SetDefault sets the default value expression, written verbatim.
func (c *Column) SetDefault(value string) *Column {
	c.DefaultValue = value
	return c
}

// DropTable drops a table.
type DropTable struct {
	CatalogName        string
	SchemaName         string
	TableName          string
	CascadeConstraints bool
}

// NewDropTable creates a DROP TABLE statement for the given table.
func NewDropTable(name string) *DropTable {
	return &DropTable{TableName: name}
}

func (n *DropTable) Accept(visitor Visitor) error {
	return visitor.VisitDropTable(n)
}
