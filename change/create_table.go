package change

import (
	"context"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-extras/go-kit/must"

	"github.com/stokaro/changekit/core/checksum"
	"github.com/stokaro/changekit/core/database"
	"github.com/stokaro/changekit/core/statement"
)

var (
	_ Change = (*CreateTableChange)(nil)
)

// ColumnConfig describes a column of CreateTableChange.
type ColumnConfig struct {
	Name          string `mapstructure:"name"`
	Type          string `mapstructure:"type"`
	DefaultValue  string `mapstructure:"defaultValue"`
	AutoIncrement bool   `mapstructure:"autoIncrement"`
	PrimaryKey    bool   `mapstructure:"primaryKey"`
	Nullable      *bool  `mapstructure:"nullable"`
	Unique        bool   `mapstructure:"unique"`
}

// String renders the column for checksums and log output.
func (c ColumnConfig) String() string {
	var sb strings.Builder
	sb.WriteString(c.Name + " " + c.Type)
	if c.DefaultValue != "" {
		sb.WriteString(" default=" + c.DefaultValue)
	}
	if c.AutoIncrement {
		sb.WriteString(" autoIncrement")
	}
	if c.PrimaryKey {
		sb.WriteString(" primaryKey")
	}
	if c.Nullable != nil {
		sb.WriteString(" nullable=" + strconv.FormatBool(*c.Nullable))
	}
	if c.Unique {
		sb.WriteString(" unique")
	}
	return sb.String()
}

var createTableMetaData = ChangeMetaData{
	Name:        "createTable",
	Description: "Creates a table",
	Priority:    PriorityDefault,
	Parameters: []*ParameterMetaData{
		must.Must(NewParameterMetaData(ParameterDefinition{
			Name:              "catalogName",
			DisplayName:       "Catalog Name",
			Description:       "Name of the catalog",
			DataType:          stringType,
			MustEqualExisting: "table.catalog",
			SerializationType: NamedField,
		})),
		must.Must(NewParameterMetaData(ParameterDefinition{
			Name:              "schemaName",
			DisplayName:       "Schema Name",
			Description:       "Name of the schema",
			DataType:          stringType,
			MustEqualExisting: "table.schema",
			SerializationType: NamedField,
		})),
		must.Must(NewParameterMetaData(ParameterDefinition{
			Name:                "tableName",
			DisplayName:         "Table Name",
			Description:         "Name of the table to create",
			ExampleValue:        "person",
			DataType:            stringType,
			RequiredForDatabase: []string{"all"},
			MustEqualExisting:   "table",
			SerializationType:   NamedField,
		})),
		must.Must(NewParameterMetaData(ParameterDefinition{
			Name:              "remarks",
			DisplayName:       "Remarks",
			Description:       "Comment stored with the table",
			DataType:          stringType,
			SerializationType: NamedField,
		})),
		must.Must(NewParameterMetaData(ParameterDefinition{
			Name:                "columns",
			DisplayName:         "Columns",
			Description:         "Column definitions",
			DataType:            reflect.TypeFor[[]ColumnConfig](),
			RequiredForDatabase: []string{"all"},
			MustEqualExisting:   "table.column",
			SerializationType:   NestedObject,
		})),
	},
}

// CreateTableChange creates a table and drops it on rollback.
type CreateTableChange struct {
	Base

	CatalogName string         `change:"catalogName"`
	SchemaName  string         `change:"schemaName"`
	TableName   string         `change:"tableName"`
	Remarks     string         `change:"remarks"`
	Columns     []ColumnConfig `change:"columns"`
}

func (c *CreateTableChange) MetaData() ChangeMetaData {
	return createTableMetaData
}

// AddColumn appends a column definition.
func (c *CreateTableChange) AddColumn(col ColumnConfig) {
	c.Columns = append(c.Columns, col)
}

func (c *CreateTableChange) Validate(db database.Database) *ValidationErrors {
	errs := ValidateRequired(c, db)
	seen := map[string]bool{}
	for i, col := range c.Columns {
		if col.Name == "" {
			errs.AddError("columns[" + strconv.Itoa(i) + "].name is required")
			continue
		}
		if col.Type == "" {
			errs.AddError("column " + col.Name + " requires a type")
		}
		key := strings.ToLower(col.Name)
		if seen[key] {
			errs.AddError("column " + col.Name + " is defined more than once")
		}
		seen[key] = true
	}
	return errs
}

func (c *CreateTableChange) GenerateStatements(context.Context, database.Database) ([]statement.SQLStatement, error) {
	stmt := &statement.CreateTable{
		CatalogName: c.CatalogName,
		SchemaName:  c.SchemaName,
		TableName:   c.TableName,
		Remarks:     c.Remarks,
	}
	for _, col := range c.Columns {
		column := statement.NewColumn(col.Name, col.Type).SetDefault(col.DefaultValue)
		if col.PrimaryKey {
			column.SetPrimaryKey()
		}
		if col.Nullable != nil && !*col.Nullable {
			column.SetNotNull()
		}
		if col.Unique {
			column.SetUnique()
		}
		if col.AutoIncrement {
			column.SetAutoIncrement()
		}
		stmt.AddColumn(column)
	}
	return []statement.SQLStatement{stmt}, nil
}

func (c *CreateTableChange) SupportsRollback(database.Database) bool {
	return true
}

func (c *CreateTableChange) GenerateRollbackStatements(context.Context, database.Database) ([]statement.SQLStatement, error) {
	return []statement.SQLStatement{&statement.DropTable{
		CatalogName: c.CatalogName,
		SchemaName:  c.SchemaName,
		TableName:   c.TableName,
	}}, nil
}

func (c *CreateTableChange) GenerateCheckSum() checksum.CheckSum {
	return must.Must(ComputeCheckSum(c))
}

func (c *CreateTableChange) ConfirmationMessage() string {
	return "Table " + c.TableName + " created"
}

