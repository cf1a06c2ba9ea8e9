package change

import (
	"context"

	"github.com/go-extras/go-kit/must"

	"github.com/stokaro/changekit/core/checksum"
	"github.com/stokaro/changekit/core/database"
	"github.com/stokaro/changekit/core/statement"
)

var (
	_ Change = (*DropTableChange)(nil)
)

var dropTableMetaData = ChangeMetaData{
	Name:        "dropTable",
	Description: "Drops an existing table",
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
			Description:         "Name of the table to drop",
			DataType:            stringType,
			RequiredForDatabase: []string{"all"},
			MustEqualExisting:   "table",
			SerializationType:   NamedField,
		})),
		must.Must(NewParameterMetaData(ParameterDefinition{
			Name:              "cascadeConstraints",
			DisplayName:       "Cascade Constraints",
			Description:       "Also drop constraints referencing the table",
			DataType:          boolType,
			SerializationType: NamedField,
		})),
	},
}

// DropTableChange drops a table. It cannot be rolled back.
type DropTableChange struct {
	Base

	CatalogName        string `change:"catalogName"`
	SchemaName         string `change:"schemaName"`
	TableName          string `change:"tableName"`
	CascadeConstraints bool   `change:"cascadeConstraints"`
}

func (c *DropTableChange) MetaData() ChangeMetaData {
	return dropTableMetaData
}

func (c *DropTableChange) Validate(db database.Database) *ValidationErrors {
	return ValidateRequired(c, db)
}

func (c *DropTableChange) GenerateStatements(context.Context, database.Database) ([]statement.SQLStatement, error) {
	return []statement.SQLStatement{&statement.DropTable{
		CatalogName:        c.CatalogName,
		SchemaName:         c.SchemaName,
		TableName:          c.TableName,
		CascadeConstraints: c.CascadeConstraints,
	}}, nil
}

func (c *DropTableChange) GenerateCheckSum() checksum.CheckSum {
	return must.Must(ComputeCheckSum(c))
}

func (c *DropTableChange) ConfirmationMessage() string {
	return "Table " + c.TableName + " dropped"
}
