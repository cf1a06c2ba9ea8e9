package change

import (
	"context"
	"reflect"

	"github.com/go-extras/go-kit/must"

	"github.com/stokaro/changekit/core/database"
	"github.com/stokaro/changekit/core/statement"
)

var (
	_ Change = (*RawSQLChange)(nil)
)

var (
	boolType   = reflect.TypeFor[bool]()
	stringType = reflect.TypeFor[string]()
)

func sqlParameters() []*ParameterMetaData {
	return []*ParameterMetaData{
		must.Must(NewParameterMetaData(ParameterDefinition{
			Name:                "sql",
			DisplayName:         "SQL",
			Description:         "SQL to execute",
			DataType:            stringType,
			RequiredForDatabase: []string{"all"},
			SerializationType:   DirectValue,
		})),
		must.Must(NewParameterMetaData(ParameterDefinition{
			Name:              "splitStatements",
			DisplayName:       "Split Statements",
			Description:       "Split the SQL on the end delimiter",
			DataType:          boolType,
			SerializationType: NamedField,
		})),
		must.Must(NewParameterMetaData(ParameterDefinition{
			Name:              "stripComments",
			DisplayName:       "Strip Comments",
			Description:       "Remove comments before executing",
			DataType:          boolType,
			SerializationType: NamedField,
		})),
		must.Must(NewParameterMetaData(ParameterDefinition{
			Name:              "endDelimiter",
			DisplayName:       "End Delimiter",
			Description:       "Delimiter to split statements on instead of ; and GO",
			ExampleValue:      "/",
			DataType:          stringType,
			SerializationType: NamedField,
		})),
		must.Must(NewParameterMetaData(ParameterDefinition{
			Name:              "dbms",
			DisplayName:       "DBMS",
			Description:       "Comma-separated list of databases the SQL applies to",
			ExampleValue:      "postgres, mysql",
			DataType:          stringType,
			SerializationType: NamedField,
		})),
	}
}

var rawSQLMetaData = ChangeMetaData{
	Name:        "sql",
	Description: "Executes raw SQL",
	Priority:    PriorityDefault,
	Parameters: append(sqlParameters(), must.Must(NewParameterMetaData(ParameterDefinition{
		Name:              "comment",
		DisplayName:       "Comment",
		Description:       "Free-form comment kept with the change",
		DataType:          stringType,
		SerializationType: NestedObject,
	}))),
}

// RawSQLChange executes SQL written inline in the changelog.
type RawSQLChange struct {
	SQLChange

	comment string
	dbms    string
}

// NewRawSQLChange creates a change executing sql with the default flags.
func NewRawSQLChange(sql string) *RawSQLChange {
	c := &RawSQLChange{}
	c.SetSQL(sql)
	return c
}

func (c *RawSQLChange) MetaData() ChangeMetaData {
	return rawSQLMetaData
}

func (c *RawSQLChange) Comment() string {
	return c.comment
}

func (c *RawSQLChange) SetComment(comment string) {
	c.comment = comment
}

// Dbms returns the dbms filter, or "" when the SQL applies everywhere.
func (c *RawSQLChange) Dbms() string {
	return c.dbms
}

func (c *RawSQLChange) SetDbms(dbms string) {
	c.dbms = dbms
}

func (c *RawSQLChange) Validate(db database.Database) *ValidationErrors {
	return ValidateRequired(c, db)
}

// GenerateStatements returns no statements when db is excluded by the dbms filter.
func (c *RawSQLChange) GenerateStatements(ctx context.Context, db database.Database) ([]statement.SQLStatement, error) {
	if !database.MatchesList(db, c.dbms) {
		return []statement.SQLStatement{}, nil
	}
	return c.SQLChange.GenerateStatements(ctx, db)
}

func (c *RawSQLChange) ConfirmationMessage() string {
	return "Custom SQL executed"
}
