package change

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/go-extras/go-kit/must"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/stokaro/changekit/core/database"
	"github.com/stokaro/changekit/core/statement"
)

var (
	_ Change      = (*SQLFileChange)(nil)
	_ Initializer = (*SQLFileChange)(nil)
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

var sqlFileMetaData = ChangeMetaData{
	Name:        "sqlFile",
	Description: "Executes the SQL stored in a file",
	Priority:    PriorityDefault,
	Parameters: append(sqlParameters()[1:],
		must.Must(NewParameterMetaData(ParameterDefinition{
			Name:                "path",
			DisplayName:         "Path",
			Description:         "Path of the SQL file",
			ExampleValue:        "db/seed.sql",
			DataType:            stringType,
			RequiredForDatabase: []string{"all"},
			SerializationType:   NamedField,
		})),
		must.Must(NewParameterMetaData(ParameterDefinition{
			Name:              "encoding",
			DisplayName:       "Encoding",
			Description:       "Character encoding of the file, UTF-8 when unset",
			ExampleValue:      "windows-1252",
			DataType:          stringType,
			SerializationType: NamedField,
		})),
		must.Must(NewParameterMetaData(ParameterDefinition{
			Name:              "relativeToChangelogFile",
			DisplayName:       "Relative To Changelog File",
			Description:       "Resolve the path relative to the changelog declaring the change",
			DataType:          boolType,
			SerializationType: NamedField,
		})),
	),
}

// Initializer is implemented by changes that load resources once parsing is complete.
type Initializer interface {
	FinishInitialization() error
}

// SQLFileChange executes SQL read from a file of the resource accessor.
// Its checksum covers the file contents, not the path.
type SQLFileChange struct {
	SQLChange

	path                    string
	encoding                string
	relativeToChangelogFile bool
	changeLogPath           string
	dbms                    string
}

// NewSQLFileChange creates a change for the file at p.
func NewSQLFileChange(p string) *SQLFileChange {
	return &SQLFileChange{path: p}
}

func (c *SQLFileChange) MetaData() ChangeMetaData {
	return sqlFileMetaData
}

func (c *SQLFileChange) Path() string {
	return c.path
}

func (c *SQLFileChange) SetPath(p string) {
	c.path = p
}

func (c *SQLFileChange) Encoding() string {
	return c.encoding
}

func (c *SQLFileChange) SetEncoding(encoding string) {
	c.encoding = encoding
}

func (c *SQLFileChange) RelativeToChangelogFile() bool {
	return c.relativeToChangelogFile
}

func (c *SQLFileChange) SetRelativeToChangelogFile(relative bool) {
	c.relativeToChangelogFile = relative
}

// SetChangeLogPath records the path of the changelog declaring the change.
func (c *SQLFileChange) SetChangeLogPath(p string) {
	c.changeLogPath = p
}

// Dbms returns the databases the file applies to, empty for all.
func (c *SQLFileChange) Dbms() string {
	return c.dbms
}

func (c *SQLFileChange) SetDbms(dbms string) {
	c.dbms = dbms
}

// ResolvedPath returns the path the file is read from.
func (c *SQLFileChange) ResolvedPath() string {
	if c.relativeToChangelogFile && c.changeLogPath != "" {
		return path.Join(path.Dir(c.changeLogPath), c.path)
	}
	return path.Clean(c.path)
}

// FinishInitialization reads and decodes the file into the change's SQL.
func (c *SQLFileChange) FinishInitialization() error {
	if c.path == "" {
		return nil
	}
	fsys := c.ResourceAccessor()
	if fsys == nil {
		return fmt.Errorf("failed to read %s: resource accessor not set", c.path)
	}

	data, err := fs.ReadFile(fsys, c.ResolvedPath())
	if err != nil {
		return fmt.Errorf("failed to read sql file: %w", err)
	}

	text, err := decode(data, c.encoding)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", c.path, err)
	}
	c.SetSQL(text)
	return nil
}

func decode(data []byte, encoding string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "utf-8", "utf8":
		return string(bytes.TrimPrefix(data, utf8BOM)), nil
	}
	enc, err := htmlindex.Get(encoding)
	if err != nil {
		return "", fmt.Errorf("unsupported encoding %q: %w", encoding, err)
	}
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func (c *SQLFileChange) Validate(db database.Database) *ValidationErrors {
	errs := ValidateRequired(c, db)
	if c.path != "" && c.SQL() == "" {
		errs.AddError("sql file " + c.path + " is empty or was not loaded")
	}
	return errs
}

func (c *SQLFileChange) GenerateStatements(ctx context.Context, db database.Database) ([]statement.SQLStatement, error) {
	if !database.MatchesList(db, c.dbms) {
		return []statement.SQLStatement{}, nil
	}
	return c.SQLChange.GenerateStatements(ctx, db)
}

func (c *SQLFileChange) ConfirmationMessage() string {
	return "SQL in file " + c.path + " executed"
}
