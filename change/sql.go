package change

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/stokaro/changekit/core/checksum"
	"github.com/stokaro/changekit/core/database"
	"github.com/stokaro/changekit/core/platform"
	"github.com/stokaro/changekit/core/sqlutil"
	"github.com/stokaro/changekit/core/statement"
)

// SQLChange is the shared base of changes that execute hand-written SQL,
// regardless of where the SQL comes from.
//
// The zero value strips no comments and splits statements on the default delimiters.
type SQLChange struct {
	Base

	sql             string
	stripComments   *bool
	splitStatements *bool
	endDelimiter    string
}

// SQL returns the trimmed SQL, or "" when none is set.
func (c *SQLChange) SQL() string {
	return c.sql
}

// SetSQL sets the SQL. It is trimmed and a blank value unsets it.
func (c *SQLChange) SetSQL(sql string) {
	c.sql = strings.TrimSpace(sql)
}

// StripComments reports whether comments are removed before execution. Defaults to false.
func (c *SQLChange) StripComments() bool {
	return c.stripComments != nil && *c.stripComments
}

// SetStripComments sets comment stripping. nil restores the default.
func (c *SQLChange) SetStripComments(strip *bool) {
	c.stripComments = strip
}

// SplitStatements reports whether the SQL is split into several statements. Defaults to true.
func (c *SQLChange) SplitStatements() bool {
	return c.splitStatements == nil || *c.splitStatements
}

// SetSplitStatements sets statement splitting. nil restores the default.
func (c *SQLChange) SetSplitStatements(split *bool) {
	c.splitStatements = split
}

// EndDelimiter returns the custom statement delimiter, or "" for the default ";" and GO.
func (c *SQLChange) EndDelimiter() string {
	return c.endDelimiter
}

func (c *SQLChange) SetEndDelimiter(delimiter string) {
	c.endDelimiter = delimiter
}

// GenerateCheckSum hashes the delimiter, both flags and the SQL with normalized line endings.
func (c *SQLChange) GenerateCheckSum() checksum.CheckSum {
	delimiter := c.endDelimiter
	if delimiter == "" {
		delimiter = "null"
	}
	return checksum.Compute(delimiter + ":" +
		strconv.FormatBool(c.SplitStatements()) + ":" +
		strconv.FormatBool(c.StripComments()) + ":" +
		sqlutil.NormalizeLineEndings(c.sql))
}

// GenerateStatements splits the SQL into raw statements for db.
//
// MSSQL statements get CRLF line endings. When db has a connection, each statement
// goes through its NativeSQL translation; a failed translation keeps the statement as written.
func (c *SQLChange) GenerateStatements(ctx context.Context, db database.Database) ([]statement.SQLStatement, error) {
	if strings.TrimSpace(c.sql) == "" {
		return []statement.SQLStatement{}, nil
	}

	processed := sqlutil.NormalizeLineEndings(c.sql)
	pieces := sqlutil.ProcessMultiLineSQL(processed, c.StripComments(), c.SplitStatements(), c.endDelimiter)

	stmts := make([]statement.SQLStatement, 0, len(pieces))
	for _, piece := range pieces {
		if database.Matches(db, platform.MSSQL) {
			piece = strings.ReplaceAll(piece, "\n", "\r\n")
		}

		escaped := piece
		if db != nil && db.Connection() != nil {
			native, err := db.Connection().NativeSQL(ctx, piece)
			if err != nil {
				slog.DebugContext(ctx, "Native SQL translation failed, using statement as written", "error", err)
			} else {
				escaped = native
			}
		}

		stmts = append(stmts, statement.NewRawSQL(escaped, c.endDelimiter))
	}
	return stmts, nil
}
