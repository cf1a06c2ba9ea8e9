// Package database describes the target database a change is generated for.
//
// A Database is identified by its short name (see core/platform). Dialects that
// refine another one, such as MariaDB refining MySQL, report their supertype so
// that anything declared for the parent also applies to them.
package database

import (
	"context"
	"database/sql"
	"strings"

	"golang.org/x/text/cases"

	"github.com/stokaro/changekit/core/platform"
)

// Connection is the part of a live database connection that change generation relies on.
type Connection interface {
	// NativeSQL converts the given statement into the database's native grammar.
	NativeSQL(ctx context.Context, sql string) (string, error)
}

// Database is the target a change is generated for.
type Database interface {
	// ShortName returns the dialect short name, e.g. "mysql".
	ShortName() string
	// Connection returns the live connection or nil when generating offline.
	Connection() Connection
}

// Subtype is implemented by databases that refine another dialect.
type Subtype interface {
	Database
	Supertype() Database
}

// Generic is a Database identified only by its short name.
type Generic struct {
	shortName string
	conn      Connection
}

// New creates a database for the given dialect name or alias.
// Unknown names are kept as given so third-party dialects can be described too.
func New(dialect string) *Generic {
	shortName := platform.NormalizeDialect(dialect)
	if shortName == "" {
		shortName = dialect
	}
	return &Generic{shortName: shortName}
}

func Postgres() *Generic { return New(platform.Postgres) }
func MySQL() *Generic    { return New(platform.MySQL) }
func MariaDB() *Generic  { return New(platform.MariaDB) }
func MSSQL() *Generic    { return New(platform.MSSQL) }
func Oracle() *Generic   { return New(platform.Oracle) }
func SQLite() *Generic   { return New(platform.SQLite) }

// WithConnection returns a copy of the database bound to the given connection.
func (g *Generic) WithConnection(conn Connection) *Generic {
	tmp := *g
	tmp.conn = conn
	return &tmp
}

func (g *Generic) ShortName() string {
	return g.shortName
}

func (g *Generic) Connection() Connection {
	return g.conn
}

// Supertype returns the dialect this one refines, or nil.
func (g *Generic) Supertype() Database {
	parent := platform.Parent(g.shortName)
	if parent == "" {
		return nil
	}
	return New(parent)
}

// Matches reports whether db is the named dialect or one of its subtypes.
// Names are compared case-insensitively.
func Matches(db Database, shortName string) bool {
	fold := cases.Fold()
	want := fold.String(shortName)
	for db != nil {
		if fold.String(db.ShortName()) == want {
			return true
		}
		sub, ok := db.(Subtype)
		if !ok {
			return false
		}
		db = sub.Supertype()
	}
	return false
}

// MatchesAny reports whether db matches at least one of the short names.
func MatchesAny(db Database, shortNames ...string) bool {
	for _, name := range shortNames {
		if Matches(db, name) {
			return true
		}
	}
	return false
}

// MatchesList reports whether db satisfies a comma-separated dbms list such as
// "mysql, !mariadb". An empty list and "all" match every database, "none" matches
// nothing. A negated entry excludes the dialect; a list of only negations
// includes everything else.
func MatchesList(db Database, list string) bool {
	var positives, negatives []string
	for _, item := range strings.Split(list, ",") {
		item = strings.TrimSpace(item)
		switch {
		case item == "":
		case strings.HasPrefix(item, "!"):
			negatives = append(negatives, strings.TrimSpace(item[1:]))
		default:
			positives = append(positives, item)
		}
	}
	if len(positives) == 0 && len(negatives) == 0 {
		return true
	}
	if MatchesAny(db, negatives...) {
		return false
	}
	if len(positives) == 0 {
		return true
	}
	for _, item := range positives {
		switch strings.ToLower(item) {
		case "all":
			return true
		case "none":
			continue
		}
		if Matches(db, item) {
			return true
		}
	}
	return false
}

// Execer is implemented by connections that can run statements directly.
// Plugins doing their own work type-assert Connection() to it.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
