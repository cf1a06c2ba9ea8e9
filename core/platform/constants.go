package platform

import (
	"strings"
)

const (
	Postgres = "postgres"
	MySQL    = "mysql"
	MariaDB  = "mariadb"
	MSSQL    = "mssql"
	Oracle   = "oracle"
	SQLite   = "sqlite"
	H2       = "h2"
)

// NormalizeDialect maps driver names and common aliases to a dialect short name.
// Unknown dialects normalize to an empty string.
func NormalizeDialect(dialect string) string {
	switch strings.ToLower(dialect) {
	case "pgx", "postgresql", "postgres":
		return Postgres
	case "mysql":
		return MySQL
	case "mariadb":
		return MariaDB
	case "mssql", "sqlserver":
		return MSSQL
	case "oracle", "godror":
		return Oracle
	case "sqlite", "sqlite3":
		return SQLite
	case "h2":
		return H2
	default:
		return ""
	}
}

// Parent returns the short name of the dialect the given one refines,
// or an empty string for root dialects.
func Parent(dialect string) string {
	switch NormalizeDialect(dialect) {
	case MariaDB:
		return MySQL
	default:
		return ""
	}
}
