package database

import (
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/stokaro/changekit/core/platform"
)

// ObjectQuotingStrategy controls which object names are quoted in generated SQL.
type ObjectQuotingStrategy string

const (
	// Legacy quotes reserved words and names that are not plain identifiers.
	Legacy ObjectQuotingStrategy = "LEGACY"
	// QuoteAllObjects quotes every object name.
	QuoteAllObjects ObjectQuotingStrategy = "QUOTE_ALL_OBJECTS"
	// QuoteOnlyReservedWords quotes reserved words only.
	QuoteOnlyReservedWords ObjectQuotingStrategy = "QUOTE_ONLY_RESERVED_WORDS"
)

// ParseObjectQuotingStrategy parses a strategy name. An empty name yields Legacy.
func ParseObjectQuotingStrategy(s string) (ObjectQuotingStrategy, error) {
	switch strategy := ObjectQuotingStrategy(strings.ToUpper(strings.TrimSpace(s))); strategy {
	case "":
		return Legacy, nil
	case Legacy, QuoteAllObjects, QuoteOnlyReservedWords:
		return strategy, nil
	default:
		return "", fmt.Errorf("unknown object quoting strategy %q", s)
	}
}

var reservedWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		all and as asc between by case check column constraint create date default delete
		desc distinct drop else end exists foreign from grant group having in index insert
		into is join key like limit not null offset on or order primary references select
		table then time timestamp union unique update user value values view when where`) {
		reservedWords[w] = struct{}{}
	}
}

// IsReservedWord reports whether name is a reserved SQL keyword.
func IsReservedWord(name string) bool {
	_, ok := reservedWords[strings.ToLower(name)]
	return ok
}

// QuoteObjectName returns name quoted for db when the strategy requires it.
func QuoteObjectName(db Database, name string, strategy ObjectQuotingStrategy) string {
	if name == "" {
		return ""
	}
	switch strategy {
	case QuoteAllObjects:
		return quoteIdentifier(db, name)
	case QuoteOnlyReservedWords:
		if IsReservedWord(name) {
			return quoteIdentifier(db, name)
		}
		return name
	default:
		if IsReservedWord(name) || !isPlainIdentifier(name) {
			return quoteIdentifier(db, name)
		}
		return name
	}
}

// QuoteLiteral returns s as a string literal for db.
func QuoteLiteral(db Database, s string) string {
	if Matches(db, platform.Postgres) {
		return pq.QuoteLiteral(s)
	}
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteIdentifier(db Database, name string) string {
	switch {
	case Matches(db, platform.Postgres):
		return pq.QuoteIdentifier(name)
	case Matches(db, platform.MySQL):
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	case Matches(db, platform.MSSQL):
		return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
	default:
		return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
	}
}

func isPlainIdentifier(name string) bool {
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
