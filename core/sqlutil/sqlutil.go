// Package sqlutil holds the text processing applied to raw SQL before it reaches a database:
// line-ending normalization, comment stripping, statement splitting and
// translation of JDBC-style escape sequences.
//
// All functions understand single-quoted strings, double-quoted and backtick
// identifiers, line and block comments and PostgreSQL dollar-quoted bodies, so
// delimiters and comment markers inside them are left alone.
package sqlutil

import (
	"strings"
)

type class uint8

const (
	classCode class = iota
	classQuoted
	classComment
)

// NormalizeLineEndings converts CRLF and lone CR line endings to LF.
func NormalizeLineEndings(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// StripComments removes line and block comments outside quoted text and trims the result.
// Whitespace preceding a line comment on the same line is removed with it.
func StripComments(sql string) string {
	return stripComments(sql, true)
}

// SplitSQL splits sql into trimmed, non-empty statements.
//
// With an empty endDelimiter a statement ends at a ";" that is the last thing on
// its line, or at a line holding only "GO". An endDelimiter of "go" (any case)
// splits on GO lines only. Any other endDelimiter is matched literally and, like
// ";", must be followed only by whitespace or comments up to the end of the line.
func SplitSQL(sql, endDelimiter string) []string {
	classes := classify(sql, allowDollarQuotes(endDelimiter))

	var pieces []string
	start := 0
	for i := 0; i < len(sql); {
		if classes[i] != classCode {
			i++
			continue
		}
		n := matchDelimiter(sql, classes, i, endDelimiter)
		if n == 0 {
			i++
			continue
		}
		pieces = appendPiece(pieces, sql[start:i])
		i += n
		start = i
	}
	return appendPiece(pieces, sql[start:])
}

// ProcessMultiLineSQL optionally strips comments and then optionally splits sql into statements.
// When splitting is disabled the (possibly stripped) text is returned as a single statement.
// Blank input yields no statements.
func ProcessMultiLineSQL(sql string, stripComments, splitStatements bool, endDelimiter string) []string {
	if stripComments {
		sql = StripCommentsFor(sql, endDelimiter)
	}
	if splitStatements {
		return SplitSQL(sql, endDelimiter)
	}
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	return []string{sql}
}

// StripCommentsFor strips comments the way StripComments does, but disables
// dollar-quote detection when the end delimiter itself contains "$".
func StripCommentsFor(sql, endDelimiter string) string {
	return stripComments(sql, allowDollarQuotes(endDelimiter))
}

func allowDollarQuotes(endDelimiter string) bool {
	return !strings.Contains(endDelimiter, "$")
}

func stripComments(sql string, dollarQuotes bool) string {
	classes := classify(sql, dollarQuotes)
	out := make([]byte, 0, len(sql))
	for i := 0; i < len(sql); {
		if classes[i] != classComment {
			out = append(out, sql[i])
			i++
			continue
		}
		if strings.HasPrefix(sql[i:], "--") {
			out = trimTrailingBlanks(out)
		}
		for i < len(sql) && classes[i] == classComment {
			i++
		}
	}
	return strings.TrimSpace(string(out))
}

func trimTrailingBlanks(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t') {
		b = b[:len(b)-1]
	}
	return b
}

func appendPiece(pieces []string, piece string) []string {
	piece = strings.TrimSpace(piece)
	if piece == "" {
		return pieces
	}
	return append(pieces, piece)
}

func matchDelimiter(sql string, classes []class, i int, endDelimiter string) int {
	switch {
	case endDelimiter == "":
		if sql[i] == ';' && atLineEnd(sql, classes, i+1) {
			return 1
		}
		return matchBatchSeparator(sql, classes, i)
	case strings.EqualFold(endDelimiter, "go"):
		return matchBatchSeparator(sql, classes, i)
	default:
		end := i + len(endDelimiter)
		if !strings.HasPrefix(sql[i:], endDelimiter) || !allCode(classes, i, end) {
			return 0
		}
		if !atLineEnd(sql, classes, end) {
			return 0
		}
		return len(endDelimiter)
	}
}

// matchBatchSeparator recognizes a GO keyword standing alone on its line.
func matchBatchSeparator(sql string, classes []class, i int) int {
	if i+2 > len(sql) || !strings.EqualFold(sql[i:i+2], "go") || !allCode(classes, i, i+2) {
		return 0
	}
	for j := i - 1; j >= 0 && sql[j] != '\n'; j-- {
		if sql[j] != ' ' && sql[j] != '\t' {
			return 0
		}
	}
	if !atLineEnd(sql, classes, i+2) {
		return 0
	}
	return 2
}

// atLineEnd reports whether only blanks and comments separate position j from the end of its line.
func atLineEnd(sql string, classes []class, j int) bool {
	for j < len(sql) {
		switch {
		case sql[j] == '\n':
			return true
		case sql[j] == ' ' || sql[j] == '\t':
			j++
		case classes[j] == classComment:
			if strings.HasPrefix(sql[j:], "--") {
				return true
			}
			for j < len(sql) && classes[j] == classComment {
				j++
			}
		default:
			return false
		}
	}
	return true
}

func allCode(classes []class, from, to int) bool {
	if to > len(classes) {
		return false
	}
	for _, c := range classes[from:to] {
		if c != classCode {
			return false
		}
	}
	return true
}

// classify marks every byte of sql as code, quoted text or comment.
func classify(sql string, dollarQuotes bool) []class {
	classes := make([]class, len(sql))
	mark := func(from, to int, c class) {
		for k := from; k < to; k++ {
			classes[k] = c
		}
	}

	for i := 0; i < len(sql); {
		ch := sql[i]
		switch {
		case ch == '\'' || ch == '"' || ch == '`':
			end := closingQuote(sql, i+1, ch)
			mark(i, end, classQuoted)
			i = end
		case ch == '-' && strings.HasPrefix(sql[i:], "--"):
			end := strings.IndexByte(sql[i:], '\n')
			if end < 0 {
				end = len(sql)
			} else {
				end += i
			}
			mark(i, end, classComment)
			i = end
		case ch == '/' && strings.HasPrefix(sql[i:], "/*"):
			end := strings.Index(sql[i+2:], "*/")
			if end < 0 {
				end = len(sql)
			} else {
				end += i + 4
			}
			mark(i, end, classComment)
			i = end
		case ch == '$' && dollarQuotes:
			tag, ok := dollarTag(sql, i)
			if !ok {
				i++
				continue
			}
			end := strings.Index(sql[i+len(tag):], tag)
			if end < 0 {
				end = len(sql)
			} else {
				end += i + 2*len(tag)
			}
			mark(i, end, classQuoted)
			i = end
		default:
			i++
		}
	}
	return classes
}

func closingQuote(sql string, start int, quote byte) int {
	for j := start; j < len(sql); j++ {
		if sql[j] != quote {
			continue
		}
		if j+1 < len(sql) && sql[j+1] == quote {
			j++
			continue
		}
		return j + 1
	}
	return len(sql)
}

// dollarTag returns the $tag$ opener starting at i, if any.
func dollarTag(sql string, i int) (string, bool) {
	j := i + 1
	for j < len(sql) && isIdentByte(sql[j]) {
		j++
	}
	if j >= len(sql) || sql[j] != '$' {
		return "", false
	}
	if j > i+1 && sql[i+1] >= '0' && sql[i+1] <= '9' {
		return "", false
	}
	return sql[i : j+1], true
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
