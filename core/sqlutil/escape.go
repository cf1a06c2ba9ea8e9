package sqlutil

import (
	"fmt"
	"strings"
)

var escapeReplacements = map[string]string{
	"fn":     "",
	"oj":     "",
	"d":      "DATE ",
	"t":      "TIME ",
	"ts":     "TIMESTAMP ",
	"escape": "ESCAPE ",
	"call":   "CALL ",
}

// TranslateEscapes rewrites JDBC-style escape sequences such as {fn UCASE(x)},
// {d '2024-01-01'} or {oj a LEFT JOIN b ON ...} into plain SQL. Braces that do not
// start a known escape are copied unchanged. An escape without its closing brace
// is an error.
func TranslateEscapes(sql string) (string, error) {
	classes := classify(sql, true)
	out, _, err := translateEscapes(sql, classes, 0, false)
	if err != nil {
		return "", err
	}
	return out, nil
}

// translateEscapes copies sql starting at pos. When nested, it stops at the brace
// closing the current escape and returns its offset.
func translateEscapes(sql string, classes []class, pos int, nested bool) (string, int, error) {
	var b strings.Builder
	depth := 0
	for i := pos; i < len(sql); {
		if classes[i] != classCode {
			b.WriteByte(sql[i])
			i++
			continue
		}

		switch sql[i] {
		case '}':
			if nested && depth == 0 {
				return b.String(), i, nil
			}
			if depth > 0 {
				depth--
			}
		case '{':
			keyword, bodyStart := escapeKeyword(sql, i+1)
			replacement, ok := escapeReplacements[strings.ToLower(keyword)]
			if !ok {
				depth++
				break
			}
			inner, end, err := translateEscapes(sql, classes, bodyStart, true)
			if err != nil {
				return "", 0, err
			}
			if end >= len(sql) {
				return "", 0, fmt.Errorf("unterminated escape sequence {%s at offset %d", keyword, i)
			}
			b.WriteString(replacement)
			b.WriteString(strings.TrimSpace(inner))
			i = end + 1
			continue
		}

		b.WriteByte(sql[i])
		i++
	}
	return b.String(), len(sql), nil
}

func escapeKeyword(sql string, start int) (string, int) {
	i := start
	for i < len(sql) && (sql[i] == ' ' || sql[i] == '\t') {
		i++
	}
	begin := i
	for i < len(sql) && ((sql[i] >= 'a' && sql[i] <= 'z') || (sql[i] >= 'A' && sql[i] <= 'Z')) {
		i++
	}
	return sql[begin:i], i
}
