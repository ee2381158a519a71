package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/coregx/quarry/internal/dialects"
)

// Params represents named parameter values for literal SQL fragments.
// Named parameters are written as :name.
//
// Example:
//
//	q.Where("id = :id AND status = :status", core.Params{"id": 1, "status": "active"})
type Params map[string]any

var (
	// namedPlaceholderRegex matches named parameter placeholders :name.
	namedPlaceholderRegex = regexp.MustCompile(`:(\w+)`)

	// quoteRegex matches table and column quoting syntax.
	// {{table_name}} - quotes table name (double curly braces)
	// [[column_name]] - quotes column name (double square brackets)
	// Pattern matches word characters, hyphens, dots, and spaces to support schema.table format.
	quoteRegex = regexp.MustCompile(`(\{\{[\w\-. ]+\}\}|\[\[[\w\-. ]+\]\])`)
)

// quoteBrackets quotes {{table}} and [[column]] references with the dialect quoting.
// For schema-prefixed identifiers like {{schema.table}}, each part is quoted separately.
func quoteBrackets(d dialects.Dialect, sql string) string {
	if !strings.Contains(sql, "{{") && !strings.Contains(sql, "[[") {
		return sql
	}
	return quoteRegex.ReplaceAllStringFunc(sql, func(match string) string {
		parts := strings.Split(match[2:len(match)-2], ".")
		for i, part := range parts {
			parts[i] = strings.TrimSpace(part)
		}
		return d.QuoteIdentifier(strings.Join(parts, "."))
	})
}

// positionalSQL replaces named placeholders with the dialect's positional
// placeholders ($1, ? or @p1) in order of appearance and returns the bindings
// in that order. A placeholder used twice is bound twice.
//
// Colons inside quoted strings and PostgreSQL casts (::type) are left alone.
// A placeholder with no binding is an ErrMissingParameter error.
func positionalSQL(d dialects.Dialect, sql string, b *ValueBinder) (string, []Binding, error) {
	matches := namedPlaceholderRegex.FindAllStringSubmatchIndex(sql, -1)
	if len(matches) == 0 {
		return sql, nil, nil
	}

	var (
		out      strings.Builder
		ordered  []Binding
		last     int
		inQuotes bool
		scanned  int
	)
	for _, m := range matches {
		start, end := m[0], m[1]
		inQuotes = toggleQuotes(sql[scanned:start], inQuotes)
		scanned = start
		if inQuotes || (start > 0 && sql[start-1] == ':') {
			continue
		}

		binding, ok := b.Lookup(sql[start:end])
		if !ok {
			return "", nil, fmt.Errorf("%w: %s", ErrMissingParameter, sql[start:end])
		}
		ordered = append(ordered, binding)

		out.WriteString(sql[last:start])
		out.WriteString(d.Placeholder(len(ordered)))
		last = end
	}
	out.WriteString(sql[last:])
	return out.String(), ordered, nil
}

// toggleQuotes flips the quoted state once per single quote in s.
func toggleQuotes(s string, inQuotes bool) bool {
	if strings.Count(s, "'")%2 == 1 {
		return !inQuotes
	}
	return inQuotes
}
