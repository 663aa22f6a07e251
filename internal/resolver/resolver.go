// Package resolver guesses which single table a SELECT reads from so that its
// result can be bound for editing. It is a heuristic, not a parser: joins,
// multi-table FROM lists, subqueries and CTEs do not resolve.
package resolver

import (
	"regexp"
	"strings"
)

// DefaultSchema is assumed for unqualified table names.
const DefaultSchema = "public"

type pattern struct {
	re        *regexp.Regexp
	qualified bool
}

// Tried in order; the first match wins.
var patterns = []pattern{
	{regexp.MustCompile(`(?i)FROM\s+"([^"]+)"\s*\.\s*"([^"]+)"`), true},
	{regexp.MustCompile(`(?i)FROM\s+([a-zA-Z_][a-zA-Z0-9_]*)\s*\.\s*([a-zA-Z_][a-zA-Z0-9_]*)`), true},
	{regexp.MustCompile(`(?i)FROM\s+"([^"]+)"(?:\s|$|WHERE|ORDER|GROUP|LIMIT)`), false},
	{regexp.MustCompile(`(?i)FROM\s+([a-zA-Z_][a-zA-Z0-9_]*)(?:\s|$|WHERE|ORDER|GROUP|LIMIT)`), false},
}

// Resolve returns the schema and table a query selects from, or two empty
// strings when it cannot tell.
func Resolve(query string) (schema, table string) {
	query = trim(query)
	if HasJoin(query) {
		return "", ""
	}

	for _, p := range patterns {
		m := p.re.FindStringSubmatch(query)
		if m == nil {
			continue
		}
		if p.qualified {
			return m[1], m[2]
		}
		return DefaultSchema, m[1]
	}
	return "", ""
}

// HasJoin reports whether the query contains a space-delimited JOIN keyword.
func HasJoin(query string) bool {
	return strings.Contains(strings.ToUpper(query), " JOIN ")
}

func trim(query string) string {
	query = strings.TrimSpace(query)
	for strings.HasSuffix(query, ";") {
		query = strings.TrimSpace(strings.TrimSuffix(query, ";"))
	}
	return query
}
