package app

import (
	"strings"

	"github.com/joacominatel/pgkksql/internal/database"
)

// MaxCandidates caps the suggestions returned for one word.
const MaxCandidates = 20

var sqlKeywords = []string{
	"SELECT", "FROM", "WHERE", "AND", "OR", "NOT", "IN", "LIKE", "ILIKE",
	"ORDER BY", "GROUP BY", "HAVING", "LIMIT", "OFFSET", "JOIN", "LEFT JOIN",
	"RIGHT JOIN", "INNER JOIN", "OUTER JOIN", "ON", "AS", "DISTINCT",
	"INSERT INTO", "VALUES", "UPDATE", "SET", "DELETE FROM", "CREATE TABLE",
	"ALTER TABLE", "DROP TABLE", "NULL", "IS NULL", "IS NOT NULL",
	"ASC", "DESC", "COUNT", "SUM", "AVG", "MIN", "MAX", "BETWEEN", "CASE",
	"WHEN", "THEN", "ELSE", "END", "COALESCE", "CAST", "TRUE", "FALSE",
}

// Completer suggests keywords and catalog names for the word under the
// cursor.
type Completer struct {
	tables    []string
	qualified []string
	columns   []string
}

// NewCompleter returns a completer that only knows keywords.
func NewCompleter() *Completer {
	return &Completer{}
}

// SetCatalog replaces the table and column names.
func (c *Completer) SetCatalog(tables []database.TableName, columns []string) {
	c.tables = make([]string, len(tables))
	c.qualified = make([]string, len(tables))
	for i, t := range tables {
		c.tables[i] = t.Name
		c.qualified[i] = t.String()
	}
	c.columns = columns
}

// Candidates returns suggestions containing word, keywords first, then
// table names, qualified table names and columns. Duplicates are dropped
// case-insensitively, keeping the first spelling.
func (c *Completer) Candidates(word string) []string {
	if word == "" {
		return nil
	}
	upper := strings.ToUpper(word)
	lower := strings.ToLower(word)

	seen := make(map[string]struct{})
	var out []string
	add := func(s string) bool {
		key := strings.ToLower(s)
		if _, dup := seen[key]; dup {
			return true
		}
		seen[key] = struct{}{}
		out = append(out, s)
		return len(out) < MaxCandidates
	}

	for _, kw := range sqlKeywords {
		if strings.Contains(kw, upper) && !add(kw) {
			return out
		}
	}
	for _, group := range [][]string{c.tables, c.qualified, c.columns} {
		for _, name := range group {
			if strings.Contains(strings.ToLower(name), lower) && !add(name) {
				return out
			}
		}
	}
	return out
}
