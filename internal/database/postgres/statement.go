package postgres

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/joacominatel/pgkksql/internal/database"
)

// PrepareQuery trims user SQL and applies the row limit policy. SELECTs
// without any LIMIT token get " LIMIT n" appended when limit > 0.
func PrepareQuery(query string, limit int) (stmt string, isSelect bool) {
	stmt = strings.TrimSpace(query)
	for strings.HasSuffix(stmt, ";") {
		stmt = strings.TrimSpace(strings.TrimSuffix(stmt, ";"))
	}

	upper := strings.ToUpper(stmt)
	isSelect = IsSelect(stmt)

	if isSelect && limit > 0 && !strings.Contains(upper, "LIMIT") {
		stmt += " LIMIT " + strconv.Itoa(limit)
	}
	return stmt, isSelect
}

// IsSelect reports whether the trimmed statement starts with SELECT.
func IsSelect(query string) bool {
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "SELECT")
}

// TableQuery selects every row of a table, ordered by its primary key when
// it has one.
func TableQuery(schema, table string, primaryKeys []string) string {
	q := "SELECT * FROM " + pgx.Identifier{schema, table}.Sanitize()
	if len(primaryKeys) == 0 {
		return q
	}
	order := make([]string, len(primaryKeys))
	for i, pk := range primaryKeys {
		order[i] = pgx.Identifier{pk}.Sanitize()
	}
	return q + " ORDER BY " + strings.Join(order, ", ") + " ASC"
}

// BuildCellUpdate renders a parameterized single-cell UPDATE. $1 is the new
// value, followed by the key values in primary key order.
func BuildCellUpdate(u database.CellUpdate) (string, []any, error) {
	if err := u.Validate(); err != nil {
		return "", nil, err
	}

	target := pgx.Identifier{u.Table}
	if u.Schema != "" {
		target = pgx.Identifier{u.Schema, u.Table}
	}

	where := make([]string, len(u.PrimaryKeys))
	for i, pk := range u.PrimaryKeys {
		where[i] = fmt.Sprintf("%s = $%d", pgx.Identifier{pk}.Sanitize(), i+2)
	}

	sql := fmt.Sprintf("UPDATE %s SET %s = $1 WHERE %s",
		target.Sanitize(),
		pgx.Identifier{u.Column}.Sanitize(),
		strings.Join(where, " AND "),
	)

	args := make([]any, 0, len(u.KeyValues)+1)
	args = append(args, u.Value)
	args = append(args, u.KeyValues...)

	return sql, args, nil
}
