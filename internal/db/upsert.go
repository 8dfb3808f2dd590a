package db

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// InsertIgnoreSQL builds a multi-row INSERT ... ON CONFLICT DO NOTHING
// statement with positional placeholders, returning the SQL and the flattened
// argument list. Used for geo-resolution flushes, where an existing row for a
// key must never be overwritten.
func InsertIgnoreSQL(table string, columns []string, conflictKeys []string, rows [][]any) (string, []any) {
	if len(rows) == 0 {
		return "", nil
	}

	args := make([]any, 0, len(rows)*len(columns))
	values := make([]string, 0, len(rows))
	for i, row := range rows {
		placeholders := make([]string, len(columns))
		for j := range columns {
			placeholders[j] = fmt.Sprintf("$%d", i*len(columns)+j+1)
		}
		values = append(values, "("+strings.Join(placeholders, ", ")+")")
		args = append(args, row...)
	}

	sql := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES %s ON CONFLICT (%s) DO NOTHING",
		sanitizeTable(table),
		quoteAndJoin(columns),
		strings.Join(values, ", "),
		quoteAndJoin(conflictKeys),
	)
	return sql, args
}

// sanitizeTable handles schema-qualified table names like "public.dim_ssic".
func sanitizeTable(table string) string {
	parts := strings.SplitN(table, ".", 2)
	if len(parts) == 2 {
		return pgx.Identifier{parts[0], parts[1]}.Sanitize()
	}
	return pgx.Identifier{table}.Sanitize()
}

// quoteAndJoin quotes each column name and joins with commas.
func quoteAndJoin(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return strings.Join(quoted, ", ")
}
