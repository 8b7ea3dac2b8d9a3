package sqlloaders

import (
	"database/sql"
	"errors"
	"strings"
)

// isNoRows reports whether err is (or wraps) sql.ErrNoRows.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// placeholders returns "?,?,...,?" for n positional SQLite parameters.
func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// argsForStrings converts a []string into []any for variadic
// QueryContext calls.
func argsForStrings(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
