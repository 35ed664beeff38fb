package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaks.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// orderClause translates a "-column" style sort spec into an ORDER BY
// expression, falling back to def for unknown input.
func orderClause(orderBy, def string) string {
	orderBy = strings.TrimSpace(orderBy)
	if orderBy == "" {
		return def
	}

	dir := "ASC"
	if strings.HasPrefix(orderBy, "-") {
		dir = "DESC"
		orderBy = orderBy[1:]
	}

	// Column names come from a fixed UI vocabulary; reject anything that
	// does not look like an identifier.
	for _, ch := range orderBy {
		if ch >= 'a' && ch <= 'z' || ch == '_' {
			continue
		}
		return def
	}

	return orderBy + " " + dir
}
