package postgres

import (
	"errors"
	"fmt"
	"strings"

	"github.com/campusevents/server/internal/api/pagination"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// uniqueViolationOn reports whether err is a unique violation of the named
// constraint.
func uniqueViolationOn(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolation && pgErr.ConstraintName == constraint
}

// orderClause renders an ORDER BY from an allowlisted column expression. The
// direction is re-parsed so only ASC or DESC is ever interpolated.
func orderClause(column string, order pagination.SortOrder, tiebreak string) string {
	dir := pagination.ParseSortOrder(string(order), pagination.Asc)
	clause := fmt.Sprintf("ORDER BY %s %s", column, dir)
	if tiebreak != "" {
		clause += ", " + tiebreak
	}
	return clause
}

// escapeILIKEPattern escapes LIKE metacharacters so user text matches
// literally. Callers add the surrounding wildcards.
func escapeILIKEPattern(value string) string {
	return ilikeEscaper.Replace(value)
}

var ilikeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func containsPattern(value string) string {
	return "%" + escapeILIKEPattern(value) + "%"
}

// args accumulates positional parameters for dynamically filtered queries.
type args []any

func (a *args) add(v any) string {
	*a = append(*a, v)
	return fmt.Sprintf("$%d", len(*a))
}
