// Package sqlxrepos implements the repositories on PostgreSQL, with queries built by squirrel and scanned by sqlx.
package sqlxrepos

import (
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/trezcool/shala/core/identity"
)

// DBExecutor is satisfied by *sqlx.DB and *sqlx.Tx.
type DBExecutor interface {
	sqlx.ExtContext
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// postgres error codes
const (
	foreignKeyViolation = "23503"
	notNullViolation    = "23502"
)

// inScope restricts a query on the `students` table aliased as `s` to the active students within `sc`.
func inScope(b sq.SelectBuilder, sc identity.Scope) sq.SelectBuilder {
	b = b.Where(sq.Eq{"s.school_id": sc.SchoolID, "s.is_active": true})
	if sc.Class != "" {
		b = b.Where(sq.Eq{"s.class": sc.Class})
	}
	if sc.Section != "" {
		b = b.Where(sq.Eq{"s.section": sc.Section})
	}
	return b
}

const registerOrder = "s.class, s.section, s.roll_number, s.id"

func isNoRows(err error) bool {
	return errors.Cause(err) == sql.ErrNoRows
}

func pqCode(err error) string {
	if pqErr, ok := errors.Cause(err).(*pq.Error); ok {
		return string(pqErr.Code)
	}
	return ""
}
