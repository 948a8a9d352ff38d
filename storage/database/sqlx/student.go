package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shala/core/identity"
	"github.com/trezcool/shala/core/student"
)

var studentColumns = []string{
	"s.id", "s.school_id", "s.name", "s.class", "s.section", "s.roll_number", "s.parent_contact", "s.is_active",
}

type studentRepository struct {
	exec DBExecutor
}

var _ student.Repository = (*studentRepository)(nil)

func NewStudentRepository(exec DBExecutor) student.Repository {
	return &studentRepository{exec: exec}
}

func activeStudentsQuery(sc identity.Scope, ids ...string) sq.SelectBuilder {
	b := inScope(psql.Select(studentColumns...).From("students s"), sc)
	if len(ids) > 0 {
		b = b.Where(sq.Eq{"s.id": ids})
	}
	return b.OrderBy(registerOrder)
}

func (repo *studentRepository) QueryActive(ctx context.Context, sc identity.Scope, ids ...string) ([]student.Student, error) {
	stds := make([]student.Student, 0)
	if sc.IsEmpty() {
		return stds, nil
	}

	q, args, err := activeStudentsQuery(sc, ids...).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	if err = sqlx.SelectContext(ctx, repo.exec, &stds, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting students")
	}
	return stds, nil
}
