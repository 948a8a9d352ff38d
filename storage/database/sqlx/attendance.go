package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shala/core"
	"github.com/trezcool/shala/core/attendance"
	"github.com/trezcool/shala/core/identity"
	"github.com/trezcool/shala/core/report"
)

const recordColumns = "id, student_id, school_id, date, status, remarks, marked_by, created_at, updated_at"

// a (student, date) conflict keeps the original id and created_at
const upsertRecordSuffix = "ON CONFLICT (student_id, date) DO UPDATE SET " +
	"status = EXCLUDED.status, remarks = EXCLUDED.remarks, marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at " +
	"RETURNING " + recordColumns

type attendanceRepository struct {
	exec DBExecutor
}

var (
	_ attendance.Repository = (*attendanceRepository)(nil)
	_ report.Repository     = (*attendanceRepository)(nil)
)

func NewAttendanceRepository(exec DBExecutor) *attendanceRepository {
	return &attendanceRepository{exec: exec}
}

func upsertRecordQuery(rec attendance.Record) sq.InsertBuilder {
	return psql.Insert("attendance").
		Columns("id", "student_id", "school_id", "date", "status", "remarks", "marked_by", "created_at", "updated_at").
		Values(rec.ID, rec.StudentID, rec.SchoolID, rec.Date, string(rec.Status), rec.Remarks, rec.MarkedBy,
			rec.CreatedAt.UTC(), rec.UpdatedAt.UTC()).
		Suffix(upsertRecordSuffix)
}

func (repo *attendanceRepository) UpsertRecord(ctx context.Context, rec attendance.Record) (attendance.Record, error) {
	q, args, err := upsertRecordQuery(rec).ToSql()
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "building query")
	}
	var saved attendance.Record
	if err = sqlx.GetContext(ctx, repo.exec, &saved, q, args...); err != nil {
		return attendance.Record{}, errors.Wrap(err, "upserting attendance")
	}
	return saved, nil
}

// registerJoin joins the students in scope with their marks between `from` and `to`.
func registerJoin(b sq.SelectBuilder, sc identity.Scope, from, to core.Date) sq.SelectBuilder {
	b = b.From("students s").LeftJoin("attendance a ON a.student_id = s.id AND a.date BETWEEN ? AND ?", from, to)
	return inScope(b, sc)
}

func countDayQuery(sc identity.Scope, date core.Date) sq.SelectBuilder {
	return registerJoin(psql.Select(
		"COUNT(a.id) FILTER (WHERE a.status = 'present') AS present",
		"COUNT(a.id) FILTER (WHERE a.status = 'absent') AS absent",
		"COUNT(a.id) FILTER (WHERE a.status = 'late') AS late",
		"COUNT(a.id) FILTER (WHERE a.status = 'holiday') AS holiday",
		"COUNT(a.id) AS total",
		"COUNT(*) AS total_students",
	), sc, date, date)
}

func (repo *attendanceRepository) CountDay(ctx context.Context, sc identity.Scope, date core.Date) (attendance.Summary, error) {
	q, args, err := countDayQuery(sc, date).ToSql()
	if err != nil {
		return attendance.Summary{}, errors.Wrap(err, "building query")
	}
	var sum attendance.Summary
	if err = sqlx.GetContext(ctx, repo.exec, &sum, q, args...); err != nil {
		return attendance.Summary{}, errors.Wrap(err, "counting attendance")
	}
	return sum, nil
}

func registerQuery(sc identity.Scope, date core.Date) sq.SelectBuilder {
	return registerJoin(psql.Select(
		"s.id AS student_id", "s.name", "s.class", "s.section", "s.roll_number", "a.status", "a.remarks",
	), sc, date, date).OrderBy(registerOrder)
}

func (repo *attendanceRepository) QueryRegister(ctx context.Context, sc identity.Scope, date core.Date) ([]attendance.ClassEntry, error) {
	q, args, err := registerQuery(sc, date).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	entries := make([]attendance.ClassEntry, 0)
	if err = sqlx.SelectContext(ctx, repo.exec, &entries, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting register")
	}
	return entries, nil
}

// markedIn selects the marks of the students in scope between `from` and `to`; students without marks are left out.
func markedIn(b sq.SelectBuilder, sc identity.Scope, from, to core.Date) sq.SelectBuilder {
	b = b.From("attendance a").Join("students s ON s.id = a.student_id").
		Where(sq.GtOrEq{"a.date": from}).
		Where(sq.LtOrEq{"a.date": to})
	return inScope(b, sc)
}

func rangeQuery(sc identity.Scope, from, to core.Date) sq.SelectBuilder {
	return markedIn(psql.Select(
		"a.date", "s.id AS student_id", "s.name", "s.class", "s.section", "s.roll_number", "a.status", "a.remarks", "a.marked_by",
	), sc, from, to).OrderBy("a.date DESC", registerOrder)
}

func (repo *attendanceRepository) QueryRange(ctx context.Context, sc identity.Scope, from, to core.Date) ([]attendance.ExportRow, error) {
	q, args, err := rangeQuery(sc, from, to).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	rows := make([]attendance.ExportRow, 0)
	if err = sqlx.SelectContext(ctx, repo.exec, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting attendance")
	}
	return rows, nil
}

func tallyQuery(sc identity.Scope, from, to core.Date) sq.SelectBuilder {
	return registerJoin(psql.Select(
		"s.id AS student_id", "s.name", "s.class", "s.section", "s.roll_number",
		"COUNT(a.id) FILTER (WHERE a.status = 'present') AS present_days",
		"COUNT(a.id) FILTER (WHERE a.status = 'absent') AS absent_days",
		"COUNT(a.id) FILTER (WHERE a.status = 'late') AS late_days",
		"COUNT(a.id) FILTER (WHERE a.status = 'holiday') AS holiday_days",
		"COUNT(a.id) FILTER (WHERE a.status <> 'holiday') AS total_marked_days",
	), sc, from, to).GroupBy("s.id").OrderBy(registerOrder)
}

func (repo *attendanceRepository) TallyStudents(ctx context.Context, sc identity.Scope, from, to core.Date) ([]report.StudentTally, error) {
	q, args, err := tallyQuery(sc, from, to).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	tallies := make([]report.StudentTally, 0)
	if err = sqlx.SelectContext(ctx, repo.exec, &tallies, q, args...); err != nil {
		return nil, errors.Wrap(err, "tallying attendance")
	}
	return tallies, nil
}

func classDaysQuery(sc identity.Scope, from, to core.Date) sq.SelectBuilder {
	return markedIn(psql.Select("s.class", "s.section", "a.date").Distinct(), sc, from, to).
		OrderBy("s.class", "s.section", "a.date")
}

func (repo *attendanceRepository) QueryClassDays(ctx context.Context, sc identity.Scope, from, to core.Date) ([]report.ClassDay, error) {
	q, args, err := classDaysQuery(sc, from, to).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	days := make([]report.ClassDay, 0)
	if err = sqlx.SelectContext(ctx, repo.exec, &days, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting class days")
	}
	return days, nil
}
