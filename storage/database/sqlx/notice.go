package sqlxrepos

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shala/core"
	"github.com/trezcool/shala/core/notice"
)

var noticeColumns = []string{
	"id", "school_id", "author_id", "title", "body", "type", "priority", "audience",
	"target_class", "target_section", "recipient_count", "expiry_date", "created_at", "updated_at",
}

var studyMessageColumns = []string{
	"id", "school_id", "author_id", "subject", "body", "date", "audience",
	"target_class", "target_section", "recipient_count", "created_at",
}

// noticeOrderings maps the orderable fields to SQL expressions.
var noticeOrderings = map[string]string{
	"created_at": "created_at",
	"priority":   "CASE priority WHEN 'low' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END",
	"title":      "title",
	"type":       "type",
}

type noticeRepository struct {
	exec DBExecutor
}

var _ notice.Repository = (*noticeRepository)(nil)

func NewNoticeRepository(exec DBExecutor) notice.Repository {
	return &noticeRepository{exec: exec}
}

func (repo *noticeRepository) CreateNotice(ctx context.Context, n notice.Notice) (notice.Notice, error) {
	q, args, err := psql.Insert("notices").
		Columns(noticeColumns...).
		Values(n.ID, n.SchoolID, n.AuthorID, n.Title, n.Body, string(n.Type), string(n.Priority), string(n.Audience),
			n.TargetClass, n.TargetSection, n.RecipientCount, n.ExpiryDate, n.CreatedAt.UTC(), n.UpdatedAt.UTC()).
		ToSql()
	if err != nil {
		return notice.Notice{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.exec.ExecContext(ctx, q, args...); err != nil {
		return notice.Notice{}, errors.Wrap(err, "inserting notice")
	}
	return n, nil
}

func (repo *noticeRepository) GetNotice(ctx context.Context, schoolID, id string) (notice.Notice, error) {
	q, args, err := psql.Select(noticeColumns...).From("notices").
		Where(sq.Eq{"id": id, "school_id": schoolID}).
		ToSql()
	if err != nil {
		return notice.Notice{}, errors.Wrap(err, "building query")
	}
	var n notice.Notice
	if err = sqlx.GetContext(ctx, repo.exec, &n, q, args...); err != nil {
		if isNoRows(err) {
			return notice.Notice{}, notice.ErrNotFound
		}
		return notice.Notice{}, errors.Wrap(err, "selecting notice")
	}
	return n, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func queryNoticesQuery(schoolID string, filter notice.QueryFilter) sq.SelectBuilder {
	b := psql.Select(noticeColumns...).From("notices").Where(sq.Eq{"school_id": schoolID})
	if filter.Type != "" {
		b = b.Where(sq.Eq{"type": string(filter.Type)})
	}
	if !filter.From.IsZero() {
		b = b.Where(sq.GtOrEq{"(created_at AT TIME ZONE 'UTC')::date": filter.From})
	}
	if !filter.To.IsZero() {
		b = b.Where(sq.LtOrEq{"(created_at AT TIME ZONE 'UTC')::date": filter.To})
	}
	if filter.Search != "" {
		pattern := "%" + likeEscaper.Replace(filter.Search) + "%"
		b = b.Where(sq.Or{sq.ILike{"title": pattern}, sq.ILike{"body": pattern}})
	}

	orderBys := make([]string, 0, len(filter.Orderings)+2)
	for _, ord := range filter.Orderings {
		if expr, ok := noticeOrderings[ord.Field]; ok {
			orderBys = append(orderBys, core.DBOrdering{Field: expr, Ascending: ord.Ascending}.String())
		}
	}
	b = b.OrderBy(append(orderBys, "created_at DESC", "id")...)

	if filter.Page.Limit > 0 {
		b = b.Limit(uint64(filter.Page.Limit))
	}
	if filter.Page.Offset > 0 {
		b = b.Offset(uint64(filter.Page.Offset))
	}
	return b
}

func (repo *noticeRepository) QueryNotices(ctx context.Context, schoolID string, filter notice.QueryFilter) ([]notice.Notice, error) {
	q, args, err := queryNoticesQuery(schoolID, filter).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	notices := make([]notice.Notice, 0)
	if err = sqlx.SelectContext(ctx, repo.exec, &notices, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting notices")
	}
	return notices, nil
}

func (repo *noticeRepository) UpdateNotice(ctx context.Context, n notice.Notice) (notice.Notice, error) {
	q, args, err := psql.Update("notices").
		SetMap(map[string]interface{}{
			"title":       n.Title,
			"body":        n.Body,
			"type":        string(n.Type),
			"priority":    string(n.Priority),
			"expiry_date": n.ExpiryDate,
			"updated_at":  n.UpdatedAt.UTC(),
		}).
		Where(sq.Eq{"id": n.ID, "school_id": n.SchoolID}).
		Suffix("RETURNING " + strings.Join(noticeColumns, ", ")).
		ToSql()
	if err != nil {
		return notice.Notice{}, errors.Wrap(err, "building query")
	}
	var updated notice.Notice
	if err = sqlx.GetContext(ctx, repo.exec, &updated, q, args...); err != nil {
		if isNoRows(err) {
			return notice.Notice{}, notice.ErrNotFound
		}
		return notice.Notice{}, errors.Wrap(err, "updating notice")
	}
	return updated, nil
}

// DeleteNotice relies on ON DELETE CASCADE to drop the read receipts.
func (repo *noticeRepository) DeleteNotice(ctx context.Context, schoolID, id string) error {
	q, args, err := psql.Delete("notices").Where(sq.Eq{"id": id, "school_id": schoolID}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	res, err := repo.exec.ExecContext(ctx, q, args...)
	if err != nil {
		return errors.Wrap(err, "deleting notice")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notice.ErrNotFound
	}
	return nil
}

func (repo *noticeRepository) CountByType(ctx context.Context, schoolID string, since time.Time) (map[notice.Type]int, error) {
	b := psql.Select("type", "COUNT(*) AS count").From("notices").Where(sq.Eq{"school_id": schoolID}).GroupBy("type")
	if !since.IsZero() {
		b = b.Where(sq.GtOrEq{"created_at": since.UTC()})
	}
	q, args, err := b.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}

	var rows []struct {
		Type  notice.Type `db:"type"`
		Count int         `db:"count"`
	}
	if err = sqlx.SelectContext(ctx, repo.exec, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "counting notices")
	}
	counts := make(map[notice.Type]int, len(rows))
	for _, r := range rows {
		counts[r.Type] = r.Count
	}
	return counts, nil
}

func markReadQuery(noticeID, userID string, at time.Time) sq.InsertBuilder {
	return psql.Insert("notice_reads").
		Columns("notice_id", "user_id", "school_id", "read_at").
		Values(noticeID, userID, sq.Expr("(SELECT school_id FROM notices WHERE id = ?)", noticeID), at.UTC()).
		Suffix("ON CONFLICT (notice_id, user_id) DO UPDATE SET read_at = EXCLUDED.read_at")
}

func (repo *noticeRepository) MarkRead(ctx context.Context, noticeID, userID string, at time.Time) error {
	q, args, err := markReadQuery(noticeID, userID, at).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	if _, err = repo.exec.ExecContext(ctx, q, args...); err != nil {
		switch pqCode(err) {
		case foreignKeyViolation, notNullViolation:
			return notice.ErrNotFound
		}
		return errors.Wrap(err, "marking notice as read")
	}
	return nil
}

func countUnreadQuery(schoolID, userID string, today core.Date) sq.SelectBuilder {
	return psql.Select("COUNT(*)").From("notices n").
		LeftJoin("notice_reads r ON r.notice_id = n.id AND r.user_id = ?", userID).
		Where(sq.Eq{"n.school_id": schoolID, "r.notice_id": nil}).
		Where(sq.Or{sq.Eq{"n.expiry_date": nil}, sq.GtOrEq{"n.expiry_date": today}})
}

func (repo *noticeRepository) CountUnread(ctx context.Context, schoolID, userID string, today core.Date) (int, error) {
	q, args, err := countUnreadQuery(schoolID, userID, today).ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	var count int
	if err = sqlx.GetContext(ctx, repo.exec, &count, q, args...); err != nil {
		return 0, errors.Wrap(err, "counting unread notices")
	}
	return count, nil
}

func (repo *noticeRepository) CreateStudyMessage(ctx context.Context, m notice.StudyMessage) (notice.StudyMessage, error) {
	q, args, err := psql.Insert("study_messages").
		Columns(studyMessageColumns...).
		Values(m.ID, m.SchoolID, m.AuthorID, m.Subject, m.Body, m.Date, string(m.Audience),
			m.TargetClass, m.TargetSection, m.RecipientCount, m.CreatedAt.UTC()).
		ToSql()
	if err != nil {
		return notice.StudyMessage{}, errors.Wrap(err, "building query")
	}
	if _, err = repo.exec.ExecContext(ctx, q, args...); err != nil {
		return notice.StudyMessage{}, errors.Wrap(err, "inserting study message")
	}
	return m, nil
}

func studyMessagesQuery(schoolID, authorID string, filter notice.StudyFilter) sq.SelectBuilder {
	b := psql.Select(studyMessageColumns...).From("study_messages").Where(sq.Eq{"school_id": schoolID})
	if authorID != "" {
		b = b.Where(sq.Eq{"author_id": authorID})
	}
	if !filter.From.IsZero() {
		b = b.Where(sq.GtOrEq{"date": filter.From})
	}
	if !filter.To.IsZero() {
		b = b.Where(sq.LtOrEq{"date": filter.To})
	}
	b = b.OrderBy("date DESC", "created_at DESC")
	if filter.Limit > 0 {
		b = b.Limit(uint64(filter.Limit))
	}
	return b
}

func (repo *noticeRepository) QueryStudyMessages(ctx context.Context, schoolID, authorID string, filter notice.StudyFilter) ([]notice.StudyMessage, error) {
	q, args, err := studyMessagesQuery(schoolID, authorID, filter).ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	msgs := make([]notice.StudyMessage, 0)
	if err = sqlx.SelectContext(ctx, repo.exec, &msgs, q, args...); err != nil {
		return nil, errors.Wrap(err, "selecting study messages")
	}
	return msgs, nil
}
