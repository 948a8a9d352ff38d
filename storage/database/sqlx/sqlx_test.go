package sqlxrepos

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shala/core"
	"github.com/trezcool/shala/core/attendance"
	"github.com/trezcool/shala/core/identity"
	"github.com/trezcool/shala/core/notice"
)

type sqlizer interface {
	ToSql() (string, []interface{}, error)
}

func toSQL(t *testing.T, b sqlizer) (string, []interface{}) {
	q, args, err := b.ToSql()
	require.NoError(t, err)
	return q, args
}

func TestInScope(t *testing.T) {
	tests := []struct {
		name     string
		scope    identity.Scope
		contains []string
		absent   []string
		args     []interface{}
	}{
		{
			name:     "school",
			scope:    identity.SchoolScope("school-1"),
			contains: []string{"s.is_active = $1", "s.school_id = $2"},
			absent:   []string{"s.class", "s.section"},
			args:     []interface{}{true, "school-1"},
		},
		{
			name:     "class",
			scope:    identity.SchoolScope("school-1").Narrow("5", ""),
			contains: []string{"s.class = $3"},
			absent:   []string{"s.section"},
			args:     []interface{}{true, "school-1", "5"},
		},
		{
			name:     "class section",
			scope:    identity.SchoolScope("school-1").Narrow("5", "A"),
			contains: []string{"s.class = $3", "s.section = $4"},
			args:     []interface{}{true, "school-1", "5", "A"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, args := toSQL(t, activeStudentsQuery(tt.scope))
			where, order, found := strings.Cut(q, "ORDER BY")
			require.True(t, found)
			for _, s := range tt.contains {
				assert.Contains(t, where, s)
			}
			for _, s := range tt.absent {
				assert.NotContains(t, where, s)
			}
			assert.Equal(t, " s.class, s.section, s.roll_number, s.id", order)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestActiveStudentsQuery_ids(t *testing.T) {
	q, args := toSQL(t, activeStudentsQuery(identity.SchoolScope("school-1"), "s1", "s2"))
	assert.Contains(t, q, "s.id IN ($3,$4)")
	assert.Equal(t, []interface{}{true, "school-1", "s1", "s2"}, args)
}

func TestUpsertRecordQuery(t *testing.T) {
	now := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	rec := attendance.Record{
		ID:        "r1",
		StudentID: "s1",
		SchoolID:  "school-1",
		Date:      core.NewDate(2024, time.March, 15),
		Status:    attendance.StatusAbsent,
		Remarks:   null.StringFrom("sick"),
		MarkedBy:  "t1",
		CreatedAt: now,
		UpdatedAt: now,
	}

	q, args := toSQL(t, upsertRecordQuery(rec))
	assert.Contains(t, q, "INSERT INTO attendance (id,student_id,school_id,date,status,remarks,marked_by,created_at,updated_at)")
	assert.Contains(t, q, "VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)")
	assert.Contains(t, q, "ON CONFLICT (student_id, date) DO UPDATE SET")
	assert.NotContains(t, q, "created_at = EXCLUDED.created_at")
	assert.Contains(t, q, "RETURNING "+recordColumns)
	assert.Len(t, args, 9)
	assert.Equal(t, "absent", args[4])
}

func TestRegisterQueries(t *testing.T) {
	sc := identity.SchoolScope("school-1").Narrow("5", "A")
	day := core.NewDate(2024, time.March, 15)

	q, args := toSQL(t, countDayQuery(sc, day))
	assert.Contains(t, q, "FROM students s LEFT JOIN attendance a ON a.student_id = s.id AND a.date BETWEEN $1 AND $2")
	assert.Contains(t, q, "COUNT(*) AS total_students")
	assert.Equal(t, []interface{}{day, day, true, "school-1", "5", "A"}, args)

	q, _ = toSQL(t, registerQuery(sc, day))
	assert.Contains(t, q, "a.status, a.remarks FROM students s LEFT JOIN attendance a")
	assert.Contains(t, q, "ORDER BY "+registerOrder)

	from, to := core.MonthRange(2024, time.January)
	q, args = toSQL(t, tallyQuery(sc, from, to))
	assert.Contains(t, q, "COUNT(a.id) FILTER (WHERE a.status <> 'holiday') AS total_marked_days")
	assert.Contains(t, q, "GROUP BY s.id")
	assert.Equal(t, []interface{}{from, to, true, "school-1", "5", "A"}, args)
}

func TestMarkedInQueries(t *testing.T) {
	sc := identity.SchoolScope("school-1")
	from, to := core.MonthRange(2024, time.February)

	q, args := toSQL(t, rangeQuery(sc, from, to))
	assert.Contains(t, q, "FROM attendance a JOIN students s ON s.id = a.student_id")
	assert.Contains(t, q, "a.date >= $1")
	assert.Contains(t, q, "a.date <= $2")
	assert.Contains(t, q, "ORDER BY a.date DESC, "+registerOrder)
	// operator predicates hand the driver value of a date over, not the date itself
	assert.Equal(t, []interface{}{"2024-02-01", "2024-02-29", true, "school-1"}, args)

	q, _ = toSQL(t, classDaysQuery(sc, from, to))
	assert.Contains(t, q, "SELECT DISTINCT s.class, s.section, a.date")
}

func TestQueryNoticesQuery(t *testing.T) {
	tests := []struct {
		name     string
		filter   notice.QueryFilter
		contains []string
		args     []interface{}
	}{
		{
			name:     "defaults",
			contains: []string{"WHERE school_id = $1", "ORDER BY created_at DESC, id"},
			args:     []interface{}{"school-1"},
		},
		{
			name:     "type",
			filter:   notice.QueryFilter{Type: notice.TypeUrgent},
			contains: []string{"type = $2"},
			args:     []interface{}{"school-1", "urgent"},
		},
		{
			name:     "search is escaped",
			filter:   notice.QueryFilter{Search: "100%"},
			contains: []string{"title ILIKE $2", "body ILIKE $3"},
			args:     []interface{}{"school-1", `%100\%%`, `%100\%%`},
		},
		{
			name: "orderings and page",
			filter: notice.QueryFilter{
				Orderings: []core.DBOrdering{{Field: "priority"}, {Field: "title", Ascending: true}},
				Page:      core.Page{Limit: 10, Offset: 20},
			},
			contains: []string{
				"ORDER BY CASE priority WHEN 'low' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END DESC, title ASC, created_at DESC, id",
				"LIMIT 10 OFFSET 20",
			},
			args: []interface{}{"school-1"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, args := toSQL(t, queryNoticesQuery("school-1", tt.filter))
			for _, s := range tt.contains {
				assert.Contains(t, q, s)
			}
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestMarkReadQuery(t *testing.T) {
	at := time.Date(2024, time.March, 15, 10, 0, 0, 0, time.UTC)
	q, args := toSQL(t, markReadQuery("n1", "u1", at))
	assert.Contains(t, q, "(SELECT school_id FROM notices WHERE id = $3)")
	assert.Contains(t, q, "ON CONFLICT (notice_id, user_id) DO UPDATE SET read_at = EXCLUDED.read_at")
	assert.Equal(t, []interface{}{"n1", "u1", "n1", at}, args)
}

func TestCountUnreadQuery(t *testing.T) {
	today := core.NewDate(2024, time.March, 15)
	q, args := toSQL(t, countUnreadQuery("school-1", "u1", today))
	assert.Contains(t, q, "LEFT JOIN notice_reads r ON r.notice_id = n.id AND r.user_id = $1")
	assert.Contains(t, q, "r.notice_id IS NULL")
	assert.Contains(t, q, "n.expiry_date IS NULL OR n.expiry_date >= $3")
	assert.Equal(t, []interface{}{"u1", "school-1", "2024-03-15"}, args)
}

func TestStudyMessagesQuery(t *testing.T) {
	q, args := toSQL(t, studyMessagesQuery("school-1", "t1", notice.StudyFilter{From: core.NewDate(2024, time.March, 1), Limit: 5}))
	assert.Contains(t, q, "author_id = $2")
	assert.Contains(t, q, "date >= $3")
	assert.Contains(t, q, "ORDER BY date DESC, created_at DESC LIMIT 5")
	assert.Len(t, args, 3)

	q, args = toSQL(t, studyMessagesQuery("school-1", "", notice.StudyFilter{}))
	assert.NotContains(t, q, "author_id =")
	assert.Equal(t, []interface{}{"school-1"}, args)
}
