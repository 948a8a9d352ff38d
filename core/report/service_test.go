package report_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shala/core"
	"github.com/trezcool/shala/core/attendance"
	"github.com/trezcool/shala/core/identity"
	"github.com/trezcool/shala/core/notify"
	"github.com/trezcool/shala/core/report"
	"github.com/trezcool/shala/storage/database/dummy"
	"github.com/trezcool/shala/tests"
)

type fixture struct {
	db         *dummydb.DB
	attendance attendance.Service
	svc        report.Service
}

func setup(t *testing.T) *fixture {
	testutil.FreezeTime(t, time.Date(2024, time.March, 15, 8, 0, 0, 0, time.UTC))

	db := testutil.PrepareDB(t)
	logger := testutil.NewLogger(t)
	conf := core.NewTestConfig()
	repo := dummydb.NewAttendanceRepository(db)

	testutil.CreateStudent(t, db, "s1", "Amani", "5", "A", 1, "")
	testutil.CreateStudent(t, db, "s2", "Baraka", "5", "A", 2, "")
	testutil.CreateStudent(t, db, "s3", "Chausiku", "5", "B", 1, "")
	testutil.CreateStudent(t, db, "s4", "Dalila", "6", "A", 1, "")

	return &fixture{
		db: db,
		attendance: attendance.NewService(
			repo, dummydb.NewStudentRepository(db), notify.NewSyncEventBus(logger), testutil.NewValidator(), logger, conf,
		),
		svc: report.NewService(repo, conf),
	}
}

func (f *fixture) mark(t *testing.T, date string, entries ...attendance.Entry) {
	_, err := f.attendance.Mark(context.Background(), testutil.Principal("p1"), attendance.MarkAttendance{Date: date, Entries: entries})
	require.NoError(t, err)
}

func absent(id string) attendance.Entry {
	return attendance.Entry{StudentID: id, Status: attendance.StatusAbsent}
}
func present(id string) attendance.Entry {
	return attendance.Entry{StudentID: id, Status: attendance.StatusPresent}
}

func findStudent(rep report.Report, id string) report.StudentTally {
	for _, st := range rep.Students {
		if st.StudentID == id {
			return st
		}
	}
	return report.StudentTally{}
}

func TestService_Monthly(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.mark(t, "2024-01-10", absent("s1"), present("s2"))
	f.mark(t, "2024-01-11", present("s1"), present("s3"))
	f.mark(t, "2024-01-12", attendance.Entry{StudentID: "s1", Status: attendance.StatusHoliday})
	f.mark(t, "2024-02-01", absent("s1")) // another month

	rep, err := f.svc.Monthly(ctx, testutil.Teacher("t1", "5", "A"), 2024, 1, "", "")
	require.NoError(t, err)

	assert.Equal(t, "2024-01-01", rep.From.String())
	assert.Equal(t, "2024-01-31", rep.To.String())
	require.Len(t, rep.Students, 2)

	s1 := rep.Students[0]
	assert.Equal(t, "s1", s1.StudentID)
	assert.Equal(t, 1, s1.PresentDays)
	assert.Equal(t, 1, s1.AbsentDays)
	assert.Equal(t, 1, s1.HolidayDays)
	assert.Equal(t, 2, s1.TotalMarkedDays, "holidays are not marked days")
	assert.Equal(t, null.Float64From(50), s1.AttendancePercentage)

	assert.Equal(t, null.Float64From(100), rep.Students[1].AttendancePercentage)

	require.Len(t, rep.Classes, 1)
	assert.Equal(t, report.ClassSummary{
		Class:   "5",
		Section: "A",
		Totals: report.Totals{
			TotalStudents:        2,
			WorkingDays:          3,
			Present:              2,
			Absent:               1,
			Holiday:              1,
			Marked:               3,
			AttendancePercentage: null.Float64From(66.67),
		},
	}, rep.Classes[0])
}

func TestService_Monthly_scope(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.mark(t, "2024-03-01", present("s1"), absent("s3"), present("s4"))

	tests := []struct {
		name      string
		principal identity.Principal
		class     string
		section   string
		want      []string
	}{
		{name: "principal", principal: testutil.Principal("p1"), want: []string{"s1", "s2", "s3", "s4"}},
		{name: "principal, class filter", principal: testutil.Principal("p1"), class: "5", want: []string{"s1", "s2", "s3"}},
		{name: "principal, section filter", principal: testutil.Principal("p1"), class: "5", section: "B", want: []string{"s3"}},
		{name: "teacher", principal: testutil.Teacher("t1", "5", ""), want: []string{"s1", "s2", "s3"}},
		{name: "teacher, other class", principal: testutil.Teacher("t1", "5", ""), class: "6", want: []string{}},
		{name: "teacher without class", principal: testutil.Teacher("t2", "", ""), want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep, err := f.svc.Monthly(ctx, tt.principal, 2024, 3, tt.class, tt.section)
			require.NoError(t, err)

			ids := make([]string, 0, len(rep.Students))
			for _, st := range rep.Students {
				ids = append(ids, st.StudentID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestService_Monthly_nullPercentage(t *testing.T) {
	f := setup(t)
	f.mark(t, "2024-03-04", present("s1"), attendance.Entry{StudentID: "s2", Status: attendance.StatusHoliday})

	rep, err := f.svc.Monthly(context.Background(), testutil.Principal("p1"), 2024, 3, "5", "A")
	require.NoError(t, err)

	s2 := findStudent(rep, "s2")
	assert.Equal(t, 0, s2.TotalMarkedDays)
	assert.False(t, s2.AttendancePercentage.Valid, "no marked day means undefined attendance")

	rep, err = f.svc.Monthly(context.Background(), testutil.Principal("p1"), 2024, 2, "", "")
	require.NoError(t, err)
	assert.Len(t, rep.Students, 4)
	assert.False(t, rep.Totals.AttendancePercentage.Valid)
	assert.Equal(t, 0, rep.Totals.WorkingDays)
}

func TestService_inactiveStudentsExcluded(t *testing.T) {
	f := setup(t)
	f.mark(t, "2024-03-04", present("s1"), absent("s2"))
	f.db.SetStudentActive("s2", false)

	rep, err := f.svc.Monthly(context.Background(), testutil.Principal("p1"), 2024, 3, "5", "A")
	require.NoError(t, err)
	require.Len(t, rep.Students, 1)
	assert.Equal(t, 1, rep.Totals.TotalStudents)
	assert.Equal(t, 0, rep.Totals.Absent)
}

func TestService_additivity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := testutil.Principal("p1")

	f.mark(t, "2024-02-05", present("s1"), absent("s2"), present("s3"))
	f.mark(t, "2024-02-14", absent("s1"), absent("s2"))
	f.mark(t, "2024-02-15", present("s1"), attendance.Entry{StudentID: "s4", Status: attendance.StatusLate})
	f.mark(t, "2024-02-29", present("s2"))

	month, err := f.svc.Monthly(ctx, p, 2024, 2, "", "")
	require.NoError(t, err)
	first, err := f.svc.Range(ctx, p, core.NewDate(2024, time.February, 1), core.NewDate(2024, time.February, 14), "", "")
	require.NoError(t, err)
	second, err := f.svc.Range(ctx, p, core.NewDate(2024, time.February, 15), core.NewDate(2024, time.February, 29), "", "")
	require.NoError(t, err)

	for i, st := range month.Students {
		a, b := first.Students[i], second.Students[i]
		assert.Equal(t, st.PresentDays, a.PresentDays+b.PresentDays, st.StudentID)
		assert.Equal(t, st.AbsentDays, a.AbsentDays+b.AbsentDays, st.StudentID)
		assert.Equal(t, st.LateDays, a.LateDays+b.LateDays, st.StudentID)
		assert.Equal(t, st.TotalMarkedDays, a.TotalMarkedDays+b.TotalMarkedDays, st.StudentID)
	}
	assert.Equal(t, month.Totals.Marked, first.Totals.Marked+second.Totals.Marked)
	assert.Equal(t, month.Totals.WorkingDays, first.Totals.WorkingDays+second.Totals.WorkingDays)

	year, err := f.svc.Yearly(ctx, p, 2024, "", "")
	require.NoError(t, err)
	assert.Equal(t, month.Totals, year.Totals)
}

func TestService_Statistics(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	f.mark(t, "2024-01-02", present("s1")) // older than 30 days
	f.mark(t, "2024-02-20", present("s1"), absent("s2"), present("s3"))
	f.mark(t, "2024-03-15", present("s1"), attendance.Entry{StudentID: "s2", Status: attendance.StatusLate})

	got, err := f.svc.Statistics(ctx, testutil.Principal("p1"), core.Date{}, core.Date{})
	require.NoError(t, err)
	assert.Equal(t, report.Statistics{
		From:                 core.NewDate(2024, time.February, 15),
		To:                   core.NewDate(2024, time.March, 15),
		TotalStudents:        4,
		TotalDays:            2,
		Present:              3,
		Absent:               1,
		Late:                 1,
		Marked:               5,
		AttendancePercentage: null.Float64From(60),
	}, got)

	got, err = f.svc.Statistics(ctx, testutil.Teacher("t1", "5", "B"), core.NewDate(2024, time.January, 1), core.Date{})
	require.NoError(t, err)
	assert.Equal(t, 1, got.TotalStudents)
	assert.Equal(t, 1, got.TotalDays)
	assert.Equal(t, null.Float64From(100), got.AttendancePercentage)
}

func TestService_validation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	p := testutil.Principal("p1")

	tests := []struct {
		name string
		run  func() error
	}{
		{name: "month 0", run: func() error { _, err := f.svc.Monthly(ctx, p, 2024, 0, "", ""); return err }},
		{name: "month 13", run: func() error { _, err := f.svc.Monthly(ctx, p, 2024, 13, "", ""); return err }},
		{name: "year too small", run: func() error { _, err := f.svc.Yearly(ctx, p, 1899, "", ""); return err }},
		{name: "year too big", run: func() error { _, err := f.svc.Monthly(ctx, p, 10000, 1, "", ""); return err }},
		{name: "range without bounds", run: func() error {
			_, err := f.svc.Range(ctx, p, core.Date{}, core.NewDate(2024, time.March, 1), "", "")
			return err
		}},
		{name: "reversed range", run: func() error {
			_, err := f.svc.Range(ctx, p, core.NewDate(2024, time.March, 2), core.NewDate(2024, time.March, 1), "", "")
			return err
		}},
		{name: "reversed statistics", run: func() error {
			_, err := f.svc.Statistics(ctx, p, core.NewDate(2024, time.March, 16), core.NewDate(2024, time.March, 1))
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.True(t, core.IsValidation(err))
		})
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		present, marked int
		want            null.Float64
	}{
		{1, 2, null.Float64From(50)},
		{2, 3, null.Float64From(66.67)},
		{1, 3, null.Float64From(33.33)},
		{0, 4, null.Float64From(0)},
		{0, 0, null.Float64{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, report.Percentage(tt.present, tt.marked))
	}
}
