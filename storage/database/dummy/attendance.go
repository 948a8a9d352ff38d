package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/shala/core"
	"github.com/trezcool/shala/core/attendance"
	"github.com/trezcool/shala/core/identity"
	"github.com/trezcool/shala/core/report"
	"github.com/trezcool/shala/core/student"
)

type attendanceRepository struct {
	db *DB
}

var (
	_ attendance.Repository = (*attendanceRepository)(nil)
	_ report.Repository     = (*attendanceRepository)(nil)
)

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

// UpsertRecord keeps the ID and creation time of an existing (student, date) record.
func (repo *attendanceRepository) UpsertRecord(_ context.Context, rec attendance.Record) (attendance.Record, error) {
	repo.db.attendance.Lock()
	defer repo.db.attendance.Unlock()

	key := recordKey{studentID: rec.StudentID, date: rec.Date.String()}
	if orig, ok := repo.db.attendance.table[key]; ok {
		orig.Status = rec.Status
		orig.Remarks = rec.Remarks
		orig.MarkedBy = rec.MarkedBy
		orig.UpdatedAt = rec.UpdatedAt
		return *orig, nil
	}
	repo.db.attendance.table[key] = &rec
	return rec, nil
}

type markedRecord struct {
	attendance.Record
	idx int // position of the student in the snapshot
}

// snapshot returns the active students within `sc` (in register order) and their records between `from` and `to`.
func (repo *attendanceRepository) snapshot(sc identity.Scope, from, to core.Date) ([]student.Student, []markedRecord) {
	repo.db.student.RLock()
	defer repo.db.student.RUnlock()
	repo.db.attendance.RLock()
	defer repo.db.attendance.RUnlock()

	stds := repo.db.activeInScope(sc)
	pos := make(map[string]int, len(stds))
	for i, s := range stds {
		pos[s.ID] = i
	}
	recs := make([]markedRecord, 0)
	for _, rec := range repo.db.attendance.table {
		i, ok := pos[rec.StudentID]
		if !ok || !rec.Date.Between(from, to) {
			continue
		}
		recs = append(recs, markedRecord{Record: *rec, idx: i})
	}
	return stds, recs
}

func (repo *attendanceRepository) CountDay(_ context.Context, sc identity.Scope, date core.Date) (attendance.Summary, error) {
	stds, recs := repo.snapshot(sc, date, date)
	sum := attendance.Summary{Date: date, TotalStudents: len(stds)}
	for _, rec := range recs {
		switch rec.Status {
		case attendance.StatusPresent:
			sum.Present++
		case attendance.StatusAbsent:
			sum.Absent++
		case attendance.StatusLate:
			sum.Late++
		case attendance.StatusHoliday:
			sum.Holiday++
		}
		sum.Total++
	}
	return sum, nil
}

func (repo *attendanceRepository) QueryRegister(_ context.Context, sc identity.Scope, date core.Date) ([]attendance.ClassEntry, error) {
	repo.db.student.RLock()
	defer repo.db.student.RUnlock()
	repo.db.attendance.RLock()
	defer repo.db.attendance.RUnlock()

	stds := repo.db.activeInScope(sc)
	entries := make([]attendance.ClassEntry, 0, len(stds))
	for _, s := range stds {
		e := attendance.ClassEntry{
			StudentID:  s.ID,
			Name:       s.Name,
			Class:      s.Class,
			Section:    s.Section,
			RollNumber: s.RollNumber,
		}
		if rec, ok := repo.db.attendance.table[recordKey{studentID: s.ID, date: date.String()}]; ok {
			e.Status.SetValid(string(rec.Status))
			e.Remarks = rec.Remarks
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (repo *attendanceRepository) QueryRange(_ context.Context, sc identity.Scope, from, to core.Date) ([]attendance.ExportRow, error) {
	stds, recs := repo.snapshot(sc, from, to)

	rows := make([]attendance.ExportRow, 0, len(recs))
	positions := make([]int, 0, len(recs))
	for _, rec := range recs {
		s := stds[rec.idx]
		rows = append(rows, attendance.ExportRow{
			Date:       rec.Date,
			StudentID:  s.ID,
			Name:       s.Name,
			Class:      s.Class,
			Section:    s.Section,
			RollNumber: s.RollNumber,
			Status:     rec.Status,
			Remarks:    rec.Remarks,
			MarkedBy:   rec.MarkedBy,
		})
		positions = append(positions, rec.idx)
	}

	// newest first, then in register order
	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ra, rb := rows[idx[a]], rows[idx[b]]
		if !ra.Date.Equal(rb.Date) {
			return ra.Date.After(rb.Date)
		}
		return positions[idx[a]] < positions[idx[b]]
	})
	sorted := make([]attendance.ExportRow, len(rows))
	for i, j := range idx {
		sorted[i] = rows[j]
	}
	return sorted, nil
}

func (repo *attendanceRepository) TallyStudents(_ context.Context, sc identity.Scope, from, to core.Date) ([]report.StudentTally, error) {
	stds, recs := repo.snapshot(sc, from, to)

	tallies := make([]report.StudentTally, len(stds))
	for i, s := range stds {
		tallies[i] = report.StudentTally{
			StudentID:  s.ID,
			Name:       s.Name,
			Class:      s.Class,
			Section:    s.Section,
			RollNumber: s.RollNumber,
		}
	}
	for _, rec := range recs {
		t := &tallies[rec.idx]
		switch rec.Status {
		case attendance.StatusPresent:
			t.PresentDays++
		case attendance.StatusAbsent:
			t.AbsentDays++
		case attendance.StatusLate:
			t.LateDays++
		case attendance.StatusHoliday:
			t.HolidayDays++
			continue
		}
		t.TotalMarkedDays++
	}
	return tallies, nil
}

func (repo *attendanceRepository) QueryClassDays(_ context.Context, sc identity.Scope, from, to core.Date) ([]report.ClassDay, error) {
	stds, recs := repo.snapshot(sc, from, to)

	type dayKey struct{ class, section, date string }
	seen := make(map[dayKey]bool)
	days := make([]report.ClassDay, 0)
	for _, rec := range recs {
		s := stds[rec.idx]
		key := dayKey{s.Class, s.Section, rec.Date.String()}
		if !seen[key] {
			seen[key] = true
			days = append(days, report.ClassDay{Class: s.Class, Section: s.Section, Date: rec.Date})
		}
	}
	return days, nil
}
