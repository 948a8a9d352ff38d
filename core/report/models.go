package report

import (
	"math"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shala/core"
)

// StudentTally counts the marks of one active student over a date range.
type StudentTally struct {
	StudentID            string       `json:"student_id" db:"student_id"`
	Name                 string       `json:"name" db:"name"`
	Class                string       `json:"class" db:"class"`
	Section              string       `json:"section" db:"section"`
	RollNumber           int          `json:"roll_number" db:"roll_number"`
	PresentDays          int          `json:"present_days" db:"present_days"`
	AbsentDays           int          `json:"absent_days" db:"absent_days"`
	LateDays             int          `json:"late_days" db:"late_days"`
	HolidayDays          int          `json:"holiday_days" db:"holiday_days"`
	TotalMarkedDays      int          `json:"total_marked_days" db:"total_marked_days"`
	AttendancePercentage null.Float64 `json:"attendance_percentage" db:"-"`
}

// ClassDay is a day on which at least one student of a class section was marked.
type ClassDay struct {
	Class   string    `db:"class"`
	Section string    `db:"section"`
	Date    core.Date `db:"date"`
}

type Totals struct {
	TotalStudents        int          `json:"total_students"`
	WorkingDays          int          `json:"working_days"`
	Present              int          `json:"present"`
	Absent               int          `json:"absent"`
	Late                 int          `json:"late"`
	Holiday              int          `json:"holiday"`
	Marked               int          `json:"marked"`
	AttendancePercentage null.Float64 `json:"attendance_percentage"`
}

func (t *Totals) add(st StudentTally) {
	t.TotalStudents++
	t.Present += st.PresentDays
	t.Absent += st.AbsentDays
	t.Late += st.LateDays
	t.Holiday += st.HolidayDays
	t.Marked += st.TotalMarkedDays
}

type ClassSummary struct {
	Class   string `json:"class"`
	Section string `json:"section"`
	Totals
}

type Report struct {
	From     core.Date      `json:"from"`
	To       core.Date      `json:"to"`
	Students []StudentTally `json:"students"`
	Classes  []ClassSummary `json:"classes"`
	Totals   Totals         `json:"totals"`
}

type Statistics struct {
	From                 core.Date    `json:"from"`
	To                   core.Date    `json:"to"`
	TotalStudents        int          `json:"total_students"`
	TotalDays            int          `json:"total_days"`
	Present              int          `json:"present"`
	Absent               int          `json:"absent"`
	Late                 int          `json:"late"`
	Holiday              int          `json:"holiday"`
	Marked               int          `json:"marked"`
	AttendancePercentage null.Float64 `json:"attendance_percentage"`
}

// Percentage returns present/marked as a percentage rounded to 2 decimals, or null when nothing was marked.
// Late marks count as marked days but not as present ones. Holidays are not marked days.
func Percentage(present, marked int) null.Float64 {
	if marked <= 0 {
		return null.Float64{}
	}
	pct := float64(present) * 100 / float64(marked)
	return null.Float64From(math.Round(pct*100) / 100)
}
