package attendance

import (
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shala/core"
)

type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
	StatusHoliday Status = "holiday"
)

var Statuses = []Status{StatusPresent, StatusAbsent, StatusLate, StatusHoliday}

func (s Status) Valid() bool {
	for _, st := range Statuses {
		if s == st {
			return true
		}
	}
	return false
}

// Record is the attendance status of one student on one day. There is at most one per (student, date).
type Record struct {
	ID        string      `json:"id" db:"id"`
	StudentID string      `json:"student_id" db:"student_id"`
	SchoolID  string      `json:"school_id" db:"school_id"`
	Date      core.Date   `json:"date" db:"date"`
	Status    Status      `json:"status" db:"status"`
	Remarks   null.String `json:"remarks" db:"remarks"`
	MarkedBy  string      `json:"marked_by" db:"marked_by"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"` // UTC
}

type Entry struct {
	StudentID string `json:"student_id"`
	Status    Status `json:"status"`
	Remarks   string `json:"remarks,omitempty"`
}

// MarkAttendance is a batch of marks for one day.
// Entries are validated one by one while marking; an invalid entry does not fail the batch.
type MarkAttendance struct {
	Date    string  `json:"date" validate:"required,date"`
	Entries []Entry `json:"entries" validate:"required,min=1"`
}

// Validate checks the request-level fields and returns the parsed date.
func (ma *MarkAttendance) Validate(validate *validator.Validate, today core.Date) (core.Date, error) {
	ma.Date = core.CleanString(ma.Date)
	if err := validate.Struct(ma); err != nil {
		return core.Date{}, err
	}
	date, err := core.ParseDate(ma.Date)
	if err != nil {
		return core.Date{}, core.NewValidationError(err, core.FieldError{Field: "date", Error: err.Error()})
	}
	if date.After(today) {
		return core.Date{}, core.NewValidationError(nil, core.FieldError{Field: "date", Error: "cannot mark attendance for a future date"})
	}
	return date, nil
}

type ErrorKind string

const (
	ErrKindValidation  ErrorKind = "validation"
	ErrKindNotFound    ErrorKind = "not_found"
	ErrKindForbidden   ErrorKind = "forbidden"
	ErrKindPersistence ErrorKind = "persistence"
)

// EntryError explains why one entry of a batch was not recorded.
type EntryError struct {
	StudentID string    `json:"student_id"`
	Kind      ErrorKind `json:"kind"`
	Error     string    `json:"error"`
}

type MarkResult struct {
	Date              core.Date    `json:"date"`
	Present           int          `json:"present"`
	Absent            int          `json:"absent"`
	Late              int          `json:"late"`
	Holiday           int          `json:"holiday"`
	TotalProcessed    int          `json:"total_processed"`
	Failed            int          `json:"failed"`
	NotificationsSent int          `json:"notifications_sent"`
	Errors            []EntryError `json:"errors"`
}

func (r *MarkResult) count(s Status) {
	switch s {
	case StatusPresent:
		r.Present++
	case StatusAbsent:
		r.Absent++
	case StatusLate:
		r.Late++
	case StatusHoliday:
		r.Holiday++
	}
}

func (r *MarkResult) fail(studentID string, kind ErrorKind, msg string) {
	r.Errors = append(r.Errors, EntryError{StudentID: studentID, Kind: kind, Error: msg})
	r.Failed++
}

// Summary counts the explicit marks of one day. Unmarked students are not counted as absent.
type Summary struct {
	Date          core.Date `json:"date"`
	Present       int       `json:"present" db:"present"`
	Absent        int       `json:"absent" db:"absent"`
	Late          int       `json:"late" db:"late"`
	Holiday       int       `json:"holiday" db:"holiday"`
	Total         int       `json:"total" db:"total"` // marked students
	TotalStudents int       `json:"total_students" db:"total_students"`
	Unmarked      int       `json:"unmarked"`
}

// ClassEntry is one row of a class register: an active student and their mark of the day, if any.
type ClassEntry struct {
	StudentID  string      `json:"student_id" db:"student_id"`
	Name       string      `json:"name" db:"name"`
	Class      string      `json:"class" db:"class"`
	Section    string      `json:"section" db:"section"`
	RollNumber int         `json:"roll_number" db:"roll_number"`
	Status     null.String `json:"status" db:"status"`
	Remarks    null.String `json:"remarks" db:"remarks"`
}

type ListFilter struct {
	Date    core.Date
	Class   string
	Section string
}

// ExportRow is a Record joined with its student.
type ExportRow struct {
	Date       core.Date   `json:"date" db:"date"`
	StudentID  string      `json:"student_id" db:"student_id"`
	Name       string      `json:"name" db:"name"`
	Class      string      `json:"class" db:"class"`
	Section    string      `json:"section" db:"section"`
	RollNumber int         `json:"roll_number" db:"roll_number"`
	Status     Status      `json:"status" db:"status"`
	Remarks    null.String `json:"remarks" db:"remarks"`
	MarkedBy   string      `json:"marked_by" db:"marked_by"`
}

// ExportColumns is the CSV header matching ExportRow.Strings.
var ExportColumns = []string{"date", "student_id", "name", "class", "section", "roll_number", "status", "remarks"}

func (r ExportRow) Strings() []string {
	return []string{
		r.Date.String(), r.StudentID, r.Name, r.Class, r.Section,
		strconv.Itoa(r.RollNumber), string(r.Status), r.Remarks.String,
	}
}
