package dummydb

import (
	"sync"

	"github.com/trezcool/shala/core/attendance"
	"github.com/trezcool/shala/core/identity"
	"github.com/trezcool/shala/core/notice"
	"github.com/trezcool/shala/core/student"
)

type (
	// DB is an in-memory store. Each table is guarded by its own lock.
	DB struct {
		student    *studentTable
		attendance *attendanceTable
		notice     *noticeTable
	}

	studentTable struct {
		sync.RWMutex
		table map[string]*student.Student
	}

	// attendanceTable is keyed by (student_id, date).
	attendanceTable struct {
		sync.RWMutex
		table map[recordKey]*attendance.Record
	}

	recordKey struct {
		studentID string
		date      string
	}

	noticeTable struct {
		sync.RWMutex
		notices  map[string]*notice.Notice
		reads    map[readKey]readReceipt
		messages map[string]*notice.StudyMessage
	}

	readKey struct {
		noticeID string
		userID   string
	}
)

func Open() (*DB, error) {
	db := &DB{
		student:    &studentTable{table: make(map[string]*student.Student)},
		attendance: &attendanceTable{table: make(map[recordKey]*attendance.Record)},
		notice: &noticeTable{
			notices:  make(map[string]*notice.Notice),
			reads:    make(map[readKey]readReceipt),
			messages: make(map[string]*notice.StudyMessage),
		},
	}
	return db, nil
}

// AddStudents enrolls students. Enrollment is not part of the core; this is for tests and demos.
func (db *DB) AddStudents(students ...student.Student) {
	db.student.Lock()
	defer db.student.Unlock()
	for _, s := range students {
		s := s
		db.student.table[s.ID] = &s
	}
}

// SetStudentActive soft-deletes (or restores) a student.
func (db *DB) SetStudentActive(id string, active bool) {
	db.student.Lock()
	defer db.student.Unlock()
	if s, ok := db.student.table[id]; ok {
		s.IsActive = active
	}
}

// activeInScope is the "active students in scope" predicate of the in-memory store.
// The caller must hold the student table's lock.
func (db *DB) activeInScope(sc identity.Scope) []student.Student {
	if sc.IsEmpty() {
		return nil
	}
	stds := make([]student.Student, 0)
	for _, s := range db.student.table {
		if s.IsActive && sc.Contains(s.SchoolID, s.Class, s.Section) {
			stds = append(stds, *s)
		}
	}
	sortStudents(stds)
	return stds
}
