// Package student is the read side of the student directory. Enrollment lives elsewhere.
package student

import (
	"context"

	"github.com/trezcool/shala/core"
	"github.com/trezcool/shala/core/identity"
)

var ErrNotFound = core.NewNotFoundError("student not found")

type Student struct {
	ID            string `json:"id" db:"id"`
	SchoolID      string `json:"school_id" db:"school_id"`
	Name          string `json:"name" db:"name"`
	Class         string `json:"class" db:"class"`
	Section       string `json:"section" db:"section"`
	RollNumber    int    `json:"roll_number" db:"roll_number"`
	ParentContact string `json:"parent_contact" db:"parent_contact"`
	IsActive      bool   `json:"is_active" db:"is_active"`
}

// Repository gives access to the students of a school.
// Every query applies the same "active students in scope" predicate.
type Repository interface {
	// QueryActive returns the active students within `sc`, ordered by class, section and roll number.
	// When ids are given, the result is further restricted to them.
	QueryActive(ctx context.Context, sc identity.Scope, ids ...string) ([]Student, error)
}

// Less orders students by class, section then roll number.
func Less(a, b Student) bool {
	if a.Class != b.Class {
		return a.Class < b.Class
	}
	if a.Section != b.Section {
		return a.Section < b.Section
	}
	return a.RollNumber < b.RollNumber
}

// Index maps students by ID.
func Index(students []Student) map[string]Student {
	idx := make(map[string]Student, len(students))
	for _, s := range students {
		idx[s.ID] = s
	}
	return idx
}
