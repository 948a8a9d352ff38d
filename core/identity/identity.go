// Package identity describes who is calling and which slice of a school they can see.
package identity

import "github.com/trezcool/shala/core"

type Role string

const (
	RolePrincipal Role = "principal"
	RoleTeacher   Role = "teacher"
)

func (r Role) Valid() bool {
	return r == RolePrincipal || r == RoleTeacher
}

var errNoClassAssigned = core.NewForbiddenError("no class assigned to this teacher")

// Principal is the authenticated caller, as supplied by the identity provider.
type Principal struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Role     Role   `json:"role"`
	SchoolID string `json:"school_id"`
	Class    string `json:"class,omitempty"`   // teachers only
	Section  string `json:"section,omitempty"` // teachers only
}

func (p Principal) IsPrincipal() bool { return p.Role == RolePrincipal }
func (p Principal) IsTeacher() bool   { return p.Role == RoleTeacher }

// Scope computes the caller's RoleScope.
// Principals see their whole school. Teachers see their assigned class (and section, if any).
// A teacher with no assigned class gets an empty scope.
func (p Principal) Scope() Scope {
	switch p.Role {
	case RolePrincipal:
		return Scope{SchoolID: p.SchoolID}
	case RoleTeacher:
		if p.Class == "" {
			return Scope{SchoolID: p.SchoolID, empty: true}
		}
		return Scope{SchoolID: p.SchoolID, Class: p.Class, Section: p.Section}
	default:
		return Scope{SchoolID: p.SchoolID, empty: true}
	}
}

// WritableScope returns the caller's scope, or a core.ForbiddenError if it is empty.
func (p Principal) WritableScope() (Scope, error) {
	sc := p.Scope()
	if sc.IsEmpty() || sc.SchoolID == "" {
		return sc, errNoClassAssigned
	}
	return sc, nil
}

// Scope is the set of students visible to a caller: one school, optionally narrowed to a class and section.
// An empty Class (or Section) means "every class" (or "every section").
type Scope struct {
	SchoolID string
	Class    string
	Section  string

	empty bool
}

// SchoolScope returns the scope covering every student of a school.
func SchoolScope(schoolID string) Scope {
	return Scope{SchoolID: schoolID}
}

// EmptyScope returns a scope that contains no student.
func EmptyScope(schoolID string) Scope {
	return Scope{SchoolID: schoolID, empty: true}
}

func (s Scope) IsEmpty() bool { return s.empty }

// Contains reports whether a student of `schoolID` in `class`/`section` is within the scope.
func (s Scope) Contains(schoolID, class, section string) bool {
	if s.empty || schoolID != s.SchoolID {
		return false
	}
	if s.Class != "" && s.Class != class {
		return false
	}
	if s.Section != "" && s.Section != section {
		return false
	}
	return true
}

// Narrow intersects the scope with optional class and section filters.
// A filter that falls outside the scope yields an empty scope.
func (s Scope) Narrow(class, section string) Scope {
	if s.empty {
		return s
	}
	class = core.CleanString(class)
	section = core.CleanString(section)

	if class != "" {
		if s.Class != "" && s.Class != class {
			return EmptyScope(s.SchoolID)
		}
		s.Class = class
	}
	if section != "" {
		if s.Section != "" && s.Section != section {
			return EmptyScope(s.SchoolID)
		}
		s.Section = section
	}
	return s
}
