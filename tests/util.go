package testutil

import (
	"testing"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shala/core"
	"github.com/trezcool/shala/core/identity"
	"github.com/trezcool/shala/core/student"
	"github.com/trezcool/shala/storage/database/dummy"
)

const SchoolID = "school-1"

// PrepareDB opens an empty in-memory store.
func PrepareDB(t *testing.T) *dummydb.DB {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed: %v", err)
	}
	return db
}

func NewValidator() *validator.Validate {
	validate := validator.New()
	core.InitValidators(validate, core.NewTranslator())
	return validate
}

// FreezeTime sets core.NowFunc to `now` until the test ends.
func FreezeTime(t *testing.T, now time.Time) {
	core.NowFunc = func() time.Time { return now }
	t.Cleanup(func() { core.NowFunc = time.Now })
}

func CreateStudent(
	t *testing.T,
	db *dummydb.DB,
	id, name, class, section string,
	roll int,
	contact string,
	schoolID ...string,
) student.Student {
	school := SchoolID
	if len(schoolID) > 0 {
		school = schoolID[0]
	}
	s := student.Student{
		ID:            id,
		SchoolID:      school,
		Name:          name,
		Class:         class,
		Section:       section,
		RollNumber:    roll,
		ParentContact: contact,
		IsActive:      true,
	}
	db.AddStudents(s)
	return s
}

func Principal(userID string) identity.Principal {
	return identity.Principal{UserID: userID, Name: "Principal " + userID, Role: identity.RolePrincipal, SchoolID: SchoolID}
}

func Teacher(userID, class, section string) identity.Principal {
	return identity.Principal{
		UserID:   userID,
		Name:     "Teacher " + userID,
		Role:     identity.RoleTeacher,
		SchoolID: SchoolID,
		Class:    class,
		Section:  section,
	}
}
