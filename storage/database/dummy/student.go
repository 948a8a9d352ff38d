package dummydb

import (
	"context"
	"sort"

	"github.com/trezcool/shala/core/identity"
	"github.com/trezcool/shala/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) QueryActive(_ context.Context, sc identity.Scope, ids ...string) ([]student.Student, error) {
	repo.db.student.RLock()
	defer repo.db.student.RUnlock()

	stds := repo.db.activeInScope(sc)
	if len(ids) == 0 {
		return stds, nil
	}

	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	filtered := make([]student.Student, 0, len(ids))
	for _, s := range stds {
		if wanted[s.ID] {
			filtered = append(filtered, s)
		}
	}
	return filtered, nil
}

func sortStudents(stds []student.Student) {
	sort.SliceStable(stds, func(i, j int) bool {
		if student.Less(stds[i], stds[j]) {
			return true
		}
		if student.Less(stds[j], stds[i]) {
			return false
		}
		return stds[i].ID < stds[j].ID
	})
}
