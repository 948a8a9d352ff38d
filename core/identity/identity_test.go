package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/shala/core"
)

func TestPrincipal_Scope(t *testing.T) {
	tests := []struct {
		name      string
		principal Principal
		want      Scope
	}{
		{
			name:      "principal sees the whole school",
			principal: Principal{Role: RolePrincipal, SchoolID: "s1", Class: "5", Section: "A"},
			want:      Scope{SchoolID: "s1"},
		},
		{
			name:      "teacher sees their class and section",
			principal: Principal{Role: RoleTeacher, SchoolID: "s1", Class: "5", Section: "A"},
			want:      Scope{SchoolID: "s1", Class: "5", Section: "A"},
		},
		{
			name:      "teacher without section sees the whole class",
			principal: Principal{Role: RoleTeacher, SchoolID: "s1", Class: "5"},
			want:      Scope{SchoolID: "s1", Class: "5"},
		},
		{
			name:      "teacher without class sees nothing",
			principal: Principal{Role: RoleTeacher, SchoolID: "s1"},
			want:      EmptyScope("s1"),
		},
		{
			name:      "unknown role sees nothing",
			principal: Principal{Role: "parent", SchoolID: "s1"},
			want:      EmptyScope("s1"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.principal.Scope())
		})
	}
}

func TestPrincipal_WritableScope(t *testing.T) {
	_, err := Principal{Role: RoleTeacher, SchoolID: "s1"}.WritableScope()
	assert.True(t, core.IsForbidden(err))

	sc, err := Principal{Role: RoleTeacher, SchoolID: "s1", Class: "5"}.WritableScope()
	assert.NoError(t, err)
	assert.Equal(t, "5", sc.Class)
}

func TestScope_Contains(t *testing.T) {
	teacher := Scope{SchoolID: "s1", Class: "5", Section: "A"}

	tests := []struct {
		name    string
		scope   Scope
		school  string
		class   string
		section string
		want    bool
	}{
		{name: "same section", scope: teacher, school: "s1", class: "5", section: "A", want: true},
		{name: "other section", scope: teacher, school: "s1", class: "5", section: "B"},
		{name: "other class", scope: teacher, school: "s1", class: "6", section: "A"},
		{name: "other school", scope: teacher, school: "s2", class: "5", section: "A"},
		{name: "school wide", scope: SchoolScope("s1"), school: "s1", class: "9", section: "Z", want: true},
		{name: "empty", scope: EmptyScope("s1"), school: "s1", class: "5", section: "A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.scope.Contains(tt.school, tt.class, tt.section))
		})
	}
}

func TestScope_Narrow(t *testing.T) {
	teacher := Scope{SchoolID: "s1", Class: "5", Section: "A"}

	tests := []struct {
		name    string
		scope   Scope
		class   string
		section string
		want    Scope
	}{
		{name: "no filters", scope: teacher, want: teacher},
		{name: "same filters", scope: teacher, class: "5", section: "A", want: teacher},
		{name: "cross section", scope: teacher, class: "5", section: "B", want: EmptyScope("s1")},
		{name: "cross class", scope: teacher, class: "6", want: EmptyScope("s1")},
		{name: "principal narrows", scope: SchoolScope("s1"), class: " 6 ", section: "B", want: Scope{SchoolID: "s1", Class: "6", Section: "B"}},
		{name: "principal section only", scope: SchoolScope("s1"), section: "B", want: Scope{SchoolID: "s1", Section: "B"}},
		{name: "empty stays empty", scope: EmptyScope("s1"), class: "5", want: EmptyScope("s1")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.scope.Narrow(tt.class, tt.section))
		})
	}
}
