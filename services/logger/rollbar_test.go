package logsvc

import (
	"bytes"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/shala/core"
	"github.com/trezcool/shala/core/identity"
)

func newTestLogger(buf *bytes.Buffer) *RollbarLogger {
	l := NewRollbarLogger(log.New(buf, "", 0), core.NewTestConfig())
	l.Enable(false)
	return l
}

func TestRollbarLogger_prepare(t *testing.T) {
	l := newTestLogger(new(bytes.Buffer))
	err := errors.New("boom")
	p := identity.Principal{UserID: "u1", Name: "Teacher", Role: identity.RoleTeacher}

	tests := []struct {
		name string
		args []interface{}
		want []interface{}
	}{
		{name: "message only", want: []interface{}{"msg"}},
		{name: "error", args: []interface{}{err}, want: []interface{}{"msg", err}},
		{name: "principal is not forwarded", args: []interface{}{p, err, p}, want: []interface{}{"msg", err}},
		{
			name: "extras",
			args: []interface{}{map[string]interface{}{"date": "2024-03-15"}},
			want: []interface{}{"msg", map[string]interface{}{"date": "2024-03-15"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.prepare("msg", tt.args))
		})
	}
}

func TestRollbarLogger_print(t *testing.T) {
	buf := new(bytes.Buffer)
	l := newTestLogger(buf)

	l.Error("marking attendance", errors.New("connection reset"), identity.Principal{UserID: "u1"})
	assert.Equal(t, "[ERROR] marking attendance\nconnection reset\n", buf.String())
}
