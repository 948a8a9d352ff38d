package testutil

import (
	"fmt"
	"sync"
	"testing"

	"github.com/trezcool/shala/core"
)

// Logger is a core.Logger that records what was logged, and echoes it with t.Log.
type Logger struct {
	t *testing.T

	mu     sync.Mutex
	Errors []string
	Infos  []string
}

var _ core.Logger = (*Logger)(nil)

func NewLogger(t *testing.T) *Logger {
	return &Logger{t: t}
}

func (l *Logger) log(level, msg string, args []interface{}) {
	if l.t != nil {
		l.t.Log(fmt.Sprintf("[%s] %s %v", level, msg, args))
	}
}

func (l *Logger) Debug(msg string, args ...interface{}) { l.log("DEBUG", msg, args) }

func (l *Logger) Info(msg string, args ...interface{}) {
	l.mu.Lock()
	l.Infos = append(l.Infos, msg)
	l.mu.Unlock()
	l.log("INFO", msg, args)
}

func (l *Logger) Warn(msg string, args ...interface{}) { l.log("WARN", msg, args) }

func (l *Logger) Error(msg string, args ...interface{}) {
	l.mu.Lock()
	l.Errors = append(l.Errors, msg)
	l.mu.Unlock()
	l.log("ERROR", msg, args)
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.log("FATAL", msg, args)
	if l.t != nil {
		l.t.FailNow()
	}
}

func (l *Logger) ErrorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Errors)
}
