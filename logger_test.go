package kroute

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

// testLogger forwards log lines to t and keeps them, so a test can assert that a warning
// was logged. Install it with useTestLogger.
type testLogger struct {
	t *testing.T

	lock  sync.Mutex
	lines []string
}

// useTestLogger routes Logger to t until the test ends.
func useTestLogger(t *testing.T) *testLogger {
	prev := Logger
	l := &testLogger{t: t}
	Logger = l
	t.Cleanup(func() { Logger = prev })
	return l
}

func (l *testLogger) record(line string) {
	line = strings.TrimSuffix(line, "\n")

	l.lock.Lock()
	l.lines = append(l.lines, line)
	l.lock.Unlock()

	l.t.Helper()
	l.t.Log(line)
}

func (l *testLogger) Print(v ...interface{}) {
	l.t.Helper()
	l.record(fmt.Sprint(v...))
}

func (l *testLogger) Printf(format string, v ...interface{}) {
	l.t.Helper()
	l.record(fmt.Sprintf(format, v...))
}

func (l *testLogger) Println(v ...interface{}) {
	l.t.Helper()
	l.record(fmt.Sprintln(v...))
}

// logged reports whether some line contains substr.
func (l *testLogger) logged(substr string) bool {
	l.lock.Lock()
	defer l.lock.Unlock()

	for _, line := range l.lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}
