package logger

import (
	"fmt"
	"strings"
	"testing"

	"github.com/arloliu/cluster/types"
)

// TestLogger writes through t.Logf so messages show up next to the failing
// test, and only with -v or on failure.
type TestLogger struct {
	t testing.TB
}

var _ types.Logger = (*TestLogger)(nil)

// NewTest returns a logger bound to t.
//
// Messages logged after t completed are dropped; late backend goroutines
// would otherwise make the testing package panic.
//
// Example:
//
//	func TestRebalance(t *testing.T) {
//	    r, _ := cluster.NewRebalancingService(svc, time.Second, cluster.WithLogger(logger.NewTest(t)))
//	}
func NewTest(t testing.TB) *TestLogger {
	return &TestLogger{t: t}
}

func (l *TestLogger) Debug(msg string, keysAndValues ...any) { l.log("DEBUG", msg, keysAndValues) }
func (l *TestLogger) Info(msg string, keysAndValues ...any)  { l.log("INFO", msg, keysAndValues) }
func (l *TestLogger) Warn(msg string, keysAndValues ...any)  { l.log("WARN", msg, keysAndValues) }
func (l *TestLogger) Error(msg string, keysAndValues ...any) { l.log("ERROR", msg, keysAndValues) }

func (l *TestLogger) log(level, msg string, keysAndValues []any) {
	defer func() {
		// Logf panics once the test has finished.
		_ = recover()
	}()

	l.t.Helper()
	l.t.Logf("%s: %s%s", level, msg, formatKeyValues(keysAndValues))
}

// formatKeyValues renders pairs as " k=v"; a dangling key gets "<missing>".
func formatKeyValues(keysAndValues []any) string {
	var sb strings.Builder
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			fmt.Fprintf(&sb, " %v=%v", keysAndValues[i], keysAndValues[i+1])
		} else {
			fmt.Fprintf(&sb, " %v=<missing>", keysAndValues[i])
		}
	}

	return sb.String()
}
