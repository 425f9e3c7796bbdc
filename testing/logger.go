package testing

import (
	"testing"

	"github.com/arloliu/cluster/internal/logger"
	"github.com/arloliu/cluster/types"
)

// NewTestLogger creates a logger that writes to the test output.
func NewTestLogger(t testing.TB) types.Logger {
	return logger.NewTest(t)
}
