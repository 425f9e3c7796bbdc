package zookeeper

import (
	"fmt"
	"strings"
	"time"

	"github.com/arloliu/cluster/types"
)

// Config configures a Service.
type Config struct {
	// MemberID is the local member ID. Required.
	MemberID string

	// RootPath is the parent znode of every namespace, e.g. "/cluster".
	RootPath string

	// PollInterval bounds how long a view goes without re-reading its
	// namespace when no watch fires.
	PollInterval time.Duration

	Order      int
	Attributes map[string]any

	Logger  types.Logger
	Metrics types.MetricsCollector
}

func (c *Config) validate() error {
	switch {
	case c.MemberID == "":
		return fmt.Errorf("%w: zookeeper backend requires a member ID", types.ErrInvalidConfig)
	case !strings.HasPrefix(c.RootPath, "/") || (c.RootPath != "/" && strings.HasSuffix(c.RootPath, "/")):
		return fmt.Errorf("%w: invalid zookeeper root path %q", types.ErrInvalidConfig, c.RootPath)
	case c.PollInterval <= 0:
		return fmt.Errorf("%w: poll interval must be positive", types.ErrInvalidConfig)
	}

	return nil
}
