package natskv

import (
	"fmt"
	"time"

	"github.com/arloliu/cluster/types"
)

// Config configures a Service.
type Config struct {
	// MemberID is the fixed local member ID. When empty, an ID is claimed from
	// the pool MemberIDPrefix-{MemberIDMin..MemberIDMax} on Start.
	MemberID       string
	MemberIDPrefix string
	MemberIDMin    int
	MemberIDMax    int
	MemberIDTTL    time.Duration

	HeartbeatInterval time.Duration
	HeartbeatTTL      time.Duration
	LeaseTTL          time.Duration

	// OperationTimeout bounds every KV round trip made by the service.
	OperationTimeout time.Duration

	StableIDBucket   string
	ElectionBucket   string
	MembershipBucket string

	Order      int
	Attributes map[string]any

	Logger  types.Logger
	Metrics types.MetricsCollector
}

func (c *Config) validate() error {
	switch {
	case c.MemberID == "" && c.MemberIDPrefix == "":
		return fmt.Errorf("%w: member ID or member ID prefix required", types.ErrInvalidConfig)
	case c.MemberID == "" && c.MemberIDMin > c.MemberIDMax:
		return fmt.Errorf("%w: member ID range [%d, %d] is empty", types.ErrInvalidConfig, c.MemberIDMin, c.MemberIDMax)
	case c.HeartbeatInterval <= 0 || c.HeartbeatTTL <= c.HeartbeatInterval:
		return fmt.Errorf("%w: heartbeat TTL must exceed a positive heartbeat interval", types.ErrInvalidConfig)
	case c.LeaseTTL <= 0 || c.OperationTimeout <= 0:
		return fmt.Errorf("%w: lease TTL and operation timeout must be positive", types.ErrInvalidConfig)
	case c.ElectionBucket == "" || c.MembershipBucket == "" || (c.MemberID == "" && c.StableIDBucket == ""):
		return fmt.Errorf("%w: bucket names required", types.ErrInvalidConfig)
	}

	return nil
}
