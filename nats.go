package cluster

import (
	"github.com/nats-io/nats.go"

	"github.com/arloliu/cluster/internal/logger"
	"github.com/arloliu/cluster/internal/natskv"
)

// NATSService is a preemptive cluster service backed by NATS JetStream KV.
//
// Members of a namespace keep heartbeat keys alive in a TTL bucket, and the
// leader holds a lease key in a second bucket. See Config for the timings.
type NATSService = natskv.Service

// NewNATSService creates a NATS JetStream KV cluster service.
//
// Defaults are applied to a copy of cfg. When cfg.MemberID is empty the service
// claims a stable member ID on Start.
//
// Parameters:
//   - cfg: Configuration; nil uses DefaultConfig
//   - nc: Connected NATS client
//   - opts: WithLogger, WithMetrics, WithOrder, WithAttributes
//
// Returns:
//   - *NATSService: Service in StateCreated
//   - error: ErrNATSConnectionRequired or ErrInvalidConfig
//
// Example:
//
//	cfg := cluster.DefaultConfig()
//	svc, err := cluster.NewNATSService(&cfg, nc, cluster.WithLogger(log))
//	if err != nil {
//	    return err
//	}
//	if err := svc.Start(ctx); err != nil {
//	    return err
//	}
//	defer svc.Stop(context.Background())
func NewNATSService(cfg *Config, nc *nats.Conn, opts ...Option) (*NATSService, error) {
	if nc == nil {
		return nil, ErrNATSConnectionRequired
	}

	c, o, err := prepare(cfg, opts)
	if err != nil {
		return nil, err
	}

	return natskv.New(nc, natskv.Config{
		MemberID:          c.MemberID,
		MemberIDPrefix:    c.MemberIDPrefix,
		MemberIDMin:       c.MemberIDMin,
		MemberIDMax:       c.MemberIDMax,
		MemberIDTTL:       c.MemberIDTTL,
		HeartbeatInterval: c.HeartbeatInterval,
		HeartbeatTTL:      c.HeartbeatTTL,
		LeaseTTL:          c.LeaseTTL,
		OperationTimeout:  c.OperationTimeout,
		StableIDBucket:    c.KVBuckets.StableIDBucket,
		ElectionBucket:    c.KVBuckets.ElectionBucket,
		MembershipBucket:  c.KVBuckets.MembershipBucket,
		Order:             c.Order,
		Attributes:        c.Attributes,
		Logger:            logger.OrNop(o.logger),
		Metrics:           o.metrics,
	})
}

// prepare copies cfg, applies defaults and options, and validates the result.
func prepare(cfg *Config, opts []Option) (Config, options, error) {
	var c Config
	if cfg == nil {
		c = DefaultConfig()
	} else {
		c = *cfg
	}
	SetDefaults(&c)

	o := applyOptions(opts)
	if o.order != nil {
		c.Order = *o.order
	}
	if o.attributes != nil {
		c.Attributes = o.attributes
	}

	if err := c.Validate(); err != nil {
		return Config{}, options{}, err
	}
	if o.logger != nil {
		c.ValidateWithWarnings(o.logger)
	}

	return c, o, nil
}
