package cluster

import (
	"context"

	"github.com/go-zookeeper/zk"

	"github.com/arloliu/cluster/internal/logger"
	"github.com/arloliu/cluster/internal/zookeeper"
)

// ZooKeeperService is a preemptive cluster service backed by ZooKeeper.
//
// Members register ephemeral nodes per namespace and queue for leadership with
// ephemeral sequential candidate nodes; the oldest candidate leads.
type ZooKeeperService = zookeeper.Service

// ZooKeeperConn is the part of *zk.Conn a ZooKeeperService uses.
type ZooKeeperConn = zookeeper.Conn

// DialZooKeeper connects to cfg.ZooKeeper.Servers and waits for a session.
// The caller closes the returned connection after stopping the services
// using it.
//
// Only WithLogger is honored among opts.
func DialZooKeeper(ctx context.Context, cfg *Config, opts ...Option) (*zk.Conn, error) {
	c, o, err := prepare(cfg, opts)
	if err != nil {
		return nil, err
	}

	return zookeeper.Dial(ctx, c.ZooKeeper.Servers, c.ZooKeeper.SessionTimeout, o.logger)
}

// NewZooKeeperService creates a ZooKeeper cluster service.
//
// Defaults are applied to a copy of cfg. cfg.MemberID is required: ZooKeeper
// has no stable ID pool. Views re-read their namespace at least every half
// session timeout.
//
// Parameters:
//   - cfg: Configuration; nil uses DefaultConfig
//   - conn: ZooKeeper connection, e.g. from DialZooKeeper
//   - opts: WithLogger, WithMetrics, WithOrder, WithAttributes
//
// Returns:
//   - *ZooKeeperService: Service in StateCreated
//   - error: ErrZooKeeperConnectionRequired or ErrInvalidConfig
//
// Example:
//
//	conn, err := cluster.DialZooKeeper(ctx, &cfg)
//	if err != nil {
//	    return err
//	}
//	defer conn.Close()
//
//	svc, err := cluster.NewZooKeeperService(&cfg, conn)
func NewZooKeeperService(cfg *Config, conn ZooKeeperConn, opts ...Option) (*ZooKeeperService, error) {
	if conn == nil {
		return nil, ErrZooKeeperConnectionRequired
	}

	c, o, err := prepare(cfg, opts)
	if err != nil {
		return nil, err
	}

	return zookeeper.New(conn, zookeeper.Config{
		MemberID:     c.MemberID,
		RootPath:     c.ZooKeeper.RootPath,
		PollInterval: c.ZooKeeper.SessionTimeout / 2,
		Order:        c.Order,
		Attributes:   c.Attributes,
		Logger:       logger.OrNop(o.logger),
		Metrics:      o.metrics,
	})
}
